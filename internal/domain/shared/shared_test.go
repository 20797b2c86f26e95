package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	published []DomainEvent
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...DomainEvent) error {
	p.published = append(p.published, events...)
	return p.err
}

func TestDomainError_Is(t *testing.T) {
	wrapped := fmt.Errorf("loading vehicle: %w", ErrNotFound)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.True(t, IsNotFound(wrapped))
	assert.True(t, errors.Is(NewDomainError("NOT_FOUND", "vehicle not found"), ErrNotFound))
	assert.False(t, errors.Is(ErrInvalidState, ErrNotFound))
}

func TestFilter_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		in       Filter
		page     int
		size     int
		orderDir string
	}{
		{"zero values", Filter{}, 1, DefaultPageSize, "desc"},
		{"oversized page", Filter{Page: 3, PageSize: 500, OrderDir: "asc"}, 3, MaxPageSize, "asc"},
		{"unknown direction", Filter{Page: 2, PageSize: 10, OrderDir: "sideways"}, 2, 10, "desc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.in.Normalize()
			assert.Equal(t, tt.page, f.Page)
			assert.Equal(t, tt.size, f.PageSize)
			assert.Equal(t, tt.orderDir, f.OrderDir)
			assert.Equal(t, "created_at", f.OrderBy)
			assert.NotNil(t, f.Filters)
		})
	}
}

func TestFilter_Offset(t *testing.T) {
	assert.Equal(t, 0, Filter{Page: 1, PageSize: 20}.Offset())
	assert.Equal(t, 40, Filter{Page: 3, PageSize: 20}.Offset())
	assert.Equal(t, 0, Filter{Page: 0, PageSize: 20}.Offset())
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2, 3}, 41, 1, 20)
	assert.Equal(t, 3, p.TotalPages)
	assert.Len(t, p.Items, 3)

	p = NewPaginated([]int{}, 0, 1, 0)
	assert.Equal(t, DefaultPageSize, p.PageSize)
	assert.Equal(t, 0, p.TotalPages)
}

func TestTenantAggregateRoot(t *testing.T) {
	tenantID := uuid.New()
	root := NewTenantAggregateRoot(tenantID)

	assert.NotEqual(t, uuid.Nil, root.ID)
	assert.Equal(t, 1, root.GetVersion())
	assert.True(t, root.BelongsTo(tenantID))
	assert.False(t, root.BelongsTo(uuid.New()))

	before := root.UpdatedAt
	root.MarkModified()
	assert.Equal(t, 2, root.GetVersion())
	assert.False(t, root.UpdatedAt.Before(before))

	root.MarkModified()
	assert.Equal(t, 2, root.GetVersion(), "version moves once per unit of work")
	assert.True(t, root.IsModified())
	assert.Equal(t, 1, root.ExpectedVersion())

	root.MarkPersisted()
	assert.False(t, root.IsModified())
	assert.Equal(t, 2, root.ExpectedVersion())
	root.MarkModified()
	assert.Equal(t, 3, root.GetVersion())
}

func TestPublishAndClear(t *testing.T) {
	root := NewTenantAggregateRoot(uuid.New())
	evt := NewBaseDomainEvent("Something", "Thing", root.ID, root.TenantID)
	root.AddDomainEvent(&evt)

	pub := &recordingPublisher{}
	require.NoError(t, PublishAndClear(context.Background(), pub, &root))
	assert.Len(t, pub.published, 1)
	assert.Empty(t, root.GetDomainEvents())

	root.AddDomainEvent(&evt)
	require.NoError(t, PublishAndClear(context.Background(), nil, &root))
	assert.Empty(t, root.GetDomainEvents())

	root.AddDomainEvent(&evt)
	pub.err = errors.New("bus down")
	assert.Error(t, PublishAndClear(context.Background(), pub, &root))
	assert.Empty(t, root.GetDomainEvents())
}
