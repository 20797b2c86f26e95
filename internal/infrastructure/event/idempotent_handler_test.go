package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mdfe/backend/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Claim(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, key, value, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockIdempotencyStore) Close() error { return nil }

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := &recordingHandler{}
	h := NewIdempotentHandler(inner, store, zap.NewNop())
	evt := newTestEvent("ManifestAuthorized")

	require.NoError(t, h.Handle(context.Background(), evt))
	require.NoError(t, h.Handle(context.Background(), evt))
	assert.Equal(t, 1, inner.count())

	require.NoError(t, h.Handle(context.Background(), newTestEvent("ManifestAuthorized")))
	assert.Equal(t, 2, inner.count())
}

func TestIdempotentHandler_KeysArePerHandler(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	first := NewIdempotentHandler(NewMetricsHandler(&countingSink{}), store, zap.NewNop())
	inner := &recordingHandler{}
	second := NewIdempotentHandler(inner, store, zap.NewNop())
	evt := newTestEvent("X")

	require.NoError(t, first.Handle(context.Background(), evt))
	require.NoError(t, second.Handle(context.Background(), evt))
	assert.Equal(t, 1, inner.count())
}

func TestIdempotentHandler_ReleasesKeyOnFailure(t *testing.T) {
	store := new(MockIdempotencyStore)
	inner := &recordingHandler{err: errors.New("downstream")}
	h := NewIdempotentHandler(inner, store, zap.NewNop(), WithTTL(time.Minute))
	evt := newTestEvent("X")
	key := "event:" + h.Name() + ":" + evt.EventID().String()

	store.On("MarkProcessed", mock.Anything, key, time.Minute).Return(true, nil)
	store.On("Release", mock.Anything, key).Return(nil)

	err := h.Handle(context.Background(), evt)
	assert.EqualError(t, err, "downstream")
	store.AssertExpectations(t)
}

func TestIdempotentHandler_StoreErrorStillProcesses(t *testing.T) {
	store := new(MockIdempotencyStore)
	store.On("MarkProcessed", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis down"))

	inner := &recordingHandler{}
	h := NewIdempotentHandler(inner, store, zap.NewNop())

	require.NoError(t, h.Handle(context.Background(), newTestEvent("X")))
	assert.Equal(t, 1, inner.count())
}

func TestIdempotentHandler_ConcurrentDelivery(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := &recordingHandler{}
	h := NewIdempotentHandler(inner, store, zap.NewNop())
	evt := newTestEvent("X")

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Handle(context.Background(), evt)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, inner.count())
}

func TestIdempotentHandler_DelegatesEventTypes(t *testing.T) {
	h := NewIdempotentHandler(&recordingHandler{types: []string{"A", "B"}}, new(MockIdempotencyStore), zap.NewNop())
	assert.Equal(t, []string{"A", "B"}, h.EventTypes())
}
