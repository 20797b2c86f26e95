package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/partner"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormClientRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormClientRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	client, err := partner.NewClient(tenantID, "Mercado Central", "11.444.777/0001-61")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, client))

	taken, err := repo.ExistsByDocument(ctx, tenantID, "11.444.777/0001-61")
	require.NoError(t, err)
	assert.True(t, taken)

	require.NoError(t, client.Deactivate())
	require.NoError(t, repo.Save(ctx, client))

	active, total, err := repo.FindAll(ctx, tenantID, partner.ListFilter{Status: partner.StatusActive})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, active)

	inactive, total, err := repo.FindAll(ctx, tenantID, partner.ListFilter{Filter: shared.Filter{Search: "central"}, Status: partner.StatusInactive})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, inactive, 1)
	assert.Equal(t, client.ID, inactive[0].ID)

	byIDs, err := repo.FindByIDs(ctx, tenantID, []uuid.UUID{client.ID})
	require.NoError(t, err)
	assert.Len(t, byIDs, 1)
}

func TestGormInsurerRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormInsurerRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	insurer, err := partner.NewInsurer(tenantID, "Seguradora Alfa", "11222333000181")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, insurer))

	found, err := repo.FindByID(ctx, tenantID, insurer.ID)
	require.NoError(t, err)
	assert.Equal(t, "11222333000181", found.CNPJ)

	taken, err := repo.ExistsByCNPJ(ctx, tenantID, "11.222.333/0001-81")
	require.NoError(t, err)
	assert.True(t, taken)

	require.NoError(t, repo.Delete(ctx, tenantID, insurer.ID))
	_, err = repo.FindByID(ctx, tenantID, insurer.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormSupplierRepository_StaleSave(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSupplierRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	supplier, err := partner.NewSupplier(tenantID, "Pneus Brasil", "11444777000161", partner.SupplierCategoryTires)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, supplier))

	stale, err := repo.FindByID(ctx, tenantID, supplier.ID)
	require.NoError(t, err)

	require.NoError(t, supplier.Deactivate())
	require.NoError(t, repo.Save(ctx, supplier))

	require.NoError(t, stale.Deactivate())
	assert.ErrorIs(t, repo.Save(ctx, stale), shared.ErrConcurrencyConflict)
}

func TestGormSupplierRepository_Exists(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSupplierRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	supplier, err := partner.NewSupplier(tenantID, "Oficina Central", "11444777000161", partner.SupplierCategoryServices)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, supplier))

	found, err := repo.Exists(ctx, tenantID, supplier.ID)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.Exists(ctx, uuid.New(), supplier.ID)
	require.NoError(t, err)
	assert.False(t, found, "other tenants must not see the supplier")
}
