package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/fleet"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
	"gorm.io/gorm"
)

// GormDriverRepository implements fleet.DriverRepository using GORM
type GormDriverRepository struct {
	db *gorm.DB
}

// NewGormDriverRepository creates a new GormDriverRepository
func NewGormDriverRepository(db *gorm.DB) *GormDriverRepository {
	return &GormDriverRepository{db: db}
}

func (r *GormDriverRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*fleet.Driver, error) {
	return findScoped[fleet.Driver](ctx, r.db, tenantID, id)
}

func (r *GormDriverRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]fleet.Driver, error) {
	return findScopedByIDs[fleet.Driver](ctx, r.db, tenantID, ids)
}

// FindByCPF finds a driver by CPF, formatted or not
func (r *GormDriverRepository) FindByCPF(ctx context.Context, tenantID uuid.UUID, cpf string) (*fleet.Driver, error) {
	var driver fleet.Driver
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND cpf = ?", tenantID, valueobject.OnlyDigits(cpf)).
		First(&driver).Error; err != nil {
		return nil, translateError(err)
	}
	return &driver, nil
}

func (r *GormDriverRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter fleet.DriverFilter) ([]fleet.Driver, int64, error) {
	query := r.db.WithContext(ctx).Model(&fleet.Driver{}).
		Scopes(TenantScope(tenantID), SearchScope(filter.Search, "name", "cpf", "cnh_number"))
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	return listPage[fleet.Driver](query, filter.Filter, DriverSortFields, "name")
}

func (r *GormDriverRepository) ExistsByCPF(ctx context.Context, tenantID uuid.UUID, cpf string) (bool, error) {
	return exists(ctx, r.db, &fleet.Driver{}, "tenant_id = ? AND cpf = ?", tenantID, valueobject.OnlyDigits(cpf))
}

func (r *GormDriverRepository) Save(ctx context.Context, driver *fleet.Driver) error {
	if err := saveVersioned(ctx, r.db, driver, driver); err != nil {
		return err
	}
	driver.MarkPersisted()
	return nil
}

func (r *GormDriverRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return deleteScoped(ctx, r.db, &fleet.Driver{}, tenantID, id)
}
