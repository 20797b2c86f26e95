package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/partner"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
	"gorm.io/gorm"
)

// GormInsurerRepository implements partner.InsurerRepository using GORM
type GormInsurerRepository struct {
	db *gorm.DB
}

// NewGormInsurerRepository creates a new GormInsurerRepository
func NewGormInsurerRepository(db *gorm.DB) *GormInsurerRepository {
	return &GormInsurerRepository{db: db}
}

// FindByID finds an insurer by ID within a tenant
func (r *GormInsurerRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*partner.Insurer, error) {
	return findScoped[partner.Insurer](ctx, r.db, tenantID, id)
}

// FindAll lists the insurers of a tenant
func (r *GormInsurerRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter partner.ListFilter) ([]partner.Insurer, int64, error) {
	query := r.db.WithContext(ctx).Model(&partner.Insurer{}).
		Scopes(TenantScope(tenantID), SearchScope(filter.Search, "name", "cnpj", "policy_number"))
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	return listPage[partner.Insurer](query, filter.Filter, InsurerSortFields, "name")
}

// ExistsByCNPJ checks if the insurer CNPJ is already registered by the tenant
func (r *GormInsurerRepository) ExistsByCNPJ(ctx context.Context, tenantID uuid.UUID, cnpj string) (bool, error) {
	return exists(ctx, r.db, &partner.Insurer{}, "tenant_id = ? AND cnpj = ?", tenantID, valueobject.OnlyDigits(cnpj))
}

// Save creates or updates an insurer
func (r *GormInsurerRepository) Save(ctx context.Context, insurer *partner.Insurer) error {
	if err := saveVersioned(ctx, r.db, insurer, insurer); err != nil {
		return err
	}
	insurer.MarkPersisted()
	return nil
}

// Delete removes an insurer
func (r *GormInsurerRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return deleteScoped(ctx, r.db, &partner.Insurer{}, tenantID, id)
}
