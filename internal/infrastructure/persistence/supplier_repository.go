package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/partner"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
	"gorm.io/gorm"
)

// GormSupplierRepository implements partner.SupplierRepository using GORM
type GormSupplierRepository struct {
	db *gorm.DB
}

// NewGormSupplierRepository creates a new GormSupplierRepository
func NewGormSupplierRepository(db *gorm.DB) *GormSupplierRepository {
	return &GormSupplierRepository{db: db}
}

func (r *GormSupplierRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*partner.Supplier, error) {
	return findScoped[partner.Supplier](ctx, r.db, tenantID, id)
}

// FindAll lists the suppliers of a tenant
func (r *GormSupplierRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter partner.ListFilter) ([]partner.Supplier, int64, error) {
	query := r.db.WithContext(ctx).Model(&partner.Supplier{}).
		Scopes(TenantScope(tenantID), SearchScope(filter.Search, "name", "document", "contact_name", "email"))
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	return listPage[partner.Supplier](query, filter.Filter, SupplierSortFields, "name")
}

// ExistsByDocument checks if the document is already registered by the tenant
func (r *GormSupplierRepository) ExistsByDocument(ctx context.Context, tenantID uuid.UUID, document string) (bool, error) {
	return exists(ctx, r.db, &partner.Supplier{}, "tenant_id = ? AND document = ?", tenantID, valueobject.OnlyDigits(document))
}

// Exists tells whether the supplier belongs to the tenant
func (r *GormSupplierRepository) Exists(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	return exists(ctx, r.db, &partner.Supplier{}, "tenant_id = ? AND id = ?", tenantID, id)
}

// Save creates or updates a supplier
func (r *GormSupplierRepository) Save(ctx context.Context, supplier *partner.Supplier) error {
	if err := saveVersioned(ctx, r.db, supplier, supplier); err != nil {
		return err
	}
	supplier.MarkPersisted()
	return nil
}

func (r *GormSupplierRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return deleteScoped(ctx, r.db, &partner.Supplier{}, tenantID, id)
}
