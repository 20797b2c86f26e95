package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/partner"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
	"gorm.io/gorm"
)

// GormClientRepository implements partner.ClientRepository using GORM
type GormClientRepository struct {
	db *gorm.DB
}

// NewGormClientRepository creates a new GormClientRepository
func NewGormClientRepository(db *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: db}
}

// FindByID finds a client by ID within a tenant
func (r *GormClientRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*partner.Client, error) {
	return findScoped[partner.Client](ctx, r.db, tenantID, id)
}

// FindByIDs finds the tenant's clients among ids
func (r *GormClientRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]partner.Client, error) {
	return findScopedByIDs[partner.Client](ctx, r.db, tenantID, ids)
}

// FindAll lists the clients of a tenant
func (r *GormClientRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter partner.ListFilter) ([]partner.Client, int64, error) {
	query := r.db.WithContext(ctx).Model(&partner.Client{}).
		Scopes(TenantScope(tenantID), SearchScope(filter.Search, "name", "document", "contact_name", "email"))
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	return listPage[partner.Client](query, filter.Filter, ClientSortFields, "name")
}

// ExistsByDocument checks if the document is already registered by the tenant
func (r *GormClientRepository) ExistsByDocument(ctx context.Context, tenantID uuid.UUID, document string) (bool, error) {
	return exists(ctx, r.db, &partner.Client{}, "tenant_id = ? AND document = ?", tenantID, valueobject.OnlyDigits(document))
}

// Save creates or updates a client
func (r *GormClientRepository) Save(ctx context.Context, client *partner.Client) error {
	if err := saveVersioned(ctx, r.db, client, client); err != nil {
		return err
	}
	client.MarkPersisted()
	return nil
}

// Delete removes a client
func (r *GormClientRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return deleteScoped(ctx, r.db, &partner.Client{}, tenantID, id)
}
