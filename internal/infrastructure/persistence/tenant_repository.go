package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTenantRepository implements identity.TenantRepository using GORM
type GormTenantRepository struct {
	db *gorm.DB
}

// NewGormTenantRepository creates a new GormTenantRepository
func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

// FindByID finds a tenant by its ID
func (r *GormTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Tenant, error) {
	var tenant identity.Tenant
	if err := r.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &tenant, nil
}

// FindByCode finds a tenant by its unique code
func (r *GormTenantRepository) FindByCode(ctx context.Context, code string) (*identity.Tenant, error) {
	var tenant identity.Tenant
	if err := r.db.WithContext(ctx).
		Where("UPPER(code) = ?", strings.ToUpper(code)).
		First(&tenant).Error; err != nil {
		return nil, translateError(err)
	}
	return &tenant, nil
}

// FindByCNPJ finds a tenant by its CNPJ digits
func (r *GormTenantRepository) FindByCNPJ(ctx context.Context, cnpj string) (*identity.Tenant, error) {
	var tenant identity.Tenant
	if err := r.db.WithContext(ctx).Where("cnpj = ?", cnpj).First(&tenant).Error; err != nil {
		return nil, translateError(err)
	}
	return &tenant, nil
}

// FindAll lists tenants with paging and an optional search over code and names
func (r *GormTenantRepository) FindAll(ctx context.Context, filter shared.Filter) ([]identity.Tenant, int64, error) {
	query := r.db.WithContext(ctx).Model(&identity.Tenant{}).
		Scopes(SearchScope(filter.Search, "code", "legal_name", "trade_name", "cnpj"))
	if status, ok := filter.Filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tenants []identity.Tenant
	if err := query.Scopes(Paginate(filter, TenantSortFields, "created_at")).Find(&tenants).Error; err != nil {
		return nil, 0, err
	}
	return tenants, total, nil
}

// FindCertificatesExpiring returns active tenants whose certificate expires
// within withinDays, soonest first
func (r *GormTenantRepository) FindCertificatesExpiring(ctx context.Context, withinDays int) ([]identity.Tenant, error) {
	deadline := time.Now().AddDate(0, 0, withinDays)
	var tenants []identity.Tenant
	if err := r.db.WithContext(ctx).
		Where("status = ?", identity.TenantStatusActive).
		Where("certificate_expires_at IS NOT NULL AND certificate_expires_at <= ?", deadline).
		Order("certificate_expires_at ASC").
		Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

// ExistsByCode checks if a tenant code is taken
func (r *GormTenantRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	return exists(ctx, r.db, &identity.Tenant{}, "UPPER(code) = ?", strings.ToUpper(code))
}

// ExistsByCNPJ checks if a CNPJ is already registered
func (r *GormTenantRepository) ExistsByCNPJ(ctx context.Context, cnpj string) (bool, error) {
	return exists(ctx, r.db, &identity.Tenant{}, "cnpj = ?", cnpj)
}

// Save creates or updates a tenant with an optimistic version check
func (r *GormTenantRepository) Save(ctx context.Context, tenant *identity.Tenant) error {
	if err := saveVersioned(ctx, r.db, tenant, tenant); err != nil {
		return err
	}
	tenant.MarkPersisted()
	return nil
}

// allocateNumber takes a row lock on the tenant and advances the counter
// of series inside tx, so concurrent transmissions never share a number.
// A tenant keeps one counter, the one of its current series.
func allocateNumber(tx *gorm.DB, tenantID uuid.UUID, series int) (int, error) {
	query := tx
	if tx.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var tenant identity.Tenant
	if err := query.First(&tenant, "id = ?", tenantID).Error; err != nil {
		return 0, translateError(err)
	}

	if tenant.Series != series {
		return 0, shared.NewDomainError("SERIES_CHANGED", "Tenant series changed during transmission")
	}
	next, err := tenant.NextNumber()
	if err != nil {
		return 0, err
	}

	if err := tx.Model(&identity.Tenant{}).
		Where("id = ?", tenantID).
		Updates(map[string]any{
			"last_number": next,
			"version":     gorm.Expr("version + 1"),
			"updated_at":  time.Now(),
		}).Error; err != nil {
		return 0, err
	}
	return next, nil
}
