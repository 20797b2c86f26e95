package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormRoleRepository implements identity.RoleRepository using GORM
type GormRoleRepository struct {
	db *gorm.DB
}

// NewGormRoleRepository creates a new GormRoleRepository
func NewGormRoleRepository(db *gorm.DB) *GormRoleRepository {
	return &GormRoleRepository{db: db}
}

// Create inserts a role with its permissions
func (r *GormRoleRepository) Create(ctx context.Context, role *identity.Role) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(models.RoleModelFromDomain(role)).Error; err != nil {
			return translateError(err)
		}
		return replacePermissions(tx, role)
	})
	if err != nil {
		return err
	}
	role.MarkPersisted()
	return nil
}

// Update stores the role and replaces its permissions
func (r *GormRoleRepository) Update(ctx context.Context, role *identity.Role) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.RoleModelFromDomain(role)
		result := tx.Model(model).
			Where("tenant_id = ? AND version = ?", role.TenantID, role.ExpectedVersion()).
			Select("*").
			Updates(model)
		if result.Error != nil {
			return translateError(result.Error)
		}
		if result.RowsAffected == 0 {
			found, err := exists(ctx, tx, &models.RoleModel{}, "id = ?", role.ID)
			if err != nil {
				return err
			}
			if found {
				return shared.ErrConcurrencyConflict
			}
			return shared.ErrNotFound
		}
		return replacePermissions(tx, role)
	})
	if err != nil {
		return err
	}
	role.MarkPersisted()
	return nil
}

// Delete removes a role, its permissions and its user assignments
func (r *GormRoleRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&models.RolePermissionModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", id).Delete(&models.UserRoleModel{}).Error; err != nil {
			return err
		}
		return deleteScoped(ctx, tx, &models.RoleModel{}, tenantID, id)
	})
}

// FindByID finds a role by ID within a tenant
func (r *GormRoleRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*identity.Role, error) {
	return r.findOne(ctx, r.db.Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindByCode finds a role by code within a tenant
func (r *GormRoleRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*identity.Role, error) {
	return r.findOne(ctx, r.db.Where("tenant_id = ? AND code = ?", tenantID, strings.ToUpper(code)))
}

func (r *GormRoleRepository) findOne(ctx context.Context, query *gorm.DB) (*identity.Role, error) {
	var model models.RoleModel
	if err := query.WithContext(ctx).First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	roles, err := r.withPermissions(ctx, []models.RoleModel{model})
	if err != nil {
		return nil, err
	}
	return roles[0], nil
}

// FindByIDs loads several roles of a tenant with their permissions
func (r *GormRoleRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*identity.Role, error) {
	if len(ids) == 0 {
		return []*identity.Role{}, nil
	}
	var rows []models.RoleModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("code ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.withPermissions(ctx, rows)
}

// FindAll lists the roles of a tenant
func (r *GormRoleRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]*identity.Role, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.RoleModel{}).
		Scopes(TenantScope(tenantID), SearchScope(filter.Search, "code", "name"))
	if enabled, ok := filter.Filters["is_enabled"].(bool); ok {
		query = query.Where("is_enabled = ?", enabled)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.RoleModel
	if err := query.Scopes(Paginate(filter, RoleSortFields, "code")).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	roles, err := r.withPermissions(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return roles, total, nil
}

// ExistsByCode checks if a role code is taken within a tenant
func (r *GormRoleRepository) ExistsByCode(ctx context.Context, tenantID uuid.UUID, code string) (bool, error) {
	return exists(ctx, r.db, &models.RoleModel{}, "tenant_id = ? AND code = ?", tenantID, strings.ToUpper(code))
}

// withPermissions converts rows to roles, loading all permissions in one query
func (r *GormRoleRepository) withPermissions(ctx context.Context, rows []models.RoleModel) ([]*identity.Role, error) {
	roles := make([]*identity.Role, len(rows))
	if len(rows) == 0 {
		return roles, nil
	}
	ids := make([]uuid.UUID, len(rows))
	byID := make(map[uuid.UUID]*identity.Role, len(rows))
	for i := range rows {
		roles[i] = rows[i].ToDomain()
		ids[i] = rows[i].ID
		byID[rows[i].ID] = roles[i]
	}

	var perms []models.RolePermissionModel
	if err := r.db.WithContext(ctx).
		Where("role_id IN ?", ids).
		Order("code ASC").
		Find(&perms).Error; err != nil {
		return nil, err
	}
	for i := range perms {
		if role, ok := byID[perms[i].RoleID]; ok {
			role.Permissions = append(role.Permissions, perms[i].ToDomain())
		}
	}
	return roles, nil
}

func replacePermissions(tx *gorm.DB, role *identity.Role) error {
	if err := tx.Where("role_id = ?", role.ID).Delete(&models.RolePermissionModel{}).Error; err != nil {
		return err
	}
	if len(role.Permissions) == 0 {
		return nil
	}
	rows := make([]models.RolePermissionModel, len(role.Permissions))
	for i, p := range role.Permissions {
		rows[i] = models.RolePermissionModelFromDomain(role.ID, role.TenantID, p)
	}
	return tx.Create(&rows).Error
}
