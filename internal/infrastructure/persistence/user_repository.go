package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormUserRepository implements identity.UserRepository using GORM
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GormUserRepository
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// Create inserts a user together with its role assignments
func (r *GormUserRepository) Create(ctx context.Context, user *identity.User) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(models.UserModelFromDomain(user)).Error; err != nil {
			return translateError(err)
		}
		return replaceUserRoles(tx, user)
	})
	if err != nil {
		return err
	}
	user.MarkPersisted()
	return nil
}

// Update stores the user columns; role assignments are saved by SaveUserRoles
func (r *GormUserRepository) Update(ctx context.Context, user *identity.User) error {
	model := models.UserModelFromDomain(user)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("tenant_id = ? AND version = ?", user.TenantID, user.ExpectedVersion()).
		Select("*").
		Updates(model)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		found, err := exists(ctx, r.db, &models.UserModel{}, "id = ?", user.ID)
		if err != nil {
			return err
		}
		if found {
			return shared.ErrConcurrencyConflict
		}
		return shared.ErrNotFound
	}
	user.MarkPersisted()
	return nil
}

// Delete removes a user and its role assignments
func (r *GormUserRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.UserRoleModel{}).Error; err != nil {
			return err
		}
		return deleteScoped(ctx, tx, &models.UserModel{}, tenantID, id)
	})
}

// FindByID finds a user by ID across tenants; used by the auth flow
func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	return r.findOne(ctx, r.db.Where("id = ?", id))
}

// FindByIDForTenant finds a user by ID within a tenant
func (r *GormUserRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*identity.User, error) {
	return r.findOne(ctx, r.db.Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindByUsername finds a user by the globally unique username
func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	return r.findOne(ctx, r.db.Where("username = ?", strings.ToLower(strings.TrimSpace(username))))
}

func (r *GormUserRepository) findOne(ctx context.Context, query *gorm.DB) (*identity.User, error) {
	var model models.UserModel
	if err := query.WithContext(ctx).First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	user := model.ToDomain()
	if err := r.LoadUserRoles(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// FindAll lists the users of a tenant
func (r *GormUserRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter identity.UserFilter) ([]*identity.User, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.UserModel{}).
		Scopes(TenantScope(tenantID), SearchScope(filter.Search, "username", "email", "display_name"))
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.RoleID != nil {
		query = query.Where("id IN (?)",
			r.db.Model(&models.UserRoleModel{}).Select("user_id").Where("role_id = ?", *filter.RoleID))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.UserModel
	if err := query.Scopes(Paginate(filter.Filter, UserSortFields, "created_at")).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	users := make([]*identity.User, len(rows))
	for i := range rows {
		users[i] = rows[i].ToDomain()
		if err := r.LoadUserRoles(ctx, users[i]); err != nil {
			return nil, 0, err
		}
	}
	return users, total, nil
}

// ExistsByUsername checks if a username is taken in any tenant
func (r *GormUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return exists(ctx, r.db, &models.UserModel{}, "username = ?", strings.ToLower(strings.TrimSpace(username)))
}

// ExistsByEmail checks if an email is used within a tenant
func (r *GormUserRepository) ExistsByEmail(ctx context.Context, tenantID uuid.UUID, email string) (bool, error) {
	return exists(ctx, r.db, &models.UserModel{}, "tenant_id = ? AND LOWER(email) = ?", tenantID, strings.ToLower(email))
}

// SaveUserRoles replaces the user's role assignments
func (r *GormUserRepository) SaveUserRoles(ctx context.Context, user *identity.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceUserRoles(tx, user)
	})
}

func replaceUserRoles(tx *gorm.DB, user *identity.User) error {
	if err := tx.Where("user_id = ?", user.ID).Delete(&models.UserRoleModel{}).Error; err != nil {
		return err
	}
	if len(user.RoleIDs) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]models.UserRoleModel, len(user.RoleIDs))
	for i, roleID := range user.RoleIDs {
		rows[i] = models.UserRoleModel{
			UserID:    user.ID,
			RoleID:    roleID,
			TenantID:  user.TenantID,
			CreatedAt: now,
		}
	}
	return tx.Create(&rows).Error
}

// LoadUserRoles fills user.RoleIDs from user_roles
func (r *GormUserRepository) LoadUserRoles(ctx context.Context, user *identity.User) error {
	var roleIDs []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.UserRoleModel{}).
		Where("user_id = ?", user.ID).
		Order("created_at ASC").
		Pluck("role_id", &roleIDs).Error; err != nil {
		return err
	}
	if roleIDs == nil {
		roleIDs = make([]uuid.UUID, 0)
	}
	user.RoleIDs = roleIDs
	return nil
}

// CountByRole counts the users holding a role
func (r *GormUserRepository) CountByRole(ctx context.Context, roleID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserRoleModel{}).Where("role_id = ?", roleID).Count(&count).Error
	return count, err
}
