package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/application/common"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// RoleService handles role management operations
type RoleService struct {
	roleRepo  identity.RoleRepository
	userRepo  identity.UserRepository
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewRoleService creates a new role service
func NewRoleService(
	roleRepo identity.RoleRepository,
	userRepo identity.UserRepository,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *RoleService {
	return &RoleService{
		roleRepo:  roleRepo,
		userRepo:  userRepo,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateRoleInput contains input for creating a role
type CreateRoleInput struct {
	TenantID    uuid.UUID
	CreatedBy   uuid.UUID
	Code        string
	Name        string
	Description string
	Permissions []string
}

// UpdateRoleInput contains input for updating a role
type UpdateRoleInput struct {
	TenantID    uuid.UUID
	ID          uuid.UUID
	Name        string
	Description string
}

// PermissionDTO describes one entry of the permission catalog
type PermissionDTO struct {
	Code     string `json:"code"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// RoleDTO represents role data transfer object
type RoleDTO struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	IsSystemRole bool      `json:"is_system_role"`
	IsEnabled    bool      `json:"is_enabled"`
	Permissions  []string  `json:"permissions"`
	UserCount    int64     `json:"user_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Create creates a custom role
func (s *RoleService) Create(ctx context.Context, input CreateRoleInput) (*RoleDTO, error) {
	s.logger.Info("Creating new role",
		zap.String("code", input.Code),
		zap.String("tenant_id", input.TenantID.String()))

	role, err := identity.NewRole(input.TenantID, input.Code, common.Sanitize(input.Name))
	if err != nil {
		return nil, err
	}

	exists, err := s.roleRepo.ExistsByCode(ctx, input.TenantID, role.Code)
	if err != nil {
		s.logger.Error("Failed to check role code existence", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to check role code availability")
	}
	if exists {
		return nil, shared.NewDomainError("ROLE_CODE_EXISTS", "Role code already exists")
	}

	if input.Description != "" {
		if err := role.Update(role.Name, common.Sanitize(input.Description)); err != nil {
			return nil, err
		}
	}
	if len(input.Permissions) > 0 {
		if err := role.SetPermissions(input.Permissions); err != nil {
			return nil, err
		}
	}
	if input.CreatedBy != uuid.Nil {
		role.SetCreatedBy(input.CreatedBy)
	}

	if err := s.roleRepo.Create(ctx, role); err != nil {
		s.logger.Error("Failed to create role", zap.Error(err))
		return nil, err
	}
	s.publish(ctx, role)

	s.logger.Info("Role created",
		zap.String("role_id", role.ID.String()),
		zap.Int("permissions", len(role.Permissions)))
	return toRoleDTO(role, 0), nil
}

// GetByID returns a role with the number of users holding it
func (s *RoleService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*RoleDTO, error) {
	role, err := s.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	count, err := s.userRepo.CountByRole(ctx, role.ID)
	if err != nil {
		s.logger.Warn("Failed to count role users", zap.Error(err))
	}
	return toRoleDTO(role, count), nil
}

// List returns a page of roles
func (s *RoleService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[RoleDTO], error) {
	filter = filter.Normalize()
	roles, total, err := s.roleRepo.FindAll(ctx, tenantID, filter)
	if err != nil {
		s.logger.Error("Failed to list roles", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to list roles")
	}
	items := make([]RoleDTO, 0, len(roles))
	for _, r := range roles {
		items = append(items, *toRoleDTO(r, 0))
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Update changes name and description
func (s *RoleService) Update(ctx context.Context, input UpdateRoleInput) (*RoleDTO, error) {
	return s.mutate(ctx, input.TenantID, input.ID, func(r *identity.Role) error {
		return r.Update(common.Sanitize(input.Name), common.Sanitize(input.Description))
	})
}

// SetPermissions replaces the permissions of a role. Tokens already issued
// keep the old set until they are refreshed.
func (s *RoleService) SetPermissions(ctx context.Context, tenantID, id uuid.UUID, codes []string) (*RoleDTO, error) {
	return s.mutate(ctx, tenantID, id, func(r *identity.Role) error {
		if r.IsSystemRole && r.Code == identity.RoleCodeAdmin {
			return shared.NewDomainError("CANNOT_MODIFY_ADMIN", "The administrator role permissions cannot be changed")
		}
		return r.SetPermissions(codes)
	})
}

// Enable re-enables a role
func (s *RoleService) Enable(ctx context.Context, tenantID, id uuid.UUID) (*RoleDTO, error) {
	return s.mutate(ctx, tenantID, id, (*identity.Role).Enable)
}

// Disable stops a role from granting permissions
func (s *RoleService) Disable(ctx context.Context, tenantID, id uuid.UUID) (*RoleDTO, error) {
	return s.mutate(ctx, tenantID, id, (*identity.Role).Disable)
}

// Delete removes a custom role that no user holds
func (s *RoleService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	role, err := s.load(ctx, tenantID, id)
	if err != nil {
		return err
	}
	count, err := s.userRepo.CountByRole(ctx, role.ID)
	if err != nil {
		s.logger.Error("Failed to count role users", zap.Error(err))
		return shared.NewDomainError("INTERNAL_ERROR", "Failed to check role usage")
	}
	if err := role.CanDelete(count); err != nil {
		return err
	}
	if err := s.roleRepo.Delete(ctx, tenantID, id); err != nil {
		s.logger.Error("Failed to delete role", zap.Error(err))
		return err
	}
	s.logger.Info("Role deleted", zap.String("role_id", id.String()), zap.String("code", role.Code))
	return nil
}

// Permissions lists the permission catalog
func (s *RoleService) Permissions() []PermissionDTO {
	all := identity.AllPermissions()
	out := make([]PermissionDTO, len(all))
	for i, p := range all {
		out[i] = PermissionDTO{Code: p.Code, Resource: p.Resource, Action: p.Action}
	}
	return out
}

// EnsureDefaultRoles creates the built-in roles missing for a tenant and
// returns all of them
func (s *RoleService) EnsureDefaultRoles(ctx context.Context, tenantID uuid.UUID) ([]*identity.Role, error) {
	defaults, err := identity.DefaultRoles(tenantID)
	if err != nil {
		return nil, err
	}
	roles := make([]*identity.Role, 0, len(defaults))
	for _, role := range defaults {
		existing, err := s.roleRepo.FindByCode(ctx, tenantID, role.Code)
		if err == nil {
			roles = append(roles, existing)
			continue
		}
		if !shared.IsNotFound(err) {
			return nil, err
		}
		if err := s.roleRepo.Create(ctx, role); err != nil {
			return nil, err
		}
		s.publish(ctx, role)
		roles = append(roles, role)
	}
	return roles, nil
}

func (s *RoleService) load(ctx context.Context, tenantID, id uuid.UUID) (*identity.Role, error) {
	role, err := s.roleRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("ROLE_NOT_FOUND", "Role not found")
		}
		return nil, err
	}
	return role, nil
}

func (s *RoleService) mutate(ctx context.Context, tenantID, id uuid.UUID, fn func(*identity.Role) error) (*RoleDTO, error) {
	role, err := s.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := fn(role); err != nil {
		return nil, err
	}
	if err := s.roleRepo.Update(ctx, role); err != nil {
		s.logger.Error("Failed to update role", zap.String("role_id", id.String()), zap.Error(err))
		return nil, err
	}
	s.publish(ctx, role)
	return toRoleDTO(role, 0), nil
}

func (s *RoleService) publish(ctx context.Context, role *identity.Role) {
	if err := shared.PublishAndClear(ctx, s.publisher, role); err != nil {
		s.logger.Warn("Failed to publish role events", zap.Error(err))
	}
}

func toRoleDTO(role *identity.Role, userCount int64) *RoleDTO {
	return &RoleDTO{
		ID:           role.ID,
		TenantID:     role.TenantID,
		Code:         role.Code,
		Name:         role.Name,
		Description:  role.Description,
		IsSystemRole: role.IsSystemRole,
		IsEnabled:    role.IsEnabled,
		Permissions:  role.PermissionCodes(),
		UserCount:    userCount,
		CreatedAt:    role.CreatedAt,
		UpdatedAt:    role.UpdatedAt,
	}
}
