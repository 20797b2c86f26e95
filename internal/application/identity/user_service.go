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

// SessionRevoker ends the sessions of a user, implemented by AuthService
type SessionRevoker interface {
	RevokeUserSessions(ctx context.Context, userID uuid.UUID) error
}

// UserService handles user management operations
type UserService struct {
	userRepo  identity.UserRepository
	roleRepo  identity.RoleRepository
	sessions  SessionRevoker
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewUserService creates a new user service. sessions and publisher may be nil.
func NewUserService(
	userRepo identity.UserRepository,
	roleRepo identity.RoleRepository,
	sessions SessionRevoker,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo:  userRepo,
		roleRepo:  roleRepo,
		sessions:  sessions,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateUserInput contains input for creating a user
type CreateUserInput struct {
	TenantID    uuid.UUID
	CreatedBy   uuid.UUID
	Username    string
	Password    string
	Email       string
	Phone       string
	DisplayName string
	RoleIDs     []uuid.UUID
	// Pending users must be activated before they can log in
	Pending bool
}

// UpdateUserInput contains input for updating a user; nil fields are kept
type UpdateUserInput struct {
	TenantID    uuid.UUID
	ID          uuid.UUID
	Email       *string
	Phone       *string
	DisplayName *string
}

// UserListFilter narrows a user listing
type UserListFilter struct {
	shared.Filter
	Status string
	RoleID *uuid.UUID
}

// UserDTO represents user data transfer object
type UserDTO struct {
	ID                 uuid.UUID   `json:"id"`
	TenantID           uuid.UUID   `json:"tenant_id"`
	Username           string      `json:"username"`
	Email              string      `json:"email,omitempty"`
	Phone              string      `json:"phone,omitempty"`
	DisplayName        string      `json:"display_name"`
	Status             string      `json:"status"`
	RoleIDs            []uuid.UUID `json:"role_ids"`
	LastLoginAt        *time.Time  `json:"last_login_at,omitempty"`
	LockedUntil        *time.Time  `json:"locked_until,omitempty"`
	MustChangePassword bool        `json:"must_change_password"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// Create creates a new user
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*UserDTO, error) {
	s.logger.Info("Creating new user",
		zap.String("username", input.Username),
		zap.String("tenant_id", input.TenantID.String()))

	exists, err := s.userRepo.ExistsByUsername(ctx, input.Username)
	if err != nil {
		s.logger.Error("Failed to check username existence", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to check username availability")
	}
	if exists {
		return nil, shared.NewDomainError("USERNAME_EXISTS", "Username already exists")
	}

	if input.Email != "" {
		exists, err := s.userRepo.ExistsByEmail(ctx, input.TenantID, input.Email)
		if err != nil {
			s.logger.Error("Failed to check email existence", zap.Error(err))
			return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to check email availability")
		}
		if exists {
			return nil, shared.NewDomainError("EMAIL_EXISTS", "Email already exists")
		}
	}

	if err := s.ensureRolesExist(ctx, input.TenantID, input.RoleIDs); err != nil {
		return nil, err
	}

	newUser := identity.NewActiveUser
	if input.Pending {
		newUser = identity.NewUser
	}
	user, err := newUser(input.TenantID, input.Username, input.Password)
	if err != nil {
		return nil, err
	}
	if input.CreatedBy != uuid.Nil {
		user.SetCreatedBy(input.CreatedBy)
	}

	if err := user.UpdateProfile(common.Sanitize(input.DisplayName), input.Email, input.Phone); err != nil {
		return nil, err
	}
	if len(input.RoleIDs) > 0 {
		if err := user.SetRoles(input.RoleIDs); err != nil {
			return nil, err
		}
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, err
	}
	s.publish(ctx, user)

	s.logger.Info("User created",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username))
	return toUserDTO(user), nil
}

// GetByID returns a user of the tenant with its roles
func (s *UserService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*UserDTO, error) {
	user, err := s.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return toUserDTO(user), nil
}

// List returns a page of users
func (s *UserService) List(ctx context.Context, tenantID uuid.UUID, filter UserListFilter) (*shared.Paginated[UserDTO], error) {
	f := identity.UserFilter{Filter: filter.Filter.Normalize(), RoleID: filter.RoleID}
	if filter.Status != "" {
		status := identity.UserStatus(filter.Status)
		f.Status = &status
	}

	users, total, err := s.userRepo.FindAll(ctx, tenantID, f)
	if err != nil {
		s.logger.Error("Failed to list users", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to list users")
	}

	items := make([]UserDTO, 0, len(users))
	for _, u := range users {
		items = append(items, *toUserDTO(u))
	}
	page := shared.NewPaginated(items, total, f.Page, f.PageSize)
	return &page, nil
}

// Update changes the profile of a user
func (s *UserService) Update(ctx context.Context, input UpdateUserInput) (*UserDTO, error) {
	user, err := s.load(ctx, input.TenantID, input.ID)
	if err != nil {
		return nil, err
	}

	displayName, email, phone := user.DisplayName, user.Email, user.Phone
	if input.DisplayName != nil {
		displayName = common.Sanitize(*input.DisplayName)
	}
	if input.Email != nil && *input.Email != user.Email {
		if *input.Email != "" {
			exists, err := s.userRepo.ExistsByEmail(ctx, input.TenantID, *input.Email)
			if err != nil {
				return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to check email availability")
			}
			if exists {
				return nil, shared.NewDomainError("EMAIL_EXISTS", "Email already exists")
			}
		}
		email = *input.Email
	}
	if input.Phone != nil {
		phone = *input.Phone
	}

	if err := user.UpdateProfile(displayName, email, phone); err != nil {
		return nil, err
	}
	return s.save(ctx, user)
}

// Delete removes a user. Users cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, tenantID, id, actorID uuid.UUID) error {
	if id == actorID {
		return shared.NewDomainError("CANNOT_DELETE_SELF", "You cannot delete your own user")
	}
	if _, err := s.load(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.userRepo.Delete(ctx, tenantID, id); err != nil {
		s.logger.Error("Failed to delete user", zap.Error(err))
		return err
	}
	s.revokeSessions(ctx, id)
	s.logger.Info("User deleted", zap.String("user_id", id.String()))
	return nil
}

// Activate lets the user log in
func (s *UserService) Activate(ctx context.Context, tenantID, id uuid.UUID) (*UserDTO, error) {
	return s.mutate(ctx, tenantID, id, (*identity.User).Activate)
}

// Deactivate blocks the user and ends its sessions
func (s *UserService) Deactivate(ctx context.Context, tenantID, id, actorID uuid.UUID) (*UserDTO, error) {
	if id == actorID {
		return nil, shared.NewDomainError("CANNOT_DEACTIVATE_SELF", "You cannot deactivate your own user")
	}
	dto, err := s.mutate(ctx, tenantID, id, (*identity.User).Deactivate)
	if err != nil {
		return nil, err
	}
	s.revokeSessions(ctx, id)
	return dto, nil
}

// Unlock lifts a lock set after repeated login failures
func (s *UserService) Unlock(ctx context.Context, tenantID, id uuid.UUID) (*UserDTO, error) {
	return s.mutate(ctx, tenantID, id, (*identity.User).Unlock)
}

// ResetPassword sets a new password chosen by an administrator. The user
// must change it at the next login and existing sessions end.
func (s *UserService) ResetPassword(ctx context.Context, tenantID, id uuid.UUID, newPassword string) error {
	user, err := s.load(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := user.SetPassword(newPassword); err != nil {
		return err
	}
	user.ForcePasswordChange()
	if _, err := s.save(ctx, user); err != nil {
		return err
	}
	s.revokeSessions(ctx, id)
	s.logger.Info("User password reset", zap.String("user_id", id.String()))
	return nil
}

// AssignRoles replaces the roles of a user
func (s *UserService) AssignRoles(ctx context.Context, tenantID, id uuid.UUID, roleIDs []uuid.UUID) (*UserDTO, error) {
	user, err := s.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureRolesExist(ctx, tenantID, roleIDs); err != nil {
		return nil, err
	}
	if err := user.SetRoles(roleIDs); err != nil {
		return nil, err
	}
	if err := s.userRepo.SaveUserRoles(ctx, user); err != nil {
		s.logger.Error("Failed to save user roles", zap.Error(err))
		return nil, err
	}
	s.publish(ctx, user)

	s.logger.Info("User roles assigned",
		zap.String("user_id", id.String()),
		zap.Int("role_count", len(user.RoleIDs)))
	return toUserDTO(user), nil
}

func (s *UserService) load(ctx context.Context, tenantID, id uuid.UUID) (*identity.User, error) {
	user, err := s.userRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("USER_NOT_FOUND", "User not found")
		}
		return nil, err
	}
	if err := s.userRepo.LoadUserRoles(ctx, user); err != nil {
		s.logger.Error("Failed to load user roles", zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (s *UserService) mutate(ctx context.Context, tenantID, id uuid.UUID, fn func(*identity.User) error) (*UserDTO, error) {
	user, err := s.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := fn(user); err != nil {
		return nil, err
	}
	return s.save(ctx, user)
}

func (s *UserService) save(ctx context.Context, user *identity.User) (*UserDTO, error) {
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Error("Failed to update user", zap.String("user_id", user.ID.String()), zap.Error(err))
		return nil, err
	}
	s.publish(ctx, user)
	return toUserDTO(user), nil
}

func (s *UserService) ensureRolesExist(ctx context.Context, tenantID uuid.UUID, roleIDs []uuid.UUID) error {
	if len(roleIDs) == 0 {
		return nil
	}
	roles, err := s.roleRepo.FindByIDs(ctx, tenantID, roleIDs)
	if err != nil {
		s.logger.Error("Failed to load roles", zap.Error(err))
		return shared.NewDomainError("INTERNAL_ERROR", "Failed to validate roles")
	}
	found := make(map[uuid.UUID]struct{}, len(roles))
	for _, r := range roles {
		found[r.ID] = struct{}{}
	}
	for _, id := range roleIDs {
		if _, ok := found[id]; !ok {
			return shared.NewDomainError("ROLE_NOT_FOUND", "Role not found: "+id.String())
		}
	}
	return nil
}

func (s *UserService) revokeSessions(ctx context.Context, userID uuid.UUID) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.RevokeUserSessions(ctx, userID); err != nil {
		s.logger.Warn("Failed to revoke user sessions", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

func (s *UserService) publish(ctx context.Context, user *identity.User) {
	if err := shared.PublishAndClear(ctx, s.publisher, user); err != nil {
		s.logger.Warn("Failed to publish user events", zap.Error(err))
	}
}

func toUserDTO(user *identity.User) *UserDTO {
	roleIDs := user.RoleIDs
	if roleIDs == nil {
		roleIDs = []uuid.UUID{}
	}
	return &UserDTO{
		ID:                 user.ID,
		TenantID:           user.TenantID,
		Username:           user.Username,
		Email:              user.Email,
		Phone:              user.Phone,
		DisplayName:        user.GetDisplayNameOrUsername(),
		Status:             string(user.Status),
		RoleIDs:            roleIDs,
		LastLoginAt:        user.LastLoginAt,
		LockedUntil:        user.LockedUntil,
		MustChangePassword: user.MustChangePassword,
		CreatedAt:          user.CreatedAt,
		UpdatedAt:          user.UpdatedAt,
	}
}
