package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared"
)

// TenantRepository persists tenants
type TenantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	FindByCode(ctx context.Context, code string) (*Tenant, error)
	FindByCNPJ(ctx context.Context, cnpj string) (*Tenant, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Tenant, int64, error)
	// FindCertificatesExpiring returns active tenants whose certificate
	// expires within the given number of days
	FindCertificatesExpiring(ctx context.Context, withinDays int) ([]Tenant, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	ExistsByCNPJ(ctx context.Context, cnpj string) (bool, error)
	Save(ctx context.Context, tenant *Tenant) error
}

// UserRepository persists users. Usernames are unique across tenants so
// that login needs only the username.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter UserFilter) ([]*User, int64, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, tenantID uuid.UUID, email string) (bool, error)
	SaveUserRoles(ctx context.Context, user *User) error
	LoadUserRoles(ctx context.Context, user *User) error
	CountByRole(ctx context.Context, roleID uuid.UUID) (int64, error)
}

// UserFilter narrows user listings
type UserFilter struct {
	shared.Filter
	Status *UserStatus
	RoleID *uuid.UUID
}

// RoleRepository persists roles and their permissions
type RoleRepository interface {
	Create(ctx context.Context, role *Role) error
	Update(ctx context.Context, role *Role) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Role, error)
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Role, error)
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*Role, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]*Role, int64, error)
	ExistsByCode(ctx context.Context, tenantID uuid.UUID, code string) (bool, error)
}
