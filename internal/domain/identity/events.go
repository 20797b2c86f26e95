package identity

import (
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared"
)

// Aggregate type names
const (
	AggregateTypeTenant = "Tenant"
	AggregateTypeUser   = "User"
	AggregateTypeRole   = "Role"
)

// Event types
const (
	EventTypeTenantCreated            = "TenantCreated"
	EventTypeTenantUpdated            = "TenantUpdated"
	EventTypeTenantStatusChanged      = "TenantStatusChanged"
	EventTypeTenantEnvironmentChanged = "TenantEnvironmentChanged"

	EventTypeUserCreated         = "UserCreated"
	EventTypeUserPasswordChanged = "UserPasswordChanged"
	EventTypeUserRolesChanged    = "UserRolesChanged"
	EventTypeUserStatusChanged   = "UserStatusChanged"

	EventTypeRoleCreated            = "RoleCreated"
	EventTypeRolePermissionsChanged = "RolePermissionsChanged"
)

// TenantEvent carries a snapshot of the tenant fields subscribers care about
type TenantEvent struct {
	shared.BaseDomainEvent
	Code        string       `json:"code"`
	CNPJ        string       `json:"cnpj"`
	Status      TenantStatus `json:"status"`
	Environment Environment  `json:"environment"`
}

func NewTenantEvent(eventType string, t *Tenant) *TenantEvent {
	return &TenantEvent{
		// a tenant is its own tenant
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeTenant, t.ID, t.ID),
		Code:            t.Code,
		CNPJ:            t.CNPJ,
		Status:          t.Status,
		Environment:     t.Environment,
	}
}

// UserEvent is raised on user lifecycle changes
type UserEvent struct {
	shared.BaseDomainEvent
	Username string      `json:"username"`
	Status   UserStatus  `json:"status"`
	RoleIDs  []uuid.UUID `json:"role_ids,omitempty"`
}

func NewUserEvent(eventType string, u *User) *UserEvent {
	return &UserEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeUser, u.ID, u.TenantID),
		Username:        u.Username,
		Status:          u.Status,
		RoleIDs:         append([]uuid.UUID(nil), u.RoleIDs...),
	}
}

// RoleEvent is raised on role creation and permission changes
type RoleEvent struct {
	shared.BaseDomainEvent
	Code        string   `json:"code"`
	Permissions []string `json:"permissions,omitempty"`
}

func NewRoleEvent(eventType string, r *Role) *RoleEvent {
	return &RoleEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeRole, r.ID, r.TenantID),
		Code:            r.Code,
		Permissions:     r.PermissionCodes(),
	}
}
