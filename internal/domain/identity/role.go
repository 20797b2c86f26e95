package identity

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared"
)

var roleCodePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// Built-in role codes created for every tenant
const (
	RoleCodeAdmin    = "ADMIN"
	RoleCodeOperator = "OPERATOR"
	RoleCodeViewer   = "VIEWER"
)

// Role groups permissions; users get the union of their roles' permissions
type Role struct {
	shared.TenantAggregateRoot
	Code         string
	Name         string
	Description  string
	IsSystemRole bool
	IsEnabled    bool
	Permissions  []Permission
}

// NewRole creates an enabled custom role
func NewRole(tenantID uuid.UUID, code, name string) (*Role, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) < 2 || len(code) > 50 || !roleCodePattern.MatchString(code) {
		return nil, shared.NewDomainError("INVALID_ROLE_CODE", "Role code must be 2-50 chars of A-Z, 0-9 and underscore, starting with a letter")
	}
	if err := validateRoleName(name); err != nil {
		return nil, err
	}
	role := &Role{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Code:                code,
		Name:                strings.TrimSpace(name),
		IsEnabled:           true,
		Permissions:         make([]Permission, 0),
	}
	role.AddDomainEvent(NewRoleEvent(EventTypeRoleCreated, role))
	return role, nil
}

// NewSystemRole creates a role that cannot be deleted
func NewSystemRole(tenantID uuid.UUID, code, name string) (*Role, error) {
	role, err := NewRole(tenantID, code, name)
	if err != nil {
		return nil, err
	}
	role.IsSystemRole = true
	return role, nil
}

// DefaultRoles builds the ADMIN, OPERATOR and VIEWER roles for a new tenant
func DefaultRoles(tenantID uuid.UUID) ([]*Role, error) {
	admin, err := NewSystemRole(tenantID, RoleCodeAdmin, "Administrador")
	if err != nil {
		return nil, err
	}
	admin.Permissions = AllPermissions()

	operator, err := NewSystemRole(tenantID, RoleCodeOperator, "Operador")
	if err != nil {
		return nil, err
	}
	for _, p := range AllPermissions() {
		if p.Resource == ResourceUser || p.Resource == ResourceRole || p.Resource == ResourceTenant {
			continue
		}
		operator.Permissions = append(operator.Permissions, p)
	}

	viewer, err := NewSystemRole(tenantID, RoleCodeViewer, "Consulta")
	if err != nil {
		return nil, err
	}
	viewer.Permissions = ReadOnlyPermissions()

	return []*Role{admin, operator, viewer}, nil
}

// Update changes the name and description
func (r *Role) Update(name, description string) error {
	if err := validateRoleName(name); err != nil {
		return err
	}
	if len(description) > 500 {
		return shared.NewDomainError("INVALID_DESCRIPTION", "Description cannot exceed 500 characters")
	}
	r.Name = strings.TrimSpace(name)
	r.Description = strings.TrimSpace(description)
	r.MarkModified()
	return nil
}

// SetPermissions replaces the permission set; codes are validated and deduplicated
func (r *Role) SetPermissions(codes []string) error {
	seen := make(map[string]struct{}, len(codes))
	perms := make([]Permission, 0, len(codes))
	for _, code := range codes {
		p, err := ParsePermission(code)
		if err != nil {
			return err
		}
		if _, dup := seen[p.Code]; dup {
			continue
		}
		seen[p.Code] = struct{}{}
		perms = append(perms, p)
	}
	r.Permissions = perms
	r.MarkModified()
	r.AddDomainEvent(NewRoleEvent(EventTypeRolePermissionsChanged, r))
	return nil
}

func (r *Role) HasPermission(code string) bool {
	for _, p := range r.Permissions {
		if p.Code == code {
			return true
		}
	}
	return false
}

// PermissionCodes returns the codes of the role's permissions
func (r *Role) PermissionCodes() []string {
	codes := make([]string, len(r.Permissions))
	for i, p := range r.Permissions {
		codes[i] = p.Code
	}
	return codes
}

func (r *Role) Enable() error {
	if r.IsEnabled {
		return shared.NewDomainError("ALREADY_ENABLED", "Role is already enabled")
	}
	r.IsEnabled = true
	r.MarkModified()
	return nil
}

func (r *Role) Disable() error {
	if !r.IsEnabled {
		return shared.NewDomainError("ALREADY_DISABLED", "Role is already disabled")
	}
	if r.IsSystemRole && r.Code == RoleCodeAdmin {
		return shared.NewDomainError("CANNOT_DISABLE_ADMIN", "The administrator role cannot be disabled")
	}
	r.IsEnabled = false
	r.MarkModified()
	return nil
}

// CanDelete returns an error when the role is protected or still assigned
func (r *Role) CanDelete(assignedUsers int64) error {
	if r.IsSystemRole {
		return shared.NewDomainError("CANNOT_DELETE_SYSTEM_ROLE", "System roles cannot be deleted")
	}
	if assignedUsers > 0 {
		return shared.NewDomainError("ROLE_IN_USE", "Role is assigned to users")
	}
	return nil
}

func validateRoleName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return shared.NewDomainError("INVALID_ROLE_NAME", "Role name is required and cannot exceed 100 characters")
	}
	return nil
}
