package identity

import (
	"sort"
	"strings"

	"github.com/mdfe/backend/internal/domain/shared"
)

// Resources protected by the permission model
const (
	ResourceTenant      = "tenant"
	ResourceUser        = "user"
	ResourceRole        = "role"
	ResourceVehicle     = "vehicle"
	ResourceDriver      = "driver"
	ResourceClient      = "client"
	ResourceInsurer     = "insurer"
	ResourceSupplier    = "supplier"
	ResourceMaintenance = "maintenance"
	ResourceTrip        = "trip"
	ResourceManifest    = "manifest"
)

// Actions
const (
	ActionRead     = "read"
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionTransmit = "transmit"
	ActionCancel   = "cancel"
	ActionClose    = "close"
	ActionPrint    = "print"
)

var crudActions = []string{ActionRead, ActionCreate, ActionUpdate, ActionDelete}

// catalog maps each resource to the actions it supports
var catalog = map[string][]string{
	ResourceTenant:      {ActionRead, ActionUpdate},
	ResourceUser:        crudActions,
	ResourceRole:        crudActions,
	ResourceVehicle:     crudActions,
	ResourceDriver:      crudActions,
	ResourceClient:      crudActions,
	ResourceInsurer:     crudActions,
	ResourceSupplier:    crudActions,
	ResourceMaintenance: crudActions,
	ResourceTrip:        crudActions,
	ResourceManifest:    append(append([]string{}, crudActions...), ActionTransmit, ActionCancel, ActionClose, ActionPrint),
}

// Permission is a resource:action pair
type Permission struct {
	Code        string
	Resource    string
	Action      string
	Description string
}

// NewPermission validates resource and action against the catalog
func NewPermission(resource, action string) (Permission, error) {
	resource = strings.ToLower(strings.TrimSpace(resource))
	action = strings.ToLower(strings.TrimSpace(action))

	actions, ok := catalog[resource]
	if !ok {
		return Permission{}, shared.NewDomainError("INVALID_PERMISSION", "Unknown resource: "+resource)
	}
	for _, a := range actions {
		if a == action {
			return Permission{Code: resource + ":" + action, Resource: resource, Action: action}, nil
		}
	}
	return Permission{}, shared.NewDomainError("INVALID_PERMISSION", "Action "+action+" is not valid for "+resource)
}

// ParsePermission parses "resource:action"
func ParsePermission(code string) (Permission, error) {
	parts := strings.SplitN(code, ":", 2)
	if len(parts) != 2 {
		return Permission{}, shared.NewDomainError("INVALID_PERMISSION", "Permission code must be resource:action")
	}
	return NewPermission(parts[0], parts[1])
}

// AllPermissions lists every permission in the catalog, sorted by code
func AllPermissions() []Permission {
	perms := make([]Permission, 0, 64)
	for resource, actions := range catalog {
		for _, action := range actions {
			perms = append(perms, Permission{Code: resource + ":" + action, Resource: resource, Action: action})
		}
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Code < perms[j].Code })
	return perms
}

// ReadOnlyPermissions lists every read permission
func ReadOnlyPermissions() []Permission {
	out := make([]Permission, 0, len(catalog))
	for _, p := range AllPermissions() {
		if p.Action == ActionRead {
			out = append(out, p)
		}
	}
	return out
}
