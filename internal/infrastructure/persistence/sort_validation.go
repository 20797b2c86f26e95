package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// CommonSortFields contains fields common to every table
var CommonSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// withCommon adds the common fields to an entity specific set
func withCommon(fields ...string) map[string]bool {
	m := make(map[string]bool, len(fields)+len(CommonSortFields))
	for f := range CommonSortFields {
		m[f] = true
	}
	for _, f := range fields {
		m[f] = true
	}
	return m
}

// UserSortFields contains allowed sort fields for users
var UserSortFields = withCommon("username", "email", "display_name", "status", "last_login_at")

// RoleSortFields contains allowed sort fields for roles
var RoleSortFields = withCommon("code", "name", "is_enabled")

// TenantSortFields contains allowed sort fields for tenants
var TenantSortFields = withCommon("code", "cnpj", "legal_name", "uf", "status", "certificate_expires_at")

// VehicleSortFields contains allowed sort fields for vehicles
var VehicleSortFields = withCommon("plate", "internal_code", "kind", "licensing_uf", "status")

// DriverSortFields contains allowed sort fields for drivers
var DriverSortFields = withCommon("name", "cpf", "cnh_expires_at", "status")

// MaintenanceSortFields contains allowed sort fields for maintenance orders
var MaintenanceSortFields = withCommon("scheduled_for", "opened_at", "status", "kind", "cost")

// TripSortFields contains allowed sort fields for trips
var TripSortFields = withCommon("planned_departure", "started_at", "finished_at", "status")

// ClientSortFields contains allowed sort fields for clients
var ClientSortFields = withCommon("name", "document", "status")

// InsurerSortFields contains allowed sort fields for insurers
var InsurerSortFields = withCommon("name", "cnpj", "policy_end_at", "status")

// SupplierSortFields contains allowed sort fields for suppliers
var SupplierSortFields = withCommon("name", "document", "category", "status")

// ManifestSortFields contains allowed sort fields for manifests
var ManifestSortFields = withCommon("number", "series", "status", "start_uf", "end_uf", "issued_at", "authorized_at", "cargo_value")
