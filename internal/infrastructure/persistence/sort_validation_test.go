package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "DESC"},
		{"ASC", "ASC"},
		{"  asc  ", "ASC"},
		{"desc", "DESC"},
		{"ASC; DROP TABLE manifests;--", "DESC"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ValidateSortOrder(tt.input), tt.input)
	}
}

func TestValidateSortField(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty returns default", "", "created_at"},
		{"allowed field", "number", "number"},
		{"trimmed", "  status ", "status"},
		{"case sensitive", "NUMBER", "created_at"},
		{"unknown field", "password_hash", "created_at"},
		{"injection", "number; DROP TABLE manifests;--", "created_at"},
		{"subquery", "number, (SELECT password_hash FROM users)", "created_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortField(tt.input, ManifestSortFields, "created_at"))
		})
	}
}

func TestSortFieldsWhitelists(t *testing.T) {
	whitelists := map[string]map[string]bool{
		"users":       UserSortFields,
		"roles":       RoleSortFields,
		"tenants":     TenantSortFields,
		"vehicles":    VehicleSortFields,
		"drivers":     DriverSortFields,
		"maintenance": MaintenanceSortFields,
		"trips":       TripSortFields,
		"clients":     ClientSortFields,
		"insurers":    InsurerSortFields,
		"suppliers":   SupplierSortFields,
		"manifests":   ManifestSortFields,
	}
	for name, whitelist := range whitelists {
		for field := range CommonSortFields {
			assert.True(t, whitelist[field], "%s should allow %s", name, field)
		}
		assert.Greater(t, len(whitelist), len(CommonSortFields), name)
	}
	assert.False(t, UserSortFields["password_hash"])
}
