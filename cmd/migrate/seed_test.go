package main

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFixture_Example(t *testing.T) {
	f, err := os.Open("seed.example.yaml")
	require.NoError(t, err)
	defer f.Close()

	fixture, err := ParseFixture(f)
	require.NoError(t, err)
	require.Len(t, fixture.Tenants, 1)

	tenant := fixture.Tenants[0]
	assert.Equal(t, "transportes-sul", tenant.Code)
	assert.Equal(t, "11222333000181", tenant.CNPJ)
	assert.Equal(t, "admin", tenant.Admin.Username)
	require.Len(t, tenant.Roles, 1)
	assert.Contains(t, tenant.Roles[0].Permissions, "manifest:transmit")
}

func TestParseFixture_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", "", "empty"},
		{"no tenants", "tenants: []\n", "no tenants"},
		{"unknown key", "tenants:\n  - code: a\n    colour: red\n", "decode seed file"},
		{"missing code", "tenants:\n  - cnpj: \"1\"\n", "code is required"},
		{
			"duplicate code",
			"tenants:\n  - code: a\n    admin: {username: u, password: p}\n  - code: a\n    admin: {username: u, password: p}\n",
			"duplicate code",
		},
		{"missing admin", "tenants:\n  - code: a\n", "admin username and password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixture(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTenantFixture_ProvisionInput(t *testing.T) {
	fx := TenantFixture{
		Code:      "acme",
		CNPJ:      "11222333000181",
		LegalName: "Acme Cargas",
		Address:   AddressFixture{UF: "sc", MunicipalityCode: "4205407"},
		Admin:     AdminFixture{Username: "root", Password: "secret123", Email: "root@acme.com"},
	}

	in := fx.ProvisionInput()

	assert.Equal(t, "acme", in.Tenant.Code)
	assert.Equal(t, "SC", in.Tenant.Address.UF)
	assert.Equal(t, "4205407", in.Tenant.Address.MunicipalityCode)
	assert.Equal(t, "homologation", in.Tenant.Environment)
	assert.Equal(t, 1, in.Tenant.Series)
	assert.Equal(t, 1, in.Tenant.EmitterType)
	assert.Equal(t, "root", in.AdminUsername)
	assert.Equal(t, "secret123", in.AdminPassword)
	assert.Equal(t, "root@acme.com", in.AdminEmail)
}

func TestTenantFixture_ProvisionInputKeepsExplicitValues(t *testing.T) {
	fx := TenantFixture{Code: "acme", Environment: "production", Series: 3, EmitterType: 2}

	in := fx.ProvisionInput()

	assert.Equal(t, "production", in.Tenant.Environment)
	assert.Equal(t, 3, in.Tenant.Series)
	assert.Equal(t, 2, in.Tenant.EmitterType)
}
