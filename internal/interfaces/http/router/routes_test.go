package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mdfe/backend/internal/infrastructure/auth"
	"github.com/mdfe/backend/internal/interfaces/http/handler"
	"github.com/mdfe/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// apiEngine mounts the API with nil services. Requests that reach a
// handler stop at its tenant guard because the claims carry no tenant.
func apiEngine(permissions ...string) *gin.Engine {
	middleware.SetupValidator()
	h := Handlers{
		Auth:        handler.NewAuthHandler(nil),
		User:        handler.NewUserHandler(nil),
		Role:        handler.NewRoleHandler(nil),
		Tenant:      handler.NewTenantHandler(nil),
		Vehicle:     handler.NewVehicleHandler(nil),
		Driver:      handler.NewDriverHandler(nil),
		Maintenance: handler.NewMaintenanceHandler(nil),
		Trip:        handler.NewTripHandler(nil),
		Client:      handler.NewClientHandler(nil),
		Insurer:     handler.NewInsurerHandler(nil),
		Supplier:    handler.NewSupplierHandler(nil),
		Manifest:    handler.NewManifestHandler(nil),
		System:      handler.NewSystemHandler("mdfe", "test"),
	}
	engine := gin.New()
	r := NewRouter(engine).Use(func(c *gin.Context) {
		c.Set(middleware.JWTClaimsKey, &auth.Claims{Permissions: permissions})
		c.Next()
	})
	for _, g := range h.DomainGroups(nil) {
		r.Register(g)
	}
	r.Setup()
	return engine
}

func TestDomainGroups_Layout(t *testing.T) {
	registered := make(map[string]bool)
	for _, route := range apiEngine().Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	expected := []string{
		"POST /api/v1/auth/login",
		"POST /api/v1/auth/refresh",
		"GET /api/v1/auth/me",
		"GET /api/v1/tenant",
		"POST /api/v1/tenant/certificate",
		"POST /api/v1/users/:id/unlock",
		"GET /api/v1/roles/permissions",
		"GET /api/v1/fleet/vehicles/by-plate/:plate",
		"POST /api/v1/fleet/drivers/:id/deactivate",
		"POST /api/v1/fleet/maintenance-orders/:id/complete",
		"PUT /api/v1/fleet/trips/:id/manifest",
		"DELETE /api/v1/partner/clients/:id",
		"POST /api/v1/partner/insurers/:id/activate",
		"GET /api/v1/partner/suppliers",
		"GET /api/v1/manifests/unclosed",
		"GET /api/v1/manifests/by-key/:key",
		"POST /api/v1/manifests/:id/transmit",
		"GET /api/v1/manifests/:id/status",
		"POST /api/v1/manifests/:id/cancel",
		"POST /api/v1/manifests/:id/close",
		"POST /api/v1/manifests/:id/drivers",
		"GET /api/v1/manifests/:id/damdfe",
		"GET /api/v1/manifests/:id/xml",
		"GET /api/v1/sefaz/status/:uf",
		"GET /api/v1/system/info",
	}
	for _, route := range expected {
		assert.True(t, registered[route], "missing route %s", route)
	}
}

func TestDomainGroups_Permissions(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		permission string
	}{
		{"list vehicles", http.MethodGet, "/api/v1/fleet/vehicles", "vehicle:read"},
		{"create client", http.MethodPost, "/api/v1/partner/clients", "client:create"},
		{"activate driver", http.MethodPost, "/api/v1/fleet/drivers/7a1c6f7e-3f5e-4d8a-9c43-2f6a1d0b9e11/activate", "driver:update"},
		{"transmit", http.MethodPost, "/api/v1/manifests/7a1c6f7e-3f5e-4d8a-9c43-2f6a1d0b9e11/transmit", "manifest:transmit"},
		{"damdfe", http.MethodGet, "/api/v1/manifests/7a1c6f7e-3f5e-4d8a-9c43-2f6a1d0b9e11/damdfe", "manifest:print"},
		{"reset password", http.MethodPost, "/api/v1/users/7a1c6f7e-3f5e-4d8a-9c43-2f6a1d0b9e11/reset-password", "user:update"},
		{"fiscal settings", http.MethodPut, "/api/v1/tenant/fiscal-settings", "tenant:update"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			apiEngine("manifest:read").ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, http.StatusForbidden, w.Code)

			w = httptest.NewRecorder()
			apiEngine(tt.permission).ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, http.StatusUnauthorized, w.Code, "handler tenant guard expected")
		})
	}
}

func TestDomainGroups_PublicLogin(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	apiEngine().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_VALIDATION")
}
