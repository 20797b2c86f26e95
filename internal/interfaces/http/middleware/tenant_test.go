package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withJWTTenant(tenantID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tenantID != "" {
			c.Set(JWTTenantIDKey, tenantID)
		}
		c.Next()
	}
}

func tenantRouter(jwtTenant string, cfg TenantMiddlewareConfig, seen *string) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), withJWTTenant(jwtTenant), TenantMiddlewareWithConfig(cfg))
	handler := func(c *gin.Context) {
		if seen != nil {
			*seen = GetTenantID(c)
		}
		c.Status(http.StatusOK)
	}
	r.GET("/api/v1/manifests", handler)
	r.GET("/health", handler)
	return r
}

func tenantRequest(r http.Handler, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set(TenantHeaderKey, header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTenantMiddleware_Resolution(t *testing.T) {
	jwtTenant := uuid.NewString()
	headerTenant := uuid.NewString()

	tests := []struct {
		name       string
		jwt        string
		header     string
		wantStatus int
		wantTenant string
	}{
		{"from JWT", jwtTenant, "", http.StatusOK, jwtTenant},
		{"JWT with matching header", jwtTenant, jwtTenant, http.StatusOK, jwtTenant},
		{"JWT with other tenant header", jwtTenant, headerTenant, http.StatusForbidden, ""},
		{"header only", "", headerTenant, http.StatusOK, headerTenant},
		{"missing", "", "", http.StatusUnauthorized, ""},
		{"malformed", "", "acme", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			r := tenantRouter(tt.jwt, DefaultTenantConfig(), &seen)
			w := tenantRequest(r, "/api/v1/manifests", tt.header)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantTenant, seen)
		})
	}
}

func TestTenantMiddleware_HeaderDisabled(t *testing.T) {
	cfg := DefaultTenantConfig()
	cfg.HeaderEnabled = false
	r := tenantRouter("", cfg, nil)

	assert.Equal(t, http.StatusUnauthorized, tenantRequest(r, "/api/v1/manifests", uuid.NewString()).Code)
}

func TestTenantMiddleware_SkipAndOptional(t *testing.T) {
	r := tenantRouter("", DefaultTenantConfig(), nil)
	assert.Equal(t, http.StatusOK, tenantRequest(r, "/health", "").Code)

	cfg := DefaultTenantConfig()
	cfg.Required = false
	var seen string
	r = tenantRouter("", cfg, &seen)
	assert.Equal(t, http.StatusOK, tenantRequest(r, "/api/v1/manifests", "").Code)
	assert.Empty(t, seen)
}

func TestTenantMiddleware_Validator(t *testing.T) {
	active := uuid.New()
	cfg := DefaultTenantConfig()
	cfg.Validator = TenantValidatorFunc(func(_ context.Context, id uuid.UUID) (*TenantInfo, error) {
		if id != active {
			return nil, errors.New("tenant suspended")
		}
		return &TenantInfo{ID: id, Code: "acme"}, nil
	})

	r := gin.New()
	r.Use(RequestID(), withJWTTenant(active.String()), TenantMiddlewareWithConfig(cfg))
	r.GET("/api/v1/manifests", func(c *gin.Context) {
		assert.Equal(t, "acme", GetTenantCode(c))
		assert.Equal(t, active.String(), logger.GetTenantID(c.Request.Context()))
		c.Status(http.StatusOK)
	})
	assert.Equal(t, http.StatusOK, tenantRequest(r, "/api/v1/manifests", "").Code)

	r = tenantRouter(uuid.NewString(), cfg, nil)
	w := tenantRequest(r, "/api/v1/manifests", "")
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "TENANT_INACTIVE", errorCode(t, w))
}

func TestGetTenantID_Empty(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, GetTenantID(c))
	assert.Empty(t, GetTenantCode(c))
}
