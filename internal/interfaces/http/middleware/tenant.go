package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/infrastructure/logger"
	"github.com/mdfe/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

const (
	TenantIDKey     = "tenant_id"
	TenantCodeKey   = "tenant_code"
	TenantHeaderKey = "X-Tenant-ID"
)

// TenantInfo is what a validator knows about the resolved tenant
type TenantInfo struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
}

// TenantValidator checks that a tenant exists and may use the API
type TenantValidator interface {
	ValidateTenant(ctx context.Context, tenantID uuid.UUID) (*TenantInfo, error)
}

// TenantValidatorFunc adapts a function to TenantValidator
type TenantValidatorFunc func(ctx context.Context, tenantID uuid.UUID) (*TenantInfo, error)

func (f TenantValidatorFunc) ValidateTenant(ctx context.Context, tenantID uuid.UUID) (*TenantInfo, error) {
	return f(ctx, tenantID)
}

// TenantMiddlewareConfig holds configuration for tenant middleware
type TenantMiddlewareConfig struct {
	// HeaderEnabled allows X-Tenant-ID when no JWT tenant is present
	HeaderEnabled bool
	SkipPaths     []string
	Required      bool
	Validator     TenantValidator
	Logger        *zap.Logger
}

// DefaultTenantConfig returns default tenant middleware configuration
func DefaultTenantConfig() TenantMiddlewareConfig {
	return TenantMiddlewareConfig{
		HeaderEnabled: true,
		SkipPaths:     []string{"/health", "/ready", "/metrics", "/api/v1/health", "/api/v1/auth/login", "/api/v1/auth/refresh"},
		Required:      true,
	}
}

// TenantMiddleware resolves the tenant of the request. The JWT claim wins;
// a header naming a different tenant than the token is rejected.
func TenantMiddleware() gin.HandlerFunc {
	return TenantMiddlewareWithConfig(DefaultTenantConfig())
}

// TenantMiddlewareWithConfig returns tenant middleware with custom configuration
func TenantMiddlewareWithConfig(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath || strings.HasPrefix(path, skipPath+"/") {
				c.Next()
				return
			}
		}

		tenantID := GetJWTTenantID(c)
		header := strings.TrimSpace(c.GetHeader(TenantHeaderKey))
		switch {
		case tenantID != "" && header != "" && !strings.EqualFold(header, tenantID):
			respondTenantError(c, http.StatusForbidden, dto.ErrCodeForbidden, "Tenant header does not match the authenticated tenant")
			return
		case tenantID == "" && cfg.HeaderEnabled:
			tenantID = header
		}

		if tenantID == "" {
			if cfg.Required {
				respondTenantError(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Tenant identification required")
				return
			}
			c.Next()
			return
		}

		id, err := uuid.Parse(tenantID)
		if err != nil {
			respondTenantError(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "Invalid tenant ID format")
			return
		}

		if cfg.Validator != nil {
			info, err := cfg.Validator.ValidateTenant(c.Request.Context(), id)
			if err != nil {
				log := cfg.Logger
				if log == nil {
					log = logger.L(c.Request.Context())
				}
				log.Warn("Tenant validation failed", zap.String("tenant_id", tenantID), zap.Error(err))
				respondTenantError(c, http.StatusForbidden, "TENANT_INACTIVE", "Tenant is not active")
				return
			}
			if info != nil {
				c.Set(TenantCodeKey, info.Code)
			}
		}

		c.Set(TenantIDKey, id.String())
		c.Request = c.Request.WithContext(logger.WithTenantID(c.Request.Context(), id.String()))
		c.Next()
	}
}

func respondTenantError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}

// GetTenantID retrieves the resolved tenant ID from gin.Context
func GetTenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}

// GetTenantCode retrieves the tenant code set by the validator
func GetTenantCode(c *gin.Context) string {
	return c.GetString(TenantCodeKey)
}
