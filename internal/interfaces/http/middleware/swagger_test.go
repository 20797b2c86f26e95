package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mdfe/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
)

func swaggerRequest(cfg config.SwaggerConfig, jwt gin.HandlerFunc, remoteIP string) int {
	r := gin.New()
	r.GET("/swagger/*any", SwaggerProtection(cfg, jwt), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
	req.RemoteAddr = remoteIP + ":51000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestSwaggerProtection(t *testing.T) {
	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) }
	allow := func(c *gin.Context) {}

	tests := []struct {
		name string
		cfg  config.SwaggerConfig
		jwt  gin.HandlerFunc
		ip   string
		want int
	}{
		{"disabled", config.SwaggerConfig{}, nil, "10.0.0.1", http.StatusNotFound},
		{"open", config.SwaggerConfig{Enabled: true}, nil, "10.0.0.1", http.StatusOK},
		{"whitelisted IP", config.SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.0.0.1"}}, nil, "10.0.0.1", http.StatusOK},
		{"IP not listed", config.SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.0.0.1"}}, nil, "10.0.0.2", http.StatusForbidden},
		{"CIDR match", config.SwaggerConfig{Enabled: true, AllowedIPs: []string{"192.168.0.0/16"}}, nil, "192.168.40.7", http.StatusOK},
		{"CIDR miss", config.SwaggerConfig{Enabled: true, AllowedIPs: []string{"192.168.0.0/16"}}, nil, "172.16.0.1", http.StatusForbidden},
		{"auth rejected", config.SwaggerConfig{Enabled: true, RequireAuth: true}, deny, "10.0.0.1", http.StatusUnauthorized},
		{"auth accepted", config.SwaggerConfig{Enabled: true, RequireAuth: true}, allow, "10.0.0.1", http.StatusOK},
		{"IP checked before auth", config.SwaggerConfig{Enabled: true, RequireAuth: true, AllowedIPs: []string{"10.0.0.1"}}, allow, "10.9.9.9", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, swaggerRequest(tt.cfg, tt.jwt, tt.ip))
		})
	}
}

func TestParseAllowedIPs_IgnoresGarbage(t *testing.T) {
	prefixes := parseAllowedIPs([]string{"not-an-ip", "10.0.0.0/33", " 127.0.0.1 ", "::1"})
	assert.Len(t, prefixes, 2)
	assert.True(t, isIPAllowed("127.0.0.1", prefixes))
	assert.True(t, isIPAllowed("::1", prefixes))
	assert.False(t, isIPAllowed("garbage", prefixes))
}
