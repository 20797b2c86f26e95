package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mdfe/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
)

func TestResourceFromRoute(t *testing.T) {
	tests := []struct {
		route string
		want  string
	}{
		{"/api/v1/manifests/:id/transmit", "manifests"},
		{"/api/v1/fleet/vehicles", "fleet"},
		{"/api/v2/sefaz/status/:uf", "sefaz"},
		{"/health", "health"},
		{"/api/v1/:id", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			assert.Equal(t, tt.want, resourceFromRoute(tt.route))
		})
	}
}

func TestIsVersionSegment(t *testing.T) {
	assert.True(t, isVersionSegment("v1"))
	assert.True(t, isVersionSegment("V12"))
	assert.False(t, isVersionSegment("v"))
	assert.False(t, isVersionSegment("vehicles"))
	assert.False(t, isVersionSegment("1"))
}

func TestProfilingMiddleware_Labels(t *testing.T) {
	var labels map[string]string
	r := gin.New()
	r.Use(withJWTTenant("tenant-1"), Profiling())
	r.POST("/api/v1/manifests/:id/transmit", func(c *gin.Context) {
		labels = extractProfilingLabels(c)
		c.Status(http.StatusAccepted)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/manifests/1/transmit", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "POST manifests", labels[telemetry.ProfilingLabelOperation])
	assert.Equal(t, "tenant-1", labels[telemetry.ProfilingLabelTenantID])
}

func TestProfilingMiddleware_TenantMiddlewareFallback(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
	c.Set(TenantIDKey, "tenant-2")

	assert.Equal(t, "tenant-2", extractProfilingLabels(c)[telemetry.ProfilingLabelTenantID])
}

func TestProfilingMiddleware_SkipsAndDisabled(t *testing.T) {
	for _, mw := range []gin.HandlerFunc{Profiling(), ProfilingWithConfig(ProfilingConfig{Enabled: false})} {
		r := gin.New()
		r.Use(mw)
		r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
		r.GET("/swagger/*any", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
