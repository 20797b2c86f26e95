package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
	})
	return sr
}

func findSpan(t *testing.T, sr *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, span := range sr.Ended() {
		if span.Name() == name {
			return span
		}
	}
	require.Failf(t, "span not found", "no span named %q", name)
	return nil
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingWithConfig_Disabled(t *testing.T) {
	sr := setupTestTracer(t)
	r := gin.New()
	r.Use(TracingWithConfig(TracingConfig{Enabled: false}))
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracing_Attributes(t *testing.T) {
	sr := setupTestTracer(t)
	tenantID := uuid.NewString()

	r := gin.New()
	r.Use(RequestID(), Tracing(), withJWTTenant(tenantID), func(c *gin.Context) {
		c.Set(JWTUserIDKey, "user-7")
		c.Next()
	}, TracingAttributeInjector())
	r.GET("/api/v1/manifests/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/manifests/42", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	r.ServeHTTP(httptest.NewRecorder(), req)

	attrs := spanAttrs(findSpan(t, sr, "GET /api/v1/manifests/:id"))
	assert.Equal(t, "req-123", attrs["request_id"].AsString())
	assert.Equal(t, tenantID, attrs["tenant_id"].AsString())
	assert.Equal(t, "user-7", attrs["user_id"].AsString())
}

func TestTracing_TenantHeaderMustBeUUID(t *testing.T) {
	sr := setupTestTracer(t)
	r := gin.New()
	r.Use(Tracing(), TracingAttributeInjector())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(TenantHeaderKey, "<script>")
	req.Header.Set(RequestIDHeader, strings.Repeat("a", 300))
	r.ServeHTTP(httptest.NewRecorder(), req)

	attrs := spanAttrs(findSpan(t, sr, "GET /test"))
	assert.NotContains(t, attrs, attribute.Key("tenant_id"))
	assert.Len(t, attrs["request_id"].AsString(), MaxRequestIDLength)
}

func TestSpanErrorMarker(t *testing.T) {
	tests := []struct {
		status    int
		wantError bool
	}{
		{http.StatusOK, false},
		{http.StatusBadRequest, true},
		{http.StatusForbidden, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			sr := setupTestTracer(t)
			r := gin.New()
			r.Use(Tracing(), SpanErrorMarker())
			r.GET("/test", func(c *gin.Context) { c.Status(tt.status) })

			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

			span := findSpan(t, sr, "GET /test")
			text, hasText := spanAttrs(span)[AttrStatusText]
			if tt.wantError {
				assert.Equal(t, codes.Error, span.Status().Code)
				require.True(t, hasText)
				assert.Equal(t, http.StatusText(tt.status), text.AsString())
			} else {
				assert.NotEqual(t, codes.Error, span.Status().Code)
				assert.False(t, hasText)
			}
		})
	}
}

func TestSpanErrorMarker_WithoutSpan(t *testing.T) {
	r := gin.New()
	r.Use(SpanErrorMarker(), TracingAttributeInjector())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
