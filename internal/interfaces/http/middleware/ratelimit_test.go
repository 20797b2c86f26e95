package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mdfe/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
}

func TestRateLimiter_Allow(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(3, time.Minute).WithClock(clock.Now)

	for i, want := range []int{2, 1, 0} {
		remaining, _, ok := rl.Allow("10.0.0.1")
		require.True(t, ok, "request %d", i+1)
		assert.Equal(t, want, remaining)
	}

	_, retryAfter, ok := rl.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, 20*time.Second, retryAfter)

	// other keys have their own bucket
	_, _, ok = rl.Allow("10.0.0.2")
	assert.True(t, ok)

	clock.Advance(20 * time.Second)
	_, _, ok = rl.Allow("10.0.0.1")
	assert.True(t, ok)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(1, time.Minute).WithClock(clock.Now)

	rl.Allow("idle")
	clock.Advance(90 * time.Second)
	rl.Allow("active")
	clock.Advance(45 * time.Second)
	rl.Cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.entries, "idle")
	assert.Contains(t, rl.entries, "active")
}

func TestRateLimiter_StartJanitorStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rl := NewRateLimiter(1, time.Minute)
	rl.StartJanitor(ctx, time.Millisecond)
	rl.StartJanitor(ctx, 0)
	cancel()
}

func limitedRouter(mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), mw)
	r.POST("/api/v1/auth/login", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/manifests", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func fromIP(r http.Handler, method, path, ip, tenant string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = ip + ":40000"
	if tenant != "" {
		req.Header.Set(TenantHeaderKey, tenant)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute).WithClock(newClock().Now)
	r := limitedRouter(RateLimit(rl))

	w := fromIP(r, http.MethodGet, "/api/v1/manifests", "192.168.1.10", "tenant-a")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, fromIP(r, http.MethodGet, "/api/v1/manifests", "192.168.1.10", "tenant-a").Code)

	w = fromIP(r, http.MethodGet, "/api/v1/manifests", "192.168.1.10", "tenant-a")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, dto.ErrCodeRateLimited, errorCode(t, w))
	assert.Equal(t, "30", w.Header().Get("Retry-After"))

	// same IP under another tenant is a separate bucket
	assert.Equal(t, http.StatusOK, fromIP(r, http.MethodGet, "/api/v1/manifests", "192.168.1.10", "tenant-b").Code)
}

func TestAuthRateLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute).WithClock(newClock().Now)
	r := limitedRouter(AuthRateLimit(rl))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, fromIP(r, http.MethodPost, "/api/v1/auth/login", "192.168.1.100", "").Code)
	}

	w := fromIP(r, http.MethodPost, "/api/v1/auth/login", "192.168.1.100", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Too many authentication attempts")
}

func TestRateLimitByKey(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute).WithClock(newClock().Now)
	r := limitedRouter(RateLimitByKey(rl, func(*gin.Context) string { return "global" }))

	assert.Equal(t, http.StatusOK, fromIP(r, http.MethodGet, "/api/v1/manifests", "10.0.0.1", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, fromIP(r, http.MethodGet, "/api/v1/manifests", "10.0.0.2", "").Code)
}
