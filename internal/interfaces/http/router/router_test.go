package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func reply(body string) gin.HandlerFunc {
	return func(c *gin.Context) { c.String(http.StatusOK, body) }
}

func serve(engine *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestRouter_MountsUnderVersion(t *testing.T) {
	tests := []struct {
		name   string
		opts   []RouterOption
		target string
	}{
		{"default v1", nil, "/api/v1/manifests/unclosed"},
		{"explicit v2", []RouterOption{WithAPIVersion("v2")}, "/api/v2/manifests/unclosed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			r := NewRouter(engine, tt.opts...)
			r.Register(NewDomainGroup("manifests", "/manifests").GET("/unclosed", reply("open")))
			r.Setup()

			w := serve(engine, http.MethodGet, tt.target)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "open", w.Body.String())
		})
	}
}

func TestRouter_NothingMountedBeforeSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)
	r.Register(NewDomainGroup("system", "/system").GET("/ping", reply("pong")))

	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/api/v1/system/ping").Code)
	r.Setup()
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/system/ping").Code)
	assert.Equal(t, "/api/v1", r.BasePath())
}

func TestRouter_UseOnlyCoversAPI(t *testing.T) {
	engine := gin.New()
	engine.GET("/health", reply("ok"))
	r := NewRouter(engine).Use(func(c *gin.Context) {
		c.Header("X-Tenant-Guard", "on")
		c.Next()
	})
	r.Register(NewDomainGroup("fleet", "/fleet").GET("/vehicles", reply("[]"))).Setup()

	assert.Equal(t, "on", serve(engine, http.MethodGet, "/api/v1/fleet/vehicles").Header().Get("X-Tenant-Guard"))
	assert.Empty(t, serve(engine, http.MethodGet, "/health").Header().Get("X-Tenant-Guard"))
}

func TestDomainGroup_Methods(t *testing.T) {
	g := NewDomainGroup("fleet", "/fleet")
	g.GET("/vehicles", reply("list")).
		POST("/vehicles", reply("create")).
		PUT("/vehicles/:id", reply("update")).
		PATCH("/vehicles/:id", reply("patch")).
		DELETE("/vehicles/:id", reply("delete")).
		Handle(http.MethodOptions, "/vehicles", reply("options"))

	engine := gin.New()
	g.RegisterRoutes(engine.Group("/api/v1"))

	for method, body := range map[string]string{
		http.MethodGet:     "list",
		http.MethodPost:    "create",
		http.MethodOptions: "options",
	} {
		w := serve(engine, method, "/api/v1/fleet/vehicles")
		assert.Equal(t, body, w.Body.String(), method)
	}
	for method, body := range map[string]string{
		http.MethodPut:    "update",
		http.MethodPatch:  "patch",
		http.MethodDelete: "delete",
	} {
		w := serve(engine, method, "/api/v1/fleet/vehicles/42")
		assert.Equal(t, body, w.Body.String(), method)
	}
}

func TestDomainGroup_ChildrenInheritMiddleware(t *testing.T) {
	var seen []string
	g := NewDomainGroup("partner", "/partner").Use(func(c *gin.Context) {
		seen = append(seen, c.FullPath())
		c.Next()
	})
	g.Group("clients", "/clients").GET("", reply("clients"))
	g.Group("insurers", "/insurers").GET("", reply("insurers"))

	engine := gin.New()
	g.RegisterRoutes(engine.Group("/api/v1"))

	assert.Equal(t, "clients", serve(engine, http.MethodGet, "/api/v1/partner/clients").Body.String())
	assert.Equal(t, "insurers", serve(engine, http.MethodGet, "/api/v1/partner/insurers").Body.String())
	assert.Equal(t, []string{"/api/v1/partner/clients", "/api/v1/partner/insurers"}, seen)
}

func TestDomainGroup_ChildMiddlewareDoesNotLeak(t *testing.T) {
	g := NewDomainGroup("manifests", "/manifests")
	g.GET("", reply("list"))
	g.Group("actions", "/:id").Use(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusForbidden)
	}).POST("/transmit", reply("sent"))

	engine := gin.New()
	g.RegisterRoutes(engine.Group("/api/v1"))

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/manifests").Code)
	assert.Equal(t, http.StatusForbidden, serve(engine, http.MethodPost, "/api/v1/manifests/1/transmit").Code)
}

func TestDomainGroup_Routes(t *testing.T) {
	g := NewDomainGroup("fleet", "/fleet")
	assert.Equal(t, "fleet", g.Name())
	assert.Equal(t, "/fleet", g.Prefix())

	g.GET("/vehicles/by-plate/:plate", reply(""))
	trips := g.Group("trips", "/trips")
	trips.GET("", reply(""))
	trips.POST("/:id/start", reply(""))

	require.Equal(t, []RouteInfo{
		{Method: http.MethodGet, Path: "/fleet/vehicles/by-plate/:plate"},
		{Method: http.MethodGet, Path: "/fleet/trips"},
		{Method: http.MethodPost, Path: "/fleet/trips/:id/start"},
	}, g.Routes())

	admin := NewDomainGroup("admin", "")
	admin.GET("/tenant", reply(""))
	assert.Equal(t, []RouteInfo{{Method: http.MethodGet, Path: "/tenant"}}, admin.Routes())
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "/fleet", joinPath("/", "/fleet"))
	assert.Equal(t, "/fleet", joinPath("/fleet", ""))
	assert.Equal(t, "/fleet/trips/", joinPath("/fleet", "trips/"))
	assert.Equal(t, "/users/:id/unlock", joinPath("/users/:id", "/unlock"))
}
