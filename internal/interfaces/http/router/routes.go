package router

import (
	"github.com/gin-gonic/gin"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/interfaces/http/handler"
	"github.com/mdfe/backend/internal/interfaces/http/middleware"
)

// Handlers are the HTTP handlers served under the API prefix
type Handlers struct {
	Auth        *handler.AuthHandler
	User        *handler.UserHandler
	Role        *handler.RoleHandler
	Tenant      *handler.TenantHandler
	Vehicle     *handler.VehicleHandler
	Driver      *handler.DriverHandler
	Maintenance *handler.MaintenanceHandler
	Trip        *handler.TripHandler
	Client      *handler.ClientHandler
	Insurer     *handler.InsurerHandler
	Supplier    *handler.SupplierHandler
	Manifest    *handler.ManifestHandler
	System      *handler.SystemHandler
}

// PublicAPIPaths are served without a token
var PublicAPIPaths = []string{
	"/api/v1/auth/login",
	"/api/v1/auth/refresh",
	"/api/v1/system/ping",
}

func can(resource, action string) gin.HandlerFunc {
	return middleware.RequireResourceAction(resource, action)
}

// DomainGroups lays out the API. authLimit guards the credential
// endpoints and may be nil.
func (h Handlers) DomainGroups(authLimit gin.HandlerFunc) []*DomainGroup {
	return []*DomainGroup{
		h.authGroup(authLimit),
		h.adminGroup(),
		h.fleetGroup(),
		h.partnerGroup(),
		h.manifestGroup(),
		h.sefazGroup(),
		h.systemGroup(),
	}
}

func (h Handlers) authGroup(authLimit gin.HandlerFunc) *DomainGroup {
	g := NewDomainGroup("auth", "/auth")
	limited := func(next gin.HandlerFunc) []gin.HandlerFunc {
		if authLimit == nil {
			return []gin.HandlerFunc{next}
		}
		return []gin.HandlerFunc{authLimit, next}
	}
	g.POST("/login", limited(h.Auth.Login)...)
	g.POST("/refresh", limited(h.Auth.RefreshToken)...)
	g.POST("/logout", h.Auth.Logout)
	g.GET("/me", h.Auth.GetCurrentUser)
	g.PUT("/password", h.Auth.ChangePassword)
	g.POST("/force-logout", can(identity.ResourceUser, identity.ActionUpdate), h.Auth.ForceLogout)
	return g
}

// adminGroup holds company configuration, users and roles
func (h Handlers) adminGroup() *DomainGroup {
	g := NewDomainGroup("admin", "")

	g.GET("/tenant", can(identity.ResourceTenant, identity.ActionRead), h.Tenant.Get)
	g.PUT("/tenant", can(identity.ResourceTenant, identity.ActionUpdate), h.Tenant.Update)
	g.PUT("/tenant/fiscal-settings", can(identity.ResourceTenant, identity.ActionUpdate), h.Tenant.UpdateFiscalSettings)
	g.POST("/tenant/certificate", can(identity.ResourceTenant, identity.ActionUpdate), h.Tenant.UploadCertificate)

	users := g.Group("users", "/users")
	users.Use(middleware.RequireResource(identity.ResourceUser))
	users.POST("", h.User.Create)
	users.GET("", h.User.List)
	users.GET("/:id", h.User.GetByID)
	users.PUT("/:id", h.User.Update)
	users.DELETE("/:id", h.User.Delete)
	users.PUT("/:id/roles", h.User.AssignRoles)
	userActions := g.Group("user-actions", "/users/:id")
	userActions.Use(can(identity.ResourceUser, identity.ActionUpdate))
	userActions.POST("/activate", h.User.Activate)
	userActions.POST("/deactivate", h.User.Deactivate)
	userActions.POST("/unlock", h.User.Unlock)
	userActions.POST("/reset-password", h.User.ResetPassword)

	roles := g.Group("roles", "/roles")
	roles.Use(middleware.RequireResource(identity.ResourceRole))
	roles.POST("", h.Role.Create)
	roles.GET("", h.Role.List)
	roles.GET("/permissions", h.Role.Permissions)
	roles.GET("/:id", h.Role.GetByID)
	roles.PUT("/:id", h.Role.Update)
	roles.PUT("/:id/permissions", h.Role.SetPermissions)
	roles.DELETE("/:id", h.Role.Delete)
	roleActions := g.Group("role-actions", "/roles/:id")
	roleActions.Use(can(identity.ResourceRole, identity.ActionUpdate))
	roleActions.POST("/enable", h.Role.Enable)
	roleActions.POST("/disable", h.Role.Disable)
	return g
}

// lifecycle is the CRUD plus activate/deactivate shape shared by the
// registries
type lifecycle interface {
	Create(*gin.Context)
	GetByID(*gin.Context)
	List(*gin.Context)
	Update(*gin.Context)
	Activate(*gin.Context)
	Deactivate(*gin.Context)
	Delete(*gin.Context)
}

func registry(parent *DomainGroup, name, resource string, h lifecycle) {
	g := parent.Group(name, "/"+name)
	g.Use(middleware.RequireResource(resource))
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.GetByID)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)

	actions := parent.Group(name+"-actions", "/"+name+"/:id")
	actions.Use(can(resource, identity.ActionUpdate))
	actions.POST("/activate", h.Activate)
	actions.POST("/deactivate", h.Deactivate)
}

func (h Handlers) fleetGroup() *DomainGroup {
	g := NewDomainGroup("fleet", "/fleet")
	registry(g, "vehicles", identity.ResourceVehicle, h.Vehicle)
	g.GET("/vehicles/by-plate/:plate", can(identity.ResourceVehicle, identity.ActionRead), h.Vehicle.GetByPlate)
	registry(g, "drivers", identity.ResourceDriver, h.Driver)

	orders := g.Group("maintenance-orders", "/maintenance-orders")
	orders.GET("", can(identity.ResourceMaintenance, identity.ActionRead), h.Maintenance.List)
	orders.GET("/:id", can(identity.ResourceMaintenance, identity.ActionRead), h.Maintenance.GetByID)
	orders.POST("", can(identity.ResourceMaintenance, identity.ActionCreate), h.Maintenance.Create)
	orders.POST("/:id/start", can(identity.ResourceMaintenance, identity.ActionUpdate), h.Maintenance.Start)
	orders.POST("/:id/complete", can(identity.ResourceMaintenance, identity.ActionUpdate), h.Maintenance.Complete)
	orders.POST("/:id/cancel", can(identity.ResourceMaintenance, identity.ActionUpdate), h.Maintenance.Cancel)

	trips := g.Group("trips", "/trips")
	trips.GET("", can(identity.ResourceTrip, identity.ActionRead), h.Trip.List)
	trips.GET("/:id", can(identity.ResourceTrip, identity.ActionRead), h.Trip.GetByID)
	trips.POST("", can(identity.ResourceTrip, identity.ActionCreate), h.Trip.Create)
	trips.POST("/:id/start", can(identity.ResourceTrip, identity.ActionUpdate), h.Trip.Start)
	trips.POST("/:id/finish", can(identity.ResourceTrip, identity.ActionUpdate), h.Trip.Finish)
	trips.POST("/:id/cancel", can(identity.ResourceTrip, identity.ActionUpdate), h.Trip.Cancel)
	trips.PUT("/:id/manifest", can(identity.ResourceTrip, identity.ActionUpdate), h.Trip.LinkManifest)
	return g
}

func (h Handlers) partnerGroup() *DomainGroup {
	g := NewDomainGroup("partner", "/partner")
	registry(g, "clients", identity.ResourceClient, h.Client)
	registry(g, "insurers", identity.ResourceInsurer, h.Insurer)
	registry(g, "suppliers", identity.ResourceSupplier, h.Supplier)
	return g
}

func (h Handlers) manifestGroup() *DomainGroup {
	const res = identity.ResourceManifest
	g := NewDomainGroup("manifests", "/manifests")
	g.POST("", can(res, identity.ActionCreate), h.Manifest.Create)
	g.GET("", can(res, identity.ActionRead), h.Manifest.List)
	g.GET("/unclosed", can(res, identity.ActionRead), h.Manifest.ListUnclosed)
	g.GET("/by-key/:key", can(res, identity.ActionRead), h.Manifest.GetByAccessKey)
	g.GET("/:id", can(res, identity.ActionRead), h.Manifest.GetByID)
	g.PUT("/:id", can(res, identity.ActionUpdate), h.Manifest.Update)
	g.DELETE("/:id", can(res, identity.ActionDelete), h.Manifest.Delete)

	g.POST("/:id/transmit", can(res, identity.ActionTransmit), h.Manifest.Transmit)
	g.GET("/:id/status", can(res, identity.ActionRead), h.Manifest.Status)
	g.POST("/:id/cancel", can(res, identity.ActionCancel), h.Manifest.Cancel)
	g.POST("/:id/close", can(res, identity.ActionClose), h.Manifest.Close)
	g.POST("/:id/drivers", can(res, identity.ActionUpdate), h.Manifest.IncludeDriver)
	g.GET("/:id/damdfe", can(res, identity.ActionPrint), h.Manifest.DAMDFE)
	g.GET("/:id/xml", can(res, identity.ActionRead), h.Manifest.XML)
	return g
}

func (h Handlers) sefazGroup() *DomainGroup {
	g := NewDomainGroup("sefaz", "/sefaz")
	g.GET("/status", can(identity.ResourceManifest, identity.ActionRead), h.Manifest.ServiceStatus)
	g.GET("/status/:uf", can(identity.ResourceManifest, identity.ActionRead), h.Manifest.ServiceStatus)
	return g
}

func (h Handlers) systemGroup() *DomainGroup {
	g := NewDomainGroup("system", "/system")
	g.GET("/ping", h.System.Ping)
	g.GET("/info", h.System.GetSystemInfo)
	return g
}
