package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "github.com/mdfe/backend/docs"
	fleetapp "github.com/mdfe/backend/internal/application/fleet"
	identityapp "github.com/mdfe/backend/internal/application/identity"
	manifestapp "github.com/mdfe/backend/internal/application/manifest"
	partnerapp "github.com/mdfe/backend/internal/application/partner"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/infrastructure/auth"
	"github.com/mdfe/backend/internal/infrastructure/cache"
	"github.com/mdfe/backend/internal/infrastructure/config"
	"github.com/mdfe/backend/internal/infrastructure/event"
	"github.com/mdfe/backend/internal/infrastructure/logger"
	"github.com/mdfe/backend/internal/infrastructure/metrics"
	"github.com/mdfe/backend/internal/infrastructure/migration"
	"github.com/mdfe/backend/internal/infrastructure/persistence"
	"github.com/mdfe/backend/internal/infrastructure/printing"
	"github.com/mdfe/backend/internal/infrastructure/scheduler"
	"github.com/mdfe/backend/internal/infrastructure/sefaz"
	"github.com/mdfe/backend/internal/infrastructure/storage"
	"github.com/mdfe/backend/internal/infrastructure/telemetry"
	"github.com/mdfe/backend/internal/interfaces/http/handler"
	"github.com/mdfe/backend/internal/interfaces/http/middleware"
	"github.com/mdfe/backend/internal/interfaces/http/router"
	"github.com/mdfe/backend/migrations"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

//	@title			MDF-e Backend API
//	@version		1.0
//	@description	Multi-tenant backend for issuing and managing electronic cargo manifests (MDF-e)

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const (
	shutdownTimeout = 30 * time.Second

	// authorized manifests replayed into the SEFAZ simulator at startup
	simulatorRestoreLimit = 5000
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// Telemetry first so the OTLP log bridge can be teed into the logger
	tel, err := telemetry.Setup(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled {
		if bridged, err := logger.New(logCfg, tel.LogCore(logger.ParseLevel(cfg.Log.Level))); err == nil {
			log = bridged
		} else {
			log.Warn("Failed to bridge logs to OpenTelemetry", zap.Error(err))
		}
	}
	defer func() {
		_ = logger.Sync(log)
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()

	log.Info("Starting MDF-e Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := tel.DB.RegisterOtelGorm(db.DB); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := migrateOnBoot(db, cfg.Database, log); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	// Redis or in-memory stores
	kv, err := cache.Open(ctx, cfg.Redis, cache.WithLogger(log))
	if err != nil {
		log.Fatal("Failed to initialize cache backend", zap.Error(err))
	}
	defer func() {
		if err := kv.Close(); err != nil {
			log.Error("Error closing cache backend", zap.Error(err))
		}
	}()
	var blacklist auth.TokenBlacklist = auth.NewInMemoryTokenBlacklist()
	if kv.Client != nil {
		blacklist = auth.NewRedisTokenBlacklist(kv.Client)
	}

	// Object storage for certificates, XML and DAMDFE
	var objects manifestapp.ObjectStore = storage.NewMemoryObjectStorage()
	if cfg.Storage.Configured() {
		s3Store, err := storage.NewS3ObjectStorage(ctx, cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize object storage", zap.Error(err))
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			log.Warn("Object storage bucket check failed", zap.String("bucket", s3Store.Bucket()), zap.Error(err))
		}
		objects = s3Store
	} else {
		log.Warn("Object storage not configured, documents are kept in memory")
	}

	prom := metrics.New()

	// Initialize repositories
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	userRepo := persistence.NewGormUserRepository(db.DB)
	roleRepo := persistence.NewGormRoleRepository(db.DB)
	vehicleRepo := persistence.NewGormVehicleRepository(db.DB)
	driverRepo := persistence.NewGormDriverRepository(db.DB)
	maintenanceRepo := persistence.NewGormMaintenanceOrderRepository(db.DB)
	tripRepo := persistence.NewGormTripRepository(db.DB)
	clientRepo := persistence.NewGormClientRepository(db.DB)
	insurerRepo := persistence.NewGormInsurerRepository(db.DB)
	supplierRepo := persistence.NewGormSupplierRepository(db.DB)
	manifestRepo := persistence.NewGormManifestRepository(db.DB)

	// Event bus with its handlers
	eventBus := event.NewInMemoryEventBus(log)
	serializer := event.NewSerializer()
	event.RegisterDomainEvents(serializer)
	eventBus.Subscribe(event.NewMetricsHandler(prom))
	eventBus.Subscribe(event.NewAuditLogHandler(log))

	var natsBridge *event.NATSBridge
	if cfg.NATS.Enabled {
		natsBridge, err = event.ConnectNATS(ctx, cfg.NATS, serializer, log)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer func() {
			if err := natsBridge.Close(); err != nil {
				log.Error("Error closing NATS bridge", zap.Error(err))
			}
		}()
		eventBus.Subscribe(event.NewIdempotentHandler(natsBridge, kv.Idempotency, log))
	}

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Identity services (auth, user, role, tenant)
	jwtService := auth.NewJWTService(cfg.JWT)
	authService := identityapp.NewAuthService(userRepo, roleRepo, tenantRepo, jwtService, blacklist,
		identityapp.DefaultAuthServiceConfig(), log)
	userService := identityapp.NewUserService(userRepo, roleRepo, authService, eventBus, log)
	roleService := identityapp.NewRoleService(roleRepo, userRepo, eventBus, log)
	tenantService := identityapp.NewTenantService(tenantRepo, roleService, userService, objects, eventBus, log)

	// Fleet and partner registries
	vehicleService := fleetapp.NewVehicleService(vehicleRepo, tripRepo, maintenanceRepo, eventBus)
	driverService := fleetapp.NewDriverService(driverRepo, tripRepo, eventBus)
	maintenanceService := fleetapp.NewMaintenanceService(maintenanceRepo, vehicleRepo, supplierRepo, eventBus, log)
	tripService := fleetapp.NewTripService(tripRepo, vehicleRepo, driverRepo, eventBus)
	clientService := partnerapp.NewClientService(clientRepo, eventBus)
	insurerService := partnerapp.NewInsurerService(insurerRepo, eventBus)
	supplierService := partnerapp.NewSupplierService(supplierRepo, eventBus)

	// Manifest lifecycle
	gateway := sefaz.NewSimulatedGateway(cfg.Sefaz, sefaz.WithLogger(log), sefaz.WithObserver(prom))
	if n, err := gateway.Restore(ctx, manifestRepo, simulatorRestoreLimit); err != nil {
		log.Warn("Failed to restore SEFAZ simulator state", zap.Error(err))
	} else {
		log.Info("SEFAZ simulator restored", zap.Int("manifests", n))
	}
	manifestService := manifestapp.NewManifestService(manifestapp.Repositories{
		Manifests: manifestRepo,
		Tenants:   tenantRepo,
		Vehicles:  vehicleRepo,
		Drivers:   driverRepo,
		Clients:   clientRepo,
		Insurers:  insurerRepo,
	}, gateway, eventBus, log)
	manifestService.SetObjectStore(objects, cfg.Storage.PresignTTL)
	manifestService.SetIdempotencyStore(kv.Idempotency, 0)
	manifestService.SetMetrics(prom)
	if instruments, err := telemetry.NewManifestInstruments(tel.Meter.Meter(telemetry.TracerName)); err == nil {
		manifestService.SetInstruments(instruments)
	} else {
		log.Warn("Failed to create manifest instruments", zap.Error(err))
	}

	// DAMDFE rendering
	templates, err := printing.NewTemplateStore(cfg.Printing.TemplateDir, log)
	if err != nil {
		log.Fatal("Failed to load DAMDFE templates", zap.Error(err))
	}
	if cfg.Printing.WatchTemplate && cfg.Printing.TemplateDir != "" {
		watcher, err := printing.WatchTemplates(templates, log)
		if err != nil {
			log.Warn("Template hot reload disabled", zap.Error(err))
		} else {
			defer func() { _ = watcher.Close() }()
		}
	}
	pdfRenderer := printing.NewChromedpRenderer(printing.ConfigFromPrinting(cfg.Printing, log))
	defer func() { _ = pdfRenderer.Close() }()
	manifestService.SetRenderer(printing.NewGenerator(templates, pdfRenderer, log))

	// Background jobs
	if cfg.Scheduler.Enabled {
		jobs := scheduler.NewScheduler(scheduler.ConfigFrom(cfg.Scheduler), log, scheduler.WithObserver(prom))
		if err := scheduler.RegisterDefaultJobs(jobs, cfg.Scheduler, scheduler.Deps{
			Retrier:   manifestService,
			Manifests: manifestRepo,
			Tenants:   tenantRepo,
			Metrics:   prom,
		}, log); err != nil {
			log.Fatal("Failed to register scheduled jobs", zap.Error(err))
		}
		if err := jobs.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer func() {
			if err := jobs.Stop(context.Background()); err != nil {
				log.Error("Error stopping scheduler", zap.Error(err))
			}
		}()
		log.Info("Scheduler started",
			zap.Int("max_concurrent_jobs", cfg.Scheduler.MaxConcurrentJobs),
			zap.Duration("job_timeout", cfg.Scheduler.JobTimeout),
		)
	}

	// Readiness dependencies
	checks := []handler.DependencyCheck{{Name: "database", Check: db.Ping}}
	if kv.Client != nil {
		checks = append(checks, handler.DependencyCheck{Name: "redis", Optional: true, Check: func(ctx context.Context) error {
			return kv.Client.Ping(ctx).Err()
		}})
	}
	if natsBridge != nil {
		checks = append(checks, handler.DependencyCheck{Name: "nats", Optional: true, Check: natsBridge.Ping})
	}

	// Initialize HTTP handlers
	handlers := router.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		User:        handler.NewUserHandler(userService),
		Role:        handler.NewRoleHandler(roleService),
		Tenant:      handler.NewTenantHandler(tenantService),
		Vehicle:     handler.NewVehicleHandler(vehicleService),
		Driver:      handler.NewDriverHandler(driverService),
		Maintenance: handler.NewMaintenanceHandler(maintenanceService),
		Trip:        handler.NewTripHandler(tripService),
		Client:      handler.NewClientHandler(clientService),
		Insurer:     handler.NewInsurerHandler(insurerService),
		Supplier:    handler.NewSupplierHandler(supplierService),
		Manifest:    handler.NewManifestHandler(manifestService),
		System:      handler.NewSystemHandler(cfg.App.Name, version, checks...),
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Limiters are swept by the same context that stops the server
	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	// Apply middleware stack in order:
	// RequestID, Recovery, Logger, Tracing, Secure, CORS, BodyLimit, Metrics, RateLimit
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.HTTP.CORSAllowOrigins,
		AllowMethods: cfg.HTTP.CORSAllowMethods,
		AllowHeaders: cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders: []string{
			middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining",
			middleware.IdempotentReplayedHeader,
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.Metrics.Enabled {
		engine.Use(prom.GinMiddleware())
	}
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		limiter.StartJanitor(serverCtx, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(limiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	var authLimit gin.HandlerFunc
	if cfg.HTTP.AuthRateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow)
		limiter.StartJanitor(serverCtx, cfg.HTTP.AuthRateLimitWindow)
		authLimit = middleware.AuthRateLimit(limiter)
	}

	// Probes, metrics and documentation live outside the versioned API
	engine.GET("/health", handlers.System.Health)
	engine.GET("/ready", handlers.System.Ready)
	if cfg.Metrics.Enabled {
		engine.GET(cfg.Metrics.Path, gin.WrapH(prom.Handler()))
	}

	jwtAuth := middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: blacklist,
		SkipPaths:      router.PublicAPIPaths,
		Logger:         log,
	})
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(cfg.Swagger, middleware.JWTAuthMiddleware(jwtService)),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	r := router.NewRouter(engine, router.WithAPIVersion("v1")).Use(
		jwtAuth,
		middleware.TenantMiddlewareWithConfig(middleware.TenantMiddlewareConfig{
			HeaderEnabled: true,
			SkipPaths:     router.PublicAPIPaths,
			Required:      true,
			Validator:     tenantValidator(tenantRepo),
			Logger:        log,
		}),
		middleware.TracingAttributeInjector(),
		middleware.ProfilingWithConfig(middleware.ProfilingConfig{Enabled: cfg.Telemetry.ProfilingEnabled}),
	)
	for _, group := range handlers.DomainGroups(authLimit) {
		r.Register(group)
	}
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")
	stopServer()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	log.Info("Server exited gracefully")
}

var errTenantInactive = errors.New("tenant is inactive")

// tenantValidator rejects tokens of deactivated companies. Suspended
// tenants keep read access; the manifest service stops them from issuing.
func tenantValidator(tenants identity.TenantRepository) middleware.TenantValidator {
	return middleware.TenantValidatorFunc(func(ctx context.Context, id uuid.UUID) (*middleware.TenantInfo, error) {
		tenant, err := tenants.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if tenant.Status == identity.TenantStatusInactive {
			return nil, errTenantInactive
		}
		return &middleware.TenantInfo{ID: tenant.ID, Code: tenant.Code}, nil
	})
}

// migrateOnBoot applies the embedded SQL migrations on postgres and falls
// back to gorm's schema sync on sqlite
func migrateOnBoot(db *persistence.Database, cfg config.DatabaseConfig, log *zap.Logger) error {
	if cfg.Driver == "sqlite" {
		return db.AutoMigrate()
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, "", migrations.FS, log)
	if err != nil {
		return err
	}
	return m.Up()
}
