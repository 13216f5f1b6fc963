package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"coachhub/internal/caching"
	"coachhub/internal/config"
	"coachhub/internal/handlers"
	"coachhub/internal/jobs/background"
	"coachhub/internal/metrics"
	"coachhub/internal/middleware"
	"coachhub/internal/models"
	"coachhub/internal/realtime"
	"coachhub/internal/repositories"
	"coachhub/internal/services"
	"coachhub/internal/session"
	"coachhub/pkg/database"
	"coachhub/pkg/logger"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "coachhub")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient := caching.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = redisClient.Close() }()
	cacheSvc := caching.NewRedisCacheService(redisClient, log)
	changes := realtime.NewRedisChangeFeed(redisClient, log)

	minioSvc, err := services.NewMinioService(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		return fmt.Errorf("init minio: %w", err)
	}
	if err := minioSvc.EnsureBucketExists(ctx, cfg.MinioBucket); err != nil {
		// Uploads fail until storage is reachable; everything else keeps working.
		log.Warn("brand asset bucket unavailable", zap.String("bucket", cfg.MinioBucket), zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	authCfg := middleware.AuthConfig{Secret: cfg.JWTSecret}
	if cfg.JWKSURL != "" {
		jwks, err := middleware.NewJWKSKeyfunc(ctx, cfg.JWKSURL, log)
		if err != nil {
			return err
		}
		defer jwks.EndBackground()
		authCfg.KeyFunc = jwks.Keyfunc
	} else if cfg.JWTSecret == "" {
		return errors.New("either JWT_SECRET or JWKS_URL must be set")
	}

	// Repositories
	tenantRepo := repositories.NewTenantRepo(pool)
	profileRepo := repositories.NewProfileRepo(pool)
	messageRepo := repositories.NewMessageRepo(pool)
	blockRepo := repositories.NewBlockRepo(pool)
	reportRepo := repositories.NewReportRepo(pool)

	// Services
	resolver := services.NewTenantResolver(tenantRepo, cacheSvc, services.TenantResolverConfig{
		CacheTTL:         cfg.TenantCacheTTL,
		AllowDevOverride: cfg.IsDevelopment(),
	}, m, log)
	tenantSvc := services.NewTenantService(tenantRepo, profileRepo, cacheSvc, log)
	assetSvc := services.NewBrandAssetService(minioSvc, tenantSvc, cfg.MinioBucket, log)
	moderationSvc := services.NewModerationService(blockRepo, reportRepo, cacheSvc, cfg.BlockListCacheTTL, changes, log)
	router := services.NewMessageRouter(profileRepo, log)
	notifier := services.NewNotificationService(cfg.PushGatewayURL, log)
	chatSvc := services.NewChatService(messageRepo, profileRepo, router, moderationSvc, changes, notifier, m, log)

	// Handlers
	scope := handlers.NewTenantScope(resolver, cfg.IsDevelopment())
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc, version)
	brandingHandlers := handlers.NewBrandingHandlers(scope, log)
	tenantHandlers := handlers.NewTenantHandlers(tenantSvc, assetSvc, log)
	messageHandlers := handlers.NewMessageHandlers(chatSvc, scope, log)
	moderationHandlers := handlers.NewModerationHandlers(moderationSvc, scope, log)
	sessionHandlers := handlers.NewSessionHandlers(session.Dependencies{
		Resolver:   resolver,
		Chat:       chatSvc,
		Moderation: moderationSvc,
		History:    messageRepo,
		Changes:    changes,
		Cache:      cacheSvc,
		Metrics:    m,
		Log:        log,
	}, handlers.SessionConfig{
		CommandsPerSecond: cfg.WSCommandsPerSecond,
		CommandBurst:      cfg.WSCommandBurst,
		DevOverride:       cfg.IsDevelopment(),
		SessionTTL:        cfg.SessionTokenTTL,
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())
	e.Use(middleware.RequestLogger(log))

	// Health and metrics endpoints (no auth required)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	versions := middleware.NewVersionMiddleware()
	e.GET("/version", versions.Versions)
	v1 := versions.Group(e, "v1")

	v1.GET("/branding", brandingHandlers.GetBranding, middleware.OptionalAuth(authCfg, profileRepo))

	protected := v1.Group("", middleware.JWTMiddleware(authCfg), middleware.ProfileMiddleware(profileRepo))

	writeLimit := func(name string) echo.MiddlewareFunc {
		return middleware.RateLimit(cacheSvc, name, cfg.HTTPWritesPerMinute, time.Minute, log)
	}

	protected.GET("/messages", messageHandlers.ListMessages)
	protected.POST("/messages", messageHandlers.SendMessage, writeLimit("send"))
	protected.GET("/messages/unread-count", messageHandlers.UnreadCount)
	protected.POST("/messages/:id/read", messageHandlers.MarkRead)

	protected.GET("/blocks", moderationHandlers.ListBlocks)
	protected.POST("/blocks", moderationHandlers.BlockUser)
	protected.POST("/reports", moderationHandlers.ReportUser, writeLimit("report"))

	protected.GET("/session/ws", sessionHandlers.Connect)

	adminOnly := middleware.RequireRole(models.RoleAdmin)
	tenantAccess := middleware.RequireTenantAccess()
	protected.GET("/tenants", tenantHandlers.ListTenants, adminOnly)
	protected.POST("/tenants", tenantHandlers.CreateTenant, adminOnly)
	protected.GET("/tenants/:id", tenantHandlers.GetTenant, tenantAccess)
	protected.PUT("/tenants/:id", tenantHandlers.UpdateTenant, tenantAccess)
	protected.DELETE("/tenants/:id", tenantHandlers.DeleteTenant, adminOnly)
	protected.PUT("/tenants/:id/logo", tenantHandlers.UploadLogo, tenantAccess)
	protected.PUT("/tenants/:id/favicon", tenantHandlers.UploadFavicon, tenantAccess)

	scheduler, err := background.NewJobScheduler(cacheSvc, reportRepo, background.Intervals{}, m, log)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Warn("scheduler shutdown failed", zap.Error(err))
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.Info("coachhub server starting",
			zap.String("version", version),
			zap.Int("port", cfg.Port),
			zap.String("env", cfg.AppEnv),
		)
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
