package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"

	"swimdesk/internal/caching"
	"swimdesk/internal/config"
	"swimdesk/internal/handlers"
	"swimdesk/internal/jobs/background"
	"swimdesk/internal/lib/sl"
	"swimdesk/internal/metrics"
	"swimdesk/internal/middleware"
	"swimdesk/internal/repositories"
	"swimdesk/internal/services"
	"swimdesk/internal/tierstate"
	"swimdesk/pkg/database"
)

const version = "1.0.0"

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Println(config.Usage())
		return
	}

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)
	log.Info("starting swimdesk", slog.String("env", cfg.Env), slog.String("version", version))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", sl.Err(err))
		os.Exit(1)
	}
	log.Info("server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	pool, err := database.NewPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	redisClient := caching.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	defer redisClient.Close()
	cacheSvc := caching.NewRedisCacheService(redisClient)

	registry, err := tierstate.NewRegistry(
		caching.NewTierPersistence(redisClient, cfg.Session.TTL),
		log,
		tierstate.RegistryConfig{
			Capacity: cfg.Session.Capacity,
			LoadWait: cfg.Session.TierLoadWait,
		},
	)
	if err != nil {
		return err
	}

	minioSvc, err := services.NewMinioService(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.Region, cfg.Minio.UseSSL)
	if err != nil {
		return err
	}

	notificationSvc := services.NewNotificationService(redisClient, log)
	businessSvc := services.NewBusinessService(
		repositories.NewBusinessRepo(pool),
		cacheSvc,
		notificationSvc,
		minioSvc,
		services.BusinessServiceConfig{
			CacheTTL:        cfg.Directory.CacheTTL,
			OwnerResetTTL:   cfg.Directory.OwnerResetTTL,
			OwnerResetLimit: cfg.Directory.OwnerResetLimit,
			ExportBucket:    cfg.Minio.ExportBucket,
			ExportURLExpiry: cfg.Minio.URLExpiry,
		},
		log,
	)

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" && cfg.Auth.JWKSURL == "" {
		if cfg.Env == config.EnvProd {
			return errors.New("JWT_SECRET or JWKS_URL is required in prod")
		}
		jwtSecret = random.String(32)
		log.Warn("using generated JWT secret; admin tokens will not survive a restart")
	}
	verifier, err := middleware.NewJWTVerifier(middleware.JWTConfig{Secret: jwtSecret, JWKSURL: cfg.Auth.JWKSURL}, log)
	if err != nil {
		return err
	}
	defer verifier.Close()

	scheduler, err := background.NewJobScheduler(businessSvc, notificationSvc, background.Config{
		DirectoryRefreshInterval: cfg.Directory.RefreshInterval,
	}, log)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Error("failed to stop scheduler", sl.Err(err))
		}
	}()

	sessionCfg := middleware.SessionConfig{TTL: cfg.Session.TTL, Secure: cfg.Session.CookieSecure}

	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc, version, log)
	tierHandlers := handlers.NewTierHandlers(registry)
	sessionHandlers := handlers.NewSessionHandlers(registry, sessionCfg, log)
	gateHandlers := handlers.NewGateHandlers(registry)
	businessHandlers := handlers.NewBusinessHandlers(businessSvc, log)
	notificationHandlers := handlers.NewNotificationHandlers(notificationSvc, log)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = middleware.NewRequestValidator()

	// Global middleware
	e.Use(echoMiddleware.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Pre(echoMiddleware.RemoveTrailingSlash())
	e.Use(metrics.Middleware())

	// Version middleware
	versionMiddleware := middleware.NewVersionMiddleware()
	e.Use(versionMiddleware.APIVersionResolver())

	// Health endpoints (no auth required)
	e.GET("/health", healthHandlers.LivenessCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	e.GET("/metrics", metrics.Handler())

	// API routes
	v1 := e.Group("/v1")
	v1.Use(versionMiddleware.VersionHeader("v1"))

	v1.GET("/tiers", tierHandlers.ListTiers)
	v1.GET("/tiers/:tier", tierHandlers.GetTier)
	v1.GET("/features/:feature", tierHandlers.GetFeature)

	// Session routes
	session := v1.Group("", middleware.Session(sessionCfg))
	session.GET("/pricing", tierHandlers.GetPricing)
	session.GET("/session/tier", sessionHandlers.GetTier)
	session.PUT("/session/tier", sessionHandlers.SetTier)
	session.DELETE("/session", sessionHandlers.EndSession)
	session.GET("/session/features", sessionHandlers.ListFeatures)
	session.POST("/gate/evaluate", gateHandlers.Evaluate)
	session.POST("/gate/render", gateHandlers.Render)
	session.POST("/gate/badge", gateHandlers.Badge)

	// Admin routes (require JWT and the admin role)
	admin := v1.Group("/admin",
		verifier.Middleware(),
		middleware.RequireRole(cfg.Auth.AdminRole),
		middleware.AuditMutations(log),
	)
	admin.GET("/businesses", businessHandlers.ListBusinesses)
	admin.POST("/businesses/export", businessHandlers.ExportDirectory)
	admin.GET("/businesses/:id", businessHandlers.GetBusiness)
	admin.POST("/businesses/:id/changes", businessHandlers.SubmitChange)
	admin.POST("/businesses/:id/owner-reset", businessHandlers.RequestOwnerReset)
	admin.POST("/businesses/:id/owner-reset/confirm", businessHandlers.ConfirmOwnerReset)
	admin.DELETE("/businesses/:id/owner-reset", businessHandlers.CancelOwnerReset)
	admin.GET("/notifications", notificationHandlers.ListPending)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPServer.Port),
		Handler:      e,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.Int("port", cfg.HTTPServer.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case config.EnvProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case config.EnvDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
