package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"keyforge.backend/internal/config"
	"keyforge.backend/internal/infrastructure/datasources/postgres"
	"keyforge.backend/internal/infrastructure/jobs"
	"keyforge.backend/internal/infrastructure/repositories"
	"keyforge.backend/internal/infrastructure/webhook"
	"keyforge.backend/internal/interfaces/http/handlers"
	"keyforge.backend/internal/interfaces/http/middleware"
	"keyforge.backend/internal/usecases"
	"keyforge.backend/pkg/jwt"
	"keyforge.backend/pkg/logger"
	"keyforge.backend/pkg/metrics"
	"keyforge.backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

var (
	loadDotenv      = godotenv.Load
	loadCfg         = config.Load
	initLog         = logger.Init
	initRedis       = redis.Init
	openDB          = postgres.NewConnection
	migrateDB       = postgres.Migrate
	newSessionStore = redis.NewSessionStore
	runServer       = func(srv *http.Server) error { return srv.ListenAndServe() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
		logger.Error(context.Background(), "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	defer func() { _ = redis.Close() }()
	logger.Info(context.Background(), "Redis initialized")

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Database.AutoMigrate {
		if err := migrateDB(ctx, db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info(ctx, "Database schema up to date")
	}

	m := metrics.New()
	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry)

	sessionStore, err := newSessionStore(cfg.Security.SessionEncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	licenseRepo := repositories.NewLicenseRepository(db)
	appRepo := repositories.NewApplicationRepository(db)
	accessRepo := repositories.NewApplicationAccessRepository(db)
	messageRepo := repositories.NewCustomMessageRepository(db)
	formatRepo := repositories.NewLicenseFormatRepository(db)
	uow := repositories.NewUnitOfWork(db)

	dispatcher := webhook.NewDispatcher(webhook.Options{
		Workers:    cfg.Webhook.Workers,
		QueueSize:  cfg.Webhook.QueueSize,
		Timeout:    cfg.Webhook.Timeout,
		RatePerSec: cfg.Webhook.RatePerSec,
		Burst:      cfg.Webhook.Burst,
	}, m)
	dispatcher.Start(ctx)

	// Usecases
	perms := usecases.NewPermissionResolver(accessRepo)
	keygen := usecases.NewKeyGenerator(formatRepo, cfg.License.DefaultTemplate)
	authUsecase := usecases.NewAuthUsecase(userRepo, jwtService, sessionStore, cfg.JWT.RefreshExpiry)
	checkUsecase := usecases.NewLicenseCheckUsecase(licenseRepo, appRepo, usecases.NewMessageResolver(messageRepo), dispatcher, nil)
	licenseUsecase := usecases.NewLicenseUsecase(licenseRepo, appRepo, uow, perms, keygen, usecases.LicenseUsecaseOptions{
		GenerateMax:      cfg.License.GenerateMax,
		CollisionRetries: cfg.License.CollisionRetries,
	})
	appUsecase := usecases.NewApplicationUsecase(appRepo, accessRepo, licenseRepo, userRepo, uow, perms)

	if err := authUsecase.BootstrapAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name); err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	statsJob := jobs.NewLicenseStatsJob(licenseRepo, m, cfg.Jobs.StatsInterval)
	go statsJob.Start(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware(m))

	applyCORSMiddleware(r, cfg.Server.AllowedOrigins)
	registerHealthRoute(r)
	registerMetricsRoute(r, m)
	registerAPIV1Routes(r, routeDeps{
		authHandler:          handlers.NewAuthHandler(authUsecase),
		licenseCheckHandler:  handlers.NewLicenseCheckHandler(checkUsecase, m),
		licenseHandler:       handlers.NewLicenseHandler(licenseUsecase),
		applicationHandler:   handlers.NewApplicationHandler(appUsecase),
		licenseFormatHandler: handlers.NewLicenseFormatHandler(usecases.NewLicenseFormatUsecase(formatRepo, keygen)),
		messageHandler:       handlers.NewMessageHandler(usecases.NewMessageUsecase(messageRepo)),
		userHandler:          handlers.NewUserHandler(usecases.NewUserUsecase(userRepo)),
		authMiddleware:       middleware.AuthMiddleware(jwtService, sessionStore),
		checkRateLimit: middleware.RateLimitMiddleware(
			redis.NewRateLimiter("license-check", cfg.RateLimit.CheckRequests, cfg.RateLimit.CheckWindow),
		),
		idempotency: middleware.IdempotencyMiddleware(),
	})

	for _, route := range r.Routes() {
		logger.Debug(ctx, "route registered", zap.String("method", route.Method), zap.String("path", route.Path))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)
		select {
		case <-quit:
		case <-ctx.Done():
			return
		}
		logger.Info(context.Background(), "Shutting down server")
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(shutdownCtx, "Server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info(ctx, "Keyforge backend starting",
		zap.String("port", cfg.Server.Port),
		zap.String("api", "/api/v1"),
		zap.String("health", "/health"),
	)

	serveErr := runServer(srv)

	statsJob.Stop()
	drainCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := dispatcher.Stop(drainCtx); err != nil {
		logger.Warn(drainCtx, "Webhook queue not fully drained", zap.Error(err))
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", serveErr)
	}
	return nil
}
