package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/hris-authz/internal/cache"
	"github.com/stemsi/hris-authz/internal/config"
	"github.com/stemsi/hris-authz/internal/database"
	"github.com/stemsi/hris-authz/internal/handler"
	"github.com/stemsi/hris-authz/internal/logger"
	"github.com/stemsi/hris-authz/internal/metrics"
	"github.com/stemsi/hris-authz/internal/middleware"
	"github.com/stemsi/hris-authz/internal/repository"
	"github.com/stemsi/hris-authz/internal/router"
	"github.com/stemsi/hris-authz/internal/service"
	"github.com/stemsi/hris-authz/internal/validator"
	ws "github.com/stemsi/hris-authz/internal/websocket"
	"github.com/stemsi/hris-authz/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Dur("permission_cache_ttl", cfg.PermissionCacheTTL).
		Msg("Starting HRIS authorization service")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	m := metrics.New()

	// ─── Initialize Repositories ───────────────────────────────────────
	roleRepo := repository.NewRoleRepository(pool)
	permissionRepo := repository.NewPermissionRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	menuRepo := repository.NewMenuRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	permCache := cache.NewPermissionCache(rdb, cfg.PermissionCacheTTL, log)
	tokenVerifier := service.NewTokenVerifier(cfg.JWTSecret)
	authzService := service.NewAuthzService(userRepo, roleRepo, menuRepo, permCache, m, log)
	catalogService := service.NewCatalogService(permissionRepo, cfg.CatalogCacheTTL, log)
	roleService := service.NewRoleService(roleRepo, permissionRepo, permCache, log)
	principalService := service.NewPrincipalService(userRepo, roleRepo, permCache, log)

	hub := ws.NewHub(log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Health:     handler.NewHealthHandler(database.NewHealthChecker(pool, rdb)),
		Me:         handler.NewMeHandler(authzService, log),
		Permission: handler.NewPermissionHandler(catalogService, log),
		Role:       handler.NewRoleHandler(roleService, log),
		UserRole:   handler.NewUserRoleHandler(principalService, authzService, log),
		Menu:       handler.NewMenuHandler(authzService, log),
		Events:     handler.NewEventsHandler(hub, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	invalidationWorker := worker.NewInvalidationWorker(permCache, hub, log, catalogService)
	go invalidationWorker.Start(workerCtx)

	var limiter *middleware.RateLimiter
	if cfg.AuthorizeRateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.AuthorizeRateLimit, time.Minute)
		go limiter.Start(workerCtx)
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, router.Deps{
		Tokens:  tokenVerifier,
		Guard:   middleware.NewGuard(authzService, log),
		Limiter: limiter,
		Metrics: m,
		Log:     log,
	}, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the subscription and limiter cleanup.
	workerCancel()

	log.Info().Int("ws_clients", hub.Connected()).Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
