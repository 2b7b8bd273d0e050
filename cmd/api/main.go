package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_paygate/internal/cache"
	"github.com/GTDGit/gtd_paygate/internal/config"
	"github.com/GTDGit/gtd_paygate/internal/database"
	"github.com/GTDGit/gtd_paygate/internal/handler"
	"github.com/GTDGit/gtd_paygate/internal/metrics"
	"github.com/GTDGit/gtd_paygate/internal/middleware"
	"github.com/GTDGit/gtd_paygate/internal/repository"
	"github.com/GTDGit/gtd_paygate/internal/service"
	"github.com/GTDGit/gtd_paygate/internal/worker"
)

// main is the application entrypoint for the GTD payment gateway.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting gtd paygate")

	// 3. Connect database
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Connect(ctx, &cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB, cfg.Migration.Path); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	// 4. Metrics, caches and counters
	m := metrics.New("paygate")
	keyCache := cache.NewAPIKeyCache(redisClient, cfg.Gateway.CacheTTL)
	rateCounter := cache.NewRateCounter(redisClient)

	// 5. Initialize repositories
	apiKeyRepo := repository.NewAPIKeyRepository(db)
	merchantRepo := repository.NewMerchantRepository(db)
	adminRepo := repository.NewAdminUserRepository(db)

	// 6. Initialize services
	authSvc := service.NewAuthService(apiKeyRepo, keyCache, m)
	limiter := service.NewRateLimiter(rateCounter, cfg.Gateway.RateLimitWindow, m)
	merchantSvc := service.NewMerchantService(merchantRepo)
	apiKeySvc := service.NewAPIKeyService(apiKeyRepo, merchantRepo, keyCache)
	adminAuthSvc := service.NewAdminAuthService(adminRepo, cfg.JWTSecret, cfg.JWTTTL)

	if err := adminAuthSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Error().Err(err).Msg("failed to bootstrap admin user")
	}

	// 7. Start usage recorder
	usageRecorder := worker.NewUsageRecorder(apiKeyRepo, worker.RecorderOptions{
		QueueSize:    cfg.Usage.QueueSize,
		MaxOverflow:  cfg.Usage.MaxOverflow,
		TouchTimeout: cfg.Usage.TouchTimeout,
		DrainTimeout: cfg.Usage.DrainTimeout,
		MaxRetries:   cfg.Usage.MaxRetries,
	}, m)
	go usageRecorder.Start(ctx)

	// 8. Initialize handlers
	handlers := &Handlers{
		Health: handler.NewHealthHandler(map[string]handler.HealthCheck{
			"postgres": db.PingContext,
			"redis":    redisClient.Ping,
		}),
		Auth:     handler.NewAuthHandler(adminAuthSvc),
		Merchant: handler.NewMerchantHandler(merchantSvc),
		APIKey:   handler.NewAPIKeyHandler(apiKeySvc),
		Account:  handler.NewAccountHandler(limiter),
	}

	// 9. Initialize middleware
	mws := &Middlewares{
		APIKey:        middleware.NewAPIKeyMiddleware(authSvc, m),
		RateLimit:     middleware.NewRateLimitMiddleware(limiter, m),
		Authorization: middleware.NewAuthorizationMiddleware(authSvc, cfg.Gateway.ClientIPMode, m),
		JWT:           middleware.NewJWTMiddleware(cfg.JWTSecret),
		Usage:         usageRecorder,
		Timeout:       cfg.Gateway.RequestTimeout,
	}

	// 10. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Gateway.TrustedProxies); err != nil {
		log.Fatal().Err(err).Msg("invalid TRUSTED_PROXIES")
	}
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORSAllowedHosts))
	router.Use(middleware.LoggingMiddleware())
	router.GET("/metrics", gin.WrapH(m.Handler()))
	setupRoutes(router, handlers, mws)

	// 11. Start HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("client_ip_mode", cfg.Gateway.ClientIPMode).
			Dur("rate_limit_window", cfg.Gateway.RateLimitWindow).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 12. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 13. Shutdown HTTP server first so no new usage is recorded
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// 14. Stop the usage recorder and flush queued touches
	cancel()
	usageRecorder.Wait()
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	Merchant *handler.MerchantHandler
	APIKey   *handler.APIKeyHandler
	Account  *handler.AccountHandler
}

// Middlewares groups the admission chain and admin auth.
type Middlewares struct {
	APIKey        *middleware.APIKeyMiddleware
	RateLimit     *middleware.RateLimitMiddleware
	Authorization *middleware.AuthorizationMiddleware
	JWT           *middleware.JWTMiddleware
	Usage         middleware.UsageRecorder
	Timeout       time.Duration
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, mws *Middlewares) {
	router.GET("/v1/health", handlers.Health.GetHealth)

	// Merchant API (protected with API key)
	api := router.Group("/v1")
	api.Use(
		middleware.TimeoutMiddleware(mws.Timeout),
		mws.APIKey.Handle(),
		mws.RateLimit.Handle(),
		mws.Authorization.CheckIP(),
		middleware.UsageMiddleware(mws.Usage),
	)
	{
		api.GET("/me", handlers.Account.GetMe)
		api.GET("/merchant", mws.Authorization.RequirePermission("merchant:read"), handlers.Account.GetMerchant)
		api.GET("/usage", mws.Authorization.RequirePermission("usage:read"), handlers.Account.GetUsage)
	}

	// Admin routes
	admin := router.Group("/v1/admin")
	admin.Use(middleware.TimeoutMiddleware(mws.Timeout))
	admin.POST("/auth/login", handlers.Auth.Login)
	admin.Use(mws.JWT.Handle())
	{
		// Merchant Management
		admin.POST("/merchants", handlers.Merchant.CreateMerchant)
		admin.GET("/merchants", handlers.Merchant.ListMerchants)
		admin.GET("/merchants/:id", handlers.Merchant.GetMerchant)
		admin.PUT("/merchants/:id/status", handlers.Merchant.UpdateStatus)

		// API Key Management
		admin.POST("/merchants/:id/keys", handlers.APIKey.IssueKey)
		admin.GET("/merchants/:id/keys", handlers.APIKey.ListKeys)
		admin.GET("/keys/:id", handlers.APIKey.GetKey)
		admin.PUT("/keys/:id", handlers.APIKey.UpdateKey)
		admin.POST("/keys/:id/revoke", handlers.APIKey.RevokeKey)
		admin.POST("/keys/:id/deactivate", handlers.APIKey.DeactivateKey)
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB, source string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
