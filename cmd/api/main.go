// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/portfolio-backend/internal/achievement"
	"github.com/carterperez-dev/portfolio-backend/internal/admin"
	"github.com/carterperez-dev/portfolio-backend/internal/auth"
	"github.com/carterperez-dev/portfolio-backend/internal/config"
	"github.com/carterperez-dev/portfolio-backend/internal/core"
	"github.com/carterperez-dev/portfolio-backend/internal/evidence"
	"github.com/carterperez-dev/portfolio-backend/internal/health"
	"github.com/carterperez-dev/portfolio-backend/internal/middleware"
	"github.com/carterperez-dev/portfolio-backend/internal/notify"
	"github.com/carterperez-dev/portfolio-backend/internal/server"
	"github.com/carterperez-dev/portfolio-backend/internal/user"
)

const (
	drainDelay    = 5 * time.Second
	notifyTimeout = 30 * time.Second
	statsPrefix   = "stats:"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	if cfg.Database.AutoMigrate {
		if err := core.Migrate(cfg.Database.URL, logger); err != nil {
			return err
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	mongo, err := core.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	logger.Info("mongo connected",
		"database", cfg.Mongo.Database,
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	storage, err := evidence.NewLocalStorage(cfg.Storage.UploadDir, cfg.Storage.PublicBaseURL)
	if err != nil {
		return err
	}
	intake := evidence.NewIntake(storage, cfg.Storage)

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.SMTP.Enabled {
		notifier = notify.NewSMTPNotifier(cfg.SMTP)
		logger.Info("smtp notifications enabled", "host", cfg.SMTP.Host)
	}
	dispatcher := notify.NewDispatcher(notifier, logger, notifyTimeout)

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	authSvc := auth.NewService(jwtManager, userSvc, redis.Client, cfg.Security)
	authHandler := auth.NewHandler(authSvc, cfg.Cookie)

	achievementStore := achievement.NewMongoStore(mongo.DB)
	if err := achievementStore.EnsureIndexes(ctx); err != nil {
		return err
	}
	achievementSvc := achievement.NewService(achievement.ServiceConfig{
		Store:    achievementStore,
		Cache:    core.NewJSONCache(redis.Client, statsPrefix, cfg.Stats.CacheTTL),
		Notifier: dispatcher,
		Contacts: userSvc,
		Files:    intake,
	})
	achievementHandler := achievement.NewHandler(achievementSvc, intake)

	healthHandler := health.NewHandler(
		health.Dependency{Name: "postgres", Checker: db},
		health.Dependency{Name: "redis", Checker: redis},
		health.Dependency{Name: "mongo", Checker: mongo},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:      db.Stats,
		RedisStats:   redis.PoolStats,
		DBPing:       db.Ping,
		RedisPing:    redis.Ping,
		MongoPing:    mongo.Ping,
		Achievements: achievementSvc,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Tracing)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Name:     "global",
			Limit:    middleware.PerWindow(cfg.RateLimit.Requests, cfg.RateLimit.Burst, cfg.RateLimit.Window),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(jwtManager, userSvc, middleware.GateConfig{
		AccessCookie:  cfg.Cookie.AccessName,
		RefreshCookie: cfg.Cookie.RefreshName,
		Revocations:   authSvc,
	})
	adminOnly := middleware.RequireAdmin

	if base := strings.TrimSuffix(cfg.Storage.PublicBaseURL, "/"); strings.HasPrefix(base, "/") {
		router.With(authenticator).Handle(base+"/*", storage.Handler())
	}

	authLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Name:     "auth",
		Limit:    middleware.PerMinute(10, 5),
		KeyFunc:  middleware.KeyByIP,
		FailOpen: true,
	}).Handler
	submitLimiter := middleware.PerUserLimiter(redis.Client, "submit", middleware.PerHour(60, 10))

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator, authLimiter)
		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		achievementHandler.RegisterRoutes(r, authenticator, submitLimiter)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Error("notification drain error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := mongo.Close(shutdownCtx); err != nil {
		logger.Error("mongo close error", "error", err)
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
