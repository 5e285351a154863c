package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/plforecast/internal/app"
	"github.com/odyssey-erp/plforecast/internal/forecast"
	forecasthttp "github.com/odyssey-erp/plforecast/internal/forecast/http"
	"github.com/odyssey-erp/plforecast/internal/observability"
	"github.com/odyssey-erp/plforecast/internal/platform/cache"
	"github.com/odyssey-erp/plforecast/internal/platform/db"
	"github.com/odyssey-erp/plforecast/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	var store forecast.Store
	if cfg.PGDSN == "" {
		logger.Warn("PG_DSN not set, using in-memory store")
		store = forecast.NewMemoryStore()
	} else {
		if cfg.PGMigrate {
			if err := db.Migrate(ctx, cfg.PGDSN); err != nil {
				logger.Error("migrate database", slog.Any("error", err))
				os.Exit(1)
			}
		}
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		store = forecast.NewRepository(pool)
	}

	var (
		redisClient   *redis.Client
		forecastCache *forecast.Cache
		enqueuer      forecasthttp.Enqueuer
		jobHandler    *jobs.Handler
	)
	if cfg.RedisAddr != "" {
		redisClient, err = cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			logger.Error("connect redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		forecastCache = forecast.NewCache(redisClient, cfg.ForecastCacheTTL)

		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		jobClient := jobs.NewClient(redisOpts)
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("close job client", slog.Any("error", err))
			}
		}()
		enqueuer = jobClient

		inspector := asynq.NewInspector(redisOpts)
		defer func() { _ = inspector.Close() }()
		jobHandler = jobs.NewHandler(inspector, logger)
	} else {
		logger.Warn("REDIS_ADDR not set, caching and background jobs disabled")
	}

	service := forecast.NewService(store, forecastCache, cfg.ForecastConfig(), logger)
	forecastHandler := forecasthttp.NewHandler(logger, service, enqueuer, forecasthttp.Options{
		ExportRateLimit: cfg.ExportRateLimit,
	})

	metrics := observability.NewMetrics()
	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Metrics:         metrics,
		ForecastHandler: forecastHandler,
		JobHandler:      jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server starting", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
