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

	"github.com/stocklens/stocklens/internal/analytics"
	analytichttp "github.com/stocklens/stocklens/internal/analytics/http"
	"github.com/stocklens/stocklens/internal/app"
	"github.com/stocklens/stocklens/internal/batch"
	"github.com/stocklens/stocklens/internal/observability"
	"github.com/stocklens/stocklens/internal/platform/cache"
	"github.com/stocklens/stocklens/internal/platform/db"
	"github.com/stocklens/stocklens/internal/sales"
	"github.com/stocklens/stocklens/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	resultCache := analytics.NewCache(redisClient, cfg.CacheTTL)
	if err := resultCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}

	enqueuer := jobs.NewEnqueuer(asynqClient)

	batchRepo := batch.NewRepository(pool, cfg.IngestChunkSize)
	batchSvc := batch.NewService(batchRepo, resultCache, enqueuer, logger)

	salesRepo := sales.NewRepository(pool)
	salesSvc := sales.NewService(salesRepo, resultCache, logger)

	highlight, err := batch.ParseCategory(cfg.HighlightCategory)
	if err != nil {
		logger.Error("invalid highlight category", slog.String("value", cfg.HighlightCategory))
		os.Exit(1)
	}
	analyticsRepo := analytics.NewSQLRepository(pool)
	analyticsSvc := analytics.NewService(analyticsRepo, batchSvc, salesSvc, resultCache, analytics.ServiceConfig{
		HighlightDefault:             highlight,
		FallbackDailyConsumptionRate: cfg.FallbackDailyConsumptionRate,
	})

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Metrics:          metrics,
		BatchHandler:     batch.NewHandler(logger, batchSvc, batch.NewIdempotencyStore(pool)),
		SalesHandler:     sales.NewHandler(logger, salesSvc),
		AnalyticsHandler: analytichttp.NewHandler(logger, analyticsSvc),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server started", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
	logger.Info("http server stopped")
}
