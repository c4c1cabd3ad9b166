package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/stocklens/stocklens/internal/analytics"
	"github.com/stocklens/stocklens/internal/app"
	"github.com/stocklens/stocklens/internal/batch"
	jobmetrics "github.com/stocklens/stocklens/internal/jobs"
	"github.com/stocklens/stocklens/internal/platform/cache"
	"github.com/stocklens/stocklens/internal/platform/db"
	"github.com/stocklens/stocklens/internal/sales"
	"github.com/stocklens/stocklens/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	resultCache := analytics.NewCache(redisClient, cfg.CacheTTL)
	if err := resultCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}

	batchRepo := batch.NewRepository(pool, cfg.IngestChunkSize)
	batchSvc := batch.NewService(batchRepo, resultCache, nil, logger)

	salesSvc := sales.NewService(sales.NewRepository(pool), resultCache, logger)

	highlight, err := batch.ParseCategory(cfg.HighlightCategory)
	if err != nil {
		logger.Error("invalid highlight category", slog.String("value", cfg.HighlightCategory))
		os.Exit(1)
	}
	analyticsSvc := analytics.NewService(analytics.NewSQLRepository(pool), batchSvc, salesSvc, resultCache, analytics.ServiceConfig{
		HighlightDefault:             highlight,
		FallbackDailyConsumptionRate: cfg.FallbackDailyConsumptionRate,
	})

	warmup := jobs.NewSummaryWarmupJob(analyticsSvc, logger, jobmetrics.NewMetrics(nil))
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSummaryWarmup, Handler: warmup.Handle},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		worker.Shutdown()
	}()

	if err := worker.Run(); err != nil {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
