package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-trade/meridian/internal/app"
	"github.com/meridian-trade/meridian/internal/observability"
	"github.com/meridian-trade/meridian/internal/platform/cache"
	"github.com/meridian-trade/meridian/internal/platform/db"
	"github.com/meridian-trade/meridian/internal/quote/versions"
	"github.com/meridian-trade/meridian/internal/rates"
	"github.com/meridian-trade/meridian/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
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

	metrics := observability.NewMetrics()

	ratesSvc := rates.NewService(
		rates.NewRepository(pool),
		rates.NewCache(redisClient, cfg.RatesCacheTTL),
		rates.NewFetcher(cfg.RatesFeedURL, 10*time.Second),
		logger,
	)
	versionsSvc := versions.NewService(versions.NewRepository(pool), logger, versions.Retention{
		Keep:   cfg.VersionRetentionCount,
		MaxAge: cfg.VersionRetentionAge,
	})

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeRatesRefresh, Handler: jobs.HandleRatesRefresh(ratesSvc, logger)},
			{Type: jobs.TaskTypeVersionsPrune, Handler: jobs.HandleVersionsPrune(versionsSvc, metrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.RatesRefreshCron, Task: jobs.NewRatesRefreshTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.VersionsPruneCron, Task: jobs.NewVersionsPruneTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
