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

	"github.com/meridian-trade/meridian/internal/app"
	"github.com/meridian-trade/meridian/internal/observability"
	"github.com/meridian-trade/meridian/internal/platform/cache"
	"github.com/meridian-trade/meridian/internal/platform/db"
	"github.com/meridian-trade/meridian/internal/quote"
	"github.com/meridian-trade/meridian/internal/quote/versions"
	"github.com/meridian-trade/meridian/internal/rates"
	"github.com/meridian-trade/meridian/internal/refdata"
	"github.com/meridian-trade/meridian/internal/shared"
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

	refdataSvc := refdata.NewService(refdata.NewRepository(pool))

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

	quoteSvc := quote.NewService(
		quote.NewRepository(pool),
		refdataSvc,
		ratesSvc,
		versionsSvc,
		shared.NewCalcLocker(redisClient, cfg.CalcLockTTL),
		shared.NewApprovalRecorder(pool, logger),
		shared.NewAuditLogger(pool),
		metrics,
		logger,
	)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("jobs inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		QuoteHandler:   quote.NewHandler(logger, quoteSvc, versionsSvc),
		RatesHandler:   rates.NewHandler(logger, ratesSvc),
		RefdataHandler: refdata.NewHandler(logger, refdataSvc),
		JobsHandler:    jobs.NewHandler(inspector, jobsClient, logger),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
