package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-trade/meridian/internal/observability"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeRatesRefresh pulls the daily feed from the central-bank
	// endpoint and persists every published rate.
	TaskTypeRatesRefresh = "rates:refresh"
	// TaskTypeVersionsPrune applies the version retention policy.
	TaskTypeVersionsPrune = "versions:prune"
)

// NewRatesRefreshTask constructs the rates refresh task. The task carries no
// payload; the worker owns the feed configuration.
func NewRatesRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskTypeRatesRefresh, nil)
}

// NewVersionsPruneTask constructs the retention prune task.
func NewVersionsPruneTask() *asynq.Task {
	return asynq.NewTask(TaskTypeVersionsPrune, nil)
}

// RatesRefresher is the slice of the rates service the worker needs.
type RatesRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

// VersionPruner is the slice of the versions service the worker needs.
type VersionPruner interface {
	Prune(ctx context.Context) (int64, error)
}

// HandleRatesRefresh returns the handler for TaskTypeRatesRefresh.
func HandleRatesRefresh(svc RatesRefresher, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		stored, err := svc.Refresh(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "rates refresh failed", slog.Any("error", err))
			return err
		}
		logger.InfoContext(ctx, "rates refreshed", slog.Int("stored", stored))
		return nil
	}
}

// HandleVersionsPrune returns the handler for TaskTypeVersionsPrune.
func HandleVersionsPrune(svc VersionPruner, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		removed, err := svc.Prune(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "versions prune failed", slog.Any("error", err))
			return err
		}
		metrics.AddPruned(removed)
		logger.InfoContext(ctx, "versions pruned", slog.Int64("removed", removed))
		return nil
	}
}
