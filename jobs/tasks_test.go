package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-trade/meridian/internal/observability"
)

type stubRefresher struct {
	stored int
	err    error
	calls  int
}

func (s *stubRefresher) Refresh(context.Context) (int, error) {
	s.calls++
	return s.stored, s.err
}

type stubPruner struct {
	removed int64
	err     error
}

func (s *stubPruner) Prune(context.Context) (int64, error) {
	return s.removed, s.err
}

func TestHandleRatesRefresh(t *testing.T) {
	refresher := &stubRefresher{stored: 12}
	handler := HandleRatesRefresh(refresher, slog.Default())

	require.NoError(t, handler(context.Background(), NewRatesRefreshTask()))
	assert.Equal(t, 1, refresher.calls)

	refresher.err = errors.New("feed down")
	require.Error(t, handler(context.Background(), NewRatesRefreshTask()))
}

func TestHandleVersionsPrune(t *testing.T) {
	metrics := observability.NewMetrics()
	handler := HandleVersionsPrune(&stubPruner{removed: 3}, metrics, slog.Default())
	require.NoError(t, handler(context.Background(), NewVersionsPruneTask()))

	failing := HandleVersionsPrune(&stubPruner{err: errors.New("db down")}, metrics, slog.Default())
	require.Error(t, failing(context.Background(), NewVersionsPruneTask()))
}
