package versions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-trade/meridian/internal/quote/calc"
)

// Retention bounds how far back pruning reaches. Keep is per quote; the
// newest Keep versions survive regardless of age, exported versions survive
// unconditionally.
type Retention struct {
	Keep   int
	MaxAge time.Duration
}

type Service struct {
	repo      Repository
	logger    *slog.Logger
	retention Retention
	now       func() time.Time
}

func NewService(repo Repository, logger *slog.Logger, retention Retention) *Service {
	return &Service{
		repo:      repo,
		logger:    logger,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot freezes one calculation run as the next version of the quote.
func (s *Service) Snapshot(ctx context.Context, quoteID uuid.UUID, in calc.Input, out calc.Output) (Version, error) {
	v := Version{
		QuoteID:   quoteID,
		Variables: in.Variables,
		Products:  in.Products,
		Rates:     in.Rates,
		Results:   out.Results,
		Summary:   out.Summary,
	}
	if err := s.repo.Insert(ctx, &v); err != nil {
		return Version{}, err
	}
	s.logger.InfoContext(ctx, "version recorded",
		slog.String("quote_id", quoteID.String()),
		slog.Int("version_no", v.VersionNo))
	return v, nil
}

func (s *Service) List(ctx context.Context, quoteID uuid.UUID) ([]Version, error) {
	return s.repo.List(ctx, quoteID)
}

func (s *Service) Get(ctx context.Context, quoteID uuid.UUID, versionNo int) (Version, error) {
	if versionNo < 1 {
		return Version{}, fmt.Errorf("versions: version numbers start at 1")
	}
	return s.repo.Get(ctx, quoteID, versionNo)
}

// MarkExported pins a version against pruning once it has been handed to a
// client.
func (s *Service) MarkExported(ctx context.Context, quoteID uuid.UUID, versionNo int) error {
	return s.repo.MarkExported(ctx, quoteID, versionNo)
}

// Prune applies the configured retention and reports how many versions were
// removed.
func (s *Service) Prune(ctx context.Context) (int64, error) {
	if s.retention.Keep < 1 {
		return 0, fmt.Errorf("versions: retention must keep at least one version per quote")
	}
	if s.retention.MaxAge <= 0 {
		return 0, fmt.Errorf("versions: retention max age must be positive")
	}
	cutoff := s.now().Add(-s.retention.MaxAge)
	removed, err := s.repo.DeletePrunable(ctx, s.retention.Keep, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.InfoContext(ctx, "versions pruned",
			slog.Int64("removed", removed),
			slog.Time("cutoff", cutoff))
	}
	return removed, nil
}
