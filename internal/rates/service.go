package rates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/meridian-trade/meridian/internal/quote/calc"
	"github.com/meridian-trade/meridian/internal/shared"
)

var one = decimal.NewFromInt(1)

// Service resolves exchange-rate snapshots: cache first, then the
// repository, then one deduplicated upstream fetch. Snapshots flow to the
// engine pre-fetched; the pipeline itself never performs I/O.
type Service struct {
	repo    Repository
	cache   *Cache
	fetcher *Fetcher
	logger  *slog.Logger
	group   singleflight.Group
	now     func() time.Time
}

// NewService constructs a rates service.
func NewService(repo Repository, cache *Cache, fetcher *Fetcher, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		cache:   cache,
		fetcher: fetcher,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Latest returns the current USD -> currency snapshot.
func (s *Service) Latest(ctx context.Context, currency string) (calc.RateSnapshot, error) {
	if currency == "" {
		return calc.RateSnapshot{}, fmt.Errorf("rates: currency is required")
	}
	if currency == "USD" {
		return calc.RateSnapshot{From: "USD", To: "USD", Rate: one, Source: calc.RateSourceExternal, FetchedAt: s.now()}, nil
	}
	if snap, ok := s.cache.Get(ctx, "USD", currency); ok {
		return snap, nil
	}
	snap, err := s.repo.Latest(ctx, "USD", currency)
	if err == nil {
		s.cache.Set(ctx, snap)
		return snap, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return calc.RateSnapshot{}, err
	}

	// No stored rate yet: one flight fetches the feed for everyone asking.
	res, err, _ := s.group.Do("feed", func() (any, error) {
		return s.refreshFeed(ctx)
	})
	if err != nil {
		return calc.RateSnapshot{}, err
	}
	feed := res.(Feed)
	rate, ok := feed.Rates[currency]
	if !ok {
		return calc.RateSnapshot{}, fmt.Errorf("rates: %w: feed has no rate for %s", calc.ErrReferenceData, currency)
	}
	return calc.RateSnapshot{
		From: "USD", To: currency, Rate: rate,
		Source: calc.RateSourceExternal, FetchedAt: feed.FetchedAt,
	}, nil
}

// Override records a manual rate that supersedes the feed until the next
// publication.
func (s *Service) Override(ctx context.Context, currency string, rate decimal.Decimal) (calc.RateSnapshot, error) {
	if currency == "" || currency == "USD" {
		return calc.RateSnapshot{}, fmt.Errorf("rates: cannot override %q", currency)
	}
	if !rate.IsPositive() {
		return calc.RateSnapshot{}, fmt.Errorf("rates: override rate must be positive")
	}
	snap := calc.RateSnapshot{
		From: "USD", To: currency, Rate: rate,
		Source: calc.RateSourceManual, FetchedAt: s.now(),
	}
	if err := s.repo.Insert(ctx, snap); err != nil {
		return calc.RateSnapshot{}, fmt.Errorf("rates: store override: %w", err)
	}
	s.cache.Invalidate(ctx, "USD", currency)
	s.cache.Set(ctx, snap)
	return snap, nil
}

// RateSet assembles the frozen rate material for one calculation run.
func (s *Service) RateSet(ctx context.Context, quoteCurrency string, productCurrencies []string) (calc.RateSet, error) {
	set := calc.RateSet{ToUSD: make(map[string]calc.RateSnapshot)}

	quoteSnap, err := s.Latest(ctx, quoteCurrency)
	if err != nil {
		return calc.RateSet{}, err
	}
	set.QuoteRate = quoteSnap

	for _, ccy := range productCurrencies {
		if ccy == "USD" {
			continue
		}
		if _, done := set.ToUSD[ccy]; done {
			continue
		}
		snap, err := s.Latest(ctx, ccy)
		if err != nil {
			return calc.RateSet{}, err
		}
		if snap.Rate.IsZero() {
			return calc.RateSet{}, fmt.Errorf("rates: %w: zero rate for %s", calc.ErrReferenceData, ccy)
		}
		// The feed quotes currency per USD; products need the inverse.
		set.ToUSD[ccy] = calc.RateSnapshot{
			From: ccy, To: "USD",
			Rate:      one.Div(snap.Rate),
			Source:    snap.Source,
			FetchedAt: snap.FetchedAt,
		}
	}
	return set, nil
}

// Refresh pulls the feed and persists a snapshot per published currency.
// Run periodically by the worker.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	feed, err := s.refreshFeed(ctx)
	if err != nil {
		return 0, err
	}
	return len(feed.Rates), nil
}

func (s *Service) refreshFeed(ctx context.Context) (Feed, error) {
	feed, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return Feed{}, err
	}
	for ccy, rate := range feed.Rates {
		snap := calc.RateSnapshot{
			From: "USD", To: ccy, Rate: rate,
			Source: calc.RateSourceExternal, FetchedAt: feed.FetchedAt,
		}
		if err := s.repo.Insert(ctx, snap); err != nil {
			return Feed{}, fmt.Errorf("rates: store %s: %w", ccy, err)
		}
		s.cache.Set(ctx, snap)
	}
	if s.logger != nil {
		s.logger.Info("exchange rates refreshed",
			slog.Int("currencies", len(feed.Rates)),
			slog.Time("fetched_at", feed.FetchedAt))
	}
	return feed, nil
}
