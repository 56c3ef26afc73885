package rates

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-trade/meridian/internal/quote/calc"
	"github.com/meridian-trade/meridian/internal/shared"
)

// Repository stores exchange-rate snapshots. Rows are append-only: a new
// fetch or override inserts, never updates, so every historical rate a
// calculation froze stays reachable.
type Repository interface {
	Insert(ctx context.Context, snap calc.RateSnapshot) error
	Latest(ctx context.Context, from, to string) (calc.RateSnapshot, error)
}

type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates an exchange-rate repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, snap calc.RateSnapshot) error {
	query := `INSERT INTO exchange_rates (from_ccy, to_ccy, rate, source, fetched_at)
	          VALUES ($1, $2, $3::numeric, $4, $5)`
	_, err := r.db.Exec(ctx, query, snap.From, snap.To, snap.Rate.String(), string(snap.Source), snap.FetchedAt)
	return err
}

func (r *repo) Latest(ctx context.Context, from, to string) (calc.RateSnapshot, error) {
	query := `SELECT from_ccy, to_ccy, rate::text, source, fetched_at
	          FROM exchange_rates
	          WHERE from_ccy = $1 AND to_ccy = $2
	          ORDER BY fetched_at DESC, id DESC
	          LIMIT 1`
	var (
		snap    calc.RateSnapshot
		rateStr string
		source  string
	)
	err := r.db.QueryRow(ctx, query, from, to).Scan(&snap.From, &snap.To, &rateStr, &source, &snap.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return calc.RateSnapshot{}, shared.ErrNotFound
	}
	if err != nil {
		return calc.RateSnapshot{}, err
	}
	snap.Source = calc.RateSource(source)
	if snap.Rate, err = decimal.NewFromString(rateStr); err != nil {
		return calc.RateSnapshot{}, err
	}
	return snap, nil
}
