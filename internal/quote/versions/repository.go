package versions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-trade/meridian/internal/platform/db"
	"github.com/meridian-trade/meridian/internal/shared"
)

// Repository persists quote versions. Inserts are append-only; nothing ever
// updates a stored payload.
type Repository interface {
	Insert(ctx context.Context, v *Version) error
	List(ctx context.Context, quoteID uuid.UUID) ([]Version, error)
	Get(ctx context.Context, quoteID uuid.UUID, versionNo int) (Version, error)
	MarkExported(ctx context.Context, quoteID uuid.UUID, versionNo int) error
	DeletePrunable(ctx context.Context, keepPerQuote int, before time.Time) (int64, error)
}

type repo struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repo{pool: pool}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Insert appends the next version for the quote. The version number is
// MAX(version_no)+1 read inside a RepeatableRead transaction; the unique
// (quote_id, version_no) index turns a concurrent race into
// shared.ErrVersionConflict instead of a duplicate number.
func (r *repo) Insert(ctx context.Context, v *Version) error {
	payload, err := marshalPayloads(v)
	if err != nil {
		return err
	}

	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var next int
		row := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(version_no), 0) + 1 FROM quote_versions WHERE quote_id = $1`,
			v.QuoteID)
		if err := row.Scan(&next); err != nil {
			return fmt.Errorf("versions: next number: %w", err)
		}

		v.ID = uuid.New()
		v.VersionNo = next
		v.CreatedAt = time.Now().UTC()

		_, err := tx.Exec(ctx, `
			INSERT INTO quote_versions
				(id, quote_id, version_no, variables, products, rates, results, summary, exported, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9)`,
			v.ID, v.QuoteID, v.VersionNo,
			payload.variables, payload.products, payload.rates, payload.results, payload.summary,
			v.CreatedAt)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("versions: quote %s: %w", v.QuoteID, shared.ErrVersionConflict)
		}
		return fmt.Errorf("versions: insert: %w", err)
	}
	return nil
}

func (r *repo) List(ctx context.Context, quoteID uuid.UUID) ([]Version, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, quote_id, version_no, variables, products, rates, results, summary, exported, created_at
		FROM quote_versions
		WHERE quote_id = $1
		ORDER BY version_no DESC`,
		quoteID)
	if err != nil {
		return nil, fmt.Errorf("versions: list: %w", err)
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *repo) Get(ctx context.Context, quoteID uuid.UUID, versionNo int) (Version, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, quote_id, version_no, variables, products, rates, results, summary, exported, created_at
		FROM quote_versions
		WHERE quote_id = $1 AND version_no = $2`,
		quoteID, versionNo)
	if err != nil {
		return Version{}, fmt.Errorf("versions: get: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Version{}, fmt.Errorf("versions: get: %w", err)
		}
		return Version{}, shared.ErrNotFound
	}
	return scanVersion(rows)
}

func (r *repo) MarkExported(ctx context.Context, quoteID uuid.UUID, versionNo int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quote_versions SET exported = TRUE WHERE quote_id = $1 AND version_no = $2`,
		quoteID, versionNo)
	if err != nil {
		return fmt.Errorf("versions: mark exported: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeletePrunable removes versions older than the cutoff, except the newest
// keepPerQuote per quote and anything marked exported. Those guardrails live
// in the query so a prune can never strip a quote bare.
func (r *repo) DeletePrunable(ctx context.Context, keepPerQuote int, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		WITH ranked AS (
			SELECT id,
			       ROW_NUMBER() OVER (PARTITION BY quote_id ORDER BY version_no DESC) AS rn,
			       created_at,
			       exported
			FROM quote_versions
		)
		DELETE FROM quote_versions
		WHERE id IN (
			SELECT id FROM ranked
			WHERE rn > $1 AND created_at < $2 AND NOT exported
		)`,
		keepPerQuote, before)
	if err != nil {
		return 0, fmt.Errorf("versions: prune: %w", err)
	}
	return tag.RowsAffected(), nil
}

type payloads struct {
	variables, products, rates, results, summary []byte
}

func marshalPayloads(v *Version) (payloads, error) {
	var p payloads
	var err error
	if p.variables, err = json.Marshal(v.Variables); err != nil {
		return p, fmt.Errorf("versions: marshal variables: %w", err)
	}
	if p.products, err = json.Marshal(v.Products); err != nil {
		return p, fmt.Errorf("versions: marshal products: %w", err)
	}
	if p.rates, err = json.Marshal(v.Rates); err != nil {
		return p, fmt.Errorf("versions: marshal rates: %w", err)
	}
	if p.results, err = json.Marshal(v.Results); err != nil {
		return p, fmt.Errorf("versions: marshal results: %w", err)
	}
	if p.summary, err = json.Marshal(v.Summary); err != nil {
		return p, fmt.Errorf("versions: marshal summary: %w", err)
	}
	return p, nil
}

func scanVersion(rows pgx.Rows) (Version, error) {
	var v Version
	var variables, products, rates, results, summary []byte
	if err := rows.Scan(&v.ID, &v.QuoteID, &v.VersionNo,
		&variables, &products, &rates, &results, &summary,
		&v.Exported, &v.CreatedAt); err != nil {
		return Version{}, fmt.Errorf("versions: scan: %w", err)
	}
	for _, u := range []struct {
		raw  []byte
		dest any
	}{
		{variables, &v.Variables},
		{products, &v.Products},
		{rates, &v.Rates},
		{results, &v.Results},
		{summary, &v.Summary},
	} {
		if err := json.Unmarshal(u.raw, u.dest); err != nil {
			return Version{}, fmt.Errorf("versions: decode payload: %w", err)
		}
	}
	return v, nil
}
