package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-trade/meridian/internal/platform/db"
	"github.com/meridian-trade/meridian/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Create(ctx context.Context, q Quote) error
	Get(ctx context.Context, id uuid.UUID) (Quote, error)
	List(ctx context.Context, filter ListFilter) ([]Quote, error)
	UpdateContent(ctx context.Context, q Quote) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	GenerateNumber(ctx context.Context, orgID int64, date time.Time) (string, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const quoteColumns = `id, doc_number, org_id, customer, status, variables, products, created_by, created_at, updated_at`

func (r *repository) Create(ctx context.Context, q Quote) error {
	variables, products, err := marshalContent(q)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO quotes (`+quoteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`,
		q.ID, q.DocNumber, q.OrgID, q.Customer, q.Status, variables, products, q.CreatedBy)
	if err != nil {
		return fmt.Errorf("quote: create: %w", err)
	}
	return nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Quote, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id)
	if err != nil {
		return Quote{}, fmt.Errorf("quote: get: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Quote{}, fmt.Errorf("quote: get: %w", err)
		}
		return Quote{}, shared.ErrNotFound
	}
	return scanQuote(rows)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Quote, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE 1=1`
	args := []any{}
	if filter.OrgID > 0 {
		args = append(args, filter.OrgID)
		query += fmt.Sprintf(" AND org_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("quote: list: %w", err)
	}
	defer rows.Close()

	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *repository) UpdateContent(ctx context.Context, q Quote) error {
	variables, products, err := marshalContent(q)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE quotes
		SET customer = $2, variables = $3, products = $4, updated_at = NOW()
		WHERE id = $1`,
		q.ID, q.Customer, variables, products)
	if err != nil {
		return fmt.Errorf("quote: update content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE quotes SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("quote: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GenerateNumber allocates the next QT-YYMM-SEQ document number from the
// per-org monthly counter.
func (r *repository) GenerateNumber(ctx context.Context, orgID int64, date time.Time) (string, error) {
	var seq int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO document_sequences (org_id, doc_type, period, seq)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (org_id, doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq`,
		orgID, "QT", date.Format("200601")).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("quote: generate number: %w", err)
	}
	return fmt.Sprintf("QT-%s-%04d", date.Format("200601"), seq), nil
}

func marshalContent(q Quote) (variables, products []byte, err error) {
	if variables, err = json.Marshal(q.Variables); err != nil {
		return nil, nil, fmt.Errorf("quote: marshal variables: %w", err)
	}
	if products, err = json.Marshal(q.Products); err != nil {
		return nil, nil, fmt.Errorf("quote: marshal products: %w", err)
	}
	return variables, products, nil
}

func scanQuote(rows pgx.Rows) (Quote, error) {
	var q Quote
	var variables, products []byte
	if err := rows.Scan(&q.ID, &q.DocNumber, &q.OrgID, &q.Customer, &q.Status,
		&variables, &products, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return Quote{}, fmt.Errorf("quote: scan: %w", err)
	}
	if err := json.Unmarshal(variables, &q.Variables); err != nil {
		return Quote{}, fmt.Errorf("quote: decode variables: %w", err)
	}
	if len(products) > 0 {
		if err := json.Unmarshal(products, &q.Products); err != nil {
			return Quote{}, fmt.Errorf("quote: decode products: %w", err)
		}
	}
	return q, nil
}
