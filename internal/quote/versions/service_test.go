package versions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-trade/meridian/internal/quote/calc"
	"github.com/meridian-trade/meridian/internal/shared"
)

type mockRepo struct {
	inserted  []Version
	insertErr error

	pruneKeep   int
	pruneBefore time.Time
	pruneCount  int64
}

func (m *mockRepo) Insert(_ context.Context, v *Version) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	v.ID = uuid.New()
	v.VersionNo = len(m.inserted) + 1
	v.CreatedAt = time.Now().UTC()
	m.inserted = append(m.inserted, *v)
	return nil
}

func (m *mockRepo) List(_ context.Context, quoteID uuid.UUID) ([]Version, error) {
	var out []Version
	for i := len(m.inserted) - 1; i >= 0; i-- {
		if m.inserted[i].QuoteID == quoteID {
			out = append(out, m.inserted[i])
		}
	}
	return out, nil
}

func (m *mockRepo) Get(_ context.Context, quoteID uuid.UUID, versionNo int) (Version, error) {
	for _, v := range m.inserted {
		if v.QuoteID == quoteID && v.VersionNo == versionNo {
			return v, nil
		}
	}
	return Version{}, shared.ErrNotFound
}

func (m *mockRepo) MarkExported(_ context.Context, quoteID uuid.UUID, versionNo int) error {
	for i := range m.inserted {
		if m.inserted[i].QuoteID == quoteID && m.inserted[i].VersionNo == versionNo {
			m.inserted[i].Exported = true
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *mockRepo) DeletePrunable(_ context.Context, keep int, before time.Time) (int64, error) {
	m.pruneKeep = keep
	m.pruneBefore = before
	return m.pruneCount, nil
}

func testService(repo Repository, ret Retention) *Service {
	return NewService(repo, slog.Default(), ret)
}

func sampleInput(quoteID uuid.UUID) (calc.Input, calc.Output) {
	in := calc.Input{
		QuoteID: quoteID,
		Products: []calc.Product{
			{ID: uuid.New(), Name: "pump", Currency: "USD", Quantity: decimal.NewFromInt(1)},
		},
	}
	out := calc.Output{
		Summary: calc.Summary{
			QuoteID:  quoteID,
			Currency: "USD",
			Rate:     calc.RateSnapshot{From: "USD", To: "USD", Rate: decimal.NewFromInt(1)},
		},
	}
	return in, out
}

func TestSnapshotAppendsSequentially(t *testing.T) {
	repo := &mockRepo{}
	svc := testService(repo, Retention{Keep: 3, MaxAge: time.Hour})
	quoteID := uuid.New()
	in, out := sampleInput(quoteID)

	first, err := svc.Snapshot(context.Background(), quoteID, in, out)
	require.NoError(t, err)
	second, err := svc.Snapshot(context.Background(), quoteID, in, out)
	require.NoError(t, err)

	assert.Equal(t, 1, first.VersionNo)
	assert.Equal(t, 2, second.VersionNo)
	assert.Equal(t, quoteID, second.QuoteID)
	assert.False(t, second.Exported)
}

func TestSnapshotPropagatesConflict(t *testing.T) {
	repo := &mockRepo{insertErr: shared.ErrVersionConflict}
	svc := testService(repo, Retention{Keep: 3, MaxAge: time.Hour})
	quoteID := uuid.New()
	in, out := sampleInput(quoteID)

	_, err := svc.Snapshot(context.Background(), quoteID, in, out)
	require.ErrorIs(t, err, shared.ErrVersionConflict)
}

func TestGetRejectsNonPositiveNumbers(t *testing.T) {
	svc := testService(&mockRepo{}, Retention{Keep: 3, MaxAge: time.Hour})
	_, err := svc.Get(context.Background(), uuid.New(), 0)
	require.Error(t, err)
}

func TestPruneAppliesRetention(t *testing.T) {
	repo := &mockRepo{pruneCount: 7}
	svc := testService(repo, Retention{Keep: 5, MaxAge: 48 * time.Hour})
	fixed := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	removed, err := svc.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), removed)
	assert.Equal(t, 5, repo.pruneKeep)
	assert.Equal(t, fixed.Add(-48*time.Hour), repo.pruneBefore)
}

func TestPruneRejectsUnsafeRetention(t *testing.T) {
	for name, ret := range map[string]Retention{
		"keep zero":    {Keep: 0, MaxAge: time.Hour},
		"no max age":   {Keep: 3, MaxAge: 0},
		"negative age": {Keep: 3, MaxAge: -time.Hour},
	} {
		t.Run(name, func(t *testing.T) {
			svc := testService(&mockRepo{}, ret)
			_, err := svc.Prune(context.Background())
			require.Error(t, err)
		})
	}
}

func TestUniqueViolationDetection(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, isUniqueViolation(wrapped))
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
}
