package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// QuoteCalcLockKey builds the redis key guarding one quote's recalculation.
func QuoteCalcLockKey(quoteID uuid.UUID) string {
	return fmt.Sprintf("quote:%s:calc:lock", quoteID)
}

// CalcLocker serialises recalculation per quote. The engine itself is pure;
// this is the calling-layer advisory lock that keeps two concurrent edits
// from racing to produce two versions with the same number.
type CalcLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCalcLocker constructs a locker. TTL bounds how long a crashed run can
// keep a quote locked.
func NewCalcLocker(client *redis.Client, ttl time.Duration) *CalcLocker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CalcLocker{client: client, ttl: ttl}
}

// Acquire takes the per-quote lock. Returns ErrCalculationLocked when
// another run holds it.
func (l *CalcLocker) Acquire(ctx context.Context, quoteID uuid.UUID) error {
	if l == nil || l.client == nil {
		return fmt.Errorf("calc locker not initialised")
	}
	ok, err := l.client.SetNX(ctx, QuoteCalcLockKey(quoteID), "1", l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire calc lock: %w", err)
	}
	if !ok {
		return ErrCalculationLocked
	}
	return nil
}

// Release drops the lock. Safe to call when the lock already expired.
func (l *CalcLocker) Release(ctx context.Context, quoteID uuid.UUID) {
	if l == nil || l.client == nil {
		return
	}
	_ = l.client.Del(ctx, QuoteCalcLockKey(quoteID)).Err()
}
