package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-trade/meridian/internal/quote/calc"
)

// Cache keeps the latest USD snapshots in redis so repeated calculations
// do not hit the database or the upstream feed.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a snapshot cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(from, to string) string {
	return fmt.Sprintf("fx:%s:%s", from, to)
}

// Get returns the cached snapshot, reporting whether one was present.
func (c *Cache) Get(ctx context.Context, from, to string) (calc.RateSnapshot, bool) {
	if c == nil || c.client == nil {
		return calc.RateSnapshot{}, false
	}
	raw, err := c.client.Get(ctx, cacheKey(from, to)).Bytes()
	if err != nil {
		return calc.RateSnapshot{}, false
	}
	var snap calc.RateSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return calc.RateSnapshot{}, false
	}
	return snap, true
}

// Set stores a snapshot. Failures are ignored: the cache is an
// optimisation, the repository stays authoritative.
func (c *Cache) Set(ctx context.Context, snap calc.RateSnapshot) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey(snap.From, snap.To), raw, c.ttl).Err()
}

// Invalidate drops a cached pair, used after manual overrides.
func (c *Cache) Invalidate(ctx context.Context, from, to string) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, cacheKey(from, to)).Err()
}
