package cache

import (
	"context"
	"fmt"
	"time"
)

// RateCounter stores fixed-window request counters keyed by API key id.
type RateCounter struct {
	redis *RedisClient
}

// NewRateCounter creates a new RateCounter.
func NewRateCounter(redis *RedisClient) *RateCounter {
	return &RateCounter{redis: redis}
}

func (c *RateCounter) keyFor(keyID string) string {
	return fmt.Sprintf("ratelimit:%s", keyID)
}

// Count returns the current window count; found is false when no window is open.
func (c *RateCounter) Count(ctx context.Context, keyID string) (count int64, found bool, err error) {
	n, err := c.redis.GetInt(ctx, c.keyFor(keyID))
	if err != nil {
		if IsMiss(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return n, true, nil
}

// Hit increments the counter, opening a window of length window on first use.
func (c *RateCounter) Hit(ctx context.Context, keyID string, window time.Duration) (int64, error) {
	return c.redis.IncrAndMaybeExpire(ctx, c.keyFor(keyID), window)
}

// Remaining returns how long the current window stays open.
func (c *RateCounter) Remaining(ctx context.Context, keyID string) (time.Duration, error) {
	return c.redis.TTL(ctx, c.keyFor(keyID))
}
