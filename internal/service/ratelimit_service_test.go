package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_paygate/internal/cache"
	"github.com/GTDGit/gtd_paygate/internal/metrics"
)

func TestRateLimiter_RejectsOverCeilingAndResets(t *testing.T) {
	mr, rc := newTestCache(t)
	limiter := NewRateLimiter(cache.NewRateCounter(rc), time.Minute, nil)
	ctx := context.Background()
	k := activeKey()

	for i := 1; i <= 5; i++ {
		d := limiter.Allow(ctx, k)
		require.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 5-i, d.Remaining)
		assert.Equal(t, 5, d.Limit)
	}

	d := limiter.Allow(ctx, k)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(5), d.Count)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	count, err := mr.Get("ratelimit:key-1")
	require.NoError(t, err)
	assert.Equal(t, "5", count, "rejected requests do not increment the counter")

	mr.FastForward(time.Minute + time.Second)

	d = limiter.Allow(ctx, k)
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)
}

func TestRateLimiter_WindowDoesNotSlide(t *testing.T) {
	mr, rc := newTestCache(t)
	limiter := NewRateLimiter(cache.NewRateCounter(rc), time.Minute, nil)
	ctx := context.Background()
	k := activeKey()

	limiter.Allow(ctx, k)
	mr.FastForward(40 * time.Second)
	limiter.Allow(ctx, k)

	assert.Equal(t, 20*time.Second, mr.TTL("ratelimit:key-1"))
}

func TestRateLimiter_ZeroCeilingAdmitsOnlyWindowOpener(t *testing.T) {
	mr, rc := newTestCache(t)
	limiter := NewRateLimiter(cache.NewRateCounter(rc), time.Minute, nil)
	ctx := context.Background()
	k := activeKey()
	k.Restrictions.RateLimit.RequestsPerMinute = 0

	d := limiter.Allow(ctx, k)
	require.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	for i := 0; i < 5; i++ {
		d = limiter.Allow(ctx, k)
		assert.False(t, d.Allowed, "request %d", i+2)
		assert.Greater(t, d.RetryAfter, time.Duration(0))
	}

	count, err := mr.Get("ratelimit:key-1")
	require.NoError(t, err)
	assert.Equal(t, "1", count)

	mr.FastForward(time.Minute + time.Second)
	assert.True(t, limiter.Allow(ctx, k).Allowed)
	assert.False(t, limiter.Allow(ctx, k).Allowed)
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	mr, rc := newTestCache(t)
	m := metrics.New("test")
	limiter := NewRateLimiter(cache.NewRateCounter(rc), time.Minute, m)
	k := activeKey()

	mr.SetError("READONLY")

	for i := 0; i < 10; i++ {
		d := limiter.Allow(context.Background(), k)
		require.True(t, d.Allowed)
		assert.True(t, d.FailOpen)
	}

	mr.SetError("")
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	_, rc := newTestCache(t)
	limiter := NewRateLimiter(cache.NewRateCounter(rc), time.Minute, nil)
	ctx := context.Background()

	a := activeKey()
	a.Restrictions.RateLimit.RequestsPerMinute = 1
	b := activeKey()
	b.ID = "key-2"
	b.Restrictions.RateLimit.RequestsPerMinute = 1

	assert.True(t, limiter.Allow(ctx, a).Allowed)
	assert.False(t, limiter.Allow(ctx, a).Allowed)
	assert.True(t, limiter.Allow(ctx, b).Allowed)
}

func TestRateLimiter_Current(t *testing.T) {
	_, rc := newTestCache(t)
	limiter := NewRateLimiter(cache.NewRateCounter(rc), time.Minute, nil)
	ctx := context.Background()
	k := activeKey()

	count, ttl, err := limiter.Current(ctx, k.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, ttl)

	limiter.Allow(ctx, k)
	limiter.Allow(ctx, k)

	count, ttl, err = limiter.Current(ctx, k.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, time.Minute, ttl)
}
