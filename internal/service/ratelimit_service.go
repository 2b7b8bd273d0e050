package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/GTDGit/gtd_paygate/internal/metrics"
	"github.com/GTDGit/gtd_paygate/internal/models"
)

// CounterStore holds fixed-window request counters.
type CounterStore interface {
	Count(ctx context.Context, keyID string) (count int64, found bool, err error)
	Hit(ctx context.Context, keyID string, window time.Duration) (int64, error)
	Remaining(ctx context.Context, keyID string) (time.Duration, error)
}

// RateDecision is the outcome of a rate limit check.
type RateDecision struct {
	Allowed    bool
	Limit      int
	Count      int64
	Remaining  int
	RetryAfter time.Duration
	// FailOpen is set when the counter store could not be consulted.
	FailOpen bool
}

// RateLimiter enforces a per-key fixed-window request ceiling. When the
// counter store is unavailable it admits the request (fail-open).
type RateLimiter struct {
	counter CounterStore
	window  time.Duration
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
}

// NewRateLimiter constructs a RateLimiter. Counter store calls go through a
// circuit breaker so an outage costs one fast failure instead of a timeout
// per request.
func NewRateLimiter(counter CounterStore, window time.Duration, m *metrics.Metrics) *RateLimiter {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "rate-counter",
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("rate limit counter breaker changed state")
		},
	})

	return &RateLimiter{
		counter: counter,
		window:  window,
		breaker: breaker,
		metrics: m,
	}
}

// Window returns the counter window length.
func (l *RateLimiter) Window() time.Duration {
	return l.window
}

// Allow decides whether one more request for k is admitted. It never returns
// an error: counter failures admit the request and are logged. A ceiling of
// zero still opens the window, so only its first request is admitted.
func (l *RateLimiter) Allow(ctx context.Context, k *models.APIKey) RateDecision {
	limit := k.Restrictions.RateLimit.RequestsPerMinute

	res, err := l.breaker.Execute(func() (interface{}, error) {
		return l.check(ctx, k.ID, limit)
	})
	if err != nil {
		l.metrics.RecordRateLimit("fail_open")
		log.Warn().Err(err).Str("api_key_id", k.ID).Msg("rate limit counter unavailable, admitting request")
		return RateDecision{Allowed: true, Limit: limit, Remaining: limit, FailOpen: true}
	}

	decision := res.(RateDecision)
	if decision.Allowed {
		l.metrics.RecordRateLimit("allowed")
	} else {
		l.metrics.RecordRateLimit("rejected")
	}
	return decision
}

func (l *RateLimiter) check(ctx context.Context, keyID string, limit int) (RateDecision, error) {
	count, found, err := l.counter.Count(ctx, keyID)
	if err != nil {
		return RateDecision{}, err
	}

	if found && count >= int64(limit) {
		retryAfter, err := l.counter.Remaining(ctx, keyID)
		if err != nil {
			retryAfter = 0
		}
		return RateDecision{
			Allowed:    false,
			Limit:      limit,
			Count:      count,
			RetryAfter: retryAfter,
		}, nil
	}

	n, err := l.counter.Hit(ctx, keyID, l.window)
	if err != nil {
		return RateDecision{}, err
	}

	remaining := limit - int(n)
	if remaining < 0 {
		remaining = 0
	}
	return RateDecision{
		Allowed:   true,
		Limit:     limit,
		Count:     n,
		Remaining: remaining,
	}, nil
}

// Current reports the open window's count for a key without incrementing it.
func (l *RateLimiter) Current(ctx context.Context, keyID string) (int64, time.Duration, error) {
	count, found, err := l.counter.Count(ctx, keyID)
	if err != nil || !found {
		return 0, 0, err
	}
	ttl, err := l.counter.Remaining(ctx, keyID)
	if err != nil {
		return count, 0, err
	}
	return count, ttl, nil
}
