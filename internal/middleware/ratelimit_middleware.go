package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_paygate/internal/metrics"
	"github.com/GTDGit/gtd_paygate/internal/service"
	"github.com/GTDGit/gtd_paygate/internal/utils"
)

// RateLimitMiddleware enforces the per-key request ceiling. It must run after
// APIKeyMiddleware.
type RateLimitMiddleware struct {
	limiter *service.RateLimiter
	metrics *metrics.Metrics
}

// NewRateLimitMiddleware constructs a RateLimitMiddleware.
func NewRateLimitMiddleware(limiter *service.RateLimiter, m *metrics.Metrics) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, metrics: m}
}

func (m *RateLimitMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() { m.metrics.ObserveStage("rate_limit", time.Since(start)) }()

		apiKey := GetAPIKey(c)
		if apiKey == nil {
			log.Error().Str("path", c.Request.URL.Path).Msg("rate limit reached without an authenticated key")
			m.metrics.RecordAdmission("rate_limit", utils.CodeAuthError)
			utils.Error(c, http.StatusInternalServerError, utils.CodeAuthError, "Authentication failed")
			c.Abort()
			return
		}

		d := m.limiter.Allow(c.Request.Context(), apiKey)
		if !d.FailOpen {
			c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		}

		if !d.Allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
			m.metrics.RecordAdmission("rate_limit", utils.ErrRateLimitExceeded.Error())
			utils.Error(c, http.StatusTooManyRequests, utils.ErrRateLimitExceeded.Error(), "Rate limit exceeded")
			c.Abort()
			return
		}

		m.metrics.RecordAdmission("rate_limit", "OK")
		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
