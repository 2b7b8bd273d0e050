package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_paygate/internal/middleware"
	"github.com/GTDGit/gtd_paygate/internal/service"
	"github.com/GTDGit/gtd_paygate/internal/utils"
)

// AccountHandler serves the merchant-facing view of the calling key.
type AccountHandler struct {
	limiter *service.RateLimiter
}

// NewAccountHandler constructs an AccountHandler.
func NewAccountHandler(limiter *service.RateLimiter) *AccountHandler {
	return &AccountHandler{limiter: limiter}
}

// GetMe handles GET /v1/me
func (h *AccountHandler) GetMe(c *gin.Context) {
	key := middleware.GetAPIKey(c)

	utils.Success(c, 200, "API key retrieved", gin.H{
		"id":           key.ID,
		"name":         key.Name,
		"merchantId":   key.MerchantID,
		"isTest":       middleware.IsTestMode(c),
		"permissions":  key.Permissions,
		"ipWhitelist":  key.IPWhitelist,
		"restrictions": key.Restrictions,
		"createdAt":    key.CreatedAt,
	})
}

// GetMerchant handles GET /v1/merchant
func (h *AccountHandler) GetMerchant(c *gin.Context) {
	utils.Success(c, 200, "Merchant retrieved", middleware.GetMerchant(c))
}

// GetUsage handles GET /v1/usage. Usage fields may lag behind recent requests.
func (h *AccountHandler) GetUsage(c *gin.Context) {
	key := middleware.GetAPIKey(c)

	limit := key.Restrictions.RateLimit.RequestsPerMinute
	rate := gin.H{
		"limit":         limit,
		"windowSeconds": int(h.limiter.Window().Seconds()),
	}

	count, ttl, err := h.limiter.Current(c.Request.Context(), key.ID)
	if err != nil {
		log.Warn().Err(err).Str("api_key_id", key.ID).Msg("failed to read rate window")
	} else {
		remaining := limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		rate["used"] = count
		rate["remaining"] = remaining
		rate["resetSeconds"] = int(ttl.Seconds())
	}

	utils.Success(c, 200, "Usage retrieved", gin.H{
		"usageCount": key.UsageCount,
		"lastUsed":   key.LastUsed,
		"rateLimit":  rate,
	})
}
