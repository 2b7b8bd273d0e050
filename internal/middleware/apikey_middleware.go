package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_paygate/internal/metrics"
	"github.com/GTDGit/gtd_paygate/internal/models"
	"github.com/GTDGit/gtd_paygate/internal/service"
	"github.com/GTDGit/gtd_paygate/internal/utils"
)

// Request headers carrying merchant credentials.
const (
	HeaderAPIKey    = "x-api-key"
	HeaderSecretKey = "x-secret-key"
)

// Context keys set after a successful admission.
const (
	ContextKeyAPIKey     = "api_key"
	ContextKeyMerchant   = "merchant"
	ContextKeyMerchantID = "merchant_id"
	ContextKeyAPIKeyID   = "api_key_id"
	ContextKeyIsTest     = "is_test"
)

type rejection struct {
	status  int
	message string
}

var authRejections = map[error]rejection{
	utils.ErrAPIKeyRequired:      {http.StatusUnauthorized, "API key is required"},
	utils.ErrInvalidAPIKeyFormat: {http.StatusBadRequest, "API key format is invalid"},
	utils.ErrInvalidAPIKey:       {http.StatusUnauthorized, "Invalid API key"},
	utils.ErrInvalidSecretKey:    {http.StatusUnauthorized, "Invalid secret key"},
	utils.ErrMerchantInactive:    {http.StatusUnauthorized, "Merchant account is inactive"},
}

// APIKeyMiddleware authenticates merchant requests by API key.
type APIKeyMiddleware struct {
	authService *service.AuthService
	metrics     *metrics.Metrics
}

// NewAPIKeyMiddleware constructs a new APIKeyMiddleware.
func NewAPIKeyMiddleware(authService *service.AuthService, m *metrics.Metrics) *APIKeyMiddleware {
	return &APIKeyMiddleware{authService: authService, metrics: m}
}

// Handle returns a Gin middleware function that enforces API key authentication.
func (m *APIKeyMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() { m.metrics.ObserveStage("authenticate", time.Since(start)) }()

		key := c.GetHeader(HeaderAPIKey)
		if key == "" {
			m.reject(c, utils.ErrAPIKeyRequired)
			return
		}

		// Format check runs before any cache or store access.
		if err := utils.ValidateAPIKeyFormat(key); err != nil {
			m.reject(c, utils.ErrInvalidAPIKeyFormat)
			return
		}

		apiKey, err := m.authService.Authenticate(c.Request.Context(), key, c.GetHeader(HeaderSecretKey))
		if err != nil {
			m.reject(c, err)
			return
		}

		c.Set(ContextKeyAPIKey, apiKey)
		c.Set(ContextKeyMerchant, apiKey.Merchant)
		c.Set(ContextKeyMerchantID, apiKey.MerchantID)
		c.Set(ContextKeyAPIKeyID, apiKey.ID)
		c.Set(ContextKeyIsTest, apiKey.IsTest())

		m.metrics.RecordAdmission("authenticate", "OK")
		c.Next()
	}
}

func (m *APIKeyMiddleware) reject(c *gin.Context, err error) {
	for sentinel, r := range authRejections {
		if errors.Is(err, sentinel) {
			m.metrics.RecordAdmission("authenticate", sentinel.Error())
			utils.Error(c, r.status, sentinel.Error(), r.message)
			c.Abort()
			return
		}
	}

	log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("API key authentication failed")
	m.metrics.RecordAdmission("authenticate", utils.CodeAuthError)
	utils.Error(c, http.StatusInternalServerError, utils.CodeAuthError, "Authentication failed")
	c.Abort()
}

// GetAPIKey returns the authenticated API key from context.
func GetAPIKey(c *gin.Context) *models.APIKey {
	v, ok := c.Get(ContextKeyAPIKey)
	if !ok {
		return nil
	}
	k, _ := v.(*models.APIKey)
	return k
}

// GetMerchant returns the merchant bound to the authenticated API key.
func GetMerchant(c *gin.Context) *models.Merchant {
	v, ok := c.Get(ContextKeyMerchant)
	if !ok {
		return nil
	}
	m, _ := v.(*models.Merchant)
	return m
}

// IsTestMode indicates whether the request was made with a test key.
func IsTestMode(c *gin.Context) bool {
	return c.GetBool(ContextKeyIsTest)
}
