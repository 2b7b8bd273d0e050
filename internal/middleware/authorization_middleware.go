package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_paygate/internal/config"
	"github.com/GTDGit/gtd_paygate/internal/metrics"
	"github.com/GTDGit/gtd_paygate/internal/service"
	"github.com/GTDGit/gtd_paygate/internal/utils"
)

// AuthorizationMiddleware enforces the IP whitelist and capability checks of
// an authenticated key.
type AuthorizationMiddleware struct {
	authService *service.AuthService
	ipMode      string
	metrics     *metrics.Metrics
}

// NewAuthorizationMiddleware constructs an AuthorizationMiddleware. ipMode is
// config.ClientIPModePeer or config.ClientIPModeForwarded.
func NewAuthorizationMiddleware(authService *service.AuthService, ipMode string, m *metrics.Metrics) *AuthorizationMiddleware {
	return &AuthorizationMiddleware{authService: authService, ipMode: ipMode, metrics: m}
}

// CheckIP rejects requests from addresses outside the key's whitelist.
func (m *AuthorizationMiddleware) CheckIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() { m.metrics.ObserveStage("ip", time.Since(start)) }()

		apiKey := GetAPIKey(c)
		if apiKey == nil {
			m.missingKey(c, "ip")
			return
		}

		ip := m.clientIP(c)
		if !m.authService.IsIPAllowed(apiKey, ip) {
			log.Warn().Str("api_key_id", apiKey.ID).Str("ip", ip).Msg("request from address outside whitelist")
			m.metrics.RecordAdmission("ip", utils.ErrIPNotAllowed.Error())
			utils.Error(c, http.StatusForbidden, utils.ErrIPNotAllowed.Error(), "Request from unauthorized IP address")
			c.Abort()
			return
		}

		m.metrics.RecordAdmission("ip", "OK")
		c.Next()
	}
}

// RequirePermission rejects keys that do not carry capability.
func (m *AuthorizationMiddleware) RequirePermission(capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := GetAPIKey(c)
		if apiKey == nil {
			m.missingKey(c, "permission")
			return
		}

		if !m.authService.HasPermission(apiKey, capability) {
			m.metrics.RecordAdmission("permission", utils.ErrPermissionDenied.Error())
			utils.Error(c, http.StatusForbidden, utils.ErrPermissionDenied.Error(),
				fmt.Sprintf("Missing required permission: %s", capability))
			c.Abort()
			return
		}

		m.metrics.RecordAdmission("permission", "OK")
		c.Next()
	}
}

func (m *AuthorizationMiddleware) clientIP(c *gin.Context) string {
	if m.ipMode == config.ClientIPModeForwarded {
		return c.ClientIP()
	}
	return c.RemoteIP()
}

func (m *AuthorizationMiddleware) missingKey(c *gin.Context, stage string) {
	log.Error().Str("path", c.Request.URL.Path).Msg("authorization reached without an authenticated key")
	m.metrics.RecordAdmission(stage, utils.CodePermissionError)
	utils.Error(c, http.StatusInternalServerError, utils.CodePermissionError, "Authorization failed")
	c.Abort()
}
