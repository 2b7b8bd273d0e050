package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/gtd_paygate/internal/utils"
)

var startTime = time.Now()

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler provides health endpoint.
type HealthHandler struct {
	checks  map[string]HealthCheck
	timeout time.Duration
}

// NewHealthHandler creates a new HealthHandler. checks is keyed by dependency name.
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 2 * time.Second}
}

// GetHealth responds with service and dependency status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	deps := gin.H{}
	for _, name := range names {
		status := "connected"
		if err := h.checks[name](ctx); err != nil {
			status = "disconnected"
			healthy = false
		}
		deps[name] = gin.H{"status": status}
	}

	data := gin.H{
		"status":       "healthy",
		"version":      "1.0.0",
		"uptime":       int(time.Since(startTime).Seconds()),
		"dependencies": deps,
	}

	if !healthy {
		data["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, utils.Response{
			Success: false,
			Code:    http.StatusServiceUnavailable,
			Message: "Service is degraded",
			Data:    data,
			Error:   &utils.ErrorInfo{Code: "SERVICE_UNAVAILABLE", Message: "One or more dependencies are unavailable"},
			Meta:    utils.Meta{Timestamp: time.Now().Format(time.RFC3339)},
		})
		return
	}

	utils.Success(c, http.StatusOK, "Service is healthy", data)
}
