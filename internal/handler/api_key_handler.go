package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/gtd_paygate/internal/service"
	"github.com/GTDGit/gtd_paygate/internal/utils"
)

// APIKeyHandler handles API key management HTTP endpoints.
type APIKeyHandler struct {
	keyService *service.APIKeyService
}

// NewAPIKeyHandler constructs an APIKeyHandler.
func NewAPIKeyHandler(keyService *service.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{keyService: keyService}
}

// IssueKey handles POST /v1/admin/merchants/:id/keys
func (h *APIKeyHandler) IssueKey(c *gin.Context) {
	merchantID, ok := parseID(c, "Invalid merchant ID")
	if !ok {
		return
	}

	var req service.IssueKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	issued, err := h.keyService.IssueKey(c.Request.Context(), merchantID, &req)
	if err != nil {
		if h.writeValidationError(c, err) {
			return
		}
		writeLookupError(c, err, "Failed to issue API key")
		return
	}

	utils.Success(c, 201, "API key issued. Store the secret now, it will not be shown again", issued)
}

// ListKeys handles GET /v1/admin/merchants/:id/keys
func (h *APIKeyHandler) ListKeys(c *gin.Context) {
	merchantID, ok := parseID(c, "Invalid merchant ID")
	if !ok {
		return
	}

	page, limit := utils.PageParams(c)

	keys, total, err := h.keyService.ListKeys(c.Request.Context(), merchantID, page, limit)
	if err != nil {
		writeLookupError(c, err, "Failed to retrieve API keys")
		return
	}

	utils.SuccessWithPagination(c, 200, "API keys retrieved", keys, utils.NewPagination(page, limit, total))
}

// GetKey handles GET /v1/admin/keys/:id
func (h *APIKeyHandler) GetKey(c *gin.Context) {
	id, ok := parseID(c, "Invalid API key ID")
	if !ok {
		return
	}

	key, err := h.keyService.GetKey(c.Request.Context(), id)
	if err != nil {
		writeLookupError(c, err, "Failed to retrieve API key")
		return
	}

	utils.Success(c, 200, "API key retrieved", key)
}

// UpdateKey handles PUT /v1/admin/keys/:id
func (h *APIKeyHandler) UpdateKey(c *gin.Context) {
	id, ok := parseID(c, "Invalid API key ID")
	if !ok {
		return
	}

	var req service.UpdateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	key, err := h.keyService.UpdateKey(c.Request.Context(), id, &req)
	if err != nil {
		if h.writeValidationError(c, err) {
			return
		}
		writeLookupError(c, err, "Failed to update API key")
		return
	}

	utils.Success(c, 200, "API key updated", key)
}

// RevokeKey handles POST /v1/admin/keys/:id/revoke
func (h *APIKeyHandler) RevokeKey(c *gin.Context) {
	id, ok := parseID(c, "Invalid API key ID")
	if !ok {
		return
	}

	key, err := h.keyService.RevokeKey(c.Request.Context(), id)
	if err != nil {
		writeLookupError(c, err, "Failed to revoke API key")
		return
	}

	utils.Success(c, 200, "API key revoked", key)
}

// DeactivateKey handles POST /v1/admin/keys/:id/deactivate
func (h *APIKeyHandler) DeactivateKey(c *gin.Context) {
	id, ok := parseID(c, "Invalid API key ID")
	if !ok {
		return
	}

	key, err := h.keyService.DeactivateKey(c.Request.Context(), id)
	if err != nil {
		writeLookupError(c, err, "Failed to deactivate API key")
		return
	}

	utils.Success(c, 200, "API key deactivated", key)
}

func (h *APIKeyHandler) writeValidationError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, service.ErrInvalidIPAddress):
		utils.Error(c, 400, service.ErrInvalidIPAddress.Error(), err.Error())
	case errors.Is(err, utils.ErrInvalidKeyMode):
		utils.Error(c, 400, utils.ErrInvalidKeyMode.Error(), "Mode must be live or test")
	default:
		return false
	}
	return true
}
