package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/GTDGit/gtd_paygate/internal/service"
	"github.com/GTDGit/gtd_paygate/internal/utils"
)

// MerchantHandler handles merchant management HTTP endpoints.
type MerchantHandler struct {
	merchantService *service.MerchantService
}

// NewMerchantHandler constructs a MerchantHandler.
func NewMerchantHandler(merchantService *service.MerchantService) *MerchantHandler {
	return &MerchantHandler{merchantService: merchantService}
}

// CreateMerchant handles POST /v1/admin/merchants
func (h *MerchantHandler) CreateMerchant(c *gin.Context) {
	var req service.CreateMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	merchant, err := h.merchantService.CreateMerchant(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, utils.ErrMerchantExists) {
			utils.Error(c, 409, utils.ErrMerchantExists.Error(), "Merchant email already registered")
			return
		}
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to create merchant")
		return
	}

	utils.Success(c, 201, "Merchant created successfully", merchant)
}

// GetMerchant handles GET /v1/admin/merchants/:id
func (h *MerchantHandler) GetMerchant(c *gin.Context) {
	id, ok := parseID(c, "Invalid merchant ID")
	if !ok {
		return
	}

	merchant, err := h.merchantService.GetMerchant(c.Request.Context(), id)
	if err != nil {
		writeLookupError(c, err, "Failed to retrieve merchant")
		return
	}

	utils.Success(c, 200, "Merchant retrieved", merchant)
}

// ListMerchants handles GET /v1/admin/merchants
func (h *MerchantHandler) ListMerchants(c *gin.Context) {
	page, limit := utils.PageParams(c)

	merchants, total, err := h.merchantService.ListMerchants(c.Request.Context(), page, limit)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve merchants")
		return
	}

	utils.SuccessWithPagination(c, 200, "Merchants retrieved", merchants, utils.NewPagination(page, limit, total))
}

// UpdateStatus handles PUT /v1/admin/merchants/:id/status
func (h *MerchantHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "Invalid merchant ID")
	if !ok {
		return
	}

	var req struct {
		IsActive *bool `json:"isActive" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	merchant, err := h.merchantService.SetMerchantActive(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		writeLookupError(c, err, "Failed to update merchant")
		return
	}

	utils.Success(c, 200, "Merchant status updated", merchant)
}

// parseID reads the :id path parameter, which must be a UUID.
func parseID(c *gin.Context, message string) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		utils.Error(c, 400, "INVALID_ID", message)
		return "", false
	}
	return id, true
}

func writeLookupError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, utils.ErrMerchantNotFound):
		utils.Error(c, 404, utils.ErrMerchantNotFound.Error(), "Merchant not found")
	case errors.Is(err, utils.ErrAPIKeyNotFound):
		utils.Error(c, 404, utils.ErrAPIKeyNotFound.Error(), "API key not found")
	default:
		utils.Error(c, 500, "INTERNAL_ERROR", fallback)
	}
}
