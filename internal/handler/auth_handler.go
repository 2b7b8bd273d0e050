package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/gtd_paygate/internal/service"
	"github.com/GTDGit/gtd_paygate/internal/utils"
)

type AuthHandler struct {
	authService *service.AdminAuthService
}

func NewAuthHandler(authService *service.AdminAuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, utils.ErrAccountInactive) {
			utils.Error(c, 403, utils.ErrAccountInactive.Error(), "Account is inactive")
			return
		}
		if errors.Is(err, utils.ErrInvalidCredentials) {
			utils.Error(c, 401, utils.ErrInvalidCredentials.Error(), "Invalid email or password")
			return
		}
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to log in")
		return
	}

	utils.Success(c, 200, "Login successful", gin.H{
		"token": token,
	})
}
