package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_paygate/internal/models"
	"github.com/GTDGit/gtd_paygate/internal/utils"
)

// MerchantStore persists merchants.
type MerchantStore interface {
	GetByID(ctx context.Context, id string) (*models.Merchant, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, m *models.Merchant) error
	SetActive(ctx context.Context, id string, active bool) error
	List(ctx context.Context, limit, offset int) ([]*models.Merchant, int, error)
}

// MerchantService handles merchant onboarding for the admin console.
type MerchantService struct {
	merchants MerchantStore
}

// NewMerchantService constructs a MerchantService.
func NewMerchantService(merchants MerchantStore) *MerchantService {
	return &MerchantService{merchants: merchants}
}

// CreateMerchantRequest represents the request to onboard a merchant.
type CreateMerchantRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	IsActive *bool  `json:"isActive"`
}

// CreateMerchant registers a merchant. Merchants are active unless stated otherwise.
func (s *MerchantService) CreateMerchant(ctx context.Context, req *CreateMerchantRequest) (*models.Merchant, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.merchants.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, utils.ErrMerchantExists
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	m := &models.Merchant{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		IsActive: active,
	}
	if err := s.merchants.Create(ctx, m); err != nil {
		return nil, err
	}

	log.Info().Str("merchant_id", m.ID).Msg("merchant created")
	return m, nil
}

// GetMerchant retrieves a merchant by id.
func (s *MerchantService) GetMerchant(ctx context.Context, id string) (*models.Merchant, error) {
	return s.merchants.GetByID(ctx, id)
}

// ListMerchants retrieves one page of merchants and the total count.
func (s *MerchantService) ListMerchants(ctx context.Context, page, limit int) ([]*models.Merchant, int, error) {
	limit, offset := utils.PageBounds(page, limit)
	return s.merchants.List(ctx, limit, offset)
}

// SetMerchantActive toggles a merchant. Cached keys of a deactivated merchant
// keep authenticating until their cache entries expire.
func (s *MerchantService) SetMerchantActive(ctx context.Context, id string, active bool) (*models.Merchant, error) {
	if err := s.merchants.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	log.Info().Str("merchant_id", id).Bool("is_active", active).Msg("merchant status changed")
	return s.merchants.GetByID(ctx, id)
}
