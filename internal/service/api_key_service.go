package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/GTDGit/gtd_paygate/internal/models"
	"github.com/GTDGit/gtd_paygate/internal/utils"
)

// DefaultRequestsPerMinute applies when a key is issued without a ceiling.
const DefaultRequestsPerMinute = 100

// ErrInvalidIPAddress is returned when a whitelist entry is not an IP address.
var ErrInvalidIPAddress = errors.New("INVALID_IP_ADDRESS")

// APIKeyStore persists API keys for the admin console.
type APIKeyStore interface {
	Create(ctx context.Context, k *models.APIKey) error
	GetByID(ctx context.Context, id string) (*models.APIKey, error)
	ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]*models.APIKey, int, error)
	UpdateRestrictions(ctx context.Context, k *models.APIKey) error
	Revoke(ctx context.Context, id string) (time.Time, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// KeyEvicter drops cached copies of a key.
type KeyEvicter interface {
	Evict(ctx context.Context, key string) error
}

// APIKeyService manages the key lifecycle outside the admission path:
// issue, update restrictions, revoke and deactivate. Keys are never deleted.
type APIKeyService struct {
	keys      APIKeyStore
	merchants MerchantStore
	cache     KeyEvicter
}

// NewAPIKeyService constructs an APIKeyService. cache may be nil.
func NewAPIKeyService(keys APIKeyStore, merchants MerchantStore, cache KeyEvicter) *APIKeyService {
	return &APIKeyService{keys: keys, merchants: merchants, cache: cache}
}

// IssueKeyRequest represents the request to issue a key for a merchant.
type IssueKeyRequest struct {
	Name              string   `json:"name"`
	Mode              string   `json:"mode" binding:"required,oneof=live test"`
	Permissions       []string `json:"permissions"`
	IPWhitelist       []string `json:"ipWhitelist"`
	RequestsPerMinute *int     `json:"requestsPerMinute" binding:"omitempty,min=0"`
	WithSecret        bool     `json:"withSecret"`
}

// UpdateKeyRequest represents the request to update key restrictions.
// Nil fields are left unchanged.
type UpdateKeyRequest struct {
	Name              *string  `json:"name"`
	Permissions       []string `json:"permissions"`
	IPWhitelist       []string `json:"ipWhitelist"`
	RequestsPerMinute *int     `json:"requestsPerMinute" binding:"omitempty,min=0"`
}

// IssuedKey is returned once at issuance; it is the only response that
// carries the secret.
type IssuedKey struct {
	*models.APIKey
	Secret string `json:"secret,omitempty"`
}

// IssueKey generates and stores a new key for an existing merchant.
func (s *APIKeyService) IssueKey(ctx context.Context, merchantID string, req *IssueKeyRequest) (*IssuedKey, error) {
	if _, err := s.merchants.GetByID(ctx, merchantID); err != nil {
		return nil, err
	}

	whitelist, err := normalizeWhitelist(req.IPWhitelist)
	if err != nil {
		return nil, err
	}

	key, err := utils.GenerateAPIKey(req.Mode)
	if err != nil {
		return nil, err
	}

	var secret string
	if req.WithSecret {
		if secret, err = utils.GenerateSecretKey(); err != nil {
			return nil, err
		}
	}

	limit := DefaultRequestsPerMinute
	if req.RequestsPerMinute != nil {
		limit = *req.RequestsPerMinute
	}

	k := &models.APIKey{
		Key:         key,
		Secret:      secret,
		Name:        strings.TrimSpace(req.Name),
		MerchantID:  merchantID,
		IsActive:    true,
		Permissions: normalizePermissions(req.Permissions),
		IPWhitelist: whitelist,
		Restrictions: models.Restrictions{
			RateLimit: models.RateLimit{RequestsPerMinute: limit},
		},
	}
	if err := s.keys.Create(ctx, k); err != nil {
		return nil, fmt.Errorf("failed to create api key: %w", err)
	}

	log.Info().Str("merchant_id", merchantID).Str("api_key_id", k.ID).Bool("is_test", k.IsTest()).Msg("api key issued")
	return &IssuedKey{APIKey: k, Secret: secret}, nil
}

// GetKey retrieves a key by id.
func (s *APIKeyService) GetKey(ctx context.Context, id string) (*models.APIKey, error) {
	return s.keys.GetByID(ctx, id)
}

// ListKeys lists one page of a merchant's keys and the merchant's key count.
func (s *APIKeyService) ListKeys(ctx context.Context, merchantID string, page, limit int) ([]*models.APIKey, int, error) {
	if _, err := s.merchants.GetByID(ctx, merchantID); err != nil {
		return nil, 0, err
	}
	limit, offset := utils.PageBounds(page, limit)
	return s.keys.ListByMerchant(ctx, merchantID, limit, offset)
}

// UpdateKey changes the authorization fields of a key.
func (s *APIKeyService) UpdateKey(ctx context.Context, id string, req *UpdateKeyRequest) (*models.APIKey, error) {
	k, err := s.keys.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		k.Name = strings.TrimSpace(*req.Name)
	}
	if req.Permissions != nil {
		k.Permissions = normalizePermissions(req.Permissions)
	}
	if req.IPWhitelist != nil {
		if k.IPWhitelist, err = normalizeWhitelist(req.IPWhitelist); err != nil {
			return nil, err
		}
	}
	if req.RequestsPerMinute != nil {
		k.Restrictions.RateLimit.RequestsPerMinute = *req.RequestsPerMinute
	}

	if err := s.keys.UpdateRestrictions(ctx, k); err != nil {
		return nil, err
	}
	s.evict(ctx, k)
	return k, nil
}

// RevokeKey revokes a key permanently.
func (s *APIKeyService) RevokeKey(ctx context.Context, id string) (*models.APIKey, error) {
	if _, err := s.keys.Revoke(ctx, id); err != nil {
		return nil, err
	}
	log.Info().Str("api_key_id", id).Msg("api key revoked")
	return s.reload(ctx, id)
}

// DeactivateKey soft-deactivates a key.
func (s *APIKeyService) DeactivateKey(ctx context.Context, id string) (*models.APIKey, error) {
	if err := s.keys.SetActive(ctx, id, false); err != nil {
		return nil, err
	}
	log.Info().Str("api_key_id", id).Msg("api key deactivated")
	return s.reload(ctx, id)
}

func (s *APIKeyService) reload(ctx context.Context, id string) (*models.APIKey, error) {
	k, err := s.keys.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.evict(ctx, k)
	return k, nil
}

// evict drops the cached copy after an admin change. On failure the stale
// entry lives until its TTL runs out.
func (s *APIKeyService) evict(ctx context.Context, k *models.APIKey) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Evict(ctx, k.Key); err != nil {
		log.Warn().Err(err).Str("api_key_id", k.ID).Msg("failed to evict cached api key")
	}
}

func normalizePermissions(perms []string) []string {
	out := lo.Uniq(lo.FilterMap(perms, func(p string, _ int) (string, bool) {
		p = strings.TrimSpace(p)
		return p, p != ""
	}))
	if out == nil {
		out = []string{}
	}
	return out
}

func normalizeWhitelist(ips []string) ([]string, error) {
	out := make([]string, 0, len(ips))
	for _, raw := range ips {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		ip := net.ParseIP(raw)
		if ip == nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIPAddress, raw)
		}
		out = append(out, ip.String())
	}
	return lo.Uniq(out), nil
}
