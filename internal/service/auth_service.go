package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"

	"github.com/GTDGit/gtd_paygate/internal/metrics"
	"github.com/GTDGit/gtd_paygate/internal/models"
	"github.com/GTDGit/gtd_paygate/internal/utils"
)

// KeyStore is the authoritative source of API keys.
type KeyStore interface {
	// FindActiveKey returns the active, non-revoked key with its merchant,
	// or utils.ErrAPIKeyNotFound.
	FindActiveKey(ctx context.Context, key string) (*models.APIKey, error)
}

// KeyCache is an advisory read-through cache of API keys.
type KeyCache interface {
	// GetAPIKey returns (nil, nil) on a miss.
	GetAPIKey(ctx context.Context, key string) (*models.APIKey, error)
	SetAPIKey(ctx context.Context, k *models.APIKey) error
}

// AuthService authenticates API keys and answers authorization questions
// about an authenticated key.
type AuthService struct {
	store        KeyStore
	cache        KeyCache
	metrics      *metrics.Metrics
	lookups      singleflight.Group
	storeTimeout time.Duration
}

// NewAuthService constructs a new AuthService. cache may be nil.
func NewAuthService(store KeyStore, cache KeyCache, m *metrics.Metrics) *AuthService {
	return &AuthService{
		store:        store,
		cache:        cache,
		metrics:      m,
		storeTimeout: 5 * time.Second,
	}
}

// Authenticate resolves a key string to its record and bound merchant.
// A non-empty secret must match the stored secret exactly; an empty secret
// skips the check. Store failures are returned wrapped and must be treated
// as a rejection by the caller.
func (s *AuthService) Authenticate(ctx context.Context, key, secret string) (*models.APIKey, error) {
	if key == "" {
		return nil, utils.ErrAPIKeyRequired
	}

	record, err := s.resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	if secret != "" && (!record.HasSecret() || subtle.ConstantTimeCompare([]byte(secret), []byte(record.Secret)) != 1) {
		return nil, utils.ErrInvalidSecretKey
	}

	if record.Merchant == nil || !record.Merchant.IsActive {
		return nil, utils.ErrMerchantInactive
	}

	return record, nil
}

// resolve reads the key from cache, falling back to the store on a miss.
// Concurrent misses for the same key share one store read. The shared read is
// detached from the caller: a caller that gives up returns early while the
// read (and cache fill) may still finish in the background.
func (s *AuthService) resolve(ctx context.Context, key string) (*models.APIKey, error) {
	if s.cache != nil {
		cached, err := s.cache.GetAPIKey(ctx, key)
		switch {
		case err != nil:
			s.metrics.RecordCacheLookup("error")
			log.Warn().Err(err).Msg("api key cache read failed, falling back to store")
		case cached != nil:
			s.metrics.RecordCacheLookup("hit")
			return cached, nil
		default:
			s.metrics.RecordCacheLookup("miss")
		}
	}

	ch := s.lookups.DoChan(key, func() (interface{}, error) {
		return s.loadFromStore(context.WithoutCancel(ctx), key)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("api key lookup abandoned: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.APIKey).Clone(), nil
	}
}

func (s *AuthService) loadFromStore(ctx context.Context, key string) (*models.APIKey, error) {
	if s.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
	}

	record, err := s.store.FindActiveKey(ctx, key)
	if err != nil {
		if errors.Is(err, utils.ErrAPIKeyNotFound) {
			s.metrics.RecordStoreLookup("not_found")
			return nil, utils.ErrInvalidAPIKey
		}
		s.metrics.RecordStoreLookup("error")
		return nil, fmt.Errorf("failed to load api key: %w", err)
	}
	if record == nil || !record.Usable() {
		s.metrics.RecordStoreLookup("not_found")
		return nil, utils.ErrInvalidAPIKey
	}
	s.metrics.RecordStoreLookup("found")

	if s.cache != nil {
		if err := s.cache.SetAPIKey(ctx, record); err != nil {
			log.Warn().Err(err).Str("api_key_id", record.ID).Msg("failed to cache api key")
		}
	}

	return record, nil
}

// IsIPAllowed reports whether ip may use the key. An empty whitelist allows
// every address.
func (s *AuthService) IsIPAllowed(k *models.APIKey, ip string) bool {
	if k == nil {
		return false
	}
	if len(k.IPWhitelist) == 0 {
		return true
	}
	return lo.ContainsBy(k.IPWhitelist, func(allowed string) bool {
		return sameIP(allowed, ip)
	})
}

// HasPermission reports whether the key carries capability.
func (s *AuthService) HasPermission(k *models.APIKey, capability string) bool {
	if k == nil {
		return false
	}
	return lo.Contains(k.Permissions, capability)
}

// sameIP compares two addresses, treating IPv4-mapped IPv6 as IPv4.
func sameIP(a, b string) bool {
	ipA, ipB := net.ParseIP(a), net.ParseIP(b)
	if ipA == nil || ipB == nil {
		return a == b
	}
	return ipA.Equal(ipB)
}
