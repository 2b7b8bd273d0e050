package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GTDGit/gtd_paygate/internal/models"
)

// apiKeyEntry is the cached form of an API key. Unlike models.APIKey it keeps
// the secret, which the authentication stage needs on a cache hit.
type apiKeyEntry struct {
	ID                string           `json:"id"`
	Key               string           `json:"key"`
	Secret            string           `json:"secret,omitempty"`
	Name              string           `json:"name,omitempty"`
	MerchantID        string           `json:"merchantId"`
	Merchant          *models.Merchant `json:"merchant,omitempty"`
	IsActive          bool             `json:"isActive"`
	IsRevoked         bool             `json:"isRevoked"`
	Permissions       []string         `json:"permissions,omitempty"`
	IPWhitelist       []string         `json:"ipWhitelist,omitempty"`
	RequestsPerMinute int              `json:"requestsPerMinute"`
	LastUsed          *time.Time       `json:"lastUsed,omitempty"`
	UsageCount        int64            `json:"usageCount"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
	CachedAt          time.Time        `json:"cachedAt"`
}

// APIKeyCache is a read-through cache of API key records keyed by the public
// key string. It is advisory: entries may be stale for up to the TTL.
type APIKeyCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewAPIKeyCache creates a new APIKeyCache.
func NewAPIKeyCache(redis *RedisClient, ttl time.Duration) *APIKeyCache {
	return &APIKeyCache{redis: redis, ttl: ttl}
}

// keyFor returns the Redis key for a public API key.
func (c *APIKeyCache) keyFor(apiKey string) string {
	return fmt.Sprintf("apikey:%s", apiKey)
}

// GetAPIKey returns the cached record, or (nil, nil) on a miss.
func (c *APIKeyCache) GetAPIKey(ctx context.Context, apiKey string) (*models.APIKey, error) {
	raw, err := c.redis.Get(ctx, c.keyFor(apiKey))
	if err != nil {
		if IsMiss(err) {
			return nil, nil
		}
		return nil, err
	}

	var e apiKeyEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal api key entry: %w", err)
	}
	return e.toModel(), nil
}

// SetAPIKey stores the record for the configured TTL.
func (c *APIKeyCache) SetAPIKey(ctx context.Context, k *models.APIKey) error {
	e := newAPIKeyEntry(k)
	e.CachedAt = time.Now()

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal api key entry: %w", err)
	}
	if err := c.redis.Set(ctx, c.keyFor(k.Key), raw, c.ttl); err != nil {
		return fmt.Errorf("failed to cache api key: %w", err)
	}
	return nil
}

// Evict drops a cached record.
func (c *APIKeyCache) Evict(ctx context.Context, apiKey string) error {
	return c.redis.Delete(ctx, c.keyFor(apiKey))
}

func newAPIKeyEntry(k *models.APIKey) apiKeyEntry {
	return apiKeyEntry{
		ID:                k.ID,
		Key:               k.Key,
		Secret:            k.Secret,
		Name:              k.Name,
		MerchantID:        k.MerchantID,
		Merchant:          k.Merchant,
		IsActive:          k.IsActive,
		IsRevoked:         k.IsRevoked,
		Permissions:       k.Permissions,
		IPWhitelist:       k.IPWhitelist,
		RequestsPerMinute: k.Restrictions.RateLimit.RequestsPerMinute,
		LastUsed:          k.LastUsed,
		UsageCount:        k.UsageCount,
		CreatedAt:         k.CreatedAt,
		UpdatedAt:         k.UpdatedAt,
	}
}

func (e apiKeyEntry) toModel() *models.APIKey {
	return &models.APIKey{
		ID:          e.ID,
		Key:         e.Key,
		Secret:      e.Secret,
		Name:        e.Name,
		MerchantID:  e.MerchantID,
		Merchant:    e.Merchant,
		IsActive:    e.IsActive,
		IsRevoked:   e.IsRevoked,
		Permissions: e.Permissions,
		IPWhitelist: e.IPWhitelist,
		Restrictions: models.Restrictions{
			RateLimit: models.RateLimit{RequestsPerMinute: e.RequestsPerMinute},
		},
		LastUsed:   e.LastUsed,
		UsageCount: e.UsageCount,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}
