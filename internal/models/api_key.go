package models

import (
	"slices"
	"strings"
	"time"
)

// Key prefixes. Test keys route to sandbox behaviour downstream.
const (
	LiveKeyPrefix = "pk_live_"
	TestKeyPrefix = "pk_test_"
)

// APIKey is the authorization unit of the merchant API. A key's authority is
// always scoped to its owning merchant. The secret is never rendered to JSON.
type APIKey struct {
	ID           string       `db:"id" json:"id"`
	Key          string       `db:"key" json:"key"`
	Secret       string       `db:"secret" json:"-"`
	Name         string       `db:"name" json:"name"`
	MerchantID   string       `db:"merchant_id" json:"merchantId"`
	Merchant     *Merchant    `db:"-" json:"merchant,omitempty"`
	IsActive     bool         `db:"is_active" json:"isActive"`
	IsRevoked    bool         `db:"is_revoked" json:"isRevoked"`
	Permissions  []string     `db:"permissions" json:"permissions"`
	IPWhitelist  []string     `db:"ip_whitelist" json:"ipWhitelist"`
	Restrictions Restrictions `db:"-" json:"restrictions"`
	LastUsed     *time.Time   `db:"last_used_at" json:"lastUsed,omitempty"`
	UsageCount   int64        `db:"usage_count" json:"usageCount"`
	RevokedAt    *time.Time   `db:"revoked_at" json:"revokedAt,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
}

// Restrictions groups per-key admission limits.
type Restrictions struct {
	RateLimit RateLimit `json:"rateLimit"`
}

// RateLimit holds the request ceiling for a key. A zero ceiling admits
// only the request that opens each window.
type RateLimit struct {
	RequestsPerMinute int `json:"requestsPerMinute"`
}

// Usable reports whether the key may authenticate at all.
func (k *APIKey) Usable() bool {
	return k.IsActive && !k.IsRevoked
}

// IsTest reports whether the key is a sandbox key.
func (k *APIKey) IsTest() bool {
	return strings.HasPrefix(k.Key, TestKeyPrefix)
}

// HasSecret reports whether a shared secret was issued with the key.
func (k *APIKey) HasSecret() bool {
	return k.Secret != ""
}

// Clone returns a copy that shares no mutable state with k.
func (k *APIKey) Clone() *APIKey {
	c := *k
	if k.Merchant != nil {
		m := *k.Merchant
		c.Merchant = &m
	}
	c.Permissions = slices.Clone(k.Permissions)
	c.IPWhitelist = slices.Clone(k.IPWhitelist)
	if k.LastUsed != nil {
		t := *k.LastUsed
		c.LastUsed = &t
	}
	if k.RevokedAt != nil {
		t := *k.RevokedAt
		c.RevokedAt = &t
	}
	return &c
}
