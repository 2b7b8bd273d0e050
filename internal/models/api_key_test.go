package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAPIKey_CloneIsIndependent(t *testing.T) {
	used := time.Now()
	k := &APIKey{
		ID:          "key-1",
		Key:         TestKeyPrefix + "abc",
		Merchant:    &Merchant{ID: "m-1", IsActive: true},
		Permissions: []string{"payments:write"},
		IPWhitelist: []string{},
		LastUsed:    &used,
	}

	c := k.Clone()
	assert.Equal(t, k, c)

	c.Merchant.IsActive = false
	c.Permissions[0] = "merchant:read"
	*c.LastUsed = used.Add(time.Hour)

	assert.True(t, k.Merchant.IsActive)
	assert.Equal(t, "payments:write", k.Permissions[0])
	assert.Equal(t, used, *k.LastUsed)
	assert.NotNil(t, c.IPWhitelist, "empty whitelist stays empty, not nil")
	assert.True(t, c.IsTest())
}

func TestAPIKey_HasSecret(t *testing.T) {
	assert.False(t, (&APIKey{}).HasSecret())
	assert.True(t, (&APIKey{Secret: "sk"}).HasSecret())
}
