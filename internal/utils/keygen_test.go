package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAPIKeyFormat(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		valid bool
	}{
		{"live key", "pk_live_" + strings.Repeat("a", 32), true},
		{"test key mixed case", "pk_test_ABCdef0123456789ABCdef0123456789", true},
		{"empty", "", false},
		{"unknown mode", "pk_prod_" + strings.Repeat("a", 32), false},
		{"secret prefix", "sk_live_" + strings.Repeat("a", 32), false},
		{"too short", "pk_live_" + strings.Repeat("a", 31), false},
		{"too long", "pk_live_" + strings.Repeat("a", 33), false},
		{"bad charset", "pk_live_" + strings.Repeat("a", 31) + "-", false},
		{"trailing newline", "pk_live_" + strings.Repeat("a", 32) + "\n", false},
		{"upper prefix", "PK_LIVE_" + strings.Repeat("a", 32), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKeyFormat(tt.key)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidAPIKeyFormat)
			}
		})
	}
}

func TestGenerateAPIKey(t *testing.T) {
	live, err := GenerateAPIKey(KeyModeLive)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(live, "pk_live_"))
	assert.NoError(t, ValidateAPIKeyFormat(live))

	test, err := GenerateAPIKey(KeyModeTest)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(test, "pk_test_"))
	assert.NoError(t, ValidateAPIKeyFormat(test))

	assert.NotEqual(t, live[8:], test[8:])

	_, err = GenerateAPIKey("sandbox")
	assert.ErrorIs(t, err, ErrInvalidKeyMode)
}

func TestGenerateSecretKey(t *testing.T) {
	a, err := GenerateSecretKey()
	require.NoError(t, err)
	b, err := GenerateSecretKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "sk_"))
	assert.Len(t, a, 3+secretLength)
	assert.NotEqual(t, a, b)
}
