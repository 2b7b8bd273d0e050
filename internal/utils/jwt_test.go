package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("s3cret", "admin-1", "ops@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.UserID)
	assert.Equal(t, "ops@example.com", claims.Email)
}

func TestValidateJWT_Rejects(t *testing.T) {
	token, err := GenerateJWT("s3cret", "admin-1", "ops@example.com", time.Hour)
	require.NoError(t, err)

	_, err = ValidateJWT("other", token)
	assert.Error(t, err)

	expired, err := GenerateJWT("s3cret", "admin-1", "ops@example.com", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateJWT("s3cret", expired)
	assert.Error(t, err)

	_, err = ValidateJWT("s3cret", "not-a-token")
	assert.Error(t, err)
}
