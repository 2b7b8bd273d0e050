package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "paygate")
	t.Setenv("DB_NAME", "paygate")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.Gateway.CacheTTL)
	assert.Equal(t, time.Minute, cfg.Gateway.RateLimitWindow)
	assert.Equal(t, 10*time.Second, cfg.Gateway.RequestTimeout)
	assert.Equal(t, ClientIPModePeer, cfg.Gateway.ClientIPMode)
	assert.Empty(t, cfg.Gateway.TrustedProxies)
	assert.Equal(t, 1024, cfg.Usage.QueueSize)
	assert.Equal(t, 3, cfg.Usage.MaxRetries)
	assert.Equal(t, 64, cfg.Usage.MaxOverflow)
	assert.Equal(t, 5*time.Second, cfg.Usage.DrainTimeout)
	assert.Equal(t, "file://migrations", cfg.Migration.Path)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("RATE_LIMIT_WINDOW", "1h")
	t.Setenv("CLIENT_IP_MODE", "FORWARDED")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1, 10.0.0.2,,")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.Gateway.RateLimitWindow)
	assert.Equal(t, ClientIPModeForwarded, cfg.Gateway.ClientIPMode)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Gateway.TrustedProxies)
	assert.Equal(t, 0, cfg.Redis.DB)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "bad window", env: map[string]string{"RATE_LIMIT_WINDOW": "soon"}, want: "RATE_LIMIT_WINDOW"},
		{name: "zero cache ttl", env: map[string]string{"CACHE_TTL": "0s"}, want: "CACHE_TTL"},
		{name: "unknown ip mode", env: map[string]string{"CLIENT_IP_MODE": "header"}, want: "CLIENT_IP_MODE"},
		{name: "missing jwt secret", env: map[string]string{"JWT_SECRET": ""}, want: "JWT_SECRET"},
		{name: "missing db host", env: map[string]string{"DB_HOST": ""}, want: "DB_HOST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
