package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Client address resolution policies for IP allow-list checks.
const (
	ClientIPModePeer      = "peer"
	ClientIPModeForwarded = "forwarded"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port      string
	Env       string
	JWTSecret string
	JWTTTL    time.Duration

	// Optional bootstrap admin, created on startup when missing.
	AdminEmail    string
	AdminPassword string

	// Hosts allowed to call the API from a browser.
	CORSAllowedHosts []string

	DB        DatabaseConfig
	Redis     RedisConfig
	Gateway   GatewayConfig
	Usage     UsageConfig
	Migration MigrationConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// GatewayConfig tunes the API key admission chain.
type GatewayConfig struct {
	CacheTTL        time.Duration
	RateLimitWindow time.Duration
	RequestTimeout  time.Duration
	ClientIPMode    string
	TrustedProxies  []string
}

// UsageConfig tunes the background usage recorder.
type UsageConfig struct {
	QueueSize    int
	MaxOverflow  int
	TouchTimeout time.Duration
	DrainTimeout time.Duration
	MaxRetries   int
}

// MigrationConfig points at the migration source.
type MigrationConfig struct {
	Path string
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Missing .env is fine; production relies on real environment variables.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.AdminEmail = getEnv("ADMIN_EMAIL", "")
	cfg.AdminPassword = getEnv("ADMIN_PASSWORD", "")
	cfg.CORSAllowedHosts = splitList(getEnv("CORS_ALLOWED_HOSTS", "localhost:3000,127.0.0.1:3000"))

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),

		MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	cfg.Gateway.ClientIPMode = strings.ToLower(getEnv("CLIENT_IP_MODE", ClientIPModePeer))
	cfg.Gateway.TrustedProxies = splitList(getEnv("TRUSTED_PROXIES", ""))

	cfg.Usage.QueueSize = getEnvInt("USAGE_QUEUE_SIZE", 1024)
	cfg.Usage.MaxOverflow = getEnvInt("USAGE_MAX_OVERFLOW", 64)
	cfg.Usage.MaxRetries = getEnvInt("USAGE_MAX_RETRIES", 3)

	cfg.Migration.Path = getEnv("MIGRATIONS_PATH", "file://migrations")

	// Durations
	var err error
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", "24h"); err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	if cfg.Gateway.CacheTTL, err = parseDurationEnv("CACHE_TTL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	if cfg.Gateway.RateLimitWindow, err = parseDurationEnv("RATE_LIMIT_WINDOW", "1m"); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW: %w", err)
	}
	if cfg.Gateway.RequestTimeout, err = parseDurationEnv("REQUEST_TIMEOUT", "10s"); err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}
	if cfg.DB.ConnMaxLifetime, err = parseDurationEnv("DB_CONN_MAX_LIFETIME", "5m"); err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}
	if cfg.Usage.TouchTimeout, err = parseDurationEnv("USAGE_TOUCH_TIMEOUT", "5s"); err != nil {
		return nil, fmt.Errorf("invalid USAGE_TOUCH_TIMEOUT: %w", err)
	}
	if cfg.Usage.DrainTimeout, err = parseDurationEnv("USAGE_DRAIN_TIMEOUT", "5s"); err != nil {
		return nil, fmt.Errorf("invalid USAGE_DRAIN_TIMEOUT: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DB.Host == "" || c.DB.User == "" || c.DB.Name == "" {
		return errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set for admin authentication")
	}
	if c.Gateway.ClientIPMode != ClientIPModePeer && c.Gateway.ClientIPMode != ClientIPModeForwarded {
		return fmt.Errorf("CLIENT_IP_MODE must be %q or %q", ClientIPModePeer, ClientIPModeForwarded)
	}
	if c.Gateway.CacheTTL <= 0 {
		return errors.New("CACHE_TTL must be > 0")
	}
	if c.Gateway.RateLimitWindow <= 0 {
		return errors.New("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.Usage.QueueSize < 0 || c.Usage.MaxRetries < 0 || c.Usage.MaxOverflow < 0 {
		return errors.New("USAGE_QUEUE_SIZE, USAGE_MAX_OVERFLOW and USAGE_MAX_RETRIES must be >= 0")
	}
	if c.Usage.DrainTimeout <= 0 {
		return errors.New("USAGE_DRAIN_TIMEOUT must be > 0")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
