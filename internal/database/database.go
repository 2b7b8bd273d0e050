package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"

	appconfig "github.com/GTDGit/gtd_paygate/internal/config"
)

// Connect establishes a PostgreSQL connection using the provided configuration.
// It retries with exponential backoff while the database comes up and gives up
// early when ctx is cancelled. The returned *sqlx.DB is pinged before returning.
func Connect(ctx context.Context, cfg *appconfig.DatabaseConfig) (*sqlx.DB, error) {
	if cfg == nil {
		return nil, errors.New("nil database config")
	}

	const (
		maxAttempts = 5
		baseDelay   = 500 * time.Millisecond
	)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		db, err := sqlx.Open("postgres", DSN(cfg))
		if err == nil {
			setPool(db.DB, cfg)

			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = db.PingContext(pingCtx)
			cancel()
			if err == nil {
				return db, nil
			}
			_ = db.Close()
		}
		lastErr = err

		log.Warn().Err(err).Int("attempt", attempt).Msg("database not ready, retrying")
		if err := sleepWithBackoff(ctx, attempt, baseDelay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxAttempts, lastErr)
}

// DSN builds the lib/pq connection URL.
func DSN(cfg *appconfig.DatabaseConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password), cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)
}

func setPool(db *sql.DB, cfg *appconfig.DatabaseConfig) {
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
}

// sleepWithBackoff waits base * 2^(attempt-1), capped to 5s.
func sleepWithBackoff(ctx context.Context, attempt int, base time.Duration) error {
	d := base << (attempt - 1)
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
