package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/GTDGit/gtd_paygate/internal/models"
	"github.com/GTDGit/gtd_paygate/internal/utils"
)

// APIKeyRepository provides data access methods for the api_keys table.
type APIKeyRepository struct {
	db *sqlx.DB
}

// NewAPIKeyRepository creates a new APIKeyRepository.
func NewAPIKeyRepository(db *sqlx.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// apiKeySelect joins the owning merchant so a key and its merchant are read
// in one round trip. Merchant columns are nullable because of the LEFT JOIN.
const apiKeySelect = `SELECT k.id, k.key, k.secret, k.name, k.merchant_id, k.is_active, k.is_revoked,
        k.permissions, k.ip_whitelist, k.rate_limit_per_minute, k.last_used_at, k.usage_count,
        k.revoked_at, k.created_at, k.updated_at,
        m.id, m.name, m.email, m.is_active, m.created_at, m.updated_at
        FROM api_keys k
        LEFT JOIN merchants m ON m.id = k.merchant_id
        WHERE `

type scanner interface {
	Scan(dest ...any) error
}

// scanAPIKey scans one joined row. TEXT[] columns go through pq.Array.
func scanAPIKey(row scanner) (*models.APIKey, error) {
	var (
		k         models.APIKey
		mID       sql.NullString
		mName     sql.NullString
		mEmail    sql.NullString
		mActive   sql.NullBool
		mCreated  sql.NullTime
		mUpdated  sql.NullTime
		lastUsed  sql.NullTime
		revokedAt sql.NullTime
	)
	if err := row.Scan(
		&k.ID,
		&k.Key,
		&k.Secret,
		&k.Name,
		&k.MerchantID,
		&k.IsActive,
		&k.IsRevoked,
		pq.Array(&k.Permissions),
		pq.Array(&k.IPWhitelist),
		&k.Restrictions.RateLimit.RequestsPerMinute,
		&lastUsed,
		&k.UsageCount,
		&revokedAt,
		&k.CreatedAt,
		&k.UpdatedAt,
		&mID,
		&mName,
		&mEmail,
		&mActive,
		&mCreated,
		&mUpdated,
	); err != nil {
		return nil, err
	}

	if lastUsed.Valid {
		t := lastUsed.Time
		k.LastUsed = &t
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		k.RevokedAt = &t
	}
	if mID.Valid {
		k.Merchant = &models.Merchant{
			ID:        mID.String,
			Name:      mName.String,
			Email:     mEmail.String,
			IsActive:  mActive.Valid && mActive.Bool,
			CreatedAt: mCreated.Time,
			UpdatedAt: mUpdated.Time,
		}
	}
	return &k, nil
}

func (r *APIKeyRepository) getBy(ctx context.Context, where string, args ...any) (*models.APIKey, error) {
	row := r.db.QueryRowxContext(ctx, apiKeySelect+where+" LIMIT 1", args...)
	k, err := scanAPIKey(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrAPIKeyNotFound
		}
		return nil, err
	}
	return k, nil
}

// FindActiveKey finds a usable key (active and not revoked) by its public key
// string, with its merchant resolved. Returns utils.ErrAPIKeyNotFound if none.
func (r *APIKeyRepository) FindActiveKey(ctx context.Context, key string) (*models.APIKey, error) {
	return r.getBy(ctx, "k.key = $1 AND k.is_active = true AND k.is_revoked = false", key)
}

// GetByID finds a key by id regardless of its state.
func (r *APIKeyRepository) GetByID(ctx context.Context, id string) (*models.APIKey, error) {
	return r.getBy(ctx, "k.id = $1", id)
}

// Touch records one use of a key. The increment happens in the database so
// concurrent touches never lose updates.
func (r *APIKeyRepository) Touch(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), usage_count = usage_count + 1 WHERE id = $1`, id)
	return err
}

// Create inserts a new key.
func (r *APIKeyRepository) Create(ctx context.Context, k *models.APIKey) error {
	query := `INSERT INTO api_keys (key, secret, name, merchant_id, is_active, is_revoked,
                  permissions, ip_whitelist, rate_limit_per_minute)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
              RETURNING id, usage_count, created_at, updated_at`

	return r.db.QueryRowxContext(ctx, query,
		k.Key,
		k.Secret,
		k.Name,
		k.MerchantID,
		k.IsActive,
		k.IsRevoked,
		pq.Array(k.Permissions),
		pq.Array(k.IPWhitelist),
		k.Restrictions.RateLimit.RequestsPerMinute,
	).Scan(&k.ID, &k.UsageCount, &k.CreatedAt, &k.UpdatedAt)
}

// UpdateRestrictions updates the mutable authorization fields of a key.
func (r *APIKeyRepository) UpdateRestrictions(ctx context.Context, k *models.APIKey) error {
	query := `UPDATE api_keys
              SET name = $1, permissions = $2, ip_whitelist = $3, rate_limit_per_minute = $4, updated_at = NOW()
              WHERE id = $5
              RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		k.Name,
		pq.Array(k.Permissions),
		pq.Array(k.IPWhitelist),
		k.Restrictions.RateLimit.RequestsPerMinute,
		k.ID,
	).Scan(&k.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return utils.ErrAPIKeyNotFound
	}
	return err
}

// Revoke permanently revokes a key. Keys are never deleted.
func (r *APIKeyRepository) Revoke(ctx context.Context, id string) (time.Time, error) {
	var revokedAt time.Time
	err := r.db.QueryRowxContext(ctx,
		`UPDATE api_keys SET is_revoked = true, revoked_at = COALESCE(revoked_at, NOW()), updated_at = NOW()
         WHERE id = $1 RETURNING revoked_at`, id).Scan(&revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, utils.ErrAPIKeyNotFound
	}
	return revokedAt, err
}

// SetActive activates or deactivates a key.
func (r *APIKeyRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return utils.ErrAPIKeyNotFound
	}
	return nil
}

// ListByMerchant lists one page of a merchant's keys, newest first, and the
// merchant's total key count.
func (r *APIKeyRepository) ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]*models.APIKey, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM api_keys WHERE merchant_id = $1`, merchantID); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryxContext(ctx,
		apiKeySelect+"k.merchant_id = $1 ORDER BY k.created_at DESC LIMIT $2 OFFSET $3",
		merchantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	keys := []*models.APIKey{}
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, 0, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return keys, total, nil
}
