package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_paygate/internal/models"
	"github.com/GTDGit/gtd_paygate/internal/utils"
)

var apiKeyColumns = []string{
	"id", "key", "secret", "name", "merchant_id", "is_active", "is_revoked",
	"permissions", "ip_whitelist", "rate_limit_per_minute", "last_used_at", "usage_count",
	"revoked_at", "created_at", "updated_at",
	"id", "name", "email", "is_active", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestAPIKeyRepository_FindActiveKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAPIKeyRepository(db)
	now := time.Now()
	key := "pk_live_ABCdef0123456789ABCdef0123456789"

	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN merchants m ON m.id = k.merchant_id")).
		WithArgs(key).
		WillReturnRows(sqlmock.NewRows(apiKeyColumns).AddRow(
			"key-1", key, "sk_abc", "primary", "m-1", true, false,
			"{payments:write,refunds:write}", "{1.2.3.4}", int64(5), now, int64(42),
			nil, now, now,
			"m-1", "Acme", "ops@acme.test", true, now, now,
		))

	k, err := repo.FindActiveKey(context.Background(), key)
	require.NoError(t, err)

	assert.Equal(t, "key-1", k.ID)
	assert.Equal(t, "sk_abc", k.Secret)
	assert.Equal(t, []string{"payments:write", "refunds:write"}, k.Permissions)
	assert.Equal(t, []string{"1.2.3.4"}, k.IPWhitelist)
	assert.Equal(t, 5, k.Restrictions.RateLimit.RequestsPerMinute)
	assert.Equal(t, int64(42), k.UsageCount)
	require.NotNil(t, k.LastUsed)
	assert.Nil(t, k.RevokedAt)
	require.NotNil(t, k.Merchant)
	assert.Equal(t, "Acme", k.Merchant.Name)
	assert.True(t, k.Merchant.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyRepository_FindActiveKey_MissingMerchant(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAPIKeyRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("k.is_active = true AND k.is_revoked = false")).
		WillReturnRows(sqlmock.NewRows(apiKeyColumns).AddRow(
			"key-1", "pk", "", "", "m-gone", true, false,
			"{}", nil, int64(0), nil, int64(0),
			nil, now, now,
			nil, nil, nil, nil, nil, nil,
		))

	k, err := repo.FindActiveKey(context.Background(), "pk")
	require.NoError(t, err)
	assert.Nil(t, k.Merchant)
	assert.Nil(t, k.LastUsed)
	assert.Empty(t, k.IPWhitelist)
	assert.False(t, k.HasSecret())
}

func TestAPIKeyRepository_FindActiveKey_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAPIKeyRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM api_keys k")).
		WillReturnRows(sqlmock.NewRows(apiKeyColumns))

	_, err := repo.FindActiveKey(context.Background(), "pk_live_missing")
	assert.ErrorIs(t, err, utils.ErrAPIKeyNotFound)
}

func TestAPIKeyRepository_FindActiveKey_DBError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAPIKeyRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM api_keys k")).WillReturnError(sql.ErrConnDone)

	_, err := repo.FindActiveKey(context.Background(), "pk")
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NotErrorIs(t, err, utils.ErrAPIKeyNotFound)
}

func TestAPIKeyRepository_Touch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAPIKeyRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SET last_used_at = NOW(), usage_count = usage_count + 1 WHERE id = $1")).
		WithArgs("key-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Touch(context.Background(), "key-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyRepository_SetActive_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAPIKeyRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE api_keys SET is_active = $1")).
		WithArgs(false, "nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.SetActive(context.Background(), "nope", false), utils.ErrAPIKeyNotFound)
}

func TestAPIKeyRepository_Revoke(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAPIKeyRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SET is_revoked = true")).
		WithArgs("key-1").
		WillReturnRows(sqlmock.NewRows([]string{"revoked_at"}).AddRow(now))
	mock.ExpectQuery(regexp.QuoteMeta("SET is_revoked = true")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"revoked_at"}))

	at, err := repo.Revoke(context.Background(), "key-1")
	require.NoError(t, err)
	assert.True(t, at.Equal(now))

	_, err = repo.Revoke(context.Background(), "missing")
	assert.ErrorIs(t, err, utils.ErrAPIKeyNotFound)
}

func TestAPIKeyRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAPIKeyRepository(db)
	now := time.Now()

	k := &models.APIKey{
		Key:         "pk_test_ABCdef0123456789ABCdef0123456789",
		MerchantID:  "m-1",
		IsActive:    true,
		Permissions: []string{"merchant:read"},
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO api_keys")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "usage_count", "created_at", "updated_at"}).
			AddRow("key-9", int64(0), now, now))

	require.NoError(t, repo.Create(context.Background(), k))
	assert.Equal(t, "key-9", k.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyRepository_ListByMerchant(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAPIKeyRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM api_keys WHERE merchant_id = $1")).
		WithArgs("m-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta("k.merchant_id = $1 ORDER BY k.created_at DESC LIMIT $2 OFFSET $3")).
		WithArgs("m-1", 5, 5).
		WillReturnRows(sqlmock.NewRows(apiKeyColumns).
			AddRow(
				"key-6", "pk_live_6", "", "sixth", "m-1", true, false,
				"{payments:write}", "{}", int64(100), nil, int64(0),
				nil, now, now,
				"m-1", "Acme", "ops@acme.test", true, now, now,
			).
			AddRow(
				"key-7", "pk_live_7", "", "seventh", "m-1", false, true,
				"{}", "{}", int64(100), nil, int64(0),
				now, now, now,
				"m-1", "Acme", "ops@acme.test", true, now, now,
			))

	keys, total, err := repo.ListByMerchant(context.Background(), "m-1", 5, 5)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, keys, 2)
	assert.Equal(t, "key-6", keys[0].ID)
	assert.True(t, keys[1].IsRevoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}
