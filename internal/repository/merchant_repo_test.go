package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_paygate/internal/utils"
)

func TestMerchantRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMerchantRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM merchants")).
		WithArgs("m-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "is_active", "created_at", "updated_at"}).
			AddRow("m-1", "Acme", "ops@acme.test", false, now, now))

	m, err := repo.GetByID(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", m.Name)
	assert.False(t, m.IsActive)
}

func TestMerchantRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMerchantRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM merchants")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "is_active", "created_at", "updated_at"}))

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, utils.ErrMerchantNotFound)
}

func TestMerchantRepository_SetActive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMerchantRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE merchants SET is_active = $1")).
		WithArgs(false, "m-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE merchants SET is_active = $1")).
		WithArgs(true, "m-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SetActive(context.Background(), "m-1", false))
	assert.ErrorIs(t, repo.SetActive(context.Background(), "m-2", true), utils.ErrMerchantNotFound)
}

func TestMerchantRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMerchantRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM merchants")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $1 OFFSET $2")).
		WithArgs(2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "is_active", "created_at", "updated_at"}).
			AddRow("m-1", "Acme", "ops@acme.test", true, now, now))

	merchants, total, err := repo.List(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, merchants, 1)
	assert.Equal(t, "m-1", merchants[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerchantRepository_List_PastLastPage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMerchantRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM merchants")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $1 OFFSET $2")).
		WithArgs(50, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "is_active", "created_at", "updated_at"}))

	merchants, total, err := repo.List(context.Background(), 50, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.NotNil(t, merchants)
	assert.Empty(t, merchants)
}
