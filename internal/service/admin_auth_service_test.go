package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_paygate/internal/models"
	"github.com/GTDGit/gtd_paygate/internal/utils"
)

type memAdmins struct {
	byEmail map[string]*models.AdminUser
}

func (s *memAdmins) GetByEmail(_ context.Context, email string) (*models.AdminUser, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (s *memAdmins) Create(_ context.Context, u *models.AdminUser) error {
	u.ID = "admin-" + u.Email
	s.byEmail[u.Email] = u
	return nil
}

func TestAdminAuth_LoginFlow(t *testing.T) {
	store := &memAdmins{byEmail: make(map[string]*models.AdminUser)}
	svc := NewAdminAuthService(store, "jwt-secret", time.Hour)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "Root@Example.test", "hunter22"))
	require.NoError(t, svc.EnsureAdmin(ctx, "root@example.test", "ignored"))
	assert.Len(t, store.byEmail, 1)

	token, err := svc.Login(ctx, "root@example.test", "hunter22")
	require.NoError(t, err)

	claims, err := utils.ValidateJWT("jwt-secret", token)
	require.NoError(t, err)
	assert.Equal(t, "admin-root@example.test", claims.UserID)

	_, err = svc.Login(ctx, "root@example.test", "wrong")
	assert.ErrorIs(t, err, utils.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.test", "hunter22")
	assert.ErrorIs(t, err, utils.ErrInvalidCredentials)

	store.byEmail["root@example.test"].IsActive = false
	_, err = svc.Login(ctx, "root@example.test", "hunter22")
	assert.ErrorIs(t, err, utils.ErrAccountInactive)
}

func TestAdminAuth_EnsureAdminSkipsWhenUnset(t *testing.T) {
	store := &memAdmins{byEmail: make(map[string]*models.AdminUser)}
	svc := NewAdminAuthService(store, "jwt-secret", time.Hour)

	require.NoError(t, svc.EnsureAdmin(context.Background(), "", ""))
	assert.Empty(t, store.byEmail)
}
