package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/GTDGit/gtd_paygate/internal/models"
	"github.com/GTDGit/gtd_paygate/internal/utils"
)

// AdminUserStore persists admin console users.
type AdminUserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	Create(ctx context.Context, user *models.AdminUser) error
}

type AdminAuthService struct {
	adminRepo AdminUserStore
	jwtSecret string
	jwtTTL    time.Duration
}

func NewAdminAuthService(adminRepo AdminUserStore, jwtSecret string, jwtTTL time.Duration) *AdminAuthService {
	return &AdminAuthService{adminRepo: adminRepo, jwtSecret: jwtSecret, jwtTTL: jwtTTL}
}

func (s *AdminAuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.adminRepo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Error().Err(err).Msg("Failed to get admin user by email")
		}
		return "", utils.ErrInvalidCredentials
	}

	if !user.IsActive {
		log.Warn().Str("admin_id", user.ID).Msg("Account is inactive")
		return "", utils.ErrAccountInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", utils.ErrInvalidCredentials
	}

	log.Info().Str("admin_id", user.ID).Msg("Login successful")

	return utils.GenerateJWT(s.jwtSecret, user.ID, user.Email, s.jwtTTL)
}

func (s *AdminAuthService) CreateAdmin(ctx context.Context, email, password, name string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := &models.AdminUser{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hashedPassword),
		Name:         name,
		IsActive:     true,
	}

	return s.adminRepo.Create(ctx, user)
}

// EnsureAdmin creates the bootstrap admin if it does not exist yet.
func (s *AdminAuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := s.adminRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	log.Info().Str("email", email).Msg("creating bootstrap admin")
	return s.CreateAdmin(ctx, email, password, "Administrator")
}
