package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/gtd_paygate/internal/models"
	"github.com/GTDGit/gtd_paygate/internal/utils"
)

// MerchantRepository provides data access methods for the merchants table.
type MerchantRepository struct {
	db *sqlx.DB
}

// NewMerchantRepository creates a new MerchantRepository.
func NewMerchantRepository(db *sqlx.DB) *MerchantRepository {
	return &MerchantRepository{db: db}
}

// GetByID finds a merchant by id.
func (r *MerchantRepository) GetByID(ctx context.Context, id string) (*models.Merchant, error) {
	var m models.Merchant
	err := r.db.GetContext(ctx, &m, `
		SELECT id, name, email, is_active, created_at, updated_at
		FROM merchants
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrMerchantNotFound
		}
		return nil, err
	}
	return &m, nil
}

// ExistsByEmail reports whether a merchant with the email is registered.
func (r *MerchantRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM merchants WHERE email = $1)`, email)
	return exists, err
}

// Create inserts a merchant.
func (r *MerchantRepository) Create(ctx context.Context, m *models.Merchant) error {
	query := `INSERT INTO merchants (name, email, is_active)
              VALUES ($1, $2, $3)
              RETURNING id, created_at, updated_at`
	return r.db.QueryRowxContext(ctx, query, m.Name, m.Email, m.IsActive).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// SetActive activates or deactivates a merchant.
func (r *MerchantRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE merchants SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return utils.ErrMerchantNotFound
	}
	return nil
}

// List retrieves one page of merchants, newest first, and the total count.
func (r *MerchantRepository) List(ctx context.Context, limit, offset int) ([]*models.Merchant, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM merchants`); err != nil {
		return nil, 0, err
	}

	merchants := []*models.Merchant{}
	err := r.db.SelectContext(ctx, &merchants, `
		SELECT id, name, email, is_active, created_at, updated_at
		FROM merchants
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return merchants, total, nil
}
