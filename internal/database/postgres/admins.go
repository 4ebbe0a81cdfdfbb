package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scanin/scanin/internal/database"
)

// AdminRepository provides PostgreSQL-backed admin account storage.
type AdminRepository struct {
	pool *Pool
}

// NewAdminRepository creates a new PostgreSQL admin repository
func NewAdminRepository(pool *Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

// GetByUsername retrieves an admin account, nil when missing.
func (r *AdminRepository) GetByUsername(ctx context.Context, username string) (*database.Admin, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM admins
		WHERE username = $1
	`

	var a database.Admin
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&a.ID,
		&a.Username,
		&a.PasswordHash,
		&a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query admin: %w", err)
	}
	return &a, nil
}

// Create inserts an admin account. Existing usernames are left untouched so
// the startup seed is idempotent.
func (r *AdminRepository) Create(ctx context.Context, admin *database.Admin) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO admins (username, password_hash)
		VALUES ($1, $2)
		ON CONFLICT (username) DO NOTHING
		RETURNING id, created_at
	`, admin.Username, admin.PasswordHash).Scan(&admin.ID, &admin.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Already seeded.
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ database.AdminStore = (*AdminRepository)(nil)
