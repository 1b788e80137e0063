package sqlite

import (
	"context"
	"strings"

	"github.com/example/papers-light/internal/persistence"
)

// UpsertAdmin creates or replaces an administrator, keeping the original created_at.
func (s *Storage) UpsertAdmin(ctx context.Context, admin persistence.Admin) error {
	username := strings.TrimSpace(admin.Username)
	if username == "" || admin.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}
	created := nowIfZero(admin.CreatedAt)
	updated := nowIfZero(admin.UpdatedAt)

	return s.retry.WithRetry(ctx, func() error {
		_, err := s.pool.DB().ExecContext(ctx, `
			INSERT INTO admins (username, password_hash, created_at, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(username) DO UPDATE SET
				password_hash = excluded.password_hash,
				updated_at = excluded.updated_at`,
			username, admin.PasswordHash, formatTime(created), formatTime(updated),
		)
		return err
	})
}

// GetAdmin retrieves an administrator by username.
func (s *Storage) GetAdmin(ctx context.Context, username string) (persistence.Admin, error) {
	row := s.pool.DB().QueryRowContext(ctx, `
		SELECT username, password_hash, created_at, updated_at
		FROM admins WHERE username = ?`, strings.TrimSpace(username))

	var admin persistence.Admin
	var created, updated string
	if err := row.Scan(&admin.Username, &admin.PasswordHash, &created, &updated); err != nil {
		return persistence.Admin{}, s.mapper.MapError(err)
	}

	var err error
	if admin.CreatedAt, err = parseTime(created); err != nil {
		return persistence.Admin{}, err
	}
	if admin.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.Admin{}, err
	}
	return admin, nil
}
