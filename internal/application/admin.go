package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// EnsureAdmin provisions the bootstrap administrator. An existing account whose
// hash already matches password is left untouched so restarts keep created_at
// and updated_at stable.
func EnsureAdmin(ctx context.Context, accounts AdminAccounts, username, password string, now func() time.Time, logger *slog.Logger) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return &ValidationError{FieldErrors: map[string]string{"admin": "username and password are required"}}
	}
	if now == nil {
		now = time.Now
	}
	logger = serviceLogger(ctx, logger, "AdminBootstrap", "EnsureAdmin", "username", username)

	existing, err := accounts.GetAdmin(ctx, username)
	switch {
	case err == nil:
		if VerifyPassword(existing.PasswordHash, password) == nil {
			logger.DebugContext(ctx, "bootstrap admin already up to date")
			return nil
		}
	case errors.Is(err, ErrNotFound):
	default:
		return fmt.Errorf("lookup admin: %w", err)
	}

	hash, err := CreatePasswordHash(password, DefaultArgon2idParams)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	ts := now().UTC()
	admin := Admin{Username: username, PasswordHash: hash, CreatedAt: ts, UpdatedAt: ts}
	if existing.Username != "" {
		admin.CreatedAt = existing.CreatedAt
	}
	if err := accounts.UpsertAdmin(ctx, admin); err != nil {
		return fmt.Errorf("store admin: %w", err)
	}
	logger.InfoContext(ctx, "bootstrap admin stored")
	return nil
}
