package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/example/papers-light/internal/persistence"
)

// SaveSession upserts a session record keyed by ID.
func (s *Storage) SaveSession(ctx context.Context, record persistence.SessionRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return persistence.ErrConstraintViolation
	}
	created := nowIfZero(record.CreatedAt)
	updated := nowIfZero(record.UpdatedAt)

	return s.retry.WithRetry(ctx, func() error {
		_, err := s.pool.DB().ExecContext(ctx, `
			INSERT INTO sessions (id, data, expires_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				data = excluded.data,
				expires_at = excluded.expires_at,
				updated_at = excluded.updated_at`,
			record.ID, record.Data, formatExpiry(record.ExpiresAt), formatTime(created), formatTime(updated),
		)
		return err
	})
}

// GetSession retrieves a session record by ID.
func (s *Storage) GetSession(ctx context.Context, id string) (persistence.SessionRecord, error) {
	row := s.pool.DB().QueryRowContext(ctx, `
		SELECT id, data, expires_at, created_at, updated_at
		FROM sessions WHERE id = ?`, id)

	var (
		record                    persistence.SessionRecord
		expires, created, updated string
	)
	if err := row.Scan(&record.ID, &record.Data, &expires, &created, &updated); err != nil {
		return persistence.SessionRecord{}, s.mapper.MapError(err)
	}

	var err error
	if expires != "" {
		if record.ExpiresAt, err = parseTime(expires); err != nil {
			return persistence.SessionRecord{}, err
		}
	}
	if record.CreatedAt, err = parseTime(created); err != nil {
		return persistence.SessionRecord{}, err
	}
	if record.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.SessionRecord{}, err
	}
	return record, nil
}

// DeleteSession removes a session record. Missing records are not an error.
func (s *Storage) DeleteSession(ctx context.Context, id string) error {
	return s.retry.WithRetry(ctx, func() error {
		_, err := s.pool.DB().ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
		return err
	})
}

// DeleteExpiredSessions removes every record that expired at or before reference.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return s.retry.WithRetry(ctx, func() error {
		_, err := s.pool.DB().ExecContext(ctx,
			`DELETE FROM sessions WHERE expires_at <> '' AND expires_at <= ?`,
			formatTime(reference),
		)
		return err
	})
}

// formatExpiry stores a zero expiry as an empty string, meaning "never expires".
func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return formatTime(t)
}
