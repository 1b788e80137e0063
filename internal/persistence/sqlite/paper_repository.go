package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/papers-light/internal/persistence"
)

// CreatePaper inserts a new paper. Attributes are stored as a JSON object.
func (s *Storage) CreatePaper(ctx context.Context, paper persistence.Paper) error {
	if paper.ID == "" || paper.Type == "" {
		return persistence.ErrConstraintViolation
	}
	attrs := paper.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("sqlite: encode paper attributes: %w", err)
	}
	created := nowIfZero(paper.CreatedAt)
	updated := nowIfZero(paper.UpdatedAt)

	return s.retry.WithRetry(ctx, func() error {
		_, err := s.pool.DB().ExecContext(ctx, `
			INSERT INTO papers (id, type, attributes, created_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			paper.ID, paper.Type, string(encoded), paper.CreatedBy, formatTime(created), formatTime(updated),
		)
		return err
	})
}

// GetPaper retrieves a paper by ID.
func (s *Storage) GetPaper(ctx context.Context, id string) (persistence.Paper, error) {
	row := s.pool.DB().QueryRowContext(ctx, `
		SELECT id, type, attributes, created_by, created_at, updated_at
		FROM papers WHERE id = ?`, id)
	paper, err := scanPaper(row)
	if err != nil {
		return persistence.Paper{}, s.mapper.MapError(err)
	}
	return paper, nil
}

// UpdatePaper replaces the type, attributes and updated_at of a stored paper.
// Creation metadata is never rewritten.
func (s *Storage) UpdatePaper(ctx context.Context, paper persistence.Paper) error {
	if paper.ID == "" || paper.Type == "" {
		return persistence.ErrConstraintViolation
	}
	attrs := paper.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("sqlite: encode paper attributes: %w", err)
	}
	updated := nowIfZero(paper.UpdatedAt)

	var affected int64
	err = s.retry.WithRetry(ctx, func() error {
		res, err := s.pool.DB().ExecContext(ctx, `
			UPDATE papers SET type = ?, attributes = ?, updated_at = ?
			WHERE id = ?`,
			paper.Type, string(encoded), formatTime(updated), paper.ID,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListPapers returns papers ordered by created_at ascending, then ID.
func (s *Storage) ListPapers(ctx context.Context, filter persistence.PaperFilter) ([]persistence.Paper, error) {
	query := `SELECT id, type, attributes, created_by, created_at, updated_at FROM papers`
	var args []any
	if filter.Type != "" {
		query += ` WHERE type = ?`
		args = append(args, filter.Type)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	papers := make([]persistence.Paper, 0)
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, s.mapper.MapError(err)
		}
		papers = append(papers, paper)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapper.MapError(err)
	}
	return papers, nil
}

// DeletePaper removes a paper by ID.
func (s *Storage) DeletePaper(ctx context.Context, id string) error {
	var affected int64
	err := s.retry.WithRetry(ctx, func() error {
		res, err := s.pool.DB().ExecContext(ctx, `DELETE FROM papers WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner) (persistence.Paper, error) {
	var (
		paper            persistence.Paper
		attrs            string
		created, updated string
	)
	if err := row.Scan(&paper.ID, &paper.Type, &attrs, &paper.CreatedBy, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return persistence.Paper{}, err
		}
		return persistence.Paper{}, fmt.Errorf("sqlite: scan paper: %w", err)
	}
	if err := json.Unmarshal([]byte(attrs), &paper.Attributes); err != nil {
		return persistence.Paper{}, fmt.Errorf("sqlite: decode attributes of paper %s: %w", paper.ID, err)
	}

	var err error
	if paper.CreatedAt, err = parseTime(created); err != nil {
		return persistence.Paper{}, err
	}
	if paper.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.Paper{}, err
	}
	return paper, nil
}
