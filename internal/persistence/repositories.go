package persistence

import (
	"context"
	"time"
)

// AdminRepository stores administrator credentials.
type AdminRepository interface {
	UpsertAdmin(ctx context.Context, admin Admin) error
	GetAdmin(ctx context.Context, username string) (Admin, error)
}

// PaperFilter narrows paper listings. Empty fields match every paper.
type PaperFilter struct {
	Type string
}

// PaperRepository stores paper records.
type PaperRepository interface {
	CreatePaper(ctx context.Context, paper Paper) error
	GetPaper(ctx context.Context, id string) (Paper, error)
	UpdatePaper(ctx context.Context, paper Paper) error
	ListPapers(ctx context.Context, filter PaperFilter) ([]Paper, error)
	DeletePaper(ctx context.Context, id string) error
}

// SessionRepository stores encoded session payloads keyed by session ID.
type SessionRepository interface {
	SaveSession(ctx context.Context, record SessionRecord) error
	GetSession(ctx context.Context, id string) (SessionRecord, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
