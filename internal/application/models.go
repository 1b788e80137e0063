package application

import (
	"context"
	"time"
)

// StateVersion is the version written into serialized State snapshots.
const StateVersion = 1

// Filter fields accepted by GetPapers.
const (
	FilterType      = "type"
	FilterYear      = "year"
	FilterBooktitle = "booktitle"
	FilterAuthor    = "author"
	FilterTag       = "tag"
)

// PaperType describes one entry of the type-attribute catalog.
type PaperType struct {
	Name       string   `json:"name"`
	Attributes []string `json:"attributes"`
}

// Paper is a stored paper as exposed to clients.
type Paper struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
	CreatedBy  string         `json:"created_by"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// PaperFilter narrows GetPapers to papers whose Field matches Value.
// The zero value matches every paper.
type PaperFilter struct {
	Field string
	Value string
}

// Admin holds the credentials looked up during login.
type Admin struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LoginResult is returned by AdminLogin.
type LoginResult struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
	Message  string `json:"message,omitempty"`
}

// LogoutResult is returned by Logout.
type LogoutResult struct {
	Success bool `json:"success"`
}

// AddPaperResult is returned by AddPaper.
type AddPaperResult struct {
	Success bool              `json:"success"`
	Paper   *Paper            `json:"paper,omitempty"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// RemovePaperResult is returned by RemovePaper.
type RemovePaperResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Stat is the number of papers sharing one category value.
type Stat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats groups paper counts per category.
type Stats struct {
	Years      []Stat `json:"years"`
	Booktitles []Stat `json:"booktitles"`
	Authors    []Stat `json:"authors"`
	Tags       []Stat `json:"tags"`
}

// State is the serialized form of a PapersLight kept in the session.
type State struct {
	Version    int       `json:"version"`
	User       string    `json:"user"`
	LoggedInAt time.Time `json:"logged_in_at,omitzero"`
}

// AdminDirectory looks up administrator credentials.
type AdminDirectory interface {
	GetAdmin(ctx context.Context, username string) (Admin, error)
}

// AdminAccounts extends AdminDirectory with writes used by the bootstrap.
type AdminAccounts interface {
	AdminDirectory
	UpsertAdmin(ctx context.Context, admin Admin) error
}

// PaperRepository captures the persistence interactions for papers.
// Implementations return ErrNotFound for unknown IDs.
type PaperRepository interface {
	CreatePaper(ctx context.Context, paper Paper) error
	GetPaper(ctx context.Context, id string) (Paper, error)
	UpdatePaper(ctx context.Context, paper Paper) error
	ListPapers(ctx context.Context, paperType string) ([]Paper, error)
	DeletePaper(ctx context.Context, id string) error
}
