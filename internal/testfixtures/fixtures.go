package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/papers-light/internal/application"
	"github.com/example/papers-light/internal/persistence"
)

var (
	adminCounter   uint64
	paperCounter   uint64
	sessionCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// DefaultTypes is a small catalog shared by application and HTTP tests.
func DefaultTypes() []application.PaperType {
	return []application.PaperType{
		{Name: "article", Attributes: []string{"title", "author", "journal", "year", "url", "tags"}},
		{Name: "inproceedings", Attributes: []string{"title", "author", "booktitle", "year", "url", "tags"}},
	}
}

// ----------------------------- Admin fixtures -----------------------------

// AdminFixture represents a deterministic administrator record.
type AdminFixture struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AdminOption configures the generated admin fixture.
type AdminOption func(*AdminFixture)

// NewAdminFixture returns a deterministic admin fixture with optional overrides.
func NewAdminFixture(opts ...AdminOption) AdminFixture {
	idx := atomic.AddUint64(&adminCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := AdminFixture{
		Username:     fmt.Sprintf("admin-%03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithAdminUsername overrides the generated username.
func WithAdminUsername(username string) AdminOption {
	return func(f *AdminFixture) {
		f.Username = username
	}
}

// WithAdminPasswordHash overrides the generated password hash.
func WithAdminPasswordHash(hash string) AdminOption {
	return func(f *AdminFixture) {
		f.PasswordHash = hash
	}
}

// WithAdminTimestamps sets both created and updated timestamps on the fixture.
func WithAdminTimestamps(created, updated time.Time) AdminOption {
	return func(f *AdminFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.Admin value.
func (f AdminFixture) Application() application.Admin {
	return application.Admin{
		Username:     f.Username,
		PasswordHash: f.PasswordHash,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Admin model.
func (f AdminFixture) Persistence() persistence.Admin {
	return persistence.Admin{
		Username:     f.Username,
		PasswordHash: f.PasswordHash,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ----------------------------- Paper fixtures -----------------------------

// PaperFixture represents a deterministic paper record.
type PaperFixture struct {
	ID         string
	Type       string
	Attributes map[string]any
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PaperOption configures the generated paper fixture.
type PaperOption func(*PaperFixture)

// NewPaperFixture returns a deterministic article fixture with optional overrides.
func NewPaperFixture(opts ...PaperOption) PaperFixture {
	idx := atomic.AddUint64(&paperCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := PaperFixture{
		ID:   fmt.Sprintf("paper-%03d", idx),
		Type: "article",
		Attributes: map[string]any{
			"title":  fmt.Sprintf("Paper %03d", idx),
			"author": "Ann Lee and Bo Kim",
			"year":   "2024",
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithPaperID overrides the generated paper ID.
func WithPaperID(id string) PaperOption {
	return func(f *PaperFixture) {
		f.ID = id
	}
}

// WithPaperType overrides the paper type.
func WithPaperType(paperType string) PaperOption {
	return func(f *PaperFixture) {
		f.Type = paperType
	}
}

// WithPaperAttribute sets a single attribute.
func WithPaperAttribute(name string, value any) PaperOption {
	return func(f *PaperFixture) {
		if f.Attributes == nil {
			f.Attributes = map[string]any{}
		}
		f.Attributes[name] = value
	}
}

// WithPaperAttributes replaces the attribute set.
func WithPaperAttributes(attrs map[string]any) PaperOption {
	return func(f *PaperFixture) {
		f.Attributes = attrs
	}
}

// WithPaperCreatedBy sets the creating admin.
func WithPaperCreatedBy(username string) PaperOption {
	return func(f *PaperFixture) {
		f.CreatedBy = username
	}
}

// WithPaperTimestamps sets both created and updated timestamps on the fixture.
func WithPaperTimestamps(created, updated time.Time) PaperOption {
	return func(f *PaperFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.Paper value.
func (f PaperFixture) Application() application.Paper {
	return application.Paper{
		ID:         f.ID,
		Type:       f.Type,
		Attributes: persistence.CloneAttributes(f.Attributes),
		CreatedBy:  f.CreatedBy,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Paper model.
func (f PaperFixture) Persistence() persistence.Paper {
	return persistence.Paper{
		ID:         f.ID,
		Type:       f.Type,
		Attributes: persistence.CloneAttributes(f.Attributes),
		CreatedBy:  f.CreatedBy,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// ----------------------------- Session fixtures -----------------------------

// SessionFixture represents a deterministic server-side session record.
type SessionFixture struct {
	ID        string
	Data      string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a session fixture expiring a day after creation.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := SessionFixture{
		ID:        fmt.Sprintf("session-%03d", idx),
		Data:      fmt.Sprintf("payload-%03d", idx),
		ExpiresAt: created.Add(24 * time.Hour),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSessionData overrides the encoded payload.
func WithSessionData(data string) SessionOption {
	return func(f *SessionFixture) {
		f.Data = data
	}
}

// WithSessionExpiry overrides the expiration time.
func WithSessionExpiry(expiresAt time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ExpiresAt = expiresAt
	}
}

// Persistence returns the fixture as a persistence.SessionRecord.
func (f SessionFixture) Persistence() persistence.SessionRecord {
	return persistence.SessionRecord{
		ID:        f.ID,
		Data:      f.Data,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}
