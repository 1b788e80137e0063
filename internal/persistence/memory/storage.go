// Package memory provides a process-local implementation of the persistence
// repositories. Data is lost on restart; it backs tests and PAPERS_STORAGE=memory.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/papers-light/internal/persistence"
)

// Storage keeps admins, papers, and session records in maps guarded by a single lock.
type Storage struct {
	mu       sync.RWMutex
	admins   map[string]persistence.Admin
	papers   map[string]persistence.Paper
	sessions map[string]persistence.SessionRecord
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		admins:   make(map[string]persistence.Admin),
		papers:   make(map[string]persistence.Paper),
		sessions: make(map[string]persistence.SessionRecord),
	}
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error {
	return nil
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// --- AdminRepository implementation ---

// UpsertAdmin creates or replaces an administrator, keeping the original CreatedAt.
func (s *Storage) UpsertAdmin(ctx context.Context, admin persistence.Admin) error {
	username := strings.TrimSpace(admin.Username)
	if username == "" || admin.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}
	admin.Username = username

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.admins[username]; ok {
		admin.CreatedAt = existing.CreatedAt
	}
	s.admins[username] = admin
	return nil
}

// GetAdmin retrieves an administrator by username.
func (s *Storage) GetAdmin(ctx context.Context, username string) (persistence.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	admin, ok := s.admins[strings.TrimSpace(username)]
	if !ok {
		return persistence.Admin{}, persistence.ErrNotFound
	}
	return admin, nil
}

// --- PaperRepository implementation ---

// CreatePaper stores a new paper.
func (s *Storage) CreatePaper(ctx context.Context, paper persistence.Paper) error {
	if paper.ID == "" || paper.Type == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.papers[paper.ID]; ok {
		return persistence.ErrAlreadyExists
	}
	s.papers[paper.ID] = clonePaper(paper)
	return nil
}

// GetPaper retrieves a paper by ID.
func (s *Storage) GetPaper(ctx context.Context, id string) (persistence.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paper, ok := s.papers[id]
	if !ok {
		return persistence.Paper{}, persistence.ErrNotFound
	}
	return clonePaper(paper), nil
}

// UpdatePaper replaces the type, attributes and UpdatedAt of a stored paper.
func (s *Storage) UpdatePaper(ctx context.Context, paper persistence.Paper) error {
	if paper.ID == "" || paper.Type == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.papers[paper.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	updated := clonePaper(paper)
	updated.CreatedBy = existing.CreatedBy
	updated.CreatedAt = existing.CreatedAt
	s.papers[paper.ID] = updated
	return nil
}

// ListPapers returns papers ordered by CreatedAt ascending, then ID.
func (s *Storage) ListPapers(ctx context.Context, filter persistence.PaperFilter) ([]persistence.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	papers := make([]persistence.Paper, 0, len(s.papers))
	for _, paper := range s.papers {
		if filter.Type != "" && paper.Type != filter.Type {
			continue
		}
		papers = append(papers, clonePaper(paper))
	}

	sort.Slice(papers, func(i, j int) bool {
		if papers[i].CreatedAt.Equal(papers[j].CreatedAt) {
			return papers[i].ID < papers[j].ID
		}
		return papers[i].CreatedAt.Before(papers[j].CreatedAt)
	})

	return papers, nil
}

// DeletePaper removes a paper by ID.
func (s *Storage) DeletePaper(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.papers[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.papers, id)
	return nil
}

// --- SessionRepository implementation ---

// SaveSession creates or replaces a session record.
func (s *Storage) SaveSession(ctx context.Context, record persistence.SessionRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[record.ID]; ok {
		record.CreatedAt = existing.CreatedAt
	}
	s.sessions[record.ID] = record
	return nil
}

// GetSession retrieves a session record by ID.
func (s *Storage) GetSession(ctx context.Context, id string) (persistence.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.sessions[id]
	if !ok {
		return persistence.SessionRecord{}, persistence.ErrNotFound
	}
	return record, nil
}

// DeleteSession removes a session record. Missing records are not an error.
func (s *Storage) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// DeleteExpiredSessions removes every record that expired at or before reference.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, record := range s.sessions {
		if record.Expired(reference) {
			delete(s.sessions, id)
		}
	}
	return nil
}

func clonePaper(paper persistence.Paper) persistence.Paper {
	paper.Attributes = persistence.CloneAttributes(paper.Attributes)
	return paper
}
