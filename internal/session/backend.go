package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/papers-light/internal/metrics"
	"github.com/example/papers-light/internal/persistence"
)

const defaultPruneInterval = 10 * time.Minute

// RepositoryBackend stores sessions through a persistence.SessionRepository.
// Expired records are treated as missing and removed lazily; a sweep of all
// expired records runs at most once per prune interval.
type RepositoryBackend struct {
	repo          persistence.SessionRepository
	label         string
	now           func() time.Time
	pruneInterval time.Duration

	mu        sync.Mutex
	lastPrune time.Time
}

// RepositoryOption customises a RepositoryBackend.
type RepositoryOption func(*RepositoryBackend)

// WithClock overrides the time source.
func WithClock(now func() time.Time) RepositoryOption {
	return func(b *RepositoryBackend) {
		if now != nil {
			b.now = now
		}
	}
}

// WithPruneInterval sets how often expired records are swept. Zero disables sweeping.
func WithPruneInterval(interval time.Duration) RepositoryOption {
	return func(b *RepositoryBackend) {
		b.pruneInterval = interval
	}
}

// NewRepositoryBackend returns a backend over repo. label names the backend in metrics.
func NewRepositoryBackend(repo persistence.SessionRepository, label string, opts ...RepositoryOption) *RepositoryBackend {
	b := &RepositoryBackend{
		repo:          repo,
		label:         label,
		now:           time.Now,
		pruneInterval: defaultPruneInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Load returns the encoded values for id.
func (b *RepositoryBackend) Load(ctx context.Context, id string) (data string, err error) {
	defer func() { observe(b.label, "load", err) }()

	record, err := b.repo.GetSession(ctx, id)
	if errors.Is(err, persistence.ErrNotFound) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	if record.Expired(b.now()) {
		if delErr := b.repo.DeleteSession(ctx, id); delErr != nil {
			return "", delErr
		}
		return "", ErrSessionNotFound
	}
	return record.Data, nil
}

// Save stores data for id. A non-positive ttl stores a record that never expires.
func (b *RepositoryBackend) Save(ctx context.Context, id, data string, ttl time.Duration) (err error) {
	defer func() { observe(b.label, "save", err) }()

	now := b.now().UTC()
	record := persistence.SessionRecord{
		ID:        id,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ttl > 0 {
		record.ExpiresAt = now.Add(ttl)
	}
	if err := b.repo.SaveSession(ctx, record); err != nil {
		return err
	}
	return b.prune(ctx, now)
}

// Delete removes id. Missing records are not an error.
func (b *RepositoryBackend) Delete(ctx context.Context, id string) (err error) {
	defer func() { observe(b.label, "delete", err) }()
	return b.repo.DeleteSession(ctx, id)
}

func (b *RepositoryBackend) prune(ctx context.Context, now time.Time) error {
	if b.pruneInterval <= 0 {
		return nil
	}
	b.mu.Lock()
	due := b.lastPrune.IsZero() || now.Sub(b.lastPrune) >= b.pruneInterval
	if due {
		b.lastPrune = now
	}
	b.mu.Unlock()
	if !due {
		return nil
	}
	return b.repo.DeleteExpiredSessions(ctx, now)
}

func observe(backend, operation string, err error) {
	status := "ok"
	switch {
	case errors.Is(err, ErrSessionNotFound):
		status = "miss"
	case err != nil:
		status = "error"
	}
	metrics.SessionBackendOps.WithLabelValues(backend, operation, status).Inc()
}
