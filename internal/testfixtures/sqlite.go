package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/papers-light/internal/persistence"
	"github.com/example/papers-light/internal/persistence/memory"
	"github.com/example/papers-light/internal/persistence/sqlite"
)

// StorageHarness provides repository access for integration-style
// persistence tests.
type StorageHarness struct {
	Name     string
	Admins   persistence.AdminRepository
	Papers   persistence.PaperRepository
	Sessions persistence.SessionRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *StorageHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a harness over a temporary, migrated SQLite
// file. Callers may invoke Close; a cleanup is also registered with tb.
func NewSQLiteHarness(tb testing.TB) *StorageHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "papers.db")

	storage, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &StorageHarness{
		Name:     "sqlite",
		Admins:   storage,
		Papers:   storage,
		Sessions: storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// NewMemoryHarness constructs a harness over the in-memory storage.
func NewMemoryHarness(tb testing.TB) *StorageHarness {
	tb.Helper()

	storage := memory.New()
	harness := &StorageHarness{
		Name:     "memory",
		Admins:   storage,
		Papers:   storage,
		Sessions: storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}

// Harnesses returns one harness per storage implementation.
func Harnesses(tb testing.TB) []*StorageHarness {
	tb.Helper()
	return []*StorageHarness{NewMemoryHarness(tb), NewSQLiteHarness(tb)}
}
