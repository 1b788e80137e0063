package testfixtures

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/example/papers-light/internal/adapters"
	"github.com/example/papers-light/internal/application"
	"github.com/example/papers-light/internal/persistence/memory"
)

// ServiceFactory assists tests with constructing application objects using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// LibraryDeps captures dependencies for constructing a Library. Nil fields
// fall back to an in-memory storage and the factory's clock and IDs.
type LibraryDeps struct {
	Types          []application.PaperType
	Admins         application.AdminDirectory
	Papers         application.PaperRepository
	VerifyPassword application.PasswordVerifier
	Logger         *slog.Logger
}

// NewLibrary builds a Library, failing the test on configuration errors.
func (f *ServiceFactory) NewLibrary(tb testing.TB, deps LibraryDeps) *application.Library {
	tb.Helper()

	if deps.Admins == nil || deps.Papers == nil {
		storage := memory.New()
		if deps.Admins == nil {
			deps.Admins = adapters.NewAdminAccounts(storage)
		}
		if deps.Papers == nil {
			deps.Papers = adapters.NewPapers(storage)
		}
	}
	if deps.Types == nil {
		deps.Types = DefaultTypes()
	}

	lib, err := application.NewLibrary(application.LibraryDeps{
		Types:          deps.Types,
		Admins:         deps.Admins,
		Papers:         deps.Papers,
		VerifyPassword: deps.VerifyPassword,
		IDGenerator:    f.IDGenerator.NextFunc(),
		Now:            f.Clock.NowFunc(),
		Logger:         deps.Logger,
	})
	if err != nil {
		tb.Fatalf("failed to build library: %v", err)
	}
	return lib
}

// FastArgon2idParams keeps password hashing cheap in tests.
var FastArgon2idParams = application.Argon2idParams{
	Memory:      8 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// SeedAdmin stores an admin whose password hash matches password.
func SeedAdmin(tb testing.TB, accounts application.AdminAccounts, username, password string) {
	tb.Helper()

	hash, err := application.CreatePasswordHash(password, FastArgon2idParams)
	if err != nil {
		tb.Fatalf("failed to hash password: %v", err)
	}
	admin := NewAdminFixture(WithAdminUsername(username), WithAdminPasswordHash(hash))
	if err := accounts.UpsertAdmin(context.Background(), admin.Application()); err != nil {
		tb.Fatalf("failed to seed admin: %v", err)
	}
}
