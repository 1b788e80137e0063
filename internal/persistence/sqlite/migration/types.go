package migration

import (
	"context"
	"io/fs"
	"time"
)

// Migration represents a versioned schema change read from a migration file.
type Migration struct {
	Version     string // numeric version taken from the file name, e.g. "001"
	Description string
	SQL         string
	FilePath    string
	Checksum    string // sha256 of SQL
}

// MigrationManager orchestrates the migration process.
type MigrationManager interface {
	// RunMigrations executes all pending migrations in ascending version order.
	RunMigrations(ctx context.Context) error

	// GetPendingMigrations returns the migrations that have not been applied yet.
	GetPendingMigrations(ctx context.Context) ([]Migration, error)

	// GetMigrationStatus reports the current version and the pending set.
	GetMigrationStatus(ctx context.Context) (*MigrationStatus, error)
}

// FileScanner reads migration files from a file system.
type FileScanner interface {
	// ScanMigrations returns every migration under dir sorted by version.
	ScanMigrations(fsys fs.FS, dir string) ([]Migration, error)

	// ValidateFileName checks the {version}_{description}.sql convention.
	ValidateFileName(filename string) error
}

// Executor applies migrations against the database.
type Executor interface {
	// ExecuteMigration runs a migration and records it in one transaction.
	ExecuteMigration(ctx context.Context, migration Migration) (time.Duration, error)

	// InitializeVersionTable creates schema_migrations if missing.
	InitializeVersionTable(ctx context.Context) error

	// GetAppliedVersions returns applied migrations ordered by version.
	GetAppliedVersions(ctx context.Context) ([]AppliedMigration, error)
}

// MigrationStatus provides information about the current migration state.
type MigrationStatus struct {
	CurrentVersion    string
	PendingCount      int
	AppliedMigrations []AppliedMigration
	PendingMigrations []Migration
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}
