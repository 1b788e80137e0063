package migration

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestManager(db *sql.DB, fsys fstest.MapFS) MigrationManager {
	return NewMigrationManager(NewFileScanner(), NewSQLiteExecutor(db), fsys, "migrations", nil)
}

func baseFS() fstest.MapFS {
	return fstest.MapFS{
		"migrations/001_create_widgets.sql": {Data: []byte("-- Description: widgets table\nCREATE TABLE widgets (id TEXT PRIMARY KEY);\n")},
		"migrations/002_add_index.sql":      {Data: []byte("CREATE INDEX idx_widgets_id ON widgets (id);\nINSERT INTO widgets (id) VALUES ('w1');\n")},
		"migrations/README.md":              {Data: []byte("ignored")},
	}
}

func TestScanMigrations(t *testing.T) {
	t.Parallel()

	migrations, err := NewFileScanner().ScanMigrations(baseFS(), "migrations")
	if err != nil {
		t.Fatalf("ScanMigrations failed: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != "001" || migrations[0].Description != "widgets table" {
		t.Fatalf("unexpected first migration: %+v", migrations[0])
	}
	if migrations[1].Description != "add index" {
		t.Fatalf("expected description from filename, got %q", migrations[1].Description)
	}
	if migrations[0].Checksum == "" || migrations[0].Checksum == migrations[1].Checksum {
		t.Fatalf("expected distinct checksums")
	}
}

func TestScanMigrationsRejectsBadFiles(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		fs   fstest.MapFS
		want error
	}{
		"bad name": {
			fs:   fstest.MapFS{"migrations/create.sql": {Data: []byte("SELECT 1;")}},
			want: ErrInvalidMigrationFile,
		},
		"duplicate version": {
			fs: fstest.MapFS{
				"migrations/001_a.sql":  {Data: []byte("SELECT 1;")},
				"migrations/0001_b.sql": {Data: []byte("SELECT 2;")},
			},
			want: ErrDuplicateVersion,
		},
		"comment only": {
			fs:   fstest.MapFS{"migrations/001_empty.sql": {Data: []byte("-- nothing here\n")}},
			want: ErrInvalidMigrationFile,
		},
		"unbalanced parentheses": {
			fs:   fstest.MapFS{"migrations/001_broken.sql": {Data: []byte("CREATE TABLE t (id TEXT;")}},
			want: ErrInvalidMigrationFile,
		},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewFileScanner().ScanMigrations(tc.fs, "migrations"); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := NewFileScanner().ScanMigrations(fstest.MapFS{}, "missing"); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestRunMigrationsAppliesInOrderOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	manager := newTestManager(db, baseFS())

	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}
	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("second RunMigrations failed: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM widgets`).Scan(&count); err != nil {
		t.Fatalf("query widgets failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected seed row inserted once, got %d", count)
	}

	status, err := manager.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if status.CurrentVersion != "002" || status.PendingCount != 0 || len(status.AppliedMigrations) != 2 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestRunMigrationsRollsBackFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"migrations/001_ok.sql":  {Data: []byte("CREATE TABLE ok (id TEXT);")},
		"migrations/002_bad.sql": {Data: []byte("CREATE TABLE partial (id TEXT);\nINSERT INTO nowhere VALUES (1);")},
	}

	err := newTestManager(db, fsys).RunMigrations(ctx)
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}
	var mErr *MigrationError
	if !errors.As(err, &mErr) || mErr.Version != "002" {
		t.Fatalf("expected MigrationError for 002, got %v", err)
	}

	var name string
	err = db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name='partial'`).Scan(&name)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected partial table to be rolled back, got %v (%q)", err, name)
	}

	pending, err := newTestManager(db, fsys).GetPendingMigrations(ctx)
	if err != nil {
		t.Fatalf("GetPendingMigrations failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Version != "002" {
		t.Fatalf("expected 002 to remain pending, got %+v", pending)
	}
}

func TestGetPendingMigrationsValidatesSequence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("gap", func(t *testing.T) {
		t.Parallel()
		fsys := fstest.MapFS{
			"migrations/001_a.sql": {Data: []byte("SELECT 1;")},
			"migrations/003_c.sql": {Data: []byte("SELECT 3;")},
		}
		_, err := newTestManager(openTestDB(t), fsys).GetPendingMigrations(ctx)
		if !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
	})

	t.Run("edited after apply", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)
		fsys := baseFS()
		if err := newTestManager(db, fsys).RunMigrations(ctx); err != nil {
			t.Fatalf("RunMigrations failed: %v", err)
		}

		fsys["migrations/001_create_widgets.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE widgets (id INTEGER);")}
		_, err := newTestManager(db, fsys).GetPendingMigrations(ctx)
		if !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("expected ErrChecksumMismatch, got %v", err)
		}
	})

	t.Run("applied file removed", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)
		fsys := baseFS()
		if err := newTestManager(db, fsys).RunMigrations(ctx); err != nil {
			t.Fatalf("RunMigrations failed: %v", err)
		}

		delete(fsys, "migrations/002_add_index.sql")
		_, err := newTestManager(db, fsys).GetPendingMigrations(ctx)
		if !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
	})
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	got := splitStatements("-- header\nCREATE TABLE a (id TEXT);\n\n-- note\nCREATE TABLE b (id TEXT);\n")
	if len(got) != 2 || got[0] != "CREATE TABLE a (id TEXT)" || got[1] != "CREATE TABLE b (id TEXT)" {
		t.Fatalf("unexpected statements: %q", got)
	}
}
