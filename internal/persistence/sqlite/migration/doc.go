// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files are named {version}_{description}.sql (for example
// "001_create_admins.sql") and are read from an fs.FS, usually an embedded
// directory. Each file runs inside a transaction together with its row in the
// schema_migrations table, so a failed migration leaves no trace.
//
// Example usage:
//
//	manager := migration.NewMigrationManager(
//		migration.NewFileScanner(),
//		migration.NewSQLiteExecutor(db),
//		migrationsFS, "migrations", logger,
//	)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
