// Package migrations provides embedded SQL migration files.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed sql/*.sql
var files embed.FS

// InitialSQL creates the event log and metadata cache tables.
//
//go:embed sql/001_initial.sql
var InitialSQL string

// Apply runs every embedded migration in filename order. Migrations are
// idempotent, so Apply is safe on an existing database.
func Apply(ctx context.Context, db *sql.DB) error {
	names, err := fs.Glob(files, "sql/*.sql")
	if err != nil {
		return err
	}
	slices.Sort(names)
	for _, name := range names {
		body, err := files.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("migration %s: %w", path.Base(name), err)
		}
	}
	return nil
}

// Open opens the sqlite database at dsn and applies migrations.
func Open(ctx context.Context, dsn string, log *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := Apply(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("database ready", "dsn", dsn)
	return db, nil
}
