// Package db provides SQLite persistence for the opsdesk dispatch log.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the sql.DB handle.
type DB struct {
	*sql.DB
}

// Open opens (and creates if needed) the database at path.
func Open(path string, busyTimeoutMs int) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	if busyTimeoutMs <= 0 {
		busyTimeoutMs = 5000
	}
	dsn := fmt.Sprintf("%s?_journal=WAL&_busy_timeout=%d", path, busyTimeoutMs)
	handle, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := handle.Ping(); err != nil {
		handle.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{DB: handle}, nil
}

// OpenInMemory opens an in-memory database for tests.
func OpenInMemory() (*DB, error) {
	handle, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	return &DB{DB: handle}, nil
}

// MigrateUp applies the schema.
func (d *DB) MigrateUp(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS dispatch_records (
		id TEXT PRIMARY KEY,
		to_display TEXT NOT NULL,
		subject TEXT NOT NULL,
		body TEXT NOT NULL,
		sent_at TEXT NOT NULL,
		status TEXT NOT NULL,
		response_json TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_dispatch_sent_at ON dispatch_records(sent_at);
	`
	if _, err := d.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
