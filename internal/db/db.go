package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"folio/internal/config"
)

// DB wraps the shared sqlite handle.
type DB struct {
	sql  *sql.DB
	path string
}

// Open initializes or connects to the resolver database and applies migrations.
func Open(cfg *config.Config) (*DB, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens a database at an explicit location. Used by tests.
func OpenPath(path string) (*DB, error) {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := handle.Exec(pragma); execErr != nil {
			_ = handle.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	database := &DB{sql: handle, path: path}
	if err := database.applyMigrations(context.Background()); err != nil {
		_ = handle.Close()
		return nil, err
	}
	return database, nil
}

// Handle exposes the underlying sql.DB for the stores.
func (d *DB) Handle() *sql.DB {
	if d == nil {
		return nil
	}
	return d.sql
}

// Path returns the database file location.
func (d *DB) Path() string {
	if d == nil {
		return ""
	}
	return d.path
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}
