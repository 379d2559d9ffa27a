// Package testsupport provides shared fixtures for package tests: per-test
// configs rooted in temp directories and pre-migrated database handles.
package testsupport

import (
	"path/filepath"
	"testing"

	"folio/internal/config"
	"folio/internal/db"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.PolicyPath = filepath.Join(base, "policy.yaml")
	cfg.DataDir = cfg.Paths.DataDir
	cfg.LogDir = cfg.Paths.LogDir
	cfg.LogFormat = "console"
	cfg.LogLevel = "error"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// MustOpenDB opens a migrated database under the test config and closes it on
// cleanup.
func MustOpenDB(t testing.TB, cfg *config.Config) *db.DB {
	t.Helper()

	database, err := db.Open(cfg)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})
	return database
}
