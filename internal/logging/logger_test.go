package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"folio/internal/logging"
	"folio/internal/sources"
	"folio/internal/testsupport"
)

func TestNewFromConfigConsole(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.LogLevel = "info"

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
	logger.Info("startup message")

	content, err := os.ReadFile(filepath.Join(cfg.LogDir, "folio.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "startup message") {
		t.Fatalf("expected startup message in log file, got %q", content)
	}
}

func TestJSONLoggerWritesStructuredRecord(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "folio.log")

	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "debug",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("json message", logging.String("k", "v"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, fragment := range []string{`"msg":"json message"`, `"k":"v"`, `"level":"info"`} {
		if !strings.Contains(string(content), fragment) {
			t.Fatalf("expected %s in output, got %q", fragment, content)
		}
	}
}

func TestJSONLoggerIncludesSourceForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "folio.log")

	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "debug",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Debug("debug message")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug output, got %q", content)
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "folio.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "bogus",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Debug("should be suppressed")
	logger.Info("should appear")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "should be suppressed") {
		t.Fatalf("expected debug record suppressed at default level, got %q", content)
	}
	if !strings.Contains(string(content), "should appear") {
		t.Fatalf("expected info record at default level, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected unknown format to be rejected")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "folio.log")

	base, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := context.Background()
	ctx = sources.WithIdentifier(ctx, "isbn:9780316556347")
	ctx = sources.WithSource(ctx, "opencatalog")
	ctx = sources.WithOperation(ctx, "bibliographic")
	ctx = sources.WithRunID(ctx, "run-42")

	logging.WithContext(ctx, base).Info("annotated")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, fragment := range []string{
		`"identifier":"isbn:9780316556347"`,
		`"source":"opencatalog"`,
		`"operation":"bibliographic"`,
		`"run_id":"run-42"`,
	} {
		if !strings.Contains(string(content), fragment) {
			t.Fatalf("expected %s in output, got %q", fragment, content)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	logger.Error("discarded", logging.String("k", "v"))

	component := logging.NewComponentLogger(nil, "batch")
	component.Info("also discarded")
}
