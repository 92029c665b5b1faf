package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"speechline/internal/config"
	"speechline/internal/logging"
)

func TestNewFromConfigWritesJSONLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "info"

	var console bytes.Buffer
	logger, err := logging.NewFromConfig(&cfg, "run-42", &console)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("run started", logging.Int("files", 3))
	if !strings.Contains(console.String(), "run started") {
		t.Fatalf("expected console copy, got %q", console.String())
	}

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &entry); err != nil {
		t.Fatalf("log file is not JSON lines: %v (%q)", err, content)
	}
	if entry["msg"] != "run started" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
	if entry["run_id"] != "run-42" {
		t.Fatalf("expected run_id in file log, got %v", entry["run_id"])
	}
	if entry["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", entry["level"])
	}
}

func TestNewFromConfigNil(t *testing.T) {
	var console bytes.Buffer
	logger, err := logging.NewFromConfig(nil, "", &console)
	if err != nil {
		t.Fatalf("NewFromConfig(nil) returned error: %v", err)
	}
	logger.Info("defaults in use")
	if !strings.Contains(console.String(), "INFO – defaults in use") {
		t.Fatalf("expected console line, got %q", console.String())
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{
		Format:  "console",
		Level:   "info",
		Console: &buf,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller")
	content := buf.String()
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{
		Format:  "console",
		Level:   "debug",
		Console: &buf,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message with caller")
	content := buf.String()
	if !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml", Console: &bytes.Buffer{}}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsRunAndFileFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := logging.WithRunID(context.Background(), "run-7")
	ctx = logging.WithFile(ctx, "/media/clip.mp4", 1, 4)
	logging.WithContext(ctx, logger).Info("probed")

	out := buf.String()
	for _, want := range []string{`"run_id":"run-7"`, `"file":"/media/clip.mp4"`, `"index":1`, `"total":4`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.WarnWithContext(logger, "accelerated detector failed", "detector_attempt_failed",
		logging.String(logging.FieldImpact, "retrying on fallback device"))

	out := buf.String()
	for _, want := range []string{`"event_type":"detector_attempt_failed"`, `"error_hint":"check logs for details"`, `"impact":"retrying on fallback device"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestNewTeesConsoleIntoRotatingFile(t *testing.T) {
	var console bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "nested", "run.log")
	logger, err := logging.New(logging.Options{
		Format:  "console",
		Level:   "info",
		Console: &console,
		LogFile: logPath,
		RunID:   "run-9",
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("processing file")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"run_id":"run-9"`) {
		t.Fatalf("expected run_id in file log, got %s", content)
	}
	if !strings.Contains(console.String(), "processing file") {
		t.Fatalf("expected console copy, got %q", console.String())
	}
}
