package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"speechline/internal/speech"
)

func TestProgressReporterLogsBucketsWithoutTerminal(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	var out bytes.Buffer
	reporter := newProgressReporter(&out, logger)
	if reporter.terminal {
		t.Fatal("buffer must not be treated as a terminal")
	}

	reporter.Attempt(1, speech.RoleAccelerated, "cuda")
	for i := 1; i <= 20; i++ {
		reporter.Update(i, 20)
	}
	lines := strings.Count(logs.String(), `"msg":"detecting speech"`)
	if lines != 11 {
		t.Fatalf("expected one line per 10%% bucket including the first, got %d:\n%s", lines, logs.String())
	}

	logs.Reset()
	reporter.Attempt(1, speech.RoleFallback, "cpu")
	reporter.Update(1, 20)
	if !strings.Contains(logs.String(), `"phase":"fallback/cpu round 1"`) {
		t.Fatalf("expected a fresh phase after a new attempt, got %s", logs.String())
	}
	if out.Len() != 0 {
		t.Fatalf("no bar output expected without a terminal, got %q", out.String())
	}
}

func TestProgressReporterIgnoresUnknownTotal(t *testing.T) {
	var logs bytes.Buffer
	reporter := newProgressReporter(&bytes.Buffer{}, slog.New(slog.NewJSONHandler(&logs, nil)))
	reporter.Update(3, 0)
	if logs.Len() != 0 {
		t.Fatalf("expected no output for zero total, got %s", logs.String())
	}
}

func TestProgressBarRendersDescription(t *testing.T) {
	var out bytes.Buffer
	reporter := newProgressReporter(&out, nil)
	reporter.terminal = true
	reporter.Update(5, 10)
	reporter.Finish()
	if !strings.Contains(out.String(), progressDescription) {
		t.Fatalf("expected bar description in %q", out.String())
	}
	if reporter.bar != nil {
		t.Fatal("Finish must drop the bar")
	}
}

func TestStatusLabel(t *testing.T) {
	tests := map[string]string{
		"extract_failed": "Extract Failed",
		"detected":       "Detected",
		"":               "-",
	}
	for in, want := range tests {
		if got := statusLabel(in); got != want {
			t.Errorf("statusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatFrameRate(t *testing.T) {
	if got := formatFrameRate(30000.0 / 1001); got != "29.97" {
		t.Fatalf("unexpected NTSC label %q", got)
	}
	if got := formatFrameRate(0); got != "-" {
		t.Fatalf("unexpected zero label %q", got)
	}
}
