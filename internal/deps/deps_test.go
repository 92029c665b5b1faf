package deps

import (
	"os"
	"path/filepath"
	"testing"

	"speechline/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  ", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to resolve to %q, got %#v", present, results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for empty command: %q", results[2].Detail)
	}

	missing := Missing(results)
	if len(missing) != 1 || missing[0].Name != "Missing" {
		t.Fatalf("expected only the required missing binary, got %#v", missing)
	}
}

func TestRequirementsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Detector.Command = "/opt/vad/detect"

	reqs := Requirements(&cfg)
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requirements, got %d", len(reqs))
	}
	if reqs[0].Command != "ffprobe" || reqs[1].Command != "ffmpeg" || reqs[2].Command != "/opt/vad/detect" {
		t.Fatalf("unexpected commands: %#v", reqs)
	}
	if Requirements(nil) != nil {
		t.Fatal("expected nil requirements for nil config")
	}
}
