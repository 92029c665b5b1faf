package speech

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func scriptedRunner(stdout, stderr string, err error) (Runner, *[]string) {
	var captured []string
	return func(_ context.Context, name string, args []string, out, errOut io.Writer) error {
		captured = append([]string{name}, args...)
		// Split writes mid-line to exercise buffering.
		half := len(stdout) / 2
		_, _ = io.WriteString(out, stdout[:half])
		_, _ = io.WriteString(out, stdout[half:])
		_, _ = io.WriteString(errOut, stderr)
		return err
	}, &captured
}

func TestServiceRunDecodesEvents(t *testing.T) {
	stdout := strings.Join([]string{
		`Loading model weights...`,
		`{"type":"progress","count":1,"total":2}`,
		`{"type":"speech","start":0.5,"end":1.25}`,
		`{"type":"progress","count":2,"total":2}`,
		`{"type":"speech","start":3,"end":4.75}`,
		`{"type":"stats","rtf":0.02}`,
	}, "\n")
	runner, captured := scriptedRunner(stdout, "", nil)

	var progress [][2]int
	svc := NewService(Config{
		Command:   "vad",
		Model:     "pyannote/segmentation",
		Device:    "cuda",
		BatchSize: 8,
		Threshold: 0.6,
	}, WithRunner(runner), WithProgress(func(count, total int) {
		progress = append(progress, [2]int{count, total})
	}))

	result, err := svc.Run(context.Background(), "/scratch/audio.wav")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []Segment{{Start: 0.5, End: 1.25}, {Start: 3, End: 4.75}}
	if !reflect.DeepEqual(result.Segments, want) {
		t.Fatalf("unexpected segments: %+v", result.Segments)
	}
	if !reflect.DeepEqual(progress, [][2]int{{1, 2}, {2, 2}}) {
		t.Fatalf("unexpected progress calls: %v", progress)
	}
	wantArgs := []string{"vad", "--model", "pyannote/segmentation", "--device", "cuda", "--batch-size", "8", "--threshold", "0.6", "--format", "jsonl", "/scratch/audio.wav"}
	if !reflect.DeepEqual(*captured, wantArgs) {
		t.Fatalf("unexpected args:\n got %v\nwant %v", *captured, wantArgs)
	}
	if svc.Device() != "cuda" {
		t.Fatalf("unexpected device %q", svc.Device())
	}
}

func TestServiceRunOmitsUnsetFlags(t *testing.T) {
	runner, captured := scriptedRunner("", "", nil)
	svc := NewService(Config{Command: "vad", Device: "cpu", BatchSize: 8}, WithRunner(runner))

	result, err := svc.Run(context.Background(), "a.wav")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Segments == nil || len(result.Segments) != 0 {
		t.Fatalf("expected empty non-nil segments for silence, got %#v", result.Segments)
	}
	wantArgs := []string{"vad", "--device", "cpu", "--batch-size", "8", "--format", "jsonl", "a.wav"}
	if !reflect.DeepEqual(*captured, wantArgs) {
		t.Fatalf("unexpected args: %v", *captured)
	}
}

func TestServiceRunFailures(t *testing.T) {
	cases := []struct {
		name    string
		stdout  string
		stderr  string
		runErr  error
		wantSub string
	}{
		{"exit status with stderr", "", "RuntimeError: CUDA out of memory\n", errors.New("exit status 1"), "CUDA out of memory"},
		{"error event", `{"type":"speech","start":1,"end":2}` + "\n" + `{"type":"error","message":"no audio stream"}`, "", nil, "no audio stream"},
		{"malformed json", `{"type":"speech","start":`, "", nil, "decode detector output"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner, _ := scriptedRunner(tc.stdout, tc.stderr, tc.runErr)
			svc := NewService(Config{Command: "vad", Device: "cuda"}, WithRunner(runner))
			_, err := svc.Run(context.Background(), "a.wav")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("expected %q in %v", tc.wantSub, err)
			}
			if !strings.Contains(err.Error(), "cuda") {
				t.Fatalf("expected device in error: %v", err)
			}
		})
	}
}

func TestServiceRequiresCommand(t *testing.T) {
	svc := NewService(Config{Device: "cpu"})
	if _, err := svc.Run(context.Background(), "a.wav"); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestServiceRunsRealProcess(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "vad")
	body := "#!/bin/sh\n" +
		"echo '{\"type\":\"progress\",\"count\":1,\"total\":1}'\n" +
		"printf '{\"type\":\"speech\",\"start\":0.25,\"end\":0.75}'\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	svc := NewService(Config{Command: script, Device: "cpu", BatchSize: 8})
	result, err := svc.Run(context.Background(), filepath.Join(dir, "audio.wav"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Segments) != 1 || result.Segments[0] != (Segment{Start: 0.25, End: 0.75}) {
		t.Fatalf("unexpected segments: %+v", result.Segments)
	}
}

func TestTailBufferKeepsEnd(t *testing.T) {
	buf := newTailBuffer(5)
	_, _ = buf.Write([]byte("abc"))
	_, _ = buf.Write([]byte("defgh"))
	if buf.String() != "defgh" {
		t.Fatalf("unexpected tail %q", buf.String())
	}
}
