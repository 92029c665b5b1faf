package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestNewTeeHandlerCollapses(t *testing.T) {
	if _, ok := newTeeHandler("", nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler for all nil handlers")
	}
	if _, ok := newTeeHandler("run-1").(NoopHandler); !ok {
		t.Fatal("expected NoopHandler without sinks even when a run ID is set")
	}

	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newTeeHandler("", nil, inner); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
	if h := newTeeHandler("run-1", inner); h == inner {
		t.Fatal("expected a wrapper when a run ID must be stamped")
	}
}

func TestTeeHandlerRespectsPerHandlerLevel(t *testing.T) {
	var console, file bytes.Buffer
	consoleHandler := slog.NewJSONHandler(&console, &slog.HandlerOptions{Level: slog.LevelInfo})
	fileHandler := slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug})

	h := newTeeHandler("", consoleHandler, fileHandler)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout enabled for debug when any handler accepts it")
	}

	logger := slog.New(h)
	logger.Debug("probe args")
	logger.Info("processing file", slog.String("file", "a.mp4"))

	if strings.Contains(console.String(), "probe args") {
		t.Fatal("info handler should not receive debug records")
	}
	if !strings.Contains(file.String(), "probe args") {
		t.Fatal("debug handler should receive debug records")
	}
	for name, buf := range map[string]*bytes.Buffer{"console": &console, "file": &file} {
		if !strings.Contains(buf.String(), `"file":"a.mp4"`) {
			t.Fatalf("%s output missing attribute: %s", name, buf.String())
		}
	}
}

func TestTeeHandlerWithAttrsAndGroup(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newTeeHandler("", slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil))

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "pipeline")}).WithGroup("detector"))
	logger.Info("attempt", slog.Int("round", 2))

	for _, out := range []string{buf1.String(), buf2.String()} {
		if !strings.Contains(out, `"component":"pipeline"`) || !strings.Contains(out, `"detector":{"round":2}`) {
			t.Fatalf("unexpected output: %s", out)
		}
	}
}

func TestTeeHandlerStampsRunID(t *testing.T) {
	var console, file bytes.Buffer
	handler := newTeeHandler("run-123", slog.NewJSONHandler(&console, nil), slog.NewJSONHandler(&file, nil))

	slog.New(handler).With("extra", "value").Info("run started")

	for name, buf := range map[string]*bytes.Buffer{"console": &console, "file": &file} {
		output := buf.String()
		if strings.Count(output, `"run_id":"run-123"`) != 1 {
			t.Fatalf("%s: expected run_id exactly once, got: %s", name, output)
		}
		if !strings.Contains(output, `"extra":"value"`) {
			t.Fatalf("%s: expected extra attr, got: %s", name, output)
		}
	}
}

func TestPrettyHandlerRendersFileSubject(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, level, false))

	logger = NewComponentLogger(logger, "pipeline")
	logger.Info("processing file",
		slog.String(FieldFile, "/media/a clip.mp4"),
		slog.Int(FieldFileIndex, 2),
		slog.Int(FieldFileTotal, 5),
		slog.String(FieldRunID, "abc"),
	)

	line := buf.String()
	if !strings.Contains(line, "INFO [pipeline] File 2/5 a clip.mp4 – processing file") {
		t.Fatalf("unexpected header: %q", line)
	}
	for _, folded := range []string{"run_id", "index=", "file="} {
		if strings.Contains(line, folded) {
			t.Fatalf("expected %s to be folded into the header: %q", folded, line)
		}
	}
}

func TestPrettyHandlerKeepsRunIDForDebug(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelDebug)
	logger := slog.New(newPrettyHandler(&buf, level, false))

	logger.Debug("detector args", slog.String(FieldRunID, "abc"), slog.String(FieldFile, "/media/a clip.mp4"))
	if !strings.Contains(buf.String(), "run_id=abc") {
		t.Fatalf("expected run_id in debug output: %q", buf.String())
	}
	if !strings.Contains(buf.String(), `file="/media/a clip.mp4"`) {
		t.Fatalf("expected full quoted path in debug output: %q", buf.String())
	}
}

func TestPrettyHandlerRoundsFloats(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newPrettyHandler(&buf, new(slog.LevelVar), false))

	logger.Info("probed", slog.Float64("fps", 30000.0/1001), slog.Duration("took", 1500*time.Millisecond))
	line := buf.String()
	if !strings.Contains(line, "fps=29.97 ") || !strings.Contains(line, "took=1.5s") {
		t.Fatalf("unexpected value rendering: %q", line)
	}
}
