package logging

import (
	"context"
	"log/slog"
)

// teeHandler copies each record to every sink that accepts its level and
// stamps the run ID on the way through. The run logger uses it to mirror the
// console into the rotating JSON file.
type teeHandler struct {
	sinks []slog.Handler
	runID string
}

func newTeeHandler(runID string, sinks ...slog.Handler) slog.Handler {
	var kept []slog.Handler
	for _, sink := range sinks {
		if sink != nil {
			kept = append(kept, sink)
		}
	}
	if len(kept) == 0 {
		return NoopHandler{}
	}
	if len(kept) == 1 && runID == "" {
		return kept[0]
	}
	return &teeHandler{sinks: kept, runID: runID}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range h.sinks {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.runID != "" {
		record.AddAttrs(slog.String(FieldRunID, h.runID))
	}
	var firstErr error
	last := len(h.sinks) - 1
	for i, sink := range h.sinks {
		if !sink.Enabled(ctx, record.Level) {
			continue
		}
		rec := record
		if i < last {
			// Sinks may retain the record; give each its own attr storage.
			rec = record.Clone()
		}
		if err := sink.Handle(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(sink slog.Handler) slog.Handler { return sink.WithAttrs(attrs) })
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(sink slog.Handler) slog.Handler { return sink.WithGroup(name) })
}

func (h *teeHandler) derive(fn func(slog.Handler) slog.Handler) *teeHandler {
	next := &teeHandler{sinks: make([]slog.Handler, len(h.sinks)), runID: h.runID}
	for i, sink := range h.sinks {
		next.sinks[i] = fn(sink)
	}
	return next
}
