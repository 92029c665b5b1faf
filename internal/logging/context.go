package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized structured logging key for run identifiers.
	FieldRunID = "run_id"
	// FieldFile is the standardized structured logging key for the media file being processed.
	FieldFile = "file"
	// FieldFileIndex is the 1-based position of the file within the run.
	FieldFileIndex = "index"
	// FieldFileTotal is the number of candidate files in the run.
	FieldFileTotal = "total"
	// FieldDevice is the standardized structured logging key for detector devices.
	FieldDevice = "device"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step for the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey int

const (
	runIDKey contextKey = iota
	fileKey
)

type fileContext struct {
	path  string
	index int
	total int
}

// WithRunID returns a context carrying the run identifier.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext extracts the run identifier, if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok && id != ""
}

// WithFile returns a context describing the file currently being processed.
func WithFile(ctx context.Context, path string, index, total int) context.Context {
	return context.WithValue(ctx, fileKey, fileContext{path: path, index: index, total: total})
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if file, ok := ctx.Value(fileKey).(fileContext); ok {
		fields = append(fields, slog.String(FieldFile, file.path))
		if file.index > 0 {
			fields = append(fields, slog.Int(FieldFileIndex, file.index))
		}
		if file.total > 0 {
			fields = append(fields, slog.Int(FieldFileTotal, file.total))
		}
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, len(fields))
	for i, field := range fields {
		args[i] = field
	}
	return logger.With(args...)
}
