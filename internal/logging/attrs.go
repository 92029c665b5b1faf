package logging

import (
	"context"
	"log/slog"
	"slices"
	"time"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Error renders err under the "error" key; a nil error is logged as "<nil>"
// rather than dropped so the key set stays stable.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Device tags a record with the detector device that produced it.
func Device(device string) Attr { return slog.String(FieldDevice, device) }

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger creates a logger with a standardized component attribute.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

const (
	defaultErrorHint = "check logs for details"
	defaultImpact    = "file recorded without speech"
)

// WarnWithContext logs a warning carrying event_type, error_hint and impact.
// Missing fields are filled with defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	logWithContext(logger, slog.LevelWarn, msg, eventType, true, attrs)
}

// ErrorWithContext logs an error carrying event_type and error_hint.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	logWithContext(logger, slog.LevelError, msg, eventType, false, attrs)
}

func logWithContext(logger *slog.Logger, level slog.Level, msg, eventType string, withImpact bool, attrs []Attr) {
	if logger == nil {
		return
	}
	defaults := []Attr{
		String(FieldEventType, eventType),
		String(FieldErrorHint, defaultErrorHint),
	}
	if withImpact {
		defaults = append(defaults, String(FieldImpact, defaultImpact))
	}
	for _, def := range defaults {
		if !slices.ContainsFunc(attrs, func(a Attr) bool { return a.Key == def.Key }) {
			attrs = append(attrs, def)
		}
	}
	logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
