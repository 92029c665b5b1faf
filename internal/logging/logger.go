package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"speechline/internal/config"
)

// LogFileName is the rotating log file written under the configured log directory.
const LogFileName = "speechline.log"

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Console receives the human-facing handler; nil means stderr.
	Console io.Writer
	// LogFile, when set, gets a JSON copy of every record through a
	// rotating writer.
	LogFile  string
	Rotation Rotation
	// RunID is stamped on every record when non-empty.
	RunID string
}

// Rotation mirrors the lumberjack knobs exposed in configuration.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New constructs the console handler, tees it into the rotating JSON file
// when one is configured and stamps the run ID.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))
	addSource := levelVar.Level() <= slog.LevelDebug

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	consoleHandler, err := newHandler(opts.Format, console, levelVar, addSource)
	if err != nil {
		return nil, err
	}

	handlers := []slog.Handler{consoleHandler}
	if path := strings.TrimSpace(opts.LogFile); path != "" {
		if err := ensureLogDir(path); err != nil {
			return nil, err
		}
		fileHandler, err := newJSONHandler(rotatingWriter(path, opts.Rotation), levelVar, addSource)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, fileHandler)
	}
	return slog.New(newTeeHandler(opts.RunID, handlers...)), nil
}

// NewFromConfig creates the run logger: the configured console format on
// console, teed into LogFileName under the log directory when one is set.
func NewFromConfig(cfg *config.Config, runID string, console io.Writer) (*slog.Logger, error) {
	opts := Options{Level: "info", Format: "console", Console: console, RunID: runID}
	if cfg != nil {
		opts.Level = cfg.Logging.Level
		opts.Format = cfg.Logging.Format
		opts.Rotation = Rotation{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		}
		if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
			opts.LogFile = filepath.Join(dir, LogFileName)
		}
	}
	return New(opts)
}

func newHandler(format string, w io.Writer, lvl *slog.LevelVar, addSource bool) (slog.Handler, error) {
	switch normalized := strings.ToLower(strings.TrimSpace(format)); normalized {
	case "json":
		return newJSONHandler(w, lvl, addSource)
	case "console", "":
		return newPrettyHandler(w, lvl, addSource), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", format)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func rotatingWriter(path string, rotation Rotation) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotation.MaxSizeMB,
		MaxBackups: rotation.MaxBackups,
		MaxAge:     rotation.MaxAgeDays,
		LocalTime:  true,
	}
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure log directory %s: %w", dir, err)
	}
	return nil
}

func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) (slog.Handler, error) {
	opts := slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				if attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
				}
			case slog.LevelKey:
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return attr
		},
	}
	return slog.NewJSONHandler(w, &opts), nil
}
