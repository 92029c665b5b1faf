// Package logging assembles structured slog loggers and formatting helpers used
// across speechline.
//
// It owns the configurable console/JSON handlers, routes file output through a
// rotating lumberjack writer, and exposes context-aware helpers so pipeline
// code can tag log lines with the run ID and the file being processed. The
// package also provides a no-op logger for tests and a ProgressSampler that
// thins detector progress into bucketed log lines when no terminal is attached.
package logging
