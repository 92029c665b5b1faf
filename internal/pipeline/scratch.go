package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"speechline/internal/logging"
)

// ScratchPrefix names the per-file scratch directories created under the
// scratch root.
const ScratchPrefix = "speechline-"

// DefaultScratchMaxAge is how old a leftover scratch directory must be before
// SweepScratch removes it.
const DefaultScratchMaxAge = 24 * time.Hour

// SweepResult lists what SweepScratch removed and what it could not.
type SweepResult struct {
	Removed []string
	Errors  []SweepError
}

// SweepError pairs a directory with the error hit while removing it.
type SweepError struct {
	Path  string
	Error error
}

// SweepScratch removes scratch directories left behind by interrupted runs.
// Only directories carrying ScratchPrefix and older than maxAge are touched so
// a concurrent run writing to another output keeps its working files.
func SweepScratch(ctx context.Context, root string, maxAge time.Duration, logger *slog.Logger) SweepResult {
	result := SweepResult{}
	root = strings.TrimSpace(root)
	if root == "" {
		return result
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Path: root, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), ScratchPrefix) {
			continue
		}
		dirPath := filepath.Join(root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, SweepError{Path: dirPath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: dirPath, Error: err})
			logging.WarnWithContext(logger, "failed to remove stale scratch directory", "scratch_cleanup_failed",
				logging.String("path", dirPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check scratch_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		logger.Info("removed stale scratch directory",
			logging.String("path", dirPath),
			logging.Duration("age", time.Since(info.ModTime())),
			logging.String(logging.FieldEventType, "scratch_cleanup"),
		)
	}
	return result
}
