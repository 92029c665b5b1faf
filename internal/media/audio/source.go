package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"speechline/internal/logging"
	"speechline/internal/media/ffprobe"
)

// ErrNoAudio reports a container without any audio stream.
var ErrNoAudio = errors.New("no audio stream")

// Inspector returns ffprobe stream metadata for a file.
type Inspector interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// Source selects the dialogue stream of a media file and extracts it to WAV.
type Source struct {
	inspector Inspector
	extractor *Extractor
	logger    *slog.Logger
}

// NewSource pairs an inspector with an extractor. The inspector is normally
// the run's memoizing ffprobe.Prober so the file is not probed twice.
func NewSource(inspector Inspector, extractor *Extractor, logger *slog.Logger) *Source {
	return &Source{
		inspector: inspector,
		extractor: extractor,
		logger:    logging.NewComponentLogger(logger, "audio"),
	}
}

// Prepare extracts the selected audio stream of path into scratchDir and
// returns the WAV path.
func (s *Source) Prepare(ctx context.Context, path, scratchDir string) (string, error) {
	result, err := s.inspector.Inspect(ctx, path)
	if err != nil {
		return "", fmt.Errorf("inspect audio streams: %w", err)
	}
	selection := Select(result.Streams)
	if !selection.Found() {
		return "", fmt.Errorf("%s: %w", path, ErrNoAudio)
	}
	logging.WithContext(ctx, s.logger).Debug("selected audio stream",
		logging.Int("stream_index", selection.PrimaryIndex),
		logging.String("stream", selection.PrimaryLabel()),
		logging.Int("candidates", selection.Candidates),
	)
	return s.extractor.ExtractWAV(ctx, path, selection.PrimaryIndex, scratchDir)
}
