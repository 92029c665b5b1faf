package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"speechline/internal/ledger"
	"speechline/internal/logging"
	"speechline/internal/media/ffprobe"
	"speechline/internal/speech"
	"speechline/internal/timeline"
)

// Prober returns the probed properties of one file.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Properties, error)
}

// AudioSource extracts a file's dialogue audio into scratchDir.
type AudioSource interface {
	Prepare(ctx context.Context, path, scratchDir string) (string, error)
}

// Dispatcher runs speech detection on extracted audio.
type Dispatcher interface {
	Detect(ctx context.Context, audioPath string) speech.Outcome
}

// Writer receives the full exported timeline after every file.
type Writer interface {
	Write(data []byte) error
}

// Recorder persists per-file outcomes. Errors are logged and ignored.
type Recorder interface {
	RecordFile(ctx context.Context, runID string, rec ledger.FileRecord) error
}

// Options wires the collaborators of a run.
type Options struct {
	Logger      *slog.Logger
	Prober      Prober
	Audio       AudioSource
	Dispatcher  Dispatcher
	Timeline    *timeline.Timeline
	Output      Writer
	ScratchRoot string
	// Recorder and RunID are optional.
	Recorder Recorder
	RunID    string
	// OnFileStart fires before each file with its 1-based index.
	OnFileStart func(index, total int, path string)
}

// FileResult is the outcome of one file.
type FileResult struct {
	Index     int
	Path      string
	FrameRate float64
	Frames    speech.Frames
	Outcome   speech.Outcome
	Status    ledger.FileStatus
	Err       error
}

// Failed reports whether the file contributed no speech because detection or
// extraction failed.
func (r FileResult) Failed() bool {
	return r.Status != ledger.FileDetected
}

// Summary aggregates a run.
type Summary struct {
	Files        []FileResult
	Detected     int
	Failed       int
	Clips        int
	SpeechFrames int64
}

func (s *Summary) add(result FileResult) {
	s.Files = append(s.Files, result)
	if result.Failed() {
		s.Failed++
	} else {
		s.Detected++
	}
	s.Clips += len(result.Frames)
	s.SpeechFrames += result.Frames.TotalFrames()
}

func (o Options) validate() error {
	switch {
	case o.Prober == nil:
		return errors.New("pipeline: prober is required")
	case o.Audio == nil:
		return errors.New("pipeline: audio source is required")
	case o.Dispatcher == nil:
		return errors.New("pipeline: dispatcher is required")
	case o.Timeline == nil:
		return errors.New("pipeline: timeline is required")
	case o.Output == nil:
		return errors.New("pipeline: output writer is required")
	}
	return nil
}

// Run processes candidates in order. Probe failures and output write
// failures abort the run; detection and extraction failures are recorded on
// the file and the run continues. The returned Summary covers every file
// finished before an abort.
func Run(ctx context.Context, candidates []string, opts Options) (Summary, error) {
	var summary Summary
	if err := opts.validate(); err != nil {
		return summary, err
	}
	logger := logging.NewComponentLogger(opts.Logger, "pipeline")
	total := len(candidates)

	for idx, path := range candidates {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		index := idx + 1
		fileCtx := logging.WithFile(ctx, path, index, total)
		fileLogger := logging.WithContext(fileCtx, logger)
		if opts.OnFileStart != nil {
			opts.OnFileStart(index, total, path)
		}
		fileLogger.Info("processing file", logging.String(logging.FieldEventType, "file_start"))

		result, err := processFile(fileCtx, fileLogger, opts, index, path)
		if err != nil {
			return summary, err
		}
		summary.add(result)
		record(fileCtx, fileLogger, opts, result)
	}
	return summary, nil
}

func processFile(ctx context.Context, logger *slog.Logger, opts Options, index int, path string) (FileResult, error) {
	result := FileResult{Index: index, Path: path}

	props, err := opts.Prober.Probe(ctx, path)
	if err != nil {
		return result, fmt.Errorf("file %d (%s): %w", index, path, err)
	}
	result.FrameRate = props.Video.FrameRate

	scratch, err := os.MkdirTemp(opts.ScratchRoot, ScratchPrefix)
	if err != nil {
		return result, fmt.Errorf("create scratch directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			logger.Warn("failed to remove scratch directory",
				logging.String("scratch_dir", scratch),
				logging.Error(rmErr),
			)
		}
	}()

	audioPath, err := opts.Audio.Prepare(ctx, path, scratch)
	if err != nil {
		result.Status = ledger.FileExtractFailed
		result.Err = err
		result.Frames = speech.Frames{}
		result.Outcome = speech.Outcome{Role: speech.RoleNone, Exhausted: true, Errors: []error{err}}
		logging.WarnWithContext(logger, "audio extraction failed", "audio_extract_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the file has a decodable audio stream"),
			logging.String(logging.FieldImpact, "file added to the timeline without speech clips"),
		)
	} else {
		outcome := opts.Dispatcher.Detect(ctx, audioPath)
		result.Outcome = outcome
		if outcome.Exhausted {
			result.Status = ledger.FileExhausted
			result.Err = outcome.Err()
			result.Frames = speech.Frames{}
		} else {
			result.Status = ledger.FileDetected
			result.Frames = outcome.Result.ToFrames(result.FrameRate)
		}
	}

	opts.Timeline.AddFile(path, result.FrameRate, result.Frames, result.Failed())
	data, err := opts.Timeline.Export()
	if err != nil {
		return result, fmt.Errorf("export timeline: %w", err)
	}
	if err := opts.Output.Write(data); err != nil {
		return result, err
	}

	logger.Info("file processed",
		logging.String(logging.FieldEventType, "file_complete"),
		logging.String("status", string(result.Status)),
		logging.Device(result.Outcome.Device),
		logging.Int("segments", result.Outcome.Result.Len()),
		logging.Int("clips", len(result.Frames)),
		logging.Int64("speech_frames", result.Frames.TotalFrames()),
	)
	return result, nil
}

func record(ctx context.Context, logger *slog.Logger, opts Options, result FileResult) {
	if opts.Recorder == nil || strings.TrimSpace(opts.RunID) == "" {
		return
	}
	rec := ledger.FileRecord{
		Position:      result.Index,
		Path:          result.Path,
		FrameRate:     result.FrameRate,
		SegmentCount:  result.Outcome.Result.Len(),
		FrameCount:    result.Frames.TotalFrames(),
		SpeechSeconds: result.Outcome.Result.SpeechSeconds(),
		Role:          string(result.Outcome.Role),
		Device:        result.Outcome.Device,
		Rounds:        result.Outcome.Rounds,
		Attempts:      len(result.Outcome.Attempts),
		Status:        result.Status,
	}
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}
	// The ledger must not fail the run.
	if err := opts.Recorder.RecordFile(context.WithoutCancel(ctx), opts.RunID, rec); err != nil {
		logger.Warn("failed to record file in ledger", logging.Error(err))
	}
}
