// Package analysis probes every candidate file before a run and derives the
// sequence settings shared by the whole timeline.
package analysis

import (
	"context"
	"log/slog"
	"math"

	"speechline/internal/logging"
	"speechline/internal/media/ffprobe"
	"speechline/internal/timeline"
)

// Prober returns probed properties for one file.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Properties, error)
}

// Report is the outcome of analysing the candidate list.
type Report struct {
	Settings timeline.Settings
	Files    []ffprobe.Properties
	// Duration is the summed container duration of every candidate.
	Duration float64
}

// Summarize probes candidates in order and picks the most common frame rate,
// resolution and audio sample rate. Ties go to the value seen first. The
// first probe failure is returned unchanged.
func Summarize(ctx context.Context, prober Prober, candidates []string, sequenceName string, logger *slog.Logger) (Report, error) {
	logger = logging.NewComponentLogger(logger, "analysis")

	rates := newTally[float64]()
	sizes := newTally[[2]int]()
	sampleRates := newTally[int]()
	report := Report{Files: make([]ffprobe.Properties, 0, len(candidates))}

	for idx, path := range candidates {
		props, err := prober.Probe(ctx, path)
		if err != nil {
			return Report{}, err
		}
		logging.WithContext(logging.WithFile(ctx, path, idx+1, len(candidates)), logger).Debug("probed file",
			logging.Float64("frame_rate", props.Video.FrameRate),
			logging.Int("width", props.Video.Width),
			logging.Int("height", props.Video.Height),
			logging.Float64("duration_seconds", props.Duration),
		)
		report.Files = append(report.Files, props)
		report.Duration += props.Duration

		rates.add(roundRate(props.Video.FrameRate))
		if props.Video.Width > 0 && props.Video.Height > 0 {
			sizes.add([2]int{props.Video.Width, props.Video.Height})
		}
		if props.Audio.Present && props.Audio.SampleRate > 0 {
			sampleRates.add(props.Audio.SampleRate)
		}
	}

	settings := timeline.Settings{SequenceName: sequenceName}
	if fps, ok := rates.dominant(); ok {
		settings.FrameRate = fps
	}
	if size, ok := sizes.dominant(); ok {
		settings.Width, settings.Height = size[0], size[1]
	}
	if rate, ok := sampleRates.dominant(); ok {
		settings.SampleRate = rate
	}
	report.Settings = settings

	logger.Info("analysis complete",
		logging.Int("files", len(candidates)),
		logging.Float64("frame_rate", settings.FrameRate),
		logging.Int("width", settings.Width),
		logging.Int("height", settings.Height),
		logging.Int("sample_rate", settings.SampleRate),
	)
	return report, nil
}

// roundRate collapses float noise so 29.97002997 and 29.970 tally together.
func roundRate(fps float64) float64 {
	return math.Round(fps*1000) / 1000
}

type tally[T comparable] struct {
	order  []T
	counts map[T]int
}

func newTally[T comparable]() *tally[T] {
	return &tally[T]{counts: make(map[T]int)}
}

func (t *tally[T]) add(value T) {
	if _, ok := t.counts[value]; !ok {
		t.order = append(t.order, value)
	}
	t.counts[value]++
}

func (t *tally[T]) dominant() (T, bool) {
	var best T
	bestCount := 0
	for _, value := range t.order {
		if count := t.counts[value]; count > bestCount {
			best, bestCount = value, count
		}
	}
	return best, bestCount > 0
}
