package ffprobe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrNoFrameRate reports a file without a usable positive video frame rate.
var ErrNoFrameRate = errors.New("no video frame rate")

// Properties summarizes the parts of a probe the pipeline and timeline use.
type Properties struct {
	Path     string
	Video    VideoProperties
	Audio    AudioProperties
	Duration float64
}

// VideoProperties describes the primary video stream.
type VideoProperties struct {
	FrameRate float64
	Width     int
	Height    int
}

// AudioProperties describes the first audio stream.
type AudioProperties struct {
	Present    bool
	SampleRate int
	Channels   int
}

// Properties derives a summary from the probe result.
func (r Result) Properties() Properties {
	props := Properties{Path: r.Format.Filename}
	if d := r.DurationSeconds(); !math.IsNaN(d) {
		props.Duration = d
	}
	if video, ok := r.PrimaryVideo(); ok {
		props.Video = VideoProperties{
			FrameRate: video.FrameRate(),
			Width:     video.Width,
			Height:    video.Height,
		}
	}
	for _, stream := range r.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		props.Audio = AudioProperties{
			Present:    true,
			SampleRate: parseInt(stream.SampleRate),
			Channels:   stream.Channels,
		}
		break
	}
	return props
}

// InspectFunc matches the signature of Inspect.
type InspectFunc func(ctx context.Context, binary, path string) (Result, error)

// Prober runs ffprobe at most once per path and caches the result for the
// lifetime of a run.
type Prober struct {
	binary  string
	inspect InspectFunc

	mu    sync.Mutex
	cache map[string]Result
}

// NewProber builds a memoizing prober around the given ffprobe binary.
func NewProber(binary string) *Prober {
	return &Prober{binary: binary, inspect: Inspect, cache: make(map[string]Result)}
}

// WithInspectFunc replaces the ffprobe invocation (for testing).
func (p *Prober) WithInspectFunc(fn InspectFunc) *Prober {
	p.inspect = fn
	return p
}

// Inspect returns the cached ffprobe result for path, probing on first use.
// Failures are not cached.
func (p *Prober) Inspect(ctx context.Context, path string) (Result, error) {
	p.mu.Lock()
	if cached, ok := p.cache[path]; ok {
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	result, err := p.inspect(ctx, p.binary, path)
	if err != nil {
		return Result{}, err
	}

	p.mu.Lock()
	p.cache[path] = result
	p.mu.Unlock()
	return result, nil
}

// Probe returns the file's properties. A missing or non-positive frame rate
// is reported as ErrNoFrameRate.
func (p *Prober) Probe(ctx context.Context, path string) (Properties, error) {
	result, err := p.Inspect(ctx, path)
	if err != nil {
		return Properties{}, fmt.Errorf("probe %s: %w", path, err)
	}
	props := result.Properties()
	props.Path = path
	if !(props.Video.FrameRate > 0) {
		return props, fmt.Errorf("probe %s: %w", path, ErrNoFrameRate)
	}
	return props, nil
}
