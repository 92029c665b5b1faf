package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"speechline/internal/logging"
)

// stderrTailBytes bounds how much detector stderr is kept for error messages.
const stderrTailBytes = 4096

// ProgressFunc receives (count, total) batch progress from the detector.
type ProgressFunc func(count, total int)

// Runner executes the detector command, streaming stdout and stderr.
type Runner func(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error

// Detector runs the speech model on one extracted audio file.
type Detector interface {
	Run(ctx context.Context, audioPath string) (Result, error)
	Device() string
}

// Config captures one detector instance's settings. The accelerated and
// fallback instances share everything except Device.
type Config struct {
	Command   string
	Model     string
	Device    string
	BatchSize int
	// Threshold is passed through unchanged; zero omits the flag.
	Threshold float64
}

// Service runs the external voice-activity command and decodes its JSON
// line protocol.
type Service struct {
	cfg      Config
	progress ProgressFunc
	runner   Runner
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithProgress installs the batch progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Service) { s.progress = fn }
}

// WithRunner sets a custom command runner (for testing).
func WithRunner(runner Runner) Option {
	return func(s *Service) { s.runner = runner }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a detector instance bound to cfg.Device.
func NewService(cfg Config, opts ...Option) *Service {
	s := &Service{cfg: cfg, runner: execRunner}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "detector").With(logging.Device(cfg.Device))
	return s
}

// Device returns the compute device this instance runs on.
func (s *Service) Device() string {
	return s.cfg.Device
}

// Run detects speech in audioPath.
func (s *Service) Run(ctx context.Context, audioPath string) (Result, error) {
	if strings.TrimSpace(s.cfg.Command) == "" {
		return Result{}, errors.New("speech detector: command not configured")
	}
	args := s.buildArgs(audioPath)
	s.logger.Debug("running speech detector", logging.String("command", s.cfg.Command), logging.Any("args", args))

	decoder := newEventDecoder(s.progress, s.logger)
	stdout := newLineWriter(decoder.handle)
	stderr := newTailBuffer(stderrTailBytes)

	runErr := s.runner(ctx, s.cfg.Command, args, stdout, stderr)
	stdout.Flush()

	if runErr != nil {
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			return Result{}, fmt.Errorf("speech detector on %s: %w: %s", s.cfg.Device, runErr, tail)
		}
		return Result{}, fmt.Errorf("speech detector on %s: %w", s.cfg.Device, runErr)
	}
	if decoder.err != nil {
		return Result{}, fmt.Errorf("speech detector on %s: %w", s.cfg.Device, decoder.err)
	}
	return Result{Segments: decoder.segments}, nil
}

func (s *Service) buildArgs(audioPath string) []string {
	args := make([]string, 0, 12)
	if model := strings.TrimSpace(s.cfg.Model); model != "" {
		args = append(args, "--model", model)
	}
	args = append(args, "--device", s.cfg.Device)
	if s.cfg.BatchSize > 0 {
		args = append(args, "--batch-size", strconv.Itoa(s.cfg.BatchSize))
	}
	if s.cfg.Threshold > 0 {
		args = append(args, "--threshold", strconv.FormatFloat(s.cfg.Threshold, 'f', -1, 64))
	}
	args = append(args, "--format", "jsonl", audioPath)
	return args
}

func execRunner(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// event is one line of the detector's stdout protocol.
type event struct {
	Type    string  `json:"type"`
	Count   int     `json:"count"`
	Total   int     `json:"total"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Message string  `json:"message"`
}

type eventDecoder struct {
	progress ProgressFunc
	logger   *slog.Logger
	segments []Segment
	err      error
}

func newEventDecoder(progress ProgressFunc, logger *slog.Logger) *eventDecoder {
	return &eventDecoder{progress: progress, logger: logger, segments: []Segment{}}
}

func (d *eventDecoder) handle(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	if line[0] != '{' {
		// Model libraries occasionally print banners to stdout.
		d.logger.Debug("ignoring detector output", logging.String("line", string(line)))
		return
	}
	var evt event
	if err := json.Unmarshal(line, &evt); err != nil {
		d.fail(fmt.Errorf("decode detector output %q: %w", truncate(string(line), 120), err))
		return
	}
	switch evt.Type {
	case "progress":
		if d.progress != nil && evt.Total > 0 {
			d.progress(evt.Count, evt.Total)
		}
	case "speech":
		d.segments = append(d.segments, Segment{Start: evt.Start, End: evt.End})
	case "error":
		msg := strings.TrimSpace(evt.Message)
		if msg == "" {
			msg = "detector reported an error"
		}
		d.fail(errors.New(msg))
	default:
		d.logger.Debug("ignoring detector event", logging.String("type", evt.Type))
	}
}

func (d *eventDecoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
