package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultSampleRate is the detector's expected input rate.
const DefaultSampleRate = 16000

// WAVName is the file name of the extracted audio inside a scratch directory.
const WAVName = "audio.wav"

// Extractor decodes one audio stream to mono PCM WAV with ffmpeg.
type Extractor struct {
	ffmpegBinary  string
	sampleRate    int
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewExtractor returns an extractor for the given ffmpeg binary and sample rate.
func NewExtractor(ffmpegBinary string, sampleRate int) *Extractor {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Extractor{ffmpegBinary: ffmpegBinary, sampleRate: sampleRate}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Extractor) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) *Extractor {
	e.commandRunner = runner
	return e
}

// ExtractWAV writes the audio stream at streamIndex of source into
// scratchDir and returns the WAV path.
func (e *Extractor) ExtractWAV(ctx context.Context, source string, streamIndex int, scratchDir string) (string, error) {
	if streamIndex < 0 {
		return "", fmt.Errorf("extract audio: invalid audio stream index %d", streamIndex)
	}
	if strings.TrimSpace(scratchDir) == "" {
		return "", errors.New("extract audio: scratch directory required")
	}
	dest := filepath.Join(scratchDir, WAVName)
	args := buildExtractArgs(source, streamIndex, e.sampleRate, dest)
	if err := e.run(ctx, args...); err != nil {
		return "", fmt.Errorf("extract audio: %w", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return "", fmt.Errorf("extract audio: %w", err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("extract audio: %s is empty", dest)
	}
	return dest, nil
}

func (e *Extractor) run(ctx context.Context, args ...string) error {
	if e.commandRunner != nil {
		return e.commandRunner(ctx, e.ffmpegBinary, args...)
	}
	cmd := exec.CommandContext(ctx, e.ffmpegBinary, args...) //nolint:gosec
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(output.String()))
	}
	return nil
}

func buildExtractArgs(source string, streamIndex, sampleRate int, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", fmt.Sprintf("0:%d", streamIndex),
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		dest,
	}
}
