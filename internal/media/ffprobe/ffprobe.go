package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index         int               `json:"index"`
	CodecName     string            `json:"codec_name"`
	CodecLong     string            `json:"codec_long_name"`
	CodecType     string            `json:"codec_type"`
	Profile       string            `json:"profile"`
	Duration      string            `json:"duration"`
	BitRate       string            `json:"bit_rate"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	AvgFrameRate  string            `json:"avg_frame_rate"`
	RFrameRate    string            `json:"r_frame_rate"`
	SampleRate    string            `json:"sample_rate"`
	Channels      int               `json:"channels"`
	ChannelLayout string            `json:"channel_layout"`
	Tags          map[string]string `json:"tags"`
	Disposition   map[string]int    `json:"disposition"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path) //nolint:gosec
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return Parse(output)
}

// Parse decodes an ffprobe JSON payload.
func Parse(payload []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	result.raw = append([]byte(nil), payload...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if stream.IsVideo() {
			count++
		}
	}
	return count
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			count++
		}
	}
	return count
}

// PrimaryVideo returns the first real video stream. Cover art and other
// attached pictures are skipped.
func (r Result) PrimaryVideo() (Stream, bool) {
	for _, stream := range r.Streams {
		if stream.IsVideo() {
			return stream, true
		}
	}
	return Stream{}, false
}

// IsVideo reports whether the stream carries moving pictures.
func (s Stream) IsVideo() bool {
	if !strings.EqualFold(s.CodecType, "video") {
		return false
	}
	return s.Disposition == nil || s.Disposition["attached_pic"] == 0
}

// FrameRate returns the stream frame rate in frames per second, preferring
// avg_frame_rate and falling back to r_frame_rate. Zero means unknown.
func (s Stream) FrameRate() float64 {
	if rate, err := ParseRate(s.AvgFrameRate); err == nil && rate > 0 {
		return rate
	}
	if rate, err := ParseRate(s.RFrameRate); err == nil && rate > 0 {
		return rate
	}
	return 0
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// BitRate returns the container bitrate in bits per second, or 0 when unavailable.
func (r Result) BitRate() int64 {
	rate := parseFloat(r.Format.BitRate)
	if math.IsNaN(rate) || rate < 0 {
		return 0
	}
	return int64(rate)
}

// ParseRate parses ffprobe rate strings such as "30000/1001", "25/1" or "23.976".
// "0/0" and other zero-denominator rationals are reported as errors.
func ParseRate(value string) (float64, error) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0, errors.New("empty rate")
	}
	num, den, isRatio := strings.Cut(cleaned, "/")
	if !isRatio {
		rate, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, fmt.Errorf("parse rate %q: %w", value, err)
		}
		return rate, nil
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, fmt.Errorf("parse rate numerator %q: %w", value, err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
	if err != nil {
		return 0, fmt.Errorf("parse rate denominator %q: %w", value, err)
	}
	if d == 0 {
		return 0, fmt.Errorf("parse rate %q: zero denominator", value)
	}
	return n / d, nil
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

func parseInt(value string) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return parsed
}
