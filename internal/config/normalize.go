package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMedia()
	c.normalizeDetector()
	c.normalizeTimeline()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = os.TempDir()
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LedgerPath) == "" {
		c.Paths.LedgerPath = defaultLedgerPath
	}
	if c.Paths.LedgerPath, err = expandPath(c.Paths.LedgerPath); err != nil {
		return fmt.Errorf("paths.ledger_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeMedia() {
	c.Media.FFprobeBinary = strings.TrimSpace(c.Media.FFprobeBinary)
	if c.Media.FFprobeBinary == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
	c.Media.FFmpegBinary = strings.TrimSpace(c.Media.FFmpegBinary)
	if c.Media.FFmpegBinary == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Media.SampleRate == 0 {
		c.Media.SampleRate = defaultSampleRate
	}
}

func (c *Config) normalizeDetector() {
	if value, ok := os.LookupEnv("SPEECHLINE_DETECTOR_COMMAND"); ok && strings.TrimSpace(value) != "" {
		c.Detector.Command = value
	}
	c.Detector.Command = strings.TrimSpace(c.Detector.Command)
	if c.Detector.Command == "" {
		c.Detector.Command = defaultDetectorCommand
	}
	if value, ok := os.LookupEnv("SPEECHLINE_DETECTOR_MODEL"); ok && strings.TrimSpace(value) != "" {
		c.Detector.Model = value
	}
	c.Detector.Model = strings.TrimSpace(c.Detector.Model)
	if c.Detector.BatchSize == 0 {
		c.Detector.BatchSize = defaultDetectorBatchSize
	}
	c.Detector.AcceleratedDevice = strings.ToLower(strings.TrimSpace(c.Detector.AcceleratedDevice))
	if c.Detector.AcceleratedDevice == "" {
		c.Detector.AcceleratedDevice = defaultDetectorAcceleratedDevice
	}
	c.Detector.FallbackDevice = strings.ToLower(strings.TrimSpace(c.Detector.FallbackDevice))
	if c.Detector.FallbackDevice == "" {
		c.Detector.FallbackDevice = defaultDetectorFallbackDevice
	}
}

func (c *Config) normalizeTimeline() {
	c.Timeline.SequenceName = strings.TrimSpace(c.Timeline.SequenceName)
	if c.Timeline.SequenceName == "" {
		c.Timeline.SequenceName = defaultSequenceName
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 0
	}
}
