package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateDetector(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		return errors.New("paths.scratch_dir must be set")
	}
	if c.Ledger.Enabled && strings.TrimSpace(c.Paths.LedgerPath) == "" {
		return errors.New("paths.ledger_path must be set when ledger.enabled is true")
	}
	return nil
}

func (c *Config) validateMedia() error {
	if c.Media.SampleRate <= 0 {
		return errors.New("media.sample_rate must be positive")
	}
	return nil
}

func (c *Config) validateDetector() error {
	if c.Detector.BatchSize <= 0 {
		return errors.New("detector.batch_size must be positive")
	}
	if err := ValidateThreshold(c.Detector.Threshold, true); err != nil {
		return fmt.Errorf("detector.threshold %w", err)
	}
	if c.Detector.AcceleratedDevice == c.Detector.FallbackDevice {
		return fmt.Errorf("detector.accelerated_device and detector.fallback_device must differ (both %q)", c.Detector.FallbackDevice)
	}
	return nil
}

// ValidateThreshold checks a detection threshold. Zero means "model default"
// and is only accepted when allowZero is set.
func ValidateThreshold(value float64, allowZero bool) error {
	if value == 0 && allowZero {
		return nil
	}
	if value <= 0 || value > 1 {
		return fmt.Errorf("must be in (0, 1], got %g", value)
	}
	return nil
}
