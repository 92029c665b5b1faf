package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains scratch, log, and ledger locations.
type Paths struct {
	ScratchDir string `toml:"scratch_dir"`
	LogDir     string `toml:"log_dir"`
	LedgerPath string `toml:"ledger_path"`
}

// Media contains the external probing and decoding tools.
type Media struct {
	FFprobeBinary string `toml:"ffprobe_binary"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	SampleRate    int    `toml:"sample_rate"`
}

// Detector contains configuration for the speech detection model command.
type Detector struct {
	// Command is the executable that runs the voice-activity model.
	Command string `toml:"command"`
	// Model is passed through as --model when set.
	Model string `toml:"model"`
	// BatchSize is shared by the accelerated and fallback instances.
	BatchSize int `toml:"batch_size"`
	// Threshold is the model decision boundary. Zero keeps the model default.
	Threshold float64 `toml:"threshold"`
	// AcceleratedDevice is tried first for every file (e.g. "cuda").
	AcceleratedDevice string `toml:"accelerated_device"`
	// FallbackDevice is used when the accelerated device fails (e.g. "cpu").
	FallbackDevice string `toml:"fallback_device"`
}

// Timeline contains export settings for the editing timeline.
type Timeline struct {
	SequenceName string `toml:"sequence_name"`
}

// Ledger contains configuration for the run history database.
type Ledger struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config encapsulates all configuration values for speechline.
//
// Configuration sections by subsystem:
//   - Paths: scratch, log, and ledger locations
//   - Media: ffprobe/ffmpeg binaries and extraction sample rate
//   - Detector: speech model command and device pair
//   - Timeline: exported sequence naming
//   - Ledger: run history toggle
//   - Logging: log format, level, and rotation
type Config struct {
	Paths    Paths    `toml:"paths"`
	Media    Media    `toml:"media"`
	Detector Detector `toml:"detector"`
	Timeline Timeline `toml:"timeline"`
	Ledger   Ledger   `toml:"ledger"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	if err := loadDotEnv(); err != nil {
		return nil, "", false, err
	}

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads ./.env when present. Variables already set in the
// environment keep their values.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat .env: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("speechline.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the scratch and log directories, plus the
// ledger's parent directory when the ledger is enabled.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScratchDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Ledger.Enabled && strings.TrimSpace(c.Paths.LedgerPath) != "" {
		dir := filepath.Dir(c.Paths.LedgerPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
