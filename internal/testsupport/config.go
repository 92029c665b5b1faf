package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"speechline/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The scratch and log directories exist on return.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LedgerPath = filepath.Join(base, "data", "ledger.db")
	cfgVal.Logging.Level = "error"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithLedgerDisabled turns the run ledger off.
func WithLedgerDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ledger.Enabled = false
	}
}

// WithStubTools writes stub ffprobe, ffmpeg and detector executables into
// the config's bin directory and points the config at them. The ffprobe
// stub reports fps as the video frame rate; the detector stub fails on
// failDevice (if set) and otherwise emits the given segments.
func WithStubTools(fps string, failDevice string, segments ...[2]float64) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		b.cfg.Media.FFprobeBinary = WriteExecutable(b.t, binDir, "ffprobe", FFprobeScript(fps))
		b.cfg.Media.FFmpegBinary = WriteExecutable(b.t, binDir, "ffmpeg", FFmpegScript())
		b.cfg.Detector.Command = WriteExecutable(b.t, binDir, "speech-detect", DetectorScript(failDevice, segments...))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ScratchDir)
}

// WriteConfigFile serializes cfg as TOML at path.
func WriteConfigFile(t testing.TB, path string, cfg *config.Config) {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
