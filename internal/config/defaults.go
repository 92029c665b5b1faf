package config

const (
	defaultConfigPath                = "~/.config/speechline/config.toml"
	defaultLogDir                    = "~/.local/share/speechline/logs"
	defaultLedgerPath                = "~/.local/share/speechline/ledger.db"
	defaultFFprobeBinary             = "ffprobe"
	defaultFFmpegBinary              = "ffmpeg"
	defaultSampleRate                = 16000
	defaultDetectorCommand           = "speech-detect"
	defaultDetectorBatchSize         = 8
	defaultDetectorAcceleratedDevice = "cuda"
	defaultDetectorFallbackDevice    = "cpu"
	defaultSequenceName              = "Speech"
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultLogMaxSizeMB              = 50
	defaultLogMaxBackups             = 5
	defaultLogMaxAgeDays             = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:     defaultLogDir,
			LedgerPath: defaultLedgerPath,
		},
		Media: Media{
			FFprobeBinary: defaultFFprobeBinary,
			FFmpegBinary:  defaultFFmpegBinary,
			SampleRate:    defaultSampleRate,
		},
		Detector: Detector{
			Command:           defaultDetectorCommand,
			BatchSize:         defaultDetectorBatchSize,
			AcceleratedDevice: defaultDetectorAcceleratedDevice,
			FallbackDevice:    defaultDetectorFallbackDevice,
		},
		Timeline: Timeline{
			SequenceName: defaultSequenceName,
		},
		Ledger: Ledger{
			Enabled: true,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}
