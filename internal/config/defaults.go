package config

import "musicforge/internal/settings"

const (
	defaultConfigPath          = "~/.config/musicforge/config.toml"
	defaultOutputDir           = "~/Music/musicforge"
	defaultStateDir            = "~/.local/share/musicforge"
	defaultLogDir              = "~/.local/share/musicforge/logs"
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultGraceSeconds        = 2
	defaultWatchSettleSeconds  = 2
	defaultWatchScanSeconds    = 10
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultProcessingFormat    = "wav"
	defaultProcessingBitDepth  = 16
	defaultProcessingRate      = 48000
	defaultProcessingChannels  = 2
	defaultProcessingWorkers   = 1
	defaultNormalizationMode   = "one-pass"
	defaultMetadataTitle       = "{stem}"
	defaultFilenameTemplate    = settings.DefaultFilenameTemplate
	defaultNormalizationTarget = settings.DefaultTargetLUFS
	defaultNormalizationPeak   = settings.DefaultTruePeak
	defaultNormalizationLRA    = settings.DefaultLRA
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
		},
		Engine: Engine{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			GraceSeconds:  defaultGraceSeconds,
		},
		Processing: Processing{
			Format:           defaultProcessingFormat,
			BitDepth:         defaultProcessingBitDepth,
			SampleRate:       defaultProcessingRate,
			Channels:         defaultProcessingChannels,
			Concurrency:      defaultProcessingWorkers,
			FilenameTemplate: defaultFilenameTemplate,
		},
		Normalization: Normalization{
			Mode:       defaultNormalizationMode,
			TargetLUFS: defaultNormalizationTarget,
			TruePeak:   defaultNormalizationPeak,
			LRA:        defaultNormalizationLRA,
		},
		Metadata: Metadata{
			Title: defaultMetadataTitle,
		},
		Watch: Watch{
			SettleSeconds:       defaultWatchSettleSeconds,
			ScanIntervalSeconds: defaultWatchScanSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Batch:          true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
