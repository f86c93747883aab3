package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
}

// Engine configures the external transcoding engine.
type Engine struct {
	FFmpegBinary      string `toml:"ffmpeg_binary"`
	FFprobeBinary     string `toml:"ffprobe_binary"`
	GraceSeconds      int    `toml:"grace_seconds"`
	JobTimeoutSeconds int    `toml:"job_timeout_seconds"`
}

// Processing holds the default per-batch processing settings.
type Processing struct {
	Preset           string  `toml:"preset"`
	Format           string  `toml:"format"`
	Quality          string  `toml:"quality"`
	BitDepth         int     `toml:"bit_depth"`
	SampleRate       int     `toml:"sample_rate"`
	Channels         int     `toml:"channels"`
	FadeIn           float64 `toml:"fade_in"`
	FadeOut          float64 `toml:"fade_out"`
	Overwrite        bool    `toml:"overwrite"`
	AutoRename       bool    `toml:"auto_rename"`
	Concurrency      int     `toml:"concurrency"`
	FilenameTemplate string  `toml:"filename_template"`
}

// Normalization holds EBU R128 loudness settings.
type Normalization struct {
	Enabled    bool    `toml:"enabled"`
	Mode       string  `toml:"mode"`
	TargetLUFS float64 `toml:"target_lufs"`
	TruePeak   float64 `toml:"true_peak"`
	LRA        float64 `toml:"lra"`
}

// Metadata holds tag templates applied to every output.
type Metadata struct {
	Artist  string `toml:"artist"`
	Title   string `toml:"title"`
	Album   string `toml:"album"`
	Year    string `toml:"year"`
	Genre   string `toml:"genre"`
	Comment string `toml:"comment"`
}

// Watch configures folder-watch ingestion.
type Watch struct {
	Dir                 string `toml:"dir"`
	Recursive           bool   `toml:"recursive"`
	SettleSeconds       int    `toml:"settle_seconds"`
	ScanIntervalSeconds int    `toml:"scan_interval_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Batch          bool   `toml:"batch"`
	Errors         bool   `toml:"errors"`
}

// Metrics configures the Prometheus endpoint. An empty Listen disables it.
type Metrics struct {
	Listen string `toml:"listen"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for MusicForge.
//
// Configuration sections by subsystem:
//   - Paths: output, state (history database, lock, socket), and log directories
//   - Engine: ffmpeg/ffprobe binaries and cancellation timing
//   - Processing, Normalization, Metadata: default batch settings
//   - Presets: user-defined presets layered over the built-ins
//   - Watch: folder-watch daemon
//   - Notifications: ntfy push notification settings
//   - Metrics: Prometheus listen address
//   - Logging: log format and level
type Config struct {
	Paths         Paths                 `toml:"paths"`
	Engine        Engine                `toml:"engine"`
	Processing    Processing            `toml:"processing"`
	Normalization Normalization         `toml:"normalization"`
	Metadata      Metadata              `toml:"metadata"`
	Presets       map[string]UserPreset `toml:"presets"`
	Watch         Watch                 `toml:"watch"`
	Notifications Notifications         `toml:"notifications"`
	Metrics       Metrics               `toml:"metrics"`
	Logging       Logging               `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

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

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
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
	projectPath, err := filepath.Abs("musicforge.toml")
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

// EnsureDirectories creates the state and log directories. The output
// directory is created lazily by the batch runner.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryDBPath returns the job history database location.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the watch daemon lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "musicforge.lock")
}

// SocketPath returns the watch daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "musicforge.sock")
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
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
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
