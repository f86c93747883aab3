package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"musicforge/internal/config"
	"musicforge/internal/services"
	"musicforge/internal/settings"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("MUSICFORGE_FFMPEG", "")
	t.Setenv("MUSICFORGE_NTFY_TOPIC", "alerts")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantOutput := filepath.Join(tempHome, "Music", "musicforge")
	if cfg.Paths.OutputDir != wantOutput {
		t.Fatalf("unexpected output dir: got %q want %q", cfg.Paths.OutputDir, wantOutput)
	}
	wantState := filepath.Join(tempHome, ".local", "share", "musicforge")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.HistoryDBPath() != filepath.Join(wantState, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryDBPath())
	}
	if cfg.Engine.FFmpegBinary != "ffmpeg" {
		t.Fatalf("expected default ffmpeg binary, got %q", cfg.Engine.FFmpegBinary)
	}
	if cfg.Engine.GraceSeconds != 2 {
		t.Fatalf("unexpected grace seconds: %d", cfg.Engine.GraceSeconds)
	}
	if cfg.Notifications.NtfyTopic != "alerts" {
		t.Fatalf("expected ntfy topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "musicforge.toml")

	type payload struct {
		Paths struct {
			OutputDir string `toml:"output_dir"`
		} `toml:"paths"`
		Processing struct {
			Format      string `toml:"format"`
			Quality     string `toml:"quality"`
			Concurrency int    `toml:"concurrency"`
		} `toml:"processing"`
		Normalization struct {
			Enabled bool   `toml:"enabled"`
			Mode    string `toml:"mode"`
		} `toml:"normalization"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Paths.OutputDir = filepath.Join(tempDir, "out")
	custom.Processing.Format = "MP3"
	custom.Processing.Quality = "V0"
	custom.Processing.Concurrency = 4
	custom.Normalization.Enabled = true
	custom.Normalization.Mode = "two-pass"
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Processing.Format != "mp3" {
		t.Fatalf("expected lowercased format, got %q", cfg.Processing.Format)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}

	s, err := cfg.Settings("")
	if err != nil {
		t.Fatalf("Settings returned error: %v", err)
	}
	if s.Format != settings.FormatMP3 || s.Quality != "V0" {
		t.Fatalf("unexpected settings format: %q %q", s.Format, s.Quality)
	}
	if !s.TwoPass() {
		t.Fatal("expected two-pass normalization")
	}
	if s.Concurrency != 4 {
		t.Fatalf("unexpected concurrency: %d", s.Concurrency)
	}
	if s.OutputDir != filepath.Join(tempDir, "out") {
		t.Fatalf("unexpected output dir: %q", s.OutputDir)
	}
}

func TestSettingsAppliesBuiltinAndUserPresets(t *testing.T) {
	cfg := config.Default()

	s, err := cfg.Settings("hi-fi flac (no normalize)")
	if err != nil {
		t.Fatalf("Settings returned error: %v", err)
	}
	if s.Format != settings.FormatFLAC {
		t.Fatalf("expected flac from built-in preset, got %q", s.Format)
	}

	format := "opus"
	channels := 1
	cfg.Presets = map[string]config.UserPreset{
		"voice": {Description: "Mono speech", Format: &format, Channels: &channels},
	}
	s, err = cfg.Settings("Voice")
	if err != nil {
		t.Fatalf("Settings returned error: %v", err)
	}
	if s.Format != settings.FormatOpus || s.Channels != 1 {
		t.Fatalf("unexpected user preset result: %q %d", s.Format, s.Channels)
	}
	if s.SampleRate != 48000 {
		t.Fatalf("expected unset preset fields to keep base values, got %d", s.SampleRate)
	}

	if _, err := cfg.Settings("nope"); err == nil {
		t.Fatal("expected error for unknown preset")
	}

	presets := cfg.ListPresets()
	if len(presets) != len(settings.Presets())+1 {
		t.Fatalf("unexpected preset count: %d", len(presets))
	}
	last := presets[len(presets)-1]
	if last.Name != "voice" || last.Builtin {
		t.Fatalf("expected user preset listed last, got %+v", last)
	}
}

func TestCreateSample(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[normalization]") {
		t.Fatalf("sample missing normalization section: %s", data)
	}

	t.Setenv("HOME", dir)
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("sample config should load cleanly: exists=%v err=%v", exists, err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"negative timeout", func(c *config.Config) { c.Engine.JobTimeoutSeconds = -1 }},
		{"unknown preset", func(c *config.Config) { c.Processing.Preset = "does-not-exist" }},
		{"bad format", func(c *config.Config) { c.Processing.Format = "aiff" }},
		{"loud target", func(c *config.Config) { c.Normalization.TargetLUFS = -5 }},
		{"bad channels", func(c *config.Config) { c.Processing.Channels = 0 }},
		{"bad level", func(c *config.Config) { c.Logging.Level = "verbose" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	cfg.Processing.SampleRate = 12345
	err := cfg.Validate()
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected processing errors to wrap ErrValidation, got %v", err)
	}
}
