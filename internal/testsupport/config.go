package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"musicforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Metrics.Listen = ""
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithFakeEngine installs script as the ffmpeg binary on the test config.
func WithFakeEngine(script string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.FFmpegBinary = FakeEngine(b.t, filepath.Join(b.baseDir, "bin"), "ffmpeg", script)
	}
}

// WithWatchDir creates a watch directory under the test root.
func WithWatchDir() ConfigOption {
	return func(b *configBuilder) {
		dir := filepath.Join(b.baseDir, "inbox")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.t.Fatalf("mkdir watch dir: %v", err)
		}
		b.cfg.Watch.Dir = dir
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
