package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"musicforge/internal/config"
	"musicforge/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	socketPath string
	inputDir   string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, extraConfig string) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithFakeEngine(testsupport.EncodingEngine), testsupport.WithWatchDir())
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("MUSICFORGE_FFMPEG", "")
	t.Setenv("MUSICFORGE_FFPROBE", "")
	t.Setenv("MUSICFORGE_NTFY_TOPIC", "")
	cfg.Engine.FFprobeBinary = filepath.Join(base, "missing-ffprobe")

	inputDir := filepath.Join(base, "in")
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		t.Fatalf("mkdir input dir: %v", err)
	}

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg, extraConfig)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		socketPath: cfg.SocketPath(),
		inputDir:   inputDir,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config, extra string) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
output_dir = %q
state_dir = %q
log_dir = %q

[engine]
ffmpeg_binary = %q
ffprobe_binary = %q
grace_seconds = 1

[watch]
dir = %q
settle_seconds = 1
scan_interval_seconds = 1
`,
		cfg.Paths.OutputDir,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Engine.FFmpegBinary,
		cfg.Engine.FFprobeBinary,
		cfg.Watch.Dir,
	)
	if extra != "" {
		content += "\n" + extra + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeSources(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		testsupport.WriteFile(t, path, 2048)
		paths = append(paths, path)
	}
	return paths
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
