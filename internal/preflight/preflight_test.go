package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"musicforge/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckOutputDirectory_Missing(t *testing.T) {
	result := CheckOutputDirectory("out", filepath.Join(t.TempDir(), "a", "b"))
	if !result.Passed || !strings.Contains(result.Detail, "will be created") {
		t.Fatalf("expected creatable output dir, got %+v", result)
	}
}

type encoders map[string]bool

func (e encoders) HasEncoder(name string) bool { return e[name] }

func TestCheckEncoder(t *testing.T) {
	if r := CheckEncoder(encoders{"libfdk_aac": true}, "libfdk_aac", "falls back to aac"); !r.Passed || !r.Optional {
		t.Fatalf("expected available optional encoder, got %+v", r)
	}
	if r := CheckEncoder(encoders{}, "libfdk_aac", "falls back to aac"); r.Passed || !strings.Contains(r.Detail, "falls back") {
		t.Fatalf("expected missing encoder, got %+v", r)
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFakeEngine("exit 0"), testsupport.WithWatchDir())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	cfg.Engine.FFprobeBinary = filepath.Join(testsupport.BaseDir(cfg), "missing-ffprobe")

	results := RunAll(cfg)
	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Name] = r
	}
	for _, name := range []string{"State directory", "Output directory", "Watch directory", "FFmpeg"} {
		if !byName[name].Passed {
			t.Fatalf("%s: expected pass, got %+v", name, byName[name])
		}
	}
	if probe := byName["FFprobe"]; probe.Passed || !probe.Optional {
		t.Fatalf("expected optional ffprobe failure, got %+v", probe)
	}
	if Failed(results) {
		t.Fatalf("optional failures must not fail preflight")
	}

	cfg.Engine.FFmpegBinary = filepath.Join(testsupport.BaseDir(cfg), "missing-ffmpeg")
	if !Failed(RunAll(cfg)) {
		t.Fatalf("missing ffmpeg must fail preflight")
	}
}
