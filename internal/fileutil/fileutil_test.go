package fileutil

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func write(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCollectAudioPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"b.flac",
		"a.WAV",
		"notes.txt",
		"nested/c.mp3",
		".hidden/d.wav",
		".e.part.wav",
		"nested/deeper/f.opus",
	} {
		write(t, filepath.Join(dir, name))
	}
	loose := filepath.Join(t.TempDir(), "loose.bin")
	write(t, loose)

	got, err := CollectAudioPaths([]string{dir, loose, filepath.Join(dir, "a.WAV")})
	if err != nil {
		t.Fatalf("CollectAudioPaths: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.WAV"),
		filepath.Join(dir, "b.flac"),
		filepath.Join(dir, "nested/c.mp3"),
		filepath.Join(dir, "nested/deeper/f.opus"),
		loose,
	}
	if loose < dir {
		want = append([]string{loose}, want[:4]...)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("paths = %v, want %v", got, want)
	}
}

func TestCollectAudioPathsMissingInput(t *testing.T) {
	if _, err := CollectAudioPaths([]string{filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatal("expected error for missing input")
	}
}

func TestPartialPath(t *testing.T) {
	got := PartialPath("/out/My Song.m4a")
	if got != "/out/.My Song.part.m4a" {
		t.Fatalf("PartialPath = %q", got)
	}
	if !IsPartial(got) {
		t.Fatal("expected partial path to be recognised")
	}
	if IsPartial("/out/My Song.m4a") || IsPartial("/out/.hidden.m4a") {
		t.Fatal("regular files must not be treated as partial")
	}
}

func TestCommitReplacesDestination(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "out.wav")
	partial := PartialPath(final)
	write(t, final)
	if err := os.WriteFile(partial, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Commit(partial, final); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, err := os.ReadFile(final)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Fatalf("final content = %q", got)
	}
	if _, err := os.Stat(partial); !os.IsNotExist(err) {
		t.Fatalf("partial file should be gone, stat err = %v", err)
	}
}

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	content := make([]byte, 100*1024)
	for i := range content {
		content[i] = byte(i % 251)
	}
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(content) {
		t.Fatalf("size mismatch: got %d, want %d", len(got), len(content))
	}
}
