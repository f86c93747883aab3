package settings_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"musicforge/internal/services"
	"musicforge/internal/settings"
)

func TestDefaultIsValid(t *testing.T) {
	if err := settings.Default().Validate(); err != nil {
		t.Fatalf("default settings should validate: %v", err)
	}
}

func TestValidateRejectsOutOfRangeValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*settings.Settings)
		want   string
	}{
		{"lufs too low", func(s *settings.Settings) { s.Normalization.TargetLUFS = -40 }, "target loudness"},
		{"lufs too high", func(s *settings.Settings) { s.Normalization.TargetLUFS = -7 }, "target loudness"},
		{"true peak", func(s *settings.Settings) { s.Normalization.TruePeak = -0.5 }, "true peak"},
		{"lra", func(s *settings.Settings) { s.Normalization.LRA = -1 }, "loudness range"},
		{"channels zero", func(s *settings.Settings) { s.Channels = 0 }, "channels"},
		{"channels nine", func(s *settings.Settings) { s.Channels = 9 }, "channels"},
		{"sample rate", func(s *settings.Settings) { s.SampleRate = 12345 }, "sample rate"},
		{"bit depth", func(s *settings.Settings) { s.BitDepth = 8 }, "bit depth"},
		{"mp3 quality", func(s *settings.Settings) { s.Format = settings.FormatMP3; s.Quality = "V9" }, "mp3 quality"},
		{"aac bitrate", func(s *settings.Settings) { s.Format = settings.FormatAAC; s.Quality = "32k" }, "between 64k and 320k"},
		{"aac format", func(s *settings.Settings) { s.Format = settings.FormatM4A; s.Quality = "high" }, "bitrate"},
		{"ogg quality", func(s *settings.Settings) { s.Format = settings.FormatOGG; s.Quality = "11" }, "ogg quality"},
		{"template placeholder", func(s *settings.Settings) { s.FilenameTemplate = "{album}.{ext}" }, "{album}"},
		{"template braces", func(s *settings.Settings) { s.FilenameTemplate = "{stem.{ext}" }, "unbalanced"},
		{"concurrency", func(s *settings.Settings) { s.Concurrency = 0 }, "concurrency"},
		{"mode", func(s *settings.Settings) {
			s.Normalization.Enabled = true
			s.Normalization.Mode = "three-pass"
		}, "normalization mode"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := settings.Default()
			tc.mutate(&s)
			err := s.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation marker, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestValidateBoundaryValues(t *testing.T) {
	s := settings.Default()
	s.Normalization.TargetLUFS = -36
	s.Normalization.TruePeak = -1
	s.Normalization.LRA = 0
	s.Channels = 8
	s.SampleRate = 96000
	if err := s.Validate(); err != nil {
		t.Fatalf("boundary values should validate: %v", err)
	}
	s.Normalization.TargetLUFS = -8
	s.Channels = 1
	if err := s.Validate(); err != nil {
		t.Fatalf("upper boundary should validate: %v", err)
	}
}

func TestValidateOutputDirMustBeDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	s := settings.Default()
	s.OutputDir = file
	if err := s.Validate(); err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Fatalf("expected directory error, got %v", err)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	s := settings.Default()
	s.Channels = 0
	s.SampleRate = 1
	err := s.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, fragment := range []string{"channels", "sample rate"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %q", fragment, err.Error())
		}
	}
}

func TestPresetsValidate(t *testing.T) {
	presets := settings.Presets()
	if len(presets) != 5 {
		t.Fatalf("expected 5 built-in presets, got %d", len(presets))
	}
	for _, p := range presets {
		s := p.Apply(settings.Default())
		if err := s.Validate(); err != nil {
			t.Fatalf("preset %q does not validate: %v", p.Name, err)
		}
	}
}

func TestLookupPreset(t *testing.T) {
	p, ok := settings.LookupPreset("streaming wav 48k/24b")
	if !ok {
		t.Fatal("expected case-insensitive lookup to succeed")
	}
	s := p.Apply(settings.Default())
	if s.BitDepth != 24 || !s.TwoPass() {
		t.Fatalf("unexpected preset settings: %+v", s)
	}
	if _, ok := settings.LookupPreset("missing"); ok {
		t.Fatal("expected unknown preset to be absent")
	}
}

func TestExtensionAndFormats(t *testing.T) {
	if settings.Extension(settings.FormatAAC) != "m4a" || settings.Extension(settings.FormatM4A) != "m4a" {
		t.Fatal("aac formats should use the m4a extension")
	}
	if settings.Extension(settings.FormatFLAC) != "flac" {
		t.Fatal("flac extension mismatch")
	}
	if f, ok := settings.ParseFormat(" MP3 "); !ok || f != settings.FormatMP3 {
		t.Fatalf("ParseFormat = %q %v", f, ok)
	}
	if _, ok := settings.ParseFormat("wma"); ok {
		t.Fatal("wma is not an output format")
	}
}

func TestMetadataTagsAndSet(t *testing.T) {
	var m settings.Metadata
	if !m.Set("Artist", "Band") || !m.Set("title", "{stem}") {
		t.Fatal("expected known keys to be accepted")
	}
	if m.Set("bpm", "120") {
		t.Fatal("expected unknown key to be rejected")
	}
	tags := m.Tags()
	if len(tags) != 2 || tags[0].Key != "artist" || tags[1].Key != "title" {
		t.Fatalf("unexpected tags: %+v", tags)
	}
}
