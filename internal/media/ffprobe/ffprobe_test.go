package ffprobe

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio", CodecName: "flac", SampleRate: "44100", Tags: map[string]string{"TITLE": "Stream"}},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
			Tags:     map[string]string{"ARTIST": "Someone"},
		},
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	primary, ok := result.PrimaryAudio()
	if !ok || primary.CodecName != "flac" {
		t.Fatalf("unexpected primary audio: %+v", primary)
	}
	if primary.SampleRateHz() != 44100 {
		t.Fatalf("unexpected sample rate: %d", primary.SampleRateHz())
	}
	if result.Tag("artist") != "Someone" {
		t.Fatalf("expected container tag, got %q", result.Tag("artist"))
	}
	if result.Tag("title") != "Stream" {
		t.Fatalf("expected stream tag fallback, got %q", result.Tag("title"))
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
	if _, ok := result.PrimaryAudio(); ok {
		t.Fatal("expected no primary audio stream")
	}
}

func writeStub(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestInspectParsesJSON(t *testing.T) {
	stub := writeStub(t, `echo '{"streams":[{"index":0,"codec_type":"audio","codec_name":"mp3","channels":2}],"format":{"duration":"3.5"}}'`)
	result, err := Inspect(context.Background(), stub, "/music/track.mp3")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.DurationSeconds() != 3.5 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if len(result.RawJSON()) == 0 {
		t.Fatal("expected raw JSON to be retained")
	}
}

func TestInspectReportsFailure(t *testing.T) {
	stub := writeStub(t, `echo "no such file" >&2; exit 1`)
	if _, err := Inspect(context.Background(), stub, "/missing.wav"); err == nil {
		t.Fatal("expected error from failing ffprobe")
	}
	if _, err := Inspect(context.Background(), stub, "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestDuration(t *testing.T) {
	stub := writeStub(t, `echo "12.250000"`)
	got, err := Duration(context.Background(), stub, "/music/a.wav")
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if got != 12.25 {
		t.Fatalf("expected 12.25, got %v", got)
	}

	stub = writeStub(t, `echo "N/A"`)
	got, err = Duration(context.Background(), stub, "/music/a.wav")
	if err != nil || got != 0 {
		t.Fatalf("expected 0 without error for unknown duration, got %v %v", got, err)
	}
}
