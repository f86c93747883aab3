package command

import (
	"slices"
	"strings"
	"testing"

	"musicforge/internal/loudness"
	"musicforge/internal/media"
	"musicforge/internal/settings"
)

type caps map[string]bool

func (c caps) HasEncoder(name string) bool { return c[name] }

func TestBuildWAVDefaults(t *testing.T) {
	s := settings.Default()
	req := Request{
		File:     media.FileInfo{Path: "/in/a.flac", Duration: 10},
		Settings: s,
		Output:   "/out/a.wav",
		Tags:     []settings.Tag{{Key: "title", Value: "a"}},
	}
	got := strings.Join(NewBuilder("ffmpeg", nil).Build(req), " ")
	want := "ffmpeg -n -v error -hide_banner -i /in/a.flac -ar 48000 -ac 2 -metadata title=a -c:a pcm_s16le -progress pipe:1 -nostats -v error /out/a.wav"
	if got != want {
		t.Fatalf("unexpected argv:\n got %s\nwant %s", got, want)
	}
}

func TestBuildUsesMeasuredValuesVerbatim(t *testing.T) {
	s := settings.Default()
	s.Overwrite = true
	s.Normalization = settings.Normalization{Enabled: true, Mode: settings.ModeTwoPass, TargetLUFS: -16, TruePeak: -1.5, LRA: 11}
	measured, err := loudness.Parse(`{"input_i":-20.1,"input_tp":-3.2,"input_lra":5.0,"input_thresh":-30.1,"target_offset":0.4}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	argv := NewBuilder("ffmpeg", nil).Build(Request{
		File:     media.FileInfo{Path: "/in/a.wav"},
		Settings: s,
		Output:   "/out/a.wav",
		Measured: measured,
	})
	if argv[1] != "-y" {
		t.Fatalf("expected -y with overwrite, got %q", argv[1])
	}
	idx := slices.Index(argv, "-af")
	if idx < 0 {
		t.Fatalf("missing -af in %v", argv)
	}
	want := "loudnorm=I=-16:TP=-1.5:LRA=11:measured_I=-20.1:measured_TP=-3.2:measured_LRA=5:measured_thresh=-30.1:offset=0.4:linear=true:print_format=summary"
	if argv[idx+1] != want {
		t.Fatalf("unexpected corrective filter:\n got %s\nwant %s", argv[idx+1], want)
	}
}

func TestFiltersOrder(t *testing.T) {
	s := settings.Default()
	s.Normalization.Enabled = true
	s.FadeIn = 1.5
	s.FadeOut = 3
	got := Filters(media.FileInfo{Duration: 200.1}, s, nil)
	want := []string{
		"loudnorm=I=-16:TP=-1.5:LRA=11:print_format=summary",
		"afade=t=in:st=0:d=1.5",
		"afade=t=out:st=197.1:d=3",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected filters:\n got %v\nwant %v", got, want)
	}
}

func TestFiltersFadeOutNeedsDuration(t *testing.T) {
	s := settings.Default()
	s.FadeOut = 2
	if got := Filters(media.FileInfo{}, s, nil); len(got) != 0 {
		t.Fatalf("expected no fade-out without a duration, got %v", got)
	}
	got := Filters(media.FileInfo{Duration: 1}, s, nil)
	if len(got) != 1 || got[0] != "afade=t=out:st=0:d=2" {
		t.Fatalf("fade-out start should clamp to zero, got %v", got)
	}
}

func TestFiltersTwoPassWithoutMeasurementFallsBackToOnePass(t *testing.T) {
	s := settings.Default()
	s.Normalization.Enabled = true
	s.Normalization.Mode = settings.ModeTwoPass
	got := Filters(media.FileInfo{}, s, nil)
	if len(got) != 1 || strings.Contains(got[0], "measured_I") {
		t.Fatalf("expected one-pass filter, got %v", got)
	}
}

func TestEncoderArgs(t *testing.T) {
	cases := []struct {
		name    string
		format  settings.Format
		quality string
		depth   int
		rate    int
		caps    caps
		want    string
	}{
		{"wav 16", settings.FormatWAV, "", 16, 48000, nil, "-c:a pcm_s16le"},
		{"wav 24", settings.FormatWAV, "", 24, 48000, nil, "-c:a pcm_s24le"},
		{"wav 32", settings.FormatWAV, "", 32, 48000, nil, "-c:a pcm_s32le"},
		{"wav odd depth", settings.FormatWAV, "", 20, 48000, nil, "-c:a pcm_s16le"},
		{"flac", settings.FormatFLAC, "", 0, 48000, nil, "-c:a flac"},
		{"aac builtin", settings.FormatAAC, "192k", 0, 48000, nil, "-c:a aac -b:a 192k"},
		{"m4a fdk", settings.FormatM4A, "320k", 0, 48000, caps{"libfdk_aac": true}, "-c:a libfdk_aac -b:a 320k"},
		{"aac bad quality", settings.FormatAAC, "high", 0, 48000, nil, "-c:a aac -b:a 256k"},
		{"mp3 v0", settings.FormatMP3, "v0", 0, 48000, nil, "-c:a libmp3lame -qscale:a 0"},
		{"mp3 default", settings.FormatMP3, "", 0, 48000, nil, "-c:a libmp3lame -qscale:a 2"},
		{"mp3 unknown", settings.FormatMP3, "320k", 0, 48000, nil, "-c:a libmp3lame -qscale:a 2"},
		{"ogg", settings.FormatOGG, "8", 0, 48000, nil, "-c:a libvorbis -qscale:a 8"},
		{"ogg clamp", settings.FormatOGG, "14", 0, 48000, nil, "-c:a libvorbis -qscale:a 10"},
		{"ogg default", settings.FormatOGG, "best", 0, 48000, nil, "-c:a libvorbis -qscale:a 6"},
		{"opus", settings.FormatOpus, "", 0, 44100, nil, "-c:a libopus -b:a 128k"},
		{"opus no rate", settings.FormatOpus, "", 0, 0, nil, "-c:a libopus -b:a 128k -ar 48000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := settings.Default()
			s.Format = tc.format
			s.Quality = tc.quality
			s.BitDepth = tc.depth
			s.SampleRate = tc.rate
			var c Capabilities
			if tc.caps != nil {
				c = tc.caps
			}
			got := strings.Join(NewBuilder("ffmpeg", c).EncoderArgs(s), " ")
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestBuildM4AForcesMP4Muxer(t *testing.T) {
	s := settings.Default()
	s.Format = settings.FormatAAC
	argv := NewBuilder("ffmpeg", nil).Build(Request{File: media.FileInfo{Path: "in.wav"}, Settings: s, Output: "out.m4a"})
	n := len(argv)
	if argv[n-3] != "-f" || argv[n-2] != "mp4" || argv[n-1] != "out.m4a" {
		t.Fatalf("expected -f mp4 before the output, got %v", argv[n-6:])
	}
}
