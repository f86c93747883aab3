package command

import (
	"math"
	"strconv"
	"strings"

	"musicforge/internal/loudness"
	"musicforge/internal/media"
	"musicforge/internal/settings"
)

// Capabilities answers encoder availability questions.
type Capabilities interface {
	HasEncoder(name string) bool
}

// Request is everything a single encode needs.
type Request struct {
	File     media.FileInfo
	Settings settings.Settings
	Output   string
	// Tags are metadata pairs with placeholders already resolved.
	Tags []settings.Tag
	// Measured switches loudnorm to the corrective second pass.
	Measured *loudness.Measurement
}

// Builder produces engine argv for one engine binary.
type Builder struct {
	binary string
	caps   Capabilities
}

// NewBuilder returns a Builder for binary. A nil caps reports no optional
// encoders.
func NewBuilder(binary string, caps Capabilities) Builder {
	return Builder{binary: binary, caps: caps}
}

// Build returns the encode argv.
func (b Builder) Build(req Request) []string {
	s := req.Settings
	argv := []string{b.binary}
	if s.Overwrite {
		argv = append(argv, "-y")
	} else {
		argv = append(argv, "-n")
	}
	argv = append(argv, "-v", "error", "-hide_banner", "-i", req.File.Path)
	if s.SampleRate > 0 {
		argv = append(argv, "-ar", strconv.Itoa(s.SampleRate))
	}
	if s.Channels > 0 {
		argv = append(argv, "-ac", strconv.Itoa(s.Channels))
	}
	if filters := Filters(req.File, s, req.Measured); len(filters) > 0 {
		argv = append(argv, "-af", strings.Join(filters, ","))
	}
	for _, tag := range req.Tags {
		argv = append(argv, "-metadata", tag.Key+"="+tag.Value)
	}
	argv = append(argv, b.EncoderArgs(s)...)
	argv = append(argv, "-progress", "pipe:1", "-nostats", "-v", "error")
	if s.Extension() == "m4a" {
		argv = append(argv, "-f", "mp4")
	}
	return append(argv, req.Output)
}

// Filters returns the audio filter chain in engine order.
func Filters(file media.FileInfo, s settings.Settings, measured *loudness.Measurement) []string {
	var filters []string
	if n := s.Normalization; n.Enabled {
		base := "loudnorm=I=" + formatFloat(n.TargetLUFS) +
			":TP=" + formatFloat(n.TruePeak) +
			":LRA=" + formatFloat(n.LRA)
		if n.Mode == settings.ModeTwoPass && measured != nil {
			filters = append(filters, base+
				":measured_I="+formatFloat(measured.InputI)+
				":measured_TP="+formatFloat(measured.InputTP)+
				":measured_LRA="+formatFloat(measured.InputLRA)+
				":measured_thresh="+formatFloat(measured.InputThresh)+
				":offset="+formatFloat(measured.TargetOffset)+
				":linear=true:print_format=summary")
		} else {
			filters = append(filters, base+":print_format=summary")
		}
	}
	if s.FadeIn > 0 {
		filters = append(filters, "afade=t=in:st=0:d="+formatFloat(s.FadeIn))
	}
	if s.FadeOut > 0 && file.Duration > 0 {
		start := math.Round((file.Duration-s.FadeOut)*1000) / 1000
		if start < 0 {
			start = 0
		}
		filters = append(filters, "afade=t=out:st="+formatFloat(start)+":d="+formatFloat(s.FadeOut))
	}
	return filters
}

// EncoderArgs maps the output format to codec arguments. Quality strings the
// format does not understand fall back to the format default.
func (b Builder) EncoderArgs(s settings.Settings) []string {
	switch s.Format {
	case settings.FormatWAV:
		codec := "pcm_s16le"
		switch s.BitDepth {
		case 24:
			codec = "pcm_s24le"
		case 32:
			codec = "pcm_s32le"
		}
		return []string{"-c:a", codec}
	case settings.FormatFLAC:
		return []string{"-c:a", "flac"}
	case settings.FormatAAC, settings.FormatM4A:
		bitrate := strings.TrimSpace(s.Quality)
		if !strings.HasSuffix(strings.ToLower(bitrate), "k") {
			bitrate = "256k"
		}
		codec := "aac"
		if b.caps != nil && b.caps.HasEncoder("libfdk_aac") {
			codec = "libfdk_aac"
		}
		return []string{"-c:a", codec, "-b:a", bitrate}
	case settings.FormatMP3:
		return []string{"-c:a", "libmp3lame", "-qscale:a", mp3Scale(s.Quality)}
	case settings.FormatOGG:
		return []string{"-c:a", "libvorbis", "-qscale:a", vorbisScale(s.Quality)}
	case settings.FormatOpus:
		args := []string{"-c:a", "libopus", "-b:a", "128k"}
		if s.SampleRate <= 0 {
			args = append(args, "-ar", "48000")
		}
		return args
	default:
		return nil
	}
}

func mp3Scale(quality string) string {
	switch strings.ToUpper(strings.TrimSpace(quality)) {
	case "V0":
		return "0"
	case "V1":
		return "1"
	case "V3":
		return "3"
	case "V4":
		return "4"
	default:
		return "2"
	}
}

func vorbisScale(quality string) string {
	q, err := strconv.ParseFloat(strings.TrimSpace(quality), 64)
	if err != nil {
		q = 6
	}
	if q < 0 {
		q = 0
	}
	if q > 10 {
		q = 10
	}
	return formatFloat(q)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
