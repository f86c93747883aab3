package settings

import "strings"

// Format names an output codec family.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatFLAC Format = "flac"
	FormatAAC  Format = "aac"
	FormatM4A  Format = "m4a"
	FormatOGG  Format = "ogg"
	FormatOpus Format = "opus"
)

// Formats lists every supported output format.
var Formats = []Format{FormatWAV, FormatMP3, FormatFLAC, FormatAAC, FormatM4A, FormatOGG, FormatOpus}

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(value string) (Format, bool) {
	candidate := Format(strings.ToLower(strings.TrimSpace(value)))
	for _, f := range Formats {
		if f == candidate {
			return f, true
		}
	}
	return "", false
}

// NormalizeMode selects the loudness normalization protocol.
type NormalizeMode string

const (
	ModeOnePass NormalizeMode = "one-pass"
	ModeTwoPass NormalizeMode = "two-pass"
)

// Normalization configures EBU R128 loudness normalization.
type Normalization struct {
	Enabled    bool
	Mode       NormalizeMode
	TargetLUFS float64
	TruePeak   float64
	LRA        float64
}

// Metadata holds tag templates. Values may reference {stem}, {ext}, {index},
// {name}, {pretty}, {size_mb}, and {duration_s}.
type Metadata struct {
	Artist  string
	Title   string
	Album   string
	Year    string
	Genre   string
	Comment string
}

// Tag is one resolved metadata key/value pair.
type Tag struct {
	Key   string
	Value string
}

// Tags returns the non-empty templates in engine argument order.
func (m Metadata) Tags() []Tag {
	all := []Tag{
		{"artist", m.Artist},
		{"title", m.Title},
		{"album", m.Album},
		{"year", m.Year},
		{"genre", m.Genre},
		{"comment", m.Comment},
	}
	out := all[:0]
	for _, tag := range all {
		if strings.TrimSpace(tag.Value) != "" {
			out = append(out, tag)
		}
	}
	return out
}

// Set assigns a template by key. It reports false for unknown keys.
func (m *Metadata) Set(key, value string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "artist":
		m.Artist = value
	case "title":
		m.Title = value
	case "album":
		m.Album = value
	case "year":
		m.Year = value
	case "genre":
		m.Genre = value
	case "comment":
		m.Comment = value
	default:
		return false
	}
	return true
}

// Settings is the immutable configuration of one batch run.
type Settings struct {
	Format     Format
	Quality    string
	BitDepth   int
	SampleRate int
	Channels   int

	Normalization Normalization

	FadeIn  float64
	FadeOut float64

	Overwrite  bool
	AutoRename bool
	OutputDir  string

	Concurrency      int
	FilenameTemplate string
	Metadata         Metadata
}

const (
	DefaultFilenameTemplate = "{stem}.{ext}"
	DefaultTargetLUFS       = -16.0
	DefaultTruePeak         = -1.5
	DefaultLRA              = 11.0
)

// Default returns the baseline settings: 16-bit 48 kHz stereo WAV without
// normalization.
func Default() Settings {
	return Settings{
		Format:     FormatWAV,
		BitDepth:   16,
		SampleRate: 48000,
		Channels:   2,
		Normalization: Normalization{
			Mode:       ModeOnePass,
			TargetLUFS: DefaultTargetLUFS,
			TruePeak:   DefaultTruePeak,
			LRA:        DefaultLRA,
		},
		Concurrency:      1,
		FilenameTemplate: DefaultFilenameTemplate,
		Metadata:         Metadata{Title: "{stem}"},
	}
}

// TwoPass reports whether jobs run a measurement pass before encoding.
func (s Settings) TwoPass() bool {
	return s.Normalization.Enabled && s.Normalization.Mode == ModeTwoPass
}

// Extension returns the output file extension for the format.
func (s Settings) Extension() string {
	return Extension(s.Format)
}

// Extension maps a format to its file extension; AAC is written into an MP4
// container and therefore uses m4a.
func Extension(f Format) string {
	switch f {
	case FormatAAC, FormatM4A:
		return "m4a"
	default:
		return strings.ToLower(string(f))
	}
}
