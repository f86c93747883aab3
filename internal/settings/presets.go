package settings

import "strings"

// Preset is a named, built-in starting point for a batch.
type Preset struct {
	Name        string
	Description string
	apply       func(*Settings)
}

// Apply returns base with the preset's overrides.
func (p Preset) Apply(base Settings) Settings {
	if p.apply != nil {
		p.apply(&base)
	}
	return base
}

func loudness(s *Settings, mode NormalizeMode) {
	s.Normalization = Normalization{
		Enabled:    true,
		Mode:       mode,
		TargetLUFS: DefaultTargetLUFS,
		TruePeak:   DefaultTruePeak,
		LRA:        DefaultLRA,
	}
}

var builtinPresets = []Preset{
	{
		Name:        "Streaming WAV 48k/24b",
		Description: "24-bit 48 kHz WAV, two-pass loudness to -16 LUFS",
		apply: func(s *Settings) {
			s.Format = FormatWAV
			s.BitDepth = 24
			s.SampleRate = 48000
			s.Channels = 2
			loudness(s, ModeTwoPass)
		},
	},
	{
		Name:        "Podcast MP3 (V2)",
		Description: "VBR V2 MP3, one-pass loudness to -16 LUFS",
		apply: func(s *Settings) {
			s.Format = FormatMP3
			s.Quality = "V2"
			s.SampleRate = 48000
			s.Channels = 2
			loudness(s, ModeOnePass)
		},
	},
	{
		Name:        "Hi-Fi FLAC (no normalize)",
		Description: "Lossless FLAC at 48 kHz, levels untouched",
		apply: func(s *Settings) {
			s.Format = FormatFLAC
			s.SampleRate = 48000
			s.Channels = 2
			s.Normalization.Enabled = false
		},
	},
	{
		Name:        "Mobile AAC 256k",
		Description: "256k AAC in M4A at 44.1 kHz",
		apply: func(s *Settings) {
			s.Format = FormatM4A
			s.Quality = "256k"
			s.SampleRate = 44100
			s.Channels = 2
			s.Normalization.Enabled = false
		},
	},
	{
		Name:        "OGG Vorbis Q6",
		Description: "Vorbis quality 6, one-pass loudness to -16 LUFS",
		apply: func(s *Settings) {
			s.Format = FormatOGG
			s.Quality = "6"
			s.SampleRate = 48000
			s.Channels = 2
			loudness(s, ModeOnePass)
		},
	},
}

// Presets returns the built-in presets in display order.
func Presets() []Preset {
	out := make([]Preset, len(builtinPresets))
	copy(out, builtinPresets)
	return out
}

// LookupPreset finds a built-in preset by case-insensitive name.
func LookupPreset(name string) (Preset, bool) {
	name = strings.TrimSpace(name)
	for _, p := range builtinPresets {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Preset{}, false
}
