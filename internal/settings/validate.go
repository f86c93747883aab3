package settings

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"musicforge/internal/services"
	"musicforge/internal/textutil"
)

const (
	MinTargetLUFS = -36.0
	MaxTargetLUFS = -8.0
	MaxTruePeak   = -1.0
	MinChannels   = 1
	MaxChannels   = 8
)

// SampleRates lists the accepted output sample rates in Hz.
var SampleRates = []int{22050, 32000, 44100, 48000, 88200, 96000}

// FilenamePlaceholders lists the names a filename template may reference.
var FilenamePlaceholders = []string{"stem", "ext", "index", "artist", "title", "pretty"}

var mp3Qualities = []string{"V0", "V1", "V2", "V3", "V4"}

// Validate checks every invariant and returns all violations joined into a
// single validation error.
func (s Settings) Validate() error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if _, ok := ParseFormat(string(s.Format)); !ok {
		add("format %q is not supported", s.Format)
	}

	n := s.Normalization
	if n.TargetLUFS < MinTargetLUFS || n.TargetLUFS > MaxTargetLUFS {
		add("target loudness must be between %g and %g LUFS, got %g", MinTargetLUFS, MaxTargetLUFS, n.TargetLUFS)
	}
	if n.TruePeak > MaxTruePeak {
		add("true peak must be <= %g dBTP, got %g", MaxTruePeak, n.TruePeak)
	}
	if n.LRA < 0 {
		add("loudness range must be >= 0 LU, got %g", n.LRA)
	}
	if n.Enabled && n.Mode != ModeOnePass && n.Mode != ModeTwoPass {
		add("normalization mode must be %q or %q, got %q", ModeOnePass, ModeTwoPass, n.Mode)
	}

	if err := validateQuality(s); err != nil {
		problems = append(problems, err)
	}

	if !slices.Contains(SampleRates, s.SampleRate) {
		add("sample rate %d is not one of %v", s.SampleRate, SampleRates)
	}
	if s.Channels < MinChannels || s.Channels > MaxChannels {
		add("channels must be between %d and %d, got %d", MinChannels, MaxChannels, s.Channels)
	}
	if s.FadeIn < 0 || s.FadeOut < 0 {
		add("fade durations must be >= 0")
	}
	if s.Concurrency < 1 {
		add("concurrency must be at least 1, got %d", s.Concurrency)
	}

	if dir := strings.TrimSpace(s.OutputDir); dir != "" {
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			add("output path %q exists and is not a directory", dir)
		}
	}

	if err := validateTemplate(s.FilenameTemplate); err != nil {
		problems = append(problems, err)
	}

	if len(problems) == 0 {
		return nil
	}
	return services.Wrap(services.ErrValidation, "settings", "validate", "invalid processing settings", errors.Join(problems...))
}

func validateQuality(s Settings) error {
	q := strings.TrimSpace(s.Quality)
	switch s.Format {
	case FormatWAV:
		if s.BitDepth != 16 && s.BitDepth != 24 && s.BitDepth != 32 {
			return fmt.Errorf("wav bit depth must be 16, 24, or 32, got %d", s.BitDepth)
		}
	case FormatMP3:
		if q != "" && !slices.Contains(mp3Qualities, strings.ToUpper(q)) {
			return fmt.Errorf("mp3 quality must be V0-V4, got %q", q)
		}
	case FormatAAC, FormatM4A:
		if q == "" {
			return nil
		}
		kbps, ok := ParseBitrate(q)
		if !ok {
			return fmt.Errorf("aac quality must be a bitrate such as 256k, got %q", q)
		}
		if kbps < 64 || kbps > 320 {
			return fmt.Errorf("aac bitrate must be between 64k and 320k, got %q", q)
		}
	case FormatOGG:
		if q == "" {
			return nil
		}
		level, err := strconv.Atoi(q)
		if err != nil || level < 0 || level > 10 {
			return fmt.Errorf("ogg quality must be an integer between 0 and 10, got %q", q)
		}
	}
	return nil
}

// ParseBitrate parses values like "256k" into kilobits per second.
func ParseBitrate(value string) (int, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if !strings.HasSuffix(value, "k") {
		return 0, false
	}
	kbps, err := strconv.Atoi(strings.TrimSuffix(value, "k"))
	if err != nil || kbps <= 0 {
		return 0, false
	}
	return kbps, true
}

func validateTemplate(template string) error {
	if strings.TrimSpace(template) == "" {
		return errors.New("filename template must not be empty")
	}
	names, ok := textutil.Placeholders(template)
	if !ok {
		return fmt.Errorf("filename template %q has unbalanced braces", template)
	}
	for _, name := range names {
		if !slices.Contains(FilenamePlaceholders, name) {
			return fmt.Errorf("invalid placeholder {%s} in filename template", name)
		}
	}
	return nil
}
