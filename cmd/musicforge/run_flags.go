package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"musicforge/internal/config"
	"musicforge/internal/settings"
)

// batchFlags are the processing overrides shared by run and watch. Only
// flags the user actually set replace configured values.
type batchFlags struct {
	preset     string
	format     string
	quality    string
	bitDepth   int
	sampleRate int
	channels   int
	normalize  bool
	mode       string
	lufs       float64
	truePeak   float64
	lra        float64
	fadeIn     float64
	fadeOut    float64
	overwrite  bool
	autoRename bool
	template   string
	workers    int
	outputDir  string
	meta       []string
}

func (f *batchFlags) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.preset, "preset", "p", "", "Start from a named preset (see `musicforge presets`)")
	flags.StringVarP(&f.format, "format", "f", "", "Output format: wav, mp3, flac, aac, m4a, ogg, opus")
	flags.StringVarP(&f.quality, "quality", "q", "", "Codec quality: V0-V9 or a bitrate for mp3, a bitrate for aac/opus, 0-10 for ogg")
	flags.IntVar(&f.bitDepth, "bit-depth", 0, "WAV/FLAC bit depth (16, 24, 32)")
	flags.IntVar(&f.sampleRate, "sample-rate", 0, "Output sample rate in Hz")
	flags.IntVar(&f.channels, "channels", 0, "Output channel count")
	flags.BoolVar(&f.normalize, "normalize", false, "Enable EBU R128 loudness normalization")
	flags.StringVar(&f.mode, "mode", "", "Normalization mode: one-pass or two-pass")
	flags.Float64Var(&f.lufs, "lufs", 0, "Integrated loudness target in LUFS")
	flags.Float64Var(&f.truePeak, "true-peak", 0, "True peak ceiling in dBTP")
	flags.Float64Var(&f.lra, "lra", 0, "Loudness range target in LU")
	flags.Float64Var(&f.fadeIn, "fade-in", 0, "Fade-in length in seconds")
	flags.Float64Var(&f.fadeOut, "fade-out", 0, "Fade-out length in seconds")
	flags.BoolVar(&f.overwrite, "overwrite", false, "Replace existing outputs")
	flags.BoolVar(&f.autoRename, "auto-rename", false, "Pick a free name instead of skipping existing outputs")
	flags.StringVar(&f.template, "template", "", "Output filename template, e.g. {index}-{stem}")
	flags.IntVarP(&f.workers, "concurrency", "j", 0, "Maximum jobs in flight")
	flags.StringVarP(&f.outputDir, "output", "o", "", "Output directory")
	flags.StringArrayVar(&f.meta, "meta", nil, "Metadata template override as key=value (repeatable)")
}

// settings resolves the preset and applies every changed flag. The result
// is validated so a bad combination exits before any work starts.
func (f *batchFlags) settings(cmd *cobra.Command, cfg *config.Config) (settings.Settings, error) {
	s, err := cfg.Settings(f.preset)
	if err != nil {
		return settings.Settings{}, usageError(err)
	}
	changed := cmd.Flags().Changed

	if changed("format") {
		format, ok := settings.ParseFormat(f.format)
		if !ok {
			return settings.Settings{}, usageError(fmt.Errorf("unsupported format %q", f.format))
		}
		s.Format = format
	}
	if changed("quality") {
		s.Quality = strings.TrimSpace(f.quality)
	}
	if changed("bit-depth") {
		s.BitDepth = f.bitDepth
	}
	if changed("sample-rate") {
		s.SampleRate = f.sampleRate
	}
	if changed("channels") {
		s.Channels = f.channels
	}
	if changed("normalize") {
		s.Normalization.Enabled = f.normalize
	}
	if changed("mode") {
		s.Normalization.Mode = settings.NormalizeMode(strings.ToLower(strings.TrimSpace(f.mode)))
	}
	if changed("lufs") {
		s.Normalization.TargetLUFS = f.lufs
	}
	if changed("true-peak") {
		s.Normalization.TruePeak = f.truePeak
	}
	if changed("lra") {
		s.Normalization.LRA = f.lra
	}
	if changed("fade-in") {
		s.FadeIn = f.fadeIn
	}
	if changed("fade-out") {
		s.FadeOut = f.fadeOut
	}
	if changed("overwrite") {
		s.Overwrite = f.overwrite
	}
	if changed("auto-rename") {
		s.AutoRename = f.autoRename
	}
	if changed("template") {
		s.FilenameTemplate = f.template
	}
	if changed("concurrency") {
		s.Concurrency = f.workers
	}
	if changed("output") {
		dir, err := config.ExpandPath(strings.TrimSpace(f.outputDir))
		if err != nil {
			return settings.Settings{}, usageError(err)
		}
		s.OutputDir = dir
	}
	for _, pair := range f.meta {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return settings.Settings{}, usageError(fmt.Errorf("metadata override %q must be key=value", pair))
		}
		if !s.Metadata.Set(key, value) {
			return settings.Settings{}, usageError(fmt.Errorf("unknown metadata key %q", key))
		}
	}

	if err := s.Validate(); err != nil {
		return settings.Settings{}, err
	}
	return s, nil
}
