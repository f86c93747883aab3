package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"musicforge/internal/deps"
	"musicforge/internal/engine"
	"musicforge/internal/fileutil"
	"musicforge/internal/loudness"
	"musicforge/internal/media"
	"musicforge/internal/media/ffprobe"
	"musicforge/internal/settings"
)

// probeReport is one inspected source.
type probeReport struct {
	File       media.FileInfo        `json:"file"`
	Codec      string                `json:"codec,omitempty"`
	SampleRate int                   `json:"sample_rate,omitempty"`
	Channels   int                   `json:"channels,omitempty"`
	BitRate    int64                 `json:"bit_rate,omitempty"`
	Artist     string                `json:"artist,omitempty"`
	Title      string                `json:"title,omitempty"`
	Loudness   *loudness.Measurement `json:"loudness,omitempty"`
	Error      string                `json:"error,omitempty"`
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var measure bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "probe <file|dir>...",
		Short: "Inspect audio sources with ffprobe",
		Args:  requireInputs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return usageError(err)
			}
			paths, err := fileutil.CollectAudioPaths(args)
			if err != nil {
				return usageError(err)
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			manager := engine.NewFFmpeg(cfg.Engine.FFmpegBinary, cfg.Engine.FFprobeBinary, logger)
			var measurer *loudness.Measurer
			if measure {
				if err := manager.Available(); err != nil {
					return err
				}
				grace := time.Duration(cfg.Engine.GraceSeconds) * time.Second
				measurer = loudness.NewMeasurer(engine.NewRunner(grace, logger), manager, logger)
			}
			s, err := cfg.Settings("")
			if err != nil {
				return usageError(err)
			}
			_, probeErr := deps.ResolveBinary(manager.ProbeBinary())

			reports := make([]probeReport, 0, len(paths))
			for _, path := range paths {
				entry := probeReport{File: media.FileInfo{Path: path}}
				file, err := media.Describe(cmd.Context(), path, manager)
				if err != nil {
					entry.Error = err.Error()
					reports = append(reports, entry)
					continue
				}
				entry.File = file
				if probeErr == nil {
					fillStreamInfo(cmd, manager.ProbeBinary(), &entry)
				}
				if measurer != nil {
					measured, err := measurer.Measure(cmd.Context(), file, measurementSettings(s))
					if err != nil {
						entry.Error = err.Error()
					}
					entry.Loudness = measured
				}
				reports = append(reports, entry)
			}

			if jsonOutput {
				return writeJSON(cmd, reports)
			}
			printProbeReports(cmd.OutOrStdout(), reports, probeErr == nil)
			return nil
		},
	}
	cmd.Flags().BoolVar(&measure, "measure", false, "Also measure EBU R128 loudness with a loudnorm analysis pass")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit reports as JSON")
	return cmd
}

// measurementSettings forces the measurement targets to the configured
// normalization values even when normalization is disabled.
func measurementSettings(s settings.Settings) settings.Settings {
	s.Normalization.Enabled = true
	s.Normalization.Mode = settings.ModeTwoPass
	return s
}

func fillStreamInfo(cmd *cobra.Command, binary string, entry *probeReport) {
	result, err := ffprobe.Inspect(cmd.Context(), binary, entry.File.Path)
	if err != nil {
		entry.Error = err.Error()
		return
	}
	if stream, ok := result.PrimaryAudio(); ok {
		entry.Codec = stream.CodecName
		entry.SampleRate = stream.SampleRateHz()
		entry.Channels = stream.Channels
	}
	entry.BitRate = result.BitRate()
	entry.Artist = result.Tag("artist")
	entry.Title = result.Tag("title")
}

func printProbeReports(out io.Writer, reports []probeReport, probed bool) {
	headers := []string{"File", "Format", "Size (MB)", "Duration (s)"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight}
	if probed {
		headers = append(headers, "Codec", "Rate", "Ch", "Title")
		aligns = append(aligns, alignLeft, alignRight, alignRight, alignLeft)
	}
	headers = append(headers, "LUFS", "True Peak", "Note")
	aligns = append(aligns, alignRight, alignRight, alignLeft)

	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		duration := ""
		if r.File.Duration > 0 {
			duration = fmt.Sprintf("%.1f", r.File.Duration)
		}
		row := []string{
			filepath.Base(r.File.Path),
			strings.ToUpper(r.File.Format),
			fmt.Sprintf("%.1f", r.File.SizeMB()),
			duration,
		}
		if probed {
			rate := ""
			if r.SampleRate > 0 {
				rate = fmt.Sprintf("%d", r.SampleRate)
			}
			channels := ""
			if r.Channels > 0 {
				channels = fmt.Sprintf("%d", r.Channels)
			}
			row = append(row, r.Codec, rate, channels, r.Title)
		}
		lufs, peak := "", ""
		if r.Loudness != nil {
			lufs = fmt.Sprintf("%.1f", r.Loudness.InputI)
			peak = fmt.Sprintf("%.1f", r.Loudness.InputTP)
		}
		rows = append(rows, append(row, lufs, peak, r.Error))
	}
	fmt.Fprintln(out, renderTable(tableSpec{Headers: headers, Rows: rows, Aligns: aligns, MaxWidth: 50}))
	if !probed {
		fmt.Fprintln(out, "ffprobe not found; stream details and durations are unavailable")
	}
}
