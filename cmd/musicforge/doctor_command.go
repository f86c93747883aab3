package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"musicforge/internal/config"
	"musicforge/internal/engine"
	"musicforge/internal/job"
	"musicforge/internal/preflight"
	"musicforge/internal/queue"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, engine binaries, encoders, and the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return usageError(err)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			results := preflight.RunAll(cfg)
			manager := engine.NewFFmpeg(cfg.Engine.FFmpegBinary, cfg.Engine.FFprobeBinary, nil)
			if manager.Available() == nil {
				results = append(results,
					preflight.CheckEncoder(manager, "libfdk_aac", "AAC falls back to the native encoder"),
					preflight.CheckEncoder(manager, "libmp3lame", "MP3 output is unavailable"),
					preflight.CheckEncoder(manager, "libopus", "Opus output is unavailable"),
				)
			}

			for _, line := range renderSectionHeader("Environment", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, result := range results {
				fmt.Fprintln(out, renderStatusLine(result.Name, preflightKind(result), result.Detail, colorize))
			}
			if manager.Available() == nil {
				fmt.Fprintln(out, renderStatusLine("FFmpeg version", statusInfo, engine.Version(cmd.Context(), manager.Binary()), colorize))
			}
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("History", colorize) {
				fmt.Fprintln(out, line)
			}
			healthy := printHistoryHealth(cmd, cfg, colorize)

			if preflight.Failed(results) || !healthy {
				return &exitError{code: exitFailed, err: errors.New("doctor found problems")}
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "All required checks passed")
			return nil
		},
	}
}

func printHistoryHealth(cmd *cobra.Command, cfg *config.Config, colorize bool) bool {
	out := cmd.OutOrStdout()
	store, err := queue.Open(cfg)
	if err != nil {
		fmt.Fprintln(out, renderStatusLine("Database", statusError, err.Error(), colorize))
		return false
	}
	defer store.Close()

	health, err := store.CheckHealth(cmd.Context())
	if err != nil {
		fmt.Fprintln(out, renderStatusLine("Database", statusError, err.Error(), colorize))
		return false
	}
	fmt.Fprintln(out, renderStatusLine("Database", statusOK, store.Path(), colorize))
	integrity := statusOK
	detail := "ok"
	if !health.IntegrityCheck {
		integrity = statusError
		detail = "failed"
	}
	fmt.Fprintln(out, renderStatusLine("Integrity", integrity, detail, colorize))
	fmt.Fprintln(out, renderStatusLine("Jobs recorded", statusInfo, fmt.Sprintf("%d", health.TotalJobs), colorize))
	if stats, err := store.Stats(cmd.Context()); err == nil {
		for _, kind := range []job.Kind{job.KindQueued, job.KindProcessing, job.KindCompleted, job.KindSkipped, job.KindFailed} {
			if n := stats[kind]; n > 0 {
				fmt.Fprintln(out, renderStatusLine("  "+kind.String(), statusInfo, fmt.Sprintf("%d", n), colorize))
			}
		}
	}
	return health.IntegrityCheck
}
