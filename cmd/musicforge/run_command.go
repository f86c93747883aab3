package main

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"musicforge/internal/command"
	"musicforge/internal/config"
	"musicforge/internal/fileutil"
	"musicforge/internal/job"
	"musicforge/internal/logging"
	"musicforge/internal/loudness"
	"musicforge/internal/media"
	"musicforge/internal/queue"
	"musicforge/internal/report"
	"musicforge/internal/settings"
	"musicforge/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags batchFlags
	var dryRun bool
	var reportPath string

	cmd := &cobra.Command{
		Use:   "run <file|dir>...",
		Short: "Transcode a batch of audio files",
		Long: "Transcode every audio file given on the command line, or found " +
			"under the given directories, using the configured settings, an " +
			"optional preset, and flag overrides.",
		Args: requireInputs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return usageError(err)
			}
			s, err := flags.settings(cmd, cfg)
			if err != nil {
				return err
			}
			paths, err := fileutil.CollectAudioPaths(args)
			if err != nil {
				return usageError(err)
			}
			if len(paths) == 0 {
				return usageError(errors.New("no audio files found in the given inputs"))
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return runBatch(cmd, cfg, logger, s, paths, dryRun, reportPath)
		},
	}

	flags.bind(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print planned outputs and engine commands without processing")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write a CSV report of the batch to this path")
	return cmd
}

func runBatch(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, s settings.Settings, paths []string, dryRun bool, reportPath string) error {
	signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *queue.Store
	if !dryRun {
		store = openHistory(signalCtx, cfg, logger)
	}
	rt := newRuntime(cfg, store, logger)
	defer rt.close()

	if err := rt.manager.Available(); err != nil {
		return err
	}

	files := make([]media.FileInfo, 0, len(paths))
	for _, path := range paths {
		file, err := media.Describe(signalCtx, path, rt.manager)
		if err != nil {
			// The job reports the problem; the rest of the batch still runs.
			logging.WarnWithContext(logger, "source could not be described", "source_describe_failed",
				logging.String("source", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the file still exists and is readable"),
				logging.String(logging.FieldImpact, "the job for this file fails"),
			)
			file = media.FileInfo{Path: path, Format: media.FormatOf(path)}
		}
		files = append(files, file)
	}

	out := cmd.OutOrStdout()
	if dryRun {
		printPlan(out, rt.manager.Binary(), command.NewBuilder(rt.manager.Binary(), rt.manager), files, s)
		return nil
	}

	rt.serveMetrics(signalCtx, cfg, logger)
	go func() {
		<-signalCtx.Done()
		rt.dispatcher.RequestStop()
	}()

	started := time.Now()
	updates, err := rt.dispatcher.Submit(cmd.Context(), files, s)
	if err != nil {
		return err
	}
	logger.Info("batch submitted",
		logging.String(logging.FieldEventType, "batch_submit"),
		logging.Int("files", len(files)),
		logging.String("format", string(s.Format)),
		logging.Int("workers", workflow.EffectiveCap(s)),
	)

	view := newProgressView(out, len(files))
	final := make(map[int64]job.State, len(files))
	for st := range updates {
		view.update(st)
		if st.Terminal() {
			final[st.ID] = st
		}
	}
	view.finish()

	states := make([]job.State, 0, len(final))
	for _, st := range final {
		states = append(states, st)
	}
	slices.SortFunc(states, func(a, b job.State) int { return cmp.Compare(a.Index, b.Index) })

	summary := workflow.Summarize(states)
	summary.Duration = time.Since(started)
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderJobTable(states))
	fmt.Fprintln(out, summaryLine(summary))

	if strings.TrimSpace(reportPath) != "" {
		if err := report.WriteFile(reportPath, states); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(out, "Report written to %s\n", reportPath)
	}

	switch {
	case rt.dispatcher.Stopped() && summary.Cancelled > 0:
		return &exitError{code: exitFailed, err: fmt.Errorf("batch interrupted; %d job(s) cancelled", summary.Cancelled)}
	case !summary.OK():
		return &exitError{code: exitFailed, err: fmt.Errorf("%d of %d job(s) failed", summary.Failed, summary.Total)}
	}
	return nil
}

func requireInputs(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		return usageError(errors.New("at least one input file or directory is required"))
	}
	return nil
}

func summaryLine(s workflow.Summary) string {
	return fmt.Sprintf("%d completed, %d skipped, %d failed in %s",
		s.Completed, s.Skipped, s.Failed, s.Duration.Round(100*time.Millisecond))
}

func renderJobTable(states []job.State) string {
	rows := make([][]string, 0, len(states))
	for _, st := range states {
		detail := st.Output
		if st.Status.Kind != job.KindCompleted {
			detail = st.Status.Message
		}
		loudnessValue := ""
		if st.Measured != nil {
			loudnessValue = fmt.Sprintf("%.1f", st.Measured.InputI)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", st.Index),
			filepath.Base(st.File.Path),
			strings.ToUpper(st.Status.Kind.String()),
			detail,
			loudnessValue,
			fmt.Sprintf("%d", len(st.Warnings)),
		})
	}
	return renderTable(tableSpec{
		Headers:  []string{"#", "File", "Status", "Output / Reason", "Input LUFS", "Warnings"},
		Rows:     rows,
		Aligns:   []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
		MaxWidth: 60,
	})
}

// printPlan shows what a batch would do. Outputs are resolved against the
// disk and each other so collisions appear as they would at run time.
func printPlan(out io.Writer, binary string, builder command.Builder, files []media.FileInfo, s settings.Settings) {
	fmt.Fprintf(out, "Dry run: %d file(s), %s, %d worker(s)\n", len(files), s.Format, workflow.EffectiveCap(s))
	reservations := job.NewReservations()
	for i, file := range files {
		index := i + 1
		target := job.OutputPath(file, s, index)
		fmt.Fprintf(out, "\n[%d] %s\n", index, file.Path)
		output, err := job.Guard(file.Path, target, s, reservations)
		if err != nil {
			fmt.Fprintf(out, "    %s\n", job.Classify(err, "").String())
			continue
		}
		fmt.Fprintf(out, "    output:  %s\n", output)
		argv := builder.Build(command.Request{
			File:     file,
			Settings: s,
			Output:   output,
			Tags:     job.Tags(file, s, index),
		})
		if s.TwoPass() {
			fmt.Fprintf(out, "    measure: %s\n", strings.Join(loudness.Args(binary, file.Path, s.Normalization), " "))
			fmt.Fprintln(out, "    encode:  measured values replace the one-pass loudnorm filter below")
		}
		fmt.Fprintf(out, "    encode:  %s\n", strings.Join(argv, " "))
	}
}
