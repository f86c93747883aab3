package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"musicforge/internal/config"
	"musicforge/internal/daemon"
	"musicforge/internal/ipc"
	"musicforge/internal/job"
	"musicforge/internal/logging"
	"musicforge/internal/preflight"
	"musicforge/internal/settings"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var flags batchFlags
	var dir string
	var recursive bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the folder watch daemon in the foreground",
		Long: "Watch a directory and transcode every audio file that appears in it. " +
			"The daemon answers `musicforge status` and `musicforge stop` on its control socket.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return usageError(err)
			}
			if cmd.Flags().Changed("dir") {
				expanded, err := config.ExpandPath(strings.TrimSpace(dir))
				if err != nil {
					return usageError(err)
				}
				cfg.Watch.Dir = expanded
			}
			if cmd.Flags().Changed("recursive") {
				cfg.Watch.Recursive = recursive
			}
			if strings.TrimSpace(cfg.Watch.Dir) == "" {
				return usageError(errors.New("no watch directory: set watch.dir or pass --dir"))
			}
			s, err := flags.settings(cmd, cfg)
			if err != nil {
				return err
			}
			return runWatch(cmd, ctx, cfg, s)
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVar(&dir, "dir", "", "Directory to watch (overrides watch.dir)")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "Also watch subdirectories")
	return cmd
}

func runWatch(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, s settings.Settings) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	results := preflight.RunAll(cfg)
	if preflight.Failed(results) {
		errOut := cmd.ErrOrStderr()
		colorize := shouldColorize(errOut)
		for _, line := range renderSectionHeader("Preflight", colorize) {
			fmt.Fprintln(errOut, line)
		}
		for _, result := range results {
			fmt.Fprintln(errOut, renderStatusLine(result.Name, preflightKind(result), result.Detail, colorize))
		}
		return &exitError{code: exitUsage, err: errors.New("preflight checks failed; run `musicforge doctor` for details")}
	}

	// The daemon has no live progress line, so it always logs to stderr.
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store := openHistory(signalCtx, cfg, logger)
	rt := newRuntime(cfg, store, logger)

	d, err := daemon.New(daemon.Options{
		Config:     cfg,
		Store:      store,
		Dispatcher: rt.dispatcher,
		Metrics:    rt.metrics,
		Prober:     rt.manager,
		Logger:     logger,
	})
	if err != nil {
		rt.close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx, s); err != nil {
		return err
	}

	socketPath := ctx.socketPath()
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (output %s); control socket %s\n", cfg.Watch.Dir, s.OutputDir, socketPath)

	select {
	case <-signalCtx.Done():
		logger.Info("musicforge watch daemon shutting down", logging.String(logging.FieldEventType, "daemon_signal"))
		d.Stop()
	case <-d.Done():
	}
	summary := rt.dispatcher.Status()
	fmt.Fprintf(cmd.OutOrStdout(), "Stopped: %d completed, %d skipped, %d failed\n",
		summary.Counts[job.KindCompleted], summary.Counts[job.KindSkipped], summary.Counts[job.KindFailed])
	return nil
}
