package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"musicforge/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the watch daemon, cancelling in-flight jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client, err := ipc.Dial(ctx.socketPath())
			if daemonNotRunning(err) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return wrapDialError(err, ctx.socketPath())
			}
			defer client.Close()

			fmt.Fprintln(stdout, "Stopping watch daemon...")
			resp, err := client.Stop()
			if err != nil {
				return fmt.Errorf("stop daemon: %w", err)
			}
			if !resp.Stopped {
				fmt.Fprintln(stdout, "Daemon was not running a watch session")
				return nil
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var jsonOutput bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show watch daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client, err := ipc.Dial(ctx.socketPath())
			if daemonNotRunning(err) {
				if jsonOutput {
					return writeJSON(cmd, ipc.StatusResponse{})
				}
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusInfo, "not running", shouldColorize(stdout)))
				return nil
			}
			if err != nil {
				return wrapDialError(err, ctx.socketPath())
			}
			defer client.Close()

			resp, err := client.Status()
			if err != nil {
				return fmt.Errorf("daemon status: %w", err)
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}
			printDaemonStatus(stdout, resp)
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the status as JSON")

	return []*cobra.Command{stopCmd, statusCmd}
}

func daemonNotRunning(err error) bool {
	return err != nil && (errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED) || os.IsNotExist(err))
}

func printDaemonStatus(out io.Writer, resp *ipc.StatusResponse) {
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Watch Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	if !resp.Running {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, fmt.Sprintf("pid %d, no watch session", resp.PID), colorize))
		return
	}
	uptime := time.Since(resp.StartedAt).Round(time.Second)
	fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d, up %s)", resp.PID, uptime), colorize))
	fmt.Fprintln(out, renderStatusLine("Watch directory", statusInfo, resp.WatchDir, colorize))
	fmt.Fprintln(out, renderStatusLine("Output directory", statusInfo, resp.OutputDir, colorize))
	fmt.Fprintln(out, renderStatusLine("Batch", statusInfo, resp.BatchID, colorize))
	fmt.Fprintln(out, renderStatusLine("Files ingested", statusInfo, fmt.Sprintf("%d", resp.Ingested), colorize))
	metricsDetail := "disabled"
	if resp.MetricsAddr != "" {
		metricsDetail = "http://" + resp.MetricsAddr + "/metrics"
	}
	fmt.Fprintln(out, renderStatusLine("Metrics", statusInfo, metricsDetail, colorize))
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Jobs", colorize) {
		fmt.Fprintln(out, line)
	}
	kinds := make([]string, 0, len(resp.Counts))
	for kind := range resp.Counts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	rows := make([][]string, 0, len(kinds))
	for _, kind := range kinds {
		rows = append(rows, []string{kind, fmt.Sprintf("%d", resp.Counts[kind])})
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "No jobs yet")
	} else {
		fmt.Fprintln(out, renderTable(tableSpec{
			Headers: []string{"Status", "Count"},
			Rows:    rows,
			Aligns:  []columnAlignment{alignLeft, alignRight},
		}))
	}

	if len(resp.Active) == 0 {
		return
	}
	active := make([][]string, 0, len(resp.Active))
	for _, a := range resp.Active {
		eta := ""
		if a.ETASeconds > 0 {
			eta = (time.Duration(a.ETASeconds) * time.Second).String()
		}
		active = append(active, []string{fmt.Sprintf("%d", a.ID), a.Source, strings.TrimSpace(a.Output), fmt.Sprintf("%.0f%%", a.Percent), eta})
	}
	fmt.Fprintln(out, renderTable(tableSpec{
		Headers:  []string{"ID", "Source", "Output", "Progress", "ETA"},
		Rows:     active,
		Aligns:   []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
		MaxWidth: 50,
	}))
}
