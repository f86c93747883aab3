package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"musicforge/internal/job"
	"musicforge/internal/queue"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var statuses []string
	var batchID string
	var clearHistory bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently processed jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := parseKinds(statuses)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				out := cmd.OutOrStdout()
				if clearHistory {
					if err := store.Clear(cmd.Context()); err != nil {
						return err
					}
					fmt.Fprintln(out, "History cleared")
					return nil
				}

				var records []queue.Record
				switch {
				case strings.TrimSpace(batchID) != "":
					records, err = store.JobsForBatch(cmd.Context(), strings.TrimSpace(batchID))
				case len(kinds) > 0:
					records, err = store.JobsByStatus(cmd.Context(), kinds...)
				default:
					records, err = store.RecentJobs(cmd.Context(), limit)
				}
				if err != nil {
					return err
				}
				if limit > 0 && len(records) > limit {
					records = records[:limit]
				}
				if jsonOutput {
					return writeJSON(cmd, records)
				}
				if len(records) == 0 {
					fmt.Fprintln(out, "No jobs recorded")
					return nil
				}
				fmt.Fprintln(out, renderHistoryTable(records))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to show")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only show jobs with these statuses (completed, skipped, failed, ...)")
	cmd.Flags().StringVar(&batchID, "batch", "", "Only show jobs from this batch")
	cmd.Flags().BoolVar(&clearHistory, "clear", false, "Delete all recorded history")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit records as JSON")

	cmd.AddCommand(newHistoryBatchesCommand(ctx))
	return cmd
}

func newHistoryBatchesCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "Show recent batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				batches, err := store.RecentBatches(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(batches) == 0 {
					fmt.Fprintln(out, "No batches recorded")
					return nil
				}
				rows := make([][]string, 0, len(batches))
				for _, b := range batches {
					finished := "running"
					if b.Finished() {
						finished = b.FinishedAt.Local().Format(time.DateTime)
					}
					rows = append(rows, []string{
						b.ID,
						b.StartedAt.Local().Format(time.DateTime),
						finished,
						b.Format,
						b.Mode,
						fmt.Sprintf("%d", b.Total),
					})
				}
				fmt.Fprintln(out, renderTable(tableSpec{
					Headers: []string{"Batch", "Started", "Finished", "Format", "Normalize", "Jobs"},
					Rows:    rows,
					Aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				}))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of batches to show")
	return cmd
}

// withStore opens the history database for the duration of fn.
func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return usageError(err)
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func parseKinds(values []string) ([]job.Kind, error) {
	kinds := make([]job.Kind, 0, len(values))
	for _, value := range values {
		kind, ok := job.ParseKind(value)
		if !ok {
			return nil, usageError(fmt.Errorf("unknown status %q", value))
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func renderHistoryTable(records []queue.Record) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		detail := r.OutputPath
		if r.Status != job.KindCompleted {
			detail = r.Message
		}
		elapsed := ""
		if d := r.Elapsed(); d > 0 {
			elapsed = d.Round(100 * time.Millisecond).String()
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.ID),
			r.UpdatedAt.Local().Format(time.DateTime),
			filepath.Base(r.SourcePath),
			strings.ToUpper(r.Status.String()),
			detail,
			elapsed,
		})
	}
	return renderTable(tableSpec{
		Headers:  []string{"ID", "Updated", "File", "Status", "Output / Reason", "Elapsed"},
		Rows:     rows,
		Aligns:   []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
		MaxWidth: 60,
	})
}
