package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"musicforge/internal/job"
)

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[job.Kind]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("history stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[job.Kind]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		if kind, ok := job.ParseKind(name); ok {
			stats[kind] += count
		}
	}
	return stats, rows.Err()
}

// ResetStuckProcessing closes out jobs left behind by processes that exited
// without finishing their batch: processing rows become failed
// "interrupted", queued rows become skipped "interrupted", and the batch is
// stamped finished. Batches owned by live processes are left alone.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	stale, err := s.staleBatches(ctx)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	now := formatTime(time.Now())
	args := make([]any, 0, len(stale))
	for _, id := range stale {
		args = append(args, id)
	}
	in := makePlaceholders(len(stale))

	res, err := s.execWithRetry(ctx,
		`UPDATE jobs
         SET status = CASE status WHEN ? THEN ? ELSE ? END,
             message = ?, finished_at = ?, updated_at = ?
         WHERE status IN (?, ?) AND batch_id IN (`+in+`)`,
		append([]any{
			job.KindProcessing.String(), job.KindFailed.String(), job.KindSkipped.String(),
			InterruptedMessage, now, now,
			job.KindProcessing.String(), job.KindQueued.String(),
		}, args...)...,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE batches SET finished_at = ? WHERE finished_at IS NULL AND id IN (`+in+`)`,
		append([]any{now}, args...)...,
	); err != nil {
		return 0, fmt.Errorf("close stale batches: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) staleBatches(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT b.id, b.pid FROM batches b
         JOIN jobs j ON j.batch_id = b.id
         WHERE j.status IN (?, ?)`,
		job.KindProcessing.String(), job.KindQueued.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("find stale batches: %w", err)
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var id string
		var pid int
		if err := rows.Scan(&id, &pid); err != nil {
			return nil, err
		}
		if pid == s.pid || processAlive(pid) {
			continue
		}
		stale = append(stale, id)
	}
	return stale, rows.Err()
}

// processAlive probes pid with signal 0. EPERM means the process exists but
// belongs to someone else.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Clear removes all history.
func (s *Store) Clear(ctx context.Context) error {
	for _, stmt := range []string{"DELETE FROM jobs", "DELETE FROM batches"} {
		if err := s.execWithoutResultRetry(ctx, stmt); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
	}
	return nil
}

// DatabaseHealth describes the history database for diagnostics.
type DatabaseHealth struct {
	DBPath         string
	DatabaseExists bool
	SizeBytes      int64
	IntegrityCheck bool
	TotalJobs      int
}

// CheckHealth returns diagnostic information about the history database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	ctx = ensureContext(ctx)
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("history database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat history database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("history database path %q is a directory", s.path)
	}
	health.DatabaseExists = true
	health.SizeBytes = info.Size()

	var result string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = result == "ok"

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM jobs").Scan(&health.TotalJobs); err != nil {
		return health, fmt.Errorf("count jobs: %w", err)
	}
	return health, nil
}
