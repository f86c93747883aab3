package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"musicforge/internal/job"
	"musicforge/internal/settings"
)

// StartBatch records a new batch owned by this process.
func (s *Store) StartBatch(ctx context.Context, id string, cfg settings.Settings, startedAt time.Time) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("batch id is required")
	}
	settingsJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode batch settings: %w", err)
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO batches (id, pid, format, mode, total, settings_json, started_at)
         VALUES (?, ?, ?, ?, 0, ?, ?)`,
		id,
		s.pid,
		string(cfg.Format),
		normalizationMode(cfg),
		string(settingsJSON),
		formatTime(startedAt),
	); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// FinishBatch stamps the batch end and its final job count.
func (s *Store) FinishBatch(ctx context.Context, id string, finishedAt time.Time) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE batches
         SET finished_at = ?, total = (SELECT COUNT(1) FROM jobs WHERE batch_id = ?)
         WHERE id = ?`,
		formatTime(finishedAt),
		id,
		id,
	); err != nil {
		return fmt.Errorf("finish batch: %w", err)
	}
	return nil
}

// SaveJob upserts the current state of one job.
func (s *Store) SaveJob(ctx context.Context, st job.State) error {
	if strings.TrimSpace(st.BatchID) == "" {
		return errors.New("job has no batch id")
	}
	warnings, err := nullableJSON(st.Warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}
	measured, err := nullableJSON(st.Measured)
	if err != nil {
		return fmt.Errorf("encode measurement: %w", err)
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO jobs (batch_id, job_index, source_path, output_path, status, message,
                           warnings_json, measured_json, size_bytes, duration_seconds,
                           queued_at, started_at, finished_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (batch_id, job_index) DO UPDATE SET
             output_path = excluded.output_path,
             status = excluded.status,
             message = excluded.message,
             warnings_json = excluded.warnings_json,
             measured_json = excluded.measured_json,
             duration_seconds = excluded.duration_seconds,
             started_at = excluded.started_at,
             finished_at = excluded.finished_at,
             updated_at = excluded.updated_at`,
		st.BatchID,
		st.Index,
		st.File.Path,
		nullableString(st.Output),
		st.Status.Kind.String(),
		nullableString(st.Status.Message),
		warnings,
		measured,
		st.File.Size,
		st.File.Duration,
		formatTime(st.QueuedAt),
		nullableTime(st.StartedAt),
		nullableTime(st.FinishedAt),
		formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// RecentJobs returns up to limit jobs, most recently updated first. A
// non-positive limit returns every row.
func (s *Store) RecentJobs(ctx context.Context, limit int) ([]Record, error) {
	query := "SELECT " + recordColumns + " FROM jobs ORDER BY updated_at DESC, id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryRecords(ctx, query, args...)
}

// JobsForBatch returns the jobs of one batch in submission order.
func (s *Store) JobsForBatch(ctx context.Context, batchID string) ([]Record, error) {
	return s.queryRecords(ctx, "SELECT "+recordColumns+" FROM jobs WHERE batch_id = ? ORDER BY job_index", batchID)
}

// JobsByStatus returns every job currently in one of statuses.
func (s *Store) JobsByStatus(ctx context.Context, statuses ...job.Kind) ([]Record, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status.String()
	}
	query := "SELECT " + recordColumns + " FROM jobs WHERE status IN (" + makePlaceholders(len(statuses)) + ") ORDER BY batch_id, job_index"
	return s.queryRecords(ctx, query, args...)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// GetBatch returns a batch by id, or nil when unknown.
func (s *Store) GetBatch(ctx context.Context, id string) (*Batch, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+batchColumns+" FROM batches WHERE id = ?", id)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return batch, nil
}

// RecentBatches returns up to limit batches, newest first.
func (s *Store) RecentBatches(ctx context.Context, limit int) ([]Batch, error) {
	query := "SELECT " + batchColumns + " FROM batches ORDER BY started_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, *batch)
	}
	return batches, rows.Err()
}

func normalizationMode(cfg settings.Settings) string {
	if !cfg.Normalization.Enabled {
		return "off"
	}
	return string(cfg.Normalization.Mode)
}
