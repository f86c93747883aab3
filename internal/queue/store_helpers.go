package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"musicforge/internal/job"
	"musicforge/internal/loudness"
)

const recordColumns = "id, batch_id, job_index, source_path, output_path, status, message, warnings_json, measured_json, size_bytes, duration_seconds, queued_at, started_at, finished_at, updated_at"

const batchColumns = "id, pid, format, mode, total, settings_json, started_at, finished_at"

type rowScanner interface{ Scan(dest ...any) error }

func scanRecord(scanner rowScanner) (*Record, error) {
	var (
		id          int64
		batchID     string
		index       int
		sourcePath  string
		outputPath  sql.NullString
		statusStr   string
		message     sql.NullString
		warnings    sql.NullString
		measured    sql.NullString
		sizeBytes   int64
		duration    float64
		queuedRaw   string
		startedRaw  sql.NullString
		finishedRaw sql.NullString
		updatedRaw  string
	)
	if err := scanner.Scan(
		&id,
		&batchID,
		&index,
		&sourcePath,
		&outputPath,
		&statusStr,
		&message,
		&warnings,
		&measured,
		&sizeBytes,
		&duration,
		&queuedRaw,
		&startedRaw,
		&finishedRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	status, ok := job.ParseKind(statusStr)
	if !ok {
		status = job.KindFailed
	}
	record := &Record{
		ID:              id,
		BatchID:         batchID,
		Index:           index,
		SourcePath:      sourcePath,
		OutputPath:      outputPath.String,
		Status:          status,
		Message:         message.String,
		SizeBytes:       sizeBytes,
		DurationSeconds: duration,
	}
	if warnings.Valid && warnings.String != "" {
		_ = json.Unmarshal([]byte(warnings.String), &record.Warnings)
	}
	if measured.Valid && measured.String != "" {
		var m loudness.Measurement
		if err := json.Unmarshal([]byte(measured.String), &m); err == nil {
			record.Measured = &m
		}
	}
	if queued, err := parseTimeString(queuedRaw); err == nil {
		record.QueuedAt = queued
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		record.UpdatedAt = updated
	}
	record.StartedAt = parseNullableTime(startedRaw)
	record.FinishedAt = parseNullableTime(finishedRaw)
	return record, nil
}

func scanBatch(scanner rowScanner) (*Batch, error) {
	var (
		batch       Batch
		settings    sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&batch.ID,
		&batch.PID,
		&batch.Format,
		&batch.Mode,
		&batch.Total,
		&settings,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	batch.SettingsJSON = settings.String
	if started, err := parseTimeString(startedRaw); err == nil {
		batch.StartedAt = started
	}
	batch.FinishedAt = parseNullableTime(finishedRaw)
	return &batch, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return formatTime(value)
}

func nullableJSON(value any) (any, error) {
	switch v := value.(type) {
	case []string:
		if len(v) == 0 {
			return nil, nil
		}
	case *loudness.Measurement:
		if v == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	parsed, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
