package queue

import (
	"time"

	"musicforge/internal/job"
	"musicforge/internal/loudness"
)

// Batch is one dispatcher run.
type Batch struct {
	ID           string
	PID          int
	Format       string
	Mode         string
	Total        int
	SettingsJSON string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// Finished reports whether the batch recorded its end.
func (b Batch) Finished() bool {
	return b.FinishedAt != nil
}

// Record is the persisted view of one job.
type Record struct {
	ID              int64
	BatchID         string
	Index           int
	SourcePath      string
	OutputPath      string
	Status          job.Kind
	Message         string
	Warnings        []string
	Measured        *loudness.Measurement
	SizeBytes       int64
	DurationSeconds float64
	QueuedAt        time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
	UpdatedAt       time.Time
}

// Elapsed is the processing wall time, zero when the job never started or has
// not finished.
func (r Record) Elapsed() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// InterruptedMessage is recorded on jobs whose owning process died.
const InterruptedMessage = "interrupted"
