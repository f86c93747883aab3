package job

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"musicforge/internal/loudness"
	"musicforge/internal/media"
)

// ErrInvalidTransition is returned when a state change violates the
// lifecycle.
var ErrInvalidTransition = errors.New("invalid job transition")

// State is one input file's job. While Processing it is owned by its worker;
// observers only ever see copies.
type State struct {
	ID       int64                 `json:"id"`
	BatchID  string                `json:"batch_id,omitempty"`
	Index    int                   `json:"index"`
	File     media.FileInfo        `json:"file"`
	Status   Status                `json:"status"`
	Output   string                `json:"output,omitempty"`
	Measured *loudness.Measurement `json:"measured,omitempty"`
	Warnings []string              `json:"warnings,omitempty"`
	Percent  float64               `json:"percent"`
	ETA      time.Duration         `json:"eta,omitempty"`

	QueuedAt   time.Time `json:"queued_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// New returns a Queued state.
func New(id int64, index int, file media.FileInfo, now time.Time) *State {
	return &State{
		ID:       id,
		Index:    index,
		File:     file,
		Status:   Queued(),
		QueuedAt: now,
	}
}

// Transition applies next. Queued may move to Processing or straight to a
// terminal status (guard outcomes and cancellation before start);
// Processing may only move to a terminal status; terminal states are final.
func (s *State) Transition(next Status, now time.Time) error {
	current := s.Status.Kind
	allowed := false
	switch current {
	case KindQueued:
		allowed = next.Kind == KindProcessing || next.Kind.Terminal()
	case KindProcessing:
		allowed = next.Kind.Terminal()
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next.Kind)
	}
	s.Status = next
	switch {
	case next.Kind == KindProcessing:
		s.StartedAt = now
	case next.Kind.Terminal():
		s.FinishedAt = now
		if next.Kind == KindCompleted {
			s.Percent = 100
			s.ETA = 0
		}
	}
	return nil
}

// Warn attaches a warning without changing the status.
func (s *State) Warn(message string) {
	s.Warnings = append(s.Warnings, message)
}

// Terminal reports whether the job has finished.
func (s *State) Terminal() bool {
	return s.Status.Kind.Terminal()
}

// Duration is the processing wall time, zero until the job finished.
func (s *State) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Snapshot returns a deep copy safe to hand to other goroutines.
func (s *State) Snapshot() State {
	cp := *s
	cp.Warnings = slices.Clone(s.Warnings)
	if s.Measured != nil {
		m := *s.Measured
		cp.Measured = &m
	}
	return cp
}
