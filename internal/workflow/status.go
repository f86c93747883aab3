package workflow

import (
	"time"

	"musicforge/internal/job"
)

// Summary counts the outcomes of one batch.
type Summary struct {
	Total     int
	Completed int
	Skipped   int
	Failed    int
	// Cancelled is the subset of Skipped stopped by the user.
	Cancelled int
	// Active counts jobs that have not reached a terminal state.
	Active   int
	Duration time.Duration
}

// OK reports whether no job failed.
func (s Summary) OK() bool {
	return s.Failed == 0
}

func (d *Dispatcher) summarize(ids []int64, started time.Time) Summary {
	states := make([]job.State, 0, len(ids))
	d.mu.RLock()
	for _, id := range ids {
		if st, ok := d.jobs[id]; ok {
			states = append(states, st)
		}
	}
	d.mu.RUnlock()
	summary := Summarize(states)
	summary.Total = len(ids)
	summary.Duration = time.Since(started)
	return summary
}

// Summarize counts outcomes across states.
func Summarize(states []job.State) Summary {
	var summary Summary
	for _, st := range states {
		summary.Total++
		switch st.Status.Kind {
		case job.KindCompleted:
			summary.Completed++
		case job.KindSkipped:
			summary.Skipped++
			if st.Status.Message == job.ReasonCancelled {
				summary.Cancelled++
			}
		case job.KindFailed:
			summary.Failed++
		default:
			summary.Active++
		}
	}
	return summary
}

// StatusSummary represents lightweight dispatcher diagnostics.
type StatusSummary struct {
	Stopped  bool
	Sessions int
	Counts   map[job.Kind]int
	Active   []job.State
}

// Status returns the current dispatcher state. Active lists queued and
// processing jobs.
func (d *Dispatcher) Status() StatusSummary {
	d.mu.RLock()
	sessions := len(d.active)
	d.mu.RUnlock()

	summary := StatusSummary{
		Stopped:  d.stopped.Load(),
		Sessions: sessions,
		Counts:   make(map[job.Kind]int),
	}
	for _, st := range d.Snapshot() {
		summary.Counts[st.Status.Kind]++
		if !st.Terminal() {
			summary.Active = append(summary.Active, st)
		}
	}
	return summary
}
