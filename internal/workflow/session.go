package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"musicforge/internal/job"
	"musicforge/internal/logging"
	"musicforge/internal/media"
	"musicforge/internal/notifications"
	"musicforge/internal/services"
	"musicforge/internal/settings"
)

// ErrSessionClosed is returned by Enqueue after Close or cancellation.
var ErrSessionClosed = errors.New("session closed")

const updatesBuffer = 256

// Session is one batch: a FIFO of queued jobs and the workers draining it.
type Session struct {
	d        *Dispatcher
	id       string
	settings settings.Settings
	logger   *slog.Logger
	started  time.Time

	ctx    context.Context
	cancel context.CancelFunc

	// enqueueMu serializes Enqueue so batches keep their FIFO order while
	// their Queued updates are published outside mu.
	enqueueMu sync.Mutex

	mu        sync.Mutex
	cond      *sync.Cond
	pending   []*job.State
	closed    bool
	stopping  bool
	enqueuing int
	nextIdx   int
	ids       []int64

	workers  sync.WaitGroup
	announce sync.Once
	updates  *outbox
	done     chan struct{}
}

func newSession(ctx context.Context, d *Dispatcher, s settings.Settings) *Session {
	id := uuid.NewString()
	sessionCtx, cancel := context.WithCancel(services.WithBatchID(ctx, id))
	session := &Session{
		d:        d,
		id:       id,
		settings: s,
		started:  time.Now(),
		ctx:      sessionCtx,
		cancel:   cancel,
		updates:  newOutbox(updatesBuffer),
		done:     make(chan struct{}),
	}
	session.cond = sync.NewCond(&session.mu)
	session.logger = logging.WithContext(sessionCtx, d.logger)
	return session
}

// ID returns the batch identifier.
func (s *Session) ID() string {
	return s.id
}

// Settings returns the batch settings.
func (s *Session) Settings() settings.Settings {
	return s.settings
}

// Updates delivers a copy of each job state change in order. It is closed
// once the session has finished and every queued update was delivered.
func (s *Session) Updates() <-chan job.State {
	return s.updates.out
}

// Done is closed once every job in the session is terminal.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Summary returns the outcome counts; final once Done is closed.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	ids := append([]int64(nil), s.ids...)
	s.mu.Unlock()
	return s.d.summarize(ids, s.started)
}

// Enqueue appends files to the queue in order. The Queued updates are
// published before any worker can pick the new jobs up, without holding the
// queue lock so workers keep dequeuing during history writes.
func (s *Session) Enqueue(files ...media.FileInfo) error {
	s.enqueueMu.Lock()
	defer s.enqueueMu.Unlock()

	now := time.Now()
	s.mu.Lock()
	if s.closed || s.stopping {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	states := make([]*job.State, 0, len(files))
	for _, file := range files {
		s.nextIdx++
		st := job.New(s.d.nextID.Add(1), s.nextIdx, file, now)
		st.BatchID = s.id
		states = append(states, st)
		s.ids = append(s.ids, st.ID)
	}
	s.enqueuing++
	s.mu.Unlock()

	for _, st := range states {
		s.d.metrics.Queued(1)
		s.publish(st.Snapshot(), true)
	}

	s.mu.Lock()
	s.pending = append(s.pending, states...)
	s.enqueuing--
	s.cond.Broadcast()
	s.mu.Unlock()
	return nil
}

// Close stops accepting files. Workers exit once the queue is drained.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Stop cancels this session only.
func (s *Session) Stop() {
	s.cancel()
}

func (s *Session) start() {
	workers := EffectiveCap(s.settings)
	stopWake := context.AfterFunc(s.ctx, func() {
		s.mu.Lock()
		s.stopping = true
		s.cond.Broadcast()
		s.mu.Unlock()
	})

	if s.d.history != nil {
		if err := s.d.history.StartBatch(s.ctx, s.id, s.settings, s.started); err != nil {
			s.historyFailed("record batch start", err)
		}
	}
	s.d.metrics.BatchSubmitted()
	s.logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("workers", workers),
		logging.String("format", string(s.settings.Format)),
		logging.Bool("two_pass", s.settings.TwoPass()),
	)

	s.workers.Add(workers)
	for i := 1; i <= workers; i++ {
		go s.work(i)
	}
	go s.finish(stopWake)
}

// next blocks until a job is available. It returns nil once the session is
// closed and drained, or stopping.
func (s *Session) next() *job.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.pending) == 0 && (!s.closed || s.enqueuing > 0) && !s.stopping {
		s.cond.Wait()
	}
	if s.stopping || len(s.pending) == 0 {
		return nil
	}
	st := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	return st
}

func (s *Session) work(worker int) {
	defer s.workers.Done()
	for {
		st := s.next()
		if st == nil {
			return
		}
		s.announce.Do(func() {
			if err := s.d.notifier.Publish(s.ctx, notifications.EventBatchStarted, notifications.Payload{
				"count": s.queuedTotal(),
				"batch": s.id,
			}); err != nil && !services.IsCancellation(err) {
				s.logger.Debug("batch start notification failed", logging.Error(err))
			}
		})
		s.d.metrics.Queued(-1)
		s.runSafely(worker, st)
	}
}

func (s *Session) queuedTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// runSafely converts a panic in the pipeline into a Failed job.
func (s *Session) runSafely(worker int, st *job.State) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		logging.ErrorWithContext(s.logger, "job panicked", "job_panic",
			logging.Int64(logging.FieldJobID, st.ID),
			logging.String("panic", fmt.Sprint(r)),
			logging.String(logging.FieldErrorHint, "report this as a bug with the log file"),
		)
		if !st.Terminal() {
			if st.Output != "" {
				s.d.reservations.Release(st.Output)
			}
			s.transition(st, job.Failed(fmt.Sprintf("internal error: %v", r)))
		}
	}()
	s.runJob(worker, st)
}

// finish waits for the workers, cancels whatever was never started, and
// closes the updates channel.
func (s *Session) finish(stopWake func() bool) {
	s.workers.Wait()

	s.mu.Lock()
	s.closed = true
	for s.enqueuing > 0 {
		s.cond.Wait()
	}
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(pending) > 0 {
		s.d.metrics.Queued(-len(pending))
	}
	for _, st := range pending {
		s.transition(st, job.Cancelled())
	}

	summary := s.Summary()

	// History and notifications outlive a cancelled batch context.
	tail := context.WithoutCancel(s.ctx)
	if s.d.history != nil {
		if err := s.d.history.FinishBatch(tail, s.id, time.Now()); err != nil {
			s.historyFailed("record batch end", err)
		}
	}
	if summary.Total > 0 {
		if err := s.d.notifier.Publish(tail, notifications.EventBatchCompleted, notifications.Payload{
			"completed": summary.Completed,
			"skipped":   summary.Skipped,
			"failed":    summary.Failed,
			"duration":  summary.Duration,
		}); err != nil {
			s.logger.Debug("batch completion notification failed", logging.Error(err))
		}
	}
	s.logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("completed", summary.Completed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
		logging.Duration("duration", summary.Duration),
	)

	stopWake()
	s.cancel()
	s.updates.close()
	close(s.done)
	s.d.release(s)
}

// transition applies next and publishes the result.
func (s *Session) transition(st *job.State, next job.Status) {
	wasProcessing := st.Status.Kind == job.KindProcessing
	if err := st.Transition(next, time.Now()); err != nil {
		s.logger.Debug("ignored job transition", logging.Int64(logging.FieldJobID, st.ID), logging.Error(err))
		return
	}
	switch {
	case next.Kind == job.KindProcessing:
		s.d.metrics.JobStarted()
	case next.Kind.Terminal():
		s.d.metrics.JobFinished(next.Kind.String(), string(s.settings.Format), st.Duration(), wasProcessing)
	}
	s.publish(st.Snapshot(), true)
}

// publish records snap and queues it for the updates channel. Progress
// updates are dropped when the consumer lags; lifecycle changes are not.
func (s *Session) publish(snap job.State, lifecycle bool) {
	s.d.record(snap)
	if lifecycle && s.d.history != nil {
		if err := s.d.history.SaveJob(context.WithoutCancel(s.ctx), snap); err != nil {
			s.historyFailed("record job state", err)
		}
	}
	s.updates.push(snap, lifecycle, updatesBuffer)
}

func (s *Session) historyFailed(op string, err error) {
	logging.WarnWithContext(s.logger, "history write failed", "history_write_failed",
		logging.String("operation", op),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the state directory and history database"),
		logging.String(logging.FieldImpact, "history for this batch may be incomplete"),
	)
}
