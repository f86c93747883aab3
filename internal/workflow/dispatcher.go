package workflow

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"musicforge/internal/command"
	"musicforge/internal/engine"
	"musicforge/internal/job"
	"musicforge/internal/logging"
	"musicforge/internal/loudness"
	"musicforge/internal/media"
	"musicforge/internal/metrics"
	"musicforge/internal/notifications"
	"musicforge/internal/services"
	"musicforge/internal/settings"
)

// ErrStopped is returned when work is submitted after RequestStop.
var ErrStopped = errors.New("dispatcher stopped")

// Runner executes one engine invocation.
type Runner interface {
	Run(ctx context.Context, argv []string, opts engine.RunOptions) (engine.Result, error)
}

// Measurer runs the loudness analysis pass.
type Measurer interface {
	Measure(ctx context.Context, file media.FileInfo, s settings.Settings) (*loudness.Measurement, error)
}

// History persists batches and job transitions. Failures are logged and
// never affect job outcomes.
type History interface {
	StartBatch(ctx context.Context, id string, s settings.Settings, startedAt time.Time) error
	SaveJob(ctx context.Context, st job.State) error
	FinishBatch(ctx context.Context, id string, finishedAt time.Time) error
}

// Options wires a Dispatcher. Manager and Runner are required; the rest are
// optional.
type Options struct {
	Manager  engine.Manager
	Runner   Runner
	Measurer Measurer
	History  History
	Metrics  *metrics.Dispatcher
	Notifier notifications.Service
	Logger   *slog.Logger
	// JobTimeout bounds each corrective engine pass; 0 disables it.
	JobTimeout time.Duration
}

// Dispatcher schedules jobs onto workers and tracks every job it has seen.
type Dispatcher struct {
	manager    engine.Manager
	runner     Runner
	measurer   Measurer
	builder    command.Builder
	history    History
	metrics    *metrics.Dispatcher
	notifier   notifications.Service
	logger     *slog.Logger
	jobTimeout time.Duration

	reservations *job.Reservations
	stopped      atomic.Bool
	nextID       atomic.Int64
	sessions     sync.WaitGroup

	mu     sync.RWMutex
	jobs   map[int64]job.State
	active map[*Session]struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(opts Options) *Dispatcher {
	logger := logging.NewComponentLogger(opts.Logger, "dispatcher")
	measurer := opts.Measurer
	if measurer == nil && opts.Runner != nil && opts.Manager != nil {
		measurer = loudness.NewMeasurer(opts.Runner, opts.Manager, opts.Logger)
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	d := &Dispatcher{
		manager:      opts.Manager,
		runner:       opts.Runner,
		measurer:     measurer,
		history:      opts.History,
		metrics:      opts.Metrics,
		notifier:     notifier,
		logger:       logger,
		jobTimeout:   opts.JobTimeout,
		reservations: job.NewReservations(),
		jobs:         make(map[int64]job.State),
		active:       make(map[*Session]struct{}),
	}
	if opts.Manager != nil {
		d.builder = command.NewBuilder(opts.Manager.Binary(), opts.Manager)
	}
	return d
}

// EffectiveCap is the worker count for s: its concurrency, halved (minimum
// one) when each job runs a measurement pass as well as an encode.
func EffectiveCap(s settings.Settings) int {
	limit := s.Concurrency
	if limit < 1 {
		limit = 1
	}
	if s.TwoPass() {
		limit /= 2
		if limit < 1 {
			limit = 1
		}
	}
	return limit
}

// EffectiveCap reports the worker count a batch with s would get.
func (d *Dispatcher) EffectiveCap(s settings.Settings) int {
	return EffectiveCap(s)
}

// Submit runs files as one batch and returns its updates channel, which
// closes once every job is terminal. Callers should drain it; undelivered
// updates are held in memory until they do. Submit fails
// without starting anything when the settings are invalid or the engine is
// unavailable.
func (d *Dispatcher) Submit(ctx context.Context, files []media.FileInfo, s settings.Settings) (<-chan job.State, error) {
	session, err := d.Open(ctx, s)
	if err != nil {
		return nil, err
	}
	if err := session.Enqueue(files...); err != nil {
		session.Close()
		return nil, err
	}
	session.Close()
	return session.Updates(), nil
}

// Open starts a batch that accepts files until Close. Engine availability
// is checked once here.
func (d *Dispatcher) Open(ctx context.Context, s settings.Settings) (*Session, error) {
	if d.stopped.Load() {
		return nil, ErrStopped
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if d.manager == nil || d.runner == nil {
		return nil, services.Wrap(services.ErrConfiguration, "dispatcher", "open", "engine manager and runner are required", nil)
	}
	if err := d.manager.Available(); err != nil {
		return nil, err
	}

	session := newSession(ctx, d, s)
	d.mu.Lock()
	if d.stopped.Load() {
		d.mu.Unlock()
		session.cancel()
		return nil, ErrStopped
	}
	d.active[session] = struct{}{}
	d.sessions.Add(1)
	d.mu.Unlock()

	session.start()
	return session, nil
}

// RequestStop cancels every running and future batch. It is idempotent.
func (d *Dispatcher) RequestStop() {
	if d.stopped.Swap(true) {
		return
	}
	d.logger.Info("stop requested", logging.String(logging.FieldEventType, "dispatcher_stop"))
	d.mu.RLock()
	sessions := make([]*Session, 0, len(d.active))
	for session := range d.active {
		sessions = append(sessions, session)
	}
	d.mu.RUnlock()
	for _, session := range sessions {
		session.cancel()
	}
}

// Stopped reports whether RequestStop was called.
func (d *Dispatcher) Stopped() bool {
	return d.stopped.Load()
}

// Wait blocks until every session has finished.
func (d *Dispatcher) Wait() {
	d.sessions.Wait()
}

// Snapshot returns copies of every job seen so far, ordered by ID.
func (d *Dispatcher) Snapshot() []job.State {
	d.mu.RLock()
	states := make([]job.State, 0, len(d.jobs))
	for _, st := range d.jobs {
		states = append(states, st)
	}
	d.mu.RUnlock()
	slices.SortFunc(states, func(a, b job.State) int { return cmp.Compare(a.ID, b.ID) })
	return states
}

func (d *Dispatcher) record(st job.State) {
	d.mu.Lock()
	d.jobs[st.ID] = st
	d.mu.Unlock()
}

func (d *Dispatcher) release(session *Session) {
	d.mu.Lock()
	delete(d.active, session)
	d.mu.Unlock()
	d.sessions.Done()
}
