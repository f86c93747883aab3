package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"musicforge/internal/config"
	"musicforge/internal/logging"
	"musicforge/internal/media"
	"musicforge/internal/metrics"
	"musicforge/internal/queue"
	"musicforge/internal/settings"
	"musicforge/internal/watch"
	"musicforge/internal/workflow"
)

// Options carries the daemon's collaborators. Config and Dispatcher are
// required.
type Options struct {
	Config     *config.Config
	Store      *queue.Store
	Dispatcher *workflow.Dispatcher
	Metrics    *metrics.Dispatcher
	Prober     media.DurationProber
	Logger     *slog.Logger
}

// Daemon runs one watch session and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *queue.Store
	dispatcher *workflow.Dispatcher
	metrics    *metrics.Dispatcher
	prober     media.DurationProber

	lockPath string
	lock     *flock.Flock

	mu         sync.Mutex
	running    atomic.Bool
	session    *workflow.Session
	monitor    *watch.Monitor
	metricsSrv *metrics.Server
	startedAt  time.Time
	cancel     context.CancelFunc
	done       chan struct{}
	doneOnce   sync.Once
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	StartedAt     time.Time
	WatchDir      string
	OutputDir     string
	BatchID       string
	Ingested      int
	MetricsAddr   string
	LockPath      string
	HistoryDBPath string
	Workflow      workflow.StatusSummary
}

// New constructs a daemon with initialized dependencies.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Dispatcher == nil {
		return nil, errors.New("daemon requires config and dispatcher")
	}
	lockPath := opts.Config.LockPath()
	return &Daemon{
		cfg:        opts.Config,
		logger:     logging.NewComponentLogger(opts.Logger, "daemon"),
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		metrics:    opts.Metrics,
		prober:     opts.Prober,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		done:       make(chan struct{}),
	}, nil
}

// Start acquires the daemon lock, opens a dispatcher session with s, and
// begins watching the configured directory.
func (d *Daemon) Start(ctx context.Context, s settings.Settings) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	watchDir := strings.TrimSpace(d.cfg.Watch.Dir)
	if watchDir == "" {
		return errors.New("watch.dir is not configured")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another musicforge watch daemon is already running")
	}
	release := func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Debug("lock release failed", logging.Error(err))
		}
	}

	if d.store != nil {
		if reset, err := d.store.ResetStuckProcessing(ctx); err != nil {
			d.logger.Debug("stuck job reset failed", logging.Error(err))
		} else if reset > 0 {
			d.logger.Info("reset interrupted jobs",
				logging.String(logging.FieldEventType, "history_reset_stuck"),
				logging.Int64("count", reset),
			)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	session, err := d.dispatcher.Open(runCtx, s)
	if err != nil {
		cancel()
		release()
		return fmt.Errorf("open batch: %w", err)
	}

	monitor := watch.New(watch.Options{
		Dir:          watchDir,
		Recursive:    d.cfg.Watch.Recursive,
		Settle:       time.Duration(d.cfg.Watch.SettleSeconds) * time.Second,
		ScanInterval: time.Duration(d.cfg.Watch.ScanIntervalSeconds) * time.Second,
		Exclude:      []string{s.OutputDir},
		Prober:       d.prober,
		Logger:       d.logger,
	}, session)
	if err := monitor.Start(runCtx); err != nil {
		session.Stop()
		session.Close()
		drainUpdates(session)
		cancel()
		release()
		return fmt.Errorf("start watch: %w", err)
	}

	var srv *metrics.Server
	if addr := strings.TrimSpace(d.cfg.Metrics.Listen); addr != "" && d.metrics != nil {
		srv, err = metrics.Listen(addr, d.metrics, d.logger)
		if err != nil {
			logging.WarnWithContext(d.logger, "metrics endpoint unavailable", "metrics_listen_failed",
				logging.Error(err),
				logging.String("addr", addr),
				logging.String(logging.FieldErrorHint, "pick a free metrics.listen address"),
				logging.String(logging.FieldImpact, "the daemon runs without /metrics"),
			)
			srv = nil
		} else {
			go func() {
				if err := srv.Serve(runCtx); err != nil {
					d.logger.Debug("metrics server stopped", logging.Error(err))
				}
			}()
		}
	}

	d.session = session
	d.monitor = monitor
	d.metricsSrv = srv
	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)
	go drainUpdates(session)

	d.logger.Info("musicforge watch daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String("watch_dir", watchDir),
		logging.String("output_dir", s.OutputDir),
		logging.String(logging.FieldBatchID, session.ID()),
	)
	return nil
}

// drainUpdates consumes a session's updates; the dispatcher already logs and
// records every transition.
func drainUpdates(session *workflow.Session) {
	for range session.Updates() {
	}
}

// Stop halts ingestion, cancels in-flight jobs, and releases the lock. It
// blocks until the session has finished.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.monitor.Stop()
	d.session.Stop()
	d.session.Close()
	<-d.session.Done()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
			logging.String(logging.FieldImpact, "the next watch start may report a running instance"),
		)
	}
	d.running.Store(false)
	summary := d.session.Summary()
	d.logger.Info("musicforge watch daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stop"),
		logging.Int("completed", summary.Completed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
	)
	d.doneOnce.Do(func() { close(d.done) })
}

// Done is closed once the daemon has stopped.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		StartedAt:     d.startedAt,
		WatchDir:      d.cfg.Watch.Dir,
		LockPath:      d.lockPath,
		HistoryDBPath: d.store.Path(),
		Workflow:      d.dispatcher.Status(),
	}
	if d.session != nil {
		status.BatchID = d.session.ID()
		status.OutputDir = d.session.Settings().OutputDir
	}
	if d.monitor != nil {
		status.Ingested = d.monitor.Seen()
	}
	if d.metricsSrv != nil {
		status.MetricsAddr = d.metricsSrv.Addr()
	}
	return status
}
