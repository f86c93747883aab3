package main

import (
	"context"
	"log/slog"
	"time"

	"musicforge/internal/config"
	"musicforge/internal/engine"
	"musicforge/internal/logging"
	"musicforge/internal/metrics"
	"musicforge/internal/notifications"
	"musicforge/internal/queue"
	"musicforge/internal/workflow"
)

// runtime bundles the collaborators a processing command needs.
type runtime struct {
	manager    *engine.FFmpeg
	dispatcher *workflow.Dispatcher
	metrics    *metrics.Dispatcher
	store      *queue.Store
}

func newRuntime(cfg *config.Config, store *queue.Store, logger *slog.Logger) *runtime {
	manager := engine.NewFFmpeg(cfg.Engine.FFmpegBinary, cfg.Engine.FFprobeBinary, logger)
	grace := time.Duration(cfg.Engine.GraceSeconds) * time.Second
	m := metrics.New(nil)
	opts := workflow.Options{
		Manager:    manager,
		Runner:     engine.NewRunner(grace, logger),
		Metrics:    m,
		Notifier:   notifications.NewService(cfg),
		Logger:     logger,
		JobTimeout: time.Duration(cfg.Engine.JobTimeoutSeconds) * time.Second,
	}
	// A nil *queue.Store must not become a non-nil History.
	if store != nil {
		opts.History = store
	}
	return &runtime{
		manager:    manager,
		dispatcher: workflow.NewDispatcher(opts),
		metrics:    m,
		store:      store,
	}
}

// openHistory opens the history database. A failure is logged and the
// command continues without history.
func openHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger) *queue.Store {
	store, err := queue.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, logger), "history database unavailable", "history_open_failed",
			logging.String(logging.FieldErrorHint, "check paths.state_dir permissions"),
			logging.String(logging.FieldImpact, "jobs from this run are not recorded"),
			logging.Error(err),
		)
		return nil
	}
	return store
}

func (r *runtime) close() {
	if r.store != nil {
		_ = r.store.Close()
	}
}

// serveMetrics starts the Prometheus endpoint when metrics.listen is set.
func (r *runtime) serveMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) *metrics.Server {
	if cfg.Metrics.Listen == "" {
		return nil
	}
	srv, err := metrics.Listen(cfg.Metrics.Listen, r.metrics, logger)
	if err != nil {
		logging.WarnWithContext(logger, "metrics endpoint unavailable", "metrics_listen_failed",
			logging.String(logging.FieldErrorHint, "choose a free metrics.listen address"),
			logging.String(logging.FieldImpact, "metrics are not exported for this run"),
			logging.Error(err),
		)
		return nil
	}
	go func() { _ = srv.Serve(ctx) }()
	return srv
}
