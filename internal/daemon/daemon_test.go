package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"musicforge/internal/config"
	"musicforge/internal/daemon"
	"musicforge/internal/engine"
	"musicforge/internal/job"
	"musicforge/internal/metrics"
	"musicforge/internal/queue"
	"musicforge/internal/testsupport"
	"musicforge/internal/workflow"
)

func newDaemon(t *testing.T, cfg *config.Config, store *queue.Store) *daemon.Daemon {
	t.Helper()
	manager := engine.NewFFmpeg(cfg.Engine.FFmpegBinary, cfg.Engine.FFprobeBinary, nil)
	opts := workflow.Options{
		Manager: manager,
		Runner:  engine.NewRunner(100*time.Millisecond, nil),
		Metrics: metrics.New(nil),
	}
	if store != nil {
		opts.History = store
	}
	dispatcher := workflow.NewDispatcher(opts)
	d, err := daemon.New(daemon.Options{
		Config:     cfg,
		Store:      store,
		Dispatcher: dispatcher,
		Prober:     manager,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithFakeEngine(testsupport.EncodingEngine), testsupport.WithWatchDir())
	cfg.Engine.FFprobeBinary = filepath.Join(testsupport.BaseDir(cfg), "missing-ffprobe")
	cfg.Watch.SettleSeconds = 1
	cfg.Watch.ScanIntervalSeconds = 1
	return cfg
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store)
	t.Cleanup(func() { d.Stop() })

	s, err := cfg.Settings("")
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	ctx := context.Background()
	if err := d.Start(ctx, s); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status()
	if !status.Running || status.BatchID == "" {
		t.Fatalf("expected running daemon with a batch, got %+v", status)
	}

	// Second start should fail
	if err := d.Start(ctx, s); err == nil {
		t.Fatal("expected second start to fail")
	}
	other := newDaemon(t, cfg, store)
	if err := other.Start(ctx, s); err == nil {
		t.Fatal("expected lock to block a second daemon")
	}

	testsupport.WriteFile(t, filepath.Join(cfg.Watch.Dir, "track.wav"), 16)
	deadline := time.Now().Add(10 * time.Second)
	for d.Status().Workflow.Counts[job.KindCompleted] < 1 {
		if time.Now().After(deadline) {
			t.Fatalf("watched file was not processed: %+v", d.Status())
		}
		time.Sleep(50 * time.Millisecond)
	}
	if got := d.Status().Ingested; got != 1 {
		t.Fatalf("expected 1 ingested file, got %d", got)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, "track.wav")); err != nil {
		t.Fatalf("expected output: %v", err)
	}

	d.Stop()
	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not report done")
	}
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}

	records, err := store.RecentJobs(ctx, 10)
	if err != nil {
		t.Fatalf("RecentJobs: %v", err)
	}
	if len(records) != 1 || records[0].Status != job.KindCompleted {
		t.Fatalf("expected one completed history record, got %+v", records)
	}
}

func TestDaemonRequiresWatchDir(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFakeEngine(testsupport.EncodingEngine))
	d := newDaemon(t, cfg, nil)
	s, err := cfg.Settings("")
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if err := d.Start(context.Background(), s); err == nil {
		t.Fatal("expected error without watch dir")
	}
}
