package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"musicforge/internal/services"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func newTestRunner() *Runner {
	r := NewRunner(50*time.Millisecond, nil)
	r.JoinTimeout = time.Second
	return r
}

func TestRunReportsMonotonicProgress(t *testing.T) {
	script := writeScript(t, `
echo "out_time_ms=1000000"
echo "speed=2.0x"
echo "out_time_ms=5000000"
echo "out_time_ms=4000000"
echo "speed=N/A"
echo "out_time_ms=15000000"
echo "progress=end"
`)
	events := make(chan Progress, 32)
	result, err := newTestRunner().Run(context.Background(), []string{script}, RunOptions{
		TotalDuration: 10,
		Progress:      events,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	close(events)
	if result.Outcome != OutcomeCompleted || result.ExitCode != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	var got []Progress
	for ev := range events {
		got = append(got, ev)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 events, got %d: %+v", len(got), got)
	}
	last := -1.0
	for _, ev := range got {
		if ev.Percent < 0 || ev.Percent > 100 {
			t.Fatalf("percent out of range: %v", ev.Percent)
		}
		if ev.Percent < last {
			t.Fatalf("percent decreased: %v after %v", ev.Percent, last)
		}
		last = ev.Percent
	}
	if got[0].Percent != 10 {
		t.Fatalf("expected first event at 10%%, got %v", got[0].Percent)
	}
	if got[1].Percent != 50 || got[1].ETA != 2500*time.Millisecond {
		t.Fatalf("unexpected second event: %+v", got[1])
	}
	final := got[len(got)-1]
	if !final.Done || final.Percent != 100 {
		t.Fatalf("expected terminal 100%% event, got %+v", final)
	}
	if !strings.Contains(result.Stdout, "progress=end") {
		t.Fatalf("stdout not captured: %q", result.Stdout)
	}
}

func TestRunSurfacesLastStderrLine(t *testing.T) {
	script := writeScript(t, `
echo "first problem" >&2
echo "Invalid data found when processing input" >&2
echo "" >&2
exit 3
`)
	result, err := newTestRunner().Run(context.Background(), []string{script}, RunOptions{})
	if !errors.Is(err, services.ErrEngineExitNonzero) {
		t.Fatalf("expected ErrEngineExitNonzero, got %v", err)
	}
	if result.Outcome != OutcomeFailed || result.ExitCode != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.LastError != "Invalid data found when processing input" {
		t.Fatalf("unexpected last error: %q", result.LastError)
	}
	if !strings.Contains(result.Stderr, "first problem") {
		t.Fatalf("full stderr should be retained: %q", result.Stderr)
	}
}

func TestRunDrainsPipesIndependently(t *testing.T) {
	script := writeScript(t, `
yes "stderr noise" | head -c 400000 >&2
echo "out_time_ms=2000000"
echo "progress=end"
`)
	events := make(chan Progress, 8)
	result, err := newTestRunner().Run(context.Background(), []string{script}, RunOptions{TotalDuration: 4, Progress: events})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.Stderr) < 400000 {
		t.Fatalf("expected full stderr capture, got %d bytes", len(result.Stderr))
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 progress events, got %d", len(events))
	}
}

func TestRunEscalatesOnCancel(t *testing.T) {
	script := writeScript(t, `
trap '' INT TERM
echo "out_time_ms=1000000"
sleep 30
`)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	result, err := newTestRunner().Run(ctx, []string{script}, RunOptions{TotalDuration: 10})
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if !services.IsCancellation(err) {
		t.Fatal("cancellation should be classified as such")
	}
	if result.Outcome != OutcomeCancelled || result.ExitCode != CancelledExitCode {
		t.Fatalf("unexpected result: %+v", result)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("escalation took too long: %s", elapsed)
	}
}

func TestRunGracefulInterrupt(t *testing.T) {
	script := writeScript(t, `
trap 'echo "interrupted" >&2; exit 255' INT
while true; do sleep 0.05; done
`)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	r := newTestRunner()
	r.Grace = 2 * time.Second
	start := time.Now()
	result, err := r.Run(ctx, []string{script}, RunOptions{})
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if result.Outcome != OutcomeCancelled {
		t.Fatalf("unexpected outcome: %v", result.Outcome)
	}
	if elapsed := time.Since(start); elapsed > 1500*time.Millisecond {
		t.Fatalf("SIGINT should have stopped the engine before escalation, took %s", elapsed)
	}
}

func TestRunTimeout(t *testing.T) {
	script := writeScript(t, `sleep 30`)
	result, err := newTestRunner().Run(context.Background(), []string{script}, RunOptions{Timeout: 100 * time.Millisecond})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if services.IsCancellation(err) {
		t.Fatal("timeout must not be reported as cancellation")
	}
	if result.Outcome != OutcomeTimeout || result.ExitCode != CancelledExitCode {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRunMissingBinary(t *testing.T) {
	_, err := newTestRunner().Run(context.Background(), []string{filepath.Join(t.TempDir(), "missing")}, RunOptions{})
	if !errors.Is(err, services.ErrEngineNotFound) {
		t.Fatalf("expected ErrEngineNotFound, got %v", err)
	}
}

func TestRunAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := newTestRunner().Run(ctx, []string{"/bin/true"}, RunOptions{})
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if result.Outcome != OutcomeCancelled {
		t.Fatalf("unexpected outcome: %v", result.Outcome)
	}
}

func TestLastLine(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"one":              "one",
		"one\ntwo\n":       "two",
		"one\n  two  \n\n": "two",
		"\n\n":             "",
	}
	for input, want := range cases {
		if got := LastLine(input); got != want {
			t.Fatalf("LastLine(%q) = %q, want %q", input, got, want)
		}
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
