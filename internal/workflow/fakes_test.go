package workflow

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"musicforge/internal/engine"
	"musicforge/internal/job"
	"musicforge/internal/media"
	"musicforge/internal/services"
	"musicforge/internal/settings"
)

const measurementReport = `[Parsed_loudnorm_0 @ 0x1]
{
	"input_i" : "-20.10",
	"input_tp" : "-3.20",
	"input_lra" : "5.40",
	"input_thresh" : "-30.50",
	"target_offset" : "0.20"
}`

type fakeManager struct {
	unavailable error
}

func (m fakeManager) Binary() string         { return "ffmpeg" }
func (m fakeManager) Available() error       { return m.unavailable }
func (m fakeManager) HasEncoder(string) bool { return false }

func (m fakeManager) ProbeDuration(context.Context, string) (float64, error) {
	return 0, nil
}

// fakeRunner records invocations and simulates the engine. Measurement
// passes are recognised by their trailing null-muxer "-" output.
type fakeRunner struct {
	delay       time.Duration
	measurement string
	encode      func(ctx context.Context, argv []string) (engine.Result, error)

	mu          sync.Mutex
	active      int
	maxActive   int
	measures    [][]string
	correctives [][]string
}

func isMeasurement(argv []string) bool {
	return len(argv) > 0 && argv[len(argv)-1] == "-"
}

func (r *fakeRunner) Run(ctx context.Context, argv []string, opts engine.RunOptions) (engine.Result, error) {
	r.mu.Lock()
	r.active++
	if r.active > r.maxActive {
		r.maxActive = r.active
	}
	if isMeasurement(argv) {
		r.measures = append(r.measures, argv)
	} else {
		r.correctives = append(r.correctives, argv)
	}
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.active--
		r.mu.Unlock()
	}()

	if r.delay > 0 {
		timer := time.NewTimer(r.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return engine.Result{Outcome: engine.OutcomeCancelled, ExitCode: engine.CancelledExitCode},
				services.Wrap(services.ErrCancelled, "engine", "run", "Cancelled", ctx.Err())
		case <-timer.C:
		}
	}

	if isMeasurement(argv) {
		report := r.measurement
		if report == "" {
			report = measurementReport
		}
		return engine.Result{Outcome: engine.OutcomeCompleted, Stderr: report}, nil
	}
	if r.encode != nil {
		return r.encode(ctx, argv)
	}
	if opts.Progress != nil {
		opts.Progress <- engine.Progress{Percent: 50}
		opts.Progress <- engine.Progress{Percent: 100, Done: true}
	}
	if err := os.WriteFile(argv[len(argv)-1], []byte("encoded"), 0o644); err != nil {
		return engine.Result{Outcome: engine.OutcomeFailed, ExitCode: 1, LastError: err.Error()},
			services.Wrap(services.ErrEngineExitNonzero, "engine", "run", err.Error(), nil)
	}
	return engine.Result{Outcome: engine.OutcomeCompleted}, nil
}

func (r *fakeRunner) counts() (measures, correctives, maxActive int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.measures), len(r.correctives), r.maxActive
}

func (r *fakeRunner) correctiveArgs() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.correctives...)
}

func sourceFiles(t *testing.T, dir string, names ...string) []media.FileInfo {
	t.Helper()
	files := make([]media.FileInfo, 0, len(names))
	for _, name := range names {
		path := dir + "/" + name
		if err := os.WriteFile(path, []byte("source"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		files = append(files, media.FileInfo{Path: path, Size: 6, Duration: 10})
	}
	return files
}

func baseSettings(outputDir string) settings.Settings {
	s := settings.Default()
	s.OutputDir = outputDir
	return s
}

// drain collects every update until the channel closes.
func drain(t *testing.T, updates <-chan job.State) []job.State {
	t.Helper()
	var all []job.State
	timeout := time.After(10 * time.Second)
	for {
		select {
		case st, ok := <-updates:
			if !ok {
				return all
			}
			all = append(all, st)
		case <-timeout:
			t.Fatalf("updates channel not closed; received %d updates", len(all))
		}
	}
}

// finalStates returns the last update per job, ordered by job ID.
func finalStates(updates []job.State) []job.State {
	last := map[int64]job.State{}
	var order []int64
	for _, st := range updates {
		if _, ok := last[st.ID]; !ok {
			order = append(order, st.ID)
		}
		last[st.ID] = st
	}
	out := make([]job.State, 0, len(order))
	for _, id := range order {
		out = append(out, last[id])
	}
	return out
}

func hasArg(argv []string, fragment string) bool {
	for _, arg := range argv {
		if strings.Contains(arg, fragment) {
			return true
		}
	}
	return false
}
