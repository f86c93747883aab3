package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"musicforge/internal/logging"
	"musicforge/internal/services"
)

// CancelledExitCode is reported for runs stopped by cancellation or timeout.
// The engine itself never exits with it.
const CancelledExitCode = -1

const (
	defaultGrace       = 2 * time.Second
	defaultJoinTimeout = 2 * time.Second
	maxLineBytes       = 1 << 20
)

// Outcome classifies how a run ended.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeFailed
	OutcomeCancelled
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// RunOptions tunes one invocation.
type RunOptions struct {
	// TotalDuration is the source duration in seconds; 0 disables percent
	// reporting until progress=end.
	TotalDuration float64
	// Timeout bounds the wall-clock run time; 0 disables it.
	Timeout time.Duration
	// Progress receives events. Sends never block the stdout reader except
	// for the terminal event, which waits up to the join timeout.
	Progress chan<- Progress
}

// Result captures everything the engine produced.
type Result struct {
	Outcome  Outcome
	ExitCode int
	Stdout   string
	Stderr   string
	// LastError is the last non-empty stderr line.
	LastError string
	Elapsed   time.Duration
}

// Runner executes engine invocations.
type Runner struct {
	// Grace is the wait between escalation signals.
	Grace time.Duration
	// JoinTimeout bounds how long Run waits for the output readers after
	// the process has exited.
	JoinTimeout time.Duration
	logger      *slog.Logger
}

// NewRunner constructs a Runner with the given escalation grace period. A
// non-positive grace selects the 2s default.
func NewRunner(grace time.Duration, logger *slog.Logger) *Runner {
	if grace <= 0 {
		grace = defaultGrace
	}
	return &Runner{
		Grace:       grace,
		JoinTimeout: defaultJoinTimeout,
		logger:      logging.NewComponentLogger(logger, "engine"),
	}
}

// Run spawns argv and blocks until it exits, is cancelled through ctx, or
// times out. The returned error is nil only for OutcomeCompleted; the Result
// is populated in every case where the process started.
func (r *Runner) Run(ctx context.Context, argv []string, opts RunOptions) (Result, error) {
	if len(argv) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "engine", "run", "empty argument vector", nil)
	}
	logger := logging.WithContext(ctx, r.logger)
	grace := r.Grace
	if grace <= 0 {
		grace = defaultGrace
	}
	joinTimeout := r.JoinTimeout
	if joinTimeout <= 0 {
		joinTimeout = defaultJoinTimeout
	}

	if err := ctx.Err(); err != nil {
		result := Result{Outcome: OutcomeCancelled, ExitCode: CancelledExitCode}
		return result, services.Wrap(services.ErrCancelled, "engine", "run", "Cancelled", err)
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return Result{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return Result{}, fmt.Errorf("stderr pipe: %w", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	started := time.Now()
	startErr := cmd.Start()
	// The child holds its own copies; readers see EOF once every writer is gone.
	stdoutW.Close()
	stderrW.Close()
	if startErr != nil {
		stdoutR.Close()
		stderrR.Close()
		if errors.Is(startErr, exec.ErrNotFound) || errors.Is(startErr, fs.ErrNotExist) || errors.Is(startErr, fs.ErrPermission) {
			return Result{}, services.Wrap(services.ErrEngineNotFound, "engine", "start", argv[0], startErr)
		}
		return Result{}, services.Wrap(services.ErrExternalTool, "engine", "start", argv[0], startErr)
	}
	logger.Debug("engine started",
		logging.Int("pid", cmd.Process.Pid),
		logging.String("argv", strings.Join(argv, " ")),
	)

	var stdoutBuf, stderrBuf lockedBuffer
	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		r.readProgress(stdoutR, &stdoutBuf, opts, joinTimeout)
	}()
	go func() {
		defer readers.Done()
		_, _ = io.Copy(&stderrBuf, stderrR)
	}()

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	var timeoutC <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	outcome := OutcomeCompleted
	var waitErr error
	select {
	case waitErr = <-waitDone:
	case <-ctx.Done():
		outcome = OutcomeCancelled
		waitErr = r.escalate(logger, cmd.Process.Pid, waitDone, grace)
	case <-timeoutC:
		outcome = OutcomeTimeout
		logging.WarnWithContext(logger, "engine timed out; stopping", "engine_timeout",
			logging.String(logging.FieldErrorHint, "raise engine.job_timeout_seconds for long sources"),
			logging.String(logging.FieldImpact, "job is reported as failed"),
			logging.Duration("timeout", opts.Timeout),
		)
		waitErr = r.escalate(logger, cmd.Process.Pid, waitDone, grace)
	}

	if !joinWithin(&readers, joinTimeout) {
		// A grandchild still holds a pipe open; closing our ends unblocks the readers.
		stdoutR.Close()
		stderrR.Close()
		if !joinWithin(&readers, joinTimeout) {
			logging.WarnWithContext(logger, "engine output readers did not exit", "engine_reader_leak",
				logging.String(logging.FieldErrorHint, "a child process of the engine kept its output open"),
				logging.String(logging.FieldImpact, "captured output may be truncated"),
			)
		}
	}
	stdoutR.Close()
	stderrR.Close()

	result := Result{
		Outcome: outcome,
		Stdout:  stdoutBuf.String(),
		Stderr:  stderrBuf.String(),
		Elapsed: time.Since(started),
	}
	result.LastError = LastLine(result.Stderr)

	switch outcome {
	case OutcomeCancelled:
		result.ExitCode = CancelledExitCode
		return result, services.Wrap(services.ErrCancelled, "engine", "run", "Cancelled", ctx.Err())
	case OutcomeTimeout:
		result.ExitCode = CancelledExitCode
		return result, services.Wrap(services.ErrTimeout, "engine", "run", fmt.Sprintf("timed out after %s", opts.Timeout), nil)
	}

	result.ExitCode = exitCode(cmd, waitErr)
	if result.ExitCode != 0 {
		result.Outcome = OutcomeFailed
		message := result.LastError
		if message == "" {
			message = fmt.Sprintf("exit code %d", result.ExitCode)
		}
		logger.Debug("engine failed",
			logging.Int("exit_code", result.ExitCode),
			logging.String("stderr", result.Stderr),
		)
		return result, services.Wrap(services.ErrEngineExitNonzero, "engine", "run", message, nil)
	}
	return result, nil
}

func (r *Runner) readProgress(src io.Reader, sink io.Writer, opts RunOptions, terminalWait time.Duration) {
	parser := newProgressParser(opts.TotalDuration)
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Text()
		_, _ = sink.Write([]byte(line + "\n"))
		ev, ok := parser.feed(line)
		if !ok || opts.Progress == nil {
			continue
		}
		if ev.Done {
			timer := time.NewTimer(terminalWait)
			select {
			case opts.Progress <- ev:
			case <-timer.C:
			}
			timer.Stop()
			continue
		}
		select {
		case opts.Progress <- ev:
		default:
		}
	}
	// Drain anything after a scanner error so the child never blocks on a full pipe.
	_, _ = io.Copy(sink, src)
}

// escalate stops the process group: SIGINT, then SIGTERM, then SIGKILL,
// waiting grace between each step.
func (r *Runner) escalate(logger *slog.Logger, pgid int, waitDone <-chan error, grace time.Duration) error {
	steps := []struct {
		sig  unix.Signal
		name string
	}{
		{unix.SIGINT, "SIGINT"},
		{unix.SIGTERM, "SIGTERM"},
		{unix.SIGKILL, "SIGKILL"},
	}
	for _, step := range steps {
		if err := unix.Kill(-pgid, step.sig); err != nil && !errors.Is(err, unix.ESRCH) {
			logger.Debug("signal delivery failed", logging.String("signal", step.name), logging.Error(err))
		} else {
			logger.Debug("signal sent", logging.String("signal", step.name), logging.Int("pgid", pgid))
		}
		timer := time.NewTimer(grace)
		select {
		case err := <-waitDone:
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return <-waitDone
}

func joinWithin(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		if code := cmd.ProcessState.ExitCode(); code >= 0 {
			return code
		}
		return 1
	}
	if waitErr != nil {
		return 1
	}
	return 0
}

// LastLine returns the last non-empty line of text.
func LastLine(text string) string {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
