package workflow

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"musicforge/internal/command"
	"musicforge/internal/engine"
	"musicforge/internal/fileutil"
	"musicforge/internal/job"
	"musicforge/internal/logging"
	"musicforge/internal/loudness"
	"musicforge/internal/notifications"
	"musicforge/internal/services"
)

// FallbackWarning prefixes the warning attached to two-pass jobs whose
// measurement failed.
const FallbackWarning = "two-pass fallback"

const progressLogBucket = 5

// runJob drives one job from Queued to a terminal state.
func (s *Session) runJob(worker int, st *job.State) {
	ctx := services.WithJobID(s.ctx, st.ID)
	ctx = services.WithWorker(ctx, worker)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, s.d.logger)

	if ctx.Err() != nil {
		s.transition(st, job.Cancelled())
		return
	}
	info, err := os.Stat(st.File.Path)
	if err != nil {
		s.fail(logger, st, services.Wrap(services.ErrNotFound, "dispatcher", "stat source", st.File.Path, err), "")
		return
	}
	if info.IsDir() {
		s.fail(logger, st, services.Wrap(services.ErrValidation, "dispatcher", "stat source", st.File.Path+" is a directory", nil), "")
		return
	}

	file := st.File
	if file.Duration <= 0 {
		if duration, err := s.d.manager.ProbeDuration(ctx, file.Path); err == nil && duration > 0 {
			file.Duration = duration
			st.File = file
		}
	}

	target := job.OutputPath(file, s.settings, st.Index)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		s.fail(logger, st, services.Wrap(services.ErrConfiguration, "dispatcher", "prepare output", filepath.Dir(target), err), "")
		return
	}
	output, err := job.Guard(file.Path, target, s.settings, s.d.reservations)
	if err != nil {
		status := job.Classify(err, "")
		logger.Info("job not started",
			logging.String(logging.FieldEventType, "job_guarded"),
			logging.String("source", file.Path),
			logging.String("output", target),
			logging.String("status", status.String()),
		)
		s.transition(st, status)
		return
	}
	st.Output = output
	s.transition(st, job.Processing())
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("source", file.Path),
		logging.String("output", output),
	)

	var measured *loudness.Measurement
	if s.settings.TwoPass() {
		measured, err = s.d.measurer.Measure(ctx, file, s.settings)
		switch {
		case err == nil:
			s.d.metrics.Measured("ok")
			st.Measured = measured
		case services.IsCancellation(err):
			s.d.reservations.Release(output)
			s.transition(st, job.Cancelled())
			return
		default:
			s.fallback(logger, st, err)
		}
	}

	partial := fileutil.PartialPath(output)
	if err := os.Remove(partial); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Debug("stale partial output not removed", logging.String("path", partial), logging.Error(err))
	}
	argv := s.d.builder.Build(command.Request{
		File:     file,
		Settings: s.settings,
		Output:   partial,
		Tags:     job.Tags(file, s.settings, st.Index),
		Measured: measured,
	})

	result, runErr := s.runEngine(ctx, st, argv, file.Duration)
	if runErr == nil {
		runErr = fileutil.Commit(partial, output)
		if runErr != nil {
			runErr = services.Wrap(services.ErrExternalTool, "dispatcher", "commit output", output, runErr)
		}
	}
	if runErr != nil {
		_ = os.Remove(partial)
		s.d.reservations.Release(output)
		if services.IsCancellation(runErr) {
			logger.Info("job cancelled", logging.String(logging.FieldEventType, "job_cancelled"))
			s.transition(st, job.Cancelled())
			return
		}
		detail := result.LastError
		if errors.Is(runErr, services.ErrTimeout) {
			detail = "engine timed out after " + s.d.jobTimeout.String()
		}
		s.fail(logger, st, runErr, detail)
		return
	}

	// The committed file now holds the path on disk.
	s.d.reservations.Release(output)
	s.transition(st, job.Completed(""))
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("output", output),
		logging.Duration("elapsed", st.Duration()),
		logging.Int("warnings", len(st.Warnings)),
	)
}

// fallback records a failed measurement; the corrective pass then runs with
// single-pass normalization.
func (s *Session) fallback(logger *slog.Logger, st *job.State, err error) {
	result := "parse"
	if errors.Is(err, services.ErrMeasurementTimeout) {
		result = "timeout"
	}
	s.d.metrics.Measured(result)
	s.d.metrics.Fallback()
	st.Warn(FallbackWarning + ": " + err.Error())
	logging.WarnWithContext(logger, "loudness measurement failed; using one-pass normalization", "two_pass_fallback",
		logging.String("source", st.File.Path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check that the source decodes cleanly"),
		logging.String(logging.FieldImpact, "output is normalized in a single pass"),
	)
}

// fail ends st as Failed. detail, when set, is the engine's last stderr line.
func (s *Session) fail(logger *slog.Logger, st *job.State, err error, detail string) {
	status := job.Classify(err, detail)
	logger.Error("job failed",
		logging.String(logging.FieldEventType, "job_failed"),
		logging.String("source", st.File.Path),
		logging.String("message", status.Message),
		logging.Error(err),
	)
	s.transition(st, status)
	if err := s.d.notifier.Publish(context.WithoutCancel(s.ctx), notifications.EventError, notifications.Payload{
		"error":   status.Message,
		"context": filepath.Base(st.File.Path),
	}); err != nil {
		logger.Debug("job failure notification failed", logging.Error(err))
	}
}

// runEngine executes the corrective pass, folding progress events into st
// until the run returns.
func (s *Session) runEngine(ctx context.Context, st *job.State, argv []string, duration float64) (engine.Result, error) {
	progress := make(chan engine.Progress, 16)
	stop := make(chan struct{})
	forwarded := make(chan struct{})
	logger := logging.WithContext(ctx, s.d.logger)
	sampler := logging.NewProgressSampler(progressLogBucket)

	go func() {
		defer close(forwarded)
		for {
			select {
			case ev := <-progress:
				s.applyProgress(logger, sampler, st, ev)
			case <-stop:
				for {
					select {
					case ev := <-progress:
						s.applyProgress(logger, sampler, st, ev)
					default:
						return
					}
				}
			}
		}
	}()
	defer func() {
		close(stop)
		<-forwarded
	}()

	logger.Debug("engine invocation", logging.String("argv", strings.Join(argv, " ")))
	return s.d.runner.Run(ctx, argv, engine.RunOptions{
		TotalDuration: duration,
		Timeout:       s.d.jobTimeout,
		Progress:      progress,
	})
}

func (s *Session) applyProgress(logger *slog.Logger, sampler *logging.ProgressSampler, st *job.State, ev engine.Progress) {
	if ev.Percent < st.Percent {
		return
	}
	st.Percent = ev.Percent
	st.ETA = ev.ETA
	if sampler.ShouldLog(ev.Percent, "encode") {
		logger.Info("job progress",
			logging.String(logging.FieldEventType, "job_progress"),
			logging.Float64("percent", ev.Percent),
			logging.Duration("eta", ev.ETA),
			logging.Float64("speed", ev.Speed),
		)
	}
	s.publish(st.Snapshot(), false)
}
