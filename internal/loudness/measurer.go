package loudness

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"musicforge/internal/engine"
	"musicforge/internal/logging"
	"musicforge/internal/media"
	"musicforge/internal/services"
	"musicforge/internal/settings"
)

const (
	minTimeout = 30 * time.Second
	maxTimeout = 300 * time.Second
)

// Runner executes one engine invocation.
type Runner interface {
	Run(ctx context.Context, argv []string, opts engine.RunOptions) (engine.Result, error)
}

// Measurer runs measurement passes.
type Measurer struct {
	runner  Runner
	manager engine.Manager
	logger  *slog.Logger
}

// NewMeasurer constructs a Measurer.
func NewMeasurer(runner Runner, manager engine.Manager, logger *slog.Logger) *Measurer {
	return &Measurer{
		runner:  runner,
		manager: manager,
		logger:  logging.NewComponentLogger(logger, "loudness"),
	}
}

// Timeout returns clamp(30s, 300s, 2 x duration); 30s when the duration is
// unknown.
func Timeout(durationSeconds float64) time.Duration {
	if durationSeconds <= 0 {
		return minTimeout
	}
	timeout := time.Duration(int(durationSeconds*2)) * time.Second
	if timeout < minTimeout {
		return minTimeout
	}
	if timeout > maxTimeout {
		return maxTimeout
	}
	return timeout
}

// Args builds the measurement-only argv. Output is discarded to the null
// muxer; loudnorm prints its report at info level, so the log level is not
// lowered to error here.
func Args(binary, source string, n settings.Normalization) []string {
	return []string{
		binary,
		"-hide_banner", "-nostats", "-v", "info",
		"-i", source,
		"-af", "loudnorm=I=" + formatFloat(n.TargetLUFS) +
			":TP=" + formatFloat(n.TruePeak) +
			":LRA=" + formatFloat(n.LRA) +
			":print_format=json",
		"-f", "null", "-",
	}
}

// Measure runs one measurement pass. On any failure it returns nil and an
// error wrapping ErrMeasurementTimeout, ErrMeasurementParse, or ErrCancelled.
func (m *Measurer) Measure(ctx context.Context, file media.FileInfo, s settings.Settings) (*Measurement, error) {
	logger := logging.WithContext(ctx, m.logger)
	argv := Args(m.manager.Binary(), file.Path, s.Normalization)
	timeout := Timeout(file.Duration)

	result, err := m.runner.Run(ctx, argv, engine.RunOptions{Timeout: timeout})
	if err != nil {
		switch {
		case services.IsCancellation(err):
			return nil, err
		case errors.Is(err, services.ErrTimeout):
			return nil, services.Wrap(services.ErrMeasurementTimeout, "loudness", "measure", "measurement exceeded "+timeout.String(), err)
		default:
			return nil, services.Wrap(services.ErrMeasurementParse, "loudness", "measure", "measurement pass failed", err)
		}
	}

	measurement, err := Parse(result.Stderr)
	if err != nil {
		return nil, err
	}
	logger.Debug("loudness measured",
		logging.String("source", file.Path),
		logging.Float64("input_i", measurement.InputI),
		logging.Float64("input_tp", measurement.InputTP),
		logging.Float64("input_lra", measurement.InputLRA),
		logging.Float64("input_thresh", measurement.InputThresh),
		logging.Float64("target_offset", measurement.TargetOffset),
	)
	return measurement, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
