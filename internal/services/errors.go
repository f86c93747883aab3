package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Job and batch failure categories. Only ErrEngineNotFound is fatal to a
// whole batch; the rest are scoped to a single job.
var (
	ErrEngineNotFound     = errors.New("engine not found")
	ErrDestinationExists  = errors.New("destination exists")
	ErrSelfOverwrite      = errors.New("refusing self-overwrite")
	ErrMeasurementTimeout = errors.New("measurement timeout")
	ErrMeasurementParse   = errors.New("measurement parse error")
	ErrEngineExitNonzero  = errors.New("engine exited with nonzero status")
	ErrCancelled          = errors.New("cancelled")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsCancellation reports whether err stems from a user-initiated stop rather
// than a genuine failure.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// JobScoped reports whether err should be isolated to the job that produced
// it. Engine unavailability is the only batch-level condition.
func JobScoped(err error) bool {
	return err != nil && !errors.Is(err, ErrEngineNotFound)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
