package main

import (
	"errors"

	"musicforge/internal/services"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// exitError pins the process exit status for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: exitUsage, err: err}
}

// exitCodeOf maps a command error to the process exit status. Invalid
// settings and a missing engine are usage problems; everything else,
// including failed jobs and interruption, is a plain failure.
func exitCodeOf(err error) int {
	if err == nil {
		return exitOK
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrEngineNotFound),
		errors.Is(err, services.ErrConfiguration):
		return exitUsage
	default:
		return exitFailed
	}
}
