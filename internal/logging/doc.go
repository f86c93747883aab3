// Package logging assembles structured slog loggers and formatting helpers used
// across MusicForge.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so pipeline code automatically tags log
// lines with batch IDs, job IDs, and worker numbers. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
