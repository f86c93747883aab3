// Package settings defines the immutable per-batch processing settings, their
// validation rules, and the built-in presets.
//
// A Settings value is produced once per batch (from configuration, presets,
// and CLI overrides) and is then shared read-only by every worker.
package settings
