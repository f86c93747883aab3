// Package job holds the per-file state machine of a batch.
//
// A State moves Queued -> Processing -> {Completed, Skipped, Failed}. Skip,
// fail, and cancel are kept apart through the tagged Status value: a
// user-initiated stop is Skipped "Cancelled", never Failed. Guard runs the
// pre-flight checks that decide whether a job may write its output path, and
// Namer resolves output paths and metadata tags from templates.
package job
