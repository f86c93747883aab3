// Package services defines shared utilities consumed by the transcoding
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp batch IDs, job IDs, worker numbers, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures keep their
//     category (engine missing, destination exists, measurement problems,
//     cancellation) while carrying stage and operation context.
//
// Use these helpers when wiring new pipeline logic so error handling and
// observability stay uniform across packages.
package services
