// Package metrics exposes Prometheus collectors for the dispatcher: job
// outcomes, in-flight workers, queue depth, engine wall time, and two-pass
// fallbacks.
//
// Collectors are registered against a caller-supplied registry so tests and
// the watch daemon can each own one. A nil *Dispatcher is valid and records
// nothing, which keeps the one-shot CLI path free of metric plumbing.
package metrics
