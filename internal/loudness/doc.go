// Package loudness runs the measurement pass of two-pass EBU R128
// normalization and parses the engine's loudnorm JSON report.
//
// A measurement failure is never fatal to a job: Measure returns a nil
// Measurement with a classified error and the caller falls back to one-pass
// normalization.
package loudness
