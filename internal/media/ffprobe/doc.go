// Package ffprobe provides a typed wrapper around ffprobe output for audio
// sources.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: audio stream properties (codec, rate, channels, tags)
//   - Format: container-level metadata (duration, size, bitrate, tags)
//
// Entry points:
//   - Inspect: executes ffprobe and returns the parsed Result
//   - Duration: reads only the container duration in seconds
package ffprobe
