// Package config loads, normalizes, and validates MusicForge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// MUSICFORGE_FFMPEG and MUSICFORGE_NTFY_TOPIC. The Config type centralizes
// every knob the CLI and watch daemon need, and Settings turns the processing
// sections plus an optional preset into the per-batch settings value.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
