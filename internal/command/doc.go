// Package command turns batch settings and one source file into the engine
// argument vector.
//
// Building is pure: the only outside knowledge is the Capabilities value
// answering whether optional encoders such as libfdk_aac exist. The filter
// chain is always emitted as loudness normalization, fade-in, fade-out
// because the engine's filter graph is order dependent.
package command
