// Package engine adapts the external transcoding engine (ffmpeg) into Go.
//
// Manager is the injected view of the engine installation: binary discovery,
// encoder capability probing, and duration probing. FFmpeg implements it for
// a real installation; tests substitute fakes.
//
// Runner spawns one engine invocation in its own process group, drains
// stdout and stderr on separate goroutines, turns the `-progress pipe:1`
// key=value stream into Progress events, and stops the process with an
// escalating SIGINT, SIGTERM, SIGKILL sequence when the context is cancelled
// or the run times out. Cancelled and timed-out runs report distinct
// outcomes and never masquerade as generic failures.
package engine
