// Package daemon coordinates the long-running folder-watch process.
//
// It wires configuration, the history store, the dispatcher, the watch
// monitor, and the optional metrics endpoint into a single lifecycle with
// flock-based locking to prevent multiple instances. Every file the monitor
// settles is enqueued into one long-lived dispatcher session that stays open
// until Stop.
//
// Keep orchestration logic here: transcoding lives in workflow and file
// discovery in watch, while the daemon focuses on startup, shutdown, and
// status reporting.
package daemon
