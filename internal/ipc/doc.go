// Package ipc exposes the watch daemon over JSON-RPC on a Unix socket and
// ships the matching client used by the CLI.
//
// It owns socket lifecycle management, the request/response DTOs, and the
// conversion from daemon and dispatcher status into those wire types.
package ipc
