// Package watch feeds audio files that appear in a directory into a running
// batch session.
//
// fsnotify events are the primary signal and a periodic rescan catches
// anything the watcher missed (network mounts, overflowed event queues, a
// watcher that could not be created). A file is enqueued once it has stopped
// growing for the settle delay, and at most once per Monitor.
package watch
