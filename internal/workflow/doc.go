// Package workflow runs batches of transcode jobs through a bounded worker
// pool.
//
// A Dispatcher owns the engine, the measurement pass, and the shared output
// reservations. Each Session is one batch: a FIFO of queued jobs drained by
// EffectiveCap workers, where every job passes the output guards, optionally
// measures loudness, runs exactly one corrective engine pass, and commits
// its output atomically. Submit is the one-shot form used by the run
// command; the watch daemon keeps a Session open and feeds it with Enqueue.
//
// State changes are published on the session's updates channel as value
// copies and mirrored into the optional history store, metrics, and
// notifier. RequestStop is global and one-way: every session's context is
// cancelled, in-flight engines are stopped by the runner's signal
// escalation, and queued jobs end as Skipped "Cancelled".
package workflow
