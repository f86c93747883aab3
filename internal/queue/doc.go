// Package queue persists batch and job history in SQLite.
//
// Every batch the dispatcher runs gets a row in batches, and each job state
// transition is upserted into jobs keyed by (batch_id, job_index), so the
// history command can list recent work and the watch daemon can report what
// it processed. The database is written with WAL journaling and a busy retry
// so a one-shot run and the watch daemon can share it.
//
// Rows left in processing by a process that no longer exists are reset to
// failed "interrupted" by ResetStuckProcessing. Schema changes bump the
// version in schema.go; users delete the database to adopt the new schema.
package queue
