// Package events carries the task lifecycle audit trail.
//
// The dispatcher and runner emit a domain.TaskEvent at every lifecycle step
// (created, submitted, retry scheduled, completed, failed, cancelled, result
// discarded, projection failed) without knowing who consumes them. The
// in-memory emitter fans each event out to registered handlers; Recorder
// persists events into the task_events table so they can be served back to
// callers.
//
// Emission is best effort from the dispatcher's point of view: a handler
// error is logged and returned, but never changes a task's status.
package events
