// Package task dispatches analysis tasks to remote services and tracks them
// through their lifecycle.
//
// Dispatcher owns the state machine: it creates queued tasks, submits them
// to the backend routed for their type, reconciles results (synchronous
// responses and callbacks alike), projects paper analysis onto the paper
// record and handles cancellation. Every mutation goes through the store's
// conditional transitions, so a terminal task is never changed again and a
// late result for a cancelled task is discarded.
//
// TaskRunner is the scheduling layer. It runs each submission as an
// independent job on a worker pool, applies the RetryPolicy with a fixed
// backoff between attempts, recovers queued tasks on start and periodically
// requeues orphaned tasks and fails tasks stuck in processing.
package task
