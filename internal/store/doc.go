// Package store defines the persistence interfaces for analysis tasks,
// service registrations, papers and the task audit trail. Implementations
// live under internal/platform; the interfaces keep the dispatcher and the
// health monitor independent of the database in use.
package store
