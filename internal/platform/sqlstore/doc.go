// Package sqlstore implements the store interfaces on database/sql for two
// dialects: PostgreSQL through the pgx stdlib driver, and SQLite through the
// pure-Go modernc driver for single-node deployments and tests.
//
// Queries are built with squirrel so the placeholder format follows the
// dialect. Schema changes are embedded goose migrations, one directory per
// dialect.
//
// Task status transitions are conditional UPDATEs that only match rows still
// in an active status, so concurrent writers can never move a task out of a
// terminal state.
package sqlstore
