// Package api serves the caller-facing HTTP API: creating, listing,
// inspecting and cancelling analysis tasks, reading service registrations,
// and receiving result callbacks from remote services. Handlers translate
// HTTP concerns to Dispatcher operations and map the error taxonomy to
// status codes.
package api
