// Package agents is the HTTP client for remote AI analysis services.
//
// A Client submits work, requests cancellation and probes health. It owns
// request timeouts and classifies every failure as either
// domain.ErrServiceUnavailable (transient) or domain.ErrServiceRejected
// (terminal). It keeps no task state.
package agents
