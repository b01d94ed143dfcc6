// Package logger configures the application's structured JSON logging on
// top of log/slog and carries request-scoped loggers through a context.
package logger
