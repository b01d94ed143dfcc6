package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrServiceUnavailable marks a transient remote failure: network error,
	// timeout or a server-side status. Work that fails this way is retried.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrServiceRejected marks a remote refusal of the request itself, or a
	// response that cannot be understood. It is never retried.
	ErrServiceRejected = errors.New("service rejected request")

	// ErrInvalidStateTransition is returned when an operation is not allowed
	// from the task's current status.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrProjectionFailure marks a failed write of analysis results onto the
	// owning paper. It is logged and never changes the task's status.
	ErrProjectionFailure = errors.New("projection failure")

	// ErrNoBackend is returned when no active service accepts a task type.
	ErrNoBackend = errors.New("no backend available for task type")
)

// ServiceError describes a failed call to a remote analysis service. Kind is
// either ErrServiceUnavailable or ErrServiceRejected, so callers classify it
// with errors.Is.
type ServiceError struct {
	Kind       error
	Service    string
	Operation  string
	StatusCode int
	// Detail is the redacted response body or transport error text.
	Detail string
	Err    error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("%v: %s %s", e.Kind, e.Service, e.Operation)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap exposes both the classification and the underlying cause.
func (e *ServiceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewServiceUnavailable builds a transient ServiceError.
func NewServiceUnavailable(service, operation string, status int, detail string, err error) *ServiceError {
	return &ServiceError{
		Kind:       ErrServiceUnavailable,
		Service:    service,
		Operation:  operation,
		StatusCode: status,
		Detail:     detail,
		Err:        err,
	}
}

// NewServiceRejected builds a terminal ServiceError.
func NewServiceRejected(service, operation string, status int, detail string, err error) *ServiceError {
	return &ServiceError{
		Kind:       ErrServiceRejected,
		Service:    service,
		Operation:  operation,
		StatusCode: status,
		Detail:     detail,
		Err:        err,
	}
}
