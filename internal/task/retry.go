package task

import (
	"context"
	"errors"
	"time"

	"github.com/kaushalacts/research-ai-platform/internal/domain"
)

// RetryPolicy decides whether a failed submission is attempted again.
// Backoff is fixed, not exponential.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	Retryable   func(error) bool
}

// DefaultRetryPolicy allows three attempts one minute apart for transient
// failures.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     60 * time.Second,
		Retryable:   IsTransient,
	}
}

// IsTransient reports whether err is worth retrying: a service outage or a
// timeout.
func IsTransient(err error) bool {
	return errors.Is(err, domain.ErrServiceUnavailable) || errors.Is(err, context.DeadlineExceeded)
}

// RetryDecision is the outcome of RetryPolicy.Next.
type RetryDecision struct {
	// Retry means another attempt should run after Delay.
	Retry bool
	Delay time.Duration
	// Exhausted means the error was retryable but no attempts are left.
	Exhausted bool
}

// Next decides what follows the given attempt (1-based) failing with err.
func (p RetryPolicy) Next(attempt int, err error) RetryDecision {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	if err == nil || !retryable(err) {
		return RetryDecision{}
	}
	if attempt >= p.MaxAttempts {
		return RetryDecision{Exhausted: true}
	}
	return RetryDecision{Retry: true, Delay: p.Backoff}
}
