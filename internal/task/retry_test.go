package task_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/task"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	assert.True(t, task.IsTransient(domain.NewServiceUnavailable("a", "submit", 503, "", nil)))
	assert.True(t, task.IsTransient(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.False(t, task.IsTransient(domain.NewServiceRejected("a", "submit", 400, "", nil)))
	assert.False(t, task.IsTransient(errors.New("boom")))
	assert.False(t, task.IsTransient(task.ErrPayload))
}

func TestRetryPolicyNext(t *testing.T) {
	t.Parallel()

	policy := task.DefaultRetryPolicy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 60*time.Second, policy.Backoff)

	unavailable := domain.NewServiceUnavailable("a", "submit", 503, "", nil)
	rejected := domain.NewServiceRejected("a", "submit", 422, "", nil)

	tests := []struct {
		name    string
		attempt int
		err     error
		want    task.RetryDecision
	}{
		{"first transient failure", 1, unavailable, task.RetryDecision{Retry: true, Delay: 60 * time.Second}},
		{"second transient failure", 2, unavailable, task.RetryDecision{Retry: true, Delay: 60 * time.Second}},
		{"third transient failure", 3, unavailable, task.RetryDecision{Exhausted: true}},
		{"rejection is never retried", 1, rejected, task.RetryDecision{}},
		{"no error", 1, nil, task.RetryDecision{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, policy.Next(tt.attempt, tt.err))
		})
	}
}

func TestRetryPolicyCustomPredicate(t *testing.T) {
	t.Parallel()

	errFlaky := errors.New("flaky")
	policy := task.RetryPolicy{
		MaxAttempts: 2,
		Backoff:     time.Second,
		Retryable:   func(err error) bool { return errors.Is(err, errFlaky) },
	}
	assert.True(t, policy.Next(1, errFlaky).Retry)
	assert.True(t, policy.Next(2, errFlaky).Exhausted)
	assert.False(t, policy.Next(1, domain.ErrServiceUnavailable).Retry)
}
