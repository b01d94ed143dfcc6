package task

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Common errors returned by the TaskQueue
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// job is one submission attempt for a task. attempt is 1-based and lives
// only in memory.
type job struct {
	taskID  uuid.UUID
	attempt int
}

// TaskQueue is a bounded buffer of submission jobs.
type TaskQueue struct {
	mu     sync.RWMutex
	jobs   chan job
	logger *slog.Logger
	closed bool
}

// NewTaskQueue creates a new task queue with the specified buffer size
func NewTaskQueue(size int, logger *slog.Logger) *TaskQueue {
	if size <= 0 {
		size = 1
	}
	return &TaskQueue{
		jobs:   make(chan job, size),
		logger: logger,
	}
}

// enqueue adds a job without blocking.
func (q *TaskQueue) enqueue(j job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- j:
		q.logger.Debug("task enqueued",
			"task_id", j.taskID,
			"attempt", j.attempt,
			"queue_len", len(q.jobs),
			"queue_cap", cap(q.jobs))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.jobs))
	}
}

// Close closes the task queue, preventing further task submission
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
		q.logger.Info("task queue closed")
	}
}

// Len returns the number of waiting jobs.
func (q *TaskQueue) Len() int {
	return len(q.jobs)
}

func (q *TaskQueue) channel() <-chan job {
	return q.jobs
}
