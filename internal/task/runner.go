package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/redact"
	"github.com/kaushalacts/research-ai-platform/internal/store"
)

// ErrRunnerStopped is returned by Enqueue after Stop.
var ErrRunnerStopped = errors.New("task runner is stopped")

// maintenanceBatch bounds how many tasks one maintenance pass touches.
const maintenanceBatch = 500

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many submissions run concurrently
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory job queue
	QueueSize int

	// StuckTaskAge defines how long a task can stay processing before it is
	// failed. Zero disables the check.
	StuckTaskAge time.Duration

	// MaintenanceInterval defines how often orphaned and stuck tasks are
	// looked for. If zero, defaults to 5 minutes
	MaintenanceInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:         4,
		QueueSize:           100,
		StuckTaskAge:        time.Hour,
		MaintenanceInterval: 5 * time.Minute,
	}
}

// TaskRunner schedules submissions on a worker pool and applies the retry
// policy. The set of in-flight tasks is local to the process, so a single
// runner is assumed per database.
type TaskRunner struct {
	dispatcher *Dispatcher
	store      store.TaskStore
	policy     RetryPolicy
	queue      *TaskQueue
	config     TaskRunnerConfig
	logger     *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
	stopped  bool
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(
	dispatcher *Dispatcher,
	tasks store.TaskStore,
	policy RetryPolicy,
	config TaskRunnerConfig,
	logger *slog.Logger,
) *TaskRunner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.MaintenanceInterval <= 0 {
		config.MaintenanceInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "task_runner")

	ctx, cancel := context.WithCancel(context.Background())
	return &TaskRunner{
		dispatcher: dispatcher,
		store:      tasks,
		policy:     policy,
		queue:      NewTaskQueue(config.QueueSize, logger),
		config:     config,
		logger:     logger,
		ctx:        ctx,
		cancelFunc: cancel,
		inflight:   make(map[uuid.UUID]struct{}),
	}
}

// Enqueue schedules the first submission attempt for a task. A task that is
// already waiting, running or backing off is not scheduled twice.
func (r *TaskRunner) Enqueue(taskID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrRunnerStopped
	}
	if _, busy := r.inflight[taskID]; busy {
		return nil
	}
	if err := r.queue.enqueue(job{taskID: taskID, attempt: 1}); err != nil {
		return err
	}
	r.inflight[taskID] = struct{}{}
	return nil
}

// Start recovers queued tasks and begins processing.
func (r *TaskRunner) Start() error {
	if err := r.Recover(r.ctx); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.maintenanceLoop()

	return nil
}

// Stop cancels in-flight work and pending retries and waits for every
// goroutine to finish. Interrupted tasks stay queued and are recovered on
// the next start.
func (r *TaskRunner) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	r.cancelFunc()
	r.wg.Wait()
	r.queue.Close()
}

// Recover enqueues every task still queued from a previous run.
func (r *TaskRunner) Recover(ctx context.Context) error {
	queued, err := r.store.ListStale(ctx, domain.TaskStatusQueued, time.Now().UTC().Add(time.Second), 0)
	if err != nil {
		return fmt.Errorf("failed to get queued tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks", "queued_count", len(queued))
	r.requeue(queued)
	return nil
}

// Maintain runs one maintenance pass: orphaned queued tasks are enqueued
// again and tasks stuck in processing are failed.
func (r *TaskRunner) Maintain(ctx context.Context) {
	now := time.Now().UTC()

	orphans, err := r.store.ListStale(ctx, domain.TaskStatusQueued, now.Add(-r.config.MaintenanceInterval), maintenanceBatch)
	if err != nil {
		r.logger.Error("failed to list orphaned tasks", "error", err)
	} else if len(orphans) > 0 {
		r.requeue(orphans)
	}

	if r.config.StuckTaskAge <= 0 {
		return
	}
	stuck, err := r.store.ListStale(ctx, domain.TaskStatusProcessing, now.Add(-r.config.StuckTaskAge), maintenanceBatch)
	if err != nil {
		r.logger.Error("failed to check for stuck tasks", "error", err)
		return
	}
	if len(stuck) > 0 {
		r.logger.Info("found stuck tasks", "count", len(stuck))
	}
	reason := fmt.Sprintf("timed out waiting for a result after %s", r.config.StuckTaskAge)
	for _, t := range stuck {
		if _, err := r.dispatcher.Fail(ctx, t.ID, reason); err != nil {
			r.logger.Error("failed to fail stuck task",
				"task_id", t.ID,
				"task_type", t.Type,
				"error", err)
		}
	}
}

func (r *TaskRunner) requeue(tasks []*domain.AnalysisTask) {
	for _, t := range tasks {
		err := r.Enqueue(t.ID)
		if errors.Is(err, ErrQueueFull) {
			r.logger.Warn("queue is full, remaining tasks wait for the next maintenance pass",
				"task_id", t.ID)
			return
		}
		if err != nil {
			r.logger.Error("failed to requeue task", "task_id", t.ID, "error", err)
			return
		}
	}
}

func (r *TaskRunner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case j, ok := <-r.queue.channel():
			if !ok {
				return
			}
			r.process(j, id)
		}
	}
}

// process runs one submission attempt and applies the retry policy to its
// outcome.
func (r *TaskRunner) process(j job, workerID int) {
	logger := r.logger.With(
		"task_id", j.taskID,
		"attempt", j.attempt,
		"worker_id", workerID,
	)

	_, err := r.dispatcher.Submit(r.ctx, j.taskID)
	if err == nil {
		r.release(j.taskID)
		return
	}
	if r.ctx.Err() != nil {
		logger.Info("submission interrupted by shutdown, task stays queued")
		r.release(j.taskID)
		return
	}
	if errors.Is(err, store.ErrTaskNotFound) {
		logger.Warn("task disappeared before submission")
		r.release(j.taskID)
		return
	}

	decision := r.policy.Next(j.attempt, err)
	detail := redact.Error(err)

	switch {
	case decision.Retry:
		logger.Warn("submission failed, retry scheduled",
			"delay", decision.Delay,
			"error", detail)
		r.dispatcher.emit(r.ctx, j.taskID, domain.TaskEventRetryScheduled, domain.TaskStatusQueued,
			fmt.Sprintf("attempt %d failed: %s", j.attempt, detail))
		r.scheduleRetry(job{taskID: j.taskID, attempt: j.attempt + 1}, decision.Delay)
		return

	case decision.Exhausted:
		logger.Error("retries exhausted, failing task",
			"max_attempts", r.policy.MaxAttempts,
			"error", detail)
		r.dispatcher.emit(r.ctx, j.taskID, domain.TaskEventRetriesExhausted, domain.TaskStatusQueued,
			fmt.Sprintf("%d attempts failed", j.attempt))
		detail = fmt.Sprintf("retries exhausted after %d attempts: %s", j.attempt, detail)

	default:
		logger.Error("submission failed permanently", "error", detail)
	}

	if _, err := r.dispatcher.Fail(r.ctx, j.taskID, detail); err != nil {
		logger.Error("failed to record task failure", "error", err)
	}
	r.release(j.taskID)
}

// scheduleRetry re-enqueues a job after delay without holding a worker.
// The task stays in flight while it waits.
func (r *TaskRunner) scheduleRetry(j job, delay time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-r.ctx.Done():
			r.release(j.taskID)
			return
		case <-timer.C:
		}

		select {
		case <-r.ctx.Done():
			r.release(j.taskID)
		case r.queue.jobs <- j:
		}
	}()
}

func (r *TaskRunner) release(taskID uuid.UUID) {
	r.mu.Lock()
	delete(r.inflight, taskID)
	r.mu.Unlock()
}

// InFlight returns the number of tasks waiting, running or backing off.
func (r *TaskRunner) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}

func (r *TaskRunner) maintenanceLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.Maintain(r.ctx)
		}
	}
}
