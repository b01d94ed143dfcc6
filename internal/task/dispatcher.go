package task

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/events"
	"github.com/kaushalacts/research-ai-platform/internal/platform/logger"
	"github.com/kaushalacts/research-ai-platform/internal/redact"
	"github.com/kaushalacts/research-ai-platform/internal/store"
)

// CallbackIssuer produces the callback address and token a remote service
// uses to post an asynchronous result for a task.
type CallbackIssuer interface {
	CallbackFor(taskID uuid.UUID) (url, token string, err error)
}

// CreateRequest describes a new analysis task.
type CreateRequest struct {
	ProjectID   uuid.UUID
	RequestedBy string
	Type        domain.TaskType
	Parameters  json.RawMessage
	TargetIDs   []uuid.UUID
}

// Dispatcher drives analysis tasks through the state machine.
type Dispatcher struct {
	tasks     store.TaskStore
	papers    store.PaperStore
	router    *Router
	events    events.EventEmitter
	callbacks CallbackIssuer
	logger    *slog.Logger
	now       func() time.Time
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithCallbacks makes submissions carry a callback URL and token.
func WithCallbacks(issuer CallbackIssuer) DispatcherOption {
	return func(d *Dispatcher) { d.callbacks = issuer }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a Dispatcher. A nil emitter discards events.
func NewDispatcher(
	tasks store.TaskStore,
	papers store.PaperStore,
	router *Router,
	emitter events.EventEmitter,
	log *slog.Logger,
	opts ...DispatcherOption,
) (*Dispatcher, error) {
	if tasks == nil {
		return nil, errors.New("task store cannot be nil")
	}
	if papers == nil {
		return nil, errors.New("paper store cannot be nil")
	}
	if router == nil {
		return nil, errors.New("router cannot be nil")
	}
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	if log == nil {
		log = slog.Default()
	}

	d := &Dispatcher{
		tasks:  tasks,
		papers: papers,
		router: router,
		events: emitter,
		logger: log.With(slog.String("component", "task_dispatcher")),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Create validates and stores a new queued task. Target papers must exist.
func (d *Dispatcher) Create(ctx context.Context, req CreateRequest) (*domain.AnalysisTask, error) {
	task, err := domain.NewAnalysisTask(req.ProjectID, req.RequestedBy, req.Type, req.Parameters, req.TargetIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	if len(task.TargetIDs) > 0 {
		if _, err := d.papers.GetMany(ctx, task.TargetIDs); err != nil {
			if errors.Is(err, store.ErrPaperNotFound) {
				return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
			}
			return nil, fmt.Errorf("failed to load target papers: %w", err)
		}
	}

	if err := d.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	d.log(ctx).InfoContext(ctx, "task created",
		slog.String("task_id", task.ID.String()),
		slog.String("task_type", string(task.Type)),
		slog.Int("target_count", len(task.TargetIDs)))
	d.emit(ctx, task.ID, domain.TaskEventCreated, domain.TaskStatusQueued, "")
	return task, nil
}

// Get returns the task.
func (d *Dispatcher) Get(ctx context.Context, id uuid.UUID) (*domain.AnalysisTask, error) {
	return d.tasks.Get(ctx, id)
}

// Submit sends a queued task to its backend. A task in any other status is
// returned unchanged without a network call.
//
// Backend errors are returned as-is and leave the task queued; deciding
// whether to retry or fail belongs to the caller's RetryPolicy. A
// synchronous result is reconciled immediately, an accepted one leaves the
// task processing until the result arrives.
func (d *Dispatcher) Submit(ctx context.Context, id uuid.UUID) (*domain.AnalysisTask, error) {
	task, err := d.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	log := d.log(ctx).With(slog.String("task_id", id.String()), slog.String("task_type", string(task.Type)))

	if task.Status != domain.TaskStatusQueued {
		log.DebugContext(ctx, "submit skipped", slog.String("status", string(task.Status)))
		return task, nil
	}

	backend, err := d.router.Resolve(task.Type)
	if err != nil {
		return task, err
	}

	payload, err := d.buildPayload(ctx, task)
	if err != nil {
		return task, err
	}

	d.setPaperStatus(ctx, task, domain.PaperStatusProcessing)

	resp, err := backend.Submit(ctx, task.Type, payload)
	if err != nil {
		log.WarnContext(ctx, "submission failed",
			slog.String("service", backend.Name()),
			slog.String("error", redact.Error(err)))
		return task, err
	}

	remoteID := resp.RemoteTaskID
	if remoteID == "" {
		remoteID = task.ID.String()
	}

	applied, err := d.tasks.MarkProcessing(ctx, id, backend.Name(), remoteID, d.now())
	if err != nil {
		return task, fmt.Errorf("failed to record submission: %w", err)
	}
	if !applied {
		return d.discardSubmission(ctx, id, backend, remoteID, resp)
	}

	log.InfoContext(ctx, "task submitted",
		slog.String("service", backend.Name()),
		slog.String("remote_task_id", remoteID),
		slog.String("remote_state", string(resp.State)))
	d.emit(ctx, id, domain.TaskEventSubmitted, domain.TaskStatusProcessing, backend.Name())

	if resp.State == domain.RemoteAccepted {
		return d.tasks.Get(ctx, id)
	}
	return d.Reconcile(ctx, id, resp)
}

// discardSubmission handles a submission that came back after the task
// left queued, typically because it was cancelled meanwhile. A job the
// backend still runs is cancelled on a best-effort basis.
func (d *Dispatcher) discardSubmission(
	ctx context.Context,
	id uuid.UUID,
	backend Backend,
	remoteID string,
	resp *domain.RemoteResponse,
) (*domain.AnalysisTask, error) {
	current, err := d.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.TaskStatusFailed && resp.State == domain.RemoteAccepted {
		if err := backend.Cancel(ctx, remoteID); err != nil {
			d.log(ctx).WarnContext(ctx, "remote cancel failed",
				slog.String("task_id", id.String()),
				slog.String("service", backend.Name()),
				slog.String("error", redact.Error(err)))
		}
	}
	d.discarded(ctx, current, string(resp.State))
	return current, nil
}

// Reconcile applies a result to the task. A result for a terminal task is
// discarded and the task returned unchanged. A success without a result
// document fails the task.
func (d *Dispatcher) Reconcile(
	ctx context.Context,
	id uuid.UUID,
	resp *domain.RemoteResponse,
) (*domain.AnalysisTask, error) {
	task, err := d.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status.IsTerminal() {
		d.discarded(ctx, task, string(resp.State))
		return task, nil
	}

	state, reason := resp.State, resp.Error
	if state == domain.RemoteSucceeded && len(bytes.TrimSpace(resp.Results)) == 0 {
		state, reason = domain.RemoteFailed, "remote service returned no result document"
	}

	switch state {
	case domain.RemoteAccepted:
		return task, nil

	case domain.RemoteFailed:
		reason = redact.String(reason)
		if reason == "" {
			reason = "remote analysis failed"
		}
		applied, err := d.tasks.Fail(ctx, id, reason, d.now())
		if err != nil {
			return task, fmt.Errorf("failed to record remote failure: %w", err)
		}
		if !applied {
			return d.reloadDiscarded(ctx, id, string(resp.State))
		}
		d.log(ctx).WarnContext(ctx, "remote analysis failed",
			slog.String("task_id", id.String()),
			slog.String("reason", reason))
		d.emit(ctx, id, domain.TaskEventFailed, domain.TaskStatusFailed, reason)
		d.setPaperStatus(ctx, task, domain.PaperStatusFailed)

	default:
		applied, err := d.tasks.Complete(ctx, id, resp.Results, resp.AgentUsed, d.now())
		if err != nil {
			return task, fmt.Errorf("failed to record results: %w", err)
		}
		if !applied {
			return d.reloadDiscarded(ctx, id, string(resp.State))
		}
		d.log(ctx).InfoContext(ctx, "task completed",
			slog.String("task_id", id.String()),
			slog.String("agent_used", resp.AgentUsed))
		d.emit(ctx, id, domain.TaskEventCompleted, domain.TaskStatusCompleted, resp.AgentUsed)
		d.project(ctx, task, resp.Analysis)
	}

	return d.tasks.Get(ctx, id)
}

// Cancel forces an active task to failed with the cancellation reason and
// then notifies the backend, if the task was ever accepted. The notification
// is best effort and never blocks the transition. Cancelling a terminal task
// fails with domain.ErrInvalidStateTransition.
func (d *Dispatcher) Cancel(ctx context.Context, id uuid.UUID) (*domain.AnalysisTask, error) {
	task, err := d.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status.IsTerminal() {
		return task, fmt.Errorf("%w: task %s is already %s", domain.ErrInvalidStateTransition, id, task.Status)
	}

	applied, err := d.tasks.Fail(ctx, id, domain.CancelledReason, d.now())
	if err != nil {
		return task, fmt.Errorf("failed to cancel task: %w", err)
	}
	if !applied {
		current, err := d.tasks.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return current, fmt.Errorf("%w: task %s is already %s", domain.ErrInvalidStateTransition, id, current.Status)
	}

	d.log(ctx).InfoContext(ctx, "task cancelled",
		slog.String("task_id", id.String()),
		slog.String("previous_status", string(task.Status)))
	d.emit(ctx, id, domain.TaskEventCancelled, domain.TaskStatusFailed, domain.CancelledReason)
	d.setPaperStatus(ctx, task, domain.PaperStatusFailed)

	// A submission may have been accepted between the read above and the
	// transition, so the remote identity comes from the row as cancelled.
	current, err := d.tasks.Get(ctx, id)
	if err != nil {
		if task.RemoteTaskID != "" {
			d.cancelRemote(ctx, task.ServiceName, task.RemoteTaskID)
		}
		return nil, err
	}
	if current.RemoteTaskID != "" {
		d.cancelRemote(ctx, current.ServiceName, current.RemoteTaskID)
	}

	return current, nil
}

// Fail moves an active task to failed with reason. A task that is already
// terminal is returned unchanged.
func (d *Dispatcher) Fail(ctx context.Context, id uuid.UUID, reason string) (*domain.AnalysisTask, error) {
	reason = redact.String(reason)
	applied, err := d.tasks.Fail(ctx, id, reason, d.now())
	if err != nil {
		return nil, fmt.Errorf("failed to fail task: %w", err)
	}
	task, err := d.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !applied {
		return task, nil
	}

	d.log(ctx).WarnContext(ctx, "task failed",
		slog.String("task_id", id.String()),
		slog.String("reason", reason))
	d.emit(ctx, id, domain.TaskEventFailed, domain.TaskStatusFailed, reason)
	d.setPaperStatus(ctx, task, domain.PaperStatusFailed)

	if task.RemoteTaskID != "" {
		d.cancelRemote(ctx, task.ServiceName, task.RemoteTaskID)
	}
	return task, nil
}

func (d *Dispatcher) reloadDiscarded(ctx context.Context, id uuid.UUID, what string) (*domain.AnalysisTask, error) {
	current, err := d.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d.discarded(ctx, current, what)
	return current, nil
}

func (d *Dispatcher) discarded(ctx context.Context, task *domain.AnalysisTask, what string) {
	d.log(ctx).InfoContext(ctx, "discarding result for terminal task",
		slog.String("task_id", task.ID.String()),
		slog.String("status", string(task.Status)),
		slog.String("result", what))
	d.emit(ctx, task.ID, domain.TaskEventResultDiscarded, task.Status, what)
}

func (d *Dispatcher) cancelRemote(ctx context.Context, serviceName, remoteID string) {
	backend, ok := d.router.ByName(serviceName)
	if !ok {
		d.log(ctx).WarnContext(ctx, "no backend to notify of cancellation",
			slog.String("service", serviceName),
			slog.String("remote_task_id", remoteID))
		return
	}
	if err := backend.Cancel(ctx, remoteID); err != nil {
		d.log(ctx).WarnContext(ctx, "remote cancel failed",
			slog.String("service", serviceName),
			slog.String("remote_task_id", remoteID),
			slog.String("error", redact.Error(err)))
	}
}

// project writes paper analysis results onto the paper. Failures are
// logged and recorded, never propagated.
func (d *Dispatcher) project(ctx context.Context, task *domain.AnalysisTask, analysis *domain.PaperAnalysis) {
	paperID, ok := task.PaperID()
	if !ok {
		return
	}

	var err error
	if analysis != nil {
		err = d.papers.ApplyAnalysis(ctx, paperID, *analysis, d.now())
	} else {
		err = d.papers.SetProcessingStatus(ctx, paperID, domain.PaperStatusCompleted, d.now())
	}
	if err != nil {
		d.projectionFailed(ctx, task.ID, paperID, err)
	}
}

func (d *Dispatcher) setPaperStatus(ctx context.Context, task *domain.AnalysisTask, status domain.PaperProcessingStatus) {
	paperID, ok := task.PaperID()
	if !ok {
		return
	}
	if err := d.papers.SetProcessingStatus(ctx, paperID, status, d.now()); err != nil {
		d.projectionFailed(ctx, task.ID, paperID, err)
	}
}

func (d *Dispatcher) projectionFailed(ctx context.Context, taskID, paperID uuid.UUID, cause error) {
	err := fmt.Errorf("%w: paper %s: %w", domain.ErrProjectionFailure, paperID, cause)
	d.log(ctx).ErrorContext(ctx, "paper projection failed",
		slog.String("task_id", taskID.String()),
		slog.String("paper_id", paperID.String()),
		slog.String("error", redact.Error(err)))

	current, getErr := d.tasks.Get(ctx, taskID)
	status := domain.TaskStatus("")
	if getErr == nil {
		status = current.Status
	}
	d.emit(ctx, taskID, domain.TaskEventProjectionFailed, status, redact.Error(cause))
}

func (d *Dispatcher) emit(
	ctx context.Context,
	taskID uuid.UUID,
	eventType domain.TaskEventType,
	status domain.TaskStatus,
	detail string,
) {
	event := domain.NewTaskEvent(taskID, eventType, status, detail)
	event.CreatedAt = d.now()
	if err := d.events.EmitEvent(ctx, event); err != nil {
		d.log(ctx).WarnContext(ctx, "failed to emit task event",
			slog.String("task_id", taskID.String()),
			slog.String("event_type", string(eventType)),
			slog.String("error", err.Error()))
	}
}

func (d *Dispatcher) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, d.logger)
}
