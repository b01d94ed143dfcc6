package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/api/shared"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/platform/logger"
	"github.com/kaushalacts/research-ai-platform/internal/store"
	"github.com/kaushalacts/research-ai-platform/internal/task"
)

// TaskService is the part of task.Dispatcher the handlers use.
type TaskService interface {
	Create(ctx context.Context, req task.CreateRequest) (*domain.AnalysisTask, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.AnalysisTask, error)
	Cancel(ctx context.Context, id uuid.UUID) (*domain.AnalysisTask, error)
	Reconcile(ctx context.Context, id uuid.UUID, resp *domain.RemoteResponse) (*domain.AnalysisTask, error)
}

// Scheduler queues a created task for submission.
type Scheduler interface {
	Enqueue(taskID uuid.UUID) error
}

// TaskHandler handles task HTTP requests.
type TaskHandler struct {
	tasks     TaskService
	scheduler Scheduler
	listing   store.TaskStore
	events    store.TaskEventStore
	logger    *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(
	tasks TaskService,
	scheduler Scheduler,
	listing store.TaskStore,
	events store.TaskEventStore,
	logger *slog.Logger,
) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		tasks:     tasks,
		scheduler: scheduler,
		listing:   listing,
		events:    events,
		logger:    logger.With(slog.String("component", "task_handler")),
	}
}

// CreateTask handles POST /api/tasks. The task is stored queued and handed
// to the scheduler; the response is 202 because submission is asynchronous.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	projectID := uuid.MustParse(req.ProjectID)
	targets := make([]uuid.UUID, 0, len(req.TargetIDs))
	for _, raw := range req.TargetIDs {
		targets = append(targets, uuid.MustParse(raw))
	}

	created, err := h.tasks.Create(r.Context(), task.CreateRequest{
		ProjectID:   projectID,
		RequestedBy: req.RequestedBy,
		Type:        domain.TaskType(req.TaskType),
		Parameters:  req.Parameters,
		TargetIDs:   targets,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}

	if err := h.scheduler.Enqueue(created.ID); err != nil {
		// The task is stored queued; recovery or maintenance picks it up.
		h.log(r).Warn("task created but not scheduled",
			slog.String("task_id", created.ID.String()),
			slog.String("error", err.Error()))
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToResponse(created))
}

// ListTasks handles GET /api/tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTaskFilter(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	tasks, err := h.listing.List(r.Context(), filter)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}

	resp := TaskListResponse{
		Tasks:  make([]TaskResponse, 0, len(tasks)),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, taskToResponse(t))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetTask handles GET /api/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	t, err := h.tasks.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(t))
}

// ListTaskEvents handles GET /api/tasks/{id}/events.
func (h *TaskHandler) ListTaskEvents(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	// 404 for unknown tasks rather than an empty trail.
	if _, err := h.tasks.Get(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}

	evts, err := h.events.ListByTask(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list task events")
		return
	}
	resp := make([]TaskEventResponse, 0, len(evts))
	for _, e := range evts {
		resp = append(resp, eventToResponse(e))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// CancelTask handles POST /api/tasks/{id}/cancel.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	t, err := h.tasks.Cancel(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidStateTransition) {
			h.log(r).Info("cancel rejected for terminal task", slog.String("task_id", id.String()))
		}
		HandleAPIError(w, r, err, "Failed to cancel task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(t))
}

func (h *TaskHandler) log(r *http.Request) *slog.Logger {
	return logger.FromContextOrDefault(r.Context(), h.logger)
}
