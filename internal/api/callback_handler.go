package api

import (
	"log/slog"
	"net/http"

	"github.com/kaushalacts/research-ai-platform/internal/api/shared"
	"github.com/kaushalacts/research-ai-platform/internal/platform/agents"
	"github.com/kaushalacts/research-ai-platform/internal/platform/logger"
)

// CallbackHandler receives result documents that remote services post for
// tasks they accepted asynchronously. Authentication happens in
// middleware.RequireCallbackToken.
type CallbackHandler struct {
	tasks  TaskService
	logger *slog.Logger
}

// NewCallbackHandler creates a CallbackHandler.
func NewCallbackHandler(tasks TaskService, logger *slog.Logger) *CallbackHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackHandler{tasks: tasks, logger: logger.With(slog.String("component", "callback_handler"))}
}

// ReceiveResult handles POST /api/callbacks/tasks/{id}. A result for a task
// that is already terminal is acknowledged and discarded.
func (h *CallbackHandler) ReceiveResult(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	body, err := shared.ReadBody(w, r)
	if err != nil {
		HandleAPIError(w, r, err, "Invalid request body")
		return
	}
	resp, err := agents.ParseResult(body)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("result callback received",
		slog.String("task_id", id.String()),
		slog.String("state", string(resp.State)))

	t, err := h.tasks.Reconcile(r.Context(), id, resp)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to apply result")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(t))
}
