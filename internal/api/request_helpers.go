package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/store"
)

// Paging bounds for task listings.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// getPathUUID extracts a UUID from the URL path parameters.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", domain.ErrValidation, paramName)
	}
	return id, nil
}

// parseTaskFilter builds a store.TaskFilter from the query string.
func parseTaskFilter(r *http.Request) (store.TaskFilter, error) {
	q := r.URL.Query()
	filter := store.TaskFilter{
		Status:      domain.TaskStatus(q.Get("status")),
		Type:        domain.TaskType(q.Get("task_type")),
		RequestedBy: q.Get("requested_by"),
		Limit:       DefaultListLimit,
	}

	if filter.Status != "" && !filter.Status.IsValid() {
		return filter, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, filter.Status)
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		return filter, fmt.Errorf("%w: unknown task type %q", domain.ErrValidation, filter.Type)
	}
	if raw := q.Get("project_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, fmt.Errorf("%w: project_id has invalid format", domain.ErrValidation)
		}
		filter.ProjectID = id
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit"), DefaultListLimit, 1, MaxListLimit, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = intParam(q.Get("offset"), 0, 0, -1, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

// intParam parses a query integer in [lo, hi]; a negative hi means no
// upper bound.
func intParam(raw string, def, lo, hi int, name string) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || (hi >= 0 && v > hi) {
		return 0, fmt.Errorf("%w: %s is out of range", domain.ErrValidation, name)
	}
	return v, nil
}
