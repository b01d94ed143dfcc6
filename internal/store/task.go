package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
)

// TaskFilter narrows a task listing. Zero values match everything.
type TaskFilter struct {
	Status      domain.TaskStatus
	Type        domain.TaskType
	ProjectID   uuid.UUID
	RequestedBy string
	Limit       int
	Offset      int
}

// TaskStore persists analysis tasks.
//
// The transition methods are conditional: they only apply while the task is
// in a non-terminal status, evaluated atomically by the store, and report
// whether the row was changed. A false result with a nil error means the
// task exists but had already left the allowed status.
type TaskStore interface {
	// Create inserts a new queued task.
	Create(ctx context.Context, task *domain.AnalysisTask) error

	// Get returns the task, or ErrTaskNotFound.
	Get(ctx context.Context, id uuid.UUID) (*domain.AnalysisTask, error)

	// List returns tasks matching the filter, newest first.
	List(ctx context.Context, filter TaskFilter) ([]*domain.AnalysisTask, error)

	// ListStale returns tasks in the given status not updated since cutoff,
	// oldest first.
	ListStale(ctx context.Context, status domain.TaskStatus, cutoff time.Time, limit int) ([]*domain.AnalysisTask, error)

	// MarkProcessing moves a queued task to processing and records the
	// accepting service and the remote task id. An existing remote task id
	// is never overwritten.
	MarkProcessing(ctx context.Context, id uuid.UUID, serviceName, remoteTaskID string, at time.Time) (bool, error)

	// Complete moves an active task to completed with the given results.
	Complete(ctx context.Context, id uuid.UUID, results json.RawMessage, agentUsed string, at time.Time) (bool, error)

	// Fail moves an active task to failed with the given reason.
	Fail(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error)
}
