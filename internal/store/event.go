package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
)

// TaskEventStore persists the task audit trail.
type TaskEventStore interface {
	Append(ctx context.Context, event *domain.TaskEvent) error
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.TaskEvent, error)
}
