package sqlstore

import (
	"context"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/store"
)

const eventsTable = "task_events"

// EventStore implements store.TaskEventStore.
type EventStore struct {
	db     store.DBTX
	sb     sq.StatementBuilderType
	logger *slog.Logger
}

var _ store.TaskEventStore = (*EventStore)(nil)

// NewEventStore creates an EventStore. It panics if db is nil.
func NewEventStore(db store.DBTX, d Dialect, logger *slog.Logger) *EventStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventStore{
		db:     db,
		sb:     d.builder(),
		logger: logger.With(slog.String("component", "event_store")),
	}
}

// Append implements store.TaskEventStore.
func (s *EventStore) Append(ctx context.Context, e *domain.TaskEvent) error {
	insert := s.sb.Insert(eventsTable).
		Columns("id", "task_id", "event_type", "status", "detail", "created_at").
		Values(e.ID.String(), e.TaskID.String(), string(e.Type), string(e.Status), e.Detail, e.CreatedAt.UTC())

	if _, err := execBuilder(ctx, s.db, insert); err != nil {
		s.logger.Error("failed to append task event",
			slog.String("task_id", e.TaskID.String()),
			slog.String("event_type", string(e.Type)),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// ListByTask implements store.TaskEventStore.
func (s *EventStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.TaskEvent, error) {
	rows, err := queryBuilder(ctx, s.db, s.sb.
		Select("id", "task_id", "event_type", "status", "detail", "created_at").
		From(eventsTable).
		Where(sq.Eq{"task_id": taskID.String()}).
		OrderBy("created_at", "id"))
	if err != nil {
		return nil, fmt.Errorf("failed to query task events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []*domain.TaskEvent{}
	for rows.Next() {
		var (
			e         domain.TaskEvent
			eventType string
			status    string
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &eventType, &status, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task event: %w", err)
		}
		e.Type = domain.TaskEventType(eventType)
		e.Status = domain.TaskStatus(status)
		e.CreatedAt = e.CreatedAt.UTC()
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task events: %w", err)
	}
	return events, nil
}
