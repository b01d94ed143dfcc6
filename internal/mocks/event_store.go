package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
)

// EventStore is an in-memory store.TaskEventStore.
type EventStore struct {
	mu     sync.Mutex
	events []*domain.TaskEvent

	AppendFn func(ctx context.Context, event *domain.TaskEvent) error
}

// NewEventStore creates an empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{}
}

// Append implements store.TaskEventStore.
func (s *EventStore) Append(ctx context.Context, event *domain.TaskEvent) error {
	if s.AppendFn != nil {
		return s.AppendFn(ctx, event)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *event
	s.events = append(s.events, &c)
	return nil
}

// ListByTask implements store.TaskEventStore.
func (s *EventStore) ListByTask(_ context.Context, taskID uuid.UUID) ([]*domain.TaskEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.TaskEvent, 0)
	for _, e := range s.events {
		if e.TaskID == taskID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

// Types returns the event types recorded for a task, in order.
func (s *EventStore) Types(taskID uuid.UUID) []domain.TaskEventType {
	events, _ := s.ListByTask(context.Background(), taskID)
	out := make([]domain.TaskEventType, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}
