package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/store"
)

// Recorder is an EventHandler that appends events to the audit trail.
type Recorder struct {
	events store.TaskEventStore
	logger *slog.Logger
}

// NewRecorder creates a Recorder writing to events.
func NewRecorder(events store.TaskEventStore, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{events: events, logger: logger.With("component", "event_recorder")}
}

// HandleEvent persists the event.
func (r *Recorder) HandleEvent(ctx context.Context, event *domain.TaskEvent) error {
	if err := r.events.Append(ctx, event); err != nil {
		return fmt.Errorf("failed to record %s event for task %s: %w", event.Type, event.TaskID, err)
	}
	r.logger.Debug("recorded task event",
		"task_id", event.TaskID,
		"event_type", event.Type,
		"status", event.Status)
	return nil
}
