package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskEventType names a step in a task's lifecycle.
type TaskEventType string

// Task lifecycle event types.
const (
	TaskEventCreated          TaskEventType = "created"
	TaskEventSubmitted        TaskEventType = "submitted"
	TaskEventRetryScheduled   TaskEventType = "retry_scheduled"
	TaskEventRetriesExhausted TaskEventType = "retries_exhausted"
	TaskEventCompleted        TaskEventType = "completed"
	TaskEventFailed           TaskEventType = "failed"
	TaskEventCancelled        TaskEventType = "cancelled"
	TaskEventResultDiscarded  TaskEventType = "result_discarded"
	TaskEventProjectionFailed TaskEventType = "projection_failed"
)

// TaskEvent is one entry in a task's audit trail.
type TaskEvent struct {
	ID        uuid.UUID     `json:"id"`
	TaskID    uuid.UUID     `json:"task_id"`
	Type      TaskEventType `json:"type"`
	Status    TaskStatus    `json:"status"`
	Detail    string        `json:"detail,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewTaskEvent builds an event stamped with the current time.
func NewTaskEvent(taskID uuid.UUID, eventType TaskEventType, status TaskStatus, detail string) *TaskEvent {
	return &TaskEvent{
		ID:        uuid.New(),
		TaskID:    taskID,
		Type:      eventType,
		Status:    status,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
}
