package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskType identifies the kind of analysis requested.
type TaskType string

// Supported task types.
const (
	TaskTypeLiteratureReview TaskType = "literature_review"
	TaskTypeTrendAnalysis    TaskType = "trend_analysis"
	TaskTypeGapAnalysis      TaskType = "gap_analysis"
	TaskTypePaperAnalysis    TaskType = "paper_analysis"
)

// TaskTypes lists every supported task type.
var TaskTypes = []TaskType{
	TaskTypeLiteratureReview,
	TaskTypeTrendAnalysis,
	TaskTypeGapAnalysis,
	TaskTypePaperAnalysis,
}

// IsValid reports whether t is a supported task type.
func (t TaskType) IsValid() bool {
	switch t {
	case TaskTypeLiteratureReview, TaskTypeTrendAnalysis, TaskTypeGapAnalysis, TaskTypePaperAnalysis:
		return true
	default:
		return false
	}
}

// IsAggregate reports whether the task runs over a set of papers and
// therefore uses the extended timeout class.
func (t TaskType) IsAggregate() bool {
	return t == TaskTypeLiteratureReview || t == TaskTypeTrendAnalysis || t == TaskTypeGapAnalysis
}

// TaskStatus represents the lifecycle state of an analysis task.
type TaskStatus string

// Task status values. Completed and failed are terminal.
const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// ActiveStatuses are the statuses a task can still leave.
var ActiveStatuses = []TaskStatus{TaskStatusQueued, TaskStatusProcessing}

// IsValid reports whether s is a known status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusQueued, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s can never change again.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to TaskStatus) bool {
	switch from {
	case TaskStatusQueued:
		return to == TaskStatusProcessing || to == TaskStatusCompleted || to == TaskStatusFailed
	case TaskStatusProcessing:
		return to == TaskStatusCompleted || to == TaskStatusFailed
	default:
		return false
	}
}

// CancelledReason is the error reason recorded for user cancellation.
const CancelledReason = "cancelled by user"

// Validation errors for AnalysisTask.
var (
	ErrEmptyTaskID        = errors.New("task ID cannot be empty")
	ErrEmptyProjectID     = errors.New("project ID cannot be empty")
	ErrInvalidTaskType    = errors.New("invalid task type")
	ErrInvalidTaskStatus  = errors.New("invalid task status")
	ErrInvalidParameters  = errors.New("parameters must be a JSON object")
	ErrInvalidTargets     = errors.New("invalid target entities")
	ErrInconsistentResult = errors.New("results and error reason are inconsistent with status")
)

// AnalysisTask is one unit of analysis work delegated to a remote service.
type AnalysisTask struct {
	ID          uuid.UUID       `json:"id"`
	ProjectID   uuid.UUID       `json:"project_id"`
	RequestedBy string          `json:"requested_by,omitempty"`
	Type        TaskType        `json:"task_type"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	// TargetIDs is the ordered set of papers the task operates on.
	TargetIDs    []uuid.UUID     `json:"target_ids"`
	Status       TaskStatus      `json:"status"`
	ServiceName  string          `json:"service_name,omitempty"`
	RemoteTaskID string          `json:"remote_task_id,omitempty"`
	AgentUsed    string          `json:"agent_used,omitempty"`
	Results      json.RawMessage `json:"results,omitempty"`
	ErrorReason  string          `json:"error_reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// NewAnalysisTask creates a queued task. Duplicate target IDs are dropped
// while preserving order. Returns an error if validation fails.
func NewAnalysisTask(
	projectID uuid.UUID,
	requestedBy string,
	taskType TaskType,
	parameters json.RawMessage,
	targetIDs []uuid.UUID,
) (*AnalysisTask, error) {
	now := time.Now().UTC()
	if len(parameters) == 0 {
		parameters = json.RawMessage(`{}`)
	}

	task := &AnalysisTask{
		ID:          uuid.New(),
		ProjectID:   projectID,
		RequestedBy: requestedBy,
		Type:        taskType,
		Parameters:  parameters,
		TargetIDs:   dedupe(targetIDs),
		Status:      TaskStatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}
	return task, nil
}

// Validate checks field formats and the terminal-state invariants.
func (t *AnalysisTask) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}
	if t.ProjectID == uuid.Nil {
		return ErrEmptyProjectID
	}
	if !t.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidTaskType, t.Type)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidTaskStatus, t.Status)
	}
	if len(t.Parameters) > 0 {
		var obj map[string]any
		if err := json.Unmarshal(t.Parameters, &obj); err != nil {
			return ErrInvalidParameters
		}
	}
	for _, id := range t.TargetIDs {
		if id == uuid.Nil {
			return fmt.Errorf("%w: empty paper ID", ErrInvalidTargets)
		}
	}
	if t.Type == TaskTypePaperAnalysis && len(t.TargetIDs) != 1 {
		return fmt.Errorf("%w: paper analysis requires exactly one paper, got %d",
			ErrInvalidTargets, len(t.TargetIDs))
	}

	hasResults := len(t.Results) > 0
	hasError := t.ErrorReason != ""
	switch t.Status {
	case TaskStatusCompleted:
		if !hasResults || hasError {
			return ErrInconsistentResult
		}
	case TaskStatusFailed:
		if !hasError || hasResults {
			return ErrInconsistentResult
		}
	default:
		if hasResults || hasError || t.CompletedAt != nil {
			return ErrInconsistentResult
		}
	}
	return nil
}

// PaperID returns the single target of a paper analysis task.
func (t *AnalysisTask) PaperID() (uuid.UUID, bool) {
	if t.Type != TaskTypePaperAnalysis || len(t.TargetIDs) != 1 {
		return uuid.Nil, false
	}
	return t.TargetIDs[0], true
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
