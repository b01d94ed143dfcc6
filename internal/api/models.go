package api

import (
	"encoding/json"
	"time"

	"github.com/kaushalacts/research-ai-platform/internal/domain"
)

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	TaskType    string          `json:"task_type"    validate:"required,oneof=literature_review trend_analysis gap_analysis paper_analysis"`
	ProjectID   string          `json:"project_id"   validate:"required,uuid"`
	RequestedBy string          `json:"requested_by" validate:"omitempty,max=255"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	TargetIDs   []string        `json:"target_ids"   validate:"omitempty,max=500,dive,uuid"`
}

// TaskResponse is the caller-facing view of an analysis task.
type TaskResponse struct {
	ID           string          `json:"id"`
	ProjectID    string          `json:"project_id"`
	RequestedBy  string          `json:"requested_by,omitempty"`
	TaskType     string          `json:"task_type"`
	Parameters   json.RawMessage `json:"parameters,omitempty"`
	TargetIDs    []string        `json:"target_ids"`
	Status       string          `json:"status"`
	ServiceName  string          `json:"service_name,omitempty"`
	RemoteTaskID string          `json:"remote_task_id,omitempty"`
	AgentUsed    string          `json:"agent_used,omitempty"`
	Results      json.RawMessage `json:"results,omitempty"`
	ErrorReason  string          `json:"error_reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// TaskListResponse wraps a page of tasks.
type TaskListResponse struct {
	Tasks  []TaskResponse `json:"tasks"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// TaskEventResponse is one audit trail entry.
type TaskEventResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ServiceResponse is the caller-facing view of a service registration.
type ServiceResponse struct {
	Name           string     `json:"name"`
	BaseURL        string     `json:"base_url"`
	Active         bool       `json:"active"`
	Healthy        bool       `json:"healthy"`
	LastCheckedAt  *time.Time `json:"last_checked_at,omitempty"`
	TotalRequests  int64      `json:"total_requests"`
	FailedRequests int64      `json:"failed_requests"`
}

func taskToResponse(t *domain.AnalysisTask) TaskResponse {
	targets := make([]string, 0, len(t.TargetIDs))
	for _, id := range t.TargetIDs {
		targets = append(targets, id.String())
	}
	return TaskResponse{
		ID:           t.ID.String(),
		ProjectID:    t.ProjectID.String(),
		RequestedBy:  t.RequestedBy,
		TaskType:     string(t.Type),
		Parameters:   t.Parameters,
		TargetIDs:    targets,
		Status:       string(t.Status),
		ServiceName:  t.ServiceName,
		RemoteTaskID: t.RemoteTaskID,
		AgentUsed:    t.AgentUsed,
		Results:      t.Results,
		ErrorReason:  t.ErrorReason,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		CompletedAt:  t.CompletedAt,
	}
}

func eventToResponse(e *domain.TaskEvent) TaskEventResponse {
	return TaskEventResponse{
		ID:        e.ID.String(),
		Type:      string(e.Type),
		Status:    string(e.Status),
		Detail:    e.Detail,
		CreatedAt: e.CreatedAt,
	}
}

func serviceToResponse(s *domain.ServiceRegistration) ServiceResponse {
	return ServiceResponse{
		Name:           s.Name,
		BaseURL:        s.BaseURL,
		Active:         s.Active,
		Healthy:        s.Healthy,
		LastCheckedAt:  s.LastCheckedAt,
		TotalRequests:  s.TotalRequests,
		FailedRequests: s.FailedRequests,
	}
}
