package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/store"
)

// TaskStore is an in-memory store.TaskStore. Returned tasks are copies.
type TaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.AnalysisTask

	CreateFn         func(ctx context.Context, task *domain.AnalysisTask) error
	GetFn            func(ctx context.Context, id uuid.UUID) (*domain.AnalysisTask, error)
	ListFn           func(ctx context.Context, filter store.TaskFilter) ([]*domain.AnalysisTask, error)
	ListStaleFn      func(ctx context.Context, status domain.TaskStatus, cutoff time.Time, limit int) ([]*domain.AnalysisTask, error)
	MarkProcessingFn func(ctx context.Context, id uuid.UUID, serviceName, remoteTaskID string, at time.Time) (bool, error)
	CompleteFn       func(ctx context.Context, id uuid.UUID, results json.RawMessage, agentUsed string, at time.Time) (bool, error)
	FailFn           func(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error)
}

// NewTaskStore creates an empty TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[uuid.UUID]*domain.AnalysisTask)}
}

// Put stores a task as-is, bypassing validation. Useful for arranging
// tasks in a specific state.
func (s *TaskStore) Put(task *domain.AnalysisTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = cloneTask(task)
}

// Create implements store.TaskStore.
func (s *TaskStore) Create(ctx context.Context, task *domain.AnalysisTask) error {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, task)
	}
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return store.ErrDuplicate
	}
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

// Get implements store.TaskStore.
func (s *TaskStore) Get(ctx context.Context, id uuid.UUID) (*domain.AnalysisTask, error) {
	if s.GetFn != nil {
		return s.GetFn(ctx, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return cloneTask(task), nil
}

// List implements store.TaskStore.
func (s *TaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.AnalysisTask, error) {
	if s.ListFn != nil {
		return s.ListFn(ctx, filter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.AnalysisTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.ProjectID != uuid.Nil && t.ProjectID != filter.ProjectID {
			continue
		}
		if filter.RequestedBy != "" && t.RequestedBy != filter.RequestedBy {
			continue
		}
		out = append(out, cloneTask(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*domain.AnalysisTask{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ListStale implements store.TaskStore.
func (s *TaskStore) ListStale(
	ctx context.Context,
	status domain.TaskStatus,
	cutoff time.Time,
	limit int,
) ([]*domain.AnalysisTask, error) {
	if s.ListStaleFn != nil {
		return s.ListStaleFn(ctx, status, cutoff, limit)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.AnalysisTask, 0)
	for _, t := range s.tasks {
		if t.Status == status && t.UpdatedAt.Before(cutoff) {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// MarkProcessing implements store.TaskStore.
func (s *TaskStore) MarkProcessing(
	ctx context.Context,
	id uuid.UUID,
	serviceName, remoteTaskID string,
	at time.Time,
) (bool, error) {
	if s.MarkProcessingFn != nil {
		return s.MarkProcessingFn(ctx, id, serviceName, remoteTaskID, at)
	}
	return s.transition(id, []domain.TaskStatus{domain.TaskStatusQueued}, func(t *domain.AnalysisTask) {
		t.Status = domain.TaskStatusProcessing
		t.ServiceName = serviceName
		if t.RemoteTaskID == "" {
			t.RemoteTaskID = remoteTaskID
		}
		t.UpdatedAt = at
	})
}

// Complete implements store.TaskStore.
func (s *TaskStore) Complete(
	ctx context.Context,
	id uuid.UUID,
	results json.RawMessage,
	agentUsed string,
	at time.Time,
) (bool, error) {
	if s.CompleteFn != nil {
		return s.CompleteFn(ctx, id, results, agentUsed, at)
	}
	if len(results) == 0 {
		return false, fmt.Errorf("%w: completed task requires results", store.ErrInvalidEntity)
	}
	return s.transition(id, domain.ActiveStatuses, func(t *domain.AnalysisTask) {
		t.Status = domain.TaskStatusCompleted
		t.Results = append(json.RawMessage(nil), results...)
		t.AgentUsed = agentUsed
		t.UpdatedAt = at
		completed := at
		t.CompletedAt = &completed
	})
}

// Fail implements store.TaskStore.
func (s *TaskStore) Fail(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	if s.FailFn != nil {
		return s.FailFn(ctx, id, reason, at)
	}
	if reason == "" {
		return false, fmt.Errorf("%w: failed task requires a reason", store.ErrInvalidEntity)
	}
	return s.transition(id, domain.ActiveStatuses, func(t *domain.AnalysisTask) {
		t.Status = domain.TaskStatusFailed
		t.ErrorReason = reason
		t.UpdatedAt = at
		completed := at
		t.CompletedAt = &completed
	})
}

func (s *TaskStore) transition(
	id uuid.UUID,
	from []domain.TaskStatus,
	apply func(*domain.AnalysisTask),
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return false, store.ErrTaskNotFound
	}
	for _, st := range from {
		if task.Status == st {
			apply(task)
			return true, nil
		}
	}
	return false, nil
}

func cloneTask(t *domain.AnalysisTask) *domain.AnalysisTask {
	c := *t
	c.Parameters = append(json.RawMessage(nil), t.Parameters...)
	c.Results = append(json.RawMessage(nil), t.Results...)
	c.TargetIDs = append([]uuid.UUID{}, t.TargetIDs...)
	if len(c.Results) == 0 {
		c.Results = nil
	}
	if len(c.Parameters) == 0 {
		c.Parameters = nil
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}
