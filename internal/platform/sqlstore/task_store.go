package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/store"
)

const tasksTable = "analysis_tasks"

var taskColumns = []string{
	"id", "project_id", "requested_by", "task_type", "parameters", "target_ids",
	"status", "service_name", "remote_task_id", "agent_used", "results",
	"error_reason", "created_at", "updated_at", "completed_at",
}

// activeStatuses is the guard every transition UPDATE carries.
var activeStatuses = []string{string(domain.TaskStatusQueued), string(domain.TaskStatusProcessing)}

// TaskStore implements store.TaskStore.
type TaskStore struct {
	db     store.DBTX
	sb     sq.StatementBuilderType
	logger *slog.Logger
}

var _ store.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates a TaskStore. It panics if db is nil.
func NewTaskStore(db store.DBTX, d Dialect, logger *slog.Logger) *TaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskStore{
		db:     db,
		sb:     d.builder(),
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// WithTx returns a TaskStore bound to the transaction.
func (s *TaskStore) WithTx(tx *sql.Tx) *TaskStore {
	return &TaskStore{db: tx, sb: s.sb, logger: s.logger}
}

// Create implements store.TaskStore.
func (s *TaskStore) Create(ctx context.Context, task *domain.AnalysisTask) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	targets := make([]string, 0, len(task.TargetIDs))
	for _, id := range task.TargetIDs {
		targets = append(targets, id.String())
	}
	targetsJSON, err := jsonText(targets)
	if err != nil {
		return fmt.Errorf("failed to encode targets: %w", err)
	}
	params := string(task.Parameters)
	if params == "" {
		params = "{}"
	}

	insert := s.sb.Insert(tasksTable).
		Columns("id", "project_id", "requested_by", "task_type", "parameters", "target_ids",
			"status", "created_at", "updated_at").
		Values(task.ID.String(), task.ProjectID.String(), task.RequestedBy, string(task.Type), params, targetsJSON,
			string(task.Status), task.CreatedAt.UTC(), task.UpdatedAt.UTC())

	if _, err := execBuilder(ctx, s.db, insert); err != nil {
		s.logger.Error("failed to create task",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// Get implements store.TaskStore.
func (s *TaskStore) Get(ctx context.Context, id uuid.UUID) (*domain.AnalysisTask, error) {
	row, err := queryRowBuilder(ctx, s.db,
		s.sb.Select(taskColumns...).From(tasksTable).Where(sq.Eq{"id": id.String()}))
	if err != nil {
		return nil, err
	}
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTaskNotFound
	}
	if err != nil {
		s.logger.Error("failed to get task",
			slog.String("task_id", id.String()),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// List implements store.TaskStore.
func (s *TaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.AnalysisTask, error) {
	q := s.sb.Select(taskColumns...).From(tasksTable).OrderBy("created_at DESC", "id")
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.Type != "" {
		q = q.Where(sq.Eq{"task_type": string(filter.Type)})
	}
	if filter.ProjectID != uuid.Nil {
		q = q.Where(sq.Eq{"project_id": filter.ProjectID.String()})
	}
	if filter.RequestedBy != "" {
		q = q.Where(sq.Eq{"requested_by": filter.RequestedBy})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return s.queryTasks(ctx, q)
}

// ListStale implements store.TaskStore.
func (s *TaskStore) ListStale(
	ctx context.Context,
	status domain.TaskStatus,
	cutoff time.Time,
	limit int,
) ([]*domain.AnalysisTask, error) {
	q := s.sb.Select(taskColumns...).From(tasksTable).
		Where(sq.Eq{"status": string(status)}).
		Where(sq.Lt{"updated_at": cutoff.UTC()}).
		OrderBy("updated_at", "id")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return s.queryTasks(ctx, q)
}

// MarkProcessing implements store.TaskStore.
func (s *TaskStore) MarkProcessing(
	ctx context.Context,
	id uuid.UUID,
	serviceName, remoteTaskID string,
	at time.Time,
) (bool, error) {
	update := s.sb.Update(tasksTable).
		Set("status", string(domain.TaskStatusProcessing)).
		Set("service_name", serviceName).
		Set("remote_task_id", sq.Expr("COALESCE(NULLIF(remote_task_id, ''), ?)", remoteTaskID)).
		Set("updated_at", at.UTC()).
		Where(sq.Eq{"id": id.String(), "status": string(domain.TaskStatusQueued)})
	return s.transition(ctx, id, "mark_processing", update)
}

// Complete implements store.TaskStore.
func (s *TaskStore) Complete(
	ctx context.Context,
	id uuid.UUID,
	results json.RawMessage,
	agentUsed string,
	at time.Time,
) (bool, error) {
	if len(results) == 0 {
		return false, fmt.Errorf("%w: completed task requires results", store.ErrInvalidEntity)
	}
	update := s.sb.Update(tasksTable).
		Set("status", string(domain.TaskStatusCompleted)).
		Set("results", string(results)).
		Set("agent_used", agentUsed).
		Set("updated_at", at.UTC()).
		Set("completed_at", at.UTC()).
		Where(sq.Eq{"id": id.String(), "status": activeStatuses})
	return s.transition(ctx, id, "complete", update)
}

// Fail implements store.TaskStore.
func (s *TaskStore) Fail(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	if reason == "" {
		return false, fmt.Errorf("%w: failed task requires a reason", store.ErrInvalidEntity)
	}
	update := s.sb.Update(tasksTable).
		Set("status", string(domain.TaskStatusFailed)).
		Set("error_reason", reason).
		Set("updated_at", at.UTC()).
		Set("completed_at", at.UTC()).
		Where(sq.Eq{"id": id.String(), "status": activeStatuses})
	return s.transition(ctx, id, "fail", update)
}

// transition runs a guarded UPDATE. When nothing matched it distinguishes a
// missing task from one that already left the allowed status.
func (s *TaskStore) transition(ctx context.Context, id uuid.UUID, op string, update sq.UpdateBuilder) (bool, error) {
	result, err := execBuilder(ctx, s.db, update)
	if err != nil {
		s.logger.Error("failed to update task",
			slog.String("task_id", id.String()),
			slog.String("operation", op),
			slog.String("error", err.Error()))
		return false, MapError(err)
	}

	applied, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	if applied {
		return true, nil
	}

	if _, err := s.Get(ctx, id); err != nil {
		return false, err
	}
	s.logger.Debug("task transition skipped",
		slog.String("task_id", id.String()),
		slog.String("operation", op))
	return false, nil
}

func (s *TaskStore) queryTasks(ctx context.Context, q sq.SelectBuilder) ([]*domain.AnalysisTask, error) {
	rows, err := queryBuilder(ctx, s.db, q)
	if err != nil {
		s.logger.Error("failed to query tasks", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := []*domain.AnalysisTask{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

func scanTask(row rowScanner) (*domain.AnalysisTask, error) {
	var (
		t            domain.AnalysisTask
		taskType     string
		status       string
		params       []byte
		targets      []byte
		remoteTaskID sql.NullString
		results      []byte
		errorReason  sql.NullString
		completedAt  sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.ProjectID, &t.RequestedBy, &taskType, &params, &targets,
		&status, &t.ServiceName, &remoteTaskID, &t.AgentUsed, &results,
		&errorReason, &t.CreatedAt, &t.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Type = domain.TaskType(taskType)
	t.Status = domain.TaskStatus(status)
	t.Parameters = json.RawMessage(params)
	t.RemoteTaskID = remoteTaskID.String
	t.ErrorReason = errorReason.String
	if len(results) > 0 {
		t.Results = json.RawMessage(results)
	}
	if completedAt.Valid {
		ts := completedAt.Time.UTC()
		t.CompletedAt = &ts
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()

	ids, err := decodeStrings(targets)
	if err != nil {
		return nil, fmt.Errorf("failed to decode target ids: %w", err)
	}
	t.TargetIDs = make([]uuid.UUID, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse target id %q: %w", raw, err)
		}
		t.TargetIDs = append(t.TargetIDs, id)
	}
	return &t, nil
}
