package sqlstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/platform/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, d := newTestDB(t)
	tasks := sqlstore.NewTaskStore(db, d, testLogger())
	events := sqlstore.NewEventStore(db, d, testLogger())

	task := newQueuedTask(t, domain.TaskTypeLiteratureReview)
	require.NoError(t, tasks.Create(ctx, task))

	created := domain.NewTaskEvent(task.ID, domain.TaskEventCreated, domain.TaskStatusQueued, "")
	failed := domain.NewTaskEvent(task.ID, domain.TaskEventFailed, domain.TaskStatusFailed, domain.CancelledReason)
	failed.CreatedAt = created.CreatedAt.Add(time.Second)
	require.NoError(t, events.Append(ctx, failed))
	require.NoError(t, events.Append(ctx, created))

	got, err := events.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.TaskEventCreated, got[0].Type)
	assert.Equal(t, domain.TaskEventFailed, got[1].Type)
	assert.Equal(t, domain.CancelledReason, got[1].Detail)
	assert.Equal(t, domain.TaskStatusFailed, got[1].Status)

	none, err := events.ListByTask(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}
