package task_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/events"
	"github.com/kaushalacts/research-ai-platform/internal/mocks"
	"github.com/kaushalacts/research-ai-platform/internal/task"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	tasks      *mocks.TaskStore
	papers     *mocks.PaperStore
	events     *mocks.EventStore
	backend    *mocks.MockBackend
	dispatcher *task.Dispatcher
	projectID  uuid.UUID
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, backends ...task.Backend) *fixture {
	t.Helper()

	f := &fixture{
		tasks:     mocks.NewTaskStore(),
		papers:    mocks.NewPaperStore(),
		events:    mocks.NewEventStore(),
		backend:   &mocks.MockBackend{BackendName: "agents"},
		projectID: uuid.New(),
	}

	routes := []task.Route{{Backend: f.backend}}
	if len(backends) > 0 {
		routes = routes[:0]
		for _, b := range backends {
			routes = append(routes, task.Route{Backend: b})
		}
	}
	router, err := task.NewRouter(routes...)
	require.NoError(t, err)

	emitter := events.NewInMemoryEventEmitter(testLogger())
	emitter.RegisterHandler(events.NewRecorder(f.events, testLogger()))

	f.dispatcher, err = task.NewDispatcher(f.tasks, f.papers, router, emitter, testLogger())
	require.NoError(t, err)
	return f
}

func (f *fixture) addPaper(t *testing.T, title string) *domain.Paper {
	t.Helper()
	now := time.Now().UTC()
	p := &domain.Paper{
		ID:               uuid.New(),
		ProjectID:        f.projectID,
		Title:            title,
		Abstract:         "Abstract of " + title,
		Authors:          []string{"Ada Lovelace"},
		DOI:              "10.1000/" + title,
		ProcessingStatus: domain.PaperStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, f.papers.Create(context.Background(), p))
	return p
}

func (f *fixture) createTask(t *testing.T, kind domain.TaskType, targets ...uuid.UUID) *domain.AnalysisTask {
	t.Helper()
	created, err := f.dispatcher.Create(context.Background(), task.CreateRequest{
		ProjectID:   f.projectID,
		RequestedBy: "researcher-1",
		Type:        kind,
		TargetIDs:   targets,
	})
	require.NoError(t, err)
	return created
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *domain.AnalysisTask {
	t.Helper()
	got, err := f.tasks.Get(context.Background(), id)
	require.NoError(t, err)
	return got
}

// requireInvariants checks the terminal-state invariants on a task.
func requireInvariants(t *testing.T, tk *domain.AnalysisTask) {
	t.Helper()
	require.NoError(t, tk.Validate())
	if tk.Status.IsTerminal() {
		require.NotNil(t, tk.CompletedAt)
	}
}
