package task_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/mocks"
	"github.com/kaushalacts/research-ai-platform/internal/store"
	"github.com/kaushalacts/research-ai-platform/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("queued with created event", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		paper := f.addPaper(t, "p1")

		created := f.createTask(t, domain.TaskTypePaperAnalysis, paper.ID)
		assert.Equal(t, domain.TaskStatusQueued, created.Status)
		assert.JSONEq(t, `{}`, string(created.Parameters))
		assert.Empty(t, f.backend.SubmitCalls(), "create never calls the backend")
		assert.Equal(t, []domain.TaskEventType{domain.TaskEventCreated}, f.events.Types(created.ID))
	})

	t.Run("unknown target is a validation error", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.dispatcher.Create(context.Background(), task.CreateRequest{
			ProjectID: f.projectID,
			Type:      domain.TaskTypePaperAnalysis,
			TargetIDs: []uuid.UUID{uuid.New()},
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.ErrorIs(t, err, store.ErrPaperNotFound)
	})

	t.Run("invalid type is a validation error", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.dispatcher.Create(context.Background(), task.CreateRequest{
			ProjectID: f.projectID,
			Type:      domain.TaskType("summarize"),
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.ErrorIs(t, err, domain.ErrInvalidTaskType)
	})
}

func TestSubmitPaperAnalysisProjectsResults(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	paper := f.addPaper(t, "p1")
	created := f.createTask(t, domain.TaskTypePaperAnalysis, paper.ID)

	score := 0.8
	f.backend.SubmitFn = func(_ context.Context, kind domain.TaskType, payload any) (*domain.RemoteResponse, error) {
		req, ok := payload.(*domain.PaperAnalysisRequest)
		require.True(t, ok)
		assert.Equal(t, created.ID.String(), req.TaskID)
		assert.Equal(t, paper.ID.String(), req.PaperID)
		assert.Equal(t, "p1", req.PaperData.Title)
		assert.Equal(t, []string{"Ada Lovelace"}, req.PaperData.Authors)
		assert.Equal(t, "10.1000/p1", req.PaperData.DOI)
		return &domain.RemoteResponse{
			RemoteTaskID: "remote-1",
			State:        domain.RemoteSucceeded,
			AgentUsed:    "paper-analyst",
			Results:      json.RawMessage(`{"summary":"s"}`),
			Analysis:     &domain.PaperAnalysis{Keywords: []string{"x"}, RelevanceScore: &score},
		}, nil
	}

	got, err := f.dispatcher.Submit(context.Background(), created.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Equal(t, "remote-1", got.RemoteTaskID)
	assert.Equal(t, "agents", got.ServiceName)
	assert.Equal(t, "paper-analyst", got.AgentUsed)
	assert.JSONEq(t, `{"summary":"s"}`, string(got.Results))
	assert.Empty(t, got.ErrorReason)
	requireInvariants(t, got)

	updated, err := f.papers.Get(context.Background(), paper.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, updated.Keywords)
	require.NotNil(t, updated.RelevanceScore)
	assert.InDelta(t, 0.8, *updated.RelevanceScore, 1e-9)
	assert.Equal(t, domain.PaperStatusCompleted, updated.ProcessingStatus)

	assert.Equal(t, []domain.TaskEventType{
		domain.TaskEventCreated,
		domain.TaskEventSubmitted,
		domain.TaskEventCompleted,
	}, f.events.Types(created.ID))
}

func TestSubmitLiteratureReviewWithoutPapers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createTask(t, domain.TaskTypeLiteratureReview)

	f.backend.SubmitFn = func(_ context.Context, kind domain.TaskType, payload any) (*domain.RemoteResponse, error) {
		req, ok := payload.(*domain.AggregateRequest)
		require.True(t, ok)
		assert.Equal(t, f.projectID.String(), req.ProjectID)
		require.NotNil(t, req.Papers)
		assert.Empty(t, req.Papers)

		encoded, err := json.Marshal(req)
		require.NoError(t, err)
		assert.Contains(t, string(encoded), `"papers":[]`)
		return mocks.Succeeded(`{"review":"empty project"}`), nil
	}

	got, err := f.dispatcher.Submit(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Equal(t, created.ID.String(), got.RemoteTaskID, "task id stands in for a missing remote id")
	requireInvariants(t, got)
}

func TestSubmitAggregateUsesTargetsInOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	first := f.addPaper(t, "first")
	second := f.addPaper(t, "second")
	f.addPaper(t, "not-targeted")
	created := f.createTask(t, domain.TaskTypeGapAnalysis, second.ID, first.ID)

	var titles []string
	f.backend.SubmitFn = func(_ context.Context, kind domain.TaskType, payload any) (*domain.RemoteResponse, error) {
		assert.Equal(t, domain.TaskTypeGapAnalysis, kind)
		for _, p := range payload.(*domain.AggregateRequest).Papers {
			titles = append(titles, p.Title)
		}
		return mocks.Succeeded(`{"gaps":[]}`), nil
	}

	_, err := f.dispatcher.Submit(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first"}, titles)
}

func TestSubmitIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createTask(t, domain.TaskTypeTrendAnalysis)
	f.backend.SubmitFn = func(context.Context, domain.TaskType, any) (*domain.RemoteResponse, error) {
		return mocks.Accepted("remote-7"), nil
	}

	first, err := f.dispatcher.Submit(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusProcessing, first.Status)

	second, err := f.dispatcher.Submit(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusProcessing, second.Status)
	assert.Len(t, f.backend.SubmitCalls(), 1, "processing task is not resubmitted")

	_, err = f.dispatcher.Cancel(context.Background(), created.ID)
	require.NoError(t, err)
	_, err = f.dispatcher.Submit(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Len(t, f.backend.SubmitCalls(), 1, "terminal task is not resubmitted")
}

func TestSubmitErrorsLeaveTaskQueued(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{"unavailable", domain.NewServiceUnavailable("agents", "submit", 503, "overloaded", nil)},
		{"rejected", domain.NewServiceRejected("agents", "submit", 422, "bad", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			created := f.createTask(t, domain.TaskTypeTrendAnalysis)
			f.backend.SubmitFn = func(context.Context, domain.TaskType, any) (*domain.RemoteResponse, error) {
				return nil, tt.err
			}

			_, err := f.dispatcher.Submit(context.Background(), created.ID)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, domain.TaskStatusQueued, f.reload(t, created.ID).Status)
		})
	}
}

func TestSubmitMissingPaperIsPayloadError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createTask(t, domain.TaskTypeLiteratureReview)
	f.tasks.Put(&domain.AnalysisTask{
		ID: created.ID, ProjectID: f.projectID, Type: domain.TaskTypePaperAnalysis,
		TargetIDs: []uuid.UUID{uuid.New()}, Status: domain.TaskStatusQueued,
		CreatedAt: created.CreatedAt, UpdatedAt: created.UpdatedAt,
	})

	_, err := f.dispatcher.Submit(context.Background(), created.ID)
	assert.ErrorIs(t, err, task.ErrPayload)
	assert.False(t, task.IsTransient(err))
	assert.Empty(t, f.backend.SubmitCalls())
}

func TestAsyncAcceptanceThenCallback(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	paper := f.addPaper(t, "p1")
	created := f.createTask(t, domain.TaskTypePaperAnalysis, paper.ID)
	f.backend.SubmitFn = func(context.Context, domain.TaskType, any) (*domain.RemoteResponse, error) {
		return mocks.Accepted("remote-async"), nil
	}

	got, err := f.dispatcher.Submit(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusProcessing, got.Status)
	assert.Equal(t, "remote-async", got.RemoteTaskID)

	p, _ := f.papers.Get(context.Background(), paper.ID)
	assert.Equal(t, domain.PaperStatusProcessing, p.ProcessingStatus)

	got, err = f.dispatcher.Reconcile(context.Background(), created.ID, &domain.RemoteResponse{
		RemoteTaskID: "other-id",
		State:        domain.RemoteSucceeded,
		Results:      json.RawMessage(`{"done":true}`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Equal(t, "remote-async", got.RemoteTaskID, "remote id is never overwritten")

	p, _ = f.papers.Get(context.Background(), paper.ID)
	assert.Equal(t, domain.PaperStatusCompleted, p.ProcessingStatus)
}

func TestReconcileDeclaredFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	paper := f.addPaper(t, "p1")
	created := f.createTask(t, domain.TaskTypePaperAnalysis, paper.ID)

	got, err := f.dispatcher.Reconcile(context.Background(), created.ID, &domain.RemoteResponse{
		State: domain.RemoteFailed,
		Error: "model crashed, token=abcdef123456",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Contains(t, got.ErrorReason, "model crashed")
	assert.Empty(t, got.Results)
	requireInvariants(t, got)

	p, _ := f.papers.Get(context.Background(), paper.ID)
	assert.Equal(t, domain.PaperStatusFailed, p.ProcessingStatus)
}

func TestReconcileWithoutResultDocumentFails(t *testing.T) {
	t.Parallel()

	for name, results := range map[string]json.RawMessage{
		"missing":    nil,
		"whitespace": json.RawMessage("  "),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			paper := f.addPaper(t, "p1")
			created := f.createTask(t, domain.TaskTypePaperAnalysis, paper.ID)

			got, err := f.dispatcher.Reconcile(context.Background(), created.ID,
				&domain.RemoteResponse{State: domain.RemoteSucceeded, Results: results})
			require.NoError(t, err)
			assert.Equal(t, domain.TaskStatusFailed, got.Status)
			assert.Contains(t, got.ErrorReason, "no result document")
			assert.Empty(t, got.Results)
			requireInvariants(t, got)

			p, _ := f.papers.Get(context.Background(), paper.ID)
			assert.Equal(t, domain.PaperStatusFailed, p.ProcessingStatus)
		})
	}
}

func TestTerminalStateIsImmutable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createTask(t, domain.TaskTypeTrendAnalysis)

	_, err := f.dispatcher.Reconcile(context.Background(), created.ID, mocks.Succeeded(`{"v":1}`))
	require.NoError(t, err)
	before := f.reload(t, created.ID)

	got, err := f.dispatcher.Reconcile(context.Background(), created.ID, &domain.RemoteResponse{
		State: domain.RemoteFailed, Error: "late failure",
	})
	require.NoError(t, err)
	assert.Equal(t, before, got)

	got, err = f.dispatcher.Reconcile(context.Background(), created.ID, mocks.Succeeded(`{"v":2}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(got.Results))

	got, err = f.dispatcher.Fail(context.Background(), created.ID, "too late")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)

	assert.Contains(t, f.events.Types(created.ID), domain.TaskEventResultDiscarded)
}

func TestCancel(t *testing.T) {
	t.Parallel()

	t.Run("queued task without remote id makes no network call", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		created := f.createTask(t, domain.TaskTypeLiteratureReview)

		got, err := f.dispatcher.Cancel(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFailed, got.Status)
		assert.Equal(t, domain.CancelledReason, got.ErrorReason)
		assert.Empty(t, f.backend.CancelCalls())
		assert.Empty(t, f.backend.SubmitCalls())
		requireInvariants(t, got)
	})

	t.Run("processing task notifies the accepting backend", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		created := f.createTask(t, domain.TaskTypeLiteratureReview)
		f.backend.SubmitFn = func(context.Context, domain.TaskType, any) (*domain.RemoteResponse, error) {
			return mocks.Accepted("remote-5"), nil
		}
		_, err := f.dispatcher.Submit(context.Background(), created.ID)
		require.NoError(t, err)

		got, err := f.dispatcher.Cancel(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.CancelledReason, got.ErrorReason)
		assert.Equal(t, []string{"remote-5"}, f.backend.CancelCalls())
	})

	t.Run("submission accepted during cancel is cancelled remotely", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		created := f.createTask(t, domain.TaskTypeLiteratureReview)
		f.tasks.FailFn = func(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
			applied, err := f.tasks.MarkProcessing(ctx, id, "agents", "remote-123", at)
			require.NoError(t, err)
			require.True(t, applied)
			f.tasks.FailFn = nil
			return f.tasks.Fail(ctx, id, reason, at)
		}

		got, err := f.dispatcher.Cancel(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFailed, got.Status)
		assert.Equal(t, "remote-123", got.RemoteTaskID)
		assert.Equal(t, []string{"remote-123"}, f.backend.CancelCalls())
		requireInvariants(t, got)
	})

	t.Run("remote cancel failure does not block", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		created := f.createTask(t, domain.TaskTypeLiteratureReview)
		f.backend.SubmitFn = func(context.Context, domain.TaskType, any) (*domain.RemoteResponse, error) {
			return mocks.Accepted("remote-5"), nil
		}
		f.backend.CancelFn = func(context.Context, string) error {
			return domain.NewServiceUnavailable("agents", "cancel", 0, "network error", nil)
		}
		_, err := f.dispatcher.Submit(context.Background(), created.ID)
		require.NoError(t, err)

		got, err := f.dispatcher.Cancel(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFailed, got.Status)
		assert.Equal(t, domain.CancelledReason, got.ErrorReason)
	})

	t.Run("completed task is rejected and unchanged", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		created := f.createTask(t, domain.TaskTypeLiteratureReview)
		_, err := f.dispatcher.Submit(context.Background(), created.ID)
		require.NoError(t, err)
		before := f.reload(t, created.ID)
		require.Equal(t, domain.TaskStatusCompleted, before.Status)

		_, err = f.dispatcher.Cancel(context.Background(), created.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
		assert.Equal(t, before, f.reload(t, created.ID))
		assert.Empty(t, f.backend.CancelCalls())
	})

	t.Run("unknown task", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.dispatcher.Cancel(context.Background(), uuid.New())
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}

func TestLateSubmissionAfterCancelIsDiscarded(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createTask(t, domain.TaskTypeLiteratureReview)

	f.backend.SubmitFn = func(ctx context.Context, _ domain.TaskType, _ any) (*domain.RemoteResponse, error) {
		// The caller cancels while the request is in flight.
		_, err := f.dispatcher.Cancel(ctx, created.ID)
		require.NoError(t, err)
		return mocks.Accepted("remote-late"), nil
	}

	got, err := f.dispatcher.Submit(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Equal(t, domain.CancelledReason, got.ErrorReason)
	assert.Empty(t, got.RemoteTaskID)
	assert.Equal(t, []string{"remote-late"}, f.backend.CancelCalls(), "orphaned remote job is cancelled")
	assert.Contains(t, f.events.Types(created.ID), domain.TaskEventResultDiscarded)
}

func TestCancelRacingReconcile(t *testing.T) {
	t.Parallel()

	for i := 0; i < 20; i++ {
		f := newFixture(t)
		created := f.createTask(t, domain.TaskTypeTrendAnalysis)

		var wg sync.WaitGroup
		var cancelErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, cancelErr = f.dispatcher.Cancel(context.Background(), created.ID)
		}()
		go func() {
			defer wg.Done()
			_, _ = f.dispatcher.Reconcile(context.Background(), created.ID, mocks.Succeeded(`{"ok":true}`))
		}()
		wg.Wait()

		got := f.reload(t, created.ID)
		requireInvariants(t, got)
		switch got.Status {
		case domain.TaskStatusFailed:
			assert.NoError(t, cancelErr)
			assert.Equal(t, domain.CancelledReason, got.ErrorReason)
		case domain.TaskStatusCompleted:
			assert.ErrorIs(t, cancelErr, domain.ErrInvalidStateTransition)
		default:
			t.Fatalf("unexpected status %s", got.Status)
		}
	}
}

func TestProjectionFailureKeepsTaskCompleted(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	paper := f.addPaper(t, "p1")
	created := f.createTask(t, domain.TaskTypePaperAnalysis, paper.ID)

	f.papers.ApplyAnalysisFn = func(context.Context, uuid.UUID, domain.PaperAnalysis, time.Time) error {
		return errors.New("paper table locked")
	}
	score := 0.3
	f.backend.SubmitFn = func(context.Context, domain.TaskType, any) (*domain.RemoteResponse, error) {
		resp := mocks.Succeeded(`{"analysis":true}`)
		resp.Analysis = &domain.PaperAnalysis{RelevanceScore: &score}
		return resp, nil
	}

	got, err := f.dispatcher.Submit(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)

	types := f.events.Types(created.ID)
	assert.Contains(t, types, domain.TaskEventProjectionFailed)
	assert.Contains(t, types, domain.TaskEventCompleted)
}

func TestNoBackendForType(t *testing.T) {
	t.Parallel()

	only := &mocks.MockBackend{BackendName: "gemini"}
	router, err := task.NewRouter(task.Route{Backend: only, TaskTypes: []domain.TaskType{domain.TaskTypePaperAnalysis}})
	require.NoError(t, err)

	tasks := mocks.NewTaskStore()
	d, err := task.NewDispatcher(tasks, mocks.NewPaperStore(), router, nil, testLogger())
	require.NoError(t, err)

	created, err := d.Create(context.Background(), task.CreateRequest{ProjectID: uuid.New(), Type: domain.TaskTypeGapAnalysis})
	require.NoError(t, err)

	_, err = d.Submit(context.Background(), created.ID)
	assert.ErrorIs(t, err, domain.ErrNoBackend)
	assert.Empty(t, only.SubmitCalls())
}

type fakeIssuer struct{}

func (fakeIssuer) CallbackFor(id uuid.UUID) (string, string, error) {
	return "https://rap.example.org/api/callbacks/tasks/" + id.String(), "signed-" + id.String(), nil
}

func TestSubmitCarriesCallback(t *testing.T) {
	t.Parallel()

	backend := &mocks.MockBackend{BackendName: "agents"}
	router, err := task.NewRouter(task.Route{Backend: backend})
	require.NoError(t, err)
	d, err := task.NewDispatcher(mocks.NewTaskStore(), mocks.NewPaperStore(), router, nil, testLogger(),
		task.WithCallbacks(fakeIssuer{}))
	require.NoError(t, err)

	created, err := d.Create(context.Background(), task.CreateRequest{ProjectID: uuid.New(), Type: domain.TaskTypeTrendAnalysis})
	require.NoError(t, err)
	_, err = d.Submit(context.Background(), created.ID)
	require.NoError(t, err)

	calls := backend.SubmitCalls()
	require.Len(t, calls, 1)
	req := calls[0].Payload.(*domain.AggregateRequest)
	assert.Equal(t, "signed-"+created.ID.String(), req.CallbackToken)
	assert.Contains(t, req.CallbackURL, created.ID.String())
}
