package agents_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/platform/agents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newClient(t *testing.T, url string, opts ...agents.Option) *agents.Client {
	t.Helper()
	opts = append([]agents.Option{agents.WithLogger(testLogger())}, opts...)
	c, err := agents.NewClient("agents", url, "service-key", opts...)
	require.NoError(t, err)
	return c
}

func TestSubmitPaperAnalysis(t *testing.T) {
	t.Parallel()

	var gotBody domain.PaperAnalysisRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, agents.PathAnalyzePaper, r.URL.Path)
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"task_id": "remote-42",
			"agent_used": "paper-analyst",
			"analysis": {"summary": "novel method"},
			"keywords": ["ml", "proteins"],
			"research_areas": ["bioinformatics"],
			"relevance_score": 0.91
		}`)
	}))
	defer srv.Close()

	payload := &domain.PaperAnalysisRequest{
		TaskID:  "task-1",
		PaperID: "paper-1",
		PaperData: domain.PaperData{
			Title: "Protein Folding", Abstract: "abstract", Authors: []string{"A"}, DOI: "10.1/x",
		},
	}
	resp, err := newClient(t, srv.URL).Submit(context.Background(), domain.TaskTypePaperAnalysis, payload)
	require.NoError(t, err)

	assert.Equal(t, "task-1", gotBody.TaskID)
	assert.Equal(t, "Protein Folding", gotBody.PaperData.Title)

	assert.Equal(t, domain.RemoteSucceeded, resp.State)
	assert.Equal(t, "remote-42", resp.RemoteTaskID)
	assert.Equal(t, "paper-analyst", resp.AgentUsed)
	assert.JSONEq(t, `{"summary":"novel method"}`, string(resp.Results))
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, []string{"ml", "proteins"}, resp.Analysis.Keywords)
	assert.Equal(t, []string{"bioinformatics"}, resp.Analysis.ResearchAreas)
	require.NotNil(t, resp.Analysis.RelevanceScore)
	assert.InDelta(t, 0.91, *resp.Analysis.RelevanceScore, 1e-9)
}

func TestSubmitRoutesByTaskType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind domain.TaskType
		path string
	}{
		{domain.TaskTypePaperAnalysis, agents.PathAnalyzePaper},
		{domain.TaskTypeLiteratureReview, agents.PathGenerateReview},
		{domain.TaskTypeTrendAnalysis, agents.PathAnalyzeTrends},
		{domain.TaskTypeGapAnalysis, agents.PathAnalyzeGaps},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.path, r.URL.Path)
				_, _ = io.WriteString(w, `{"summary":"ok"}`)
			}))
			defer srv.Close()

			resp, err := newClient(t, srv.URL).Submit(context.Background(), tt.kind, map[string]string{})
			require.NoError(t, err)
			assert.JSONEq(t, `{"summary":"ok"}`, string(resp.Results))
		})
	}
}

func TestSubmitAggregateWithZeroPapers(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.JSONEq(t, `[]`, string(body["papers"]), "papers must be an empty list, not null")
		_, _ = io.WriteString(w, `{"review":"nothing to review"}`)
	}))
	defer srv.Close()

	payload := &domain.AggregateRequest{
		TaskID: "t", ProjectID: "p", Parameters: json.RawMessage(`{}`), Papers: []domain.PaperSnapshot{},
	}
	resp, err := newClient(t, srv.URL).Submit(context.Background(), domain.TaskTypeLiteratureReview, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.RemoteSucceeded, resp.State)
	assert.JSONEq(t, `{"review":"nothing to review"}`, string(resp.Results))
}

func TestSubmitReviewReturningList(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, agents.PathGenerateReview, r.URL.Path)
		_, _ = io.WriteString(w, `[{"section":"background"},{"section":"methods"}]`)
	}))
	defer srv.Close()

	resp, err := newClient(t, srv.URL).Submit(context.Background(), domain.TaskTypeLiteratureReview, map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, domain.RemoteSucceeded, resp.State)
	assert.JSONEq(t, `[{"section":"background"},{"section":"methods"}]`, string(resp.Results))
	assert.Nil(t, resp.Analysis)
}

func TestSubmitErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		wantKind  error
		wantInErr string
	}{
		{"server error", http.StatusServiceUnavailable, `overloaded`, domain.ErrServiceUnavailable, "status 503"},
		{"bad gateway", http.StatusBadGateway, ``, domain.ErrServiceUnavailable, "status 502"},
		{"throttled", http.StatusTooManyRequests, ``, domain.ErrServiceUnavailable, "status 429"},
		{"request timeout", http.StatusRequestTimeout, ``, domain.ErrServiceUnavailable, "status 408"},
		{"validation error", http.StatusUnprocessableEntity, `{"detail":"title required"}`, domain.ErrServiceRejected, "title required"},
		{"bad request", http.StatusBadRequest, `{"detail":"bad"}`, domain.ErrServiceRejected, "status 400"},
		{"malformed success", http.StatusOK, `not json`, domain.ErrServiceRejected, "malformed response"},
		{"null success", http.StatusOK, `null`, domain.ErrServiceRejected, "malformed response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := newClient(t, srv.URL).Submit(context.Background(), domain.TaskTypePaperAnalysis, map[string]string{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantKind)
			assert.Contains(t, err.Error(), tt.wantInErr)

			var se *domain.ServiceError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "agents", se.Service)
		})
	}
}

func TestSubmitTimeoutClasses(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newClient(t, srv.URL, agents.WithTimeouts(agents.Timeouts{
		Submit:   50 * time.Millisecond,
		Extended: 5 * time.Second,
	}))

	start := time.Now()
	_, err := c.Submit(context.Background(), domain.TaskTypePaperAnalysis, map[string]string{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second, "interactive work uses the short timeout")
}

func TestSubmitNetworkFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newClient(t, url).Submit(context.Background(), domain.TaskTypeGapAnalysis, map[string]string{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestCancel(t *testing.T) {
	t.Parallel()

	t.Run("posts remote task id", func(t *testing.T) {
		t.Parallel()
		var got map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, agents.PathCancelTask, r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = io.WriteString(w, `{"cancelled":true}`)
		}))
		defer srv.Close()

		require.NoError(t, newClient(t, srv.URL).Cancel(context.Background(), "remote-9"))
		assert.Equal(t, "remote-9", got["task_id"])
	})

	t.Run("failures are unavailable", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		err := newClient(t, srv.URL).Cancel(context.Background(), "remote-9")
		assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	})
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, agents.PathHealth, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer slow.Close()

	prober := agents.NewProber(nil, 100*time.Millisecond, testLogger())
	ctx := context.Background()

	assert.True(t, prober.HealthCheck(ctx, healthy.URL+"/"))
	assert.False(t, prober.HealthCheck(ctx, failing.URL))
	assert.False(t, prober.HealthCheck(ctx, slow.URL))
	assert.False(t, prober.HealthCheck(ctx, "http://127.0.0.1:1"))
	assert.False(t, prober.HealthCheck(ctx, "::not a url"))
	assert.Equal(t, int32(1), calls.Load())

	assert.True(t, newClient(t, healthy.URL).HealthCheck(ctx))
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	t.Parallel()

	_, err := agents.NewClient("agents", "ftp://example.org", "")
	assert.Error(t, err)
	_, err = agents.NewClient("agents", "", "")
	assert.Error(t, err)

	c, err := agents.NewClient("agents", "http://agents.internal:8001/", "")
	require.NoError(t, err)
	assert.Equal(t, "http://agents.internal:8001", c.BaseURL())
	assert.Equal(t, "agents", c.Name())
}

func TestUnsupportedTaskTypeIsRejected(t *testing.T) {
	t.Parallel()

	c, err := agents.NewClient("agents", "http://agents.internal", "")
	require.NoError(t, err)
	_, err = c.Submit(context.Background(), domain.TaskType("summarize"), nil)
	assert.True(t, errors.Is(err, domain.ErrServiceRejected))
}
