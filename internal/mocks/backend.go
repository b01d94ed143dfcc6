package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kaushalacts/research-ai-platform/internal/domain"
)

// SubmitCall records one MockBackend.Submit invocation.
type SubmitCall struct {
	Kind    domain.TaskType
	Payload any
}

// MockBackend is a scriptable analysis backend. Without SubmitFn every
// submission succeeds with an empty result object.
type MockBackend struct {
	BackendName string
	SubmitFn    func(ctx context.Context, kind domain.TaskType, payload any) (*domain.RemoteResponse, error)
	CancelFn    func(ctx context.Context, remoteTaskID string) error

	mu          sync.Mutex
	submits     []SubmitCall
	cancelCalls []string
}

// Name returns BackendName, or "mock".
func (m *MockBackend) Name() string {
	if m.BackendName == "" {
		return "mock"
	}
	return m.BackendName
}

// Submit records the call and delegates to SubmitFn.
func (m *MockBackend) Submit(ctx context.Context, kind domain.TaskType, payload any) (*domain.RemoteResponse, error) {
	m.mu.Lock()
	m.submits = append(m.submits, SubmitCall{Kind: kind, Payload: payload})
	m.mu.Unlock()

	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, kind, payload)
	}
	return Succeeded(`{}`), nil
}

// Cancel records the call and delegates to CancelFn.
func (m *MockBackend) Cancel(ctx context.Context, remoteTaskID string) error {
	m.mu.Lock()
	m.cancelCalls = append(m.cancelCalls, remoteTaskID)
	m.mu.Unlock()

	if m.CancelFn != nil {
		return m.CancelFn(ctx, remoteTaskID)
	}
	return nil
}

// SubmitCalls returns the recorded submissions.
func (m *MockBackend) SubmitCalls() []SubmitCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SubmitCall(nil), m.submits...)
}

// CancelCalls returns the remote task ids passed to Cancel.
func (m *MockBackend) CancelCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cancelCalls...)
}

// Succeeded builds a synchronous successful response.
func Succeeded(results string) *domain.RemoteResponse {
	return &domain.RemoteResponse{State: domain.RemoteSucceeded, Results: json.RawMessage(results)}
}

// Accepted builds an asynchronous acceptance.
func Accepted(remoteTaskID string) *domain.RemoteResponse {
	return &domain.RemoteResponse{State: domain.RemoteAccepted, RemoteTaskID: remoteTaskID}
}
