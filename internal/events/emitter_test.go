package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEventHandler records the events it receives.
type MockEventHandler struct {
	mu           sync.Mutex
	HandledCount int
	LastEvent    *domain.TaskEvent
	HandlerError error
}

func (m *MockEventHandler) HandleEvent(_ context.Context, event *domain.TaskEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HandledCount++
	m.LastEvent = event
	return m.HandlerError
}

func testEvent() *domain.TaskEvent {
	return domain.NewTaskEvent(uuid.New(), domain.TaskEventCreated, domain.TaskStatusQueued, "")
}

func TestInMemoryEventEmitter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		assert.NoError(t, emitter.EmitEvent(context.Background(), testEvent()))
	})

	t.Run("emit event with successful handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		handler1 := &MockEventHandler{}
		handler2 := &MockEventHandler{}
		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)

		event := testEvent()
		require.NoError(t, emitter.EmitEvent(context.Background(), event))

		assert.Equal(t, 1, handler1.HandledCount)
		assert.Equal(t, 1, handler2.HandledCount)
		assert.Same(t, event, handler1.LastEvent)
		assert.Same(t, event, handler2.LastEvent)
	})

	t.Run("emit event with failing handler", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		failingHandler := &MockEventHandler{HandlerError: errors.New("handler error")}
		successHandler := &MockEventHandler{}
		emitter.RegisterHandler(failingHandler)
		emitter.RegisterHandler(successHandler)

		err := emitter.EmitEvent(context.Background(), testEvent())
		require.Error(t, err)
		assert.Equal(t, "handler error", err.Error())

		assert.Equal(t, 1, failingHandler.HandledCount)
		assert.Equal(t, 1, successHandler.HandledCount, "later handlers still run")
	})

	t.Run("handler func adapter", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		var got []domain.TaskEventType
		emitter.RegisterHandler(HandlerFunc(func(_ context.Context, e *domain.TaskEvent) error {
			got = append(got, e.Type)
			return nil
		}))

		require.NoError(t, emitter.EmitEvent(context.Background(), testEvent()))
		assert.Equal(t, []domain.TaskEventType{domain.TaskEventCreated}, got)
	})
}

func TestNopEmitter(t *testing.T) {
	var e EventEmitter = NopEmitter{}
	assert.NoError(t, e.EmitEvent(context.Background(), testEvent()))
}
