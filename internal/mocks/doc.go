// Package mocks provides centralized mock implementations for testing.
//
// The stores are in-memory implementations of the internal/store interfaces
// that honour the same contracts as the SQL stores, including conditional
// task transitions, so dispatcher and API tests exercise realistic state
// changes. Every method can be overridden through its ...Fn field.
//
// Usage:
//
//	tasks := mocks.NewTaskStore()
//	tasks.FailFn = func(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
//	    return false, errors.New("database unavailable")
//	}
//
//	backend := &mocks.MockBackend{
//	    SubmitFn: func(ctx context.Context, kind domain.TaskType, payload any) (*domain.RemoteResponse, error) {
//	        return nil, domain.NewServiceUnavailable("agents", "submit", 503, "", nil)
//	    },
//	}
package mocks
