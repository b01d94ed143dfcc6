package task

import (
	"context"
	"fmt"

	"github.com/kaushalacts/research-ai-platform/internal/domain"
)

// Backend performs analysis work for the dispatcher. The remote agents
// client and the in-process Gemini backend both implement it.
type Backend interface {
	// Name identifies the backend; it is recorded on tasks it accepts.
	Name() string

	// Submit sends work for the task type. Errors are classified with
	// domain.ErrServiceUnavailable or domain.ErrServiceRejected.
	Submit(ctx context.Context, kind domain.TaskType, payload any) (*domain.RemoteResponse, error)

	// Cancel asks the backend to stop a remote job.
	Cancel(ctx context.Context, remoteTaskID string) error
}

// Route binds a backend to the task types it serves. No task types means
// every type.
type Route struct {
	Backend   Backend
	TaskTypes []domain.TaskType
}

func (r Route) handles(kind domain.TaskType) bool {
	if len(r.TaskTypes) == 0 {
		return true
	}
	for _, t := range r.TaskTypes {
		if t == kind {
			return true
		}
	}
	return false
}

// Router picks the backend for a task type: the first route that serves it.
type Router struct {
	routes []Route
	byName map[string]Backend
}

// NewRouter creates a Router. Route order is the routing preference.
func NewRouter(routes ...Route) (*Router, error) {
	r := &Router{byName: make(map[string]Backend, len(routes))}
	for _, route := range routes {
		if route.Backend == nil {
			return nil, fmt.Errorf("route without backend")
		}
		name := route.Backend.Name()
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("duplicate backend name %q", name)
		}
		r.byName[name] = route.Backend
		r.routes = append(r.routes, route)
	}
	return r, nil
}

// Resolve returns the backend for kind, or domain.ErrNoBackend.
func (r *Router) Resolve(kind domain.TaskType) (Backend, error) {
	for _, route := range r.routes {
		if route.handles(kind) {
			return route.Backend, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrNoBackend, kind)
}

// ByName returns the backend registered under name.
func (r *Router) ByName(name string) (Backend, bool) {
	b, ok := r.byName[name]
	return b, ok
}
