package store

import (
	"context"
	"time"

	"github.com/kaushalacts/research-ai-platform/internal/domain"
)

// ServiceStore persists remote service registrations.
type ServiceStore interface {
	// Upsert creates the registration or updates its base URL and active
	// flag, leaving health state and counters untouched.
	Upsert(ctx context.Context, reg *domain.ServiceRegistration) error

	// Get returns the registration, or ErrServiceNotFound.
	Get(ctx context.Context, name string) (*domain.ServiceRegistration, error)

	// List returns every registration ordered by name.
	List(ctx context.Context) ([]*domain.ServiceRegistration, error)

	// ListActive returns the active registrations ordered by name.
	ListActive(ctx context.Context) ([]*domain.ServiceRegistration, error)

	// RecordHealth stores one probe outcome in a single update: health flag
	// and check time are overwritten, total_requests grows by one and
	// failed_requests grows by one when unhealthy.
	RecordHealth(ctx context.Context, name string, healthy bool, at time.Time) error
}
