package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/store"
)

// ServiceStore is an in-memory store.ServiceStore.
type ServiceStore struct {
	mu       sync.Mutex
	services map[string]*domain.ServiceRegistration

	UpsertFn       func(ctx context.Context, reg *domain.ServiceRegistration) error
	ListActiveFn   func(ctx context.Context) ([]*domain.ServiceRegistration, error)
	RecordHealthFn func(ctx context.Context, name string, healthy bool, at time.Time) error
}

// NewServiceStore creates a ServiceStore holding regs.
func NewServiceStore(regs ...*domain.ServiceRegistration) *ServiceStore {
	s := &ServiceStore{services: make(map[string]*domain.ServiceRegistration)}
	for _, r := range regs {
		c := *r
		s.services[r.Name] = &c
	}
	return s
}

// Upsert implements store.ServiceStore.
func (s *ServiceStore) Upsert(ctx context.Context, reg *domain.ServiceRegistration) error {
	if s.UpsertFn != nil {
		return s.UpsertFn(ctx, reg)
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.services[reg.Name]; ok {
		existing.BaseURL = reg.BaseURL
		existing.Active = reg.Active
		existing.UpdatedAt = time.Now().UTC()
		return nil
	}
	c := *reg
	s.services[reg.Name] = &c
	return nil
}

// Get implements store.ServiceStore.
func (s *ServiceStore) Get(_ context.Context, name string) (*domain.ServiceRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.services[name]
	if !ok {
		return nil, store.ErrServiceNotFound
	}
	c := *reg
	return &c, nil
}

// List implements store.ServiceStore.
func (s *ServiceStore) List(_ context.Context) ([]*domain.ServiceRegistration, error) {
	return s.collect(func(*domain.ServiceRegistration) bool { return true }), nil
}

// ListActive implements store.ServiceStore.
func (s *ServiceStore) ListActive(ctx context.Context) ([]*domain.ServiceRegistration, error) {
	if s.ListActiveFn != nil {
		return s.ListActiveFn(ctx)
	}
	return s.collect(func(r *domain.ServiceRegistration) bool { return r.Active }), nil
}

// RecordHealth implements store.ServiceStore.
func (s *ServiceStore) RecordHealth(ctx context.Context, name string, healthy bool, at time.Time) error {
	if s.RecordHealthFn != nil {
		return s.RecordHealthFn(ctx, name, healthy, at)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.services[name]
	if !ok {
		return store.ErrServiceNotFound
	}
	reg.Healthy = healthy
	checked := at
	reg.LastCheckedAt = &checked
	reg.TotalRequests++
	if !healthy {
		reg.FailedRequests++
	}
	reg.UpdatedAt = at
	return nil
}

func (s *ServiceStore) collect(keep func(*domain.ServiceRegistration) bool) []*domain.ServiceRegistration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.ServiceRegistration, 0, len(s.services))
	for _, r := range s.services {
		if keep(r) {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
