package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/store"
)

// PaperStore is an in-memory store.PaperStore.
type PaperStore struct {
	mu     sync.Mutex
	papers map[uuid.UUID]*domain.Paper

	ApplyAnalysisFn       func(ctx context.Context, id uuid.UUID, analysis domain.PaperAnalysis, at time.Time) error
	SetProcessingStatusFn func(ctx context.Context, id uuid.UUID, status domain.PaperProcessingStatus, at time.Time) error
}

// NewPaperStore creates a PaperStore holding papers.
func NewPaperStore(papers ...*domain.Paper) *PaperStore {
	s := &PaperStore{papers: make(map[uuid.UUID]*domain.Paper)}
	for _, p := range papers {
		s.papers[p.ID] = clonePaper(p)
	}
	return s
}

// Create implements store.PaperStore.
func (s *PaperStore) Create(_ context.Context, paper *domain.Paper) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.papers[paper.ID]; ok {
		return store.ErrDuplicate
	}
	s.papers[paper.ID] = clonePaper(paper)
	return nil
}

// Get implements store.PaperStore.
func (s *PaperStore) Get(_ context.Context, id uuid.UUID) (*domain.Paper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.papers[id]
	if !ok {
		return nil, store.ErrPaperNotFound
	}
	return clonePaper(p), nil
}

// GetMany implements store.PaperStore.
func (s *PaperStore) GetMany(_ context.Context, ids []uuid.UUID) ([]*domain.Paper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Paper, 0, len(ids))
	for _, id := range ids {
		p, ok := s.papers[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", store.ErrPaperNotFound, id)
		}
		out = append(out, clonePaper(p))
	}
	return out, nil
}

// ListByProject implements store.PaperStore.
func (s *PaperStore) ListByProject(_ context.Context, projectID uuid.UUID) ([]*domain.Paper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Paper, 0)
	for _, p := range s.papers {
		if p.ProjectID == projectID {
			out = append(out, clonePaper(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ApplyAnalysis implements store.PaperStore.
func (s *PaperStore) ApplyAnalysis(ctx context.Context, id uuid.UUID, analysis domain.PaperAnalysis, at time.Time) error {
	if s.ApplyAnalysisFn != nil {
		return s.ApplyAnalysisFn(ctx, id, analysis, at)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.papers[id]
	if !ok {
		return store.ErrPaperNotFound
	}
	if analysis.Keywords != nil {
		p.Keywords = append([]string{}, analysis.Keywords...)
	}
	if analysis.ResearchAreas != nil {
		p.ResearchAreas = append([]string{}, analysis.ResearchAreas...)
	}
	if analysis.RelevanceScore != nil {
		score := *analysis.RelevanceScore
		p.RelevanceScore = &score
	}
	p.ProcessingStatus = domain.PaperStatusCompleted
	p.UpdatedAt = at
	return nil
}

// SetProcessingStatus implements store.PaperStore.
func (s *PaperStore) SetProcessingStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.PaperProcessingStatus,
	at time.Time,
) error {
	if s.SetProcessingStatusFn != nil {
		return s.SetProcessingStatusFn(ctx, id, status, at)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.papers[id]
	if !ok {
		return store.ErrPaperNotFound
	}
	p.ProcessingStatus = status
	p.UpdatedAt = at
	return nil
}

func clonePaper(p *domain.Paper) *domain.Paper {
	c := *p
	c.Authors = append([]string(nil), p.Authors...)
	c.Keywords = append([]string(nil), p.Keywords...)
	c.ResearchAreas = append([]string(nil), p.ResearchAreas...)
	if p.RelevanceScore != nil {
		score := *p.RelevanceScore
		c.RelevanceScore = &score
	}
	return &c
}
