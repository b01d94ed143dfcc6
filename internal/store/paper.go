package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
)

// PaperStore reads papers and accepts projected analysis updates.
type PaperStore interface {
	// Create inserts a paper. Papers are normally written by the primary
	// application; this exists for seeding and tests.
	Create(ctx context.Context, paper *domain.Paper) error

	// Get returns the paper, or ErrPaperNotFound.
	Get(ctx context.Context, id uuid.UUID) (*domain.Paper, error)

	// GetMany returns the papers in the order of ids. A missing id yields
	// ErrPaperNotFound.
	GetMany(ctx context.Context, ids []uuid.UUID) ([]*domain.Paper, error)

	// ListByProject returns every paper of a project ordered by creation.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Paper, error)

	// ApplyAnalysis writes the non-nil analysis fields and marks the paper
	// completed.
	ApplyAnalysis(ctx context.Context, id uuid.UUID, analysis domain.PaperAnalysis, at time.Time) error

	// SetProcessingStatus updates only the processing status.
	SetProcessingStatus(ctx context.Context, id uuid.UUID, status domain.PaperProcessingStatus, at time.Time) error
}
