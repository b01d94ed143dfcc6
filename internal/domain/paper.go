package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaperProcessingStatus tracks analysis progress on a paper.
type PaperProcessingStatus string

// Paper processing status values.
const (
	PaperStatusPending    PaperProcessingStatus = "pending"
	PaperStatusProcessing PaperProcessingStatus = "processing"
	PaperStatusCompleted  PaperProcessingStatus = "completed"
	PaperStatusFailed     PaperProcessingStatus = "failed"
)

// Paper is the research paper record owned by the primary application.
// Only the analysis fields are written by this service.
type Paper struct {
	ID               uuid.UUID             `json:"id"`
	ProjectID        uuid.UUID             `json:"project_id"`
	Title            string                `json:"title"`
	Abstract         string                `json:"abstract"`
	Authors          []string              `json:"authors"`
	DOI              string                `json:"doi,omitempty"`
	Keywords         []string              `json:"keywords"`
	ResearchAreas    []string              `json:"research_areas"`
	RelevanceScore   *float64              `json:"relevance_score,omitempty"`
	ProcessingStatus PaperProcessingStatus `json:"processing_status"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// Snapshot returns the subset of the paper sent to remote services.
func (p *Paper) Snapshot() PaperSnapshot {
	authors := p.Authors
	if authors == nil {
		authors = []string{}
	}
	return PaperSnapshot{
		ID:       p.ID.String(),
		Title:    p.Title,
		Abstract: p.Abstract,
		Authors:  authors,
		DOI:      p.DOI,
	}
}

// PaperAnalysis is the projection of a completed paper analysis onto the
// paper record. Nil slices and a nil score leave the stored values as they are.
type PaperAnalysis struct {
	Keywords       []string `json:"keywords,omitempty"`
	ResearchAreas  []string `json:"research_areas,omitempty"`
	RelevanceScore *float64 `json:"relevance_score,omitempty"`
}
