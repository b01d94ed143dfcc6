package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/store"
)

const papersTable = "research_papers"

var paperColumns = []string{
	"id", "project_id", "title", "abstract", "authors", "doi", "keywords",
	"research_areas", "relevance_score", "processing_status", "created_at", "updated_at",
}

// PaperStore implements store.PaperStore.
type PaperStore struct {
	db     store.DBTX
	sb     sq.StatementBuilderType
	logger *slog.Logger
}

var _ store.PaperStore = (*PaperStore)(nil)

// NewPaperStore creates a PaperStore. It panics if db is nil.
func NewPaperStore(db store.DBTX, d Dialect, logger *slog.Logger) *PaperStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PaperStore{
		db:     db,
		sb:     d.builder(),
		logger: logger.With(slog.String("component", "paper_store")),
	}
}

// Create implements store.PaperStore.
func (s *PaperStore) Create(ctx context.Context, p *domain.Paper) error {
	if p.ID == uuid.Nil || p.ProjectID == uuid.Nil || p.Title == "" {
		return fmt.Errorf("%w: paper requires id, project and title", store.ErrInvalidEntity)
	}
	authors, err := jsonText(p.Authors)
	if err != nil {
		return fmt.Errorf("failed to encode authors: %w", err)
	}
	keywords, err := jsonText(p.Keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}
	areas, err := jsonText(p.ResearchAreas)
	if err != nil {
		return fmt.Errorf("failed to encode research areas: %w", err)
	}
	status := p.ProcessingStatus
	if status == "" {
		status = domain.PaperStatusPending
	}
	now := time.Now().UTC()

	insert := s.sb.Insert(papersTable).
		Columns(paperColumns...).
		Values(p.ID.String(), p.ProjectID.String(), p.Title, p.Abstract, authors, p.DOI, keywords,
			areas, p.RelevanceScore, string(status), now, now)

	if _, err := execBuilder(ctx, s.db, insert); err != nil {
		s.logger.Error("failed to create paper",
			slog.String("paper_id", p.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// Get implements store.PaperStore.
func (s *PaperStore) Get(ctx context.Context, id uuid.UUID) (*domain.Paper, error) {
	row, err := queryRowBuilder(ctx, s.db,
		s.sb.Select(paperColumns...).From(papersTable).Where(sq.Eq{"id": id.String()}))
	if err != nil {
		return nil, err
	}
	p, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrPaperNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}
	return p, nil
}

// GetMany implements store.PaperStore.
func (s *PaperStore) GetMany(ctx context.Context, ids []uuid.UUID) ([]*domain.Paper, error) {
	if len(ids) == 0 {
		return []*domain.Paper{}, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.String())
	}

	papers, err := s.queryPapers(ctx, s.sb.Select(paperColumns...).From(papersTable).
		Where(sq.Eq{"id": keys}))
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*domain.Paper, len(papers))
	for _, p := range papers {
		byID[p.ID] = p
	}
	ordered := make([]*domain.Paper, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", store.ErrPaperNotFound, id)
		}
		ordered = append(ordered, p)
	}
	return ordered, nil
}

// ListByProject implements store.PaperStore.
func (s *PaperStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Paper, error) {
	return s.queryPapers(ctx, s.sb.Select(paperColumns...).From(papersTable).
		Where(sq.Eq{"project_id": projectID.String()}).
		OrderBy("created_at", "id"))
}

// ApplyAnalysis implements store.PaperStore.
func (s *PaperStore) ApplyAnalysis(
	ctx context.Context,
	id uuid.UUID,
	analysis domain.PaperAnalysis,
	at time.Time,
) error {
	update := s.sb.Update(papersTable).
		Set("processing_status", string(domain.PaperStatusCompleted)).
		Set("updated_at", at.UTC()).
		Where(sq.Eq{"id": id.String()})

	if analysis.Keywords != nil {
		keywords, err := jsonText(analysis.Keywords)
		if err != nil {
			return fmt.Errorf("failed to encode keywords: %w", err)
		}
		update = update.Set("keywords", keywords)
	}
	if analysis.ResearchAreas != nil {
		areas, err := jsonText(analysis.ResearchAreas)
		if err != nil {
			return fmt.Errorf("failed to encode research areas: %w", err)
		}
		update = update.Set("research_areas", areas)
	}
	if analysis.RelevanceScore != nil {
		update = update.Set("relevance_score", *analysis.RelevanceScore)
	}

	result, err := execBuilder(ctx, s.db, update)
	if err != nil {
		s.logger.Error("failed to apply paper analysis",
			slog.String("paper_id", id.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrPaperNotFound)
}

// SetProcessingStatus implements store.PaperStore.
func (s *PaperStore) SetProcessingStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.PaperProcessingStatus,
	at time.Time,
) error {
	update := s.sb.Update(papersTable).
		Set("processing_status", string(status)).
		Set("updated_at", at.UTC()).
		Where(sq.Eq{"id": id.String()})

	result, err := execBuilder(ctx, s.db, update)
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrPaperNotFound)
}

func (s *PaperStore) queryPapers(ctx context.Context, q sq.SelectBuilder) ([]*domain.Paper, error) {
	rows, err := queryBuilder(ctx, s.db, q)
	if err != nil {
		s.logger.Error("failed to query papers", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to query papers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	papers := []*domain.Paper{}
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate papers: %w", err)
	}
	return papers, nil
}

func scanPaper(row rowScanner) (*domain.Paper, error) {
	var (
		p        domain.Paper
		authors  []byte
		keywords []byte
		areas    []byte
		score    sql.NullFloat64
		status   string
	)
	if err := row.Scan(
		&p.ID, &p.ProjectID, &p.Title, &p.Abstract, &authors, &p.DOI, &keywords,
		&areas, &score, &status, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if p.Authors, err = decodeStrings(authors); err != nil {
		return nil, fmt.Errorf("failed to decode authors: %w", err)
	}
	if p.Keywords, err = decodeStrings(keywords); err != nil {
		return nil, fmt.Errorf("failed to decode keywords: %w", err)
	}
	if p.ResearchAreas, err = decodeStrings(areas); err != nil {
		return nil, fmt.Errorf("failed to decode research areas: %w", err)
	}
	if score.Valid {
		v := score.Float64
		p.RelevanceScore = &v
	}
	p.ProcessingStatus = domain.PaperProcessingStatus(status)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
