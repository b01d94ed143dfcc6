package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/store"
)

const servicesTable = "service_registrations"

var serviceColumns = []string{
	"name", "base_url", "is_active", "is_healthy", "last_checked_at",
	"total_requests", "failed_requests", "created_at", "updated_at",
}

// ServiceStore implements store.ServiceStore.
type ServiceStore struct {
	db     store.DBTX
	sb     sq.StatementBuilderType
	logger *slog.Logger
}

var _ store.ServiceStore = (*ServiceStore)(nil)

// NewServiceStore creates a ServiceStore. It panics if db is nil.
func NewServiceStore(db store.DBTX, d Dialect, logger *slog.Logger) *ServiceStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ServiceStore{
		db:     db,
		sb:     d.builder(),
		logger: logger.With(slog.String("component", "service_store")),
	}
}

// WithTx returns a ServiceStore bound to the transaction.
func (s *ServiceStore) WithTx(tx *sql.Tx) *ServiceStore {
	return &ServiceStore{db: tx, sb: s.sb, logger: s.logger}
}

// Upsert implements store.ServiceStore.
func (s *ServiceStore) Upsert(ctx context.Context, reg *domain.ServiceRegistration) error {
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	now := time.Now().UTC()

	insert := s.sb.Insert(servicesTable).
		Columns("name", "base_url", "is_active", "created_at", "updated_at").
		Values(reg.Name, reg.BaseURL, reg.Active, now, now).
		Suffix("ON CONFLICT (name) DO UPDATE SET " +
			"base_url = EXCLUDED.base_url, " +
			"is_active = EXCLUDED.is_active, " +
			"updated_at = EXCLUDED.updated_at")

	if _, err := execBuilder(ctx, s.db, insert); err != nil {
		s.logger.Error("failed to upsert service registration",
			slog.String("service", reg.Name),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// Get implements store.ServiceStore.
func (s *ServiceStore) Get(ctx context.Context, name string) (*domain.ServiceRegistration, error) {
	row, err := queryRowBuilder(ctx, s.db,
		s.sb.Select(serviceColumns...).From(servicesTable).Where(sq.Eq{"name": name}))
	if err != nil {
		return nil, err
	}
	reg, err := scanService(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service registration: %w", err)
	}
	return reg, nil
}

// List implements store.ServiceStore.
func (s *ServiceStore) List(ctx context.Context) ([]*domain.ServiceRegistration, error) {
	return s.queryServices(ctx, s.sb.Select(serviceColumns...).From(servicesTable).OrderBy("name"))
}

// ListActive implements store.ServiceStore.
func (s *ServiceStore) ListActive(ctx context.Context) ([]*domain.ServiceRegistration, error) {
	return s.queryServices(ctx, s.sb.Select(serviceColumns...).From(servicesTable).
		Where(sq.Eq{"is_active": true}).OrderBy("name"))
}

// RecordHealth implements store.ServiceStore.
func (s *ServiceStore) RecordHealth(ctx context.Context, name string, healthy bool, at time.Time) error {
	failedInc := 0
	if !healthy {
		failedInc = 1
	}

	update := s.sb.Update(servicesTable).
		Set("is_healthy", healthy).
		Set("last_checked_at", at.UTC()).
		Set("total_requests", sq.Expr("total_requests + 1")).
		Set("failed_requests", sq.Expr("failed_requests + ?", failedInc)).
		Set("updated_at", at.UTC()).
		Where(sq.Eq{"name": name})

	result, err := execBuilder(ctx, s.db, update)
	if err != nil {
		s.logger.Error("failed to record service health",
			slog.String("service", name),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrServiceNotFound)
}

func (s *ServiceStore) queryServices(ctx context.Context, q sq.SelectBuilder) ([]*domain.ServiceRegistration, error) {
	rows, err := queryBuilder(ctx, s.db, q)
	if err != nil {
		s.logger.Error("failed to query service registrations", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to query service registrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	regs := []*domain.ServiceRegistration{}
	for rows.Next() {
		reg, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service registration: %w", err)
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate service registrations: %w", err)
	}
	return regs, nil
}

func scanService(row rowScanner) (*domain.ServiceRegistration, error) {
	var (
		reg         domain.ServiceRegistration
		lastChecked sql.NullTime
	)
	if err := row.Scan(
		&reg.Name, &reg.BaseURL, &reg.Active, &reg.Healthy, &lastChecked,
		&reg.TotalRequests, &reg.FailedRequests, &reg.CreatedAt, &reg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lastChecked.Valid {
		ts := lastChecked.Time.UTC()
		reg.LastCheckedAt = &ts
	}
	reg.CreatedAt = reg.CreatedAt.UTC()
	reg.UpdatedAt = reg.UpdatedAt.UTC()
	return &reg, nil
}
