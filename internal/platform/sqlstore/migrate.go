package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

// Migrator applies the embedded schema migrations for one dialect.
type Migrator struct {
	provider *goose.Provider
	logger   *slog.Logger
}

// NewMigrator prepares a goose provider over the dialect's migration set.
func NewMigrator(db *sql.DB, d Dialect, logger *slog.Logger) (*Migrator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	gooseDialect := goose.DialectPostgres
	dir := "migrations/postgres"
	if d == SQLite {
		gooseDialect = goose.DialectSQLite3
		dir = "migrations/sqlite"
	}

	fsys, err := fs.Sub(migrationFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(gooseDialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}

	return &Migrator{
		provider: provider,
		logger:   logger.With(slog.String("component", "migrator")),
	}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	for _, r := range results {
		m.logResult(r)
	}
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	r, err := m.provider.Down(ctx)
	if r != nil {
		m.logResult(r)
	}
	if err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	return nil
}

// Version returns the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	v, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// MigrationState describes one known migration.
type MigrationState struct {
	Version int64  `json:"version" yaml:"version"`
	Source  string `json:"source"  yaml:"source"`
	Applied bool   `json:"applied" yaml:"applied"`
	// AppliedAt is empty for pending migrations.
	AppliedAt string `json:"applied_at,omitempty" yaml:"applied_at,omitempty"`
}

// Status lists every known migration and whether it has been applied.
func (m *Migrator) Status(ctx context.Context) ([]MigrationState, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}

	out := make([]MigrationState, 0, len(statuses))
	for _, s := range statuses {
		state := MigrationState{
			Version: s.Source.Version,
			Source:  s.Source.Path,
			Applied: s.State == goose.StateApplied,
		}
		if state.Applied {
			state.AppliedAt = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		out = append(out, state)
	}
	return out, nil
}

func (m *Migrator) logResult(r *goose.MigrationResult) {
	if r.Error != nil {
		m.logger.Error("migration failed",
			slog.Int64("version", r.Source.Version),
			slog.String("source", r.Source.Path),
			slog.String("error", r.Error.Error()))
		return
	}
	m.logger.Info("migration applied",
		slog.Int64("version", r.Source.Version),
		slog.String("source", r.Source.Path),
		slog.String("direction", r.Direction),
		slog.Duration("duration", r.Duration))
}
