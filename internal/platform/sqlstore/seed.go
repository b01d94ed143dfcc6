package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/store"
)

// SeedServices upserts the configured registrations in one transaction so a
// bad entry leaves the table untouched.
func SeedServices(
	ctx context.Context,
	db *sql.DB,
	d Dialect,
	regs []*domain.ServiceRegistration,
	logger *slog.Logger,
) error {
	services := NewServiceStore(db, d, logger)
	return store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := services.WithTx(tx)
		for _, reg := range regs {
			if err := txStore.Upsert(ctx, reg); err != nil {
				return fmt.Errorf("failed to seed service %q: %w", reg.Name, err)
			}
		}
		return nil
	})
}
