// Package testdb opens isolated, migrated databases for store tests.
//
// By default each call gets a sqlite file in the test's temp directory.
// When RAP_TEST_DATABASE_URL holds a postgres URL, each call instead gets a
// fresh schema in that database, selected through search_path and dropped
// on cleanup, so parallel tests never see each other's rows. The URL must be
// in postgres:// form; keyword/value DSNs are not supported.
package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/platform/sqlstore"
	"github.com/kaushalacts/research-ai-platform/internal/redact"
	"github.com/stretchr/testify/require"
)

// EnvDatabaseURL names the variable holding the postgres test database.
const EnvDatabaseURL = "RAP_TEST_DATABASE_URL"

// setupTimeout bounds schema creation and migration.
const setupTimeout = 30 * time.Second

// Logger discards everything; stores under test still exercise their
// logging paths.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Open returns a migrated database and its dialect. The database is closed
// and, for postgres, its schema dropped when the test ends.
func Open(t testing.TB) (*sql.DB, sqlstore.Dialect) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	if url := lookupURL(t); url != "" {
		return openPostgres(ctx, t, url), sqlstore.Postgres
	}
	return openSQLite(ctx, t), sqlstore.SQLite
}

func lookupURL(t testing.TB) string {
	t.Helper()
	url := strings.TrimSpace(os.Getenv(EnvDatabaseURL))
	if url == "" {
		return ""
	}
	if !strings.HasPrefix(url, "postgres://") && !strings.HasPrefix(url, "postgresql://") {
		t.Fatalf("%s must be a postgres URL, got %s", EnvDatabaseURL, redact.String(url))
	}
	return url
}

func openSQLite(ctx context.Context, t testing.TB) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "store.db") + "?_pragma=busy_timeout(5000)"
	db, err := sqlstore.Open(ctx, sqlstore.SQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrate(ctx, t, db, sqlstore.SQLite)
	return db
}

func openPostgres(ctx context.Context, t testing.TB, url string) *sql.DB {
	t.Helper()

	admin, err := sqlstore.Open(ctx, sqlstore.Postgres, url)
	if err != nil {
		t.Fatalf("failed to connect to %s: %v", redact.String(url), err)
	}
	t.Cleanup(func() { _ = admin.Close() })

	schema := SchemaName()
	_, err = admin.ExecContext(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err, "create test schema")
	t.Cleanup(func() {
		dropCtx, cancel := context.WithTimeout(context.Background(), setupTimeout)
		defer cancel()
		if _, err := admin.ExecContext(dropCtx, "DROP SCHEMA "+schema+" CASCADE"); err != nil {
			t.Logf("failed to drop test schema %s: %v", schema, err)
		}
	})

	db, err := sqlstore.Open(ctx, sqlstore.Postgres, WithSearchPath(url, schema))
	require.NoError(t, err)
	// Registered after the admin cleanups, so it runs before the drop.
	t.Cleanup(func() { _ = db.Close() })

	migrate(ctx, t, db, sqlstore.Postgres)
	return db
}

func migrate(ctx context.Context, t testing.TB, db *sql.DB, d sqlstore.Dialect) {
	t.Helper()
	m, err := sqlstore.NewMigrator(db, d, Logger())
	require.NoError(t, err)
	require.NoError(t, m.Up(ctx), "apply migrations")
}

// SchemaName returns a unique, identifier-safe schema name.
func SchemaName() string {
	return "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// WithSearchPath appends a search_path runtime parameter to a postgres URL.
func WithSearchPath(url, schema string) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%ssearch_path=%s", url, sep, schema)
}
