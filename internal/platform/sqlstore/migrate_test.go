package sqlstore_test

import (
	"context"
	"testing"

	"github.com/kaushalacts/research-ai-platform/internal/platform/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrator(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, d := newTestDB(t)

	migrator, err := sqlstore.NewMigrator(db, d, testLogger())
	require.NoError(t, err)

	version, err := migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	statuses, err := migrator.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Applied)
	assert.NotEmpty(t, statuses[0].AppliedAt)

	require.NoError(t, migrator.Down(ctx))
	version, err = migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)

	require.NoError(t, migrator.Up(ctx))
	require.NoError(t, migrator.Up(ctx), "up is idempotent")
}

func TestParseDialect(t *testing.T) {
	t.Parallel()

	d, err := sqlstore.ParseDialect("postgres")
	require.NoError(t, err)
	assert.Equal(t, "pgx", d.DriverName())

	d, err = sqlstore.ParseDialect("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.DriverName())

	_, err = sqlstore.ParseDialect("mysql")
	assert.Error(t, err)
}
