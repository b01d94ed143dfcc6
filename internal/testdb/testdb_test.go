package testdb

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithSearchPath(t *testing.T) {
	assert.Equal(t,
		"postgres://u:p@localhost:5432/research?search_path=test_1",
		WithSearchPath("postgres://u:p@localhost:5432/research", "test_1"))
	assert.Equal(t,
		"postgres://u:p@localhost:5432/research?sslmode=disable&search_path=test_1",
		WithSearchPath("postgres://u:p@localhost:5432/research?sslmode=disable", "test_1"))
}

func TestSchemaName(t *testing.T) {
	a, b := SchemaName(), SchemaName()
	assert.NotEqual(t, a, b)
	assert.Regexp(t, regexp.MustCompile(`^test_[0-9a-f]{32}$`), a)
}

func TestOpenMigratesDatabase(t *testing.T) {
	db, _ := Open(t)

	var count int
	err := db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM analysis_tasks").Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}
