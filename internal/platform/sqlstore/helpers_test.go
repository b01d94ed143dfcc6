package sqlstore_test

import (
	"database/sql"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/platform/sqlstore"
	"github.com/kaushalacts/research-ai-platform/internal/testdb"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return testdb.Logger()
}

// newTestDB opens a migrated database: sqlite by default, a private postgres
// schema when RAP_TEST_DATABASE_URL is set.
func newTestDB(t *testing.T) (*sql.DB, sqlstore.Dialect) {
	t.Helper()
	return testdb.Open(t)
}

func newTaskStore(t *testing.T) *sqlstore.TaskStore {
	t.Helper()
	db, d := newTestDB(t)
	return sqlstore.NewTaskStore(db, d, testLogger())
}

func newPaperStore(t *testing.T) *sqlstore.PaperStore {
	t.Helper()
	db, d := newTestDB(t)
	return sqlstore.NewPaperStore(db, d, testLogger())
}

func newServiceStore(t *testing.T) *sqlstore.ServiceStore {
	t.Helper()
	db, d := newTestDB(t)
	return sqlstore.NewServiceStore(db, d, testLogger())
}

func newQueuedTask(t *testing.T, taskType domain.TaskType, targets ...uuid.UUID) *domain.AnalysisTask {
	t.Helper()
	task, err := domain.NewAnalysisTask(uuid.New(), "researcher-1", taskType, []byte(`{"depth":"full"}`), targets)
	require.NoError(t, err)
	return task
}
