package sqlstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/platform/sqlstore"
	"github.com/kaushalacts/research-ai-platform/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceStoreUpsertAndHealth(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	services := newServiceStore(t)

	reg := &domain.ServiceRegistration{Name: "agents", BaseURL: "http://agents.internal:8001", Active: true}
	require.NoError(t, services.Upsert(ctx, reg))

	got, err := services.Get(ctx, "agents")
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.False(t, got.Healthy)
	assert.Nil(t, got.LastCheckedAt)
	assert.Zero(t, got.TotalRequests)

	checkedAt := time.Now().UTC()
	require.NoError(t, services.RecordHealth(ctx, "agents", true, checkedAt))
	require.NoError(t, services.RecordHealth(ctx, "agents", false, checkedAt.Add(time.Minute)))

	got, err = services.Get(ctx, "agents")
	require.NoError(t, err)
	assert.False(t, got.Healthy)
	require.NotNil(t, got.LastCheckedAt)
	assert.WithinDuration(t, checkedAt.Add(time.Minute), *got.LastCheckedAt, time.Millisecond)
	assert.Equal(t, int64(2), got.TotalRequests)
	assert.Equal(t, int64(1), got.FailedRequests)

	t.Run("upsert keeps health state and counters", func(t *testing.T) {
		require.NoError(t, services.Upsert(ctx, &domain.ServiceRegistration{
			Name: "agents", BaseURL: "http://agents-v2.internal:8001", Active: false,
		}))
		after, err := services.Get(ctx, "agents")
		require.NoError(t, err)
		assert.Equal(t, "http://agents-v2.internal:8001", after.BaseURL)
		assert.False(t, after.Active)
		assert.Equal(t, int64(2), after.TotalRequests)
		assert.Equal(t, int64(1), after.FailedRequests)
		require.NotNil(t, after.LastCheckedAt)
	})

	assert.ErrorIs(t, services.RecordHealth(ctx, "missing", true, time.Now()), store.ErrServiceNotFound)
	_, err = services.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrServiceNotFound)

	err = services.Upsert(ctx, &domain.ServiceRegistration{Name: "bad", BaseURL: "not a url"})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestServiceStoreListActive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, d := newTestDB(t)

	regs := []*domain.ServiceRegistration{
		{Name: "zeta", BaseURL: "http://zeta.internal", Active: true},
		{Name: "alpha", BaseURL: "http://alpha.internal", Active: true},
		{Name: "retired", BaseURL: "http://retired.internal", Active: false},
	}
	require.NoError(t, sqlstore.SeedServices(ctx, db, d, regs, testLogger()))

	services := sqlstore.NewServiceStore(db, d, testLogger())
	all, err := services.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := services.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "alpha", active[0].Name)
	assert.Equal(t, "zeta", active[1].Name)
}

func TestSeedServicesRollsBackOnInvalidEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, d := newTestDB(t)

	regs := []*domain.ServiceRegistration{
		{Name: "good", BaseURL: "http://good.internal", Active: true},
		{Name: "", BaseURL: "http://nameless.internal", Active: true},
	}
	err := sqlstore.SeedServices(ctx, db, d, regs, testLogger())
	require.Error(t, err)

	all, err := sqlstore.NewServiceStore(db, d, testLogger()).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
