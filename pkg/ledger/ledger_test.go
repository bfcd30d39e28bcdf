//go:build integration

// Package ledger integration tests spin up a real Postgres via
// testcontainers-go, mirroring the teacher's test/database approach of
// testing against the real engine instead of a mock.
package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("llmgate"),
		postgres.WithUsername("llmgate"),
		postgres.WithPassword("llmgate"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSetProjectThenGetUsage_Zero(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	limit := int64(1000)

	require.NoError(t, store.SetProject(ctx, "p1", "Project One", &limit))

	summary, err := store.GetUsage(ctx, "p1", WindowMonth)
	require.NoError(t, err)
	require.Equal(t, int64(0), summary.TotalTokens)
	require.NotNil(t, summary.Remaining)
	require.Equal(t, limit, *summary.Remaining)
}

func TestAdmitThenDebit_IncreasesUsage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	limit := int64(1000)
	require.NoError(t, store.SetProject(ctx, "p2", "Project Two", &limit))

	res, ok, err := store.Admit(ctx, "p2", 100)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Debit(ctx, res, "small", 80, 20, decimal.NewFromFloat(0.001)))

	summary, err := store.GetUsage(ctx, "p2", WindowMonth)
	require.NoError(t, err)
	require.Equal(t, int64(100), summary.TotalTokens)
	require.Equal(t, int64(900), *summary.Remaining)
}

func TestAdmit_BoundaryExactLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	limit := int64(1000)
	require.NoError(t, store.SetProject(ctx, "p3", "Project Three", &limit))

	_, ok, err := store.Admit(ctx, "p3", 1000)
	require.NoError(t, err)
	require.True(t, ok, "current+est == limit must succeed")

	_, ok, err = store.Admit(ctx, "p3", 1)
	require.NoError(t, err)
	require.False(t, ok, "current+est == limit+1 must fail")
}

func TestIncrementRateLimit_Boundary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SetProject(ctx, "p1", "Project One", nil))
	require.NoError(t, store.CreateAPIKey(ctx, "k1", "p1", 2))

	now := time.Now()
	ok1, _, err := store.IncrementRateLimit(ctx, "k1", now, 2)
	require.NoError(t, err)
	require.True(t, ok1)

	ok2, _, err := store.IncrementRateLimit(ctx, "k1", now, 2)
	require.NoError(t, err)
	require.True(t, ok2)

	ok3, _, err := store.IncrementRateLimit(ctx, "k1", now, 2)
	require.NoError(t, err)
	require.False(t, ok3, "third request in window must be rejected")
}
