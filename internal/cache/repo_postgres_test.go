package cache

import (
	"context"
	"testing"

	"agent-console/internal/database/dbtest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepo_UpsertRoundTrip(t *testing.T) {
	db := dbtest.Start(t)
	ctx := context.Background()

	for _, id := range []uuid.UUID{tenantA, tenantB} {
		_, err := db.ExecContext(ctx, `INSERT INTO tenants (id, name) VALUES ($1, $2)`, id, "t-"+id.String())
		require.NoError(t, err)
	}

	store := agentStore(NewPostgresRepo(db))
	require.NoError(t, store.Put(ctx, tenantA, []agent{{ID: "a1", Name: "First", Status: "active"}, {ID: "a2", Name: "Other"}}))
	require.NoError(t, store.Put(ctx, tenantA, []agent{{ID: "a1", Name: "Second"}}))

	got, err := store.Get(ctx, tenantA, "a1")
	require.NoError(t, err)
	require.Equal(t, agent{ID: "a1", Name: "Second"}, got)

	all, err := store.All(ctx, tenantA)
	require.NoError(t, err)
	require.Len(t, all, 2)

	other, err := store.All(ctx, tenantB)
	require.NoError(t, err)
	require.Empty(t, other)

	_, err = store.Get(ctx, tenantB, "a1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepo_ConcurrentUpserts(t *testing.T) {
	db := dbtest.Start(t)
	_, err := db.ExecContext(context.Background(), `INSERT INTO tenants (id, name) VALUES ($1, $2)`, tenantA, "t-a")
	require.NoError(t, err)

	assertConcurrentUpsertsConverge(t, NewPostgresRepo(db))
}
