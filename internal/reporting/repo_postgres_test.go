package reporting

import (
	"context"
	"testing"
	"time"

	"agent-console/internal/database/dbtest"

	"github.com/stretchr/testify/require"
)

func TestPostgresRepo_ConfigAndReports(t *testing.T) {
	db := dbtest.Start(t)
	ctx := context.Background()
	_, err := db.ExecContext(ctx, `INSERT INTO tenants (id, name) VALUES ($1, 'acme')`, tenant)
	require.NoError(t, err)

	repo := NewPostgresRepo(db)

	_, err = repo.GetConfig(ctx, tenant)
	require.ErrorIs(t, err, ErrNotFound)

	cfg := DefaultConfig(tenant)
	cfg.Enabled = true
	cfg.Recipients = []string{"ops@example.com"}
	require.NoError(t, repo.SaveConfig(ctx, cfg))

	got, err := repo.GetConfig(ctx, tenant)
	require.NoError(t, err)
	require.True(t, got.Enabled)
	require.Equal(t, cfg.Recipients, got.Recipients)
	require.Equal(t, cfg.Include, got.Include)

	enabled, err := repo.ListEnabledConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)

	week := PreviousWeek(time.Date(2024, 1, 17, 8, 0, 0, 0, time.UTC))
	rep := BuildWeeklyReport(tenant, nil, week, time.Now())
	first, err := repo.SaveReport(ctx, rep)
	require.NoError(t, err)
	require.Nil(t, first.CallsChangePct)

	require.NoError(t, repo.MarkSent(ctx, tenant, first.ID, time.Now(), []string{"ops@example.com"}))

	rep.TotalCalls = 7
	second, err := repo.SaveReport(ctx, rep)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 7, second.TotalCalls)
	require.NotNil(t, second.SentAt, "regeneration keeps delivery state")

	list, err := repo.ListReports(ctx, tenant, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, []string{"ops@example.com"}, list[0].SentTo)
}
