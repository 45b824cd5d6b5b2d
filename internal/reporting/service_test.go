package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"agent-console/internal/calls"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type staticCalls struct {
	calls []calls.Call
	err   error
}

func (s staticCalls) TenantCalls(context.Context, uuid.UUID) ([]calls.Call, error) {
	return s.calls, s.err
}

var tenant = uuid.MustParse("11111111-1111-1111-1111-111111111111")

func newTestService(src CallSource, now time.Time) (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	svc := NewService(repo, src, nil)
	svc.clock = func() time.Time { return now }
	return svc, repo
}

func TestConfig_DefaultsAndPatch(t *testing.T) {
	svc, _ := newTestService(staticCalls{}, time.Now())
	ctx := context.Background()

	c, err := svc.Config(ctx, tenant)
	require.NoError(t, err)
	require.False(t, c.Enabled)
	require.Equal(t, "monday", c.Schedule.Day)
	require.NotNil(t, c.Recipients)

	enabled := true
	recipients := []string{" Ops@Example.com ", ""}
	c, err = svc.UpdateConfig(ctx, tenant, ConfigPatch{
		Enabled:    &enabled,
		Recipients: &recipients,
		Schedule:   &Schedule{Day: "Friday", Time: "17:30"},
	})
	require.NoError(t, err)
	require.True(t, c.Enabled)
	require.Equal(t, []string{"ops@example.com"}, c.Recipients)
	require.Equal(t, "friday", c.Schedule.Day)

	again, err := svc.Config(ctx, tenant)
	require.NoError(t, err)
	require.Equal(t, c.Recipients, again.Recipients)

	_, err = svc.UpdateConfig(ctx, tenant, ConfigPatch{Schedule: &Schedule{Day: "someday", Time: "09:00"}})
	require.ErrorIs(t, err, ErrInvalidRequest)
	_, err = svc.UpdateConfig(ctx, tenant, ConfigPatch{Schedule: &Schedule{Day: "monday", Time: "25:00"}})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestGenerate_ComparesWithPriorWeek(t *testing.T) {
	now := time.Date(2024, 1, 17, 8, 0, 0, 0, time.UTC) // Wednesday; previous week starts Jan 8
	src := staticCalls{calls: []calls.Call{
		call(calls.StatusCompleted, "2024-01-08T10:00:00Z", f(60)),
		call(calls.StatusCompleted, "2024-01-09T10:00:00Z", f(120)),
		call(calls.StatusMissed, "2024-01-14T23:59:00Z", nil),
		call(calls.StatusCompleted, "2024-01-03T10:00:00Z", f(60)),
		call(calls.StatusCompleted, "2024-01-16T10:00:00Z", f(60)),
	}}
	svc, _ := newTestService(src, now)

	rep, err := svc.Generate(context.Background(), tenant)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), rep.WeekStart)
	require.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), rep.WeekEnd)
	require.Equal(t, 3, rep.TotalCalls)
	require.Equal(t, 2, rep.CompletedCalls)
	require.Equal(t, 90.0, rep.AvgDuration)
	require.NotNil(t, rep.CallsChangePct)
	require.Equal(t, 200.0, *rep.CallsChangePct)
	require.Equal(t, 100.0, *rep.CompletedChangePct)

	again, err := svc.Generate(context.Background(), tenant)
	require.NoError(t, err)
	require.Equal(t, rep.ID, again.ID, "same week upserts")

	list, err := svc.ListReports(context.Background(), tenant, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestGenerate_NoPriorWeekLeavesChangeNil(t *testing.T) {
	svc, _ := newTestService(staticCalls{}, time.Date(2024, 1, 17, 8, 0, 0, 0, time.UTC))
	rep, err := svc.Generate(context.Background(), tenant)
	require.NoError(t, err)
	require.Zero(t, rep.TotalCalls)
	require.Nil(t, rep.CallsChangePct)
}

func TestSendNow(t *testing.T) {
	now := time.Date(2024, 1, 17, 8, 0, 0, 0, time.UTC)
	svc, repo := newTestService(staticCalls{}, now)
	ctx := context.Background()

	_, err := svc.SendNow(ctx, tenant)
	require.ErrorIs(t, err, ErrReportsDisabled)

	enabled := true
	recipients := []string{"ops@example.com"}
	_, err = svc.UpdateConfig(ctx, tenant, ConfigPatch{Enabled: &enabled, Recipients: &recipients})
	require.NoError(t, err)

	rep, err := svc.SendNow(ctx, tenant)
	require.NoError(t, err)
	require.NotNil(t, rep.SentAt)
	require.Equal(t, now, *rep.SentAt)

	stored, err := repo.ListReports(ctx, tenant, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"ops@example.com"}, stored[0].SentTo)

	cfg, err := svc.Config(ctx, tenant)
	require.NoError(t, err)
	require.NotNil(t, cfg.LastSentAt)
}

func TestSendNow_CallSourceError(t *testing.T) {
	svc, repo := newTestService(staticCalls{err: errors.New("db down")}, time.Now())
	enabled := true
	require.NoError(t, repo.SaveConfig(context.Background(), ReportConfig{TenantID: tenant, Enabled: enabled}))

	_, err := svc.SendNow(context.Background(), tenant)
	require.Error(t, err)
}

func TestRunDue(t *testing.T) {
	monday9 := time.Date(2024, 1, 15, 9, 20, 0, 0, time.UTC)
	svc, repo := newTestService(staticCalls{}, monday9)
	ctx := context.Background()

	other := uuid.New()
	require.NoError(t, repo.SaveConfig(ctx, ReportConfig{TenantID: tenant, Enabled: true, Schedule: Schedule{Day: "monday", Time: "09:00"}}))
	require.NoError(t, repo.SaveConfig(ctx, ReportConfig{TenantID: other, Enabled: true, Schedule: Schedule{Day: "tuesday", Time: "09:00"}}))

	n, err := svc.RunDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = svc.RunDue(ctx)
	require.NoError(t, err)
	require.Zero(t, n, "already sent this hour")
}
