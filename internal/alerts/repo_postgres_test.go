package alerts

import (
	"context"
	"testing"
	"time"

	"agent-console/internal/calls"
	"agent-console/internal/database/dbtest"

	"github.com/stretchr/testify/require"
)

func TestPostgresRepo_RulesAndEvents(t *testing.T) {
	db := dbtest.Start(t)
	ctx := context.Background()
	_, err := db.ExecContext(ctx, `INSERT INTO tenants (id, name) VALUES ($1, 'acme'), ($2, 'globex')`, tenantA, tenantB)
	require.NoError(t, err)

	f := newFixture(t, NewPostgresRepo(db))

	r, err := f.svc.CreateFromPreset(ctx, f.admin, "missed_calls_spike")
	require.NoError(t, err)
	require.Equal(t, Conditions{Threshold: 5, PeriodMinutes: 60}, r.Conditions)

	f.src.cs = repeat(6, call(calls.StatusMissed, 5*time.Minute, 0))
	n, err := f.svc.EvaluateTenant(ctx, tenantA)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	rules, err := f.svc.Rules(ctx, tenantA, true)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.Equal(t, 1, rules[0].TriggerCount)
	require.NotNil(t, rules[0].LastTriggered)

	evs, err := f.svc.Events(ctx, tenantA, EventFilter{})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, SeverityWarning, evs[0].Severity)
	require.EqualValues(t, 6, evs[0].Context["missed_calls"])

	first, err := f.svc.Acknowledge(ctx, f.admin, evs[0].ID)
	require.NoError(t, err)
	require.NotNil(t, first.AcknowledgedAt)
	*f.now = now.Add(time.Hour)
	again, err := f.svc.Acknowledge(ctx, f.admin, evs[0].ID)
	require.NoError(t, err)
	require.Equal(t, *first.AcknowledgedAt, *again.AcknowledgedAt)

	no := false
	open, err := f.svc.Events(ctx, tenantA, EventFilter{Acknowledged: &no})
	require.NoError(t, err)
	require.Empty(t, open)

	st, err := f.svc.Stats(ctx, tenantA)
	require.NoError(t, err)
	require.Equal(t, 0, st.Unacknowledged)
	require.Equal(t, 1, st.Last24h)
	require.Equal(t, 1, st.BySeverity[SeverityWarning])
	require.Equal(t, 1, st.ActiveRules)

	require.NoError(t, f.svc.DeleteRule(ctx, f.admin, r.ID))
	evs, err = f.svc.Events(ctx, tenantA, EventFilter{})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Nil(t, evs[0].RuleID, "events outlive their rule")
}
