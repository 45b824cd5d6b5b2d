package httpapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"agent-console/internal/alerts"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestAlertRules(t *testing.T) {
	e := newEnv(t)
	adminToken, userToken := e.token(t, e.admin), e.token(t, e.user)

	w := e.do(t, http.MethodGet, "/v1/alerts/rules/presets", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var presets []alerts.Preset
	decode(t, w, &presets)
	require.Len(t, presets, 4)

	w = e.do(t, http.MethodPost, "/v1/alerts/rules/from-preset/no_activity", userToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodPost, "/v1/alerts/rules/from-preset/no_activity", adminToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var fromPreset alerts.Rule
	decode(t, w, &fromPreset)
	require.Equal(t, alerts.RuleNoActivity, fromPreset.Type)

	w = e.do(t, http.MethodPost, "/v1/alerts/rules/from-preset/unknown", adminToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodPost, "/v1/alerts/rules", adminToken, gin.H{"name": "Bad", "rule_type": "weather"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/v1/alerts/rules", adminToken, gin.H{
		"name":       "Spend",
		"rule_type":  "high_cost",
		"conditions": gin.H{"threshold_amount": 20},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var custom alerts.Rule
	decode(t, w, &custom)
	require.Equal(t, 20.0, custom.Conditions.ThresholdAmount)
	require.Equal(t, 24, custom.Conditions.PeriodHours)

	w = e.do(t, http.MethodPatch, "/v1/alerts/rules/"+custom.ID.String(), adminToken, gin.H{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodGet, "/v1/alerts/rules?active_only=true", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var active []alerts.Rule
	decode(t, w, &active)
	require.Len(t, active, 1)
	require.Equal(t, fromPreset.ID, active[0].ID)

	w = e.do(t, http.MethodDelete, "/v1/alerts/rules/"+custom.ID.String(), adminToken, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(t, http.MethodDelete, "/v1/alerts/rules/"+custom.ID.String(), adminToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAlertEvents(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, e.user)
	ctx := context.Background()

	now := time.Now().UTC()
	first, err := e.alertRepo.CreateEvent(ctx, alerts.Event{TenantID: tenantID, Severity: alerts.SeverityWarning, Title: "older", CreatedAt: now.Add(-time.Hour)})
	require.NoError(t, err)
	_, err = e.alertRepo.CreateEvent(ctx, alerts.Event{TenantID: tenantID, Severity: alerts.SeverityCritical, Title: "newer", CreatedAt: now})
	require.NoError(t, err)

	w := e.do(t, http.MethodGet, "/v1/alerts/events?limit=0", token, nil)
	require.Equal(t, http.StatusOK, w.Code, "zero reads as the default limit")
	w = e.do(t, http.MethodGet, "/v1/alerts/events?limit=201", token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/v1/alerts/events?severity=critical", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var crit []alerts.Event
	decode(t, w, &crit)
	require.Len(t, crit, 1)
	require.Equal(t, "newer", crit[0].Title)

	w = e.do(t, http.MethodPost, "/v1/alerts/events/"+first.ID.String()+"/acknowledge", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var acked alerts.Event
	decode(t, w, &acked)
	require.NotNil(t, acked.AcknowledgedAt)
	require.Equal(t, e.user.ID, *acked.AcknowledgedBy)

	w = e.do(t, http.MethodGet, "/v1/alerts/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st alerts.Stats
	decode(t, w, &st)
	require.Equal(t, 1, st.Unacknowledged)
	require.Equal(t, 2, st.Last24h)
	require.Equal(t, 1, st.BySeverity[alerts.SeverityCritical])

	w = e.do(t, http.MethodPost, "/v1/alerts/events/acknowledge-all", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all struct {
		Acknowledged int `json:"acknowledged"`
	}
	decode(t, w, &all)
	require.Equal(t, 1, all.Acknowledged)

	w = e.do(t, http.MethodGet, "/v1/alerts/events?acknowledged=false", token, nil)
	var open []alerts.Event
	decode(t, w, &open)
	require.Empty(t, open)
}
