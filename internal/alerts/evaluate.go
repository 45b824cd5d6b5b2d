package alerts

import (
	"fmt"
	"time"

	"agent-console/internal/calls"
	"agent-console/internal/reporting"
)

// completionWindow is the look-back for low_completion rules, which carry no period.
const completionWindow = 24 * time.Hour

// Evaluate checks one rule against a tenant's calls at now. It returns the
// event to raise, or false when the rule is inactive, cooling down, custom,
// or its condition does not hold.
func Evaluate(r Rule, cs []calls.Call, now time.Time) (Event, bool) {
	if !r.Active || r.CoolingDown(now) {
		return Event{}, false
	}
	c := r.Conditions.withDefaults(r.Type)
	since := func(d time.Duration) reporting.Overview {
		return reporting.ComputeOverview(cs, reporting.Window{Start: now.Add(-d), End: now})
	}

	var ev Event
	switch r.Type {
	case RuleMissedCalls:
		ov := since(time.Duration(c.PeriodMinutes) * time.Minute)
		if ov.MissedCalls < c.Threshold {
			return Event{}, false
		}
		ev = Event{
			Severity: escalate(float64(ov.MissedCalls), float64(c.Threshold)),
			Title:    fmt.Sprintf("%d missed calls", ov.MissedCalls),
			Message:  fmt.Sprintf("%d calls were missed in the last %d minutes (threshold %d).", ov.MissedCalls, c.PeriodMinutes, c.Threshold),
			Context:  map[string]any{"missed_calls": ov.MissedCalls, "threshold": c.Threshold, "period_minutes": c.PeriodMinutes},
		}

	case RuleLowCompletion:
		ov := since(completionWindow)
		if ov.TotalCalls < c.MinCalls || ov.CompletionRate >= c.ThresholdPct {
			return Event{}, false
		}
		sev := SeverityWarning
		if ov.CompletionRate < c.ThresholdPct/2 {
			sev = SeverityCritical
		}
		ev = Event{
			Severity: sev,
			Title:    fmt.Sprintf("Completion rate at %.1f%%", ov.CompletionRate),
			Message:  fmt.Sprintf("Only %d of %d calls completed in the last 24 hours (threshold %.1f%%).", ov.CompletedCalls, ov.TotalCalls, c.ThresholdPct),
			Context:  map[string]any{"completion_rate": ov.CompletionRate, "total_calls": ov.TotalCalls, "threshold_pct": c.ThresholdPct},
		}

	case RuleHighCost:
		ov := since(time.Duration(c.PeriodHours) * time.Hour)
		if ov.TotalCost < c.ThresholdAmount {
			return Event{}, false
		}
		ev = Event{
			Severity: escalate(ov.TotalCost, c.ThresholdAmount),
			Title:    fmt.Sprintf("Call spend at %.2f", ov.TotalCost),
			Message:  fmt.Sprintf("Calls cost %.2f over the last %d hours (threshold %.2f).", ov.TotalCost, c.PeriodHours, c.ThresholdAmount),
			Context:  map[string]any{"total_cost": ov.TotalCost, "threshold_amount": c.ThresholdAmount, "period_hours": c.PeriodHours},
		}

	case RuleNoActivity:
		last, ok := latestStart(cs)
		limit := time.Duration(c.InactiveHours) * time.Hour
		if !ok || now.Sub(last) < limit {
			return Event{}, false
		}
		ev = Event{
			Severity: SeverityInfo,
			Title:    "No recent calls",
			Message:  fmt.Sprintf("No call since %s (more than %d hours).", last.UTC().Format(time.RFC3339), c.InactiveHours),
			Context:  map[string]any{"last_call_at": last.UTC().Format(time.RFC3339), "inactive_hours": c.InactiveHours},
		}

	default:
		return Event{}, false
	}

	id := r.ID
	ev.TenantID = r.TenantID
	ev.RuleID = &id
	ev.Title = r.Name + ": " + ev.Title
	ev.CreatedAt = now.UTC()
	return ev, true
}

// escalate is critical at twice the threshold, warning otherwise.
func escalate(v, threshold float64) Severity {
	if v >= 2*threshold {
		return SeverityCritical
	}
	return SeverityWarning
}

func latestStart(cs []calls.Call) (time.Time, bool) {
	var (
		last  time.Time
		found bool
	)
	for _, c := range cs {
		if t, ok := c.Start(); ok && (!found || t.After(last)) {
			last, found = t, true
		}
	}
	return last, found
}
