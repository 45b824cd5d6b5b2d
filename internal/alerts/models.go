// Package alerts manages per-tenant alert rules, the events they raise and
// the periodic evaluation of rules against the tenant's call history.
package alerts

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("alerts: not found")
	ErrInvalidArgument = errors.New("alerts: invalid argument")
)

type RuleType string

const (
	RuleMissedCalls   RuleType = "missed_calls"
	RuleLowCompletion RuleType = "low_completion"
	RuleHighCost      RuleType = "high_cost"
	RuleNoActivity    RuleType = "no_activity"
	RuleCustom        RuleType = "custom"
)

func (t RuleType) Valid() bool {
	switch t {
	case RuleMissedCalls, RuleLowCompletion, RuleHighCost, RuleNoActivity, RuleCustom:
		return true
	}
	return false
}

// Conditions holds the thresholds of every rule type; each type reads only
// its own fields. Zero values are replaced by the type's defaults.
type Conditions struct {
	Threshold       int     `json:"threshold,omitempty"`
	PeriodMinutes   int     `json:"period_minutes,omitempty"`
	ThresholdPct    float64 `json:"threshold_pct,omitempty"`
	MinCalls        int     `json:"min_calls,omitempty"`
	ThresholdAmount float64 `json:"threshold_amount,omitempty"`
	PeriodHours     int     `json:"period_hours,omitempty"`
	InactiveHours   int     `json:"inactive_hours,omitempty"`
}

func (c Conditions) withDefaults(t RuleType) Conditions {
	def := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	switch t {
	case RuleMissedCalls:
		def(&c.Threshold, 5)
		def(&c.PeriodMinutes, 60)
	case RuleLowCompletion:
		if c.ThresholdPct <= 0 {
			c.ThresholdPct = 50
		}
		def(&c.MinCalls, 10)
	case RuleHighCost:
		if c.ThresholdAmount <= 0 {
			c.ThresholdAmount = 100
		}
		def(&c.PeriodHours, 24)
	case RuleNoActivity:
		def(&c.InactiveHours, 4)
	}
	return c
}

const (
	DefaultCooldownMinutes = 60
	maxCooldownMinutes     = 7 * 24 * 60
)

type Rule struct {
	ID              uuid.UUID  `json:"id"`
	TenantID        uuid.UUID  `json:"-"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Type            RuleType   `json:"rule_type"`
	Conditions      Conditions `json:"conditions"`
	NotifyEmail     bool       `json:"notify_email"`
	NotifyWebhook   bool       `json:"notify_webhook"`
	WebhookURL      string     `json:"webhook_url,omitempty"`
	Active          bool       `json:"is_active"`
	CooldownMinutes int        `json:"cooldown_minutes"`
	LastTriggered   *time.Time `json:"last_triggered,omitempty"`
	TriggerCount    int        `json:"trigger_count"`
	CreatedBy       uuid.UUID  `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CoolingDown reports whether the rule fired less than its cooldown ago.
func (r Rule) CoolingDown(now time.Time) bool {
	if r.LastTriggered == nil {
		return false
	}
	return now.Before(r.LastTriggered.Add(time.Duration(r.CooldownMinutes) * time.Minute))
}

type NewRule struct {
	Name            string
	Description     string
	Type            RuleType
	Conditions      Conditions
	NotifyEmail     *bool
	NotifyWebhook   bool
	WebhookURL      string
	CooldownMinutes *int
}

// RulePatch carries a partial update; nil fields are left alone.
type RulePatch struct {
	Name            *string
	Description     *string
	Conditions      *Conditions
	NotifyEmail     *bool
	NotifyWebhook   *bool
	WebhookURL      *string
	Active          *bool
	CooldownMinutes *int
}

func (p RulePatch) empty() bool {
	return p.Name == nil && p.Description == nil && p.Conditions == nil && p.NotifyEmail == nil &&
		p.NotifyWebhook == nil && p.WebhookURL == nil && p.Active == nil && p.CooldownMinutes == nil
}

// Preset is a ready-made rule a tenant can instantiate.
type Preset struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Type            RuleType   `json:"rule_type"`
	Conditions      Conditions `json:"conditions"`
	CooldownMinutes int        `json:"cooldown_minutes"`
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

type Event struct {
	ID             uuid.UUID      `json:"id"`
	TenantID       uuid.UUID      `json:"-"`
	RuleID         *uuid.UUID     `json:"rule_id,omitempty"`
	Severity       Severity       `json:"severity"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Context        map[string]any `json:"context"`
	NotifiedAt     *time.Time     `json:"notified_at,omitempty"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at,omitempty"`
	AcknowledgedBy *uuid.UUID     `json:"acknowledged_by,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

const (
	DefaultEventLimit = 50
	MaxEventLimit     = 200
)

type EventFilter struct {
	Limit        int
	Severity     Severity
	Acknowledged *bool
}

// Stats counts unacknowledged events overall; Last24h and BySeverity cover
// events since the cut-off only.
type Stats struct {
	Unacknowledged int              `json:"unacknowledged"`
	Last24h        int              `json:"last_24h"`
	BySeverity     map[Severity]int `json:"by_severity"`
	ActiveRules    int              `json:"active_rules"`
}
