package reporting

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"agent-console/internal/calls"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("reporting: not found")
	ErrReportsDisabled = errors.New("reporting: weekly reports are disabled")
)

type Schedule struct {
	Day  string `json:"day"`
	Time string `json:"time"`
}

type Include struct {
	CallSummary     bool `json:"call_summary"`
	Analytics       bool `json:"analytics"`
	Alerts          bool `json:"alerts"`
	Recommendations bool `json:"recommendations"`
}

// ReportConfig is a tenant's weekly report settings. A tenant without a
// stored row gets DefaultConfig.
type ReportConfig struct {
	TenantID   uuid.UUID  `json:"-"`
	Enabled    bool       `json:"enabled"`
	Recipients []string   `json:"recipients"`
	Schedule   Schedule   `json:"schedule"`
	Include    Include    `json:"include"`
	LastSentAt *time.Time `json:"last_sent,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func DefaultConfig(tenantID uuid.UUID) ReportConfig {
	return ReportConfig{
		TenantID:   tenantID,
		Recipients: []string{},
		Schedule:   Schedule{Day: "monday", Time: "09:00"},
		Include:    Include{CallSummary: true, Analytics: true, Alerts: true},
	}
}

// ConfigPatch carries a partial update; nil fields are left alone.
type ConfigPatch struct {
	Enabled    *bool     `json:"enabled"`
	Recipients *[]string `json:"recipients" binding:"omitempty,dive,email"`
	Schedule   *Schedule `json:"schedule"`
	Include    *Include  `json:"include"`
}

func (c ReportConfig) Apply(p ConfigPatch) (ReportConfig, error) {
	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}
	if p.Recipients != nil {
		out := make([]string, 0, len(*p.Recipients))
		for _, r := range *p.Recipients {
			if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
				out = append(out, r)
			}
		}
		c.Recipients = out
	}
	if p.Schedule != nil {
		day := strings.ToLower(strings.TrimSpace(p.Schedule.Day))
		if _, ok := parseWeekday(day); !ok {
			return ReportConfig{}, fmt.Errorf("%w: schedule day %q", ErrInvalidRequest, p.Schedule.Day)
		}
		if _, _, ok := parseClock(p.Schedule.Time); !ok {
			return ReportConfig{}, fmt.Errorf("%w: schedule time must be HH:MM", ErrInvalidRequest)
		}
		c.Schedule = Schedule{Day: day, Time: strings.TrimSpace(p.Schedule.Time)}
	}
	if p.Include != nil {
		c.Include = *p.Include
	}
	return c, nil
}

// Due reports whether now (UTC) falls in the configured day and hour.
func (c ReportConfig) Due(now time.Time) bool {
	if !c.Enabled {
		return false
	}
	wd, ok := parseWeekday(c.Schedule.Day)
	if !ok {
		return false
	}
	hour, _, ok := parseClock(c.Schedule.Time)
	if !ok {
		return false
	}
	now = now.UTC()
	return now.Weekday() == wd && now.Hour() == hour
}

func parseWeekday(s string) (time.Weekday, bool) {
	for _, wd := range weekdayOrder {
		if strings.EqualFold(wd.String(), s) {
			return wd, true
		}
	}
	return 0, false
}

func parseClock(s string) (hour, minute int, ok bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, false
	}
	return t.Hour(), t.Minute(), true
}

// WeeklyReport is the stored summary of one Monday-started week.
type WeeklyReport struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"-"`

	WeekStart time.Time `json:"week_start"`
	WeekEnd   time.Time `json:"week_end"`

	TotalCalls     int     `json:"total_calls"`
	CompletedCalls int     `json:"completed_calls"`
	MissedCalls    int     `json:"missed_calls"`
	FailedCalls    int     `json:"failed_calls"`
	CompletionRate float64 `json:"completion_rate"`
	AvgDuration    float64 `json:"avg_duration"`
	TotalCost      float64 `json:"total_cost"`

	// Change versus the week before; nil when that week had no calls.
	CallsChangePct     *float64 `json:"calls_change_pct"`
	CompletedChangePct *float64 `json:"completed_change_pct"`

	GeneratedAt time.Time  `json:"generated_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	SentTo      []string   `json:"sent_to,omitempty"`
}

// PreviousWeek is the last complete Monday-started week before now.
func PreviousWeek(now time.Time) Window {
	end := startOfWeek(now)
	return Window{Start: end.AddDate(0, 0, -7), End: end}
}

// BuildWeeklyReport summarizes week and compares it with the seven days before.
func BuildWeeklyReport(tenantID uuid.UUID, cs []calls.Call, week Window, now time.Time) WeeklyReport {
	cur := ComputeOverview(cs, week)
	prev := ComputeOverview(cs, Window{Start: week.Start.AddDate(0, 0, -7), End: week.Start})

	return WeeklyReport{
		TenantID:           tenantID,
		WeekStart:          week.Start,
		WeekEnd:            week.End,
		TotalCalls:         cur.TotalCalls,
		CompletedCalls:     cur.CompletedCalls,
		MissedCalls:        cur.MissedCalls,
		FailedCalls:        cur.FailedCalls,
		CompletionRate:     cur.CompletionRate,
		AvgDuration:        cur.AvgDuration,
		TotalCost:          cur.TotalCost,
		CallsChangePct:     changePct(cur.TotalCalls, prev.TotalCalls),
		CompletedChangePct: changePct(cur.CompletedCalls, prev.CompletedCalls),
		GeneratedAt:        now.UTC(),
	}
}

func changePct(cur, prev int) *float64 {
	if prev == 0 {
		return nil
	}
	v := round1(float64(cur-prev) / float64(prev) * 100)
	return &v
}
