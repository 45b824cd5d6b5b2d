package calls

import (
	"strings"
	"time"
)

// Call is one provider call record as the console sees it.
//
// Optional provider fields are pointers: nil DurationSeconds is excluded from
// averages, nil Cost counts as zero, nil StartedAt excludes the call from every
// time-windowed statistic.
type Call struct {
	ID        string `json:"id"`
	AgentID   string `json:"agent_id,omitempty"`
	AgentName string `json:"agent_name,omitempty"`

	FromNumber string `json:"from_number,omitempty"`
	ToNumber   string `json:"to_number,omitempty"`
	Direction  string `json:"direction,omitempty"`

	Status Status `json:"status"`

	StartedAt *time.Time `json:"start_time,omitempty"`
	EndedAt   *time.Time `json:"end_time,omitempty"`

	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	Cost            *float64 `json:"cost,omitempty"`

	Summary      string            `json:"summary,omitempty"`
	RecordingURL string            `json:"recording_url,omitempty"`
	Transcript   []TranscriptEntry `json:"transcript,omitempty"`
}

// Status is open-ended: values the console does not know are passed through
// and count toward totals only.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusMissed    Status = "missed"
	StatusFailed    Status = "failed"
	StatusOngoing   Status = "ongoing"
)

// NormalizeStatus lowercases and trims a provider status.
func NormalizeStatus(s string) Status {
	return Status(strings.ToLower(strings.TrimSpace(s)))
}

type Speaker string

const (
	SpeakerAgent  Speaker = "agent"
	SpeakerCaller Speaker = "caller"
)

type TranscriptEntry struct {
	Speaker Speaker  `json:"speaker"`
	Text    string   `json:"text"`
	Offset  *float64 `json:"offset,omitempty"`
}

// Duration returns the positive duration in seconds, if any.
func (c Call) Duration() (float64, bool) {
	if c.DurationSeconds == nil || *c.DurationSeconds <= 0 {
		return 0, false
	}
	return *c.DurationSeconds, true
}

func (c Call) CostOrZero() float64 {
	if c.Cost == nil {
		return 0
	}
	return *c.Cost
}

// Start returns the UTC start time, if it was parseable.
func (c Call) Start() (time.Time, bool) {
	if c.StartedAt == nil || c.StartedAt.IsZero() {
		return time.Time{}, false
	}
	return c.StartedAt.UTC(), true
}
