package reporting

// Overview is the windowed summary shown on the analytics page.
type Overview struct {
	Window Window `json:"window"`

	TotalCalls     int     `json:"total_calls"`
	CompletedCalls int     `json:"completed_calls"`
	MissedCalls    int     `json:"missed_calls"`
	FailedCalls    int     `json:"failed_calls"`
	CompletionRate float64 `json:"completion_rate"`
	AvgDuration    float64 `json:"avg_duration"`
	TotalCost      float64 `json:"total_cost"`

	Daily  []DailyEntry       `json:"daily_breakdown"`
	Hourly []HourBucket       `json:"hourly_distribution"`
	Agents []AgentPerformance `json:"agent_performance"`
}

type DailyEntry struct {
	Date        string  `json:"date"`
	Total       int     `json:"total"`
	Completed   int     `json:"completed"`
	Missed      int     `json:"missed"`
	Failed      int     `json:"failed"`
	AvgDuration float64 `json:"avg_duration"`
	TotalCost   float64 `json:"total_cost"`
}

type HourBucket struct {
	Hour  int `json:"hour"`
	Calls int `json:"calls"`
}

type WeekdayBucket struct {
	Weekday string `json:"weekday"`
	Calls   int    `json:"calls"`
}

type AgentPerformance struct {
	AgentID        string  `json:"agent_id"`
	AgentName      string  `json:"agent_name,omitempty"`
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
	AvgDuration    float64 `json:"avg_duration"`
	TotalCost      float64 `json:"total_cost"`
}

type PeakHours struct {
	PeakHour         int             `json:"peak_hour"`
	PeakHourCount    int             `json:"peak_hour_count"`
	PeakWeekday      string          `json:"peak_weekday"`
	PeakWeekdayCount int             `json:"peak_weekday_count"`
	Hourly           []HourBucket    `json:"hourly"`
	Weekdays         []WeekdayBucket `json:"weekdays"`
}

type TrendPoint struct {
	Date        string  `json:"date"`
	Calls       int     `json:"calls"`
	Completed   int     `json:"completed"`
	Missed      int     `json:"missed"`
	AvgDuration float64 `json:"avg_duration"`
	TotalCost   float64 `json:"total_cost"`
}

// Dashboard is the landing-page summary. Agent counts are filled in by the
// caller, which knows the tenant's agent catalog.
type Dashboard struct {
	TotalAgents  int `json:"total_agents"`
	ActiveAgents int `json:"active_agents"`

	TotalCalls     int     `json:"total_calls"`
	CallsToday     int     `json:"total_calls_today"`
	CompletedCalls int     `json:"completed_calls"`
	MissedCalls    int     `json:"missed_calls"`
	FailedCalls    int     `json:"failed_calls"`
	AvgDuration    float64 `json:"avg_duration"`
	TotalCost      float64 `json:"total_cost"`
	ResponseRate   float64 `json:"response_rate"`

	// AgentsSeen lists distinct agent ids that appear in the counted calls.
	AgentsSeen []string `json:"-"`
}
