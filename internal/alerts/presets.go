package alerts

var presets = []Preset{
	{
		ID:              "missed_calls_spike",
		Name:            "Missed calls spike",
		Description:     "More than 5 missed calls within an hour",
		Type:            RuleMissedCalls,
		Conditions:      Conditions{Threshold: 5, PeriodMinutes: 60},
		CooldownMinutes: 30,
	},
	{
		ID:              "low_completion_rate",
		Name:            "Low completion rate",
		Description:     "Completion rate under 50% over at least 10 calls",
		Type:            RuleLowCompletion,
		Conditions:      Conditions{ThresholdPct: 50, MinCalls: 10},
		CooldownMinutes: 120,
	},
	{
		ID:              "high_daily_cost",
		Name:            "High daily cost",
		Description:     "Call spend above 50 over the last 24 hours",
		Type:            RuleHighCost,
		Conditions:      Conditions{ThresholdAmount: 50, PeriodHours: 24},
		CooldownMinutes: 240,
	},
	{
		ID:              "no_activity",
		Name:            "No activity",
		Description:     "No calls for 4 hours",
		Type:            RuleNoActivity,
		Conditions:      Conditions{InactiveHours: 4},
		CooldownMinutes: 60,
	},
}

func findPreset(id string) (Preset, bool) {
	for _, p := range presets {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}
