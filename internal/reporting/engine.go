// Package reporting computes call statistics in-process. The provider has no
// server-side aggregation, so every figure here is derived from call records
// already paged in and already filtered by the caller's access scope.
//
// All functions are pure. An empty input yields zero values, never NaN.
package reporting

import (
	"math"
	"sort"
	"time"

	"agent-console/internal/calls"
)

// UnknownAgent groups calls that carry no agent id.
const UnknownAgent = "unknown"

var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(part) / float64(total) * 100)
}

// tally accumulates the counters shared by every statistic.
type tally struct {
	total, completed, missed, failed int
	durSum                           float64
	durN                             int
	cost                             float64
}

func (t *tally) add(c calls.Call) {
	t.total++
	switch c.Status {
	case calls.StatusCompleted:
		t.completed++
	case calls.StatusMissed:
		t.missed++
	case calls.StatusFailed:
		t.failed++
	}
	if d, ok := c.Duration(); ok {
		t.durSum += d
		t.durN++
	}
	t.cost += c.CostOrZero()
}

func (t tally) avgDuration() float64 {
	if t.durN == 0 {
		return 0
	}
	return round1(t.durSum / float64(t.durN))
}

// InWindow keeps calls with a parseable start inside w, preserving order.
func InWindow(cs []calls.Call, w Window) []calls.Call {
	out := make([]calls.Call, 0, len(cs))
	for _, c := range cs {
		start, ok := c.Start()
		if !ok || !w.Contains(start) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func ComputeOverview(cs []calls.Call, w Window) Overview {
	in := InWindow(cs, w)

	var t tally
	for _, c := range in {
		t.add(c)
	}
	return Overview{
		Window:         w,
		TotalCalls:     t.total,
		CompletedCalls: t.completed,
		MissedCalls:    t.missed,
		FailedCalls:    t.failed,
		CompletionRate: percent(t.completed, t.total),
		AvgDuration:    t.avgDuration(),
		TotalCost:      round2(t.cost),
		Daily:          DailyBreakdown(in),
		Hourly:         HourlyDistribution(in),
		Agents:         RankAgents(in),
	}
}

// DailyBreakdown groups by UTC start date, ascending. Days without calls are absent.
func DailyBreakdown(cs []calls.Call) []DailyEntry {
	byDay := map[string]*tally{}
	for _, c := range cs {
		start, ok := c.Start()
		if !ok {
			continue
		}
		key := start.Format(dateLayout)
		t, ok := byDay[key]
		if !ok {
			t = &tally{}
			byDay[key] = t
		}
		t.add(c)
	}

	out := make([]DailyEntry, 0, len(byDay))
	for day, t := range byDay {
		out = append(out, DailyEntry{
			Date:        day,
			Total:       t.total,
			Completed:   t.completed,
			Missed:      t.missed,
			Failed:      t.failed,
			AvgDuration: t.avgDuration(),
			TotalCost:   round2(t.cost),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// HourlyDistribution always returns 24 buckets, hour 0 first.
func HourlyDistribution(cs []calls.Call) []HourBucket {
	out := make([]HourBucket, 24)
	for h := range out {
		out[h].Hour = h
	}
	for _, c := range cs {
		if start, ok := c.Start(); ok {
			out[start.Hour()].Calls++
		}
	}
	return out
}

// TrendSeries has one point per UTC day from start's day through end's day,
// including days without calls.
func TrendSeries(cs []calls.Call, start, end time.Time) []TrendPoint {
	first, last := startOfDay(start), startOfDay(end)
	if last.Before(first) {
		return []TrendPoint{}
	}

	byDay := map[string]*tally{}
	for _, c := range cs {
		s, ok := c.Start()
		if !ok {
			continue
		}
		day := startOfDay(s)
		if day.Before(first) || day.After(last) {
			continue
		}
		key := day.Format(dateLayout)
		t, ok := byDay[key]
		if !ok {
			t = &tally{}
			byDay[key] = t
		}
		t.add(c)
	}

	out := make([]TrendPoint, 0, int(last.Sub(first).Hours()/24)+1)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		p := TrendPoint{Date: key}
		if t, ok := byDay[key]; ok {
			p.Calls = t.total
			p.Completed = t.completed
			p.Missed = t.missed
			p.AvgDuration = t.avgDuration()
			p.TotalCost = round2(t.cost)
		}
		out = append(out, p)
	}
	return out
}

// ComputePeakHours finds the busiest hour and weekday. On ties the earliest
// hour (0..23) and the earliest weekday (Monday..Sunday) win.
func ComputePeakHours(cs []calls.Call) PeakHours {
	hourly := HourlyDistribution(cs)

	var byWeekday [7]int
	for _, c := range cs {
		if start, ok := c.Start(); ok {
			byWeekday[start.Weekday()]++
		}
	}

	out := PeakHours{Hourly: hourly, PeakWeekday: weekdayOrder[0].String()}
	for _, b := range hourly {
		if b.Calls > out.PeakHourCount {
			out.PeakHour, out.PeakHourCount = b.Hour, b.Calls
		}
	}
	out.Weekdays = make([]WeekdayBucket, 0, len(weekdayOrder))
	for _, wd := range weekdayOrder {
		n := byWeekday[wd]
		out.Weekdays = append(out.Weekdays, WeekdayBucket{Weekday: wd.String(), Calls: n})
		if n > out.PeakWeekdayCount {
			out.PeakWeekday, out.PeakWeekdayCount = wd.String(), n
		}
	}
	return out
}

// RankAgents groups calls by agent id (empty id under UnknownAgent) and sorts
// by total descending. Equal totals keep the order in which groups first appeared.
func RankAgents(cs []calls.Call) []AgentPerformance {
	order := make([]string, 0)
	groups := map[string]*tally{}
	for _, c := range cs {
		id := c.AgentID
		if id == "" {
			id = UnknownAgent
		}
		t, ok := groups[id]
		if !ok {
			t = &tally{}
			groups[id] = t
			order = append(order, id)
		}
		t.add(c)
	}

	out := make([]AgentPerformance, 0, len(order))
	for _, id := range order {
		t := groups[id]
		out = append(out, AgentPerformance{
			AgentID:        id,
			Total:          t.total,
			Completed:      t.completed,
			CompletionRate: percent(t.completed, t.total),
			AvgDuration:    t.avgDuration(),
			TotalCost:      round2(t.cost),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}

// ComputeDashboard counts calls in w; with a zero Window every call counts,
// including those without a start time. CallsToday counts starts since
// midnight UTC of now.
func ComputeDashboard(cs []calls.Call, w Window, now time.Time) Dashboard {
	today := startOfDay(now)

	var t tally
	callsToday := 0
	seen := map[string]struct{}{}
	agents := make([]string, 0)
	for _, c := range cs {
		start, hasStart := c.Start()
		if !w.IsZero() && (!hasStart || !w.Contains(start)) {
			continue
		}
		t.add(c)
		if hasStart && !start.Before(today) {
			callsToday++
		}
		if c.AgentID != "" {
			if _, ok := seen[c.AgentID]; !ok {
				seen[c.AgentID] = struct{}{}
				agents = append(agents, c.AgentID)
			}
		}
	}
	return Dashboard{
		TotalCalls:     t.total,
		CallsToday:     callsToday,
		CompletedCalls: t.completed,
		MissedCalls:    t.missed,
		FailedCalls:    t.failed,
		AvgDuration:    t.avgDuration(),
		TotalCost:      round2(t.cost),
		ResponseRate:   percent(t.completed, t.total),
		AgentsSeen:     agents,
	}
}
