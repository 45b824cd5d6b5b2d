package reporting

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

const dateLayout = "2006-01-02"

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return p, nil
	case "":
		return PeriodWeek, nil
	default:
		return "", fmt.Errorf("%w: period must be day, week or month", ErrInvalidRequest)
	}
}

// Window is a half-open UTC interval [Start, End). The zero Window is unbounded.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) IsZero() bool { return w.Start.IsZero() && w.End.IsZero() }

func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !t.Before(w.End) {
		return false
	}
	return true
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// startOfWeek returns the most recent Monday 00:00 UTC at or before t.
func startOfWeek(t time.Time) time.Time {
	d := startOfDay(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// WindowFor returns the current period up to now.
func WindowFor(p Period, now time.Time) (Window, error) {
	now = now.UTC()
	switch p {
	case PeriodDay:
		return Window{Start: startOfDay(now), End: now}, nil
	case PeriodWeek:
		return Window{Start: startOfWeek(now), End: now}, nil
	case PeriodMonth:
		return Window{Start: startOfMonth(now), End: now}, nil
	default:
		return Window{}, fmt.Errorf("%w: unknown period %q", ErrInvalidRequest, p)
	}
}

// ParseRange turns YYYY-MM-DD bounds into [from 00:00, to+1d 00:00), which
// covers every instant of the "to" day. Either bound may be empty.
func ParseRange(from, to string) (Window, error) {
	var w Window
	if s := strings.TrimSpace(from); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, time.UTC)
		if err != nil {
			return Window{}, fmt.Errorf("%w: from must be YYYY-MM-DD", ErrInvalidRequest)
		}
		w.Start = t
	}
	if s := strings.TrimSpace(to); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, time.UTC)
		if err != nil {
			return Window{}, fmt.Errorf("%w: to must be YYYY-MM-DD", ErrInvalidRequest)
		}
		w.End = t.AddDate(0, 0, 1)
	}
	if !w.Start.IsZero() && !w.End.IsZero() && !w.End.After(w.Start) {
		return Window{}, fmt.Errorf("%w: from must not be after to", ErrInvalidRequest)
	}
	return w, nil
}

// LastDays is the window covering the previous n days up to now.
func LastDays(n int, now time.Time) Window {
	now = now.UTC()
	return Window{Start: now.AddDate(0, 0, -n), End: now}
}
