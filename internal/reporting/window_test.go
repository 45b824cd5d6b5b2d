package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWindowFor(t *testing.T) {
	now := time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC) // Wednesday

	tests := []struct {
		period Period
		start  time.Time
	}{
		{PeriodDay, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
		{PeriodWeek, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)},
		{PeriodMonth, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			w, err := WindowFor(tt.period, now)
			require.NoError(t, err)
			require.Equal(t, tt.start, w.Start)
			require.Equal(t, now, w.End)
		})
	}

	_, err := WindowFor("year", now)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestStartOfWeek_Sunday(t *testing.T) {
	sunday := time.Date(2024, 1, 14, 23, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), startOfWeek(sunday))
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	require.Equal(t, PeriodWeek, p)

	p, err = ParsePeriod(" Month ")
	require.NoError(t, err)
	require.Equal(t, PeriodMonth, p)

	_, err = ParsePeriod("quarter")
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestParseRange_ToIsInclusive(t *testing.T) {
	w, err := ParseRange("2024-01-01", "2024-01-02")
	require.NoError(t, err)
	require.True(t, w.Contains(time.Date(2024, 1, 2, 23, 59, 59, 0, time.UTC)))
	require.False(t, w.Contains(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)))
	require.True(t, w.Contains(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.False(t, w.Contains(time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)))

	same, err := ParseRange("2024-01-05", "2024-01-05")
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, same.End.Sub(same.Start))
}

func TestParseRange_Errors(t *testing.T) {
	_, err := ParseRange("2024-01-05", "2024-01-01")
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = ParseRange("01/05/2024", "")
	require.ErrorIs(t, err, ErrInvalidRequest)

	w, err := ParseRange("", "")
	require.NoError(t, err)
	require.True(t, w.IsZero())
}
