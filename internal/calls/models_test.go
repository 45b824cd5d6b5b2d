package calls

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestDuration_OnlyPositiveCounts(t *testing.T) {
	_, ok := Call{}.Duration()
	require.False(t, ok)

	_, ok = Call{DurationSeconds: ptr(0.0)}.Duration()
	require.False(t, ok)

	d, ok := Call{DurationSeconds: ptr(42.5)}.Duration()
	require.True(t, ok)
	require.Equal(t, 42.5, d)
}

func TestCostOrZero(t *testing.T) {
	require.Equal(t, 0.0, Call{}.CostOrZero())
	require.Equal(t, 1.25, Call{Cost: ptr(1.25)}.CostOrZero())
}

func TestStart_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("x", 3*3600)
	ts := time.Date(2024, 3, 1, 3, 0, 0, 0, loc)

	got, ok := Call{StartedAt: &ts}.Start()
	require.True(t, ok)
	require.Equal(t, time.UTC, got.Location())
	require.Equal(t, 0, got.Hour())

	_, ok = Call{}.Start()
	require.False(t, ok)
}

func TestNormalizeStatus(t *testing.T) {
	require.Equal(t, StatusCompleted, NormalizeStatus(" Completed "))
	require.Equal(t, Status("voicemail"), NormalizeStatus("voicemail"))
}
