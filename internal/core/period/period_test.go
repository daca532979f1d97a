package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestKey(t *testing.T) {
	ts := time.Date(2025, 11, 15, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		level Level
		want  string
	}{
		{Hour, "2025-11-15T14"},
		{Day, "2025-11-15"},
		{Week, "2025-W46"},
		{Month, "2025-11"},
		{Quarter, "2025-Q4"},
		{Year, "2025"},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			require.Equal(t, tt.want, Key(tt.level, StartOf(tt.level, ts)))
		})
	}
}

func TestKey_ISOWeekYearBoundary(t *testing.T) {
	// 2024-12-30 is a Monday belonging to ISO week 1 of 2025.
	require.Equal(t, "2025-W01", Key(Week, date(2024, 12, 30)))
}

func TestStartOf(t *testing.T) {
	ts := time.Date(2025, 11, 15, 14, 37, 9, 0, time.UTC) // a Saturday

	require.Equal(t, time.Date(2025, 11, 15, 14, 0, 0, 0, time.UTC), StartOf(Hour, ts))
	require.Equal(t, date(2025, 11, 15), StartOf(Day, ts))
	require.Equal(t, date(2025, 11, 10), StartOf(Week, ts)) // Monday
	require.Equal(t, date(2025, 11, 1), StartOf(Month, ts))
	require.Equal(t, date(2025, 10, 1), StartOf(Quarter, ts))
	require.Equal(t, date(2025, 1, 1), StartOf(Year, ts))
}

func TestStartOf_SundayBelongsToPriorMondayWeek(t *testing.T) {
	sunday := date(2025, 11, 16)
	require.Equal(t, date(2025, 11, 10), StartOf(Week, sunday))
}

func TestPriorAndNext(t *testing.T) {
	start := date(2025, 11, 1)
	require.Equal(t, date(2025, 10, 1), Prior(Month, start))
	require.Equal(t, date(2025, 12, 1), Next(Month, start))

	q := date(2025, 10, 1)
	require.Equal(t, date(2025, 7, 1), Prior(Quarter, q))
	require.Equal(t, date(2026, 1, 1), Next(Quarter, q))
}

func TestStarts(t *testing.T) {
	from := date(2025, 11, 14)
	to := date(2025, 11, 16)

	days := Starts(Day, from, to)
	require.Len(t, days, 3)
	require.Equal(t, date(2025, 11, 14), days[0])
	require.Equal(t, date(2025, 11, 16), days[2])

	// Range covering two ISO weeks yields both week starts.
	weeks := Starts(Week, from, to.AddDate(0, 0, 2))
	require.Len(t, weeks, 2)
	require.Equal(t, date(2025, 11, 10), weeks[0])
	require.Equal(t, date(2025, 11, 17), weeks[1])

	require.Nil(t, Starts(Day, to, from))
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("quarter")
	require.NoError(t, err)
	require.Equal(t, Quarter, l)

	_, err = ParseLevel("fortnight")
	require.Error(t, err)
}

func TestChild(t *testing.T) {
	c, ok := Day.Child()
	require.True(t, ok)
	require.Equal(t, Hour, c)

	_, ok = Hour.Child()
	require.False(t, ok)

	c, ok = Year.Child()
	require.True(t, ok)
	require.Equal(t, Quarter, c)
}
