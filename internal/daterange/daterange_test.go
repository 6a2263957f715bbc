package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMonthNextStopsAtToday(t *testing.T) {
	today := date(2026, time.October, 16)
	r := CurrentMonth(today)
	for i := 0; i < 5; i++ {
		r = r.Prev()
	}
	require.Equal(t, "May", r.Label)
	require.Equal(t, date(2026, time.May, 31), r.To)

	steps := 0
	for r.HasNext(today) {
		r = r.Next(today)
		steps++
		require.Less(t, steps, 10)
	}
	require.Equal(t, 5, steps)
	require.Equal(t, today, r.To)
	require.Equal(t, date(2026, time.October, 1), r.From)

	// next is a no-op once the window reaches today
	require.Equal(t, r, r.Next(today))
}

func TestYearNavigation(t *testing.T) {
	today := date(2026, time.March, 3)
	r := CurrentYear(today)
	require.Equal(t, "2026", r.Label)
	require.Equal(t, today, r.To)
	require.False(t, r.HasNext(today))

	prev := r.Prev()
	require.Equal(t, "2025", prev.Label)
	require.Equal(t, date(2025, time.January, 1), prev.From)
	require.Equal(t, date(2025, time.December, 31), prev.To)
	require.True(t, prev.HasNext(today))

	back := prev.Next(today)
	require.True(t, back.Same(r))
}

func TestPrevAcrossYearBoundary(t *testing.T) {
	r := CurrentMonth(date(2026, time.January, 20)).Prev()
	require.Equal(t, "December", r.Label)
	require.Equal(t, date(2025, time.December, 1), r.From)
	require.Equal(t, date(2025, time.December, 31), r.To)

	feb := CurrentMonth(date(2024, time.March, 10)).Prev()
	require.Equal(t, date(2024, time.February, 29), feb.To)
}

func TestCustomRangesDoNotStep(t *testing.T) {
	today := date(2026, time.October, 16)
	for _, r := range []Range{All(), Last30(today), Last90(today), LastYear(today)} {
		require.False(t, r.HasPrev(), r.Label)
		require.False(t, r.HasNext(today), r.Label)
		require.Equal(t, r, r.Prev())
		require.Equal(t, r, r.Next(today))
	}
	require.Equal(t, date(2026, time.September, 16), Last30(today).From)
	require.Equal(t, date(2026, time.July, 16), Last90(today).From)
	require.Equal(t, date(2025, time.October, 16), LastYear(today).From)
}

func TestSame(t *testing.T) {
	today := date(2026, time.October, 16)
	tests := []struct {
		name string
		a, b Range
		want bool
	}{
		{"both open", All(), All(), true},
		{"label differs", All(), Range{Label: "Everything"}, false},
		{"time of day ignored", Last30(today), Last30(today.Add(15 * time.Hour)), true},
		{"one side open", Last30(today), Range{Label: "Last 30 days"}, false},
		{"different month", CurrentMonth(today), CurrentMonth(today).Prev(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.a.Same(tt.b))
		})
	}
}

func TestContainsIsInclusive(t *testing.T) {
	r := NewCustom("q", date(2026, time.January, 1), date(2026, time.January, 31))
	require.True(t, r.Contains(date(2026, time.January, 1)))
	require.True(t, r.Contains(time.Date(2026, time.January, 31, 23, 59, 0, 0, time.UTC)))
	require.False(t, r.Contains(date(2026, time.February, 1)))
	require.False(t, r.Contains(date(2025, time.December, 31)))
	require.True(t, All().Contains(date(1990, time.May, 5)))

	from, until := r.Bounds(time.UTC)
	require.Equal(t, date(2026, time.January, 1), from)
	require.Equal(t, date(2026, time.February, 1), until)
}
