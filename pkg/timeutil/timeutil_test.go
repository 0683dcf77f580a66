package timeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinutesOf(t *testing.T) {
	cases := map[string]int{
		"00:00": 0,
		"08:30": 510,
		"23:59": 1439,
		"25:00": 23 * 60,
		"10:75": 10*60 + 59,
		"-3:10": 10,
		"abc":   0,
		"7":     420,
	}
	for in, want := range cases {
		assert.Equal(t, want, MinutesOf(in), in)
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 480, Duration("22:00", "06:00"))
	assert.Equal(t, 360, Duration("08:00", "14:00"))
	assert.Equal(t, 0, Duration("08:00", "08:00"))
}

func TestMinutesInWeek_OvernightSplitsAtWeekBoundary(t *testing.T) {
	weekStart := "2025-01-06"

	// Friday night is fully inside the week.
	assert.Equal(t, 480, MinutesInWeek("2025-01-10", "22:00", "06:00", weekStart))

	// Sunday night: only the two hours before midnight belong to this week.
	thisWeek := MinutesInWeek("2025-01-12", "22:00", "06:00", weekStart)
	nextWeek := MinutesInWeek("2025-01-12", "22:00", "06:00", "2025-01-13")
	assert.Equal(t, 120, thisWeek)
	assert.Equal(t, 360, nextWeek)
	assert.Equal(t, 480, thisWeek+nextWeek)

	// The Sunday before contributes its post-midnight part.
	assert.Equal(t, 360, MinutesInWeek("2025-01-05", "22:00", "06:00", weekStart))

	// Outside the week entirely.
	assert.Equal(t, 0, MinutesInWeek("2025-01-20", "08:00", "14:00", weekStart))
}

func TestMinutesInWeek_SumNeverExceedsDuration(t *testing.T) {
	shifts := [][2]string{{"08:00", "14:00"}, {"22:00", "06:00"}, {"23:30", "00:15"}, {"00:00", "23:59"}}
	for _, sh := range shifts {
		for _, date := range WeekDates("2025-01-06") {
			total := 0
			for _, ws := range []string{"2024-12-30", "2025-01-06", "2025-01-13"} {
				total += MinutesInWeek(date, sh[0], sh[1], ws)
			}
			assert.Equal(t, Duration(sh[0], sh[1]), total, "%s %s-%s", date, sh[0], sh[1])
			assert.LessOrEqual(t, MinutesInWeek(date, sh[0], sh[1], "2025-01-06"), Duration(sh[0], sh[1]))
		}
	}
}

func TestIntervalAndOverlaps(t *testing.T) {
	aFrom, aTo, err := Interval("2025-01-06", "22:00", "06:00")
	require.NoError(t, err)
	bFrom, bTo, err := Interval("2025-01-07", "05:00", "09:00")
	require.NoError(t, err)
	assert.True(t, Overlaps(aFrom, aTo, bFrom, bTo))

	cFrom, cTo, err := Interval("2025-01-07", "06:00", "09:00")
	require.NoError(t, err)
	assert.False(t, Overlaps(aFrom, aTo, cFrom, cTo), "touching intervals do not overlap")

	_, _, err = Interval("not-a-date", "08:00", "10:00")
	assert.Error(t, err)
}

func TestWeekHelpers(t *testing.T) {
	ws, err := WeekStartOf("2025-01-12")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-06", ws)

	ws, err = WeekStartOf("2025-01-06")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-06", ws)

	assert.Equal(t, 6, Weekday("2025-01-12"))
	assert.Equal(t, 0, Weekday("2025-01-06"))
	assert.Equal(t, 4, DayOffset("2025-01-10", "2025-01-06"))
	assert.Equal(t, -1, DayOffset("2025-01-05", "2025-01-06"))
	assert.Equal(t, "2025-01-01", AddDays("2024-12-31", 1))
	assert.Len(t, WeekDates("2025-01-06"), 7)
	assert.Equal(t, "06:05", FormatMinutes(365))
}
