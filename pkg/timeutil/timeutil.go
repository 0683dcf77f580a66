// Package timeutil holds the clock arithmetic shared by validation, generation
// and substitute ranking. Times of day are "HH:MM" strings, dates are
// "YYYY-MM-DD" and weeks start on Monday (day 0).
package timeutil

import (
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the layout used for every date string in the engine.
	DateLayout = "2006-01-02"
	// MinutesPerDay is the length of a calendar day in minutes.
	MinutesPerDay = 24 * 60
	// DaysPerWeek is the scheduling horizon of a schedule.
	DaysPerWeek = 7
)

// MinutesOf converts an "HH:MM" string to minutes after midnight. Malformed
// parts are clamped (hour 0-23, minute 0-59) instead of failing so that noisy
// solver or generator output never aborts a batch.
func MinutesOf(hhmm string) int {
	parts := strings.SplitN(strings.TrimSpace(hhmm), ":", 2)
	h := clamp(atoi(parts[0]), 0, 23)
	m := 0
	if len(parts) > 1 {
		m = clamp(atoi(parts[1]), 0, 59)
	}
	return h*60 + m
}

// FormatMinutes renders minutes after midnight as "HH:MM".
func FormatMinutes(minutes int) string {
	minutes = ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	h := minutes / 60
	m := minutes % 60
	return pad2(h) + ":" + pad2(m)
}

// Duration returns the length of a shift in minutes. An end earlier than the
// start wraps past midnight.
func Duration(start, end string) int {
	s := MinutesOf(start)
	e := MinutesOf(end)
	if e >= s {
		return e - s
	}
	return MinutesPerDay - s + e
}

// Interval returns the absolute [from, to) range of a shift worked on date.
func Interval(date, start, end string) (time.Time, time.Time, error) {
	day, err := ParseDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from := day.Add(time.Duration(MinutesOf(start)) * time.Minute)
	to := from.Add(time.Duration(Duration(start, end)) * time.Minute)
	return from, to, nil
}

// Overlaps reports whether the half-open ranges [aFrom, aTo) and [bFrom, bTo)
// intersect.
func Overlaps(aFrom, aTo, bFrom, bTo time.Time) bool {
	return aFrom.Before(bTo) && bFrom.Before(aTo)
}

// MinutesInWeek returns how many minutes of the shift fall inside
// [weekStart, weekStart+7d). An overnight shift on the last day of a week only
// contributes its pre-midnight part; one starting the day before weekStart
// contributes its post-midnight part. Unparseable dates count as zero.
func MinutesInWeek(date, start, end, weekStart string) int {
	from, to, err := Interval(date, start, end)
	if err != nil {
		return 0
	}
	ws, err := ParseDate(weekStart)
	if err != nil {
		return 0
	}
	we := ws.AddDate(0, 0, DaysPerWeek)

	lo := from
	if ws.After(lo) {
		lo = ws
	}
	hi := to
	if we.Before(hi) {
		hi = we
	}
	if !hi.After(lo) {
		return 0
	}
	return int(hi.Sub(lo) / time.Minute)
}

// ParseDate parses a "YYYY-MM-DD" date at UTC midnight.
func ParseDate(date string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(date))
}

// FormatDate renders t as "YYYY-MM-DD".
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// AddDays shifts a date string by n days. An unparseable date is returned
// unchanged.
func AddDays(date string, n int) string {
	d, err := ParseDate(date)
	if err != nil {
		return date
	}
	return FormatDate(d.AddDate(0, 0, n))
}

// WeekStartOf returns the Monday of the week containing date.
func WeekStartOf(date string) (string, error) {
	d, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	offset := (int(d.Weekday()) + 6) % 7
	return FormatDate(d.AddDate(0, 0, -offset)), nil
}

// Weekday returns the Monday-based day of week (0 = Monday ... 6 = Sunday).
func Weekday(date string) int {
	d, err := ParseDate(date)
	if err != nil {
		return 0
	}
	return (int(d.Weekday()) + 6) % 7
}

// DayOffset returns the number of whole days between weekStart and date.
func DayOffset(date, weekStart string) int {
	d, err := ParseDate(date)
	if err != nil {
		return 0
	}
	ws, err := ParseDate(weekStart)
	if err != nil {
		return 0
	}
	return int(d.Sub(ws).Hours() / 24)
}

// WeekDates returns the seven dates of the week starting at weekStart.
func WeekDates(weekStart string) []string {
	dates := make([]string, 0, DaysPerWeek)
	for i := 0; i < DaysPerWeek; i++ {
		dates = append(dates, AddDays(weekStart, i))
	}
	return dates
}

// Today returns the current date in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return FormatDate(now.In(loc))
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
