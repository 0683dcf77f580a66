package constraints

import (
	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/arnavshah/rota-engine/pkg/timeutil"
)

// Window is the start/end time of a period.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DefaultWindows are the organization-wide period times used when no role
// override applies.
var DefaultWindows = map[models.Period]Window{
	models.PeriodMorning: {Start: "08:00", End: "14:00"},
	models.PeriodEvening: {Start: "14:00", End: "23:00"},
}

type windowKey struct {
	location string
	role     string
	period   models.Period
	day      int
}

// ShiftWindows resolves concrete times for a (location, role, day, period)
// slot. Lookup order: location+role+day, location+role, role+day, role, then
// the organization default.
type ShiftWindows struct {
	defaults  map[models.Period]Window
	overrides map[windowKey]Window
}

// NewShiftWindows indexes the role overrides.
func NewShiftWindows(overrides []models.RoleShiftTime) ShiftWindows {
	w := ShiftWindows{
		defaults:  DefaultWindows,
		overrides: make(map[windowKey]Window, len(overrides)),
	}
	for _, o := range overrides {
		loc := ""
		if o.LocationID != nil {
			loc = *o.LocationID
		}
		w.overrides[windowKey{location: loc, role: o.RoleID, period: o.Period, day: o.DayOfWeek}] = Window{Start: o.StartTime, End: o.EndTime}
	}
	return w
}

// Resolve returns the times of a slot.
func (w ShiftWindows) Resolve(locationID, roleID string, day int, period models.Period) Window {
	keys := []windowKey{
		{location: locationID, role: roleID, period: period, day: day},
		{location: locationID, role: roleID, period: period, day: models.DayAll},
		{role: roleID, period: period, day: day},
		{role: roleID, period: period, day: models.DayAll},
	}
	for _, k := range keys {
		if win, ok := w.overrides[k]; ok {
			return win
		}
	}
	return w.Default(period)
}

// Default returns the organization window for period, morning when unknown.
func (w ShiftWindows) Default(period models.Period) Window {
	defaults := w.defaults
	if defaults == nil {
		defaults = DefaultWindows
	}
	if win, ok := defaults[period]; ok {
		return win
	}
	return defaults[models.PeriodMorning]
}

// Defaults returns the organization windows keyed by period name.
func (w ShiftWindows) Defaults() map[string]Window {
	out := make(map[string]Window, len(models.Periods))
	for _, p := range models.Periods {
		out[string(p)] = w.Default(p)
	}
	return out
}

// PeriodOf classifies a start time: evening when it starts at or after the
// evening window, morning otherwise.
func PeriodOf(startTime string) models.Period {
	if timeutil.MinutesOf(startTime) >= timeutil.MinutesOf(DefaultWindows[models.PeriodEvening].Start) {
		return models.PeriodEvening
	}
	return models.PeriodMorning
}

// Classify returns the period of a shift at (location, role, date) starting
// at startTime: the period whose resolved window starts then, or PeriodOf
// when no window matches.
func (w ShiftWindows) Classify(locationID, roleID, date, startTime string) models.Period {
	day := timeutil.Weekday(date)
	start := timeutil.MinutesOf(startTime)
	for _, p := range models.Periods {
		if timeutil.MinutesOf(w.Resolve(locationID, roleID, day, p).Start) == start {
			return p
		}
	}
	return PeriodOf(startTime)
}
