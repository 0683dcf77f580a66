package constraints

import (
	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/arnavshah/rota-engine/pkg/timeutil"
)

// Coverage compares each staffing requirement with the active shifts of the
// week. A shift counts towards the slot of its location, role, weekday and
// period.
func Coverage(weekStart string, reqs []models.StaffingRequirement, shifts []models.Shift) []models.CoverageSlot {
	assigned := CountBySlot(weekStart, shifts)
	out := make([]models.CoverageSlot, 0, len(reqs))
	for _, r := range reqs {
		key := models.SlotKey{LocationID: r.LocationID, RoleID: r.RoleID, DayOfWeek: r.DayOfWeek, Period: r.Period}
		out = append(out, models.CoverageSlot{
			LocationID: r.LocationID,
			RoleID:     r.RoleID,
			DayOfWeek:  r.DayOfWeek,
			Period:     r.Period,
			Required:   r.RequiredCount,
			Assigned:   assigned[key],
		})
	}
	return out
}

// CountBySlot counts the active shifts dated inside the week per slot.
func CountBySlot(weekStart string, shifts []models.Shift) map[models.SlotKey]int {
	counts := make(map[models.SlotKey]int)
	for _, s := range shifts {
		if s.Status != models.ShiftActive {
			continue
		}
		day := timeutil.DayOffset(s.Date, weekStart)
		if day < 0 || day >= timeutil.DaysPerWeek {
			continue
		}
		counts[SlotOf(s, weekStart)]++
	}
	return counts
}

// SlotOf returns the staffing slot a shift occupies. The stored period wins;
// shifts without one fall back to their start time.
func SlotOf(s models.Shift, weekStart string) models.SlotKey {
	period := s.Period
	if !period.Valid() {
		period = PeriodOf(s.StartTime)
	}
	return models.SlotKey{
		LocationID: s.LocationID,
		RoleID:     s.RoleID,
		DayOfWeek:  timeutil.DayOffset(s.Date, weekStart),
		Period:     period,
	}
}
