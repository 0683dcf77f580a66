package constraints

import (
	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/arnavshah/rota-engine/pkg/timeutil"
)

// restrictiveness orders exception statuses when several cover the same date.
var restrictiveness = map[models.AvailabilityStatus]int{
	models.AvailabilityPreferred:   1,
	models.AvailabilityAvailable:   2,
	models.AvailabilityUnavailable: 3,
}

// EffectiveAvailability resolves an employee's stance on (date, period).
// Approved time off covering the date wins, then exceptions covering the date
// and its weekday, then the recurring pattern. An empty status means no
// opinion.
func EffectiveAvailability(
	date string,
	period models.Period,
	timeOff []models.TimeOff,
	exceptions []models.AvailabilityException,
	patterns []models.AvailabilityPattern,
) models.AvailabilityStatus {
	for _, t := range timeOff {
		if t.Status == models.TimeOffApproved && t.StartDate <= date && date <= t.EndDate {
			return models.AvailabilityUnavailable
		}
	}

	weekday := timeutil.Weekday(date)
	var fromException models.AvailabilityStatus
	for _, x := range exceptions {
		if !x.Covers(date, weekday) {
			continue
		}
		if restrictiveness[x.Status] > restrictiveness[fromException] {
			fromException = x.Status
		}
	}
	if fromException != "" {
		return fromException
	}

	for _, p := range patterns {
		if p.DayOfWeek == weekday && p.Period == period {
			return p.Status
		}
	}
	return ""
}
