// Package substitutes ranks replacement candidates for a shift whose employee
// dropped out. It only suggests; assigning is left to the caller.
package substitutes

import (
	"context"
	"math"
	"sort"

	"github.com/arnavshah/rota-engine/pkg/constraints"
	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/arnavshah/rota-engine/pkg/store"
	"github.com/arnavshah/rota-engine/pkg/timeutil"
	"github.com/arnavshah/rota-engine/pkg/validation"
)

const (
	DefaultLimit = 5
	MaxLimit     = 20

	baseScore              = 50.0
	preferredLocationBonus = 15.0
	preferredPeriodBonus   = 10.0
	loadPenalty            = 5.0
)

// Ranker suggests substitutes.
type Ranker struct {
	store   *store.Store
	valOpts []validation.Option
}

// NewRanker returns a ranker reading from st. opts are passed to the
// validator that filters candidates.
func NewRanker(st *store.Store, opts ...validation.Option) *Ranker {
	return &Ranker{store: st, valOpts: opts}
}

type candidate struct {
	employee models.Employee
	shifts   int
	minutes  int
}

// Suggest returns up to limit candidates for shiftID, best first. A limit of
// zero or less means DefaultLimit; larger values are capped at MaxLimit.
func (r *Ranker) Suggest(ctx context.Context, shiftID string, limit int) ([]models.SubstituteSuggestion, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	shift, err := r.store.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	weekStart, err := r.weekStart(ctx, shift)
	if err != nil {
		return nil, err
	}

	employees, err := r.store.ActiveEmployees(ctx, shift.OrganizationID)
	if err != nil {
		return nil, err
	}
	var pool []*candidate
	byID := make(map[string]*candidate)
	for _, e := range employees {
		if e.ID == shift.EmployeeID || !e.HasRole(shift.RoleID) {
			continue
		}
		c := &candidate{employee: e}
		pool = append(pool, c)
		byID[e.ID] = c
	}
	if len(pool) == 0 {
		return []models.SubstituteSuggestion{}, nil
	}

	weekEnd := timeutil.AddDays(weekStart, timeutil.DaysPerWeek-1)
	weekShifts, err := r.store.OrganizationShifts(ctx, shift.OrganizationID, timeutil.AddDays(weekStart, -1), weekEnd)
	if err != nil {
		return nil, err
	}
	for _, s := range weekShifts {
		c, ok := byID[s.EmployeeID]
		if !ok {
			continue
		}
		c.minutes += timeutil.MinutesInWeek(s.Date, s.StartTime, s.EndTime, weekStart)
		if s.Date >= weekStart {
			c.shifts++
		}
	}
	total := 0
	ids := make([]string, 0, len(pool))
	for _, c := range pool {
		total += c.shifts
		ids = append(ids, c.employee.ID)
	}
	average := float64(total) / float64(len(pool))

	patterns, err := r.store.AvailabilityPatterns(ctx, ids)
	if err != nil {
		return nil, err
	}
	exceptions, err := r.store.AvailabilityExceptions(ctx, ids, shift.Date, shift.Date)
	if err != nil {
		return nil, err
	}
	period := constraints.PeriodOf(shift.StartTime)
	shiftMinutes := timeutil.Duration(shift.StartTime, shift.EndTime)

	validator := validation.New(r.store, r.valOpts...)
	out := make([]models.SubstituteSuggestion, 0, len(pool))
	for _, c := range pool {
		conflict, err := validator.Validate(ctx, models.Candidate{
			EmployeeID:     c.employee.ID,
			OrganizationID: shift.OrganizationID,
			ScheduleID:     shift.ScheduleID,
			LocationID:     shift.LocationID,
			RoleID:         shift.RoleID,
			Date:           shift.Date,
			StartTime:      shift.StartTime,
			EndTime:        shift.EndTime,
			WeekStart:      weekStart,
			ExcludeShiftID: shift.ID,
		})
		if err != nil {
			return nil, err
		}
		if conflict != nil {
			continue
		}

		preferredLocation := c.employee.PreferredLocationID != nil && *c.employee.PreferredLocationID == shift.LocationID
		score := baseScore
		if preferredLocation {
			score += preferredLocationBonus
		}
		if constraints.EffectiveAvailability(shift.Date, period, nil, filterExceptions(exceptions, c.employee.ID), filterPatterns(patterns, c.employee.ID)) == models.AvailabilityPreferred {
			score += preferredPeriodBonus
		}
		score -= loadPenalty * (float64(c.shifts) - average)

		remaining := float64(c.employee.MaxWeeklyHours*60-c.minutes-shiftMinutes) / 60
		out = append(out, models.SubstituteSuggestion{
			EmployeeID:        c.employee.ID,
			Name:              c.employee.FullName(),
			Score:             math.Round(score*10) / 10,
			PreferredLocation: preferredLocation,
			ShiftsThisWeek:    c.shifts,
			HoursRemaining:    math.Max(0, math.Round(remaining*10)/10),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ShiftsThisWeek != b.ShiftsThisWeek {
			return a.ShiftsThisWeek < b.ShiftsThisWeek
		}
		return a.EmployeeID < b.EmployeeID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Ranker) weekStart(ctx context.Context, shift *models.Shift) (string, error) {
	sched, err := r.store.GetSchedule(ctx, shift.ScheduleID)
	if err == nil {
		return sched.WeekStartDate, nil
	}
	return timeutil.WeekStartOf(shift.Date)
}

func filterPatterns(in []models.AvailabilityPattern, employeeID string) []models.AvailabilityPattern {
	var out []models.AvailabilityPattern
	for _, p := range in {
		if p.EmployeeID == employeeID {
			out = append(out, p)
		}
	}
	return out
}

func filterExceptions(in []models.AvailabilityException, employeeID string) []models.AvailabilityException {
	var out []models.AvailabilityException
	for _, x := range in {
		if x.EmployeeID == employeeID {
			out = append(out, x)
		}
	}
	return out
}
