package generation

import (
	"context"
	"fmt"
	"sort"

	"github.com/arnavshah/rota-engine/pkg/constraints"
	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/arnavshah/rota-engine/pkg/store"
	"github.com/arnavshah/rota-engine/pkg/timeutil"
	"github.com/arnavshah/rota-engine/pkg/validation"
	"github.com/shopspring/decimal"
)

// writer persists assignments inside the schedule transaction. Every read goes
// through tx.
type writer struct {
	tx         *store.Store
	validator  *validation.Validator
	c          *constraints.Constraints
	scheduleID string
	result     *models.GenerateResult

	required map[models.SlotKey]int
	assigned map[models.SlotKey]int
	minutes  map[string]int
	cost     decimal.Decimal
}

func (w *writer) load(ctx context.Context) error {
	weekStart := w.c.WeekStart
	w.required = make(map[models.SlotKey]int)
	for _, r := range w.c.Requirements() {
		w.required[models.SlotKey{LocationID: r.LocationID, RoleID: r.RoleID, DayOfWeek: r.DayOfWeek, Period: r.Period}] = r.RequiredCount
	}

	shifts, err := w.tx.ScheduleShifts(ctx, w.scheduleID)
	if err != nil {
		return err
	}
	w.assigned = constraints.CountBySlot(weekStart, shifts)

	weekShifts, err := w.tx.OrganizationShifts(ctx, w.c.OrganizationID, timeutil.AddDays(weekStart, -1), timeutil.AddDays(weekStart, timeutil.DaysPerWeek-1))
	if err != nil {
		return err
	}
	w.minutes = make(map[string]int)
	for _, s := range weekShifts {
		w.minutes[s.EmployeeID] += timeutil.MinutesInWeek(s.Date, s.StartTime, s.EndTime, weekStart)
	}
	return nil
}

// persist folds the assignments into saved, skipped and errors.
func (w *writer) persist(ctx context.Context, assignments []models.Assignment) error {
	for _, a := range assignments {
		if err := ctx.Err(); err != nil {
			return err
		}
		date := timeutil.AddDays(w.c.WeekStart, a.DayOfWeek)
		label := fmt.Sprintf("%s @ %s %s", w.employeeLabel(a), date, a.Period)

		if a.Unresolved {
			w.skip(label, "unknown employee")
			continue
		}
		if a.DayOfWeek < 0 || a.DayOfWeek >= timeutil.DaysPerWeek || !a.Period.Valid() {
			w.skip(label, "invalid day or period")
			continue
		}
		key := a.Slot()
		required, ok := w.required[key]
		if !ok {
			w.skip(label, "no staffing requirement for this slot")
			continue
		}
		if w.assigned[key] >= required {
			w.result.Skipped++
			continue
		}

		msg, err := w.place(ctx, a.EmployeeID, key)
		if err != nil {
			return err
		}
		if msg != "" {
			w.skip(label, msg)
			continue
		}
		w.result.Saved++
	}
	return nil
}

// fill makes one pass over the still uncovered slot units, trying employees
// with the fewest minutes first.
func (w *writer) fill(ctx context.Context) error {
	shifts, err := w.tx.ScheduleShifts(ctx, w.scheduleID)
	if err != nil {
		return err
	}
	for _, slot := range constraints.Coverage(w.c.WeekStart, w.c.Requirements(), shifts) {
		key := models.SlotKey{LocationID: slot.LocationID, RoleID: slot.RoleID, DayOfWeek: slot.DayOfWeek, Period: slot.Period}
		for missing := slot.Missing(); missing > 0; missing-- {
			ok, err := w.fillUnit(ctx, key)
			if err != nil {
				return err
			}
			if !ok {
				date := timeutil.AddDays(w.c.WeekStart, slot.DayOfWeek)
				w.result.Errors = append(w.result.Errors,
					fmt.Sprintf("%s @ %s %s: no available employee for %d open position(s)", w.slotLabel(key), date, slot.Period, missing))
				break
			}
		}
	}
	return nil
}

func (w *writer) fillUnit(ctx context.Context, key models.SlotKey) (bool, error) {
	var pool []models.Employee
	for _, ec := range w.c.Employees {
		if ec.Employee.HasRole(key.RoleID) {
			pool = append(pool, ec.Employee)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		mi, mj := w.minutes[pool[i].ID], w.minutes[pool[j].ID]
		if mi != mj {
			return mi < mj
		}
		return pool[i].ID < pool[j].ID
	})

	for _, e := range pool {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		msg, err := w.place(ctx, e.ID, key)
		if err != nil {
			return false, err
		}
		if msg == "" {
			w.result.Filled++
			return true, nil
		}
	}
	return false, nil
}

// place validates and inserts one shift. A non-empty message means the row was
// rejected; an error aborts the batch.
func (w *writer) place(ctx context.Context, employeeID string, key models.SlotKey) (string, error) {
	window := w.c.SlotWindow(key)
	date := timeutil.AddDays(w.c.WeekStart, key.DayOfWeek)

	conflict, err := w.validator.Validate(ctx, models.Candidate{
		EmployeeID:     employeeID,
		OrganizationID: w.c.OrganizationID,
		ScheduleID:     w.scheduleID,
		LocationID:     key.LocationID,
		RoleID:         key.RoleID,
		Date:           date,
		StartTime:      window.Start,
		EndTime:        window.End,
		WeekStart:      w.c.WeekStart,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return err.Error(), nil
	}
	if conflict != nil {
		return conflict.Message, nil
	}

	shift := &models.Shift{
		ScheduleID:      w.scheduleID,
		OrganizationID:  w.c.OrganizationID,
		LocationID:      key.LocationID,
		EmployeeID:      employeeID,
		RoleID:          key.RoleID,
		Date:            date,
		StartTime:       window.Start,
		EndTime:         window.End,
		Period:          key.Period,
		Status:          models.ShiftActive,
		IsAutoGenerated: true,
	}
	if err := w.tx.CreateShift(ctx, shift); err != nil {
		return err.Error(), nil
	}

	minutes := timeutil.MinutesInWeek(date, window.Start, window.End, w.c.WeekStart)
	w.assigned[key]++
	w.minutes[employeeID] += minutes
	if ec, ok := w.c.Employee(employeeID); ok {
		hours := decimal.NewFromInt(int64(timeutil.Duration(window.Start, window.End))).Div(decimal.NewFromInt(60))
		w.cost = w.cost.Add(ec.Employee.RateFor(key.RoleID).Mul(hours))
	}
	return "", nil
}

func (w *writer) skip(label, msg string) {
	w.result.Skipped++
	w.result.Errors = append(w.result.Errors, label+": "+msg)
}

func (w *writer) employeeLabel(a models.Assignment) string {
	if ec, ok := w.c.Employee(a.EmployeeID); ok {
		return ec.Employee.FullName()
	}
	return a.EmployeeID
}

func (w *writer) slotLabel(key models.SlotKey) string {
	loc, role := key.LocationID, key.RoleID
	for _, l := range w.c.Locations {
		if l.Location.ID == key.LocationID {
			loc = l.Location.Name
		}
	}
	for _, r := range w.c.Roles {
		if r.ID == key.RoleID {
			role = r.Name
		}
	}
	return loc + " " + role
}
