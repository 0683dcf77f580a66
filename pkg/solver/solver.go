// Package solver turns collected constraints into candidate assignments.
// Every generator implements Strategy so the generation pipeline can order
// and swap them without touching persistence.
package solver

import (
	"context"
	"errors"
	"sort"

	"github.com/arnavshah/rota-engine/pkg/constraints"
	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/arnavshah/rota-engine/pkg/timeutil"
)

// Status is the outcome class of a Generate call.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusFeasible   Status = "feasible"
	StatusInfeasible Status = "infeasible"
	StatusError      Status = "error"
)

// Usable reports whether the result carries assignments to persist.
func (s Status) Usable() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// Result is what a strategy produced. Reason is set for infeasible and error
// results.
type Result struct {
	Status      Status              `json:"status"`
	Assignments []models.Assignment `json:"shifts"`
	Reason      string              `json:"reason,omitempty"`
	Strategy    string              `json:"-"`
	// Unfilled lists the slots a heuristic could not staff and why.
	Unfilled []SlotConflict `json:"-"`
	// Fairness is 0-100, 100 meaning hours are evenly spread.
	Fairness float64 `json:"-"`
}

// SlotConflict explains why a slot unit stayed empty.
type SlotConflict struct {
	Slot    models.SlotKey
	Reasons []string
}

// Strategy generates assignments for one week. Transport failures are
// returned as errors; an infeasible problem is a Result, not an error.
type Strategy interface {
	Name() string
	Generate(ctx context.Context, req Request) (Result, error)
}

// Slot is one staffing requirement with its resolved times.
type Slot struct {
	LocationID string        `json:"locationId"`
	RoleID     string        `json:"roleId"`
	DayOfWeek  int           `json:"dayOfWeek"`
	Period     models.Period `json:"period"`
	Required   int           `json:"required"`
	Start      string        `json:"start"`
	End        string        `json:"end"`
}

// Key returns the slot identity.
func (s Slot) Key() models.SlotKey {
	return models.SlotKey{LocationID: s.LocationID, RoleID: s.RoleID, DayOfWeek: s.DayOfWeek, Period: s.Period}
}

// Availability is an employee's effective stance on one day and period.
type Availability struct {
	DayOfWeek int                       `json:"dayOfWeek"`
	Period    models.Period             `json:"period"`
	Status    models.AvailabilityStatus `json:"status"`
}

// Employee is the solver view of one schedulable employee.
type Employee struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	RoleIDs             []string       `json:"roleIds"`
	MaxHours            int            `json:"maxHours"`
	PreferredLocationID string         `json:"preferredLocationId,omitempty"`
	PeriodPreference    string         `json:"periodPreference,omitempty"`
	Availability        []Availability `json:"availability"`
	TimeOffDates        []string       `json:"timeOffDates"`
	ExceptionDates      []string       `json:"exceptionDates"`
	IncompatibleWith    []string       `json:"incompatibleWith"`
	// PriorMinutes already worked in the week by shifts that are not fixed
	// assignments, e.g. the tail of a Sunday night shift of the previous week.
	PriorMinutes int `json:"priorMinutes,omitempty"`
}

// HasRole reports whether the employee may fill roleID.
func (e Employee) HasRole(roleID string) bool {
	for _, r := range e.RoleIDs {
		if r == roleID {
			return true
		}
	}
	return false
}

// StatusOn returns the availability for a day and period, empty when unknown.
func (e Employee) StatusOn(day int, period models.Period) models.AvailabilityStatus {
	for _, a := range e.Availability {
		if a.DayOfWeek == day && a.Period == period {
			return a.Status
		}
	}
	return ""
}

// Request is the constraint payload sent to every strategy.
type Request struct {
	OrganizationID   string                        `json:"organizationId"`
	WeekStart        string                        `json:"weekStart"`
	PeriodTimes      map[string]constraints.Window `json:"periodTimes"`
	Slots            []Slot                        `json:"slots"`
	Employees        []Employee                    `json:"employees"`
	FixedAssignments []models.Assignment           `json:"fixedAssignments,omitempty"`
	MinRestHours     int                           `json:"minRestHours"`
	Locations        map[string]string             `json:"locations,omitempty"`
	Roles            map[string]string             `json:"roles,omitempty"`
}

// SlotByKey looks up a slot of the request.
func (r Request) SlotByKey(key models.SlotKey) (Slot, bool) {
	for _, s := range r.Slots {
		if s.Key() == key {
			return s, true
		}
	}
	return Slot{}, false
}

// NewRequest builds the payload for a week. pinned shifts become fixed
// assignments that strategies must keep; every other active shift of the week
// only counts towards the employee's hours.
func NewRequest(c *constraints.Constraints, pinned []models.Shift) Request {
	req := Request{
		OrganizationID: c.OrganizationID,
		WeekStart:      c.WeekStart,
		PeriodTimes:    c.Windows.Defaults(),
		MinRestHours:   c.Rules.MinRestHours,
		Locations:      make(map[string]string, len(c.Locations)),
		Roles:          make(map[string]string, len(c.Roles)),
	}
	isPinned := make(map[string]bool, len(pinned))
	for _, s := range pinned {
		isPinned[s.ID] = true
		req.FixedAssignments = append(req.FixedAssignments, FixedAssignment(s, c.WeekStart))
	}
	prior := make(map[string]int)
	for _, s := range c.WeekShifts {
		if !isPinned[s.ID] {
			prior[s.EmployeeID] += timeutil.MinutesInWeek(s.Date, s.StartTime, s.EndTime, c.WeekStart)
		}
	}

	for _, r := range c.Roles {
		req.Roles[r.ID] = r.Name
	}
	for _, l := range c.Locations {
		req.Locations[l.Location.ID] = l.Location.Name
		for _, r := range l.Requirements {
			if r.RequiredCount <= 0 {
				continue
			}
			w := c.Windows.Resolve(r.LocationID, r.RoleID, r.DayOfWeek, r.Period)
			req.Slots = append(req.Slots, Slot{
				LocationID: r.LocationID,
				RoleID:     r.RoleID,
				DayOfWeek:  r.DayOfWeek,
				Period:     r.Period,
				Required:   r.RequiredCount,
				Start:      w.Start,
				End:        w.End,
			})
		}
	}
	sort.SliceStable(req.Slots, func(i, j int) bool {
		a, b := req.Slots[i], req.Slots[j]
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if a.Period != b.Period {
			return a.Period == models.PeriodMorning
		}
		if a.LocationID != b.LocationID {
			return a.LocationID < b.LocationID
		}
		return a.RoleID < b.RoleID
	})

	dates := timeutil.WeekDates(c.WeekStart)
	for _, ec := range c.Employees {
		e := Employee{
			ID:               ec.Employee.ID,
			Name:             ec.Employee.FullName(),
			RoleIDs:          ec.RoleIDs,
			MaxHours:         ec.Employee.MaxWeeklyHours,
			IncompatibleWith: ec.IncompatibleWith,
			TimeOffDates:     []string{},
			ExceptionDates:   []string{},
			PriorMinutes:     prior[ec.Employee.ID],
		}
		if ec.Employee.PreferredLocationID != nil {
			e.PreferredLocationID = *ec.Employee.PreferredLocationID
		}
		if ec.Employee.PeriodPreference != nil {
			e.PeriodPreference = string(*ec.Employee.PeriodPreference)
		}
		for day, date := range dates {
			for _, p := range models.Periods {
				if st := ec.StatusOn(date, p); st != "" {
					e.Availability = append(e.Availability, Availability{DayOfWeek: day, Period: p, Status: st})
				}
			}
			if constraints.EffectiveAvailability(date, models.PeriodMorning, ec.TimeOff, nil, nil) == models.AvailabilityUnavailable {
				e.TimeOffDates = append(e.TimeOffDates, date)
			} else if constraints.EffectiveAvailability(date, models.PeriodMorning, nil, ec.Exceptions, nil) == models.AvailabilityUnavailable {
				e.ExceptionDates = append(e.ExceptionDates, date)
			}
		}
		req.Employees = append(req.Employees, e)
	}
	return req
}

// FixedAssignment converts an existing shift into a pinned assignment.
func FixedAssignment(s models.Shift, weekStart string) models.Assignment {
	slot := constraints.SlotOf(s, weekStart)
	return models.Assignment{
		EmployeeID: s.EmployeeID,
		LocationID: slot.LocationID,
		RoleID:     slot.RoleID,
		DayOfWeek:  slot.DayOfWeek,
		Period:     slot.Period,
	}
}

// ErrNoStrategy is returned by an empty Chain.
var ErrNoStrategy = errors.New("no generation strategy configured")

// Chain tries strategies in order and returns the first usable or infeasible
// result. If all fail, the last error is returned.
type Chain []Strategy

func (c Chain) Name() string {
	if len(c) == 0 {
		return "chain"
	}
	return c[0].Name()
}

func (c Chain) Generate(ctx context.Context, req Request) (Result, error) {
	lastErr := ErrNoStrategy
	for _, s := range c {
		res, err := s.Generate(ctx, req)
		if err == nil && res.Status != StatusError {
			if res.Strategy == "" {
				res.Strategy = s.Name()
			}
			return res, nil
		}
		if err == nil {
			err = errors.New(res.Reason)
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return Result{Status: StatusError, Reason: lastErr.Error()}, lastErr
}
