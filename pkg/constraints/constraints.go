// Package constraints gathers everything needed to validate or generate a
// week: the roster with its availability, staffing demand, existing shifts
// and work rules.
package constraints

import (
	"context"
	"sort"

	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/arnavshah/rota-engine/pkg/timeutil"
)

// Source is the read side of the store used by the collector.
type Source interface {
	WorkRules(ctx context.Context, organizationID string) (models.WorkRules, error)
	ActiveEmployees(ctx context.Context, organizationID string) ([]models.Employee, error)
	Locations(ctx context.Context, organizationID string, ids []string) ([]models.Location, error)
	Roles(ctx context.Context, organizationID string) ([]models.Role, error)
	RoleShiftTimes(ctx context.Context, organizationID string) ([]models.RoleShiftTime, error)
	StaffingRequirements(ctx context.Context, locationIDs []string) ([]models.StaffingRequirement, error)
	AvailabilityPatterns(ctx context.Context, employeeIDs []string) ([]models.AvailabilityPattern, error)
	AvailabilityExceptions(ctx context.Context, employeeIDs []string, from, to string) ([]models.AvailabilityException, error)
	ApprovedTimeOff(ctx context.Context, employeeIDs []string, from, to string) ([]models.TimeOff, error)
	OrganizationIncompatibilities(ctx context.Context, organizationID string) ([]models.Incompatibility, error)
	ScheduleShifts(ctx context.Context, scheduleID string) ([]models.Shift, error)
	OrganizationShifts(ctx context.Context, organizationID, from, to string) ([]models.Shift, error)
}

// Target selects the week to collect.
type Target struct {
	OrganizationID string
	ScheduleID     string
	WeekStart      string
	LocationIDs    []string
}

// EmployeeConstraint is one schedulable employee with the availability data
// that applies to the target week.
type EmployeeConstraint struct {
	Employee         models.Employee
	RoleIDs          []string
	Patterns         []models.AvailabilityPattern
	Exceptions       []models.AvailabilityException
	TimeOff          []models.TimeOff
	IncompatibleWith []string
}

// StatusOn resolves the employee's availability for a date and period.
func (e EmployeeConstraint) StatusOn(date string, period models.Period) models.AvailabilityStatus {
	return EffectiveAvailability(date, period, e.TimeOff, e.Exceptions, e.Patterns)
}

// LocationDemand is a location with its staffing requirements.
type LocationDemand struct {
	Location     models.Location
	Requirements []models.StaffingRequirement
}

// Constraints is the full working set for one week.
type Constraints struct {
	OrganizationID    string
	ScheduleID        string
	WeekStart         string
	Rules             models.WorkRules
	Windows           ShiftWindows
	Roles             []models.Role
	Employees         []EmployeeConstraint
	Locations         []LocationDemand
	Incompatibilities []models.Incompatibility
	// ExistingShifts are the active shifts of the schedule at the target
	// locations.
	ExistingShifts []models.Shift
	// WeekShifts are all active shifts of the organization that contribute
	// minutes to the week, including the previous Sunday.
	WeekShifts []models.Shift
}

// HasDemand reports whether any location requires at least one person.
func (c *Constraints) HasDemand() bool {
	for _, l := range c.Locations {
		for _, r := range l.Requirements {
			if r.RequiredCount > 0 {
				return true
			}
		}
	}
	return false
}

// Employee looks up a collected employee by id.
func (c *Constraints) Employee(id string) (EmployeeConstraint, bool) {
	for _, e := range c.Employees {
		if e.Employee.ID == id {
			return e, true
		}
	}
	return EmployeeConstraint{}, false
}

// Requirements flattens the demand of every location.
func (c *Constraints) Requirements() []models.StaffingRequirement {
	var out []models.StaffingRequirement
	for _, l := range c.Locations {
		out = append(out, l.Requirements...)
	}
	return out
}

// SlotWindow resolves the concrete times of a staffing slot.
func (c *Constraints) SlotWindow(slot models.SlotKey) Window {
	return c.Windows.Resolve(slot.LocationID, slot.RoleID, slot.DayOfWeek, slot.Period)
}

// Collector builds Constraints from a Source.
type Collector struct {
	source Source
}

// NewCollector returns a collector reading from source.
func NewCollector(source Source) *Collector {
	return &Collector{source: source}
}

// Collect gathers the working set of a week. Only active employees holding at
// least one role are included.
func (c *Collector) Collect(ctx context.Context, target Target) (*Constraints, error) {
	weekEnd := timeutil.AddDays(target.WeekStart, timeutil.DaysPerWeek-1)

	rules, err := c.source.WorkRules(ctx, target.OrganizationID)
	if err != nil {
		return nil, err
	}
	overrides, err := c.source.RoleShiftTimes(ctx, target.OrganizationID)
	if err != nil {
		return nil, err
	}
	roles, err := c.source.Roles(ctx, target.OrganizationID)
	if err != nil {
		return nil, err
	}

	locations, err := c.source.Locations(ctx, target.OrganizationID, target.LocationIDs)
	if err != nil {
		return nil, err
	}
	locationIDs := make([]string, 0, len(locations))
	for _, l := range locations {
		locationIDs = append(locationIDs, l.ID)
	}
	reqs, err := c.source.StaffingRequirements(ctx, locationIDs)
	if err != nil {
		return nil, err
	}
	byLocation := make(map[string][]models.StaffingRequirement, len(locations))
	for _, r := range reqs {
		byLocation[r.LocationID] = append(byLocation[r.LocationID], r)
	}
	demand := make([]LocationDemand, 0, len(locations))
	for _, l := range locations {
		demand = append(demand, LocationDemand{Location: l, Requirements: byLocation[l.ID]})
	}

	employees, err := c.source.ActiveEmployees(ctx, target.OrganizationID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range employees {
		if len(e.Roles) > 0 {
			ids = append(ids, e.ID)
		}
	}

	patterns, err := c.source.AvailabilityPatterns(ctx, ids)
	if err != nil {
		return nil, err
	}
	exceptions, err := c.source.AvailabilityExceptions(ctx, ids, target.WeekStart, weekEnd)
	if err != nil {
		return nil, err
	}
	timeOff, err := c.source.ApprovedTimeOff(ctx, ids, target.WeekStart, weekEnd)
	if err != nil {
		return nil, err
	}
	incompat, err := c.source.OrganizationIncompatibilities(ctx, target.OrganizationID)
	if err != nil {
		return nil, err
	}

	ecs := make([]EmployeeConstraint, 0, len(ids))
	for _, e := range employees {
		if len(e.Roles) == 0 {
			continue
		}
		ec := EmployeeConstraint{Employee: e}
		for _, r := range e.Roles {
			ec.RoleIDs = append(ec.RoleIDs, r.RoleID)
		}
		for _, p := range patterns {
			if p.EmployeeID == e.ID {
				ec.Patterns = append(ec.Patterns, p)
			}
		}
		for _, x := range exceptions {
			if x.EmployeeID == e.ID {
				ec.Exceptions = append(ec.Exceptions, x)
			}
		}
		for _, t := range timeOff {
			if t.EmployeeID == e.ID {
				ec.TimeOff = append(ec.TimeOff, t)
			}
		}
		for _, pair := range incompat {
			if other := pair.Other(e.ID); other != "" {
				ec.IncompatibleWith = append(ec.IncompatibleWith, other)
			}
		}
		sort.Strings(ec.IncompatibleWith)
		ecs = append(ecs, ec)
	}

	var existing []models.Shift
	if target.ScheduleID != "" {
		shifts, err := c.source.ScheduleShifts(ctx, target.ScheduleID)
		if err != nil {
			return nil, err
		}
		inScope := make(map[string]bool, len(locationIDs))
		for _, id := range locationIDs {
			inScope[id] = true
		}
		for _, s := range shifts {
			if inScope[s.LocationID] {
				existing = append(existing, s)
			}
		}
	}

	weekShifts, err := c.source.OrganizationShifts(ctx, target.OrganizationID, timeutil.AddDays(target.WeekStart, -1), weekEnd)
	if err != nil {
		return nil, err
	}

	return &Constraints{
		OrganizationID:    target.OrganizationID,
		ScheduleID:        target.ScheduleID,
		WeekStart:         target.WeekStart,
		Rules:             rules,
		Windows:           NewShiftWindows(overrides),
		Roles:             roles,
		Employees:         ecs,
		Locations:         demand,
		Incompatibilities: incompat,
		ExistingShifts:    existing,
		WeekShifts:        weekShifts,
	}, nil
}
