package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ConflictType is the machine-readable tag of a rejected assignment.
type ConflictType string

const (
	ConflictPastDate        ConflictType = "past_date"
	ConflictOverlap         ConflictType = "overlap"
	ConflictAvailability    ConflictType = "availability"
	ConflictIncompatibility ConflictType = "incompatibility"
	ConflictRestPeriod      ConflictType = "rest_period"
	ConflictMaxHours        ConflictType = "max_hours"
)

// Conflict is a violated hard rule. It is an expected outcome, not an error.
type Conflict struct {
	Type    ConflictType `json:"type"`
	Message string       `json:"message"`
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s: %s", c.Type, c.Message)
}

// Candidate is a proposed (employee, shift) pairing.
type Candidate struct {
	EmployeeID     string `json:"employee_id" binding:"required"`
	OrganizationID string `json:"organization_id"`
	ScheduleID     string `json:"schedule_id"`
	LocationID     string `json:"location_id" binding:"required"`
	RoleID         string `json:"role_id" binding:"required"`
	Date           string `json:"date" binding:"required"`
	StartTime      string `json:"start_time" binding:"required,hhmm"`
	EndTime        string `json:"end_time" binding:"required,hhmm"`
	WeekStart      string `json:"week_start"`
	ExcludeShiftID string `json:"exclude_shift_id,omitempty"`
}

// Assignment is one generated (employee, slot) pairing. EmployeeID may hold a
// human name when it came from a free-form generator.
type Assignment struct {
	EmployeeID string `json:"employeeId"`
	LocationID string `json:"locationId"`
	RoleID     string `json:"roleId"`
	DayOfWeek  int    `json:"dayOfWeek"`
	Period     Period `json:"period"`
	Unresolved bool   `json:"-"`
}

// SlotKey identifies one staffing slot.
type SlotKey struct {
	LocationID string
	RoleID     string
	DayOfWeek  int
	Period     Period
}

// Slot returns the staffing slot the assignment fills.
func (a Assignment) Slot() SlotKey {
	return SlotKey{LocationID: a.LocationID, RoleID: a.RoleID, DayOfWeek: a.DayOfWeek, Period: a.Period}
}

// GenerationMode selects between re-solving and filling gaps.
type GenerationMode string

const (
	ModeFull     GenerationMode = "full"
	ModeFillGaps GenerationMode = "fill_gaps"
)

// GenerationMethod records which strategy produced the assignments.
type GenerationMethod string

const (
	MethodSolver   GenerationMethod = "solver"
	MethodFallback GenerationMethod = "fallback"
)

// GenerateResult is the outcome of one GenerateWeek call. Partial success
// (Saved > 0 with Errors) is normal.
type GenerateResult struct {
	ScheduleID   string           `json:"schedule_id"`
	Saved        int              `json:"saved"`
	Skipped      int              `json:"skipped"`
	Filled       int              `json:"filled"`
	Errors       []string         `json:"errors"`
	Method       GenerationMethod `json:"method"`
	SolverStatus string           `json:"solver_status"`
	LaborCost    decimal.Decimal  `json:"labor_cost"`
}

// SubstituteSuggestion is one ranked replacement candidate.
type SubstituteSuggestion struct {
	EmployeeID        string  `json:"employee_id"`
	Name              string  `json:"name"`
	Score             float64 `json:"score"`
	PreferredLocation bool    `json:"preferred_location"`
	ShiftsThisWeek    int     `json:"shifts_this_week"`
	HoursRemaining    float64 `json:"weekly_hours_remaining"`
}

// CoverageSlot compares required and assigned headcount for a slot.
type CoverageSlot struct {
	LocationID string `json:"location_id"`
	RoleID     string `json:"role_id"`
	DayOfWeek  int    `json:"day_of_week"`
	Period     Period `json:"period"`
	Required   int    `json:"required"`
	Assigned   int    `json:"assigned"`
}

// Missing is the uncovered headcount of the slot.
func (c CoverageSlot) Missing() int {
	if c.Assigned >= c.Required {
		return 0
	}
	return c.Required - c.Assigned
}
