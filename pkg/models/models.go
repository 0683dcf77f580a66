package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Period is a named part of the working day.
type Period string

const (
	PeriodMorning Period = "morning"
	PeriodEvening Period = "evening"
)

// Periods lists the shift periods in display order.
var Periods = []Period{PeriodMorning, PeriodEvening}

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	return p == PeriodMorning || p == PeriodEvening
}

// AvailabilityStatus is an employee's stance on a day/period.
type AvailabilityStatus string

const (
	AvailabilityAvailable   AvailabilityStatus = "available"
	AvailabilityUnavailable AvailabilityStatus = "unavailable"
	AvailabilityPreferred   AvailabilityStatus = "preferred"
)

// ShiftStatus is the lifecycle state of a shift.
type ShiftStatus string

const (
	ShiftActive    ShiftStatus = "active"
	ShiftCancelled ShiftStatus = "cancelled"
	ShiftSickLeave ShiftStatus = "sick_leave"
)

// ScheduleStatus is the publication state of a week.
type ScheduleStatus string

const (
	ScheduleDraft                ScheduleStatus = "draft"
	SchedulePublished            ScheduleStatus = "published"
	ScheduleModifiedAfterPublish ScheduleStatus = "modified_after_publish"
)

// TimeOffStatus tracks approval of a time-off request.
type TimeOffStatus string

const (
	TimeOffPending  TimeOffStatus = "pending"
	TimeOffApproved TimeOffStatus = "approved"
	TimeOffRejected TimeOffStatus = "rejected"
)

// DayAll marks a role shift time override that applies to every weekday.
const DayAll = 7

// Base carries the UUID primary key and timestamps shared by every table.
type Base struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Organization owns every other entity.
type Organization struct {
	Base
	Name     string `gorm:"not null" json:"name"`
	Timezone string `gorm:"default:Europe/Rome" json:"timezone"`
}

// Location returns the organization's time zone, UTC when unknown.
func (o Organization) Location() *time.Location {
	if o.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// OrganizationSettings holds the work rules read at validation time.
type OrganizationSettings struct {
	Base
	OrganizationID         string `gorm:"type:varchar(36);uniqueIndex;not null" json:"organization_id"`
	MinRestHours           int    `gorm:"default:11" json:"min_rest_hours"`
	MaxConsecutiveDays     int    `gorm:"default:6" json:"max_consecutive_days"`
	OvertimeThresholdHours int    `gorm:"default:40" json:"overtime_threshold_hours"`
}

// WorkRules is the resolved rule set for one organization.
type WorkRules struct {
	Timezone               *time.Location
	MinRestHours           int
	MaxConsecutiveDays     int
	OvertimeThresholdHours int
}

// DefaultWorkRules mirrors the defaults of a fresh organization.
func DefaultWorkRules() WorkRules {
	return WorkRules{
		Timezone:               time.UTC,
		MinRestHours:           11,
		MaxConsecutiveDays:     6,
		OvertimeThresholdHours: 40,
	}
}

// Role is a named job function.
type Role struct {
	Base
	OrganizationID string `gorm:"type:varchar(36);index;not null" json:"organization_id"`
	Name           string `gorm:"not null" json:"name"`
	Color          string `gorm:"default:#3B82F6" json:"color"`
	IsActive       bool   `gorm:"default:true" json:"is_active"`
}

// RoleShiftTime overrides the default window of a period for a role,
// optionally scoped to one location and one weekday.
type RoleShiftTime struct {
	Base
	RoleID     string  `gorm:"type:varchar(36);index;not null" json:"role_id"`
	LocationID *string `gorm:"type:varchar(36)" json:"location_id,omitempty"`
	Period     Period  `gorm:"type:varchar(16);not null" json:"period"`
	DayOfWeek  int     `gorm:"default:7" json:"day_of_week"`
	StartTime  string  `gorm:"type:varchar(5);not null" json:"start_time"`
	EndTime    string  `gorm:"type:varchar(5);not null" json:"end_time"`
}

// Location is a work site.
type Location struct {
	Base
	OrganizationID string `gorm:"type:varchar(36);index;not null" json:"organization_id"`
	Name           string `gorm:"not null" json:"name"`
	OpeningHours   string `gorm:"type:text" json:"opening_hours,omitempty"`
	IsActive       bool   `gorm:"default:true" json:"is_active"`
}

// StaffingRequirement is the headcount needed for one
// (location, role, weekday, period) tuple.
type StaffingRequirement struct {
	Base
	LocationID    string `gorm:"type:varchar(36);uniqueIndex:idx_staffing_slot;not null" json:"location_id"`
	RoleID        string `gorm:"type:varchar(36);uniqueIndex:idx_staffing_slot;not null" json:"role_id"`
	DayOfWeek     int    `gorm:"uniqueIndex:idx_staffing_slot;not null" json:"day_of_week"`
	Period        Period `gorm:"type:varchar(16);uniqueIndex:idx_staffing_slot;not null" json:"period"`
	RequiredCount int    `gorm:"not null" json:"required_count"`
}

// Employee is a schedulable worker.
type Employee struct {
	Base
	OrganizationID      string          `gorm:"type:varchar(36);index;not null" json:"organization_id"`
	FirstName           string          `gorm:"not null" json:"first_name"`
	LastName            string          `json:"last_name"`
	Email               string          `json:"email,omitempty"`
	WeeklyHours         int             `gorm:"default:40;not null" json:"weekly_hours"`
	MaxWeeklyHours      int             `gorm:"default:48;not null" json:"max_weekly_hours"`
	HourlyRate          decimal.Decimal `gorm:"type:numeric(8,2);default:0" json:"hourly_rate"`
	PreferredLocationID *string         `gorm:"type:varchar(36)" json:"preferred_location_id,omitempty"`
	PeriodPreference    *Period         `gorm:"type:varchar(16)" json:"period_preference,omitempty"`
	IsActive            bool            `gorm:"default:true;not null" json:"is_active"`
	Roles               []EmployeeRole  `gorm:"foreignKey:EmployeeID" json:"roles,omitempty"`
}

// FullName is "First Last".
func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// HasRole reports whether the employee may work roleID.
func (e Employee) HasRole(roleID string) bool {
	for _, r := range e.Roles {
		if r.RoleID == roleID {
			return true
		}
	}
	return false
}

// RateFor returns the role-specific hourly rate, falling back to the base rate.
func (e Employee) RateFor(roleID string) decimal.Decimal {
	for _, r := range e.Roles {
		if r.RoleID == roleID && r.HourlyRate.Valid {
			return r.HourlyRate.Decimal
		}
	}
	return e.HourlyRate
}

// EmployeeRole is a prioritized role assignment. Priority 1 is primary.
type EmployeeRole struct {
	Base
	EmployeeID string              `gorm:"type:varchar(36);uniqueIndex:idx_employee_role;not null" json:"employee_id"`
	RoleID     string              `gorm:"type:varchar(36);uniqueIndex:idx_employee_role;not null" json:"role_id"`
	Priority   int                 `gorm:"default:1" json:"priority"`
	HourlyRate decimal.NullDecimal `gorm:"type:numeric(8,2)" json:"hourly_rate"`
}

// AvailabilityPattern is a recurring weekly stance.
type AvailabilityPattern struct {
	Base
	EmployeeID string             `gorm:"type:varchar(36);uniqueIndex:idx_availability_slot;not null" json:"employee_id"`
	DayOfWeek  int                `gorm:"uniqueIndex:idx_availability_slot;not null" json:"day_of_week"`
	Period     Period             `gorm:"type:varchar(16);uniqueIndex:idx_availability_slot;not null" json:"period"`
	Status     AvailabilityStatus `gorm:"type:varchar(16);default:available;not null" json:"status"`
}

// AvailabilityException overrides the recurring pattern for one weekday
// between two dates, e.g. "not on Wednesdays between Feb 10 and Feb 17".
type AvailabilityException struct {
	Base
	EmployeeID string             `gorm:"type:varchar(36);index;not null" json:"employee_id"`
	StartDate  string             `gorm:"type:varchar(10);not null" json:"start_date"`
	EndDate    string             `gorm:"type:varchar(10);not null" json:"end_date"`
	DayOfWeek  int                `gorm:"not null" json:"day_of_week"`
	Status     AvailabilityStatus `gorm:"type:varchar(16);default:unavailable;not null" json:"status"`
}

// Covers reports whether the exception applies to date.
func (x AvailabilityException) Covers(date string, weekday int) bool {
	return x.StartDate <= date && date <= x.EndDate && x.DayOfWeek == weekday
}

// TimeOff is a leave request; only approved ones block scheduling.
type TimeOff struct {
	Base
	EmployeeID string        `gorm:"type:varchar(36);index;not null" json:"employee_id"`
	StartDate  string        `gorm:"type:varchar(10);not null" json:"start_date"`
	EndDate    string        `gorm:"type:varchar(10);not null" json:"end_date"`
	Status     TimeOffStatus `gorm:"type:varchar(16);default:pending;not null" json:"status"`
	Notes      string        `json:"notes,omitempty"`
}

// Incompatibility is an unordered pair of employees who must not overlap.
type Incompatibility struct {
	Base
	OrganizationID string `gorm:"type:varchar(36);index;not null" json:"organization_id"`
	EmployeeAID    string `gorm:"type:varchar(36);uniqueIndex:idx_incompatible_pair;not null" json:"employee_a_id"`
	EmployeeBID    string `gorm:"type:varchar(36);uniqueIndex:idx_incompatible_pair;not null" json:"employee_b_id"`
	Reason         string `json:"reason,omitempty"`
}

// Other returns the partner of employeeID, or "" if it is not in the pair.
func (i Incompatibility) Other(employeeID string) string {
	switch employeeID {
	case i.EmployeeAID:
		return i.EmployeeBID
	case i.EmployeeBID:
		return i.EmployeeAID
	}
	return ""
}

// Schedule is one organization week.
type Schedule struct {
	Base
	OrganizationID string         `gorm:"type:varchar(36);uniqueIndex:idx_schedule_week;not null" json:"organization_id"`
	WeekStartDate  string         `gorm:"type:varchar(10);uniqueIndex:idx_schedule_week;not null" json:"week_start_date"`
	Status         ScheduleStatus `gorm:"type:varchar(32);default:draft;not null" json:"status"`
	PublishedAt    *time.Time     `json:"published_at,omitempty"`
}

// Shift is a concrete assignment. Shifts are never deleted, only cancelled.
type Shift struct {
	Base
	ScheduleID      string      `gorm:"type:varchar(36);index:idx_shift_schedule_status;not null" json:"schedule_id"`
	OrganizationID  string      `gorm:"type:varchar(36);index;not null" json:"organization_id"`
	LocationID      string      `gorm:"type:varchar(36);not null" json:"location_id"`
	EmployeeID      string      `gorm:"type:varchar(36);index:idx_shift_employee_date;not null" json:"employee_id"`
	RoleID          string      `gorm:"type:varchar(36);not null" json:"role_id"`
	Date            string      `gorm:"type:varchar(10);index:idx_shift_employee_date;not null" json:"date"`
	StartTime       string      `gorm:"type:varchar(5);not null" json:"start_time"`
	EndTime         string      `gorm:"type:varchar(5);not null" json:"end_time"`
	// Period is the staffing slot the shift covers. Empty on rows written
	// before it was stored; those are classified by start time.
	Period          Period      `gorm:"type:varchar(16)" json:"period,omitempty"`
	BreakMinutes    int         `gorm:"default:0" json:"break_minutes"`
	Status          ShiftStatus `gorm:"type:varchar(16);index:idx_shift_schedule_status;default:active;not null" json:"status"`
	IsAutoGenerated bool        `gorm:"default:false" json:"is_auto_generated"`
	Notes           string      `json:"notes,omitempty"`
	CancelledReason string      `json:"cancelled_reason,omitempty"`
}
