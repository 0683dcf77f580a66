// Package store is the relational read/write boundary of the engine. Every
// query recomputes its answer from the database; nothing is cached between
// requests.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/arnavshah/rota-engine/pkg/apperror"
	"github.com/arnavshah/rota-engine/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store wraps a gorm handle, which is either the root connection or an open
// transaction.
type Store struct {
	db *gorm.DB
}

// New returns a Store on db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for callers that need raw access.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// WithScheduleLock runs fn inside a transaction that serializes writers of the
// same schedule. On Postgres the schedule row is locked FOR UPDATE; SQLite
// already serializes writers at the database level.
func (s *Store) WithScheduleLock(ctx context.Context, scheduleID string, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Schedule{}).Where("id = ?", scheduleID)
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var sched models.Schedule
		if err := q.First(&sched).Error; err != nil {
			return mapError(err, "schedule")
		}
		return fn(&Store{db: tx})
	})
}

// GetOrganization loads an organization by id.
func (s *Store) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&org).Error; err != nil {
		return nil, mapError(err, "organization")
	}
	return &org, nil
}

// WorkRules resolves the organization's rule set, falling back to defaults
// when no settings row exists.
func (s *Store) WorkRules(ctx context.Context, organizationID string) (models.WorkRules, error) {
	rules := models.DefaultWorkRules()

	org, err := s.GetOrganization(ctx, organizationID)
	switch {
	case err == nil:
		rules.Timezone = org.Location()
	case apperror.Is(err, apperror.CodeNotFound):
	default:
		return rules, err
	}

	var settings models.OrganizationSettings
	err = s.db.WithContext(ctx).Where("organization_id = ?", organizationID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rules, nil
	}
	if err != nil {
		return rules, fmt.Errorf("load work rules: %w", err)
	}
	// Zero turns the rest rule off.
	if settings.MinRestHours >= 0 {
		rules.MinRestHours = settings.MinRestHours
	}
	if settings.MaxConsecutiveDays > 0 {
		rules.MaxConsecutiveDays = settings.MaxConsecutiveDays
	}
	if settings.OvertimeThresholdHours > 0 {
		rules.OvertimeThresholdHours = settings.OvertimeThresholdHours
	}
	return rules, nil
}

// GetEmployee loads an employee with role assignments ordered by priority.
func (s *Store) GetEmployee(ctx context.Context, id string) (*models.Employee, error) {
	var emp models.Employee
	err := s.db.WithContext(ctx).
		Preload("Roles", func(db *gorm.DB) *gorm.DB { return db.Order("priority asc") }).
		Where("id = ?", id).
		First(&emp).Error
	if err != nil {
		return nil, mapError(err, "employee")
	}
	return &emp, nil
}

// ActiveEmployees lists the organization's active employees with roles.
func (s *Store) ActiveEmployees(ctx context.Context, organizationID string) ([]models.Employee, error) {
	var emps []models.Employee
	err := s.db.WithContext(ctx).
		Preload("Roles", func(db *gorm.DB) *gorm.DB { return db.Order("priority asc") }).
		Where("organization_id = ? AND is_active = ?", organizationID, true).
		Order("last_name, first_name").
		Find(&emps).Error
	if err != nil {
		return nil, fmt.Errorf("list active employees: %w", err)
	}
	return emps, nil
}

// Locations lists the organization's active locations, optionally restricted
// to ids.
func (s *Store) Locations(ctx context.Context, organizationID string, ids []string) ([]models.Location, error) {
	q := s.db.WithContext(ctx).Where("organization_id = ? AND is_active = ?", organizationID, true)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	var locs []models.Location
	if err := q.Order("name").Find(&locs).Error; err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return locs, nil
}

// GetLocation loads a location of the organization.
func (s *Store) GetLocation(ctx context.Context, organizationID, id string) (*models.Location, error) {
	var loc models.Location
	err := s.db.WithContext(ctx).Where("id = ? AND organization_id = ?", id, organizationID).First(&loc).Error
	if err != nil {
		return nil, mapError(err, "location")
	}
	return &loc, nil
}

// GetRole loads a role of the organization.
func (s *Store) GetRole(ctx context.Context, organizationID, id string) (*models.Role, error) {
	var role models.Role
	err := s.db.WithContext(ctx).Where("id = ? AND organization_id = ?", id, organizationID).First(&role).Error
	if err != nil {
		return nil, mapError(err, "role")
	}
	return &role, nil
}

// Roles lists the organization's roles.
func (s *Store) Roles(ctx context.Context, organizationID string) ([]models.Role, error) {
	var roles []models.Role
	if err := s.db.WithContext(ctx).Where("organization_id = ?", organizationID).Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// RoleShiftTimes lists the period overrides of the organization's roles.
func (s *Store) RoleShiftTimes(ctx context.Context, organizationID string) ([]models.RoleShiftTime, error) {
	var rows []models.RoleShiftTime
	err := s.db.WithContext(ctx).
		Where("role_id IN (?)", s.db.Model(&models.Role{}).Select("id").Where("organization_id = ?", organizationID)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list role shift times: %w", err)
	}
	return rows, nil
}

// StaffingRequirements lists the requirements of the given locations.
func (s *Store) StaffingRequirements(ctx context.Context, locationIDs []string) ([]models.StaffingRequirement, error) {
	if len(locationIDs) == 0 {
		return nil, nil
	}
	var reqs []models.StaffingRequirement
	err := s.db.WithContext(ctx).
		Where("location_id IN ? AND required_count > 0", locationIDs).
		Order("location_id, day_of_week, period, role_id").
		Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("list staffing requirements: %w", err)
	}
	return reqs, nil
}

// UpsertStaffingRequirement inserts or updates the headcount of one tuple and
// reloads req from the stored row.
func (s *Store) UpsertStaffingRequirement(ctx context.Context, req *models.StaffingRequirement) error {
	db := s.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "location_id"}, {Name: "role_id"}, {Name: "day_of_week"}, {Name: "period"}},
		DoUpdates: clause.AssignmentColumns([]string{"required_count", "updated_at"}),
	}).Create(req).Error
	if err != nil {
		return mapError(err, "staffing requirement")
	}
	var stored models.StaffingRequirement
	err = db.Where("location_id = ? AND role_id = ? AND day_of_week = ? AND period = ?",
		req.LocationID, req.RoleID, req.DayOfWeek, req.Period).
		First(&stored).Error
	if err != nil {
		return mapError(err, "staffing requirement")
	}
	*req = stored
	return nil
}

// AvailabilityPatterns lists the recurring availability of the employees.
func (s *Store) AvailabilityPatterns(ctx context.Context, employeeIDs []string) ([]models.AvailabilityPattern, error) {
	if len(employeeIDs) == 0 {
		return nil, nil
	}
	var rows []models.AvailabilityPattern
	if err := s.db.WithContext(ctx).Where("employee_id IN ?", employeeIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return rows, nil
}

// AvailabilityExceptions lists exceptions whose range intersects [from, to].
func (s *Store) AvailabilityExceptions(ctx context.Context, employeeIDs []string, from, to string) ([]models.AvailabilityException, error) {
	if len(employeeIDs) == 0 {
		return nil, nil
	}
	var rows []models.AvailabilityException
	err := s.db.WithContext(ctx).
		Where("employee_id IN ? AND start_date <= ? AND end_date >= ?", employeeIDs, to, from).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list availability exceptions: %w", err)
	}
	return rows, nil
}

// ApprovedTimeOff lists approved time off intersecting [from, to].
func (s *Store) ApprovedTimeOff(ctx context.Context, employeeIDs []string, from, to string) ([]models.TimeOff, error) {
	if len(employeeIDs) == 0 {
		return nil, nil
	}
	var rows []models.TimeOff
	err := s.db.WithContext(ctx).
		Where("employee_id IN ? AND status = ? AND start_date <= ? AND end_date >= ?",
			employeeIDs, models.TimeOffApproved, to, from).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list time off: %w", err)
	}
	return rows, nil
}

// Incompatibilities lists every pair involving employeeID.
func (s *Store) Incompatibilities(ctx context.Context, employeeID string) ([]models.Incompatibility, error) {
	var rows []models.Incompatibility
	err := s.db.WithContext(ctx).
		Where("employee_a_id = ? OR employee_b_id = ?", employeeID, employeeID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list incompatibilities: %w", err)
	}
	return rows, nil
}

// OrganizationIncompatibilities lists every pair in the organization.
func (s *Store) OrganizationIncompatibilities(ctx context.Context, organizationID string) ([]models.Incompatibility, error) {
	var rows []models.Incompatibility
	if err := s.db.WithContext(ctx).Where("organization_id = ?", organizationID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list incompatibilities: %w", err)
	}
	return rows, nil
}
