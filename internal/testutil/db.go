// Package testutil provides in-memory databases and fixtures for tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/arnavshah/rota-engine/pkg/database"
	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with the full schema.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=off", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// Fixture is a seeded organization with one location and one role.
type Fixture struct {
	DB       *gorm.DB
	Org      models.Organization
	Location models.Location
	Role     models.Role
}

// NewFixture seeds an organization in UTC.
func NewFixture(t testing.TB) *Fixture {
	t.Helper()
	db := NewDB(t)
	f := &Fixture{DB: db}

	f.Org = models.Organization{Name: "Trattoria", Timezone: "UTC"}
	require.NoError(t, db.Create(&f.Org).Error)
	f.Location = models.Location{OrganizationID: f.Org.ID, Name: "Location A"}
	require.NoError(t, db.Create(&f.Location).Error)
	f.Role = models.Role{OrganizationID: f.Org.ID, Name: "Waiter"}
	require.NoError(t, db.Create(&f.Role).Error)
	return f
}

// AddLocation seeds another location.
func (f *Fixture) AddLocation(t testing.TB, name string) models.Location {
	t.Helper()
	loc := models.Location{OrganizationID: f.Org.ID, Name: name}
	require.NoError(t, f.DB.Create(&loc).Error)
	return loc
}

// AddRole seeds another role.
func (f *Fixture) AddRole(t testing.TB, name string) models.Role {
	t.Helper()
	role := models.Role{OrganizationID: f.Org.ID, Name: name}
	require.NoError(t, f.DB.Create(&role).Error)
	return role
}

// AddEmployee seeds an active employee holding the fixture role, or roleIDs
// when given.
func (f *Fixture) AddEmployee(t testing.TB, first, last string, maxWeeklyHours int, roleIDs ...string) models.Employee {
	t.Helper()
	if len(roleIDs) == 0 {
		roleIDs = []string{f.Role.ID}
	}
	emp := models.Employee{
		OrganizationID: f.Org.ID,
		FirstName:      first,
		LastName:       last,
		WeeklyHours:    maxWeeklyHours,
		MaxWeeklyHours: maxWeeklyHours,
		HourlyRate:     decimal.NewFromInt(10),
		IsActive:       true,
	}
	for i, id := range roleIDs {
		emp.Roles = append(emp.Roles, models.EmployeeRole{RoleID: id, Priority: i + 1})
	}
	require.NoError(t, f.DB.Create(&emp).Error)
	return emp
}

// AddRequirement seeds a staffing requirement at the fixture location.
func (f *Fixture) AddRequirement(t testing.TB, day int, period models.Period, count int) models.StaffingRequirement {
	t.Helper()
	req := models.StaffingRequirement{
		LocationID:    f.Location.ID,
		RoleID:        f.Role.ID,
		DayOfWeek:     day,
		Period:        period,
		RequiredCount: count,
	}
	require.NoError(t, f.DB.Create(&req).Error)
	return req
}

// Schedule returns the schedule of weekStart, creating it when missing.
func (f *Fixture) Schedule(t testing.TB, weekStart string) models.Schedule {
	t.Helper()
	sched := models.Schedule{OrganizationID: f.Org.ID, WeekStartDate: weekStart}
	err := f.DB.Where(models.Schedule{OrganizationID: f.Org.ID, WeekStartDate: weekStart}).
		Attrs(models.Schedule{Status: models.ScheduleDraft}).
		FirstOrCreate(&sched).Error
	require.NoError(t, err)
	return sched
}

// AddShift seeds an active shift for emp at the fixture location and role.
func (f *Fixture) AddShift(t testing.TB, emp models.Employee, weekStart, date, start, end string) models.Shift {
	t.Helper()
	sched := f.Schedule(t, weekStart)
	shift := models.Shift{
		ScheduleID:     sched.ID,
		OrganizationID: f.Org.ID,
		LocationID:     f.Location.ID,
		EmployeeID:     emp.ID,
		RoleID:         f.Role.ID,
		Date:           date,
		StartTime:      start,
		EndTime:        end,
		Status:         models.ShiftActive,
	}
	require.NoError(t, f.DB.Create(&shift).Error)
	return shift
}
