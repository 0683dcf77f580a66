package constraints_test

import (
	"context"
	"testing"

	"github.com/arnavshah/rota-engine/internal/testutil"
	"github.com/arnavshah/rota-engine/pkg/constraints"
	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/arnavshah/rota-engine/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestShiftWindows_ResolveOrder(t *testing.T) {
	overrides := []models.RoleShiftTime{
		{RoleID: "cook", Period: models.PeriodMorning, DayOfWeek: models.DayAll, StartTime: "07:00", EndTime: "13:00"},
		{RoleID: "cook", Period: models.PeriodMorning, DayOfWeek: 5, StartTime: "09:00", EndTime: "15:00"},
		{RoleID: "cook", LocationID: strPtr("loc-a"), Period: models.PeriodMorning, DayOfWeek: models.DayAll, StartTime: "06:30", EndTime: "12:30"},
		{RoleID: "cook", LocationID: strPtr("loc-a"), Period: models.PeriodMorning, DayOfWeek: 6, StartTime: "10:00", EndTime: "16:00"},
	}
	w := constraints.NewShiftWindows(overrides)

	tests := []struct {
		name     string
		location string
		role     string
		day      int
		period   models.Period
		want     constraints.Window
	}{
		{"location role and day", "loc-a", "cook", 6, models.PeriodMorning, constraints.Window{Start: "10:00", End: "16:00"}},
		{"location and role", "loc-a", "cook", 2, models.PeriodMorning, constraints.Window{Start: "06:30", End: "12:30"}},
		{"role and day", "loc-b", "cook", 5, models.PeriodMorning, constraints.Window{Start: "09:00", End: "15:00"}},
		{"role", "loc-b", "cook", 1, models.PeriodMorning, constraints.Window{Start: "07:00", End: "13:00"}},
		{"organization default", "loc-b", "waiter", 1, models.PeriodEvening, constraints.Window{Start: "14:00", End: "23:00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Resolve(tt.location, tt.role, tt.day, tt.period))
		})
	}
}

func TestPeriodOf(t *testing.T) {
	assert.Equal(t, models.PeriodMorning, constraints.PeriodOf("08:00"))
	assert.Equal(t, models.PeriodMorning, constraints.PeriodOf("13:59"))
	assert.Equal(t, models.PeriodEvening, constraints.PeriodOf("14:00"))
	assert.Equal(t, models.PeriodEvening, constraints.PeriodOf("22:00"))
}

func TestShiftWindows_Classify(t *testing.T) {
	w := constraints.NewShiftWindows([]models.RoleShiftTime{
		{RoleID: "cook", Period: models.PeriodEvening, DayOfWeek: models.DayAll, StartTime: "12:00", EndTime: "20:00"},
	})

	assert.Equal(t, models.PeriodEvening, w.Classify("loc", "cook", "2025-01-06", "12:00"), "override window wins over start time")
	assert.Equal(t, models.PeriodMorning, w.Classify("loc", "cook", "2025-01-06", "08:00"))
	assert.Equal(t, models.PeriodMorning, w.Classify("loc", "waiter", "2025-01-06", "12:00"))
	assert.Equal(t, models.PeriodEvening, w.Classify("loc", "cook", "2025-01-06", "16:00"), "unmatched starts fall back to PeriodOf")
}

func TestEffectiveAvailability(t *testing.T) {
	patterns := []models.AvailabilityPattern{
		{DayOfWeek: 0, Period: models.PeriodMorning, Status: models.AvailabilityPreferred},
	}
	assert.Equal(t, models.AvailabilityPreferred,
		constraints.EffectiveAvailability("2025-01-06", models.PeriodMorning, nil, nil, patterns))
	assert.Equal(t, models.AvailabilityStatus(""),
		constraints.EffectiveAvailability("2025-01-06", models.PeriodEvening, nil, nil, patterns))

	exceptions := []models.AvailabilityException{
		{StartDate: "2025-01-01", EndDate: "2025-01-31", DayOfWeek: 0, Status: models.AvailabilityAvailable},
		{StartDate: "2025-01-06", EndDate: "2025-01-06", DayOfWeek: 0, Status: models.AvailabilityPreferred},
	}
	assert.Equal(t, models.AvailabilityAvailable,
		constraints.EffectiveAvailability("2025-01-06", models.PeriodMorning, nil, exceptions, patterns))
	assert.Equal(t, models.AvailabilityPreferred,
		constraints.EffectiveAvailability("2025-02-03", models.PeriodMorning, nil, exceptions, patterns),
		"exceptions outside their range fall back to the pattern")

	timeOff := []models.TimeOff{{StartDate: "2025-01-05", EndDate: "2025-01-07", Status: models.TimeOffApproved}}
	assert.Equal(t, models.AvailabilityUnavailable,
		constraints.EffectiveAvailability("2025-01-06", models.PeriodMorning, timeOff, exceptions, patterns))
}

func TestCoverage(t *testing.T) {
	week := "2025-01-06"
	reqs := []models.StaffingRequirement{
		{LocationID: "loc", RoleID: "role", DayOfWeek: 0, Period: models.PeriodMorning, RequiredCount: 2},
		{LocationID: "loc", RoleID: "role", DayOfWeek: 0, Period: models.PeriodEvening, RequiredCount: 1},
	}
	shifts := []models.Shift{
		{LocationID: "loc", RoleID: "role", Date: "2025-01-06", StartTime: "08:00", EndTime: "14:00", Status: models.ShiftActive},
		{LocationID: "loc", RoleID: "role", Date: "2025-01-06", StartTime: "09:00", EndTime: "14:00", Status: models.ShiftCancelled},
		{LocationID: "loc", RoleID: "role", Date: "2025-01-06", StartTime: "18:00", EndTime: "23:00", Status: models.ShiftActive},
		{LocationID: "loc", RoleID: "role", Date: "2025-01-13", StartTime: "08:00", EndTime: "14:00", Status: models.ShiftActive},
	}

	cov := constraints.Coverage(week, reqs, shifts)
	require.Len(t, cov, 2)
	assert.Equal(t, 1, cov[0].Assigned)
	assert.Equal(t, 1, cov[0].Missing())
	assert.Equal(t, 1, cov[1].Assigned)
	assert.Equal(t, 0, cov[1].Missing())

	// A stored period overrides the start time.
	shifts = append(shifts, models.Shift{LocationID: "loc", RoleID: "role", Date: "2025-01-06", StartTime: "12:00", EndTime: "20:00", Period: models.PeriodEvening, Status: models.ShiftActive})
	cov = constraints.Coverage(week, reqs, shifts)
	assert.Equal(t, 1, cov[0].Assigned)
	assert.Equal(t, 2, cov[1].Assigned)
}

func TestCollector_Collect(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)
	week := "2025-01-06"

	a := f.AddEmployee(t, "Mario", "Rossi", 40)
	b := f.AddEmployee(t, "Luigi", "Verdi", 40)
	noRole := models.Employee{OrganizationID: f.Org.ID, FirstName: "Anna", LastName: "Bianchi", MaxWeeklyHours: 40, IsActive: true}
	require.NoError(t, f.DB.Create(&noRole).Error)

	f.AddRequirement(t, 0, models.PeriodMorning, 2)
	require.NoError(t, f.DB.Create(&models.Incompatibility{OrganizationID: f.Org.ID, EmployeeAID: a.ID, EmployeeBID: b.ID}).Error)
	require.NoError(t, f.DB.Create(&models.TimeOff{EmployeeID: a.ID, StartDate: "2025-01-08", EndDate: "2025-01-08", Status: models.TimeOffApproved}).Error)
	require.NoError(t, f.DB.Create(&models.TimeOff{EmployeeID: a.ID, StartDate: "2025-02-08", EndDate: "2025-02-08", Status: models.TimeOffApproved}).Error)

	sched := f.Schedule(t, week)
	f.AddShift(t, b, week, "2025-01-06", "08:00", "14:00")

	c, err := constraints.NewCollector(store.New(f.DB)).Collect(ctx, constraints.Target{
		OrganizationID: f.Org.ID,
		ScheduleID:     sched.ID,
		WeekStart:      week,
	})
	require.NoError(t, err)

	assert.True(t, c.HasDemand())
	require.Len(t, c.Employees, 2, "employees without roles are not schedulable")
	assert.Len(t, c.ExistingShifts, 1)

	ea, ok := c.Employee(a.ID)
	require.True(t, ok)
	assert.Equal(t, []string{b.ID}, ea.IncompatibleWith)
	assert.Len(t, ea.TimeOff, 1, "only time off inside the week is collected")
	assert.Equal(t, models.AvailabilityUnavailable, ea.StatusOn("2025-01-08", models.PeriodMorning))
	assert.Equal(t, 11, c.Rules.MinRestHours)

	cov := constraints.Coverage(week, c.Requirements(), c.ExistingShifts)
	require.Len(t, cov, 1)
	assert.Equal(t, 1, cov[0].Missing())
}

func TestCollector_LocationSubset(t *testing.T) {
	f := testutil.NewFixture(t)
	other := f.AddLocation(t, "Location B")
	f.AddEmployee(t, "Mario", "Rossi", 40)
	f.AddRequirement(t, 0, models.PeriodMorning, 1)

	c, err := constraints.NewCollector(store.New(f.DB)).Collect(context.Background(), constraints.Target{
		OrganizationID: f.Org.ID,
		WeekStart:      "2025-01-06",
		LocationIDs:    []string{other.ID},
	})
	require.NoError(t, err)
	require.Len(t, c.Locations, 1)
	assert.False(t, c.HasDemand())
}
