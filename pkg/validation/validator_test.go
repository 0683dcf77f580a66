package validation_test

import (
	"context"
	"testing"
	"time"

	"github.com/arnavshah/rota-engine/internal/testutil"
	"github.com/arnavshah/rota-engine/pkg/apperror"
	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/arnavshah/rota-engine/pkg/store"
	"github.com/arnavshah/rota-engine/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const week = "2025-01-06"

func clockAt(date string) validation.Option {
	return validation.WithClock(func() time.Time {
		t, _ := time.Parse("2006-01-02 15:04", date+" 09:00")
		return t
	})
}

func candidate(f *testutil.Fixture, emp models.Employee, date, start, end string) models.Candidate {
	return models.Candidate{
		EmployeeID:     emp.ID,
		OrganizationID: f.Org.ID,
		LocationID:     f.Location.ID,
		RoleID:         f.Role.ID,
		Date:           date,
		StartTime:      start,
		EndTime:        end,
		WeekStart:      week,
	}
}

func newValidator(f *testutil.Fixture) *validation.Validator {
	return validation.New(store.New(f.DB), clockAt("2025-01-01"))
}

func TestValidate_OvernightSundayCountsOnlyPreMidnight(t *testing.T) {
	f := testutil.NewFixture(t)
	emp := f.AddEmployee(t, "Mario", "Rossi", 40)
	for day := 0; day < 6; day++ {
		date := time.Date(2025, 1, 6+day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		f.AddShift(t, emp, week, date, "08:00", "14:00")
	}

	conflict, err := newValidator(f).Validate(context.Background(), candidate(f, emp, "2025-01-12", "22:00", "06:00"))
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestValidate_SeventhShiftExceedsMaxHours(t *testing.T) {
	f := testutil.NewFixture(t)
	emp := f.AddEmployee(t, "Mario", "Rossi", 40)
	for day := 0; day < 6; day++ {
		date := time.Date(2025, 1, 6+day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		f.AddShift(t, emp, week, date, "08:00", "14:00")
	}

	conflict, err := newValidator(f).Validate(context.Background(), candidate(f, emp, "2025-01-12", "08:00", "14:00"))
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.ConflictMaxHours, conflict.Type)
	assert.Contains(t, conflict.Message, "42.0h")
}

func TestValidate_PreviousWeekOvernightCountsTowardsMaxHours(t *testing.T) {
	f := testutil.NewFixture(t)
	emp := f.AddEmployee(t, "Mario", "Rossi", 10)
	f.AddShift(t, emp, "2024-12-30", "2025-01-05", "18:00", "06:00")

	// 6h carried over from Sunday plus 6h on Wednesday.
	conflict, err := newValidator(f).Validate(context.Background(), candidate(f, emp, "2025-01-08", "08:00", "14:00"))
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.ConflictMaxHours, conflict.Type)
}

func TestValidate_PastDateWinsOverEverything(t *testing.T) {
	f := testutil.NewFixture(t)
	emp := f.AddEmployee(t, "Mario", "Rossi", 40)
	f.AddShift(t, emp, week, "2025-01-08", "08:00", "14:00")

	v := validation.New(store.New(f.DB), clockAt("2025-01-09"))
	conflict, err := v.Validate(context.Background(), candidate(f, emp, "2025-01-08", "10:00", "16:00"))
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.ConflictPastDate, conflict.Type)
}

func TestValidate_TodayIsNotPast(t *testing.T) {
	f := testutil.NewFixture(t)
	emp := f.AddEmployee(t, "Mario", "Rossi", 40)

	v := validation.New(store.New(f.DB), clockAt("2025-01-08"))
	conflict, err := v.Validate(context.Background(), candidate(f, emp, "2025-01-08", "10:00", "16:00"))
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestValidate_Overlap(t *testing.T) {
	f := testutil.NewFixture(t)
	emp := f.AddEmployee(t, "Mario", "Rossi", 40)
	existing := f.AddShift(t, emp, week, "2025-01-07", "08:00", "14:00")
	v := newValidator(f)

	conflict, err := v.Validate(context.Background(), candidate(f, emp, "2025-01-07", "12:00", "18:00"))
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.ConflictOverlap, conflict.Type)

	t.Run("editing the same shift does not overlap itself", func(t *testing.T) {
		cand := candidate(f, emp, "2025-01-07", "09:00", "15:00")
		cand.ExcludeShiftID = existing.ID
		conflict, err := v.Validate(context.Background(), cand)
		require.NoError(t, err)
		assert.Nil(t, conflict)
	})
}

func TestValidate_OverlapWithPreviousNightShift(t *testing.T) {
	f := testutil.NewFixture(t)
	emp := f.AddEmployee(t, "Mario", "Rossi", 40)
	f.AddShift(t, emp, week, "2025-01-06", "22:00", "06:00")

	conflict, err := newValidator(f).Validate(context.Background(), candidate(f, emp, "2025-01-07", "05:00", "09:00"))
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.ConflictOverlap, conflict.Type)
}

func TestValidate_Availability(t *testing.T) {
	ctx := context.Background()

	t.Run("recurring unavailable pattern rejects", func(t *testing.T) {
		f := testutil.NewFixture(t)
		emp := f.AddEmployee(t, "Mario", "Rossi", 40)
		require.NoError(t, f.DB.Create(&models.AvailabilityPattern{
			EmployeeID: emp.ID, DayOfWeek: 1, Period: models.PeriodMorning, Status: models.AvailabilityUnavailable,
		}).Error)

		conflict, err := newValidator(f).Validate(ctx, candidate(f, emp, "2025-01-07", "08:00", "14:00"))
		require.NoError(t, err)
		require.NotNil(t, conflict)
		assert.Equal(t, models.ConflictAvailability, conflict.Type)

		conflict, err = newValidator(f).Validate(ctx, candidate(f, emp, "2025-01-07", "15:00", "20:00"))
		require.NoError(t, err)
		assert.Nil(t, conflict, "evening is not covered by the morning pattern")
	})

	t.Run("exception overrides pattern", func(t *testing.T) {
		f := testutil.NewFixture(t)
		emp := f.AddEmployee(t, "Mario", "Rossi", 40)
		require.NoError(t, f.DB.Create(&models.AvailabilityPattern{
			EmployeeID: emp.ID, DayOfWeek: 1, Period: models.PeriodMorning, Status: models.AvailabilityUnavailable,
		}).Error)
		require.NoError(t, f.DB.Create(&models.AvailabilityException{
			EmployeeID: emp.ID, StartDate: "2025-01-01", EndDate: "2025-01-31", DayOfWeek: 1, Status: models.AvailabilityAvailable,
		}).Error)

		conflict, err := newValidator(f).Validate(ctx, candidate(f, emp, "2025-01-07", "08:00", "14:00"))
		require.NoError(t, err)
		assert.Nil(t, conflict)
	})

	t.Run("most restrictive exception wins", func(t *testing.T) {
		f := testutil.NewFixture(t)
		emp := f.AddEmployee(t, "Mario", "Rossi", 40)
		for _, status := range []models.AvailabilityStatus{models.AvailabilityPreferred, models.AvailabilityUnavailable} {
			require.NoError(t, f.DB.Create(&models.AvailabilityException{
				EmployeeID: emp.ID, StartDate: "2025-01-06", EndDate: "2025-01-12", DayOfWeek: 2, Status: status,
			}).Error)
		}

		conflict, err := newValidator(f).Validate(ctx, candidate(f, emp, "2025-01-08", "08:00", "14:00"))
		require.NoError(t, err)
		require.NotNil(t, conflict)
		assert.Equal(t, models.ConflictAvailability, conflict.Type)
	})

	t.Run("approved time off beats a preferred pattern", func(t *testing.T) {
		f := testutil.NewFixture(t)
		emp := f.AddEmployee(t, "Mario", "Rossi", 40)
		require.NoError(t, f.DB.Create(&models.AvailabilityPattern{
			EmployeeID: emp.ID, DayOfWeek: 3, Period: models.PeriodMorning, Status: models.AvailabilityPreferred,
		}).Error)
		require.NoError(t, f.DB.Create(&models.TimeOff{
			EmployeeID: emp.ID, StartDate: "2025-01-09", EndDate: "2025-01-10", Status: models.TimeOffApproved,
		}).Error)
		require.NoError(t, f.DB.Create(&models.TimeOff{
			EmployeeID: emp.ID, StartDate: "2025-01-11", EndDate: "2025-01-11", Status: models.TimeOffPending,
		}).Error)

		conflict, err := newValidator(f).Validate(ctx, candidate(f, emp, "2025-01-09", "08:00", "14:00"))
		require.NoError(t, err)
		require.NotNil(t, conflict)
		assert.Equal(t, models.ConflictAvailability, conflict.Type)

		conflict, err = newValidator(f).Validate(ctx, candidate(f, emp, "2025-01-11", "08:00", "14:00"))
		require.NoError(t, err)
		assert.Nil(t, conflict, "pending time off does not block")
	})
}

func TestValidate_Incompatibility(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)
	a := f.AddEmployee(t, "Mario", "Rossi", 40)
	b := f.AddEmployee(t, "Luigi", "Verdi", 40)
	require.NoError(t, f.DB.Create(&models.Incompatibility{
		OrganizationID: f.Org.ID, EmployeeAID: b.ID, EmployeeBID: a.ID,
	}).Error)
	f.AddShift(t, b, week, "2025-01-07", "08:00", "14:00")

	conflict, err := newValidator(f).Validate(ctx, candidate(f, a, "2025-01-07", "10:00", "16:00"))
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.ConflictIncompatibility, conflict.Type)

	other := f.AddLocation(t, "Location B")
	cand := candidate(f, a, "2025-01-07", "10:00", "16:00")
	cand.LocationID = other.ID
	conflict, err = newValidator(f).Validate(ctx, cand)
	require.NoError(t, err)
	assert.Nil(t, conflict, "different locations never clash")
}

func TestValidate_RestPeriod(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name                 string
		existingDate         string
		existingStart        string
		existingEnd          string
		date, start, end     string
		expectRestPeriodFail bool
	}{
		{"short rest after previous shift", "2025-01-07", "14:00", "23:00", "2025-01-08", "08:00", "14:00", true},
		{"short rest before next shift", "2025-01-08", "08:00", "14:00", "2025-01-07", "16:00", "23:00", true},
		{"back to back shifts", "2025-01-07", "08:00", "14:00", "2025-01-07", "14:00", "20:00", true},
		{"eleven hours is enough", "2025-01-07", "14:00", "21:00", "2025-01-08", "08:00", "14:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testutil.NewFixture(t)
			emp := f.AddEmployee(t, "Mario", "Rossi", 60)
			f.AddShift(t, emp, week, tt.existingDate, tt.existingStart, tt.existingEnd)

			conflict, err := newValidator(f).Validate(ctx, candidate(f, emp, tt.date, tt.start, tt.end))
			require.NoError(t, err)
			if tt.expectRestPeriodFail {
				require.NotNil(t, conflict)
				assert.Equal(t, models.ConflictRestPeriod, conflict.Type)
			} else {
				assert.Nil(t, conflict)
			}
		})
	}
}

func TestValidate_OrganizationRestSetting(t *testing.T) {
	f := testutil.NewFixture(t)
	require.NoError(t, f.DB.Create(&models.OrganizationSettings{OrganizationID: f.Org.ID, MinRestHours: 8}).Error)
	emp := f.AddEmployee(t, "Mario", "Rossi", 60)
	f.AddShift(t, emp, week, "2025-01-07", "14:00", "23:00")

	conflict, err := newValidator(f).Validate(context.Background(), candidate(f, emp, "2025-01-08", "08:00", "14:00"))
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestValidate_ZeroRestAllowsBackToBack(t *testing.T) {
	f := testutil.NewFixture(t)
	require.NoError(t, f.DB.Create(&models.OrganizationSettings{OrganizationID: f.Org.ID}).Error)
	require.NoError(t, f.DB.Model(&models.OrganizationSettings{}).
		Where("organization_id = ?", f.Org.ID).
		Update("min_rest_hours", 0).Error)
	emp := f.AddEmployee(t, "Mario", "Rossi", 60)
	f.AddShift(t, emp, week, "2025-01-07", "08:00", "14:00")

	conflict, err := newValidator(f).Validate(context.Background(), candidate(f, emp, "2025-01-07", "14:00", "20:00"))
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

func TestValidate_UnknownEmployeeIsAnError(t *testing.T) {
	f := testutil.NewFixture(t)
	conflict, err := newValidator(f).Validate(context.Background(), models.Candidate{
		EmployeeID: "missing", LocationID: f.Location.ID, RoleID: f.Role.ID,
		Date: "2025-01-07", StartTime: "08:00", EndTime: "14:00",
	})
	assert.Nil(t, conflict)
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}
