package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/arnavshah/rota-engine/internal/testutil"
	"github.com/arnavshah/rota-engine/pkg/apperror"
	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/arnavshah/rota-engine/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const week = "2025-01-06"

func TestEnsureSchedule(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)
	st := store.New(f.DB)

	first, err := st.EnsureSchedule(ctx, f.Org.ID, week)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleDraft, first.Status)

	again, err := st.EnsureSchedule(ctx, f.Org.ID, week)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	found, err := st.FindSchedule(ctx, f.Org.ID, week)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	_, err = st.FindSchedule(ctx, f.Org.ID, "2025-01-13")
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}

func TestPublishAndModify(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)
	st := store.New(f.DB)
	sched := f.Schedule(t, week)

	// Drafts stay drafts.
	require.NoError(t, st.MarkScheduleModified(ctx, sched.ID))
	got, err := st.GetSchedule(ctx, sched.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleDraft, got.Status)

	published, err := st.PublishSchedule(ctx, sched.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SchedulePublished, published.Status)

	require.NoError(t, st.MarkScheduleModified(ctx, sched.ID))
	got, err = st.GetSchedule(ctx, sched.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleModifiedAfterPublish, got.Status)

	_, err = st.PublishSchedule(ctx, "missing")
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}

func TestWorkRules(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)
	st := store.New(f.DB)

	rules, err := st.WorkRules(ctx, f.Org.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultWorkRules().MinRestHours, rules.MinRestHours)

	require.NoError(t, f.DB.Create(&models.OrganizationSettings{OrganizationID: f.Org.ID, MinRestHours: 9}).Error)
	rules, err = st.WorkRules(ctx, f.Org.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, rules.MinRestHours)
	assert.Equal(t, models.DefaultWorkRules().MaxConsecutiveDays, rules.MaxConsecutiveDays)

	require.NoError(t, f.DB.Model(&models.OrganizationSettings{}).
		Where("organization_id = ?", f.Org.ID).
		Update("min_rest_hours", 0).Error)
	rules, err = st.WorkRules(ctx, f.Org.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, rules.MinRestHours, "zero disables the rest rule")
}

func TestScopedLookups(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)
	st := store.New(f.DB)

	loc, err := st.GetLocation(ctx, f.Org.ID, f.Location.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Location.Name, loc.Name)
	role, err := st.GetRole(ctx, f.Org.ID, f.Role.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Role.Name, role.Name)

	_, err = st.GetLocation(ctx, "other-org", f.Location.ID)
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
	_, err = st.GetRole(ctx, "other-org", f.Role.ID)
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}

func TestShiftQueries(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)
	st := store.New(f.DB)
	giulia := f.AddEmployee(t, "Giulia", "Rossi", 40)
	luca := f.AddEmployee(t, "Luca", "Verdi", 40)

	a := f.AddShift(t, giulia, week, "2025-01-06", "08:00", "14:00")
	f.AddShift(t, giulia, week, "2025-01-07", "14:00", "23:00")
	f.AddShift(t, luca, week, "2025-01-07", "08:00", "14:00")
	cancelled := f.AddShift(t, luca, week, "2025-01-08", "08:00", "14:00")
	require.NoError(t, st.SetShiftStatus(ctx, cancelled.ID, models.ShiftCancelled, "closed"))

	shifts, err := st.EmployeeShifts(ctx, giulia.ID, "2025-01-05", "2025-01-12", "")
	require.NoError(t, err)
	assert.Len(t, shifts, 2)

	shifts, err = st.EmployeeShifts(ctx, giulia.ID, "2025-01-05", "2025-01-12", a.ID)
	require.NoError(t, err)
	assert.Len(t, shifts, 1)

	shifts, err = st.LocationShifts(ctx, f.Location.ID, "2025-01-07", "2025-01-08", "")
	require.NoError(t, err)
	assert.Len(t, shifts, 2)

	counts, err := st.WeekShiftCounts(ctx, f.Org.ID, week)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{giulia.ID: 2, luca.ID: 1}, counts)

	got, err := st.GetShift(ctx, cancelled.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ShiftCancelled, got.Status)
	assert.Equal(t, "closed", got.CancelledReason)

	err = st.SetShiftStatus(ctx, "missing", models.ShiftCancelled, "")
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}

func TestUpsertStaffingRequirement(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)
	st := store.New(f.DB)

	var ids []string
	for _, count := range []int{2, 3} {
		row := &models.StaffingRequirement{
			LocationID:    f.Location.ID,
			RoleID:        f.Role.ID,
			DayOfWeek:     4,
			Period:        models.PeriodEvening,
			RequiredCount: count,
		}
		require.NoError(t, st.UpsertStaffingRequirement(ctx, row))
		assert.Equal(t, count, row.RequiredCount)
		ids = append(ids, row.ID)
	}

	reqs, err := st.StaffingRequirements(ctx, []string{f.Location.ID})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, 3, reqs[0].RequiredCount)
	assert.Equal(t, reqs[0].ID, ids[0])
	assert.Equal(t, ids[0], ids[1], "the update returns the stored row")

	// A zero headcount disables the slot.
	require.NoError(t, st.UpsertStaffingRequirement(ctx, &models.StaffingRequirement{
		LocationID: f.Location.ID,
		RoleID:     f.Role.ID,
		DayOfWeek:  4,
		Period:     models.PeriodEvening,
	}))
	reqs, err = st.StaffingRequirements(ctx, []string{f.Location.ID})
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestWithScheduleLock(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)
	st := store.New(f.DB)
	emp := f.AddEmployee(t, "Giulia", "Rossi", 40)
	sched := f.Schedule(t, week)

	boom := errors.New("boom")
	err := st.WithScheduleLock(ctx, sched.ID, func(tx *store.Store) error {
		require.NoError(t, tx.CreateShift(ctx, &models.Shift{
			ScheduleID:     sched.ID,
			OrganizationID: f.Org.ID,
			LocationID:     f.Location.ID,
			EmployeeID:     emp.ID,
			RoleID:         f.Role.ID,
			Date:           "2025-01-06",
			StartTime:      "08:00",
			EndTime:        "14:00",
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	shifts, err := st.ScheduleShifts(ctx, sched.ID)
	require.NoError(t, err)
	assert.Empty(t, shifts, "rolled back")

	err = st.WithScheduleLock(ctx, "missing", func(*store.Store) error { return nil })
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}

func TestLocationsAreScoped(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)
	st := store.New(f.DB)
	second := f.AddLocation(t, "Bistro")

	locs, err := st.Locations(ctx, f.Org.ID, nil)
	require.NoError(t, err)
	assert.Len(t, locs, 2)

	locs, err = st.Locations(ctx, f.Org.ID, []string{second.ID})
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "Bistro", locs[0].Name)

	locs, err = st.Locations(ctx, "other-org", []string{second.ID})
	require.NoError(t, err)
	assert.Empty(t, locs)
}
