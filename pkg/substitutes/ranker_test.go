package substitutes

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

func newRanker(f *testutil.Fixture) *Ranker {
	return NewRanker(store.New(f.DB), validation.WithClock(func() time.Time {
		return time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	}))
}

func TestRanker_Suggest(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)

	sick := f.AddEmployee(t, "Giuseppe", "Napoli", 40)
	nearby := f.AddEmployee(t, "Anna", "Rossi", 40)
	require.NoError(t, f.DB.Model(&nearby).Update("preferred_location_id", f.Location.ID).Error)
	busy := f.AddEmployee(t, "Luca", "Bianchi", 40)
	keen := f.AddEmployee(t, "Sara", "Verdi", 40)
	require.NoError(t, f.DB.Create(&models.AvailabilityPattern{
		EmployeeID: keen.ID, DayOfWeek: 2, Period: models.PeriodMorning, Status: models.AvailabilityPreferred,
	}).Error)
	away := f.AddEmployee(t, "Marco", "Neri", 40)
	require.NoError(t, f.DB.Create(&models.AvailabilityPattern{
		EmployeeID: away.ID, DayOfWeek: 2, Period: models.PeriodMorning, Status: models.AvailabilityUnavailable,
	}).Error)
	cook := f.AddRole(t, "Cook")
	f.AddEmployee(t, "Paolo", "Gialli", 40, cook.ID)

	f.AddShift(t, busy, week, "2025-01-06", "08:00", "14:00")
	f.AddShift(t, busy, week, "2025-01-07", "08:00", "14:00")
	target := f.AddShift(t, sick, week, "2025-01-08", "08:00", "14:00")

	got, err := newRanker(f).Suggest(ctx, target.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, nearby.ID, got[0].EmployeeID)
	assert.Equal(t, "Anna Rossi", got[0].Name)
	assert.InDelta(t, 67.5, got[0].Score, 0.001)
	assert.True(t, got[0].PreferredLocation)
	assert.InDelta(t, 34, got[0].HoursRemaining, 0.001)

	assert.Equal(t, keen.ID, got[1].EmployeeID)
	assert.InDelta(t, 62.5, got[1].Score, 0.001)
	assert.False(t, got[1].PreferredLocation)

	assert.Equal(t, busy.ID, got[2].EmployeeID)
	assert.InDelta(t, 42.5, got[2].Score, 0.001)
	assert.Equal(t, 2, got[2].ShiftsThisWeek)

	for _, s := range got {
		assert.NotEqual(t, sick.ID, s.EmployeeID, "the assigned employee is never suggested")
		assert.NotEqual(t, away.ID, s.EmployeeID, "unavailable employees are filtered by the validator")
	}

	top, err := newRanker(f).Suggest(ctx, target.ID, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, nearby.ID, top[0].EmployeeID)
}

func TestRanker_TiesPreferFewerShifts(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)

	sick := f.AddEmployee(t, "Giuseppe", "Napoli", 40)
	a := f.AddEmployee(t, "Anna", "Rossi", 40)
	b := f.AddEmployee(t, "Luca", "Bianchi", 40)
	f.AddShift(t, b, week, "2025-01-06", "08:00", "14:00")
	target := f.AddShift(t, sick, week, "2025-01-08", "08:00", "14:00")

	got, err := newRanker(f).Suggest(ctx, target.ID, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].EmployeeID)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestRanker_UnknownShift(t *testing.T) {
	f := testutil.NewFixture(t)
	_, err := newRanker(f).Suggest(context.Background(), "missing", 5)
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}

func TestRanker_EmptyPool(t *testing.T) {
	f := testutil.NewFixture(t)
	sick := f.AddEmployee(t, "Giuseppe", "Napoli", 40)
	target := f.AddShift(t, sick, week, "2025-01-08", "08:00", "14:00")

	got, err := newRanker(f).Suggest(context.Background(), target.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
