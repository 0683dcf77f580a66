package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arnavshah/rota-engine/pkg/apperror"
	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/arnavshah/rota-engine/pkg/timeutil"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// EnsureSchedule returns the schedule for (organization, week), creating a
// draft when missing.
func (s *Store) EnsureSchedule(ctx context.Context, organizationID, weekStart string) (*models.Schedule, error) {
	sched := models.Schedule{
		OrganizationID: organizationID,
		WeekStartDate:  weekStart,
	}
	err := s.db.WithContext(ctx).
		Where(models.Schedule{OrganizationID: organizationID, WeekStartDate: weekStart}).
		Attrs(models.Schedule{Status: models.ScheduleDraft}).
		FirstOrCreate(&sched).Error
	if err != nil {
		return nil, mapError(err, "schedule")
	}
	return &sched, nil
}

// GetSchedule loads a schedule by id.
func (s *Store) GetSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	var sched models.Schedule
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&sched).Error; err != nil {
		return nil, mapError(err, "schedule")
	}
	return &sched, nil
}

// FindSchedule looks up the schedule of a week without creating it.
func (s *Store) FindSchedule(ctx context.Context, organizationID, weekStart string) (*models.Schedule, error) {
	var sched models.Schedule
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND week_start_date = ?", organizationID, weekStart).
		First(&sched).Error
	if err != nil {
		return nil, mapError(err, "schedule")
	}
	return &sched, nil
}

// PublishSchedule marks a week as published; publishing again after edits
// keeps it published.
func (s *Store) PublishSchedule(ctx context.Context, scheduleID string) (*models.Schedule, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.Schedule{}).
		Where("id = ?", scheduleID).
		Updates(map[string]any{"status": models.SchedulePublished, "published_at": now})
	if res.Error != nil {
		return nil, mapError(res.Error, "schedule")
	}
	if res.RowsAffected == 0 {
		return nil, apperror.NotFound("schedule")
	}
	return s.GetSchedule(ctx, scheduleID)
}

// MarkScheduleModified flags a published week as edited after publication.
func (s *Store) MarkScheduleModified(ctx context.Context, scheduleID string) error {
	err := s.db.WithContext(ctx).Model(&models.Schedule{}).
		Where("id = ? AND status = ?", scheduleID, models.SchedulePublished).
		Update("status", models.ScheduleModifiedAfterPublish).Error
	return mapError(err, "schedule")
}

// GetShift loads a shift by id.
func (s *Store) GetShift(ctx context.Context, id string) (*models.Shift, error) {
	var shift models.Shift
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&shift).Error; err != nil {
		return nil, mapError(err, "shift")
	}
	return &shift, nil
}

// EmployeeShifts lists the employee's active shifts dated within [from, to].
func (s *Store) EmployeeShifts(ctx context.Context, employeeID, from, to, excludeShiftID string) ([]models.Shift, error) {
	q := s.db.WithContext(ctx).
		Where("employee_id = ? AND status = ? AND date >= ? AND date <= ?", employeeID, models.ShiftActive, from, to)
	if excludeShiftID != "" {
		q = q.Where("id <> ?", excludeShiftID)
	}
	var rows []models.Shift
	if err := q.Order("date, start_time").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list employee shifts: %w", err)
	}
	return rows, nil
}

// LocationShifts lists the active shifts at a location dated within [from, to].
func (s *Store) LocationShifts(ctx context.Context, locationID, from, to, excludeShiftID string) ([]models.Shift, error) {
	q := s.db.WithContext(ctx).
		Where("location_id = ? AND status = ? AND date >= ? AND date <= ?", locationID, models.ShiftActive, from, to)
	if excludeShiftID != "" {
		q = q.Where("id <> ?", excludeShiftID)
	}
	var rows []models.Shift
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list location shifts: %w", err)
	}
	return rows, nil
}

// OrganizationShifts lists the organization's active shifts dated within
// [from, to].
func (s *Store) OrganizationShifts(ctx context.Context, organizationID, from, to string) ([]models.Shift, error) {
	var rows []models.Shift
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND status = ? AND date >= ? AND date <= ?", organizationID, models.ShiftActive, from, to).
		Order("date, start_time").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list organization shifts: %w", err)
	}
	return rows, nil
}

// ScheduleShifts lists the active shifts of a schedule.
func (s *Store) ScheduleShifts(ctx context.Context, scheduleID string) ([]models.Shift, error) {
	var rows []models.Shift
	err := s.db.WithContext(ctx).
		Where("schedule_id = ? AND status = ?", scheduleID, models.ShiftActive).
		Order("date, start_time").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list schedule shifts: %w", err)
	}
	return rows, nil
}

// WeekShiftCounts counts active shifts per employee dated inside the week.
func (s *Store) WeekShiftCounts(ctx context.Context, organizationID, weekStart string) (map[string]int, error) {
	type row struct {
		EmployeeID string
		Count      int
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.Shift{}).
		Select("employee_id, count(*) as count").
		Where("organization_id = ? AND status = ? AND date >= ? AND date <= ?",
			organizationID, models.ShiftActive, weekStart, timeutil.AddDays(weekStart, timeutil.DaysPerWeek-1)).
		Group("employee_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count week shifts: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.EmployeeID] = r.Count
	}
	return counts, nil
}

// CreateShift inserts a shift inside its own savepoint so that a failed insert
// does not poison an enclosing transaction.
func (s *Store) CreateShift(ctx context.Context, shift *models.Shift) error {
	if shift.Status == "" {
		shift.Status = models.ShiftActive
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(shift).Error
	})
	return mapError(err, "shift")
}

// UpdateShift persists every field of shift.
func (s *Store) UpdateShift(ctx context.Context, shift *models.Shift) error {
	return mapError(s.db.WithContext(ctx).Save(shift).Error, "shift")
}

// SetShiftStatus moves a shift to status, recording reason when given.
func (s *Store) SetShiftStatus(ctx context.Context, shiftID string, status models.ShiftStatus, reason string) error {
	updates := map[string]any{"status": status}
	if reason != "" {
		updates["cancelled_reason"] = reason
	}
	res := s.db.WithContext(ctx).Model(&models.Shift{}).Where("id = ?", shiftID).Updates(updates)
	if res.Error != nil {
		return mapError(res.Error, "shift")
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("shift")
	}
	return nil
}

func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return apperror.Newf(apperror.CodeConflict, "%s with the same unique attributes already exists", what)
		}
		if pgErr.Code == "23503" {
			return apperror.Newf(apperror.CodeValidation, "%s has an invalid reference", what)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}
