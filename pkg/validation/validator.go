// Package validation decides whether one candidate (employee, shift) pairing
// is legal. Gates run in a fixed order and the first violation is returned.
package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/arnavshah/rota-engine/pkg/apperror"
	"github.com/arnavshah/rota-engine/pkg/constraints"
	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/arnavshah/rota-engine/pkg/timeutil"
)

// Reader is the read side of the store the validator depends on.
type Reader interface {
	GetEmployee(ctx context.Context, id string) (*models.Employee, error)
	WorkRules(ctx context.Context, organizationID string) (models.WorkRules, error)
	EmployeeShifts(ctx context.Context, employeeID, from, to, excludeShiftID string) ([]models.Shift, error)
	LocationShifts(ctx context.Context, locationID, from, to, excludeShiftID string) ([]models.Shift, error)
	AvailabilityPatterns(ctx context.Context, employeeIDs []string) ([]models.AvailabilityPattern, error)
	AvailabilityExceptions(ctx context.Context, employeeIDs []string, from, to string) ([]models.AvailabilityException, error)
	ApprovedTimeOff(ctx context.Context, employeeIDs []string, from, to string) ([]models.TimeOff, error)
	Incompatibilities(ctx context.Context, employeeID string) ([]models.Incompatibility, error)
}

// Validator runs the hard-constraint gates. It never writes.
type Validator struct {
	reader Reader
	now    func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// New returns a Validator reading from reader.
func New(reader Reader, opts ...Option) *Validator {
	v := &Validator{reader: reader, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// candidateCtx is the state shared by the gates of one Validate call.
type candidateCtx struct {
	models.Candidate
	employee *models.Employee
	rules    models.WorkRules
	from, to time.Time
}

type gate func(ctx context.Context, c *candidateCtx) (*models.Conflict, error)

// Validate returns the first violated rule, or nil when the pairing is legal.
// Store failures are returned as errors, never as conflicts.
func (v *Validator) Validate(ctx context.Context, cand models.Candidate) (*models.Conflict, error) {
	if _, err := timeutil.ParseDate(cand.Date); err != nil {
		return nil, apperror.Newf(apperror.CodeValidation, "invalid date %q", cand.Date)
	}
	emp, err := v.reader.GetEmployee(ctx, cand.EmployeeID)
	if err != nil {
		return nil, err
	}
	if cand.OrganizationID == "" {
		cand.OrganizationID = emp.OrganizationID
	}
	if cand.WeekStart == "" {
		cand.WeekStart, _ = timeutil.WeekStartOf(cand.Date)
	}
	rules, err := v.reader.WorkRules(ctx, cand.OrganizationID)
	if err != nil {
		return nil, err
	}
	from, to, _ := timeutil.Interval(cand.Date, cand.StartTime, cand.EndTime)

	c := &candidateCtx{Candidate: cand, employee: emp, rules: rules, from: from, to: to}
	gates := []gate{
		v.checkPastDate,
		v.checkOverlap,
		v.checkAvailability,
		v.checkIncompatibility,
		v.checkRestPeriod,
		v.checkMaxHours,
	}
	for _, g := range gates {
		conflict, err := g(ctx, c)
		if err != nil || conflict != nil {
			return conflict, err
		}
	}
	return nil, nil
}

func (v *Validator) checkPastDate(_ context.Context, c *candidateCtx) (*models.Conflict, error) {
	today := timeutil.Today(v.now(), c.rules.Timezone)
	if c.Date < today {
		return &models.Conflict{
			Type:    models.ConflictPastDate,
			Message: fmt.Sprintf("cannot schedule on %s, which is before today (%s)", c.Date, today),
		}, nil
	}
	return nil, nil
}

func (v *Validator) checkOverlap(ctx context.Context, c *candidateCtx) (*models.Conflict, error) {
	shifts, err := v.reader.EmployeeShifts(ctx, c.EmployeeID,
		timeutil.AddDays(c.Date, -1), timeutil.AddDays(c.Date, 1), c.ExcludeShiftID)
	if err != nil {
		return nil, err
	}
	for _, s := range shifts {
		sFrom, sTo, err := timeutil.Interval(s.Date, s.StartTime, s.EndTime)
		if err != nil {
			continue
		}
		if timeutil.Overlaps(c.from, c.to, sFrom, sTo) {
			return &models.Conflict{
				Type: models.ConflictOverlap,
				Message: fmt.Sprintf("%s already works %s-%s on %s",
					c.employee.FullName(), s.StartTime, s.EndTime, s.Date),
			}, nil
		}
	}
	return nil, nil
}

func (v *Validator) checkAvailability(ctx context.Context, c *candidateCtx) (*models.Conflict, error) {
	ids := []string{c.EmployeeID}
	timeOff, err := v.reader.ApprovedTimeOff(ctx, ids, c.Date, c.Date)
	if err != nil {
		return nil, err
	}
	if len(timeOff) > 0 {
		return &models.Conflict{
			Type:    models.ConflictAvailability,
			Message: fmt.Sprintf("%s has approved time off on %s", c.employee.FullName(), c.Date),
		}, nil
	}
	exceptions, err := v.reader.AvailabilityExceptions(ctx, ids, c.Date, c.Date)
	if err != nil {
		return nil, err
	}
	patterns, err := v.reader.AvailabilityPatterns(ctx, ids)
	if err != nil {
		return nil, err
	}

	period := constraints.PeriodOf(c.StartTime)
	if constraints.EffectiveAvailability(c.Date, period, nil, exceptions, patterns) == models.AvailabilityUnavailable {
		return &models.Conflict{
			Type:    models.ConflictAvailability,
			Message: fmt.Sprintf("%s is not available on %s (%s)", c.employee.FullName(), c.Date, period),
		}, nil
	}
	return nil, nil
}

func (v *Validator) checkIncompatibility(ctx context.Context, c *candidateCtx) (*models.Conflict, error) {
	pairs, err := v.reader.Incompatibilities(ctx, c.EmployeeID)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, nil
	}
	incompatible := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		if other := p.Other(c.EmployeeID); other != "" {
			incompatible[other] = true
		}
	}

	shifts, err := v.reader.LocationShifts(ctx, c.LocationID,
		timeutil.AddDays(c.Date, -1), timeutil.AddDays(c.Date, 1), c.ExcludeShiftID)
	if err != nil {
		return nil, err
	}
	for _, s := range shifts {
		if !incompatible[s.EmployeeID] {
			continue
		}
		sFrom, sTo, err := timeutil.Interval(s.Date, s.StartTime, s.EndTime)
		if err != nil {
			continue
		}
		if timeutil.Overlaps(c.from, c.to, sFrom, sTo) {
			return &models.Conflict{
				Type:    models.ConflictIncompatibility,
				Message: fmt.Sprintf("%s cannot work alongside an incompatible colleague (%s-%s)", c.employee.FullName(), s.StartTime, s.EndTime),
			}, nil
		}
	}
	return nil, nil
}

func (v *Validator) checkRestPeriod(ctx context.Context, c *candidateCtx) (*models.Conflict, error) {
	minRest := time.Duration(c.rules.MinRestHours) * time.Hour
	span := c.rules.MinRestHours/24 + 2
	shifts, err := v.reader.EmployeeShifts(ctx, c.EmployeeID,
		timeutil.AddDays(c.Date, -span), timeutil.AddDays(c.Date, span), c.ExcludeShiftID)
	if err != nil {
		return nil, err
	}

	var prevEnd, nextStart time.Time
	for _, s := range shifts {
		sFrom, sTo, err := timeutil.Interval(s.Date, s.StartTime, s.EndTime)
		if err != nil {
			continue
		}
		if !sTo.After(c.from) && (prevEnd.IsZero() || sTo.After(prevEnd)) {
			prevEnd = sTo
		}
		if !sFrom.Before(c.to) && (nextStart.IsZero() || sFrom.Before(nextStart)) {
			nextStart = sFrom
		}
	}

	if !prevEnd.IsZero() {
		if gap := c.from.Sub(prevEnd); gap < minRest {
			return restConflict(c, gap, "previous"), nil
		}
	}
	if !nextStart.IsZero() {
		if gap := nextStart.Sub(c.to); gap < minRest {
			return restConflict(c, gap, "next"), nil
		}
	}
	return nil, nil
}

func restConflict(c *candidateCtx, gap time.Duration, side string) *models.Conflict {
	return &models.Conflict{
		Type: models.ConflictRestPeriod,
		Message: fmt.Sprintf("only %.1fh of rest between this and the %s shift of %s (minimum %dh)",
			gap.Hours(), side, c.employee.FullName(), c.rules.MinRestHours),
	}
}

func (v *Validator) checkMaxHours(ctx context.Context, c *candidateCtx) (*models.Conflict, error) {
	shifts, err := v.reader.EmployeeShifts(ctx, c.EmployeeID,
		timeutil.AddDays(c.WeekStart, -1), timeutil.AddDays(c.WeekStart, timeutil.DaysPerWeek-1), c.ExcludeShiftID)
	if err != nil {
		return nil, err
	}
	total := timeutil.MinutesInWeek(c.Date, c.StartTime, c.EndTime, c.WeekStart)
	for _, s := range shifts {
		total += timeutil.MinutesInWeek(s.Date, s.StartTime, s.EndTime, c.WeekStart)
	}
	limit := c.employee.MaxWeeklyHours * 60
	if total > limit {
		return &models.Conflict{
			Type: models.ConflictMaxHours,
			Message: fmt.Sprintf("%s would work %.1fh in the week of %s (maximum %dh)",
				c.employee.FullName(), float64(total)/60, c.WeekStart, c.employee.MaxWeeklyHours),
		}, nil
	}
	return nil, nil
}
