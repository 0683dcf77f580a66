package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/arnavshah/rota-engine/pkg/apperror"
	"github.com/arnavshah/rota-engine/pkg/auth"
	"github.com/arnavshah/rota-engine/pkg/constraints"
	"github.com/arnavshah/rota-engine/pkg/events"
	"github.com/arnavshah/rota-engine/pkg/generation"
	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/arnavshah/rota-engine/pkg/quota"
	"github.com/arnavshah/rota-engine/pkg/store"
	"github.com/arnavshah/rota-engine/pkg/substitutes"
	"github.com/arnavshah/rota-engine/pkg/timeutil"
	"github.com/arnavshah/rota-engine/pkg/validation"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler contains dependencies for the route handlers
type Handler struct {
	DB               *gorm.DB
	Store            *store.Store
	Auth             *auth.Authenticator
	Pipeline         *generation.Pipeline
	Ranker           *substitutes.Ranker
	Quota            *quota.Gate
	Events           *events.Dispatcher
	Log              *zap.Logger
	ValidatorOptions []validation.Option
}

type shiftInput struct {
	EmployeeID   string `json:"employee_id" binding:"required"`
	LocationID   string `json:"location_id" binding:"required"`
	RoleID       string `json:"role_id" binding:"required"`
	Date         string `json:"date" binding:"required,datetime=2006-01-02"`
	StartTime    string `json:"start_time" binding:"required,hhmm"`
	EndTime      string `json:"end_time" binding:"required,hhmm"`
	BreakMinutes int    `json:"break_minutes" binding:"min=0"`
	Notes        string `json:"notes"`
	// Force skips validation. Only managers may override a conflict.
	Force bool `json:"force"`
}

func (h *Handler) validator(s *store.Store) *validation.Validator {
	return validation.New(s, h.ValidatorOptions...)
}

// CreateShift adds a manual shift.
func (h *Handler) CreateShift(c *gin.Context) {
	var in shiftInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	org := organizationID(c)

	if err := h.checkScope(ctx, org, in); err != nil {
		h.fail(c, err)
		return
	}
	weekStart, _ := timeutil.WeekStartOf(in.Date)
	sched, err := h.Store.EnsureSchedule(ctx, org, weekStart)
	if err != nil {
		h.fail(c, err)
		return
	}
	period, err := h.periodOf(ctx, org, in)
	if err != nil {
		h.fail(c, err)
		return
	}

	shift := &models.Shift{
		ScheduleID:     sched.ID,
		OrganizationID: org,
		LocationID:     in.LocationID,
		EmployeeID:     in.EmployeeID,
		RoleID:         in.RoleID,
		Date:           in.Date,
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		Period:         period,
		BreakMinutes:   in.BreakMinutes,
		Notes:          in.Notes,
		Status:         models.ShiftActive,
	}
	var conflict *models.Conflict
	err = h.Store.WithScheduleLock(ctx, sched.ID, func(tx *store.Store) error {
		if in.Force {
			h.logger(c).Info("shift created with validation override", zap.String("employee_id", in.EmployeeID), zap.String("date", in.Date))
		} else {
			conflict, err = h.validator(tx).Validate(ctx, candidateOf(shift, weekStart))
			if err != nil || conflict != nil {
				return err
			}
		}
		if err := tx.CreateShift(ctx, shift); err != nil {
			return err
		}
		return tx.MarkScheduleModified(ctx, sched.ID)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if conflict != nil {
		c.JSON(http.StatusConflict, gin.H{"conflict": conflict})
		return
	}
	c.JSON(http.StatusCreated, shift)
}

// UpdateShift edits a shift, validating it against everything but itself.
func (h *Handler) UpdateShift(c *gin.Context) {
	var in shiftInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	org := organizationID(c)

	shift, err := h.shiftOf(ctx, org, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.checkScope(ctx, org, in); err != nil {
		h.fail(c, err)
		return
	}
	weekStart, _ := timeutil.WeekStartOf(in.Date)
	sched, err := h.Store.EnsureSchedule(ctx, org, weekStart)
	if err != nil {
		h.fail(c, err)
		return
	}
	period, err := h.periodOf(ctx, org, in)
	if err != nil {
		h.fail(c, err)
		return
	}

	shift.ScheduleID = sched.ID
	shift.LocationID = in.LocationID
	shift.EmployeeID = in.EmployeeID
	shift.RoleID = in.RoleID
	shift.Date = in.Date
	shift.StartTime = in.StartTime
	shift.EndTime = in.EndTime
	shift.Period = period
	shift.BreakMinutes = in.BreakMinutes
	shift.Notes = in.Notes

	var conflict *models.Conflict
	err = h.Store.WithScheduleLock(ctx, sched.ID, func(tx *store.Store) error {
		if in.Force {
			h.logger(c).Info("shift updated with validation override", zap.String("shift_id", shift.ID))
		} else {
			cand := candidateOf(shift, weekStart)
			cand.ExcludeShiftID = shift.ID
			conflict, err = h.validator(tx).Validate(ctx, cand)
			if err != nil || conflict != nil {
				return err
			}
		}
		if err := tx.UpdateShift(ctx, shift); err != nil {
			return err
		}
		return tx.MarkScheduleModified(ctx, sched.ID)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if conflict != nil {
		c.JSON(http.StatusConflict, gin.H{"conflict": conflict})
		return
	}
	c.JSON(http.StatusOK, shift)
}

// CancelShift marks a shift cancelled. Shifts are never deleted.
func (h *Handler) CancelShift(c *gin.Context) {
	h.changeStatus(c, models.ShiftCancelled)
}

// SickLeave takes the employee off a shift and returns substitute suggestions.
func (h *Handler) SickLeave(c *gin.Context) {
	shift := h.changeStatus(c, models.ShiftSickLeave)
	if shift == nil {
		return
	}
	h.Events.Dispatch(events.Event{
		Type:           events.ShiftSickLeave,
		OrganizationID: shift.OrganizationID,
		ScheduleID:     shift.ScheduleID,
		ShiftID:        shift.ID,
		Payload:        gin.H{"employee_id": shift.EmployeeID, "date": shift.Date},
	})
}

func (h *Handler) changeStatus(c *gin.Context, status models.ShiftStatus) *models.Shift {
	var req struct {
		Reason string `json:"reason"`
	}
	// An empty body is fine.
	_ = c.ShouldBindJSON(&req)

	ctx := c.Request.Context()
	shift, err := h.shiftOf(ctx, organizationID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return nil
	}
	err = h.Store.WithScheduleLock(ctx, shift.ScheduleID, func(tx *store.Store) error {
		if err := tx.SetShiftStatus(ctx, shift.ID, status, req.Reason); err != nil {
			return err
		}
		return tx.MarkScheduleModified(ctx, shift.ScheduleID)
	})
	if err != nil {
		h.fail(c, err)
		return nil
	}
	shift.Status = status
	if req.Reason != "" {
		shift.CancelledReason = req.Reason
	}

	resp := gin.H{"shift": shift}
	if status == models.ShiftSickLeave {
		suggestions, err := h.Ranker.Suggest(ctx, shift.ID, substitutes.DefaultLimit)
		if err != nil {
			h.logger(c).Warn("substitute suggestions failed", zap.String("shift_id", shift.ID), zap.Error(err))
		} else {
			resp["suggestions"] = suggestions
		}
	}
	c.JSON(http.StatusOK, resp)
	return shift
}

// ReplaceShift reassigns a shift to another employee.
func (h *Handler) ReplaceShift(c *gin.Context) {
	var req struct {
		EmployeeID string `json:"employee_id" binding:"required"`
		Force      bool   `json:"force"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	org := organizationID(c)

	shift, err := h.shiftOf(ctx, org, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if _, err := h.employeeOf(ctx, org, req.EmployeeID); err != nil {
		h.fail(c, err)
		return
	}
	weekStart, err := h.weekOf(ctx, shift)
	if err != nil {
		h.fail(c, err)
		return
	}

	previous := shift.EmployeeID
	shift.EmployeeID = req.EmployeeID
	shift.Status = models.ShiftActive

	var conflict *models.Conflict
	err = h.Store.WithScheduleLock(ctx, shift.ScheduleID, func(tx *store.Store) error {
		if req.Force {
			h.logger(c).Info("shift replaced with validation override", zap.String("shift_id", shift.ID))
		} else {
			cand := candidateOf(shift, weekStart)
			cand.ExcludeShiftID = shift.ID
			conflict, err = h.validator(tx).Validate(ctx, cand)
			if err != nil || conflict != nil {
				return err
			}
		}
		if err := tx.UpdateShift(ctx, shift); err != nil {
			return err
		}
		return tx.MarkScheduleModified(ctx, shift.ScheduleID)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if conflict != nil {
		c.JSON(http.StatusConflict, gin.H{"conflict": conflict})
		return
	}

	h.Events.Dispatch(events.Event{
		Type:           events.ShiftReplaced,
		OrganizationID: org,
		ScheduleID:     shift.ScheduleID,
		ShiftID:        shift.ID,
		Payload:        gin.H{"previous_employee_id": previous, "employee_id": shift.EmployeeID, "date": shift.Date},
	})
	c.JSON(http.StatusOK, shift)
}

// Substitutes lists ranked replacement candidates for a shift.
func (h *Handler) Substitutes(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(substitutes.DefaultLimit)))
	ctx := c.Request.Context()

	shift, err := h.shiftOf(ctx, organizationID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	suggestions, err := h.Ranker.Suggest(ctx, shift.ID, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// Login handles manager login
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	manager, err := auth.Login(h.DB, req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.Auth.CreateToken(manager.OrganizationID, manager.Username)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

func candidateOf(s *models.Shift, weekStart string) models.Candidate {
	return models.Candidate{
		EmployeeID:     s.EmployeeID,
		OrganizationID: s.OrganizationID,
		ScheduleID:     s.ScheduleID,
		LocationID:     s.LocationID,
		RoleID:         s.RoleID,
		Date:           s.Date,
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
		WeekStart:      weekStart,
	}
}

// shiftOf loads a shift, hiding shifts of other organizations.
func (h *Handler) shiftOf(ctx context.Context, org, id string) (*models.Shift, error) {
	shift, err := h.Store.GetShift(ctx, id)
	if err != nil {
		return nil, err
	}
	if shift.OrganizationID != org {
		return nil, apperror.NotFound("shift")
	}
	return shift, nil
}

func (h *Handler) employeeOf(ctx context.Context, org, id string) (*models.Employee, error) {
	emp, err := h.Store.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if emp.OrganizationID != org {
		return nil, apperror.NotFound("employee")
	}
	return emp, nil
}

// checkScope rejects employees, locations and roles of other organizations.
func (h *Handler) checkScope(ctx context.Context, org string, in shiftInput) error {
	if _, err := h.employeeOf(ctx, org, in.EmployeeID); err != nil {
		return err
	}
	if _, err := h.Store.GetLocation(ctx, org, in.LocationID); err != nil {
		return err
	}
	_, err := h.Store.GetRole(ctx, org, in.RoleID)
	return err
}

// periodOf classifies a manual shift against the organization's period
// windows, role overrides included.
func (h *Handler) periodOf(ctx context.Context, org string, in shiftInput) (models.Period, error) {
	overrides, err := h.Store.RoleShiftTimes(ctx, org)
	if err != nil {
		return "", err
	}
	return constraints.NewShiftWindows(overrides).Classify(in.LocationID, in.RoleID, in.Date, in.StartTime), nil
}

func (h *Handler) weekOf(ctx context.Context, shift *models.Shift) (string, error) {
	sched, err := h.Store.GetSchedule(ctx, shift.ScheduleID)
	if err == nil {
		return sched.WeekStartDate, nil
	}
	return timeutil.WeekStartOf(shift.Date)
}

// fail writes err with the status of its code. Internal errors are logged and
// hidden.
func (h *Handler) fail(c *gin.Context, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		h.logger(c).Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Code {
	case apperror.CodeValidation:
		status = http.StatusBadRequest
	case apperror.CodeNotFound:
		status = http.StatusNotFound
	case apperror.CodeConflict:
		status = http.StatusConflict
	case apperror.CodePrecondition:
		status = http.StatusPreconditionFailed
	case apperror.CodeInfeasible:
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": appErr.Message, "code": appErr.Code})
}
