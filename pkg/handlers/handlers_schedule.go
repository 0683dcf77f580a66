package handlers

import (
	"net/http"

	"github.com/arnavshah/rota-engine/pkg/apperror"
	"github.com/arnavshah/rota-engine/pkg/constraints"
	"github.com/arnavshah/rota-engine/pkg/database"
	"github.com/arnavshah/rota-engine/pkg/events"
	"github.com/arnavshah/rota-engine/pkg/generation"
	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/arnavshah/rota-engine/pkg/timeutil"
	"github.com/gin-gonic/gin"
)

// Generate runs the generation pipeline for a week.
func (h *Handler) Generate(c *gin.Context) {
	var req struct {
		WeekStart   string                `json:"week_start" binding:"required,datetime=2006-01-02"`
		Mode        models.GenerationMode `json:"mode" binding:"omitempty,oneof=full fill_gaps"`
		LocationIDs []string              `json:"location_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Pipeline.Generate(c.Request.Context(), generation.Request{
		OrganizationID: organizationID(c),
		WeekStart:      req.WeekStart,
		Mode:           req.Mode,
		LocationIDs:    req.LocationIDs,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Publish marks a schedule as published.
func (h *Handler) Publish(c *gin.Context) {
	ctx := c.Request.Context()
	org := organizationID(c)

	sched, err := h.Store.GetSchedule(ctx, c.Param("id"))
	if err == nil && sched.OrganizationID != org {
		err = apperror.NotFound("schedule")
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	sched, err = h.Store.PublishSchedule(ctx, sched.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.Events.Dispatch(events.Event{
		Type:           events.SchedulePublished,
		OrganizationID: org,
		ScheduleID:     sched.ID,
		Payload:        gin.H{"week_start": sched.WeekStartDate},
	})
	c.JSON(http.StatusOK, sched)
}

// Coverage compares required and assigned headcount for a week.
func (h *Handler) Coverage(c *gin.Context) {
	ctx := c.Request.Context()
	org := organizationID(c)

	weekStart, err := timeutil.WeekStartOf(c.Query("week_start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "week_start must be a YYYY-MM-DD date"})
		return
	}
	var locationIDs []string
	if id := c.Query("location_id"); id != "" {
		locationIDs = []string{id}
	}

	locations, err := h.Store.Locations(ctx, org, locationIDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	ids := make([]string, 0, len(locations))
	for _, l := range locations {
		ids = append(ids, l.ID)
	}
	reqs, err := h.Store.StaffingRequirements(ctx, ids)
	if err != nil {
		h.fail(c, err)
		return
	}

	var shifts []models.Shift
	sched, err := h.Store.FindSchedule(ctx, org, weekStart)
	switch {
	case err == nil:
		shifts, err = h.Store.ScheduleShifts(ctx, sched.ID)
		if err != nil {
			h.fail(c, err)
			return
		}
	case !apperror.Is(err, apperror.CodeNotFound):
		h.fail(c, err)
		return
	}

	slots := constraints.Coverage(weekStart, reqs, shifts)
	missing := 0
	for _, s := range slots {
		missing += s.Missing()
	}
	c.JSON(http.StatusOK, gin.H{
		"week_start": weekStart,
		"slots":      slots,
		"missing":    missing,
	})
}

// UpsertStaffingRequirement sets the headcount of one slot.
func (h *Handler) UpsertStaffingRequirement(c *gin.Context) {
	var req struct {
		LocationID    string        `json:"location_id" binding:"required"`
		RoleID        string        `json:"role_id" binding:"required"`
		DayOfWeek     *int          `json:"day_of_week" binding:"required,min=0,max=6"`
		Period        models.Period `json:"period" binding:"required,oneof=morning evening"`
		RequiredCount int           `json:"required_count" binding:"min=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	org := organizationID(c)
	if _, err := h.Store.GetLocation(ctx, org, req.LocationID); err != nil {
		h.fail(c, err)
		return
	}
	if _, err := h.Store.GetRole(ctx, org, req.RoleID); err != nil {
		h.fail(c, err)
		return
	}

	row := &models.StaffingRequirement{
		LocationID:    req.LocationID,
		RoleID:        req.RoleID,
		DayOfWeek:     *req.DayOfWeek,
		Period:        req.Period,
		RequiredCount: req.RequiredCount,
	}
	if err := h.Store.UpsertStaffingRequirement(ctx, row); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// GenerateKey creates a new API key for the manager's organization using the
// HMAC strategy
func (h *Handler) GenerateKey(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	org := organizationID(c)
	key := h.Auth.GenerateKey(org)

	var apiKey database.APIKey
	err := h.DB.Where(database.APIKey{Key: key}).
		Assign(map[string]any{"organization_id": org, "name": req.Name, "revoked": false}).
		FirstOrCreate(&apiKey).Error
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name": req.Name,
		"key":  key,
	})
}

// ListKeys returns the organization's API keys
func (h *Handler) ListKeys(c *gin.Context) {
	var keys []database.APIKey
	if err := h.DB.Where("organization_id = ?", organizationID(c)).Find(&keys).Error; err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// RevokeKey disables one of the organization's API keys. Generating a key
// for the organization again re-enables it.
func (h *Handler) RevokeKey(c *gin.Context) {
	res := h.DB.Model(&database.APIKey{}).
		Where("id = ? AND organization_id = ?", c.Param("id"), organizationID(c)).
		Update("revoked", true)
	if res.Error != nil {
		h.fail(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		h.fail(c, apperror.NotFound("api key"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}
