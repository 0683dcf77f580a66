package handlers

import (
	"net/http"
	"regexp"

	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var hhmmPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// validateHHMM backs the "hhmm" binding tag.
func validateHHMM(fl validator.FieldLevel) bool {
	return hhmmPattern.MatchString(fl.Field().String())
}

// ValidateShift checks a candidate assignment without writing anything.
func (h *Handler) ValidateShift(c *gin.Context) {
	var cand models.Candidate
	if err := c.ShouldBindJSON(&cand); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}
	cand.OrganizationID = organizationID(c)
	ctx := c.Request.Context()

	if _, err := h.employeeOf(ctx, cand.OrganizationID, cand.EmployeeID); err != nil {
		h.fail(c, err)
		return
	}
	conflict, err := h.validator(h.Store).Validate(ctx, cand)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":    conflict == nil,
		"conflict": conflict,
	})
}
