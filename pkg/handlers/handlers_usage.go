package handlers

import (
	"net/http"

	"github.com/arnavshah/rota-engine/pkg/database"
	"github.com/gin-gonic/gin"
)

// GetMyUsage returns the generation quota usage of the caller's organization
func (h *Handler) GetMyUsage(c *gin.Context) {
	summary, err := h.Quota.Usage(c.Request.Context(), organizationID(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := gin.H{"generations": summary}
	if raw, ok := c.Get(ctxAPIKey); ok {
		if apiKey, ok := raw.(*database.APIKey); ok {
			resp["key_name"] = apiKey.Name
			resp["last_used"] = apiKey.LastUsed
		}
	}
	c.JSON(http.StatusOK, resp)
}
