package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// NewRouter registers every route on a new engine. rateLimit uses the
// limiter format, e.g. "300-M"; empty disables limiting.
func NewRouter(h *Handler, rateLimit string) (*gin.Engine, error) {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := v.RegisterValidation("hhmm", validateHHMM); err != nil {
			return nil, fmt.Errorf("register hhmm validator: %w", err)
		}
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(h.baseLogger()))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Rota Engine API",
			"version": "1.0.0",
		})
	})
	r.POST("/admin/login", h.Login)

	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware())
	{
		admin.POST("/keys", h.GenerateKey)
		admin.GET("/keys", h.ListKeys)
		admin.DELETE("/keys/:id", h.RevokeKey)
	}

	api := r.Group("/api")
	api.Use(h.OrganizationMiddleware())
	if rateLimit != "" {
		rate, err := limiter.NewRateFromFormatted(rateLimit)
		if err != nil {
			return nil, fmt.Errorf("parse rate limit %q: %w", rateLimit, err)
		}
		api.Use(h.RateLimit(limiter.New(memory.NewStore(), rate)))
	}
	{
		api.POST("/shifts/validate", h.ValidateShift)
		api.POST("/shifts", h.CreateShift)
		api.PUT("/shifts/:id", h.UpdateShift)
		api.POST("/shifts/:id/cancel", h.CancelShift)
		api.POST("/shifts/:id/sick-leave", h.SickLeave)
		api.POST("/shifts/:id/replace", h.ReplaceShift)
		api.GET("/shifts/:id/substitutes", h.Substitutes)

		api.POST("/schedules/generate", h.Generate)
		api.POST("/schedules/:id/publish", h.Publish)
		api.GET("/schedules/coverage", h.Coverage)

		api.PUT("/staffing-requirements", h.UpsertStaffingRequirement)
		api.GET("/usage", h.GetMyUsage)
	}

	return r, nil
}
