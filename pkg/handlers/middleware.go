package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/arnavshah/rota-engine/pkg/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"
)

const (
	ctxOrganizationID = "organizationID"
	ctxUsername       = "username"
	ctxAPIKey         = "apiKey"
	ctxLogger         = "logger"
)

func organizationID(c *gin.Context) string {
	return c.GetString(ctxOrganizationID)
}

func bearer(c *gin.Context) string {
	token := c.GetHeader("Authorization")
	// Strip "Bearer " if present
	if len(token) > 7 && strings.EqualFold(token[:7], "Bearer ") {
		token = token[7:]
	}
	return strings.TrimSpace(token)
}

// AuthMiddleware verifies the manager JWT for admin routes
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		claims, err := h.Auth.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		c.Set(ctxOrganizationID, claims.OrganizationID)
		c.Set(ctxUsername, claims.Username)
		c.Next()
	}
}

// OrganizationMiddleware accepts either a manager JWT or an HMAC API key and
// scopes the request to its organization.
func (h *Handler) OrganizationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		// JWTs have three dot-separated parts, API keys two.
		if strings.Count(token, ".") == 2 {
			claims, err := h.Auth.VerifyToken(token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
				return
			}
			c.Set(ctxOrganizationID, claims.OrganizationID)
			c.Set(ctxUsername, claims.Username)
			c.Next()
			return
		}

		org, err := h.Auth.VerifyKey(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API Key signature"})
			return
		}
		apiKey, err := auth.TouchAPIKey(h.DB, token, org)
		if errors.Is(err, auth.ErrRevokedKey) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API Key revoked"})
			return
		}
		if err != nil {
			h.logger(c).Warn("record api key use failed", zap.Error(err))
		} else {
			c.Set(ctxAPIKey, apiKey)
		}
		c.Set(ctxOrganizationID, org)
		c.Next()
	}
}

// RequestLogger injects a request-scoped logger carrying a request id and
// logs every completed request.
func RequestLogger(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		log := base.With(
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		c.Header("X-Request-ID", requestID)
		c.Set(ctxLogger, log)

		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if org := organizationID(c); org != "" {
			fields = append(fields, zap.String("organization_id", org))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("request completed", fields...)
			return
		}
		log.Info("request completed", fields...)
	}
}

func (h *Handler) logger(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(ctxLogger); ok {
		if log, ok := v.(*zap.Logger); ok {
			return log
		}
	}
	return h.baseLogger()
}

func (h *Handler) baseLogger() *zap.Logger {
	if h.Log != nil {
		return h.Log
	}
	return zap.NewNop()
}

// RateLimit limits requests per organization, or per client IP before
// authentication.
func (h *Handler) RateLimit(instance *limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := organizationID(c)
		if key == "" {
			key = c.ClientIP()
		}

		lctx, err := instance.Get(c.Request.Context(), key)
		if err != nil {
			h.logger(c).Error("rate limit check failed", zap.String("key", key), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if lctx.Reached {
			h.logger(c).Warn("rate limit exceeded", zap.String("key", key), zap.Int64("limit", lctx.Limit))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please try again later."})
			return
		}
		c.Next()
	}
}
