// internal/api/middleware.go
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"loyalty-notify/internal/common/auth"
	"loyalty-notify/internal/common/errors"
	"loyalty-notify/internal/common/logger"
	"loyalty-notify/internal/common/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	HeaderCorrelationID = "X-Correlation-ID"

	ctxCorrelationID = "correlation_id"
	ctxIdentity      = "identity"

	rateLimitKeyPrefix = "notify:ratelimit:"
)

type IdentityResolver interface {
	UserInfo(ctx context.Context, accessToken string) (*auth.Identity, error)
}

type RoleChecker interface {
	CanManageNotifications(ctx context.Context, organizationID, userID string) (bool, error)
}

// CorrelationID propagates or assigns a request id.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderCorrelationID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxCorrelationID, id)
		c.Header(HeaderCorrelationID, id)
		c.Next()
	}
}

// RequestLogger logs one line per request and counts it.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()

		fields := map[string]interface{}{
			"method":        c.Request.Method,
			"route":         route,
			"status":        status,
			"durationMs":    time.Since(start).Milliseconds(),
			"correlationId": c.GetString(ctxCorrelationID),
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.Last().Error()
		}
		if status >= 500 {
			log.Error("request failed", fields)
			return
		}
		log.Info("request handled", fields)
	}
}

// Authenticate resolves the bearer token to an identity.
func Authenticate(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			respondError(c, errors.NewAuthenticationError("authorization header must be a bearer token"))
			return
		}

		identity, err := resolver.UserInfo(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			respondError(c, err)
			return
		}
		c.Set(ctxIdentity, identity)
		c.Next()
	}
}

// RequireOrganizationManager allows only owners and admins of :orgId.
func RequireOrganizationManager(roles RoleChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := identityFrom(c)
		orgID := c.Param("orgId")
		if _, err := uuid.Parse(orgID); err != nil {
			respondError(c, errors.NewValidationError(map[string]string{"orgId": "must be a UUID"}))
			return
		}

		ok, err := roles.CanManageNotifications(c.Request.Context(), orgID, identity.Subject)
		if err != nil {
			respondError(c, err)
			return
		}
		if !ok {
			respondError(c, errors.NewForbiddenError("organizationId: "+orgID))
			return
		}
		c.Next()
	}
}

// RateLimit is a fixed-window limiter per authenticated subject. When Redis
// is unreachable requests are let through.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := identityFrom(c)
		key := rateLimitKeyPrefix + identity.Subject
		ctx := c.Request.Context()

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			log.Warn("rate limiter unavailable", map[string]interface{}{"error": err.Error()})
			c.Next()
			return
		}
		if count == 1 {
			if err := rdb.Expire(ctx, key, window).Err(); err != nil {
				log.Warn("rate limiter expire failed", map[string]interface{}{"error": err.Error()})
			}
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, Envelope{
				Success: false,
				Message: "Rate limit exceeded",
				Code:    "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}

func identityFrom(c *gin.Context) *auth.Identity {
	if v, ok := c.Get(ctxIdentity); ok {
		if identity, ok := v.(*auth.Identity); ok {
			return identity
		}
	}
	return &auth.Identity{}
}
