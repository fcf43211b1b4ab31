// Package api is the HTTP surface of the notification service.
package api

import (
	"time"

	"loyalty-notify/internal/common/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type RateLimitSettings struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

type Dependencies struct {
	Notifications NotificationService
	Subscriptions SubscriptionService
	Reports       ReportReader
	Identity      IdentityResolver
	Roles         RoleChecker
	Redis         *redis.Client
	RateLimit     RateLimitSettings
	Health        *HealthHandler
	Logger        logger.Logger
}

// NewRouter builds the gin engine with every route and middleware.
func NewRouter(deps Dependencies) *gin.Engine {
	log := logger.ForComponent(deps.Logger, "http")

	router := gin.New()
	router.Use(gin.Recovery(), CorrelationID(), RequestLogger(log))

	health := deps.Health
	if health == nil {
		health = NewHealthHandler(nil)
	}
	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(Authenticate(deps.Identity))
	if deps.RateLimit.Enabled && deps.Redis != nil {
		v1.Use(RateLimit(deps.Redis, deps.RateLimit.Requests, deps.RateLimit.Window, log))
	}

	notifications := NewNotificationHandler(deps.Notifications, deps.Reports)
	org := v1.Group("/organizations/:orgId")
	org.Use(RequireOrganizationManager(deps.Roles))
	{
		org.POST("/notifications", notifications.Create)
		org.GET("/notifications", notifications.List)
		org.POST("/notifications/dispatch", notifications.Dispatch)
		org.POST("/notifications/moderate", notifications.Moderate)
		org.GET("/notifications/:id", notifications.Get)
		org.PUT("/notifications/:id", notifications.Update)
		org.GET("/notifications/:id/report", notifications.Report)
		org.GET("/notification-quota", notifications.Quota)
	}

	subscriptions := NewSubscriptionHandler(deps.Subscriptions)
	v1.POST("/push-subscriptions", subscriptions.Register)
	v1.DELETE("/push-subscriptions", subscriptions.Unregister)

	return router
}
