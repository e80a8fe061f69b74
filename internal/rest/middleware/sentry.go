package middleware

import (
	"time"

	"github.com/flexprice/mealsub/internal/config"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

// SentryMiddleware opens a sentry transaction per request
func SentryMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	if !cfg.Sentry.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

// SentryScopeMiddleware tags the request hub with the request and caller ids.
// It must run after SentryMiddleware and RequestIDMiddleware.
func SentryScopeMiddleware(c *gin.Context) {
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		hub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetTag("request_id", types.GetRequestID(c.Request.Context()))
			if userID := c.GetHeader(types.HeaderUserID); userID != "" {
				scope.SetUser(sentry.User{ID: userID})
			}
		})
	}
	c.Next()
}
