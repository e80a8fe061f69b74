package middleware

import (
	"crypto/subtle"

	"github.com/flexprice/mealsub/internal/config"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/gin-gonic/gin"
)

// GuestAuthenticateMiddleware sets the default user for local development
func GuestAuthenticateMiddleware(c *gin.Context) {
	ctx := types.SetUserID(c.Request.Context(), types.DefaultUserID)
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

// UserMiddleware reads the caller id forwarded by the gateway. Outside local
// mode a request without it is rejected.
func UserMiddleware(cfg *config.Configuration, log *logger.Logger) gin.HandlerFunc {
	header := cfg.Auth.UserHeader
	if header == "" {
		header = types.HeaderUserID
	}

	return func(c *gin.Context) {
		userID := c.GetHeader(header)
		if userID == "" {
			if cfg.Deployment.Mode == types.ModeLocal {
				GuestAuthenticateMiddleware(c)
				return
			}
			log.Debugw("request without caller id", "path", c.FullPath())
			c.Error(ierr.NewError("missing caller id").
				WithHintf("The %s header is required", header).
				Mark(ierr.ErrUnauthorized))
			c.Abort()
			return
		}

		ctx := types.SetUserID(c.Request.Context(), userID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AdminMiddleware guards operator routes with a shared key. Without a
// configured key the routes are open only in local mode.
func AdminMiddleware(cfg *config.Configuration, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := cfg.Auth.AdminAPIKey
		if expected == "" && cfg.Deployment.Mode == types.ModeLocal {
			c.Next()
			return
		}

		given := c.GetHeader(types.HeaderAdminKey)
		if expected == "" || subtle.ConstantTimeCompare([]byte(given), []byte(expected)) != 1 {
			log.Warnw("rejected admin request", "path", c.FullPath(), "ip", c.ClientIP())
			c.Error(ierr.NewError("invalid admin key").
				WithHint("Admin access denied").
				Mark(ierr.ErrPermissionDenied))
			c.Abort()
			return
		}
		c.Next()
	}
}
