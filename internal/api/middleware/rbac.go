package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pharmaai/backoffice-auth/internal/api/handler"
	"github.com/pharmaai/backoffice-auth/internal/core/domain"
	"github.com/pharmaai/backoffice-auth/internal/core/service"
	"github.com/pharmaai/backoffice-auth/internal/metrics"
)

// RequirePermission enforces a module/action grant on the session set by
// RequireSession. It must be chained after it.
func RequirePermission(module domain.Module, action domain.Action, level ...domain.Level) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s, _ := c.Get(handler.SessionKey).(*domain.Session)
			if s == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
			}
			if !service.Evaluate(s.Permissions, module, action, level...) {
				metrics.PermissionChecksTotal.WithLabelValues("deny").Inc()
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			metrics.PermissionChecksTotal.WithLabelValues("allow").Inc()
			return next(c)
		}
	}
}
