package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pharmaai/backoffice-auth/internal/api/handler"
	"github.com/pharmaai/backoffice-auth/internal/core/domain"
	"github.com/pharmaai/backoffice-auth/internal/core/ports"
)

// SessionSource is the slice of ports.AuthService the middleware reads.
type SessionSource interface {
	Snapshot() ports.Snapshot
}

// RequireSession lets the request through only while the agent holds an
// authenticated session, and injects that session into the context.
// Requests made while hydration is running get 503 so clients retry.
func RequireSession(auth SessionSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			snap := auth.Snapshot()
			switch {
			case snap.State == domain.StateAuthenticated && snap.Session != nil:
				c.Set(handler.SessionKey, snap.Session)
				return next(c)
			case snap.Loading:
				c.Response().Header().Set("Retry-After", "1")
				return echo.NewHTTPError(http.StatusServiceUnavailable, "session is loading")
			default:
				return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
			}
		}
	}
}
