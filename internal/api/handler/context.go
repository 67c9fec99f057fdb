package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pharmaai/backoffice-auth/internal/core/domain"
)

// SessionKey is the echo context key RequireSession stores the session under.
const SessionKey = "session"

// ctxSession returns the session injected by RequireSession. A missing
// session means the route was registered without the middleware.
func ctxSession(c echo.Context) (*domain.Session, error) {
	s, _ := c.Get(SessionKey).(*domain.Session)
	if s == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	return s, nil
}
