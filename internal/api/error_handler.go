package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pharmaai/backoffice-auth/internal/core/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler maps domain errors to status codes and renders them
// as {"error": "<message>"}. Unexpected errors are logged and reported as
// a generic 500.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	switch {
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrSessionMissing):
		return http.StatusUnauthorized, domain.UserMessage(err)
	case errors.Is(err, domain.ErrUserInactive):
		return http.StatusForbidden, domain.UserMessage(err)
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "access forbidden"
	case errors.Is(err, domain.ErrUserRecordNotFound):
		return http.StatusNotFound, domain.UserMessage(err)
	case errors.Is(err, domain.ErrUserFetchTimeout):
		return http.StatusGatewayTimeout, domain.UserMessage(err)
	case errors.Is(err, domain.ErrHydrationInProgress):
		return http.StatusConflict, "session is already loading"
	}

	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
