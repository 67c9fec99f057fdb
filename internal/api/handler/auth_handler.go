package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pharmaai/backoffice-auth/internal/core/domain"
	"github.com/pharmaai/backoffice-auth/internal/core/ports"
)

// AuthHandler exposes the session agent's authentication surface.
type AuthHandler struct {
	auth ports.AuthService
	log  zerolog.Logger
}

func NewAuthHandler(auth ports.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log}
}

// Login signs in with email and password and returns the resulting state.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  ports.Snapshot
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Failure      504   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	}

	if err := h.auth.Login(c.Request().Context(), req.Email, req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.auth.Snapshot())
}

// Logout clears the session. The local session is cleared even when the
// identity provider cannot be reached.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  ports.Snapshot
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.auth.Logout(c.Request().Context()); err != nil {
		h.log.Warn().Err(err).Msg("logout completed with remote error")
	}
	return c.JSON(http.StatusOK, h.auth.Snapshot())
}

// ForceLogout is the emergency logout used when the client suspects the
// session state is corrupted.
//
// @Summary      Force logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  ports.Snapshot
// @Router       /auth/force-logout [post]
func (h *AuthHandler) ForceLogout(c echo.Context) error {
	h.auth.ForceLogout()
	return c.JSON(http.StatusOK, h.auth.Snapshot())
}

// Reload re-runs session hydration in the background.
//
// @Summary      Reload session
// @Tags         auth
// @Produce      json
// @Success      202  {object}  ports.Snapshot
// @Router       /auth/reload [post]
func (h *AuthHandler) Reload(c echo.Context) error {
	h.auth.Reload(c.Request().Context())
	return c.JSON(http.StatusAccepted, h.auth.Snapshot())
}

// Session returns the current authentication state.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  ports.Snapshot
// @Router       /auth/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	return c.JSON(http.StatusOK, h.auth.Snapshot())
}

// CheckPermission evaluates one module/action/level against the session.
//
// @Summary      Check permission
// @Tags         auth
// @Produce      json
// @Param        module  query     string  true   "Module"
// @Param        action  query     string  true   "Action"
// @Param        level   query     string  false  "Level (OWN, TEAM, ALL)"
// @Success      200     {object}  permissionCheckResponse
// @Failure      422     {object}  map[string]string
// @Router       /auth/permissions/check [get]
func (h *AuthHandler) CheckPermission(c echo.Context) error {
	var req permissionCheckRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid query"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	}

	resp := permissionCheckResponse{
		Module: domain.Module(strings.ToLower(req.Module)),
		Action: domain.Action(strings.ToLower(req.Action)),
	}
	if req.Level != "" {
		resp.Level = domain.ParseLevel(req.Level)
		resp.Allowed = h.auth.HasPermission(resp.Module, resp.Action, resp.Level)
	} else {
		resp.Allowed = h.auth.HasPermission(resp.Module, resp.Action)
	}
	return c.JSON(http.StatusOK, resp)
}
