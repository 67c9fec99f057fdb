package api

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/pharmaai/backoffice-auth/docs"
	"github.com/pharmaai/backoffice-auth/internal/api/handler"
	"github.com/pharmaai/backoffice-auth/internal/api/middleware"
	"github.com/pharmaai/backoffice-auth/internal/core/domain"
	"github.com/pharmaai/backoffice-auth/internal/core/ports"
	"github.com/pharmaai/backoffice-auth/internal/infrastructure/http/handlers"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Auth   ports.AuthService
	Audit  handler.AuditReader
	Checks map[string]handlers.Check
	Log    zerolog.Logger
}

// NewRouter builds the Echo instance with every route registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())

	authHandler := handler.NewAuthHandler(d.Auth, d.Log)
	requireSession := middleware.RequireSession(d.Auth)

	auth := e.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/force-logout", authHandler.ForceLogout)
	auth.POST("/reload", authHandler.Reload)
	auth.GET("/session", authHandler.Session)
	auth.GET("/permissions/check", authHandler.CheckPermission)

	if d.Audit != nil {
		auditHandler := handler.NewAuditHandler(d.Audit)
		auth.GET("/audit", auditHandler.Recent,
			requireSession,
			middleware.RequirePermission(domain.ModuleUsers, domain.ActionRead),
		)
	}

	e.GET("/dashboard", handler.NewDashboardHandler().Dashboard, requireSession)

	health := handlers.NewHealthHandler(d.Checks, d.Auth.Snapshot)
	e.GET("/health", health.Liveness)
	e.GET("/health/ready", health.Readiness)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
