package handler

import (
	"context"

	"github.com/pharmaai/backoffice-auth/internal/core/domain"
	"github.com/pharmaai/backoffice-auth/internal/core/ports"
)

type stubAuthService struct {
	snap        ports.Snapshot
	loginFn     func(ctx context.Context, email, password string) error
	logoutErr   error
	forced      bool
	reloads     int
	allow       bool
	checkedWith []domain.Level
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) error {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) Logout(context.Context) error {
	s.snap = ports.Snapshot{State: domain.StateUnauthenticated}
	return s.logoutErr
}

func (s *stubAuthService) ForceLogout() {
	s.forced = true
	s.snap = ports.Snapshot{State: domain.StateUnauthenticated}
}

func (s *stubAuthService) Reload(context.Context) { s.reloads++ }

func (s *stubAuthService) Snapshot() ports.Snapshot { return s.snap }

func (s *stubAuthService) HasPermission(_ domain.Module, _ domain.Action, level ...domain.Level) bool {
	s.checkedWith = level
	return s.allow
}

func pharmacistSession() *domain.Session {
	return &domain.Session{
		User: domain.User{
			ID:        "u-1",
			SubjectID: "sub-1",
			Email:     "ana@pharma.test",
			Name:      "Ana",
			ProfileID: "p-1",
			Profile:   &domain.Profile{ID: "p-1", Name: "Farmacêutico", Type: domain.ProfilePharmacist},
			Active:    true,
		},
		Permissions: []domain.Permission{
			{Module: domain.ModuleReports, Action: domain.ActionRead, Level: domain.LevelAll, Allowed: true},
		},
		Dashboard: domain.DashboardOperational,
	}
}
