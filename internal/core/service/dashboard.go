package service

import "github.com/pharmaai/backoffice-auth/internal/core/domain"

// defaultDashboards is the per-type fallback when a profile carries no
// usable default dashboard. CUSTOM profiles have none.
var defaultDashboards = map[domain.ProfileType]domain.DashboardKind{
	domain.ProfileOwner:      domain.DashboardAdministrative,
	domain.ProfilePharmacist: domain.DashboardOperational,
	domain.ProfileAttendant:  domain.DashboardService,
	domain.ProfileCompounder: domain.DashboardProduction,
}

// RouteDashboard resolves the dashboard for a profile. An absent profile
// or unrecognized type routes to the unconfigured view.
func RouteDashboard(profile *domain.Profile) domain.DashboardKind {
	if profile == nil || !profile.Type.Valid() {
		return domain.DashboardUnconfigured
	}
	if profile.DefaultDashboard.Valid() {
		return profile.DefaultDashboard
	}
	if kind, ok := defaultDashboards[profile.Type]; ok {
		return kind
	}
	return domain.DashboardUnconfigured
}

// DashboardView describes what the UI shell renders for a dashboard kind.
type DashboardView struct {
	Kind        domain.DashboardKind `json:"kind"`
	View        string               `json:"view"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
}

// DescribeDashboard maps a dashboard kind to its view. Operational and
// production dashboards reuse the administrative and service-desk views.
func DescribeDashboard(kind domain.DashboardKind) DashboardView {
	switch kind {
	case domain.DashboardAdministrative:
		return DashboardView{kind, "administrative", "Administrative Dashboard", "Full pharmacy overview with access to every module"}
	case domain.DashboardOperational:
		return DashboardView{kind, "administrative", "Operational Dashboard", "Operational and production control"}
	case domain.DashboardService:
		return DashboardView{kind, "service", "Service Desk", "Customer service tools"}
	case domain.DashboardProduction:
		return DashboardView{kind, "service", "Production Dashboard", "Compounding orders and quality control"}
	default:
		return DashboardView{domain.DashboardUnconfigured, "unconfigured", "Dashboard Not Configured", "Your profile has no dashboard configured. Contact the administrator."}
	}
}
