package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pharmaai/backoffice-auth/internal/core/domain"
	"github.com/pharmaai/backoffice-auth/internal/core/service"
)

// DashboardHandler resolves the landing dashboard of the signed-in user.
type DashboardHandler struct{}

func NewDashboardHandler() *DashboardHandler {
	return &DashboardHandler{}
}

type capabilities struct {
	IsOwner               bool `json:"is_owner"`
	IsPharmacist          bool `json:"is_pharmacist"`
	IsAttendant           bool `json:"is_attendant"`
	IsCompounder          bool `json:"is_compounder"`
	CanAccessFinance      bool `json:"can_access_finance"`
	CanManageUsers        bool `json:"can_manage_users"`
	CanApproveCompounding bool `json:"can_approve_compounding"`
	CanViewReports        bool `json:"can_view_reports"`
	CanExportData         bool `json:"can_export_data"`
	CanEditSettings       bool `json:"can_edit_settings"`
}

type dashboardResponse struct {
	service.DashboardView
	UserName     string       `json:"user_name"`
	ProfileName  string       `json:"profile_name,omitempty"`
	Capabilities capabilities `json:"capabilities"`
}

// Dashboard returns the routed dashboard view.
//
// @Summary      Landing dashboard
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  dashboardResponse
// @Failure      401  {object}  map[string]string
// @Router       /dashboard [get]
func (h *DashboardHandler) Dashboard(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}

	resp := dashboardResponse{
		DashboardView: service.DescribeDashboard(s.Dashboard),
		UserName:      s.User.Name,
		Capabilities:  capabilitiesOf(s),
	}
	if s.User.Profile != nil {
		resp.ProfileName = s.User.Profile.Name
	}
	return c.JSON(http.StatusOK, resp)
}

func capabilitiesOf(s *domain.Session) capabilities {
	return capabilities{
		IsOwner:               service.IsOwner(s),
		IsPharmacist:          service.IsPharmacist(s),
		IsAttendant:           service.IsAttendant(s),
		IsCompounder:          service.IsCompounder(s),
		CanAccessFinance:      service.CanAccessFinance(s.Permissions),
		CanManageUsers:        service.CanManageUsers(s.Permissions),
		CanApproveCompounding: service.CanApproveCompounding(s.Permissions),
		CanViewReports:        service.CanViewReports(s.Permissions),
		CanExportData:         service.CanExportData(s.Permissions),
		CanEditSettings:       service.CanEditSettings(s.Permissions),
	}
}
