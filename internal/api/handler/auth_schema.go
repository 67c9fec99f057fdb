package handler

import "github.com/pharmaai/backoffice-auth/internal/core/domain"

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type permissionCheckRequest struct {
	Module string `query:"module" validate:"required"`
	Action string `query:"action" validate:"required"`
	Level  string `query:"level"  validate:"omitempty,oneof=OWN TEAM ALL own team all"`
}

type permissionCheckResponse struct {
	Module  domain.Module `json:"module"`
	Action  domain.Action `json:"action"`
	Level   domain.Level  `json:"level,omitempty"`
	Allowed bool          `json:"allowed"`
}

type auditQuery struct {
	UserID string `query:"user_id"`
	Limit  int64  `query:"limit" validate:"omitempty,min=1,max=100"`
}
