package domain

import "time"

// AuditAction names an authentication event worth keeping a trail of.
type AuditAction string

const (
	AuditLogin       AuditAction = "login"
	AuditLoginFailed AuditAction = "login_failed"
	AuditLogout      AuditAction = "logout"
	AuditForceLogout AuditAction = "force_logout"
)

// AuditEntry is one record of the authentication audit trail.
type AuditEntry struct {
	ID        string      `json:"id" bson:"_id"`
	UserID    string      `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Email     string      `json:"email,omitempty" bson:"email,omitempty"`
	Action    AuditAction `json:"action" bson:"action"`
	Module    Module      `json:"module" bson:"module"`
	Detail    string      `json:"detail,omitempty" bson:"detail,omitempty"`
	CreatedAt time.Time   `json:"created_at" bson:"created_at"`
}
