package ports

import (
	"context"
	"time"

	"github.com/pharmaai/backoffice-auth/internal/core/domain"
)

// DataStore is the user directory the session loader hydrates from.
type DataStore interface {
	// FindUserBySubject returns the user record (with its profile) for an
	// identity subject, or domain.ErrUserRecordNotFound.
	FindUserBySubject(ctx context.Context, subjectID string) (*domain.User, error)
	// FindPermissionsByProfile returns the permission set of a profile.
	FindPermissionsByProfile(ctx context.Context, profileID string) ([]domain.Permission, error)
	// TouchLastAccess records the user's last access time.
	TouchLastAccess(ctx context.Context, subjectID string, at time.Time) error
}

// CredentialRepository resolves password-grant credentials.
type CredentialRepository interface {
	FindByEmail(ctx context.Context, email string) (*Credential, error)
}

// Credential is a stored password credential for an identity subject.
type Credential struct {
	SubjectID    string
	Email        string
	PasswordHash string
	Disabled     bool
}

// AuditLog persists the authentication audit trail.
type AuditLog interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
}
