package ports

import (
	"context"

	"github.com/pharmaai/backoffice-auth/internal/core/domain"
)

// IdentityProvider is the external identity service the session core
// delegates credential checks and low-level sessions to.
type IdentityProvider interface {
	// CurrentSession returns the active identity session, or nil when there
	// is none.
	CurrentSession(ctx context.Context) (*domain.IdentitySession, error)
	SignInWithPassword(ctx context.Context, email, password string) (*domain.IdentitySession, error)
	SignOut(ctx context.Context) error
	// OnAuthStateChange registers a listener for sign-in/sign-out
	// notifications. The returned func releases the subscription.
	OnAuthStateChange(listener func(domain.AuthEvent)) (unsubscribe func())
}

// Snapshot is the observable state of the authentication state machine.
type Snapshot struct {
	State   domain.AuthState `json:"state"`
	Loading bool             `json:"loading"`
	Session *domain.Session  `json:"session,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// AuthService is the surface the rest of the application consumes.
type AuthService interface {
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context) error
	ForceLogout()
	Reload(ctx context.Context)
	Snapshot() Snapshot
	HasPermission(module domain.Module, action domain.Action, level ...domain.Level) bool
}

// AccessToucher schedules a best-effort "last access" update.
type AccessToucher interface {
	ScheduleTouch(subjectID string)
}
