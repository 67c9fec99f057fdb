package domain

import "time"

// DashboardKind identifies the landing dashboard for a profile.
type DashboardKind string

const (
	DashboardAdministrative DashboardKind = "administrativo"
	DashboardOperational    DashboardKind = "operacional"
	DashboardService        DashboardKind = "atendimento"
	DashboardProduction     DashboardKind = "producao"

	// DashboardUnconfigured is the terminal view shown when no dashboard
	// can be resolved for a profile.
	DashboardUnconfigured DashboardKind = "unconfigured"
)

// Valid reports whether k is a routable dashboard (unconfigured excluded).
func (k DashboardKind) Valid() bool {
	switch k {
	case DashboardAdministrative, DashboardOperational, DashboardService, DashboardProduction:
		return true
	}
	return false
}

// Session is an immutable snapshot of an authenticated user. It is replaced
// wholesale on every hydration and never mutated in place.
type Session struct {
	User        User          `json:"user"`
	Permissions []Permission  `json:"permissions"`
	Dashboard   DashboardKind `json:"dashboard"`
}

// CacheEntry is the persisted form of a session.
// Timestamp is in Unix milliseconds.
type CacheEntry struct {
	Session   *Session `json:"session"`
	Timestamp int64    `json:"timestamp"`
	Valid     bool     `json:"valid"`
}

// WrittenAt returns the entry timestamp as a time.Time.
func (e *CacheEntry) WrittenAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// AuthState is the externally observable authentication state.
type AuthState string

const (
	StateUnauthenticated AuthState = "unauthenticated"
	StateLoading         AuthState = "loading"
	StateAuthenticated   AuthState = "authenticated"
	StateError           AuthState = "error"
)

// IdentitySession is the low-level session held by the Identity Provider.
type IdentitySession struct {
	SubjectID string
	Email     string
	ExpiresAt time.Time
}

// AuthEventType is a notification pushed by the Identity Provider.
type AuthEventType string

const (
	EventSignedIn  AuthEventType = "SIGNED_IN"
	EventSignedOut AuthEventType = "SIGNED_OUT"
)

// AuthEvent carries an Identity Provider notification. SubjectID is empty
// when the provider does not report one.
type AuthEvent struct {
	Type      AuthEventType
	SubjectID string
}
