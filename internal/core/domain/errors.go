package domain

import "errors"

// ErrSessionMissing means the Identity Provider holds no session. It is a
// valid terminal outcome, not a failure.
var ErrSessionMissing = errors.New("no identity session")

// Hard hydration failures: they end the attempt without a session.
var (
	ErrUserRecordNotFound = errors.New("user record not found")
	ErrUserInactive       = errors.New("user is inactive")
	ErrUserFetchTimeout   = errors.New("timed out fetching user record")
	ErrGeneralAuth        = errors.New("unexpected authentication error")
)

// ErrPermissionFetchTimeout is soft: the session degrades to an empty
// permission set instead of failing.
var ErrPermissionFetchTimeout = errors.New("timed out fetching permissions")

// ErrCacheCorrupted is logged and self-healed, never returned to callers.
var ErrCacheCorrupted = errors.New("session cache payload corrupted")

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrHydrationInProgress = errors.New("session hydration already in progress")
	ErrDuplicatePermission = errors.New("duplicate permission for module/action")
	ErrCacheMiss           = errors.New("cache miss")
	ErrForbidden           = errors.New("access forbidden")
)

// UserMessage returns the message shown to the user for a hydration or
// login failure. Unknown errors get the generic message.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSessionMissing):
		return "not signed in"
	case errors.Is(err, ErrUserFetchTimeout):
		return "timed out loading user"
	case errors.Is(err, ErrUserRecordNotFound):
		return "user not found"
	case errors.Is(err, ErrUserInactive):
		return "user account is inactive"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid credentials"
	default:
		return "failed to load user"
	}
}

// IsHardFailure reports whether err ends a hydration without a session.
func IsHardFailure(err error) bool {
	return errors.Is(err, ErrUserRecordNotFound) ||
		errors.Is(err, ErrUserInactive) ||
		errors.Is(err, ErrUserFetchTimeout) ||
		errors.Is(err, ErrGeneralAuth)
}
