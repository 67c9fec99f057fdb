package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/pharmaai/backoffice-auth/internal/core/domain"
	"github.com/pharmaai/backoffice-auth/internal/core/ports"
	"github.com/pharmaai/backoffice-auth/internal/metrics"
)

const (
	DefaultUserFetchTimeout       = 3 * time.Second
	DefaultPermissionFetchTimeout = 2 * time.Second
)

// LoaderConfig bounds the two dependent remote fetches of a hydration.
type LoaderConfig struct {
	UserTimeout       time.Duration
	PermissionTimeout time.Duration
}

// SessionLoader hydrates a session from the Identity Provider and the user
// directory. At most one hydration runs at a time.
type SessionLoader struct {
	idp     ports.IdentityProvider
	store   ports.DataStore
	toucher ports.AccessToucher
	cfg     LoaderConfig
	loading atomic.Bool
	logger  zerolog.Logger
}

// NewSessionLoader builds a loader. toucher may be nil, in which case no
// last-access update is scheduled.
func NewSessionLoader(idp ports.IdentityProvider, store ports.DataStore, toucher ports.AccessToucher, cfg LoaderConfig, logger zerolog.Logger) *SessionLoader {
	if cfg.UserTimeout <= 0 {
		cfg.UserTimeout = DefaultUserFetchTimeout
	}
	if cfg.PermissionTimeout <= 0 {
		cfg.PermissionTimeout = DefaultPermissionFetchTimeout
	}
	return &SessionLoader{
		idp:     idp,
		store:   store,
		toucher: toucher,
		cfg:     cfg,
		logger:  logger.With().Str("component", "session_loader").Logger(),
	}
}

// Loading reports whether a hydration is in progress.
func (l *SessionLoader) Loading() bool {
	return l.loading.Load()
}

// Load runs one hydration attempt. A call made while another attempt is in
// progress returns domain.ErrHydrationInProgress without touching any
// collaborator. onUser, when non-nil, receives the user record as soon as it
// is resolved and found active, before permissions are fetched.
//
// Errors: domain.ErrSessionMissing when there is no identity session, or one
// of the hard failures (ErrUserFetchTimeout, ErrUserRecordNotFound,
// ErrUserInactive, ErrGeneralAuth). Permission fetch failures never fail the
// attempt.
func (l *SessionLoader) Load(ctx context.Context, onUser func(*domain.User)) (*domain.Session, error) {
	if !l.loading.CompareAndSwap(false, true) {
		metrics.HydrationsTotal.WithLabelValues("busy").Inc()
		return nil, domain.ErrHydrationInProgress
	}
	defer l.loading.Store(false)

	start := time.Now()
	defer func() { metrics.HydrationDuration.Observe(time.Since(start).Seconds()) }()

	session, outcome, err := l.load(ctx, onUser)
	metrics.HydrationsTotal.WithLabelValues(outcome).Inc()
	return session, err
}

func (l *SessionLoader) load(ctx context.Context, onUser func(*domain.User)) (*domain.Session, string, error) {
	ident, err := l.idp.CurrentSession(ctx)
	if err != nil {
		l.logger.Error().Err(err).Msg("identity provider session lookup failed")
		return nil, "error", fmt.Errorf("%w: %v", domain.ErrGeneralAuth, err)
	}
	if ident == nil {
		return nil, "no_session", domain.ErrSessionMissing
	}

	log := l.logger.With().Str("subject_id", ident.SubjectID).Logger()

	user, err := withTimeout(ctx, l.cfg.UserTimeout, func(ctx context.Context) (*domain.User, error) {
		return l.store.FindUserBySubject(ctx, ident.SubjectID)
	})
	switch {
	case err == nil && user == nil:
		log.Warn().Msg("user lookup returned no record")
		return nil, "user_not_found", domain.ErrUserRecordNotFound
	case errors.Is(err, domain.ErrUserRecordNotFound):
		log.Warn().Msg("no user record for identity subject")
		return nil, "user_not_found", domain.ErrUserRecordNotFound
	case isFetchTimeout(ctx, err):
		log.Warn().Dur("timeout", l.cfg.UserTimeout).Msg("user lookup timed out")
		return nil, "user_timeout", domain.ErrUserFetchTimeout
	case err != nil:
		log.Error().Err(err).Msg("user lookup failed")
		return nil, "error", fmt.Errorf("%w: %v", domain.ErrGeneralAuth, err)
	}

	if !user.Active {
		log.Warn().Str("user_id", user.ID).Msg("inactive user refused")
		return nil, "user_inactive", domain.ErrUserInactive
	}
	if onUser != nil {
		onUser(user)
	}

	perms, degraded := l.loadPermissions(ctx, user, log)

	session := &domain.Session{
		User:        *user,
		Permissions: perms,
		Dashboard:   RouteDashboard(user.Profile),
	}

	if l.toucher != nil {
		l.toucher.ScheduleTouch(ident.SubjectID)
	}

	log.Info().
		Str("user_id", user.ID).
		Int("permissions", len(perms)).
		Str("dashboard", string(session.Dashboard)).
		Bool("degraded", degraded).
		Msg("session hydrated")

	if degraded {
		return session, "degraded", nil
	}
	return session, "authenticated", nil
}

// loadPermissions fetches the profile's permission set. Any failure degrades
// to an empty set; the second return value reports whether that happened.
func (l *SessionLoader) loadPermissions(ctx context.Context, user *domain.User, log zerolog.Logger) ([]domain.Permission, bool) {
	if user.ProfileID == "" {
		log.Warn().Msg("user has no profile, using empty permission set")
		return []domain.Permission{}, true
	}

	perms, err := withTimeout(ctx, l.cfg.PermissionTimeout, func(ctx context.Context) ([]domain.Permission, error) {
		return l.store.FindPermissionsByProfile(ctx, user.ProfileID)
	})
	if isFetchTimeout(ctx, err) {
		err = domain.ErrPermissionFetchTimeout
	}
	if err != nil {
		log.Warn().Err(err).Str("profile_id", user.ProfileID).Msg("permission lookup failed, using empty permission set")
		return []domain.Permission{}, true
	}

	if err := domain.ValidatePermissions(perms); err != nil {
		log.Error().Err(err).Str("profile_id", user.ProfileID).Msg("permission set rejected, using empty permission set")
		return []domain.Permission{}, true
	}
	if perms == nil {
		perms = []domain.Permission{}
	}
	return perms, false
}

// withTimeout races fetch against a deadline derived from ctx. It returns as
// soon as the deadline passes even if fetch ignores its context.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := fetch(ctx)
		done <- result{val, err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// isFetchTimeout reports whether err is a per-fetch deadline rather than a
// cancellation of the caller's context.
func isFetchTimeout(parent context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil
}
