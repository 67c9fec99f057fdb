package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pharmaai/backoffice-auth/internal/core/domain"
	"github.com/pharmaai/backoffice-auth/internal/core/ports"
	"github.com/pharmaai/backoffice-auth/internal/metrics"
)

const (
	DefaultSafetyTimeout    = 8 * time.Second
	DefaultLoginSettleDelay = time.Second

	// storeTimeout bounds cache, sign-out and audit calls made outside a
	// caller's context.
	storeTimeout = 3 * time.Second

	subscriberBuffer = 8
)

// StateMachineConfig tunes the authentication state machine.
type StateMachineConfig struct {
	// SafetyTimeout forces a terminal state when a hydration stays loading
	// this long.
	SafetyTimeout time.Duration
	// LoginSettleDelay is waited between a successful password grant and
	// the hydration it triggers.
	LoginSettleDelay time.Duration
}

// flight is one hydration attempt. done is closed once the attempt has a
// terminal outcome for its generation, or was superseded.
type flight struct {
	gen     uint64
	cancel  context.CancelFunc
	partial *domain.User
	done    chan struct{}
	once    sync.Once
	err     error

	// committing is set once the result is being stored; the safety timer
	// no longer applies.
	committing bool
}

func newFlight() *flight {
	return &flight{done: make(chan struct{})}
}

func (f *flight) finish(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// AuthStateMachine owns the observable authentication state. It reconciles
// hydration results with Identity Provider notifications and explicit
// login/logout calls. Create one per process with NewAuthStateMachine and
// pass it to consumers.
type AuthStateMachine struct {
	idp    ports.IdentityProvider
	loader *SessionLoader
	cache  *SessionCache
	audit  ports.AuditLog
	cfg    StateMachineConfig
	logger zerolog.Logger

	snap atomic.Pointer[ports.Snapshot]

	// cacheMu orders cache I/O. It is never taken while holding mu.
	cacheMu sync.Mutex

	mu          sync.Mutex
	root        context.Context
	cancelRoot  context.CancelFunc
	alive       bool
	mounted     bool
	gen         uint64
	inflight    *flight
	pending     *flight
	safety      *time.Timer
	unsubscribe func()
	subscribers map[int]chan ports.Snapshot
	nextSubID   int
}

var _ ports.AuthService = (*AuthStateMachine)(nil)

// NewAuthStateMachine builds a machine in the unauthenticated state. audit
// may be nil.
func NewAuthStateMachine(idp ports.IdentityProvider, loader *SessionLoader, cache *SessionCache, audit ports.AuditLog, cfg StateMachineConfig, logger zerolog.Logger) *AuthStateMachine {
	if cfg.SafetyTimeout <= 0 {
		cfg.SafetyTimeout = DefaultSafetyTimeout
	}
	if cfg.LoginSettleDelay <= 0 {
		cfg.LoginSettleDelay = DefaultLoginSettleDelay
	}
	root, cancel := context.WithCancel(context.Background())
	m := &AuthStateMachine{
		idp:         idp,
		loader:      loader,
		cache:       cache,
		audit:       audit,
		cfg:         cfg,
		logger:      logger.With().Str("component", "auth_state").Logger(),
		root:        root,
		cancelRoot:  cancel,
		alive:       true,
		subscribers: make(map[int]chan ports.Snapshot),
	}
	m.snap.Store(&ports.Snapshot{State: domain.StateUnauthenticated})
	return m
}

// Mount subscribes to Identity Provider notifications and restores the
// session: from the cache when a fresh entry exists and belongs to the
// current identity session, otherwise by starting a hydration. Calling
// Mount again skips the subscription and re-checks.
func (m *AuthStateMachine) Mount(ctx context.Context) {
	m.mu.Lock()
	if !m.alive {
		m.mu.Unlock()
		return
	}
	subscribe := !m.mounted
	m.mounted = true
	m.mu.Unlock()

	if subscribe {
		unsubscribe := m.idp.OnAuthStateChange(m.onAuthEvent)
		m.mu.Lock()
		if m.alive {
			m.unsubscribe = unsubscribe
			unsubscribe = nil
		}
		m.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
			return
		}
	}

	if entry := m.cache.Read(ctx); entry != nil {
		if m.ownsIdentity(ctx, entry.Session) {
			m.mu.Lock()
			if m.alive && m.inflight == nil {
				m.publish(ports.Snapshot{State: domain.StateAuthenticated, Session: entry.Session})
				m.logger.Info().Str("user_id", entry.Session.User.ID).Msg("session restored from cache")
			}
			m.mu.Unlock()
			return
		}
		m.logger.Warn().Str("user_id", entry.Session.User.ID).Msg("cached session does not match identity session, discarding")
		m.invalidateCache(ctx)
	}

	m.trigger()
}

// ownsIdentity reports whether the Identity Provider currently holds a
// session for the subject the cached session was built for.
func (m *AuthStateMachine) ownsIdentity(ctx context.Context, s *domain.Session) bool {
	ident, err := m.idp.CurrentSession(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("identity check for cached session failed")
		return false
	}
	return ident != nil && ident.SubjectID != "" && ident.SubjectID == s.User.SubjectID
}

// Close stops the machine. Pending timers are stopped, the notification
// subscription is released and callbacks arriving later are ignored.
func (m *AuthStateMachine) Close() {
	m.mu.Lock()
	if !m.alive {
		m.mu.Unlock()
		return
	}
	m.alive = false
	m.supersede(domain.ErrSessionMissing)
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	m.mu.Unlock()

	m.cancelRoot()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Snapshot returns the current observable state.
func (m *AuthStateMachine) Snapshot() ports.Snapshot {
	return *m.snap.Load()
}

// Subscribe returns a channel receiving every published snapshot, starting
// with the current one. Slow subscribers miss intermediate snapshots. The
// returned func releases the subscription.
func (m *AuthStateMachine) Subscribe() (<-chan ports.Snapshot, func()) {
	ch := make(chan ports.Snapshot, subscriberBuffer)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.alive {
		close(ch)
		return ch, func() {}
	}
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = ch
	ch <- m.Snapshot()

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subscribers[id]; ok {
			close(sub)
			delete(m.subscribers, id)
		}
	}
}

// HasPermission evaluates a permission against the current session.
func (m *AuthStateMachine) HasPermission(module domain.Module, action domain.Action, level ...domain.Level) bool {
	snap := m.Snapshot()
	allowed := snap.Session != nil && Evaluate(snap.Session.Permissions, module, action, level...)
	if allowed {
		metrics.PermissionChecksTotal.WithLabelValues("allow").Inc()
	} else {
		metrics.PermissionChecksTotal.WithLabelValues("deny").Inc()
	}
	return allowed
}

// Reload re-runs hydration. It is a no-op while a hydration for the current
// generation is already running.
func (m *AuthStateMachine) Reload(_ context.Context) {
	m.trigger()
}

// Login runs the password grant and then hydrates. A rejected grant returns
// domain.ErrInvalidCredentials and leaves the state untouched. Otherwise the
// hydration result is returned: nil, or one of the hard failures.
func (m *AuthStateMachine) Login(ctx context.Context, email, password string) error {
	m.invalidateCache(ctx)

	ident, err := m.idp.SignInWithPassword(ctx, email, password)
	if err != nil {
		m.logger.Warn().Err(err).Str("email", email).Msg("password sign-in rejected")
		m.recordAudit(domain.AuditEntry{Email: email, Action: domain.AuditLoginFailed, Detail: err.Error()})
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
	}
	m.logger.Info().Str("subject_id", ident.SubjectID).Msg("password sign-in accepted")

	settle := time.NewTimer(m.cfg.LoginSettleDelay)
	select {
	case <-settle.C:
	case <-ctx.Done():
		settle.Stop()
		return ctx.Err()
	}

	f := m.trigger()
	if f == nil {
		return fmt.Errorf("%w: state machine closed", domain.ErrGeneralAuth)
	}
	select {
	case <-f.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if f.err == nil {
		snap := m.Snapshot()
		entry := domain.AuditEntry{Email: email, Action: domain.AuditLogin}
		if snap.Session != nil {
			entry.UserID = snap.Session.User.ID
		}
		m.recordAudit(entry)
	}
	return f.err
}

// Logout signs out and publishes unauthenticated even when the remote
// sign-out fails. The sign-out error is returned for the caller to report.
func (m *AuthStateMachine) Logout(ctx context.Context) error {
	prev := m.Snapshot()

	m.mu.Lock()
	m.supersede(domain.ErrSessionMissing)
	m.mu.Unlock()
	m.invalidateCache(ctx)

	err := m.idp.SignOut(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("remote sign-out failed, clearing local session anyway")
	}
	m.signedOffLocally(ctx, true)

	m.recordAudit(auditFor(prev, domain.AuditLogout))
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// ForceLogout is the emergency logout. It never panics or fails and returns
// once local state is cleared.
func (m *AuthStateMachine) ForceLogout() {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Msg("recovered during force logout")
		}
	}()

	prev := m.Snapshot()

	m.mu.Lock()
	m.supersede(domain.ErrSessionMissing)
	if m.alive {
		m.publish(ports.Snapshot{State: domain.StateUnauthenticated})
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	m.invalidateCache(ctx)
	if err := m.signOutRecovered(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("remote sign-out failed during force logout")
	}
	m.signedOffLocally(ctx, false)
	m.recordAudit(auditFor(prev, domain.AuditForceLogout))
}

// signedOffLocally runs once the remote sign-out returned. A hydration
// triggered meanwhile may have read the identity session before it was
// cleared, so it is superseded and anything it cached is removed. With
// always unset, unauthenticated is only republished when another state
// replaced it.
func (m *AuthStateMachine) signedOffLocally(ctx context.Context, always bool) {
	m.mu.Lock()
	m.supersede(domain.ErrSessionMissing)
	if m.alive && (always || m.Snapshot().State != domain.StateUnauthenticated) {
		m.publish(ports.Snapshot{State: domain.StateUnauthenticated})
	}
	m.mu.Unlock()
	m.invalidateCache(ctx)
}

func (m *AuthStateMachine) signOutRecovered(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: sign-out panicked: %v", domain.ErrGeneralAuth, r)
		}
	}()
	return m.idp.SignOut(ctx)
}

// onAuthEvent handles Identity Provider notifications.
func (m *AuthStateMachine) onAuthEvent(ev domain.AuthEvent) {
	switch ev.Type {
	case domain.EventSignedIn:
		m.logger.Debug().Str("subject_id", ev.SubjectID).Msg("sign-in notification")
		m.trigger()
	case domain.EventSignedOut:
		m.logger.Debug().Str("subject_id", ev.SubjectID).Msg("sign-out notification")
		m.signedOut()
	default:
		m.logger.Debug().Str("event", string(ev.Type)).Msg("ignoring auth event")
	}
}

// signedOut discards any in-flight work and publishes unauthenticated.
// Repeated notifications collapse into one transition.
func (m *AuthStateMachine) signedOut() {
	m.mu.Lock()
	if !m.alive {
		m.mu.Unlock()
		return
	}
	idle := m.inflight == nil || m.inflight.gen != m.gen
	if m.Snapshot().State == domain.StateUnauthenticated && idle && m.pending == nil {
		m.mu.Unlock()
		return
	}
	m.supersede(domain.ErrSessionMissing)
	m.publish(ports.Snapshot{State: domain.StateUnauthenticated})
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	m.invalidateCache(ctx)
}

// trigger starts a hydration, or returns the attempt the caller should wait
// on. A trigger while the current generation is already hydrating joins it;
// a trigger while a superseded attempt is still winding down schedules one
// rerun. Returns nil once the machine is closed.
func (m *AuthStateMachine) trigger() *flight {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.alive {
		return nil
	}
	if m.inflight != nil {
		if m.inflight.gen == m.gen {
			return m.inflight
		}
		if m.pending == nil {
			m.pending = newFlight()
		}
		return m.pending
	}

	f := newFlight()
	m.start(f)
	return f
}

// start launches f for the current generation. m.mu must be held.
func (m *AuthStateMachine) start(f *flight) {
	ctx, cancel := context.WithCancel(m.root)
	f.gen = m.gen
	f.cancel = cancel
	m.inflight = f

	prev := m.Snapshot()
	m.publish(ports.Snapshot{State: domain.StateLoading, Loading: true, Session: prev.Session})

	if m.safety != nil {
		m.safety.Stop()
	}
	m.safety = time.AfterFunc(m.cfg.SafetyTimeout, func() { m.onSafetyTimeout(f) })

	go m.run(ctx, f)
}

func (m *AuthStateMachine) run(ctx context.Context, f *flight) {
	defer f.cancel()

	session, err := m.loader.Load(ctx, func(u *domain.User) {
		m.mu.Lock()
		f.partial = u
		m.mu.Unlock()
	})
	m.commit(f, session, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight == f {
		m.inflight = nil
	}
	if next := m.pending; next != nil && m.alive {
		m.pending = nil
		m.start(next)
	}
}

// commit publishes the outcome of f if f still belongs to the current
// generation. Stale results are dropped, cache included.
//
// Cache I/O runs outside mu so notifications are never held up by a slow
// store. Any path that supersedes f clears the cache under cacheMu after
// bumping the generation, so a write made here is either rejected by the
// second generation check or removed afterwards.
func (m *AuthStateMachine) commit(f *flight, session *domain.Session, err error) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	if !m.current(f) {
		m.logger.Debug().Uint64("generation", f.gen).Err(err).Msg("discarding superseded hydration result")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err == nil {
		m.cache.Write(ctx, session)
	} else {
		m.cache.Invalidate(ctx)
	}

	m.mu.Lock()
	if !m.alive || f.gen != m.gen {
		m.mu.Unlock()
		m.logger.Debug().Uint64("generation", f.gen).Msg("hydration superseded while caching")
		if err == nil {
			m.cache.Invalidate(ctx)
		}
		return
	}
	defer m.mu.Unlock()

	switch {
	case err == nil:
		m.publish(ports.Snapshot{State: domain.StateAuthenticated, Session: session})
	case errors.Is(err, domain.ErrSessionMissing):
		m.publish(ports.Snapshot{State: domain.StateUnauthenticated})
	default:
		m.publish(ports.Snapshot{State: domain.StateError, Error: domain.UserMessage(err)})
	}
	f.finish(err)
}

// current reports whether f still owns the live generation. When it does,
// f is marked as committing and the safety timer is disarmed.
func (m *AuthStateMachine) current(f *flight) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.alive || f.gen != m.gen {
		return false
	}
	f.committing = true
	if m.safety != nil {
		m.safety.Stop()
		m.safety = nil
	}
	return true
}

// invalidateCache clears both cache tiers, ordered with commit's writes.
func (m *AuthStateMachine) invalidateCache(ctx context.Context) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	m.cache.Invalidate(ctx)
}

// onSafetyTimeout ends a hydration that is still loading. A resolved user is
// published with an empty permission set; otherwise the state becomes
// unauthenticated.
func (m *AuthStateMachine) onSafetyTimeout(f *flight) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.alive || m.inflight != f || f.gen != m.gen || f.committing || !m.Snapshot().Loading {
		return
	}
	metrics.SafetyTimeoutsTotal.Inc()

	partial := f.partial
	m.gen++
	f.cancel()
	m.safety = nil

	if partial != nil {
		m.logger.Warn().Str("user_id", partial.ID).Msg("hydration exceeded safety timeout, publishing partial session")
		m.publish(ports.Snapshot{
			State: domain.StateAuthenticated,
			Session: &domain.Session{
				User:        *partial,
				Permissions: []domain.Permission{},
				Dashboard:   RouteDashboard(partial.Profile),
			},
		})
		f.finish(nil)
		return
	}

	m.logger.Warn().Dur("timeout", m.cfg.SafetyTimeout).Msg("hydration exceeded safety timeout")
	m.publish(ports.Snapshot{State: domain.StateUnauthenticated})
	f.finish(fmt.Errorf("%w: hydration exceeded safety timeout", domain.ErrGeneralAuth))
}

// supersede moves to a new generation so that running and scheduled
// hydrations can no longer publish. m.mu must be held.
func (m *AuthStateMachine) supersede(reason error) {
	m.gen++
	if m.safety != nil {
		m.safety.Stop()
		m.safety = nil
	}
	if m.inflight != nil {
		m.inflight.cancel()
		m.inflight.finish(reason)
	}
	if m.pending != nil {
		m.pending.finish(reason)
		m.pending = nil
	}
}

// publish stores s and fans it out to subscribers. m.mu must be held.
func (m *AuthStateMachine) publish(s ports.Snapshot) {
	m.snap.Store(&s)
	metrics.StateTransitionsTotal.WithLabelValues(string(s.State)).Inc()
	m.logger.Debug().Str("state", string(s.State)).Bool("loading", s.Loading).Msg("state published")

	for id, ch := range m.subscribers {
		select {
		case ch <- s:
		default:
			m.logger.Debug().Int("subscriber", id).Msg("subscriber lagging, snapshot dropped")
		}
	}
}

func (m *AuthStateMachine) recordAudit(entry domain.AuditEntry) {
	if m.audit == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.Module = domain.ModuleUsers
	entry.CreatedAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := m.audit.Record(ctx, entry); err != nil {
		m.logger.Warn().Err(err).Str("action", string(entry.Action)).Msg("failed to record audit entry")
	}
}

func auditFor(s ports.Snapshot, action domain.AuditAction) domain.AuditEntry {
	entry := domain.AuditEntry{Action: action}
	if s.Session != nil {
		entry.UserID = s.Session.User.ID
		entry.Email = s.Session.User.Email
	}
	return entry
}
