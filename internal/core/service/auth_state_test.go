package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaai/backoffice-auth/internal/core/domain"
	"github.com/pharmaai/backoffice-auth/internal/core/ports"
)

const (
	waitFor = 2 * time.Second
	tick    = 2 * time.Millisecond
)

type machineFixture struct {
	idp     *stubIdP
	store   *stubStore
	primary *memStore
	backup  *memStore
	cache   *SessionCache
	audit   *memAudit
	loader  *SessionLoader
	m       *AuthStateMachine
}

func newMachine(t *testing.T, idp *stubIdP, store *stubStore, lcfg LoaderConfig, mcfg StateMachineConfig) *machineFixture {
	t.Helper()
	if mcfg.LoginSettleDelay == 0 {
		mcfg.LoginSettleDelay = time.Millisecond
	}
	f := &machineFixture{
		idp:     idp,
		store:   store,
		primary: newMemStore(),
		backup:  newMemStore(),
		audit:   &memAudit{},
	}
	f.cache = NewSessionCache(f.primary, f.backup, time.Minute, zerolog.Nop())
	f.loader = NewSessionLoader(idp, store, nil, lcfg, zerolog.Nop())
	f.m = NewAuthStateMachine(idp, f.loader, f.cache, f.audit, mcfg, zerolog.Nop())
	t.Cleanup(f.m.Close)
	return f
}

func (f *machineFixture) waitState(t *testing.T, want domain.AuthState) {
	t.Helper()
	require.Eventually(t, func() bool {
		s := f.m.Snapshot()
		return s.State == want && !s.Loading
	}, waitFor, tick, "state never became %s (last %+v)", want, f.m.Snapshot())
}

func (f *machineFixture) cached() bool {
	return f.primary.has(primaryCacheKey) || f.backup.has(backupCacheKey)
}

func TestAuthStateMachine_InitialState(t *testing.T) {
	f := newMachine(t, newStubIdP(""), newStubStore(nil), LoaderConfig{}, StateMachineConfig{})

	s := f.m.Snapshot()
	assert.Equal(t, domain.StateUnauthenticated, s.State)
	assert.False(t, s.Loading)
	assert.Nil(t, s.Session)
	assert.False(t, f.m.HasPermission(domain.ModuleInventory, domain.ActionRead))
}

func TestAuthStateMachine_MountCacheHitSkipsDataStore(t *testing.T) {
	idp := newStubIdP("sub-1")
	store := newStubStore(activeUser())
	f := newMachine(t, idp, store, LoaderConfig{}, StateMachineConfig{})
	f.cache.Write(context.Background(), testSession())

	f.m.Mount(context.Background())

	s := f.m.Snapshot()
	assert.Equal(t, domain.StateAuthenticated, s.State)
	require.NotNil(t, s.Session)
	assert.Equal(t, "u-1", s.Session.User.ID)
	assert.EqualValues(t, 1, idp.currentCalls.Load())
	assert.Zero(t, store.userCalls.Load())
	assert.Equal(t, 1, idp.listenerCount())
}

func TestAuthStateMachine_CachedSessionOfAnotherAgentIsNotAdopted(t *testing.T) {
	a := newMachine(t, newStubIdP("sub-1"), newStubStore(activeUser(), stockRead(domain.LevelAll)), LoaderConfig{}, StateMachineConfig{})
	a.m.Mount(context.Background())
	a.waitState(t, domain.StateAuthenticated)
	require.True(t, a.cached())

	// agent b shares both cache tiers but holds no identity session
	idpB := newStubIdP("")
	storeB := newStubStore(activeUser(), stockRead(domain.LevelAll))
	cacheB := NewSessionCache(a.primary, a.backup, time.Minute, zerolog.Nop())
	b := NewAuthStateMachine(idpB, NewSessionLoader(idpB, storeB, nil, LoaderConfig{}, zerolog.Nop()), cacheB, nil, StateMachineConfig{}, zerolog.Nop())
	t.Cleanup(b.Close)

	ch, unsubscribe := b.Subscribe()
	defer unsubscribe()

	b.Mount(context.Background())
	require.Eventually(t, func() bool {
		s := b.Snapshot()
		return s.State == domain.StateUnauthenticated && !s.Loading && idpB.currentCalls.Load() >= 2
	}, waitFor, tick)

	assert.False(t, b.HasPermission(domain.ModuleInventory, domain.ActionRead))
	assert.Zero(t, storeB.userCalls.Load())
	for len(ch) > 0 {
		assert.NotEqual(t, domain.StateAuthenticated, (<-ch).State)
	}
}

func TestAuthStateMachine_CachedSessionForOtherSubjectRehydrates(t *testing.T) {
	other := activeUser()
	other.ID, other.SubjectID = "u-2", "sub-2"
	idp := newStubIdP("sub-2")
	store := newStubStore(other, stockRead(domain.LevelAll))
	f := newMachine(t, idp, store, LoaderConfig{}, StateMachineConfig{})
	f.cache.Write(context.Background(), testSession()) // belongs to sub-1

	f.m.Mount(context.Background())
	f.waitState(t, domain.StateAuthenticated)

	assert.Equal(t, "u-2", f.m.Snapshot().Session.User.ID)
	assert.EqualValues(t, 1, store.userCalls.Load())
}

func TestAuthStateMachine_MountCacheMissHydratesAndCaches(t *testing.T) {
	store := newStubStore(activeUser(), stockRead(domain.LevelAll))
	f := newMachine(t, newStubIdP("sub-1"), store, LoaderConfig{}, StateMachineConfig{})

	f.m.Mount(context.Background())
	f.waitState(t, domain.StateAuthenticated)

	assert.True(t, f.m.HasPermission(domain.ModuleInventory, domain.ActionRead, domain.LevelTeam))
	assert.False(t, f.m.HasPermission(domain.ModuleFinance, domain.ActionDelete))
	assert.True(t, f.cached())
	assert.Equal(t, domain.DashboardOperational, f.m.Snapshot().Session.Dashboard)
}

func TestAuthStateMachine_NoSessionIsUnauthenticated(t *testing.T) {
	f := newMachine(t, newStubIdP(""), newStubStore(activeUser()), LoaderConfig{}, StateMachineConfig{})

	f.m.Mount(context.Background())
	f.waitState(t, domain.StateUnauthenticated)
	assert.Empty(t, f.m.Snapshot().Error)
	assert.False(t, f.cached())
}

func TestAuthStateMachine_InactiveUserNeverAuthenticates(t *testing.T) {
	u := activeUser()
	u.Active = false
	f := newMachine(t, newStubIdP("sub-1"), newStubStore(u, stockRead(domain.LevelAll)), LoaderConfig{}, StateMachineConfig{})

	ch, unsubscribe := f.m.Subscribe()
	defer unsubscribe()

	f.m.Mount(context.Background())
	f.waitState(t, domain.StateError)

	assert.Equal(t, "user account is inactive", f.m.Snapshot().Error)
	assert.Nil(t, f.m.Snapshot().Session)
	assert.False(t, f.cached())

	for len(ch) > 0 {
		s := <-ch
		assert.NotEqual(t, domain.StateAuthenticated, s.State)
	}
}

func TestAuthStateMachine_PermissionTimeoutStaysAuthenticated(t *testing.T) {
	store := newStubStore(activeUser(), stockRead(domain.LevelAll))
	store.permBlock = make(chan struct{})
	f := newMachine(t, newStubIdP("sub-1"), store, LoaderConfig{PermissionTimeout: 20 * time.Millisecond}, StateMachineConfig{})

	f.m.Mount(context.Background())
	f.waitState(t, domain.StateAuthenticated)

	s := f.m.Snapshot()
	require.NotNil(t, s.Session)
	assert.Empty(t, s.Session.Permissions)
	assert.Empty(t, s.Error)
}

func TestAuthStateMachine_SafetyTimeoutWithoutResult(t *testing.T) {
	idp := newStubIdP("sub-1")
	idp.block = make(chan struct{})
	f := newMachine(t, idp, newStubStore(activeUser()), LoaderConfig{}, StateMachineConfig{SafetyTimeout: 50 * time.Millisecond})

	start := time.Now()
	f.m.Mount(context.Background())
	assert.True(t, f.m.Snapshot().Loading)

	f.waitState(t, domain.StateUnauthenticated)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAuthStateMachine_SafetyTimeoutPublishesPartialUser(t *testing.T) {
	store := newStubStore(activeUser(), stockRead(domain.LevelAll))
	store.permBlock = make(chan struct{})
	f := newMachine(t, newStubIdP("sub-1"), store,
		LoaderConfig{PermissionTimeout: time.Minute},
		StateMachineConfig{SafetyTimeout: 50 * time.Millisecond})

	f.m.Mount(context.Background())
	f.waitState(t, domain.StateAuthenticated)

	s := f.m.Snapshot()
	require.NotNil(t, s.Session)
	assert.Equal(t, "u-1", s.Session.User.ID)
	assert.Empty(t, s.Session.Permissions)
	assert.False(t, f.cached())
}

func TestAuthStateMachine_SignOutSupersedesInflightHydration(t *testing.T) {
	store := newStubStore(activeUser(), stockRead(domain.LevelAll))
	release := make(chan struct{})
	store.userBlock = release
	f := newMachine(t, newStubIdP("sub-1"), store, LoaderConfig{UserTimeout: time.Minute}, StateMachineConfig{})

	f.m.Mount(context.Background())
	require.Eventually(t, func() bool { return store.userCalls.Load() == 1 }, waitFor, tick)

	f.idp.emit(domain.AuthEvent{Type: domain.EventSignedOut})
	assert.Equal(t, domain.StateUnauthenticated, f.m.Snapshot().State)

	close(release)
	require.Eventually(t, func() bool { return !f.loader.Loading() }, waitFor, tick)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, domain.StateUnauthenticated, f.m.Snapshot().State)
	assert.Nil(t, f.m.Snapshot().Session)
	assert.False(t, f.cached())

	// a success arriving for the superseded generation is dropped
	stale := newFlight()
	f.m.commit(stale, testSession(), nil)
	assert.Equal(t, domain.StateUnauthenticated, f.m.Snapshot().State)
	assert.False(t, f.cached())
}

func TestAuthStateMachine_RepeatedSignOutCollapses(t *testing.T) {
	f := newMachine(t, newStubIdP("sub-1"), newStubStore(activeUser()), LoaderConfig{}, StateMachineConfig{})
	f.m.Mount(context.Background())
	f.waitState(t, domain.StateAuthenticated)

	ch, unsubscribe := f.m.Subscribe()
	defer unsubscribe()
	<-ch // current snapshot

	f.idp.emit(domain.AuthEvent{Type: domain.EventSignedOut})
	f.idp.emit(domain.AuthEvent{Type: domain.EventSignedOut})

	s := <-ch
	assert.Equal(t, domain.StateUnauthenticated, s.State)
	assert.Empty(t, ch)
}

func TestAuthStateMachine_SingleFlightAcrossTriggers(t *testing.T) {
	idp := newStubIdP("sub-1")
	store := newStubStore(activeUser(), stockRead(domain.LevelAll))
	release := make(chan struct{})
	store.userBlock = release
	f := newMachine(t, idp, store, LoaderConfig{UserTimeout: time.Minute}, StateMachineConfig{})

	f.m.Mount(context.Background())
	require.Eventually(t, func() bool { return store.userCalls.Load() == 1 }, waitFor, tick)

	f.m.Reload(context.Background())
	idp.emit(domain.AuthEvent{Type: domain.EventSignedIn, SubjectID: "sub-1"})

	close(release)
	f.waitState(t, domain.StateAuthenticated)

	assert.EqualValues(t, 1, idp.currentCalls.Load())
	assert.EqualValues(t, 1, store.userCalls.Load())
	assert.EqualValues(t, 1, store.permCalls.Load())
}

func TestAuthStateMachine_SignInAfterSignOutReruns(t *testing.T) {
	store := newStubStore(activeUser(), stockRead(domain.LevelAll))
	release := make(chan struct{})
	store.userBlock = release
	f := newMachine(t, newStubIdP("sub-1"), store, LoaderConfig{UserTimeout: time.Minute}, StateMachineConfig{})

	f.m.Mount(context.Background())
	require.Eventually(t, func() bool { return store.userCalls.Load() == 1 }, waitFor, tick)

	f.idp.emit(domain.AuthEvent{Type: domain.EventSignedOut})
	f.idp.emit(domain.AuthEvent{Type: domain.EventSignedIn, SubjectID: "sub-1"})

	store.mu.Lock()
	store.userBlock = nil
	store.mu.Unlock()
	close(release)

	f.waitState(t, domain.StateAuthenticated)
	assert.EqualValues(t, 2, store.userCalls.Load())
}

func TestAuthStateMachine_LoginSuccess(t *testing.T) {
	idp := newStubIdP("")
	f := newMachine(t, idp, newStubStore(activeUser(), stockRead(domain.LevelAll)), LoaderConfig{}, StateMachineConfig{})
	f.m.Mount(context.Background())
	f.waitState(t, domain.StateUnauthenticated)

	err := f.m.Login(context.Background(), "ana@pharmacy.test", "s3cret")
	require.NoError(t, err)

	f.waitState(t, domain.StateAuthenticated)
	assert.True(t, f.cached())
	assert.Contains(t, f.audit.actions(), domain.AuditLogin)
}

func TestAuthStateMachine_LoginInvalidCredentialsLeavesState(t *testing.T) {
	idp := newStubIdP("")
	idp.signInErr = domain.ErrInvalidCredentials
	f := newMachine(t, idp, newStubStore(activeUser()), LoaderConfig{}, StateMachineConfig{})

	before := f.m.Snapshot()
	err := f.m.Login(context.Background(), "ana@pharmacy.test", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Equal(t, before, f.m.Snapshot())
	assert.Equal(t, []domain.AuditAction{domain.AuditLoginFailed}, f.audit.actions())
}

func TestAuthStateMachine_LoginReturnsHardFailure(t *testing.T) {
	u := activeUser()
	u.Active = false
	f := newMachine(t, newStubIdP(""), newStubStore(u), LoaderConfig{}, StateMachineConfig{})

	err := f.m.Login(context.Background(), "ana@pharmacy.test", "s3cret")
	assert.ErrorIs(t, err, domain.ErrUserInactive)
	f.waitState(t, domain.StateError)
}

func TestAuthStateMachine_LogoutSurvivesRemoteFailure(t *testing.T) {
	idp := newStubIdP("sub-1")
	idp.signOutErr = errors.New("network unreachable")
	f := newMachine(t, idp, newStubStore(activeUser()), LoaderConfig{}, StateMachineConfig{})
	f.m.Mount(context.Background())
	f.waitState(t, domain.StateAuthenticated)

	err := f.m.Logout(context.Background())
	assert.Error(t, err)

	assert.Equal(t, domain.StateUnauthenticated, f.m.Snapshot().State)
	assert.False(t, f.cached())
	assert.Contains(t, f.audit.actions(), domain.AuditLogout)
}

func TestAuthStateMachine_ReloadDuringSlowSignOutDoesNotResurrectSession(t *testing.T) {
	idp := newStubIdP("sub-1")
	store := newStubStore(activeUser(), stockRead(domain.LevelAll))
	f := newMachine(t, idp, store, LoaderConfig{UserTimeout: time.Minute}, StateMachineConfig{SafetyTimeout: time.Minute})
	f.m.Mount(context.Background())
	f.waitState(t, domain.StateAuthenticated)

	release := make(chan struct{})
	store.mu.Lock()
	store.userBlock = release
	store.mu.Unlock()

	// a reload lands while the remote sign-out is still in progress and
	// reads the identity session before it is cleared
	idp.beforeSignOut = func() {
		f.m.Reload(context.Background())
		require.Eventually(t, func() bool { return store.userCalls.Load() == 2 }, waitFor, tick)
	}

	require.NoError(t, f.m.Logout(context.Background()))
	assert.Equal(t, domain.StateUnauthenticated, f.m.Snapshot().State)

	close(release)
	require.Eventually(t, func() bool { return !f.loader.Loading() }, waitFor, tick)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, domain.StateUnauthenticated, f.m.Snapshot().State)
	assert.Nil(t, f.m.Snapshot().Session)
	assert.False(t, f.cached())
}

func TestAuthStateMachine_SignOutIsNotHeldUpBySlowCache(t *testing.T) {
	store := newStubStore(activeUser(), stockRead(domain.LevelAll))
	f := newMachine(t, newStubIdP("sub-1"), store, LoaderConfig{}, StateMachineConfig{SafetyTimeout: time.Minute})
	release := make(chan struct{})
	f.primary.setBlock = release

	f.m.Mount(context.Background())
	require.Eventually(t, func() bool { return f.primary.setCalls.Load() == 1 }, waitFor, tick)

	go f.idp.emit(domain.AuthEvent{Type: domain.EventSignedOut})
	require.Eventually(t, func() bool {
		s := f.m.Snapshot()
		return s.State == domain.StateUnauthenticated && !s.Loading
	}, 500*time.Millisecond, tick)

	close(release)
	require.Eventually(t, func() bool { return !f.loader.Loading() }, waitFor, tick)
	require.Eventually(t, func() bool { return !f.cached() }, waitFor, tick)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, domain.StateUnauthenticated, f.m.Snapshot().State)
	assert.False(t, f.cached())
}

func TestAuthStateMachine_ForceLogoutNeverPanics(t *testing.T) {
	idp := newStubIdP("sub-1")
	f := newMachine(t, idp, newStubStore(activeUser()), LoaderConfig{}, StateMachineConfig{})
	f.m.Mount(context.Background())
	f.waitState(t, domain.StateAuthenticated)

	idp.panicOut = true
	assert.NotPanics(t, f.m.ForceLogout)
	assert.Equal(t, domain.StateUnauthenticated, f.m.Snapshot().State)
	assert.EqualValues(t, 1, idp.signOutCalls.Load())
	assert.False(t, f.cached())
}

func TestAuthStateMachine_CloseIgnoresLateCallbacks(t *testing.T) {
	store := newStubStore(activeUser())
	release := make(chan struct{})
	store.userBlock = release
	idp := newStubIdP("sub-1")
	f := newMachine(t, idp, store, LoaderConfig{UserTimeout: time.Minute}, StateMachineConfig{})

	f.m.Mount(context.Background())
	require.Eventually(t, func() bool { return store.userCalls.Load() == 1 }, waitFor, tick)

	f.m.Close()
	close(release)
	require.Eventually(t, func() bool { return !f.loader.Loading() }, waitFor, tick)

	assert.NotEqual(t, domain.StateAuthenticated, f.m.Snapshot().State)
	assert.Zero(t, idp.listenerCount())
	assert.Nil(t, f.m.trigger())
}

func TestAuthStateMachine_SubscribeReceivesTransitions(t *testing.T) {
	f := newMachine(t, newStubIdP("sub-1"), newStubStore(activeUser()), LoaderConfig{}, StateMachineConfig{})
	ch, unsubscribe := f.m.Subscribe()
	defer unsubscribe()

	f.m.Mount(context.Background())

	var states []domain.AuthState
	timeout := time.After(waitFor)
	for len(states) < 3 {
		select {
		case s := <-ch:
			states = append(states, s.State)
		case <-timeout:
			t.Fatalf("timed out, saw %v", states)
		}
	}
	assert.Equal(t, []domain.AuthState{domain.StateUnauthenticated, domain.StateLoading, domain.StateAuthenticated}, states)
}

func TestAuthStateMachine_ImplementsAuthService(t *testing.T) {
	var svc ports.AuthService = newMachine(t, newStubIdP(""), newStubStore(nil), LoaderConfig{}, StateMachineConfig{}).m
	assert.False(t, svc.Snapshot().Loading)
}
