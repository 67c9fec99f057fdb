package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pharmaai/backoffice-auth/internal/core/domain"
)

// ---------------------------------------------------------------------------
// Identity provider stub
// ---------------------------------------------------------------------------

type stubIdP struct {
	mu         sync.Mutex
	session    *domain.IdentitySession
	sessionErr error
	block      chan struct{} // CurrentSession waits on it (or ctx) when set
	signInErr  error
	signOutErr error
	panicOut   bool
	listeners  map[int]func(domain.AuthEvent)
	nextID     int

	// beforeSignOut runs at the start of SignOut, while the session is
	// still held.
	beforeSignOut func()

	currentCalls atomic.Int32
	signOutCalls atomic.Int32
}

func newStubIdP(subject string) *stubIdP {
	idp := &stubIdP{listeners: make(map[int]func(domain.AuthEvent))}
	if subject != "" {
		idp.session = &domain.IdentitySession{SubjectID: subject, Email: subject + "@pharmacy.test"}
	}
	return idp
}

func (p *stubIdP) CurrentSession(ctx context.Context) (*domain.IdentitySession, error) {
	p.currentCalls.Add(1)
	p.mu.Lock()
	block, sess, err := p.block, p.session, p.sessionErr
	p.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return sess, err
}

func (p *stubIdP) SignInWithPassword(_ context.Context, email, _ string) (*domain.IdentitySession, error) {
	p.mu.Lock()
	if p.signInErr != nil {
		err := p.signInErr
		p.mu.Unlock()
		return nil, err
	}
	p.session = &domain.IdentitySession{SubjectID: "sub-" + email, Email: email}
	sess := *p.session
	p.mu.Unlock()

	go p.emit(domain.AuthEvent{Type: domain.EventSignedIn, SubjectID: sess.SubjectID})
	return &sess, nil
}

func (p *stubIdP) SignOut(context.Context) error {
	p.signOutCalls.Add(1)
	if p.beforeSignOut != nil {
		p.beforeSignOut()
	}
	if p.panicOut {
		panic("identity provider exploded")
	}
	p.mu.Lock()
	p.session = nil
	err := p.signOutErr
	p.mu.Unlock()
	return err
}

func (p *stubIdP) OnAuthStateChange(listener func(domain.AuthEvent)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *stubIdP) emit(ev domain.AuthEvent) {
	p.mu.Lock()
	listeners := make([]func(domain.AuthEvent), 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()
	for _, l := range listeners {
		l(ev)
	}
}

func (p *stubIdP) listenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// ---------------------------------------------------------------------------
// Data store stub
// ---------------------------------------------------------------------------

type stubStore struct {
	mu        sync.Mutex
	user      *domain.User
	userErr   error
	userBlock chan struct{}
	perms     []domain.Permission
	permErr   error
	permBlock chan struct{}
	touched   []string

	userCalls atomic.Int32
	permCalls atomic.Int32
}

func newStubStore(user *domain.User, perms ...domain.Permission) *stubStore {
	return &stubStore{user: user, perms: perms}
}

func (s *stubStore) FindUserBySubject(ctx context.Context, _ string) (*domain.User, error) {
	s.userCalls.Add(1)
	s.mu.Lock()
	block, user, err := s.userBlock, s.user, s.userErr
	s.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserRecordNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *stubStore) FindPermissionsByProfile(ctx context.Context, _ string) ([]domain.Permission, error) {
	s.permCalls.Add(1)
	s.mu.Lock()
	block, perms, err := s.permBlock, s.perms, s.permErr
	s.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return append([]domain.Permission(nil), perms...), nil
}

func (s *stubStore) TouchLastAccess(_ context.Context, subjectID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = append(s.touched, subjectID)
	return nil
}

// ---------------------------------------------------------------------------
// Cache tier, toucher and audit stubs
// ---------------------------------------------------------------------------

type memStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	getErr   error
	setErr   error
	setBlock chan struct{} // Set waits on it when set

	setCalls atomic.Int32
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return append([]byte(nil), v...), nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.setCalls.Add(1)
	s.mu.Lock()
	block := s.setBlock
	s.mu.Unlock()
	if block != nil {
		<-block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

type recordingToucher struct {
	mu       sync.Mutex
	subjects []string
}

func (r *recordingToucher) ScheduleTouch(subjectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subjectID)
}

func (r *recordingToucher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subjects)
}

type memAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *memAudit) Record(_ context.Context, e domain.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *memAudit) actions() []domain.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func activeUser() *domain.User {
	return &domain.User{
		ID:        "u-1",
		SubjectID: "sub-1",
		Email:     "ana@pharmacy.test",
		Name:      "Ana",
		ProfileID: "p-1",
		Profile: &domain.Profile{
			ID:   "p-1",
			Name: "Pharmacist",
			Type: domain.ProfilePharmacist,
		},
		Active: true,
	}
}

func stockRead(level domain.Level) domain.Permission {
	return domain.Permission{Module: domain.ModuleInventory, Action: domain.ActionRead, Level: level, Allowed: true}
}
