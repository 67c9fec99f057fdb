// Package identity implements the password-grant Identity Provider the
// session core signs users in with. Credentials live in the auth_users
// collection; an issued session is an HS256 JWT held by the provider and
// re-validated on every lookup.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/pharmaai/backoffice-auth/internal/core/domain"
	"github.com/pharmaai/backoffice-auth/internal/core/ports"
)

const (
	issuer          = "backoffice-auth"
	defaultTokenTTL = 12 * time.Hour
	eventBuffer     = 16
)

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Provider implements ports.IdentityProvider.
type Provider struct {
	creds    ports.CredentialRepository
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
	log      zerolog.Logger

	mu        sync.Mutex
	token     string
	listeners map[int]func(domain.AuthEvent)
	nextID    int

	events chan domain.AuthEvent
	done   chan struct{}
	once   sync.Once
}

var _ ports.IdentityProvider = (*Provider)(nil)

// NewProvider starts a provider. Call Close to stop its notification loop.
func NewProvider(creds ports.CredentialRepository, secret string, tokenTTL time.Duration, log zerolog.Logger) *Provider {
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	p := &Provider{
		creds:     creds,
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		now:       time.Now,
		log:       log.With().Str("component", "identity").Logger(),
		listeners: make(map[int]func(domain.AuthEvent)),
		events:    make(chan domain.AuthEvent, eventBuffer),
		done:      make(chan struct{}),
	}
	go p.dispatch()
	return p
}

// Close stops notification delivery. Events emitted afterwards are dropped.
func (p *Provider) Close() {
	p.once.Do(func() { close(p.done) })
}

// SignInWithPassword verifies the credential and opens a new session.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*domain.IdentitySession, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	cred, err := p.creds.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserRecordNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup credential: %w", err)
	}
	if cred.Disabled {
		return nil, domain.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}

	token, sess, err := p.issue(cred)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.token = token
	p.mu.Unlock()

	p.log.Info().Str("subject_id", sess.SubjectID).Msg("identity session opened")
	p.emit(domain.AuthEvent{Type: domain.EventSignedIn, SubjectID: sess.SubjectID})
	return sess, nil
}

// CurrentSession returns the open session, or nil when there is none. An
// expired or unverifiable token closes the session and notifies listeners.
func (p *Provider) CurrentSession(_ context.Context) (*domain.IdentitySession, error) {
	p.mu.Lock()
	token := p.token
	p.mu.Unlock()
	if token == "" {
		return nil, nil
	}

	sess, err := p.verify(token)
	if err != nil {
		p.log.Info().Err(err).Msg("identity session no longer valid")
		p.mu.Lock()
		if p.token == token {
			p.token = ""
		}
		p.mu.Unlock()
		p.emit(domain.AuthEvent{Type: domain.EventSignedOut})
		return nil, nil
	}
	return sess, nil
}

// SignOut closes the session.
func (p *Provider) SignOut(_ context.Context) error {
	p.mu.Lock()
	token := p.token
	p.token = ""
	p.mu.Unlock()

	var subject string
	if token != "" {
		if sess, err := p.verify(token); err == nil {
			subject = sess.SubjectID
		}
	}
	p.emit(domain.AuthEvent{Type: domain.EventSignedOut, SubjectID: subject})
	return nil
}

// OnAuthStateChange registers listener. Notifications are delivered in order
// on a single goroutine.
func (p *Provider) OnAuthStateChange(listener func(domain.AuthEvent)) func() {
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

func (p *Provider) issue(cred *ports.Credential) (string, *domain.IdentitySession, error) {
	now := p.now()
	exp := now.Add(p.tokenTTL)
	c := claims{
		Email: cred.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   cred.SubjectID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(p.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return token, &domain.IdentitySession{SubjectID: cred.SubjectID, Email: cred.Email, ExpiresAt: exp}, nil
}

func (p *Provider) verify(token string) (*domain.IdentitySession, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (interface{}, error) { return p.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, err
	}
	if c.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return &domain.IdentitySession{SubjectID: c.Subject, Email: c.Email, ExpiresAt: c.ExpiresAt.Time}, nil
}

func (p *Provider) emit(ev domain.AuthEvent) {
	select {
	case p.events <- ev:
	case <-p.done:
	}
}

func (p *Provider) dispatch() {
	for {
		select {
		case <-p.done:
			return
		case ev := <-p.events:
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
	}
}
