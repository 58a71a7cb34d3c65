// Package session holds who is signed in for one request or one console
// connection. A Session is created per scope and passed down explicitly;
// there is no process-wide current user.
package session

import (
	"context"
	"sync"

	"pilgrimsafe/models"
)

// Reader is the read-only view handlers and controllers get.
type Reader interface {
	CurrentUser() *models.User
	Loading() bool
}

// Resolver turns a bearer token into the user it was issued to.
type Resolver interface {
	UserForToken(ctx context.Context, token string) (*models.User, error)
}

type Session struct {
	mu      sync.Mutex
	user    *models.User
	loading bool
}

// New returns a session that is loading until Resolve or SignOut.
func New() *Session {
	return &Session{loading: true}
}

// Resolve signs the session in as the token's user. On error the session
// is signed out.
func (s *Session) Resolve(ctx context.Context, token string, r Resolver) error {
	s.mu.Lock()
	s.loading = true
	s.user = nil
	s.mu.Unlock()

	u, err := r.UserForToken(ctx, token)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		return err
	}
	s.user = u
	return nil
}

func (s *Session) SignOut() {
	s.mu.Lock()
	s.user = nil
	s.loading = false
	s.mu.Unlock()
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (s *Session) CurrentUser() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

type contextKey struct{}

func WithContext(ctx context.Context, r Reader) context.Context {
	return context.WithValue(ctx, contextKey{}, r)
}

// FromContext returns the request's session, or a signed-out one.
func FromContext(ctx context.Context) Reader {
	if r, ok := ctx.Value(contextKey{}).(Reader); ok {
		return r
	}
	return signedOut{}
}

type signedOut struct{}

func (signedOut) CurrentUser() *models.User { return nil }
func (signedOut) Loading() bool             { return false }
