package store

import (
	"sync"

	"github.com/servicehub/marketplace-client/internal/core/domain"
)

// AuthStore holds the signed-in user and session.
type AuthStore struct {
	mu      sync.RWMutex
	user    *domain.User
	session domain.Session
	loading bool
	err     error
}

func NewAuthStore() *AuthStore { return &AuthStore{} }

// SetAuthenticated installs user and session together.
func (s *AuthStore) SetAuthenticated(user domain.User, sess domain.Session) {
	s.mu.Lock()
	s.user = &user
	s.session = sess
	s.loading = false
	s.err = nil
	s.mu.Unlock()
}

// SetUser replaces the user profile, keeping the session.
func (s *AuthStore) SetUser(user domain.User) {
	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
}

// SetBalance updates the displayed balance. It reports false when nobody is
// signed in.
func (s *AuthStore) SetBalance(balance float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return false
	}
	s.user.Balance = balance
	return true
}

// User returns a copy of the signed-in user.
func (s *AuthStore) User() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return domain.User{}, false
	}
	return *s.user, true
}

func (s *AuthStore) Session() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// IsAuthenticated reports whether a user and token are present. The token
// may still be rejected by the server.
func (s *AuthStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.session.Token != ""
}

// UserType returns the signed-in role, or "" when signed out.
func (s *AuthStore) UserType() domain.UserType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.UserType
}

func (s *AuthStore) SetLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	if v {
		s.err = nil
	}
	s.mu.Unlock()
}

func (s *AuthStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *AuthStore) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.loading = false
	s.mu.Unlock()
}

func (s *AuthStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Clear signs the user out locally.
func (s *AuthStore) Clear() {
	s.mu.Lock()
	s.user = nil
	s.session = domain.Session{}
	s.loading = false
	s.err = nil
	s.mu.Unlock()
}
