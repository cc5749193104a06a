package httpclient

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/servicehub/marketplace-client/internal/core/domain"
)

// TokenStore holds the bearer token for one client. Its lifecycle follows
// login/logout; it is owned by the client, not a package global.
type TokenStore struct {
	mu      sync.RWMutex
	session domain.Session
}

// NewTokenStore returns an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Set stores token and derives its expiry from the JWT exp claim when the
// token is a JWT. The signature is not checked; only the server can do that.
func (s *TokenStore) Set(token string) domain.Session {
	sess := domain.Session{Token: token, ExpiresAt: tokenExpiry(token)}
	s.Restore(sess)
	return sess
}

// Restore installs a previously persisted session as-is.
func (s *TokenStore) Restore(sess domain.Session) {
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()
}

// Token returns the current token or "".
func (s *TokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Token
}

// Session returns the current session and whether a token is present.
func (s *TokenStore) Session() (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session, s.session.Token != ""
}

// Clear drops the token.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	s.session = domain.Session{}
	s.mu.Unlock()
}

func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time.UTC()
}
