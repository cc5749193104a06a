package ports

import (
	"context"

	"github.com/servicehub/marketplace-client/internal/core/domain"
)

// SessionPersister keeps the signed-in user between runs.
type SessionPersister interface {
	// Load returns nil without error when nothing is saved.
	Load(ctx context.Context) (*domain.PersistedSession, error)
	Save(ctx context.Context, s domain.PersistedSession) error
	Clear(ctx context.Context) error
}

// TokenStore holds the bearer token attached to outgoing requests.
type TokenStore interface {
	Set(token string) domain.Session
	Restore(s domain.Session)
	Token() string
	Session() (domain.Session, bool)
	Clear()
}

// CacheInvalidator drops cached responses after writes.
type CacheInvalidator interface {
	InvalidatePattern(ctx context.Context, pattern string) (int, error)
	Clear(ctx context.Context) error
}
