package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/servicehub/marketplace-client/internal/core/domain"
	"github.com/servicehub/marketplace-client/internal/core/ports"
	"github.com/servicehub/marketplace-client/internal/core/store"
)

// AuthService owns the session: it signs users in and out, restores a saved
// session and keeps the persisted copy in sync with the store.
type AuthService struct {
	api       ports.AuthAPI
	users     ports.UserAPI
	tokens    ports.TokenStore
	persister ports.SessionPersister
	cache     ports.CacheInvalidator
	store     *store.AuthStore
	logger    zerolog.Logger
	now       func() time.Time

	hookMu    sync.Mutex
	onSignOut []func()
}

func NewAuthService(
	api ports.AuthAPI,
	users ports.UserAPI,
	tokens ports.TokenStore,
	persister ports.SessionPersister,
	cache ports.CacheInvalidator,
	st *store.AuthStore,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		api:       api,
		users:     users,
		tokens:    tokens,
		persister: persister,
		cache:     cache,
		store:     st,
		logger:    logger,
		now:       time.Now,
	}
}

// OnSignOut registers fn to run whenever the local session is cleared or
// replaced by another user's.
func (s *AuthService) OnSignOut(fn func()) {
	s.hookMu.Lock()
	s.onSignOut = append(s.onSignOut, fn)
	s.hookMu.Unlock()
}

// Register creates an account. When the server returns a token the user is
// signed in right away.
func (s *AuthService) Register(ctx context.Context, input domain.RegisterInput) (*domain.User, error) {
	input.FullName = strings.TrimSpace(input.FullName)
	input.Email = strings.TrimSpace(input.Email)
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	s.store.SetLoading(true)
	res, err := s.api.Register(ctx, input)
	if err != nil {
		err = fail(err)
		s.store.SetError(err)
		return nil, err
	}
	if res.Token == "" {
		s.store.SetLoading(false)
		s.logger.Info().Str("user_id", res.User.ID).Msg("account registered")
		return &res.User, nil
	}
	s.establish(ctx, res)
	s.logger.Info().Str("user_id", res.User.ID).Msg("account registered and signed in")
	return &res.User, nil
}

func (s *AuthService) Login(ctx context.Context, input domain.LoginInput) (*domain.User, error) {
	input.Email = strings.TrimSpace(input.Email)
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	s.store.SetLoading(true)
	res, err := s.api.Login(ctx, input)
	if err != nil {
		err = fail(err)
		s.store.SetError(err)
		return nil, err
	}
	if res.Token == "" {
		err := &domain.AppError{Type: domain.TypeAuthentication, Message: "server returned no token"}
		s.store.SetError(err)
		return nil, err
	}
	s.establish(ctx, res)
	s.logger.Info().Str("user_id", res.User.ID).Str("user_type", string(res.User.UserType)).Msg("signed in")
	return &res.User, nil
}

// Logout tells the server when a token is held, then always clears the
// local session, the persisted copy and the cache.
func (s *AuthService) Logout(ctx context.Context) error {
	if s.tokens.Token() != "" {
		if err := s.api.Logout(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("server logout failed, clearing local session anyway")
		}
	}
	s.clearLocal(ctx)
	s.logger.Info().Msg("signed out")
	return nil
}

// Restore rehydrates the saved session and verifies it against the server.
// It returns nil without error when nothing is saved. A rejected token
// clears the session; any other failure keeps it for a later retry.
func (s *AuthService) Restore(ctx context.Context) (*domain.User, error) {
	saved, err := s.persister.Load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("saved session unreadable, discarding")
		s.clearLocal(ctx)
		return nil, nil
	}
	if saved == nil || saved.Token == "" {
		return nil, nil
	}

	sess := domain.Session{Token: saved.Token, ExpiresAt: saved.ExpiresAt}
	if sess.Expired(s.now()) {
		s.clearLocal(ctx)
		return nil, &domain.AppError{Type: domain.TypeAuthentication, Message: "session expired, please sign in again"}
	}

	s.tokens.Restore(sess)
	s.store.SetAuthenticated(saved.User, sess)

	user, err := s.users.Profile(ctx)
	if err != nil {
		ae := domain.Normalize(err)
		if ae.Type == domain.TypeAuthentication {
			s.clearLocal(ctx)
		}
		return nil, ae
	}
	s.updateUser(ctx, *user)
	s.logger.Debug().Str("user_id", user.ID).Msg("session restored")
	return user, nil
}

// HandleUnauthorized reacts to a 401 on an authenticated request by clearing
// the session locally. It makes no network call.
func (s *AuthService) HandleUnauthorized(ctx context.Context, err *domain.AppError) {
	s.logger.Warn().Str("reason", err.Message).Msg("session rejected by server")
	s.clearLocal(ctx)
}

// CurrentUser returns the signed-in user.
func (s *AuthService) CurrentUser() (domain.User, bool) {
	return s.store.User()
}

func (s *AuthService) IsAuthenticated() bool {
	return s.store.IsAuthenticated()
}

func (s *AuthService) Session() domain.Session {
	return s.store.Session()
}

// authorize returns the signed-in user when they may perform action.
func (s *AuthService) authorize(action domain.Action) (domain.User, error) {
	user, ok := s.store.User()
	if !ok {
		return domain.User{}, &domain.AppError{Type: domain.TypeAuthentication, Message: "you must be signed in"}
	}
	if err := domain.Can(user.UserType, action).Err(); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// establish installs a new session. Cached responses are dropped first: cache
// keys do not carry the token, so they may belong to another account. Signing
// in as a different user also resets the stores of the previous one.
func (s *AuthService) establish(ctx context.Context, res *domain.AuthResult) {
	prev, had := s.store.User()
	s.clearCache(ctx)
	sess := s.tokens.Set(res.Token)
	s.store.SetAuthenticated(res.User, sess)
	s.persist(ctx)
	if had && prev.ID != res.User.ID {
		s.signedOut()
	}
}

func (s *AuthService) updateUser(ctx context.Context, user domain.User) {
	s.store.SetUser(user)
	s.persist(ctx)
}

func (s *AuthService) setBalance(ctx context.Context, balance float64) {
	if s.store.SetBalance(balance) {
		s.persist(ctx)
	}
}

func (s *AuthService) persist(ctx context.Context) {
	user, ok := s.store.User()
	if !ok {
		return
	}
	sess := s.store.Session()
	err := s.persister.Save(ctx, domain.PersistedSession{
		User:      user,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		SavedAt:   s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist session")
	}
}

func (s *AuthService) clearLocal(ctx context.Context) {
	s.tokens.Clear()
	s.store.Clear()
	if err := s.persister.Clear(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear saved session")
	}
	s.clearCache(ctx)
	s.signedOut()
}

func (s *AuthService) signedOut() {
	s.hookMu.Lock()
	hooks := append([]func(){}, s.onSignOut...)
	s.hookMu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (s *AuthService) clearCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Clear(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear cache")
	}
}
