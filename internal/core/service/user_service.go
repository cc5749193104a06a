package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/servicehub/marketplace-client/internal/core/domain"
	"github.com/servicehub/marketplace-client/internal/core/ports"
	"github.com/servicehub/marketplace-client/internal/core/store"
)

// UserService covers the signed-in user's profile and balance.
type UserService struct {
	api     ports.UserAPI
	authAPI ports.AuthAPI
	auth    *AuthService
	txs     *store.TransactionStore
	cache   ports.CacheInvalidator
	logger  zerolog.Logger
}

func NewUserService(api ports.UserAPI, authAPI ports.AuthAPI, auth *AuthService, txs *store.TransactionStore, cache ports.CacheInvalidator, logger zerolog.Logger) *UserService {
	return &UserService{api: api, authAPI: authAPI, auth: auth, txs: txs, cache: cache, logger: logger}
}

// Profile reloads the user from the server and updates the session copy.
func (s *UserService) Profile(ctx context.Context) (*domain.User, error) {
	if !s.auth.IsAuthenticated() {
		return nil, &domain.AppError{Type: domain.TypeAuthentication, Message: "you must be signed in"}
	}
	user, err := s.api.Profile(ctx)
	if err != nil {
		return nil, fail(err)
	}
	s.auth.updateUser(ctx, *user)
	return user, nil
}

// RefreshBalance reloads the balance shown for the signed-in user.
func (s *UserService) RefreshBalance(ctx context.Context) (float64, error) {
	if !s.auth.IsAuthenticated() {
		return 0, &domain.AppError{Type: domain.TypeAuthentication, Message: "you must be signed in"}
	}
	balance, err := s.api.Balance(ctx)
	if err != nil {
		return 0, fail(err)
	}
	s.auth.setBalance(ctx, balance)
	return balance, nil
}

// AddBalance tops the account up by amount.
func (s *UserService) AddBalance(ctx context.Context, amount float64) (*domain.BalanceUpdate, error) {
	if _, err := s.auth.authorize(domain.ActionAddBalance); err != nil {
		return nil, err
	}
	input := domain.AddBalanceInput{Amount: amount}
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	upd, err := s.authAPI.AddBalance(ctx, input)
	if err != nil {
		return nil, fail(err)
	}
	s.auth.setBalance(ctx, upd.Balance)
	if upd.Transaction != nil && s.txs != nil {
		s.txs.Record(*upd.Transaction)
	}
	invalidate(ctx, s.cache, s.logger, balanceWrites...)
	s.logger.Info().Str("amount", domain.FormatAmount(amount)).Str("balance", domain.FormatAmount(upd.Balance)).Msg("balance added")
	return upd, nil
}
