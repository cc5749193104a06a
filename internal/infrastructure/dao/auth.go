package dao

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/servicehub/marketplace-client/internal/core/domain"
	"github.com/servicehub/marketplace-client/internal/infrastructure/httpclient"
)

type AuthDAO struct {
	exec Executor
}

func NewAuthDAO(exec Executor) *AuthDAO { return &AuthDAO{exec: exec} }

func (d *AuthDAO) Register(ctx context.Context, input domain.RegisterInput) (*domain.AuthResult, error) {
	var out domain.AuthResult
	if err := d.exec.Do(ctx, httpclient.Request{Method: http.MethodPost, Path: "/auth/register", Body: input}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *AuthDAO) Login(ctx context.Context, input domain.LoginInput) (*domain.AuthResult, error) {
	var out domain.AuthResult
	if err := d.exec.Do(ctx, httpclient.Request{Method: http.MethodPost, Path: "/auth/login", Body: input}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *AuthDAO) Logout(ctx context.Context) error {
	return d.exec.Do(ctx, httpclient.Request{Method: http.MethodPost, Path: "/auth/logout"}, nil)
}

type balanceWire struct {
	Balance     *float64            `json:"balance"`
	NewBalance  *float64            `json:"newBalance"`
	Transaction *domain.Transaction `json:"transaction"`
}

func (w balanceWire) value() (float64, bool) {
	switch {
	case w.NewBalance != nil:
		return *w.NewBalance, true
	case w.Balance != nil:
		return *w.Balance, true
	}
	return 0, false
}

func (d *AuthDAO) AddBalance(ctx context.Context, input domain.AddBalanceInput) (*domain.BalanceUpdate, error) {
	var raw json.RawMessage
	if err := d.exec.Do(ctx, httpclient.Request{Method: http.MethodPost, Path: "/auth/add-balance", Body: input}, &raw); err != nil {
		return nil, err
	}
	var w balanceWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, decodeErr(err)
	}
	balance, ok := w.value()
	if !ok {
		return nil, decodeErr(errMissingField("balance"))
	}
	return &domain.BalanceUpdate{Balance: balance, Transaction: w.Transaction}, nil
}
