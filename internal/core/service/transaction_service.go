package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/servicehub/marketplace-client/internal/core/domain"
	"github.com/servicehub/marketplace-client/internal/core/ports"
	"github.com/servicehub/marketplace-client/internal/core/store"
)

// TransactionService reads the ledger. Transactions are never written by
// the client.
type TransactionService struct {
	api    ports.TransactionAPI
	auth   *AuthService
	txs    *store.TransactionStore
	logger zerolog.Logger
}

func NewTransactionService(api ports.TransactionAPI, auth *AuthService, txs *store.TransactionStore, logger zerolog.Logger) *TransactionService {
	return &TransactionService{api: api, auth: auth, txs: txs, logger: logger}
}

// History loads one ledger page starting at offset; offset 0 replaces the
// stored history and later offsets append to it.
func (s *TransactionService) History(ctx context.Context, offset int) (*domain.Page[domain.Transaction], error) {
	if _, err := s.auth.authorize(domain.ActionViewLedger); err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, domain.Validationf("offset must be at least 0")
	}
	seq := s.txs.History.Begin()
	page, err := s.api.History(ctx, offset, domain.DefaultPageSize)
	if err != nil {
		err = fail(err)
		s.txs.History.Fail(seq, err)
		return nil, err
	}
	s.txs.History.CommitPage(seq, page)
	return page, nil
}

func (s *TransactionService) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	if _, err := s.auth.authorize(domain.ActionViewLedger); err != nil {
		return nil, err
	}
	if err := requireID("transaction id", id); err != nil {
		return nil, err
	}
	tx, err := s.api.Get(ctx, id)
	if err != nil {
		return nil, fail(err)
	}
	return tx, nil
}
