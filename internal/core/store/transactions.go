package store

import "github.com/servicehub/marketplace-client/internal/core/domain"

// TransactionStore mirrors the append-only ledger.
type TransactionStore struct {
	History List[domain.Transaction]
}

func NewTransactionStore() *TransactionStore { return &TransactionStore{} }

// Record prepends tx unless an entry with the same id is already present.
func (s *TransactionStore) Record(tx domain.Transaction) {
	if tx.ID != "" {
		if _, ok := s.History.Find(func(it domain.Transaction) bool { return it.ID == tx.ID }); ok {
			return
		}
	}
	s.History.Prepend(tx)
}

func (s *TransactionStore) Reset() { s.History.Reset() }
