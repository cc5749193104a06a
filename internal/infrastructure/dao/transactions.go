package dao

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/servicehub/marketplace-client/internal/core/domain"
	"github.com/servicehub/marketplace-client/internal/infrastructure/httpclient"
)

type TransactionDAO struct {
	exec Executor
}

func NewTransactionDAO(exec Executor) *TransactionDAO { return &TransactionDAO{exec: exec} }

func (d *TransactionDAO) History(ctx context.Context, offset, limit int) (*domain.Page[domain.Transaction], error) {
	var raw json.RawMessage
	req := httpclient.Request{Method: http.MethodGet, Path: "/transactions/history", Query: pageQuery(offset, limit)}
	if err := d.exec.Do(ctx, req, &raw); err != nil {
		return nil, err
	}
	return decodeList[domain.Transaction](raw, offset, limit, "transactions")
}

func (d *TransactionDAO) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	var raw json.RawMessage
	if err := d.exec.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/transactions/" + pathID(id)}, &raw); err != nil {
		return nil, err
	}
	var tx domain.Transaction
	if err := decodeUnder(raw, "transaction", &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}
