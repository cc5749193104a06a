package dao

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/servicehub/marketplace-client/internal/core/domain"
	"github.com/servicehub/marketplace-client/internal/infrastructure/httpclient"
)

type UserDAO struct {
	exec Executor
}

func NewUserDAO(exec Executor) *UserDAO { return &UserDAO{exec: exec} }

// Profile always goes to the network: it is how a stored token is verified.
func (d *UserDAO) Profile(ctx context.Context) (*domain.User, error) {
	var raw json.RawMessage
	if err := d.exec.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/users/profile", SkipCache: true}, &raw); err != nil {
		return nil, err
	}
	var u domain.User
	if err := decodeUnder(raw, "user", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *UserDAO) Balance(ctx context.Context) (float64, error) {
	var raw json.RawMessage
	if err := d.exec.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/users/balance", SkipCache: true}, &raw); err != nil {
		return 0, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] != '{' {
		var v float64
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return 0, decodeErr(err)
		}
		return v, nil
	}
	var w balanceWire
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return 0, decodeErr(err)
	}
	v, ok := w.value()
	if !ok {
		return 0, decodeErr(errMissingField("balance"))
	}
	return v, nil
}

func errMissingField(name string) error {
	return fmt.Errorf("missing field %q", name)
}
