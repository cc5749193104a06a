package dao

import (
	"context"
	"net/http"

	"github.com/servicehub/marketplace-client/internal/infrastructure/httpclient"
)

type HealthDAO struct {
	exec Executor
}

func NewHealthDAO(exec Executor) *HealthDAO { return &HealthDAO{exec: exec} }

// Check succeeds when the server answers GET /health with a 2xx status.
func (d *HealthDAO) Check(ctx context.Context) error {
	return d.exec.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health", SkipCache: true}, nil)
}
