package dao

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/servicehub/marketplace-client/internal/core/domain"
	"github.com/servicehub/marketplace-client/internal/infrastructure/httpclient"
)

// ServiceDAO covers the catalog. GET /services/my is subject to the
// executor's route fallbacks on deployments that name it differently.
type ServiceDAO struct {
	exec Executor
}

func NewServiceDAO(exec Executor) *ServiceDAO { return &ServiceDAO{exec: exec} }

func filterQuery(f domain.ServiceFilters) url.Values {
	q := pageQuery(f.Offset, f.Limit)
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.MinPrice > 0 {
		q.Set("minPrice", formatPrice(f.MinPrice))
	}
	if f.MaxPrice > 0 {
		q.Set("maxPrice", formatPrice(f.MaxPrice))
	}
	if f.ProviderID != "" {
		q.Set("providerId", f.ProviderID)
	}
	return q
}

func (d *ServiceDAO) List(ctx context.Context, f domain.ServiceFilters) (*domain.Page[domain.Service], error) {
	var raw json.RawMessage
	req := httpclient.Request{Method: http.MethodGet, Path: "/services", Query: filterQuery(f)}
	if err := d.exec.Do(ctx, req, &raw); err != nil {
		return nil, err
	}
	return decodeList[domain.Service](raw, f.Offset, f.Limit, "services")
}

func (d *ServiceDAO) Get(ctx context.Context, id string) (*domain.Service, error) {
	var raw json.RawMessage
	if err := d.exec.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/services/" + pathID(id)}, &raw); err != nil {
		return nil, err
	}
	var svc domain.Service
	if err := decodeUnder(raw, "service", &svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

func (d *ServiceDAO) Mine(ctx context.Context) ([]domain.Service, error) {
	var raw json.RawMessage
	if err := d.exec.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/services/my"}, &raw); err != nil {
		return nil, err
	}
	page, err := decodeList[domain.Service](raw, 0, 0, "services")
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (d *ServiceDAO) Create(ctx context.Context, input domain.ServiceInput) (*domain.Service, error) {
	return d.write(ctx, http.MethodPost, "/services", input)
}

func (d *ServiceDAO) Update(ctx context.Context, id string, input domain.ServiceInput) (*domain.Service, error) {
	return d.write(ctx, http.MethodPut, "/services/"+pathID(id), input)
}

func (d *ServiceDAO) Delete(ctx context.Context, id string) error {
	return d.exec.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: "/services/" + pathID(id)}, nil)
}

func (d *ServiceDAO) SetStatus(ctx context.Context, id string, active bool) (*domain.Service, error) {
	body := map[string]bool{"isActive": active}
	return d.write(ctx, http.MethodPatch, "/services/"+pathID(id)+"/status", body)
}

func (d *ServiceDAO) write(ctx context.Context, method, path string, body any) (*domain.Service, error) {
	var raw json.RawMessage
	if err := d.exec.Do(ctx, httpclient.Request{Method: method, Path: path, Body: body}, &raw); err != nil {
		return nil, err
	}
	var svc domain.Service
	if err := decodeUnder(raw, "service", &svc); err != nil {
		return nil, err
	}
	return &svc, nil
}
