package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/servicehub/marketplace-client/internal/core/domain"
	"github.com/servicehub/marketplace-client/internal/core/ports"
	"github.com/servicehub/marketplace-client/internal/core/store"
)

// CatalogService browses the catalog and manages a provider's own services.
type CatalogService struct {
	api    ports.ServiceAPI
	auth   *AuthService
	store  *store.ServiceStore
	cache  ports.CacheInvalidator
	logger zerolog.Logger
}

func NewCatalogService(api ports.ServiceAPI, auth *AuthService, st *store.ServiceStore, cache ports.CacheInvalidator, logger zerolog.Logger) *CatalogService {
	return &CatalogService{api: api, auth: auth, store: st, cache: cache, logger: logger}
}

// List loads one catalog page with filters. Offset 0 replaces the catalog in
// the store, a later offset appends to it. A response that arrives after a
// newer List was started is returned but not committed.
func (s *CatalogService) List(ctx context.Context, filters domain.ServiceFilters) (*domain.Page[domain.Service], error) {
	if _, err := s.auth.authorize(domain.ActionBrowseServices); err != nil {
		return nil, err
	}
	filters.Search = strings.TrimSpace(filters.Search)
	if filters.Limit <= 0 {
		filters.Limit = domain.DefaultPageSize
	}
	if err := domain.Validate(filters); err != nil {
		return nil, err
	}
	if filters.MinPrice > 0 && filters.MaxPrice > 0 && filters.MinPrice > filters.MaxPrice {
		return nil, domain.Validationf("minPrice cannot be greater than maxPrice")
	}

	s.store.SetFilters(filters)
	seq := s.store.Catalog.Begin()
	page, err := s.api.List(ctx, filters)
	if err != nil {
		err = fail(err)
		s.store.Catalog.Fail(seq, err)
		return nil, err
	}
	if !s.store.Catalog.CommitPage(seq, page) {
		s.logger.Debug().Int("offset", filters.Offset).Msg("discarded superseded catalog page")
	}
	return page, nil
}

// LoadMore fetches the page after the items already loaded. It returns an
// empty page when the catalog is exhausted.
func (s *CatalogService) LoadMore(ctx context.Context) (*domain.Page[domain.Service], error) {
	f := s.store.Filters()
	if !s.store.Catalog.HasMore() {
		return &domain.Page[domain.Service]{Items: []domain.Service{}, Offset: s.store.Catalog.Len(), Limit: f.Limit}, nil
	}
	f.Offset = s.store.Catalog.Len()
	return s.List(ctx, f)
}

// SetFilters applies new filters and reloads from the first page.
func (s *CatalogService) SetFilters(ctx context.Context, filters domain.ServiceFilters) (*domain.Page[domain.Service], error) {
	filters.Offset = 0
	return s.List(ctx, filters)
}

// Refresh reloads the first page with the current filters.
func (s *CatalogService) Refresh(ctx context.Context) (*domain.Page[domain.Service], error) {
	f := s.store.Filters()
	f.Offset = 0
	return s.List(ctx, f)
}

// ClearFilters restores the default filters. Clearing twice leaves the same
// state; the catalog is only reloaded when something changed or nothing is
// loaded yet.
func (s *CatalogService) ClearFilters(ctx context.Context) error {
	changed := s.store.ResetFilters()
	if !changed && s.store.Catalog.Loaded() && s.store.Catalog.Err() == nil {
		return nil
	}
	_, err := s.List(ctx, domain.DefaultServiceFilters())
	return err
}

func (s *CatalogService) Get(ctx context.Context, id string) (*domain.Service, error) {
	if _, err := s.auth.authorize(domain.ActionBrowseServices); err != nil {
		return nil, err
	}
	if err := requireID("service id", id); err != nil {
		return nil, err
	}
	svc, err := s.api.Get(ctx, id)
	if err != nil {
		return nil, fail(err)
	}
	return svc, nil
}

// MyServices loads the signed-in provider's own services.
func (s *CatalogService) MyServices(ctx context.Context) ([]domain.Service, error) {
	if _, err := s.auth.authorize(domain.ActionListMyServices); err != nil {
		return nil, err
	}
	seq := s.store.Mine.Begin()
	items, err := s.api.Mine(ctx)
	if err != nil {
		err = fail(err)
		s.store.Mine.Fail(seq, err)
		return nil, err
	}
	s.store.Mine.Commit(seq, items, 0)
	return items, nil
}

// Create publishes a new service. Field rules are checked before any request.
func (s *CatalogService) Create(ctx context.Context, input domain.ServiceInput) (*domain.Service, error) {
	if _, err := s.auth.authorize(domain.ActionCreateService); err != nil {
		return nil, err
	}
	input = normalizeServiceInput(input)
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	svc, err := s.api.Create(ctx, input)
	if err != nil {
		return nil, fail(err)
	}
	s.store.Mine.Prepend(*svc)
	invalidate(ctx, s.cache, s.logger, serviceWrites...)
	s.logger.Info().Str("service_id", svc.ID).Msg("service created")
	return svc, nil
}

func (s *CatalogService) Update(ctx context.Context, id string, input domain.ServiceInput) (*domain.Service, error) {
	if _, err := s.auth.authorize(domain.ActionEditService); err != nil {
		return nil, err
	}
	if err := requireID("service id", id); err != nil {
		return nil, err
	}
	input = normalizeServiceInput(input)
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	svc, err := s.api.Update(ctx, id, input)
	if err != nil {
		return nil, fail(err)
	}
	if svc.ID == "" {
		svc.ID = id
	}
	s.store.Upsert(*svc)
	invalidate(ctx, s.cache, s.logger, serviceWrites...)
	return svc, nil
}

func (s *CatalogService) Delete(ctx context.Context, id string) error {
	if _, err := s.auth.authorize(domain.ActionDeleteService); err != nil {
		return err
	}
	if err := requireID("service id", id); err != nil {
		return err
	}
	if err := s.api.Delete(ctx, id); err != nil {
		return fail(err)
	}
	s.store.Drop(id)
	invalidate(ctx, s.cache, s.logger, serviceWrites...)
	s.logger.Info().Str("service_id", id).Msg("service deleted")
	return nil
}

// SetStatus activates or deactivates a service.
func (s *CatalogService) SetStatus(ctx context.Context, id string, active bool) (*domain.Service, error) {
	if _, err := s.auth.authorize(domain.ActionEditService); err != nil {
		return nil, err
	}
	if err := requireID("service id", id); err != nil {
		return nil, err
	}
	svc, err := s.api.SetStatus(ctx, id, active)
	if err != nil {
		return nil, fail(err)
	}
	if svc.ID == "" {
		svc.ID = id
		svc.IsActive = active
	}
	s.store.Upsert(*svc)
	invalidate(ctx, s.cache, s.logger, serviceWrites...)
	return svc, nil
}

func normalizeServiceInput(in domain.ServiceInput) domain.ServiceInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	return in
}
