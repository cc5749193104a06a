package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/servicehub/marketplace-client/internal/core/domain"
)

func servicesPage(offset, n int, hasMore bool) *domain.Page[domain.Service] {
	items := make([]domain.Service, n)
	for i := range items {
		items[i] = domain.Service{ID: fmt.Sprintf("s%d", offset+i), Name: "Service", Price: 10}
	}
	return &domain.Page[domain.Service]{Items: items, Offset: offset, Limit: 20, Total: offset + n, HasMore: hasMore}
}

func TestCatalogService_List_ReplaceThenAppend(t *testing.T) {
	f := newFixture(t)
	f.signIn(domain.UserTypeClient, 0)
	f.services.listFn = func(_ context.Context, fl domain.ServiceFilters) (*domain.Page[domain.Service], error) {
		return servicesPage(fl.Offset, 20, fl.Offset == 0), nil
	}

	if _, err := f.catalog.List(context.Background(), domain.ServiceFilters{}); err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if got := f.serviceStore.Catalog.Len(); got != 20 {
		t.Fatalf("after first page len = %d, want 20", got)
	}

	if _, err := f.catalog.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore returned error: %v", err)
	}
	if got := f.serviceStore.Catalog.Len(); got != 40 {
		t.Fatalf("after append len = %d, want 40", got)
	}

	page, err := f.catalog.LoadMore(context.Background())
	if err != nil {
		t.Fatalf("LoadMore returned error: %v", err)
	}
	if len(page.Items) != 0 || f.services.count() != 2 {
		t.Fatalf("exhausted catalog issued a request: calls=%d", f.services.count())
	}

	if _, err := f.catalog.List(context.Background(), domain.ServiceFilters{Search: "yoga"}); err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if got := f.serviceStore.Catalog.Len(); got != 20 {
		t.Fatalf("offset 0 must replace, len = %d", got)
	}
}

func TestCatalogService_List_SupersededResponseDiscarded(t *testing.T) {
	f := newFixture(t)
	f.signIn(domain.UserTypeClient, 0)

	release := make(chan struct{})
	started := make(chan struct{})
	f.services.listFn = func(_ context.Context, fl domain.ServiceFilters) (*domain.Page[domain.Service], error) {
		if fl.Search == "slow" {
			close(started)
			<-release
			return &domain.Page[domain.Service]{Items: []domain.Service{{ID: "stale"}}}, nil
		}
		return &domain.Page[domain.Service]{Items: []domain.Service{{ID: "fresh"}}}, nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := f.catalog.List(context.Background(), domain.ServiceFilters{Search: "slow"}); err != nil {
			t.Errorf("slow List returned error: %v", err)
		}
	}()
	<-started
	if _, err := f.catalog.List(context.Background(), domain.ServiceFilters{Search: "fast"}); err != nil {
		t.Fatalf("fast List returned error: %v", err)
	}
	close(release)
	wg.Wait()

	items := f.serviceStore.Catalog.Items()
	if len(items) != 1 || items[0].ID != "fresh" {
		t.Fatalf("superseded response overwrote newer one: %+v", items)
	}
}

func TestCatalogService_List_Validation(t *testing.T) {
	f := newFixture(t)
	f.signIn(domain.UserTypeClient, 0)

	_, err := f.catalog.List(context.Background(), domain.ServiceFilters{MinPrice: 50, MaxPrice: 10})
	assertType(t, err, domain.TypeValidation)
	if f.services.count() != 0 {
		t.Fatalf("expected no request")
	}
}

func TestCatalogService_ClearFilters_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.signIn(domain.UserTypeClient, 0)
	f.services.listFn = func(_ context.Context, fl domain.ServiceFilters) (*domain.Page[domain.Service], error) {
		return servicesPage(fl.Offset, 3, false), nil
	}

	if _, err := f.catalog.SetFilters(context.Background(), domain.ServiceFilters{Search: "massage", MaxPrice: 40}); err != nil {
		t.Fatalf("SetFilters returned error: %v", err)
	}
	if err := f.catalog.ClearFilters(context.Background()); err != nil {
		t.Fatalf("ClearFilters returned error: %v", err)
	}
	filtersOnce, itemsOnce, calls := f.serviceStore.Filters(), f.serviceStore.Catalog.Items(), f.services.count()

	if err := f.catalog.ClearFilters(context.Background()); err != nil {
		t.Fatalf("second ClearFilters returned error: %v", err)
	}
	if f.serviceStore.Filters() != filtersOnce {
		t.Fatalf("filters changed on second clear: %+v vs %+v", f.serviceStore.Filters(), filtersOnce)
	}
	if f.serviceStore.Filters() != domain.DefaultServiceFilters() {
		t.Fatalf("filters not reset: %+v", f.serviceStore.Filters())
	}
	if len(f.serviceStore.Catalog.Items()) != len(itemsOnce) {
		t.Fatalf("catalog changed on second clear")
	}
	if f.services.count() != calls {
		t.Fatalf("second clear issued a request")
	}
}

func TestCatalogService_Create_FieldRules(t *testing.T) {
	f := newFixture(t)
	f.signIn(domain.UserTypeProvider, 0)

	cases := map[string]domain.ServiceInput{
		"short name":        {Name: "ab", Description: "A long enough description", Price: 10},
		"short description": {Name: "Yoga class", Description: "too short", Price: 10},
		"zero price":        {Name: "Yoga class", Description: "A long enough description", Price: 0},
		"negative price":    {Name: "Yoga class", Description: "A long enough description", Price: -5},
		"padded name":       {Name: "  ab  ", Description: "A long enough description", Price: 10},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.catalog.Create(context.Background(), in)
			assertType(t, err, domain.TypeValidation)
		})
	}
	if f.services.count() != 0 {
		t.Fatalf("invalid input reached the server %d times", f.services.count())
	}
}

func TestCatalogService_Create_ProviderOnly(t *testing.T) {
	f := newFixture(t)
	f.signIn(domain.UserTypeClient, 0)

	_, err := f.catalog.Create(context.Background(), domain.ServiceInput{Name: "Yoga class", Description: "A long enough description", Price: 10})
	assertType(t, err, domain.TypeAuthorization)
}

func TestCatalogService_Create_Success(t *testing.T) {
	f := newFixture(t)
	f.signIn(domain.UserTypeProvider, 0)
	f.services.createFn = func(_ context.Context, in domain.ServiceInput) (*domain.Service, error) {
		return &domain.Service{ID: "s9", Name: in.Name, Description: in.Description, Price: in.Price, IsActive: true}, nil
	}

	svc, err := f.catalog.Create(context.Background(), domain.ServiceInput{Name: " Yoga class ", Description: "A long enough description", Price: 25})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if svc.Name != "Yoga class" {
		t.Fatalf("name not trimmed: %q", svc.Name)
	}
	mine := f.serviceStore.Mine.Items()
	if len(mine) != 1 || mine[0].ID != "s9" {
		t.Fatalf("created service not in my services: %+v", mine)
	}
	if len(f.cache.patterns) == 0 || !strings.HasPrefix(f.cache.patterns[0], "/services") {
		t.Fatalf("expected services cache invalidation, got %v", f.cache.patterns)
	}
}

func TestCatalogService_UpdateDeleteStatus(t *testing.T) {
	f := newFixture(t)
	f.signIn(domain.UserTypeProvider, 0)
	f.services.mineFn = func(context.Context) ([]domain.Service, error) {
		return []domain.Service{{ID: "s1", Name: "Old", IsActive: true}, {ID: "s2", Name: "Other"}}, nil
	}
	f.services.updateFn = func(_ context.Context, id string, in domain.ServiceInput) (*domain.Service, error) {
		return &domain.Service{ID: id, Name: in.Name, Price: in.Price}, nil
	}
	f.services.setStatusFn = func(_ context.Context, id string, active bool) (*domain.Service, error) {
		return &domain.Service{}, nil
	}
	f.services.deleteFn = func(context.Context, string) error { return nil }

	if _, err := f.catalog.MyServices(context.Background()); err != nil {
		t.Fatalf("MyServices returned error: %v", err)
	}
	if _, err := f.catalog.Update(context.Background(), "s1", domain.ServiceInput{Name: "New name", Description: "A long enough description", Price: 30}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if _, err := f.catalog.SetStatus(context.Background(), "s1", false); err != nil {
		t.Fatalf("SetStatus returned error: %v", err)
	}
	mine := f.serviceStore.Mine.Items()
	if mine[0].ID != "s1" || mine[0].IsActive {
		t.Fatalf("service still active after SetStatus(false)")
	}

	if err := f.catalog.Delete(context.Background(), "s2"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if f.serviceStore.Mine.Len() != 1 {
		t.Fatalf("deleted service still listed")
	}

	_, err := f.catalog.Update(context.Background(), "", domain.ServiceInput{Name: "New name", Description: "A long enough description", Price: 30})
	assertType(t, err, domain.TypeValidation)
}

func TestCatalogService_SignedOut(t *testing.T) {
	f := newFixture(t)

	_, err := f.catalog.MyServices(context.Background())
	assertType(t, err, domain.TypeAuthentication)
}
