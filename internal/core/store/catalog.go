package store

import (
	"sync"

	"github.com/servicehub/marketplace-client/internal/core/domain"
)

// ServiceStore holds the public catalog, the provider's own services and
// the active catalog filters.
type ServiceStore struct {
	Catalog List[domain.Service]
	Mine    List[domain.Service]

	mu      sync.RWMutex
	filters domain.ServiceFilters
}

func NewServiceStore() *ServiceStore {
	return &ServiceStore{filters: domain.DefaultServiceFilters()}
}

func (s *ServiceStore) Filters() domain.ServiceFilters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// SetFilters installs f and reports whether it differs from the previous
// filters.
func (s *ServiceStore) SetFilters(f domain.ServiceFilters) bool {
	if f.Limit <= 0 {
		f.Limit = domain.DefaultPageSize
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.filters != f
	s.filters = f
	return changed
}

// ResetFilters restores the defaults and reports whether anything changed.
func (s *ServiceStore) ResetFilters() bool {
	return s.SetFilters(domain.DefaultServiceFilters())
}

// Upsert replaces svc in both lists wherever its id appears.
func (s *ServiceStore) Upsert(svc domain.Service) {
	match := func(it domain.Service) bool { return it.ID == svc.ID }
	replace := func(domain.Service) domain.Service { return svc }
	s.Catalog.Update(match, replace)
	s.Mine.Update(match, replace)
}

// Drop removes the service with id from both lists.
func (s *ServiceStore) Drop(id string) {
	match := func(it domain.Service) bool { return it.ID == id }
	s.Catalog.Remove(match)
	s.Mine.Remove(match)
}

// Reset clears everything, including filters.
func (s *ServiceStore) Reset() {
	s.Catalog.Reset()
	s.Mine.Reset()
	s.ResetFilters()
}
