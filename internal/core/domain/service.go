package domain

import "time"

// Service is a bookable offer published by a provider. Read-only for clients.
type Service struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Price        float64   `json:"price"`
	ProviderID   string    `json:"providerId"`
	ProviderName string    `json:"providerName"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ServiceInput is the payload for creating or editing a service.
type ServiceInput struct {
	Name        string  `json:"name"        validate:"required,min=3,max=100"`
	Description string  `json:"description" validate:"required,min=10,max=1000"`
	Price       float64 `json:"price"       validate:"finite,gt=0"`
}

// ServiceFilters are the catalog query parameters.
type ServiceFilters struct {
	Search     string  `json:"search,omitempty"`
	MinPrice   float64 `json:"minPrice,omitempty"   validate:"finite,gte=0"`
	MaxPrice   float64 `json:"maxPrice,omitempty"   validate:"finite,gte=0"`
	ProviderID string  `json:"providerId,omitempty"`
	Limit      int     `json:"limit"                validate:"gte=0,lte=100"`
	Offset     int     `json:"offset"               validate:"gte=0"`
}

// DefaultPageSize is the page length used when filters leave it unset.
const DefaultPageSize = 20

// DefaultServiceFilters returns the filter state after a reset.
func DefaultServiceFilters() ServiceFilters {
	return ServiceFilters{Limit: DefaultPageSize}
}

// Page is one slice of a paginated listing.
type Page[T any] struct {
	Items   []T
	Total   int
	Offset  int
	Limit   int
	HasMore bool
}
