// Package service holds the use cases the front-ends call. Each operation
// runs an advisory capability check, validates locally, calls the remote
// resource, commits the answer to the state stores and invalidates the
// cached reads it made stale. Every failure is returned as *domain.AppError.
package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/servicehub/marketplace-client/internal/core/domain"
	"github.com/servicehub/marketplace-client/internal/core/ports"
)

// Cached read prefixes made stale by each kind of write.
var (
	serviceWrites = []string{"/services*"}
	bookingWrites = []string{"/bookings*", "/transactions*", "/users/balance*"}
	balanceWrites = []string{"/users/balance*", "/transactions*"}
)

// fail normalizes err into the shared error shape, keeping nil as nil.
func fail(err error) error {
	if err == nil {
		return nil
	}
	return domain.Normalize(err)
}

// invalidate drops cached reads matching patterns. Failures only cost a
// stale read, so they are logged and swallowed.
func invalidate(ctx context.Context, cache ports.CacheInvalidator, log zerolog.Logger, patterns ...string) {
	if cache == nil {
		return
	}
	for _, p := range patterns {
		if _, err := cache.InvalidatePattern(ctx, p); err != nil {
			log.Warn().Err(err).Str("pattern", p).Msg("cache invalidation failed")
		}
	}
}

func requireID(name, id string) error {
	if id == "" {
		return domain.Validationf("%s is required", name)
	}
	return nil
}
