// Package cache implements a TTL cache with stale-while-revalidate reads over
// a pluggable Store (in-process memory or Redis).
package cache

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/servicehub/marketplace-client/internal/metrics"
)

// DefaultTTL is how long an entry stays fresh when the caller gives no TTL.
const DefaultTTL = 5 * time.Minute

// Entry is a cached value with its freshness boundaries. An entry is fresh
// before StaleAt, servable-while-revalidating before ExpiresAt, and gone after.
type Entry struct {
	Value     []byte    `json:"value"`
	StaleAt   time.Time `json:"staleAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Fresh reports whether the entry may be served without revalidation.
func (e Entry) Fresh(now time.Time) bool { return now.Before(e.StaleAt) }

// Expired reports whether the entry is past its hard expiry.
func (e Entry) Expired(now time.Time) bool { return !now.Before(e.ExpiresAt) }

// Store is the persistence behind a Cache.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
	Delete(ctx context.Context, key string) error
	// DeleteMatching removes every key matching a glob pattern.
	DeleteMatching(ctx context.Context, pattern string) (int, error)
	Clear(ctx context.Context) error
}

// Loader produces a fresh value for a key.
type Loader func(ctx context.Context) ([]byte, error)

// Refresher runs background revalidations. Submit reports whether the job
// was accepted.
type Refresher interface {
	Submit(key string, job func(ctx context.Context)) bool
}

// Options configures a Cache.
type Options struct {
	// TTL is the default freshness window.
	TTL time.Duration
	// StaleWindow is how long after TTL a value may still be served while it
	// is refreshed in the background. Defaults to TTL.
	StaleWindow time.Duration
	// Refresher runs background refreshes. Defaults to one goroutine per job.
	Refresher Refresher
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	store     Store
	ttl       time.Duration
	stale     time.Duration
	refresher Refresher
	log       zerolog.Logger
	now       func() time.Time

	group      singleflight.Group
	refreshing sync.Map
}

// New builds a Cache over store.
func New(store Store, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.StaleWindow < 0 {
		opts.StaleWindow = 0
	} else if opts.StaleWindow == 0 {
		opts.StaleWindow = opts.TTL
	}
	if opts.Refresher == nil {
		opts.Refresher = &goRefresher{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		store:     store,
		ttl:       opts.TTL,
		stale:     opts.StaleWindow,
		refresher: opts.Refresher,
		log:       opts.Logger,
		now:       opts.Now,
	}
}

// Get returns the value for key unless it is missing or hard-expired.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	e, ok := c.lookup(ctx, key)
	if !ok || e.Expired(c.now()) {
		return nil, false
	}
	return bytes.Clone(e.Value), true
}

// Set stores value under key, fresh for ttl (DefaultTTL when ttl <= 0).
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now()
	return c.store.Set(ctx, key, Entry{
		Value:     bytes.Clone(value),
		StaleAt:   now.Add(ttl),
		ExpiresAt: now.Add(ttl + c.stale),
	})
}

// GetWithSWR returns a fresh cached value as-is; a stale value immediately
// while refreshing it in the background; otherwise it blocks on loader.
func (c *Cache) GetWithSWR(ctx context.Context, key string, loader Loader, ttl time.Duration) ([]byte, error) {
	now := c.now()
	if e, ok := c.lookup(ctx, key); ok {
		switch {
		case e.Fresh(now):
			metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
			return bytes.Clone(e.Value), nil
		case !e.Expired(now):
			metrics.CacheLookupsTotal.WithLabelValues("stale").Inc()
			c.revalidate(key, loader, ttl)
			return bytes.Clone(e.Value), nil
		}
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	return c.load(ctx, key, loader, ttl)
}

// Invalidate removes one key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// InvalidatePattern removes every key matching pattern. Glob syntax
// (*, ?, [...]) is honoured; a plain string matches keys containing it.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	n, err := c.store.DeleteMatching(ctx, normalizePattern(pattern))
	if err == nil && n > 0 {
		c.log.Debug().Str("pattern", pattern).Int("removed", n).Msg("cache invalidated")
	}
	return n, err
}

// Clear empties the cache.
func (c *Cache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// Wait blocks until in-flight background refreshes finish, when the
// refresher supports it.
func (c *Cache) Wait() {
	if w, ok := c.refresher.(interface{ Wait() }); ok {
		w.Wait()
	}
}

func (c *Cache) lookup(ctx context.Context, key string) (Entry, bool) {
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		return Entry{}, false
	}
	return e, ok
}

// load collapses concurrent loads of one key into a single loader call.
func (c *Cache) load(ctx context.Context, key string, loader Loader, ttl time.Duration) ([]byte, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		if setErr := c.Set(ctx, key, value, ttl); setErr != nil {
			c.log.Warn().Err(setErr).Str("key", key).Msg("cache write failed")
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return bytes.Clone(v.([]byte)), nil
}

func (c *Cache) revalidate(key string, loader Loader, ttl time.Duration) {
	if _, busy := c.refreshing.LoadOrStore(key, struct{}{}); busy {
		return
	}
	accepted := c.refresher.Submit(key, func(ctx context.Context) {
		defer c.refreshing.Delete(key)
		if _, err := c.load(ctx, key, loader, ttl); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("background refresh failed")
		}
	})
	if !accepted {
		c.refreshing.Delete(key)
	}
}

func normalizePattern(p string) string {
	if strings.ContainsAny(p, "*?[") {
		return p
	}
	return "*" + p + "*"
}

// goRefresher runs each job on its own goroutine.
type goRefresher struct {
	wg sync.WaitGroup
}

func (r *goRefresher) Submit(_ string, job func(ctx context.Context)) bool {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		job(context.Background())
	}()
	return true
}

func (r *goRefresher) Wait() { r.wg.Wait() }
