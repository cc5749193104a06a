// Package httpclient is the request execution pipeline shared by every DAO:
// cache, circuit breaker, retry, rate limiting, route resolution, the HTTP
// call and response classification.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/servicehub/marketplace-client/internal/core/domain"
	"github.com/servicehub/marketplace-client/internal/infrastructure/cache"
	"github.com/servicehub/marketplace-client/internal/metrics"
	"github.com/servicehub/marketplace-client/pkg/logger"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
	requestIDHdr   = "X-Request-ID"
)

// Config holds the executor's tunables.
type Config struct {
	BaseURL string
	// Timeout bounds each HTTP attempt.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt for
	// idempotent requests.
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// BreakerThreshold consecutive transient failures open the circuit.
	BreakerThreshold int
	// BreakerCooldown of zero keeps the circuit open until ResetBreaker.
	BreakerCooldown time.Duration
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int
	// Fallbacks overrides DefaultFallbacks when non-nil.
	Fallbacks map[string]string
}

// Options carries the executor's collaborators.
type Options struct {
	HTTPClient *http.Client
	// Cache enables caching of GET responses when set.
	Cache  *cache.Cache
	Tokens *TokenStore
	Logger zerolog.Logger
}

// UnauthorizedFunc is invoked when an authenticated request is answered 401.
type UnauthorizedFunc func(ctx context.Context, err *domain.AppError)

// ErrorFunc observes every failure the executor returns.
type ErrorFunc func(err *domain.AppError)

// Request describes one API call. Path is relative to the base URL.
type Request struct {
	Method string
	Path   string
	// Route is the path template, e.g. "/bookings/:id/cancel". It lets the
	// route table recognise the endpoint whatever the identifier looks like.
	Route string
	Query url.Values
	Body  any
	// SkipCache bypasses the cache for a GET.
	SkipCache bool
	// CacheTTL overrides the cache's default freshness window.
	CacheTTL time.Duration
	// Idempotent allows retries for methods that are not idempotent by default.
	Idempotent bool
}

func (r Request) idempotent() bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	}
	return r.Idempotent
}

// CacheKey identifies a GET in the cache: the path plus its encoded query.
// The token is not part of the key; logout clears the cache instead.
func CacheKey(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

// Client executes API requests. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	timeout time.Duration
	http    *http.Client
	tokens  *TokenStore
	routes  *RouteTable
	breaker *CircuitBreaker
	retry   RetryPolicy
	limiter *rate.Limiter
	cache   *cache.Cache
	log     zerolog.Logger

	requests atomic.Int64

	hookMu         sync.RWMutex
	onUnauthorized UnauthorizedFunc
	onError        ErrorFunc
}

// New builds a Client. An invalid BaseURL is a configuration error.
func New(cfg Config, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("httpclient: invalid base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Fallbacks == nil {
		cfg.Fallbacks = DefaultFallbacks()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Tokens == nil {
		opts.Tokens = NewTokenStore()
	}

	c := &Client{
		base:    base,
		timeout: cfg.Timeout,
		http:    opts.HTTPClient,
		tokens:  opts.Tokens,
		routes:  NewRouteTable(cfg.Fallbacks),
		breaker: NewCircuitBreaker("api", cfg.BreakerThreshold, cfg.BreakerCooldown),
		cache:   opts.Cache,
		log:     logger.WithComponent(opts.Logger, "executor"),
	}
	c.retry = RetryPolicy{
		MaxAttempts: cfg.MaxRetries + 1,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			ae := domain.Normalize(err)
			metrics.RetriesTotal.WithLabelValues(string(ae.Type)).Inc()
			c.log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("retrying request")
		},
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// OnUnauthorized installs the 401 hook.
func (c *Client) OnUnauthorized(fn UnauthorizedFunc) {
	c.hookMu.Lock()
	c.onUnauthorized = fn
	c.hookMu.Unlock()
}

// OnError installs a hook observing every returned failure.
func (c *Client) OnError(fn ErrorFunc) {
	c.hookMu.Lock()
	c.onError = fn
	c.hookMu.Unlock()
}

func (c *Client) BaseURL() string          { return c.base.String() }
func (c *Client) Tokens() *TokenStore      { return c.tokens }
func (c *Client) Routes() *RouteTable      { return c.routes }
func (c *Client) Breaker() *CircuitBreaker { return c.breaker }
func (c *Client) Cache() *cache.Cache      { return c.cache }

// RequestCount returns how many HTTP requests were sent.
func (c *Client) RequestCount() int64 { return c.requests.Load() }

// ResetBreaker closes the circuit.
func (c *Client) ResetBreaker() { c.breaker.Reset() }

// Do executes req and decodes the unwrapped response into out (when non-nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	data, err := c.Raw(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		ae := &domain.AppError{
			Type:    domain.TypeInternal,
			Message: "unexpected response format",
			Details: string(data),
			Err:     fmt.Errorf("decode %s %s: %w", req.Method, req.Path, err),
		}
		c.notifyError(ae)
		return ae
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, out)
}

// Raw executes req and returns the unwrapped response body. GET responses
// are served through the cache unless SkipCache is set.
func (c *Client) Raw(ctx context.Context, req Request) (json.RawMessage, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if c.cache == nil || req.Method != http.MethodGet || req.SkipCache {
		return c.execute(ctx, req)
	}

	key := CacheKey(req.Path, req.Query)
	data, err := c.cache.GetWithSWR(ctx, key, func(ctx context.Context) ([]byte, error) {
		raw, err := c.execute(ctx, req)
		return []byte(raw), err
	}, req.CacheTTL)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func (c *Client) execute(ctx context.Context, req Request) (json.RawMessage, error) {
	var out json.RawMessage
	call := func(ctx context.Context) error {
		data, err := c.send(ctx, req)
		if err != nil {
			return err
		}
		out = data
		return nil
	}

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		if req.idempotent() {
			return Retry(ctx, c.retry, call)
		}
		return call(ctx)
	})
	if err != nil {
		ae := domain.Normalize(err)
		c.notifyError(ae)
		return nil, ae
	}
	return out, nil
}

type response struct {
	status int
	body   []byte
	authed bool
}

// send performs one logical attempt, following route fallbacks on 404s that
// mean the endpoint itself is missing.
func (c *Client) send(ctx context.Context, req Request) (json.RawMessage, error) {
	path := c.routes.Resolve(req.Path)
	route := req.Route
	if path != req.Path {
		route = ""
	}
	visited := map[string]bool{}

	for hop := 0; ; hop++ {
		visited[routeKey(path)] = true
		known := route
		if known == "" {
			known = path
		}

		resp, err := c.roundTrip(ctx, req, path)
		if err != nil {
			return nil, err
		}
		if resp.status >= 200 && resp.status < 300 {
			c.routes.MarkKnown(req.Method, known)
			return unwrapData(resp.body), nil
		}

		ae := errorFromResponse(resp.status, resp.body)
		if resp.status != http.StatusNotFound {
			c.routes.MarkKnown(req.Method, known)
			if resp.status == http.StatusUnauthorized && resp.authed {
				c.unauthorized(ctx, ae)
			}
			return nil, ae
		}

		decision := c.routes.Classify(req.Method, path, route, resp.status)
		if decision.Outcome != RouteMissing {
			return nil, ae
		}
		c.routes.MarkMissing(path)
		ae.Code = domain.CodeRouteNotFound

		next := decision.Fallback
		if next == "" || hop+1 >= maxFallbackHops || visited[routeKey(next)] {
			return nil, ae
		}
		metrics.RouteFallbacksTotal.WithLabelValues(routeLabel(path)).Inc()
		c.log.Info().Str("from", path).Str("to", next).Msg("route missing, using fallback")
		path, route = next, ""
	}
}

func (c *Client) roundTrip(ctx context.Context, req Request, path string) (*response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, transportError(err)
		}
	}

	target := c.buildURL(path, req.Query)

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &domain.AppError{Type: domain.TypeInternal, Message: "could not encode request", Err: err}
		}
		body = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, &domain.AppError{Type: domain.TypeInternal, Message: "could not build request", Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	token := c.tokens.Token()
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set(requestIDHdr, requestID)

	label := routeLabel(path)
	c.requests.Add(1)
	start := time.Now()
	c.log.Debug().Str("method", req.Method).Str("url", target).Str("request_id", requestID).Msg("request")

	resp, err := c.http.Do(httpReq)
	elapsed := time.Since(start)
	metrics.RequestDuration.WithLabelValues(req.Method).Observe(elapsed.Seconds())
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(req.Method, label, "error").Inc()
		c.log.Warn().Err(err).Str("method", req.Method).Str("url", target).Dur("elapsed", elapsed).Msg("request failed")
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(req.Method, label, "error").Inc()
		return nil, transportError(err)
	}
	metrics.RequestsTotal.WithLabelValues(req.Method, label, strconv.Itoa(resp.StatusCode)).Inc()

	c.log.Debug().
		Str("method", req.Method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Str("request_id", requestID).
		Msg("response")
	c.log.Trace().Str("request_id", requestID).RawJSON("body", jsonOrQuoted(data)).Msg("response body")

	return &response{status: resp.StatusCode, body: data, authed: token != ""}, nil
}

// buildURL joins path to the base URL. A query carried by path (fallback
// routes may have one) is merged with query.
func (c *Client) buildURL(path string, query url.Values) string {
	p, rawQuery, _ := strings.Cut(path, "?")
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(p, "/")
	u.RawPath = ""

	q, _ := url.ParseQuery(rawQuery)
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) unauthorized(ctx context.Context, ae *domain.AppError) {
	c.hookMu.RLock()
	fn := c.onUnauthorized
	c.hookMu.RUnlock()
	if fn != nil {
		fn(ctx, ae)
	}
}

func (c *Client) notifyError(ae *domain.AppError) {
	c.hookMu.RLock()
	fn := c.onError
	c.hookMu.RUnlock()
	if fn != nil {
		fn(ae)
	}
}

// transportError classifies a failure that produced no HTTP answer.
func transportError(err error) *domain.AppError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return &domain.AppError{Type: domain.TypeNetwork, Code: domain.CodeTimeout, Message: "request timed out", Err: err}
	case errors.Is(err, context.Canceled):
		return &domain.AppError{Type: domain.TypeNetwork, Message: "request cancelled", Err: err}
	default:
		return &domain.AppError{Type: domain.TypeNetwork, Message: "unable to reach the server", Err: err}
	}
}

func jsonOrQuoted(data []byte) []byte {
	if json.Valid(data) {
		return data
	}
	quoted, _ := json.Marshal(string(data))
	return quoted
}
