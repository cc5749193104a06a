package httpclient

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// maxFallbackHops bounds how many fallback routes one request may follow.
const maxFallbackHops = 3

// RouteOutcome classifies what an HTTP answer says about the route itself.
type RouteOutcome int

const (
	// RouteFound means the endpoint exists (any non-404 answer).
	RouteFound RouteOutcome = iota
	// RouteMissing means the endpoint is not deployed; a fallback may apply.
	RouteMissing
	// ResourceMissing means the endpoint exists but the addressed instance does not.
	ResourceMissing
)

func (o RouteOutcome) String() string {
	switch o {
	case RouteFound:
		return "found"
	case RouteMissing:
		return "missing_route"
	case ResourceMissing:
		return "missing_resource"
	default:
		return "unknown"
	}
}

// RouteDecision is the classifier's verdict. Fallback is set only for
// RouteMissing when an alternate path is configured.
type RouteDecision struct {
	Outcome  RouteOutcome
	Fallback string
}

// DefaultFallbacks maps endpoints that differ between server deployments to
// the path to try when they are missing.
func DefaultFallbacks() map[string]string {
	return map[string]string{
		"/services/my":          "/services/my-services",
		"/services/my-services": "/services?provider=current",
	}
}

// RouteTable remembers which paths answered and which were reported missing.
// State lives until Reset or until the owning client is discarded.
type RouteTable struct {
	mu        sync.RWMutex
	known     map[string]struct{}
	missing   map[string]struct{}
	fallbacks map[string]string
}

// NewRouteTable builds a table with the given fallback mapping. Keys and
// values are request paths; values may carry a query string.
func NewRouteTable(fallbacks map[string]string) *RouteTable {
	fb := make(map[string]string, len(fallbacks))
	for from, to := range fallbacks {
		fb[routeKey(from)] = to
	}
	return &RouteTable{
		known:     make(map[string]struct{}),
		missing:   make(map[string]struct{}),
		fallbacks: fb,
	}
}

// MarkKnown records that route answered method with a non-404 status. route
// is a request path or a template such as "/bookings/:id/cancel"; identifier
// segments are collapsed so every instance of a resource shares one entry.
func (t *RouteTable) MarkKnown(method, route string) {
	t.mu.Lock()
	t.known[knownKey(method, route)] = struct{}{}
	delete(t.missing, routeKey(route))
	t.mu.Unlock()
}

// MarkMissing records that path is not deployed.
func (t *RouteTable) MarkMissing(path string) {
	key := routeKey(path)
	t.mu.Lock()
	t.missing[key] = struct{}{}
	t.mu.Unlock()
}

// IsMissing reports whether path was flagged missing.
func (t *RouteTable) IsMissing(path string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.missing[routeKey(path)]
	return ok
}

// IsKnown reports whether route answered method before.
func (t *RouteTable) IsKnown(method, route string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.known[knownKey(method, route)]
	return ok
}

// Fallback returns the configured alternate for path.
func (t *RouteTable) Fallback(path string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fb, ok := t.fallbacks[routeKey(path)]
	return fb, ok
}

// Resolve returns the path to request instead of path: the fallback chain is
// followed while the current hop is flagged missing.
func (t *RouteTable) Resolve(path string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	current := path
	for hop := 0; hop < maxFallbackHops; hop++ {
		key := routeKey(current)
		if _, missing := t.missing[key]; !missing {
			return current
		}
		next, ok := t.fallbacks[key]
		if !ok {
			return current
		}
		current = next
	}
	return current
}

// Reset forgets every known and missing path. Fallbacks are kept.
func (t *RouteTable) Reset() {
	t.mu.Lock()
	t.known = make(map[string]struct{})
	t.missing = make(map[string]struct{})
	t.mu.Unlock()
}

// Classify decides what a response status to method on path says about the
// route. route is the template the caller requested (empty means path).
//
// A 404 is a missing resource, which never falls back, when the route
// answered this method before or when any segment of path looks like an
// identifier. Any other 404 is a missing route.
//
// The identifier heuristic can misclassify a route with a numeric segment
// (e.g. "/v2/reports/2024") as a missing resource; such paths must be marked
// known or given explicit fallbacks.
func (t *RouteTable) Classify(method, path, route string, status int) RouteDecision {
	if status != 404 {
		return RouteDecision{Outcome: RouteFound}
	}
	if route == "" {
		route = path
	}
	if t.IsKnown(method, route) || addressesResource(path) {
		return RouteDecision{Outcome: ResourceMissing}
	}
	fb, _ := t.Fallback(path)
	return RouteDecision{Outcome: RouteMissing, Fallback: fb}
}

func knownKey(method, route string) string {
	return method + " " + routeLabel(route)
}

// addressesResource reports whether any segment of path is identifier-shaped.
func addressesResource(path string) bool {
	for _, seg := range strings.Split(routeKey(path), "/") {
		if looksLikeID(seg) {
			return true
		}
	}
	return false
}

func routeKey(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// looksLikeID reports whether seg is shaped like a resource identifier:
// a UUID, a 24-char hex object id, or an all-digit number.
func looksLikeID(seg string) bool {
	if seg == "" {
		return false
	}
	if _, err := uuid.Parse(seg); err == nil && len(seg) >= 32 {
		return true
	}
	if len(seg) == 24 && isHex(seg) {
		return true
	}
	return isDigits(seg)
}

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// routeLabel collapses identifier segments so metric cardinality stays bounded.
func routeLabel(path string) string {
	parts := strings.Split(routeKey(path), "/")
	for i, p := range parts {
		if looksLikeID(p) {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
