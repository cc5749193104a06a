// Package store holds the client-side state slices the services commit
// results into. Every store is safe for concurrent use.
package store

import (
	"slices"
	"sync"

	"github.com/servicehub/marketplace-client/internal/core/domain"
)

// List is a paginated collection fenced by request sequence numbers: only
// the most recently begun request may commit, so a slow response can never
// overwrite a newer one.
type List[T any] struct {
	mu      sync.RWMutex
	seq     uint64
	items   []T
	loading bool
	err     error
	total   int
	hasMore bool
	loaded  bool
}

// Begin starts a load and returns its sequence number.
func (l *List[T]) Begin() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	l.loading = true
	l.err = nil
	return l.seq
}

// Commit applies items from request seq. Offset 0 replaces the list, any
// other offset appends. It reports false when seq was superseded.
func (l *List[T]) Commit(seq uint64, items []T, offset int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq != l.seq {
		return false
	}
	if offset == 0 {
		l.items = slices.Clone(items)
	} else {
		l.items = append(l.items, items...)
	}
	l.total = len(l.items)
	l.hasMore = false
	l.loading = false
	l.loaded = true
	l.err = nil
	return true
}

// CommitPage is Commit with the page's pagination metadata.
func (l *List[T]) CommitPage(seq uint64, page *domain.Page[T]) bool {
	if page == nil {
		return l.Commit(seq, nil, 0)
	}
	if !l.Commit(seq, page.Items, page.Offset) {
		return false
	}
	l.mu.Lock()
	if page.Total > l.total {
		l.total = page.Total
	}
	l.hasMore = page.HasMore
	l.mu.Unlock()
	return true
}

// Fail records err for request seq. Existing items are kept.
func (l *List[T]) Fail(seq uint64, err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq != l.seq {
		return false
	}
	l.loading = false
	l.err = err
	return true
}

// Prepend inserts item at the head, as a newly created entity appears first.
func (l *List[T]) Prepend(item T) {
	l.mu.Lock()
	l.items = append([]T{item}, l.items...)
	l.total++
	l.mu.Unlock()
}

// Update replaces every item matching match with fn(item) and reports
// whether any matched.
func (l *List[T]) Update(match func(T) bool, fn func(T) T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	found := false
	for i, it := range l.items {
		if match(it) {
			l.items[i] = fn(it)
			found = true
		}
	}
	return found
}

// Remove drops every item matching match and returns how many were dropped.
func (l *List[T]) Remove(match func(T) bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	before := len(l.items)
	l.items = slices.DeleteFunc(l.items, match)
	n := before - len(l.items)
	l.total -= n
	if l.total < len(l.items) {
		l.total = len(l.items)
	}
	return n
}

// Find returns the first item matching match.
func (l *List[T]) Find(match func(T) bool) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, it := range l.items {
		if match(it) {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Items returns a copy of the current items.
func (l *List[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.items)
}

func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

func (l *List[T]) Loading() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loading
}

// Loaded reports whether any request has committed since the last Reset.
func (l *List[T]) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}

func (l *List[T]) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

func (l *List[T]) Total() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

func (l *List[T]) HasMore() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hasMore
}

// Reset empties the list and fences off any request still in flight.
func (l *List[T]) Reset() {
	l.mu.Lock()
	l.seq++
	l.items = nil
	l.loading = false
	l.err = nil
	l.total = 0
	l.hasMore = false
	l.loaded = false
	l.mu.Unlock()
}
