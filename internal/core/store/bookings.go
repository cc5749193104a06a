package store

import (
	"fmt"
	"sync"

	"github.com/servicehub/marketplace-client/internal/core/domain"
)

// BookingStore holds the user's bookings and the state of the booking form.
type BookingStore struct {
	Mine    List[domain.Booking]
	History List[domain.Booking]
	Flow    BookingFlow
}

func NewBookingStore() *BookingStore { return &BookingStore{} }

// Upsert replaces b wherever its id appears.
func (s *BookingStore) Upsert(b domain.Booking) {
	match := func(it domain.Booking) bool { return it.ID == b.ID }
	replace := func(domain.Booking) domain.Booking { return b }
	s.Mine.Update(match, replace)
	s.History.Update(match, replace)
}

// Find looks a booking up by id in either list.
func (s *BookingStore) Find(id string) (domain.Booking, bool) {
	match := func(it domain.Booking) bool { return it.ID == id }
	if b, ok := s.Mine.Find(match); ok {
		return b, true
	}
	return s.History.Find(match)
}

func (s *BookingStore) Reset() {
	s.Mine.Reset()
	s.History.Reset()
	s.Flow.Reset()
}

// BookingFlow tracks one booking submission:
// idle → validating → submitting → committed, with any failure returning
// to idle and keeping the error.
type BookingFlow struct {
	mu    sync.RWMutex
	state domain.BookingFlowState
	err   error
}

var flowTransitions = map[domain.BookingFlowState][]domain.BookingFlowState{
	domain.FlowIdle:       {domain.FlowValidating},
	domain.FlowValidating: {domain.FlowSubmitting, domain.FlowIdle},
	domain.FlowSubmitting: {domain.FlowCommitted, domain.FlowIdle},
	domain.FlowCommitted:  {domain.FlowValidating, domain.FlowIdle},
}

func (f *BookingFlow) State() domain.BookingFlowState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.state == "" {
		return domain.FlowIdle
	}
	return f.state
}

func (f *BookingFlow) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.err
}

// Start moves to validating. It fails while a submission is in progress.
func (f *BookingFlow) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.move(domain.FlowValidating); err != nil {
		return &domain.AppError{Type: domain.TypeConflict, Message: "a booking is already being submitted", Err: err}
	}
	f.err = nil
	return nil
}

// Submit moves from validating to submitting.
func (f *BookingFlow) Submit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.move(domain.FlowSubmitting)
}

// Commit moves from submitting to committed.
func (f *BookingFlow) Commit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.move(domain.FlowCommitted)
}

// Fail returns to idle keeping err.
func (f *BookingFlow) Fail(err error) {
	f.mu.Lock()
	f.state = domain.FlowIdle
	f.err = err
	f.mu.Unlock()
}

func (f *BookingFlow) Reset() {
	f.mu.Lock()
	f.state = domain.FlowIdle
	f.err = nil
	f.mu.Unlock()
}

func (f *BookingFlow) move(to domain.BookingFlowState) error {
	from := f.state
	if from == "" {
		from = domain.FlowIdle
	}
	for _, allowed := range flowTransitions[from] {
		if allowed == to {
			f.state = to
			return nil
		}
	}
	return fmt.Errorf("booking flow: invalid transition %s → %s", from, to)
}
