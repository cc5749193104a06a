package domain

import (
	"errors"
	"time"
)

// BookingStatus represents the lifecycle state of a booking.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

var ErrBookingNotCancellable = errors.New("booking is not cancellable")

// validBookingTransitions defines the allowed state machine transitions.
// confirmed → cancelled is one-way.
var validBookingTransitions = map[BookingStatus][]BookingStatus{
	BookingConfirmed: {BookingCancelled},
}

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range validBookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Booking is a reservation of a service by a client.
type Booking struct {
	ID                 string        `json:"id"`
	ClientID           string        `json:"clientId"`
	ServiceID          string        `json:"serviceId"`
	ProviderID         string        `json:"providerId"`
	ServiceName        string        `json:"serviceName,omitempty"`
	Amount             float64       `json:"amount"`
	Status             BookingStatus `json:"status"`
	CreatedAt          time.Time     `json:"createdAt"`
	CancelledAt        *time.Time    `json:"cancelledAt,omitempty"`
	CancellationReason string        `json:"cancellationReason,omitempty"`
}

// CanCancel reports whether the booking may still be cancelled.
func (b Booking) CanCancel() bool {
	return b.Status.CanTransitionTo(BookingCancelled)
}

// CreateBookingInput identifies the service to book. Price is optional; when
// zero the service is looked up to run the balance pre-flight.
type CreateBookingInput struct {
	ServiceID string  `json:"serviceId" validate:"required"`
	Price     float64 `json:"-"         validate:"finite,gte=0"`
}

// CancelBookingInput carries the cancellation request.
type CancelBookingInput struct {
	BookingID string `json:"-"                validate:"required"`
	Reason    string `json:"reason,omitempty" validate:"max=500"`
}

// BookingResult is the server's answer to a booking creation. NewBalance is
// nil when the server did not report it.
type BookingResult struct {
	Booking     Booking     `json:"booking"`
	Transaction Transaction `json:"transaction"`
	NewBalance  *float64    `json:"newBalance,omitempty"`
}

// CancelResult is the server's answer to a cancellation. Refund is nil when
// the server issued none.
type CancelResult struct {
	Booking    Booking      `json:"booking"`
	Refund     *Transaction `json:"refund,omitempty"`
	NewBalance *float64     `json:"newBalance,omitempty"`
}

// BookingFlowState is the client-side state of a booking submission.
type BookingFlowState string

const (
	FlowIdle       BookingFlowState = "idle"
	FlowValidating BookingFlowState = "validating"
	FlowSubmitting BookingFlowState = "submitting"
	FlowCommitted  BookingFlowState = "committed"
)
