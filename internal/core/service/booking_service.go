package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/servicehub/marketplace-client/internal/core/domain"
	"github.com/servicehub/marketplace-client/internal/core/ports"
	"github.com/servicehub/marketplace-client/internal/core/store"
	"github.com/servicehub/marketplace-client/internal/metrics"
)

const bookingRejectedMsg = "The booking could not be created. Check that the service is still available and try again."

// BookingService books services and manages the user's bookings.
type BookingService struct {
	api      ports.BookingAPI
	services ports.ServiceAPI
	auth     *AuthService
	bookings *store.BookingStore
	txs      *store.TransactionStore
	cache    ports.CacheInvalidator
	logger   zerolog.Logger
}

func NewBookingService(
	api ports.BookingAPI,
	services ports.ServiceAPI,
	auth *AuthService,
	bookings *store.BookingStore,
	txs *store.TransactionStore,
	cache ports.CacheInvalidator,
	logger zerolog.Logger,
) *BookingService {
	return &BookingService{
		api:      api,
		services: services,
		auth:     auth,
		bookings: bookings,
		txs:      txs,
		cache:    cache,
		logger:   logger,
	}
}

// Create books a service. The submission moves through
// idle → validating → submitting → committed; any failure returns the flow
// to idle. A balance that cannot cover the price is rejected locally with
// the exact shortfall and no request is sent. On success the booking, its
// payment and the new balance are visible in the stores before Create
// returns.
func (s *BookingService) Create(ctx context.Context, input domain.CreateBookingInput) (*domain.BookingResult, error) {
	flow := &s.bookings.Flow
	if err := flow.Start(); err != nil {
		return nil, err
	}
	res, err := s.create(ctx, input)
	if err != nil {
		flow.Fail(err)
		return nil, err
	}
	return res, nil
}

func (s *BookingService) create(ctx context.Context, input domain.CreateBookingInput) (*domain.BookingResult, error) {
	user, err := s.auth.authorize(domain.ActionCreateBooking)
	if err != nil {
		return nil, err
	}
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	price := input.Price
	if price <= 0 {
		svc, err := s.services.Get(ctx, input.ServiceID)
		if err != nil {
			return nil, fail(err)
		}
		price = svc.Price
	}
	if err := checkBalance(user.Balance, price); err != nil {
		return nil, err
	}

	if err := s.bookings.Flow.Submit(); err != nil {
		return nil, fail(err)
	}
	res, err := s.api.Create(ctx, input)
	if err != nil {
		ae := domain.Normalize(err)
		if ae.Type == domain.TypeValidation && ae.Status == 400 {
			ae = ae.WithMessage(bookingRejectedMsg)
		}
		return nil, ae
	}

	s.bookings.Mine.Prepend(res.Booking)
	if res.Transaction.ID != "" {
		s.txs.Record(res.Transaction)
	}
	newBalance := float64(domain.Cents(user.Balance)-domain.Cents(price)) / 100
	if res.NewBalance != nil {
		newBalance = *res.NewBalance
	}
	s.auth.setBalance(ctx, newBalance)
	if err := s.bookings.Flow.Commit(); err != nil {
		s.logger.Warn().Err(err).Msg("booking flow out of step")
	}

	metrics.BookingsCreatedTotal.Inc()
	invalidate(ctx, s.cache, s.logger, bookingWrites...)
	s.logger.Info().
		Str("booking_id", res.Booking.ID).
		Str("service_id", input.ServiceID).
		Str("amount", domain.FormatAmount(price)).
		Msg("booking created")
	return res, nil
}

// checkBalance rejects a booking the balance cannot cover.
func checkBalance(balance, price float64) error {
	short := domain.Shortfall(balance, price)
	if short <= 0 {
		return nil
	}
	return &domain.AppError{
		Type: domain.TypeInsufficientBalance,
		Message: fmt.Sprintf("Insufficient balance: you need %s more (balance %s, price %s)",
			domain.FormatAmount(short), domain.FormatAmount(balance), domain.FormatAmount(price)),
		Details: map[string]string{
			"balance":   domain.FormatAmount(balance),
			"price":     domain.FormatAmount(price),
			"shortfall": domain.FormatAmount(short),
		},
	}
}

// MyBookings loads the user's current bookings.
func (s *BookingService) MyBookings(ctx context.Context) ([]domain.Booking, error) {
	if _, err := s.auth.authorize(domain.ActionViewBookings); err != nil {
		return nil, err
	}
	seq := s.bookings.Mine.Begin()
	items, err := s.api.Mine(ctx)
	if err != nil {
		err = fail(err)
		s.bookings.Mine.Fail(seq, err)
		return nil, err
	}
	s.bookings.Mine.Commit(seq, items, 0)
	return items, nil
}

// History loads one page of past bookings starting at offset.
func (s *BookingService) History(ctx context.Context, offset int) (*domain.Page[domain.Booking], error) {
	if _, err := s.auth.authorize(domain.ActionViewBookings); err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, domain.Validationf("offset must be at least 0")
	}
	seq := s.bookings.History.Begin()
	page, err := s.api.History(ctx, offset, domain.DefaultPageSize)
	if err != nil {
		err = fail(err)
		s.bookings.History.Fail(seq, err)
		return nil, err
	}
	s.bookings.History.CommitPage(seq, page)
	return page, nil
}

// Cancel cancels a confirmed booking. A booking already known to be
// cancelled is rejected without a request.
func (s *BookingService) Cancel(ctx context.Context, input domain.CancelBookingInput) (*domain.CancelResult, error) {
	if _, err := s.auth.authorize(domain.ActionCancelBooking); err != nil {
		return nil, err
	}
	if err := domain.Validate(input); err != nil {
		return nil, err
	}
	known, isKnown := s.bookings.Find(input.BookingID)
	if isKnown && !known.CanCancel() {
		return nil, &domain.AppError{
			Type:    domain.TypeValidation,
			Message: "only confirmed bookings can be cancelled",
			Err:     domain.ErrBookingNotCancellable,
		}
	}

	res, err := s.api.Cancel(ctx, input)
	if err != nil {
		return nil, fail(err)
	}

	b := res.Booking
	if b.ID == "" {
		b = known
		b.ID = input.BookingID
	}
	if b.Status == "" || b.Status == domain.BookingConfirmed {
		b.Status = domain.BookingCancelled
	}
	if b.CancellationReason == "" {
		b.CancellationReason = input.Reason
	}
	res.Booking = b
	s.bookings.Upsert(b)

	if res.Refund != nil {
		s.txs.Record(*res.Refund)
	}
	if res.NewBalance != nil {
		s.auth.setBalance(ctx, *res.NewBalance)
	}
	invalidate(ctx, s.cache, s.logger, bookingWrites...)
	s.logger.Info().Str("booking_id", b.ID).Msg("booking cancelled")
	return res, nil
}
