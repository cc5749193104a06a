package dao

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/servicehub/marketplace-client/internal/core/domain"
	"github.com/servicehub/marketplace-client/internal/infrastructure/httpclient"
)

type BookingDAO struct {
	exec Executor
}

func NewBookingDAO(exec Executor) *BookingDAO { return &BookingDAO{exec: exec} }

type bookingWire struct {
	Booking     *domain.Booking     `json:"booking"`
	Transaction *domain.Transaction `json:"transaction"`
	Refund      *domain.Transaction `json:"refund"`
	balanceWire
}

func (d *BookingDAO) Create(ctx context.Context, input domain.CreateBookingInput) (*domain.BookingResult, error) {
	var raw json.RawMessage
	if err := d.exec.Do(ctx, httpclient.Request{Method: http.MethodPost, Path: "/bookings", Body: input}, &raw); err != nil {
		return nil, err
	}
	var w bookingWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, decodeErr(err)
	}
	res := &domain.BookingResult{}
	if w.Booking != nil {
		res.Booking = *w.Booking
	} else if err := json.Unmarshal(raw, &res.Booking); err != nil {
		return nil, decodeErr(err)
	}
	if w.Transaction != nil {
		res.Transaction = *w.Transaction
	}
	if v, ok := w.value(); ok {
		res.NewBalance = &v
	}
	return res, nil
}

func (d *BookingDAO) Mine(ctx context.Context) ([]domain.Booking, error) {
	var raw json.RawMessage
	if err := d.exec.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/bookings/my"}, &raw); err != nil {
		return nil, err
	}
	page, err := decodeList[domain.Booking](raw, 0, 0, "bookings")
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (d *BookingDAO) History(ctx context.Context, offset, limit int) (*domain.Page[domain.Booking], error) {
	var raw json.RawMessage
	req := httpclient.Request{Method: http.MethodGet, Path: "/bookings/history", Query: pageQuery(offset, limit)}
	if err := d.exec.Do(ctx, req, &raw); err != nil {
		return nil, err
	}
	return decodeList[domain.Booking](raw, offset, limit, "bookings")
}

// Cancel uses PATCH and retries once with PUT when the server has no PATCH
// route for cancellation.
func (d *BookingDAO) Cancel(ctx context.Context, input domain.CancelBookingInput) (*domain.CancelResult, error) {
	path := "/bookings/" + pathID(input.BookingID) + "/cancel"
	body := map[string]string{}
	if input.Reason != "" {
		body["reason"] = input.Reason
	}

	var raw json.RawMessage
	err := d.exec.Do(ctx, httpclient.Request{Method: http.MethodPatch, Path: path, Route: cancelRoute, Body: body}, &raw)
	if routeMissing(err) {
		err = d.exec.Do(ctx, httpclient.Request{Method: http.MethodPut, Path: path, Route: cancelRoute, Body: body}, &raw)
	}
	if err != nil {
		return nil, err
	}

	var w bookingWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, decodeErr(err)
	}
	res := &domain.CancelResult{}
	if w.Booking != nil {
		res.Booking = *w.Booking
	} else if err := json.Unmarshal(raw, &res.Booking); err != nil {
		return nil, decodeErr(err)
	}
	switch {
	case w.Refund != nil:
		res.Refund = w.Refund
	case w.Transaction != nil:
		res.Refund = w.Transaction
	}
	if v, ok := w.value(); ok {
		res.NewBalance = &v
	}
	return res, nil
}

const cancelRoute = "/bookings/:id/cancel"

func routeMissing(err error) bool {
	var ae *domain.AppError
	return errors.As(err, &ae) && ae.Type == domain.TypeNotFound && ae.Code == domain.CodeRouteNotFound
}
