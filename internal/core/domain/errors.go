package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the client-observed failure taxonomy. Every error returned by
// the request pipeline and the services carries exactly one of these values.
type ErrorType string

const (
	TypeValidation          ErrorType = "VALIDATION_ERROR"
	TypeAuthentication      ErrorType = "AUTHENTICATION_ERROR"
	TypeAuthorization       ErrorType = "AUTHORIZATION_ERROR"
	TypeNotFound            ErrorType = "NOT_FOUND"
	TypeInsufficientBalance ErrorType = "INSUFFICIENT_BALANCE"
	TypeConflict            ErrorType = "CONFLICT_ERROR"
	TypeRateLimit           ErrorType = "RATE_LIMIT_ERROR"
	TypeNetwork             ErrorType = "NETWORK_ERROR"
	TypeInternal            ErrorType = "INTERNAL_ERROR"
)

// Well-known error codes attached by the request pipeline.
const (
	CodeRouteNotFound = "ROUTE_NOT_FOUND"
	CodeCircuitOpen   = "CIRCUIT_OPEN"
	CodeTimeout       = "TIMEOUT"
)

// Sentinels for errors.Is. Matching is done on Type only.
var (
	ErrValidation          = &AppError{Type: TypeValidation}
	ErrAuthentication      = &AppError{Type: TypeAuthentication}
	ErrAuthorization       = &AppError{Type: TypeAuthorization}
	ErrNotFound            = &AppError{Type: TypeNotFound}
	ErrInsufficientBalance = &AppError{Type: TypeInsufficientBalance}
	ErrConflict            = &AppError{Type: TypeConflict}
	ErrRateLimit           = &AppError{Type: TypeRateLimit}
	ErrNetwork             = &AppError{Type: TypeNetwork}
	ErrInternal            = &AppError{Type: TypeInternal}
)

// AppError is the shared error shape surfaced to callers.
type AppError struct {
	Type    ErrorType
	Message string
	// Status is the HTTP status that produced the error, 0 for local failures.
	Status int
	// Code is the server-provided or pipeline-provided machine code, if any.
	Code    string
	Details any
	Err     error
}

// NewAppError builds an AppError with the given type and message.
func NewAppError(t ErrorType, msg string) *AppError {
	return &AppError{Type: t, Message: msg}
}

// Validationf is a shorthand for local validation failures.
func Validationf(format string, args ...any) *AppError {
	return &AppError{Type: TypeValidation, Message: fmt.Sprintf(format, args...)}
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return string(e.Type)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is reports whether target is an AppError of the same Type.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// Retryable reports whether the failure belongs to a transient class
// (network, timeout, 5xx). Validation and auth failures are never retried.
func (e *AppError) Retryable() bool {
	if e.Code == CodeCircuitOpen {
		return false
	}
	return e.Type == TypeNetwork || e.Type == TypeInternal
}

// WithMessage returns a copy of e carrying a different message. Type, status,
// code and cause are preserved.
func (e *AppError) WithMessage(msg string) *AppError {
	cp := *e
	cp.Message = msg
	return &cp
}

// AsAppError extracts an *AppError from err's chain.
func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Normalize converts any error into the shared *AppError shape. nil stays nil.
func Normalize(err error) *AppError {
	if err == nil {
		return nil
	}
	if ae, ok := AsAppError(err); ok {
		return ae
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &AppError{Type: TypeNetwork, Code: CodeTimeout, Message: "request timed out", Err: err}
	case errors.Is(err, context.Canceled):
		return &AppError{Type: TypeNetwork, Message: "request cancelled", Err: err}
	}
	return &AppError{Type: TypeInternal, Message: err.Error(), Err: err}
}

// TypeForStatus maps an HTTP status code to the taxonomy.
func TypeForStatus(status int) ErrorType {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return TypeValidation
	case status == http.StatusUnauthorized:
		return TypeAuthentication
	case status == http.StatusPaymentRequired:
		return TypeInsufficientBalance
	case status == http.StatusForbidden:
		return TypeAuthorization
	case status == http.StatusNotFound:
		return TypeNotFound
	case status == http.StatusConflict:
		return TypeConflict
	case status == http.StatusTooManyRequests:
		return TypeRateLimit
	case status >= 500:
		return TypeInternal
	default:
		return TypeNetwork
	}
}

// StatusForType is the inverse mapping, used when re-serving errors over HTTP.
func StatusForType(t ErrorType) int {
	switch t {
	case TypeValidation:
		return http.StatusUnprocessableEntity
	case TypeAuthentication:
		return http.StatusUnauthorized
	case TypeInsufficientBalance:
		return http.StatusPaymentRequired
	case TypeAuthorization:
		return http.StatusForbidden
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeRateLimit:
		return http.StatusTooManyRequests
	case TypeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ParseErrorType recognises a server-sent code that names a taxonomy value.
func ParseErrorType(code string) (ErrorType, bool) {
	switch t := ErrorType(code); t {
	case TypeValidation, TypeAuthentication, TypeAuthorization, TypeNotFound,
		TypeInsufficientBalance, TypeConflict, TypeRateLimit, TypeNetwork, TypeInternal:
		return t, true
	}
	return "", false
}
