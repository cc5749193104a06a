package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/servicehub/marketplace-client/internal/core/domain"
)

// errorResponse is the error envelope for every ops API failure.
type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps *domain.AppError to the status of its type.
//   - Logs unexpected errors without leaking details to the caller.
//   - Renders {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, unknown routes, auth middleware).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	if ae, ok := domain.AsAppError(err); ok && ae.Type != domain.TypeInternal {
		msg := ae.Message
		if msg == "" {
			msg = string(ae.Type)
		}
		return domain.StatusForType(ae.Type), errorResponse{Error: msg, Type: string(ae.Type)}
	}

	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error", Type: string(domain.TypeInternal)}
}
