package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/servicehub/marketplace-client/internal/core/domain"
)

// SessionSource exposes the signed-in user. *service.AuthService satisfies it.
type SessionSource interface {
	CurrentUser() (domain.User, bool)
	Session() domain.Session
}

type SessionHandler struct {
	source SessionSource
	now    func() time.Time
}

func NewSessionHandler(source SessionSource) *SessionHandler {
	return &SessionHandler{source: source, now: time.Now}
}

type sessionResponse struct {
	UserID    string     `json:"userId"`
	FullName  string     `json:"fullName"`
	Email     string     `json:"email"`
	UserType  string     `json:"userType"`
	Balance   string     `json:"balance"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	ExpiresIn string     `json:"expiresIn,omitempty"`
}

// Show returns a summary of the current session. The token is never echoed.
//
// @Summary      Current session
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  map[string]string
// @Router       /v1/session [get]
func (h *SessionHandler) Show(c echo.Context) error {
	user, ok := h.source.CurrentUser()
	if !ok {
		return &domain.AppError{Type: domain.TypeAuthentication, Message: "not signed in"}
	}

	resp := sessionResponse{
		UserID:   user.ID,
		FullName: user.FullName,
		Email:    user.Email,
		UserType: string(user.UserType),
		Balance:  domain.FormatAmount(user.Balance),
	}
	if sess := h.source.Session(); !sess.ExpiresAt.IsZero() {
		exp := sess.ExpiresAt.UTC()
		resp.ExpiresAt = &exp
		resp.ExpiresIn = sess.ExpiresAt.Sub(h.now()).Round(time.Second).String()
	}
	return c.JSON(http.StatusOK, resp)
}
