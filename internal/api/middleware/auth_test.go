package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runOpsAuth(t *testing.T, token, header string) (called bool, err error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	c := e.NewContext(req, httptest.NewRecorder())

	handler := OpsAuth(token)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	err = handler(c)
	return called, err
}

func TestOpsAuth_ValidToken(t *testing.T) {
	called, err := runOpsAuth(t, "s3cret", "Bearer s3cret")
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
}

func TestOpsAuth_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic s3cret",
		"wrong token":    "Bearer nope",
		"no token":       "Bearer",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			called, err := runOpsAuth(t, "s3cret", header)
			if called {
				t.Fatalf("next called")
			}
			var he *echo.HTTPError
			if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401 HTTPError, got %v", err)
			}
		})
	}
}

func TestOpsAuth_DisabledWithoutToken(t *testing.T) {
	called, err := runOpsAuth(t, "", "")
	if err != nil || !called {
		t.Fatalf("expected pass-through, called=%v err=%v", called, err)
	}
}
