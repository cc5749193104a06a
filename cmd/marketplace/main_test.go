package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/servicehub/marketplace-client/pkg/logger"
)

func fakeMarketplace(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/auth/login" && r.URL.Path != "/health" && r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"success":false,"message":"Token required"}`)
			return
		}
		switch r.Method + " " + r.URL.Path {
		case "GET /health":
			_, _ = io.WriteString(w, `{"success":true,"data":{"status":"ok"}}`)
		case "POST /auth/login":
			_, _ = io.WriteString(w, `{"success":true,"data":{"user":{"id":"u1","fullName":"Ana Lima","email":"ana@example.com","userType":"client","balance":10},"token":"tok-1"}}`)
		case "POST /auth/logout":
			_, _ = io.WriteString(w, `{"success":true}`)
		case "GET /users/profile":
			_, _ = io.WriteString(w, `{"success":true,"data":{"user":{"id":"u1","fullName":"Ana Lima","email":"ana@example.com","userType":"client","balance":10}}}`)
		case "GET /users/balance":
			_, _ = io.WriteString(w, `{"success":true,"data":{"balance":10}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"success":false,"message":"Route not found"}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupEnv(t *testing.T, baseURL string) {
	t.Helper()
	t.Setenv("API_BASE_URL", baseURL)
	t.Setenv("API_MAX_RETRIES", "0")
	t.Setenv("SESSION_BACKEND", "file")
	t.Setenv("SESSION_PATH", filepath.Join(t.TempDir(), "session.json"))
	t.Setenv("SESSION_ENCRYPTION_KEY", "")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "disabled")
}

// runCLI runs one invocation as a fresh process would, with its own default
// logger.
func runCLI(args ...string) (int, string, string) {
	logger.Reset()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRunSessionAcrossInvocations(t *testing.T) {
	setupEnv(t, fakeMarketplace(t).URL)

	code, out, stderr := runCLI("login", "--email", "ana@example.com", "--password", "secret")
	if code != 0 {
		t.Fatalf("login exit = %d, stderr %q", code, stderr)
	}
	if !strings.Contains(out, "ana@example.com") || !strings.Contains(out, "10.00") {
		t.Fatalf("login output = %q", out)
	}

	code, out, stderr = runCLI("whoami")
	if code != 0 {
		t.Fatalf("whoami exit = %d, stderr %q", code, stderr)
	}
	if !strings.Contains(out, "Ana Lima") {
		t.Fatalf("whoami output = %q", out)
	}

	code, out, _ = runCLI("balance")
	if code != 0 || strings.TrimSpace(out) != "10.00" {
		t.Fatalf("balance = %d %q, want 0 10.00", code, out)
	}

	code, stdout, stderr := runCLI("book", "s1", "--price", "25")
	if code != 4 {
		t.Fatalf("book exit = %d, want 4 (stdout %q)", code, stdout)
	}
	if !strings.Contains(stderr, "15.00") {
		t.Fatalf("book stderr = %q, want the missing amount", stderr)
	}

	if code, _, stderr = runCLI("logout"); code != 0 {
		t.Fatalf("logout exit = %d, stderr %q", code, stderr)
	}
	if code, _, _ = runCLI("whoami"); code != 3 {
		t.Fatalf("whoami after logout exit = %d, want 3", code)
	}
}

func TestRunUsageErrors(t *testing.T) {
	setupEnv(t, fakeMarketplace(t).URL)

	cases := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, 0},
		{"unknown command", []string{"frobnicate"}, 2},
		{"missing argument", []string{"cancel"}, 2},
		{"unknown flag", []string{"services", "--colour"}, 2},
		{"command help", []string{"services", "--help"}, 0},
		{"bad amount", []string{"add-balance", "ten"}, 2},
		{"infinite amount", []string{"add-balance", "Inf"}, 2},
		{"NaN amount", []string{"add-balance", "NaN"}, 2},
		{"infinite price", []string{"services", "--max", "+Inf"}, 2},
		{"invalid login", []string{"login", "--email", "nope", "--password", "x"}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if code, _, stderr := runCLI(tc.args...); code != tc.want {
				t.Fatalf("exit = %d, want %d (stderr %q)", code, tc.want, stderr)
			}
		})
	}
}

func TestRunInstallsDefaultLogger(t *testing.T) {
	setupEnv(t, fakeMarketplace(t).URL)
	t.Setenv("LOG_LEVEL", "warn")
	t.Cleanup(logger.Reset)

	if code, _, stderr := runCLI("health"); code != 0 {
		t.Fatalf("health exit = %d, stderr %q", code, stderr)
	}
	if lvl := logger.Get().GetLevel(); lvl != zerolog.WarnLevel {
		t.Fatalf("default logger level = %v, want warn", lvl)
	}
}

func TestRunHealth(t *testing.T) {
	srv := fakeMarketplace(t)
	setupEnv(t, srv.URL)

	code, out, stderr := runCLI("health")
	if code != 0 {
		t.Fatalf("health exit = %d, stderr %q", code, stderr)
	}
	if !strings.Contains(out, srv.URL) {
		t.Fatalf("health output = %q", out)
	}
}
