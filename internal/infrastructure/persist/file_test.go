package persist

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/servicehub/marketplace-client/internal/core/domain"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func sampleSession() domain.PersistedSession {
	return domain.PersistedSession{
		User:      domain.User{ID: "u1", Email: "ana@example.com", UserType: domain.UserTypeClient, Balance: 12.5},
		Token:     "tok-1",
		ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		SavedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestFileStore_SaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s, err := NewFileStore(path, "", "")
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	ctx := context.Background()

	got, err := s.Load(ctx)
	if err != nil || got != nil {
		t.Fatalf("Load on missing file = %v, %v; want nil, nil", got, err)
	}

	if err := s.Save(ctx, sampleSession()); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("permissions = %o, want 600", perm)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"userData"`) {
		t.Fatalf("document not keyed by storage key: %s", data)
	}

	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got.Token != "tok-1" || got.User.Balance != 12.5 || !got.ExpiresAt.Equal(sampleSession().ExpiresAt) {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("session file still present after Clear: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("second Clear returned error: %v", err)
	}
}

func TestFileStore_ClearKeepsOtherEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte(`{"theme":"dark"}`), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s, _ := NewFileStore(path, "userData", "")
	ctx := context.Background()

	if err := s.Save(ctx, sampleSession()); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.TrimSpace(string(data)) != `{"theme":"dark"}` {
		t.Fatalf("unexpected document: %s", data)
	}
}

func TestFileStore_Encrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.bin")
	s, err := NewFileStore(path, "", testKey)
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, sampleSession()); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if bytes.Contains(data, []byte("tok-1")) {
		t.Fatalf("token written in clear text")
	}

	got, err := s.Load(ctx)
	if err != nil || got.Token != "tok-1" {
		t.Fatalf("Load = %+v, %v", got, err)
	}

	other := strings.Repeat("ab", 32)
	wrong, _ := NewFileStore(path, "", other)
	if _, err := wrong.Load(ctx); err == nil {
		t.Fatalf("expected decrypt error with the wrong key")
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s, _ := NewFileStore(path, "", "")

	if _, err := s.Load(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := s.Save(context.Background(), sampleSession()); err != nil {
		t.Fatalf("Save over corrupt file returned error: %v", err)
	}
	if got, err := s.Load(context.Background()); err != nil || got == nil {
		t.Fatalf("Load after overwrite = %v, %v", got, err)
	}
}

func TestNewFileStore_BadKey(t *testing.T) {
	if _, err := NewFileStore("session.json", "", "zz"); err == nil {
		t.Fatalf("expected hex error")
	}
	if _, err := NewFileStore("session.json", "", "abcd"); err == nil {
		t.Fatalf("expected key length error")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := expandHome("~/.marketplace/session.json")
	if err != nil {
		t.Fatalf("expandHome returned error: %v", err)
	}
	if want := filepath.Join(home, ".marketplace", "session.json"); got != want {
		t.Fatalf("expandHome = %q, want %q", got, want)
	}
	if got, _ := expandHome("/tmp/x"); got != "/tmp/x" {
		t.Fatalf("absolute path changed: %q", got)
	}
}
