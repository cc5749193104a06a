package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/servicehub/marketplace-client/internal/core/domain"
)

func TestSessionRepository_Integration(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx := context.Background()
	client, db, err := Connect(ctx, Config{URI: uri, Database: "marketplace_client_test"})
	if err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Collection(sessionCollection).Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	repo := NewSessionRepository(db, "test-"+time.Now().Format("150405.000"))

	if got, err := repo.Load(ctx); err != nil || got != nil {
		t.Fatalf("Load on empty = %v, %v", got, err)
	}
	in := domain.PersistedSession{
		User:      domain.User{ID: "u1", Email: "ana@example.com", UserType: domain.UserTypeProvider, Balance: 3.5},
		Token:     "tok-1",
		ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second).UTC(),
		SavedAt:   time.Now().Truncate(time.Second).UTC(),
	}
	if err := repo.Save(ctx, in); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	in.Token = "tok-2"
	if err := repo.Save(ctx, in); err != nil {
		t.Fatalf("second Save returned error: %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got.Token != "tok-2" || got.User.UserType != domain.UserTypeProvider || !got.ExpiresAt.Equal(in.ExpiresAt) {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if got, _ := repo.Load(ctx); got != nil {
		t.Fatalf("session survived Clear")
	}
}

func TestUnixConversions(t *testing.T) {
	if !unixToTime(0).IsZero() || timeToUnix(time.Time{}) != 0 {
		t.Fatalf("zero values not preserved")
	}
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !unixToTime(timeToUnix(ts)).Equal(ts) {
		t.Fatalf("round trip mismatch")
	}
}
