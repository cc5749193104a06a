package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Integration test: runs only when REDIS_ADDR points at a disposable server.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}

	store := NewRedisStore(client, "marketplace:test:"+time.Now().Format("150405.000000")+":")
	t.Cleanup(func() { _ = store.Clear(ctx) })
	c := New(store, Options{TTL: time.Minute, Logger: zerolog.Nop()})

	if err := c.Set(ctx, "/services?offset=0", []byte(`{"items":[]}`), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	_ = c.Set(ctx, "/bookings/my", []byte(`[]`), 0)

	v, ok := c.Get(ctx, "/services?offset=0")
	if !ok || string(v) != `{"items":[]}` {
		t.Fatalf("Get = %q, %v", v, ok)
	}

	n, err := c.InvalidatePattern(ctx, "/services*")
	if err != nil || n != 1 {
		t.Fatalf("InvalidatePattern = %d, %v", n, err)
	}
	if _, ok := c.Get(ctx, "/bookings/my"); !ok {
		t.Fatal("unrelated key removed")
	}
}
