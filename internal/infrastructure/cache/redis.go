package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// RedisStore keeps entries in Redis so several client processes share one
// cache. Keys are namespaced with prefix; Redis expiry follows ExpiresAt.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps client. prefix must not contain glob characters.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache get: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("cache decode %q: %w", key, err)
	}
	return e, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, e Entry) error {
	ttl := time.Until(e.ExpiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, key)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache encode %q: %w", key, err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// DeleteMatching scans the namespace with MATCH and deletes in batches.
func (s *RedisStore) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	iter := s.client.Scan(ctx, 0, s.prefix+pattern, scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.client.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		total += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return total, fmt.Errorf("cache delete matching: %w", err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return total, fmt.Errorf("cache scan: %w", err)
	}
	if err := flush(); err != nil {
		return total, fmt.Errorf("cache delete matching: %w", err)
	}
	return total, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	_, err := s.DeleteMatching(ctx, "*")
	return err
}
