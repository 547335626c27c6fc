package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper suppresses duplicate publishes across relay instances. Reserve
// returns false when another instance already claimed the key.
type Deduper interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisDeduper claims keys with SET NX and a TTL so a crashed relay does
// not hold its claims forever.
type RedisDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisDeduper{client: client, prefix: "caseflow:relay:", ttl: ttl}
}

func (d *RedisDeduper) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+key, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve %s: %w", key, err)
	}
	return ok, nil
}

func (d *RedisDeduper) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, d.prefix+key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

// NopDeduper admits every key. Used when the relay runs as a single
// instance without Redis.
type NopDeduper struct{}

func (NopDeduper) Reserve(context.Context, string) (bool, error) { return true, nil }
func (NopDeduper) Release(context.Context, string) error         { return nil }
