package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/perfscope/internal/contract"
	"github.com/go-redis/redis/v8"
)

// pingTimeout bounds the connectivity check when opening Redis.
const pingTimeout = 5 * time.Second

// Redis is a KVStore shared between processes.
type Redis struct {
	rdb *redis.Client
}

var _ contract.KVStore = &Redis{} // Compile-time check

// NewRedis connects to Redis. connStr is a redis:// URL or a plain host:port.
func NewRedis(connStr string) (*Redis, error) {
	opts := &redis.Options{Addr: connStr}
	if strings.HasPrefix(connStr, "redis://") || strings.HasPrefix(connStr, "rediss://") {
		parsed, err := redis.ParseURL(connStr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return &Redis{rdb: rdb}, nil
}

// Get implements contract.KVStore.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements contract.KVStore.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, max(ttl, 0)).Err()
}

// Incr implements contract.KVStore.
func (r *Redis) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if n == 1 && ttl > 0 {
		if err := r.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			return n, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return n, nil
}

// Decr implements contract.KVStore.
func (r *Redis) Decr(ctx context.Context, key string) (int64, error) {
	n, err := r.rdb.Decr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("decr %s: %w", key, err)
	}
	return n, nil
}

// Delete implements contract.KVStore.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// Close implements contract.KVStore.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
