package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const incrScript = `
local n = redis.call("INCR", KEYS[1])
redis.call("PEXPIRE", KEYS[1], ARGV[1])
return n
`

var incrLua = redis.NewScript(incrScript)

// Redis implements [Store] on a go-redis client. Keys are namespaced with
// prefix.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis returns a Redis-backed store. An empty prefix leaves keys as-is.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// ceilMillis rounds ttl up to whole milliseconds. Redis expiries have
// millisecond resolution and go-redis truncates, which would let an entry
// die just before the deadline it guards.
func ceilMillis(ttl time.Duration) time.Duration {
	if r := ttl % time.Millisecond; r != 0 {
		return ttl - r + time.Millisecond
	}
	return ttl
}

func (r *Redis) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *Redis) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if err := r.client.Set(ctx, r.key(key), value, ceilMillis(ttl)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	ok, err := r.client.SetNX(ctx, r.key(key), value, ceilMillis(ttl)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, true, nil
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// Incr increments and re-arms expiry in one script so the counter can never
// be left without a TTL.
func (r *Redis) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, ErrInvalidTTL
	}
	n, err := incrLua.Run(ctx, r.client, []string{r.key(key)}, ceilMillis(ttl).Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := r.client.PTTL(ctx, r.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// -1 (no expiry) and -2 (missing) both come back negative.
	if d <= 0 {
		return 0, nil
	}
	return d, nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Ping reports round-trip latency to the backend.
func (r *Redis) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}
