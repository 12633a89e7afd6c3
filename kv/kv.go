// Package kv defines the volatile, TTL-capable key-value capability used for
// ephemeral authentication state: login attempt counters, lockout markers and
// the access-token revocation list.
//
// Two implementations are provided: [Redis] for shared multi-node state and
// [Memory], an in-process expiring map suitable for single-node deployments
// and tests. Losing this state on restart degrades availability (early
// leniency, early re-trust) but never correctness.
//
// # What this package must NOT do
//
//   - Make policy decisions. Callers interpret counters and presence.
//   - Import authcore or any sibling package.
package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("kv backend unavailable")
	// ErrInvalidTTL is returned for non-positive expirations.
	ErrInvalidTTL = errors.New("kv ttl must be positive")
	// ErrNotInteger is returned when Incr targets a non-numeric value.
	ErrNotInteger = errors.New("kv value is not an integer")
)

// Store is the expiring key-value capability.
//
// Incr must be atomic per key: concurrent callers never observe the same
// resulting count. Every Incr (re)arms the key's expiry to ttl, so a counter
// lives until ttl elapses with no further increments.
type Store interface {
	SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error
	// SetIfAbsent stores value only when key does not exist and reports
	// whether it did.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// TTL returns the remaining lifetime of key, or 0 when absent.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Delete(ctx context.Context, keys ...string) error
}
