package kv

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process [Store]. Expired entries are evicted lazily on
// access and in bulk by [Memory.Sweep].
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]entry
}

// NewMemory returns an empty store. A nil now uses time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{now: now, entries: make(map[string]entry)}
}

// live must be called with mu held.
func (m *Memory) live(key string, now time.Time) (entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return entry{}, false
	}
	if !now.Before(e.expiresAt) {
		delete(m.entries, key)
		return entry{}, false
	}
	return e, true
}

func (m *Memory) SetWithExpiry(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *Memory) SetIfAbsent(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if _, ok := m.live(key, now); ok {
		return false, nil
	}
	m.entries[key] = entry{value: value, expiresAt: now.Add(ttl)}
	return true, nil
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key, m.now())
	return e.value, ok, nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key, m.now())
	return ok, nil
}

func (m *Memory) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, ErrInvalidTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()

	var n int64
	if e, ok := m.live(key, now); ok {
		v, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		n = v
	}
	n++
	m.entries[key] = entry{value: strconv.FormatInt(n, 10), expiresAt: now.Add(ttl)}
	return n, nil
}

func (m *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	e, ok := m.live(key, now)
	if !ok {
		return 0, nil
	}
	return e.expiresAt.Sub(now), nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

// Sweep evicts every expired entry and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, including not-yet-swept expired ones.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
