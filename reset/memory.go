package reset

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process Store.
type Memory struct {
	mu     sync.Mutex
	byID   map[int64]*Token
	byHash map[string]int64
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{byID: make(map[int64]*Token), byHash: make(map[string]int64)}
}

func (m *Memory) Create(_ context.Context, t Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byHash[t.Hash]; dup {
		return fmt.Errorf("%w: duplicate token hash", ErrUnavailable)
	}
	t.Used = false
	m.byID[t.ID] = &t
	m.byHash[t.Hash] = t.ID
	return nil
}

func (m *Memory) CountIssuedSince(_ context.Context, userID int64, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.byID {
		if t.UserID == userID && !t.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) FindUnused(_ context.Context, hash string) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byHash[hash]
	if !ok {
		return Token{}, ErrNotFound
	}
	t := m.byID[id]
	if t.Used {
		return Token{}, ErrNotFound
	}
	return *t, nil
}

func (m *Memory) MarkUsed(_ context.Context, id int64, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok || t.Used {
		return false, nil
	}
	t.Used = true
	return true, nil
}

func (m *Memory) DeleteExpired(_ context.Context, expiredBefore, createdBefore time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, t := range m.byID {
		if t.ExpiresAt.Before(expiredBefore) && t.CreatedAt.Before(createdBefore) {
			delete(m.byID, id)
			delete(m.byHash, t.Hash)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored tokens.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}
