package refresh

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store.
type Memory struct {
	mu     sync.Mutex
	byHash map[string]*Token
	byUser map[int64]map[string]struct{}
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		byHash: make(map[string]*Token),
		byUser: make(map[int64]map[string]struct{}),
	}
}

// insert must be called with mu held.
func (m *Memory) insert(t Token) error {
	if _, exists := m.byHash[t.Hash]; exists {
		return ErrDuplicate
	}
	t.Revoked = false
	m.byHash[t.Hash] = &t
	set := m.byUser[t.UserID]
	if set == nil {
		set = make(map[string]struct{})
		m.byUser[t.UserID] = set
	}
	set[t.Hash] = struct{}{}
	return nil
}

func (m *Memory) Create(_ context.Context, t Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(t)
}

func (m *Memory) Rotate(_ context.Context, presentedHash string, next Token, now time.Time) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.byHash[presentedHash]
	if !ok || !cur.Active(now) {
		return Token{}, ErrInvalid
	}
	if _, exists := m.byHash[next.Hash]; exists {
		return Token{}, ErrDuplicate
	}
	cur.Revoked = true
	next.UserID = cur.UserID
	if err := m.insert(next); err != nil {
		cur.Revoked = false
		return Token{}, err
	}
	return next, nil
}

func (m *Memory) Revoke(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.byHash[hash]; ok {
		t.Revoked = true
	}
	return nil
}

func (m *Memory) RevokeAllForUser(_ context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for h := range m.byUser[userID] {
		if t := m.byHash[h]; t != nil && !t.Revoked {
			t.Revoked = true
			n++
		}
	}
	return n, nil
}

func (m *Memory) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for h, t := range m.byHash {
		if t.ExpiresAt.Before(before) {
			delete(m.byHash, h)
			if set := m.byUser[t.UserID]; set != nil {
				delete(set, h)
				if len(set) == 0 {
					delete(m.byUser, t.UserID)
				}
			}
			n++
		}
	}
	return n, nil
}

// Get returns a copy of the record for hash.
func (m *Memory) Get(hash string) (Token, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byHash[hash]
	if !ok {
		return Token{}, false
	}
	return *t, true
}
