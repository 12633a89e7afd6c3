package authcore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/authcore/internal/notify"
	"github.com/MrEthical07/authcore/kv"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/reset"
)

const testPassword = "Correct-Horse-9"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NextID() (int64, error) { return s.n.Add(1) + 1000, nil }

type fakeAccounts struct {
	mu      sync.Mutex
	byEmail map[string]*Account
	findErr error
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byEmail: map[string]*Account{}}
}

func (f *fakeAccounts) FindByEmail(_ context.Context, email string) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	a, ok := f.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) FindByID(_ context.Context, id int64) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, a := range f.byEmail {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakeAccounts) Create(_ context.Context, a Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[a.Email]; ok {
		return ErrDuplicateAccount
	}
	f.byEmail[a.Email] = &a
	return nil
}

func (f *fakeAccounts) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byEmail {
		if a.ID == id {
			a.PasswordHash = hash
			return nil
		}
	}
	return ErrUserNotFound
}

func (f *fakeAccounts) setActive(email string, active bool) {
	f.mu.Lock()
	f.byEmail[email].Active = active
	f.mu.Unlock()
}

func (f *fakeAccounts) hashOf(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byEmail[email].PasswordHash
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *recordingNotifier) Send(_ context.Context, n Notification) error {
	r.mu.Lock()
	r.sent = append(r.sent, n)
	r.mu.Unlock()
	return nil
}

func (r *recordingNotifier) ofKind(kind string) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// countingKV records every call so tests can assert a path never touched
// ephemeral state.
type countingKV struct {
	kv.Store
	calls atomic.Int64
}

func (c *countingKV) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	c.calls.Add(1)
	return c.Store.SetWithExpiry(ctx, key, value, ttl)
}

func (c *countingKV) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.calls.Add(1)
	return c.Store.SetIfAbsent(ctx, key, value, ttl)
}

func (c *countingKV) Get(ctx context.Context, key string) (string, bool, error) {
	c.calls.Add(1)
	return c.Store.Get(ctx, key)
}

func (c *countingKV) Exists(ctx context.Context, key string) (bool, error) {
	c.calls.Add(1)
	return c.Store.Exists(ctx, key)
}

func (c *countingKV) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	c.calls.Add(1)
	return c.Store.Incr(ctx, key, ttl)
}

func (c *countingKV) TTL(ctx context.Context, key string) (time.Duration, error) {
	c.calls.Add(1)
	return c.Store.TTL(ctx, key)
}

func (c *countingKV) Delete(ctx context.Context, keys ...string) error {
	c.calls.Add(1)
	return c.Store.Delete(ctx, keys...)
}

type countingRefresh struct {
	refresh.Store
	calls atomic.Int64
}

func (c *countingRefresh) Create(ctx context.Context, t refresh.Token) error {
	c.calls.Add(1)
	return c.Store.Create(ctx, t)
}

func (c *countingRefresh) Rotate(ctx context.Context, h string, next refresh.Token, now time.Time) (refresh.Token, error) {
	c.calls.Add(1)
	return c.Store.Rotate(ctx, h, next, now)
}

func (c *countingRefresh) Revoke(ctx context.Context, h string) error {
	c.calls.Add(1)
	return c.Store.Revoke(ctx, h)
}

type countingReset struct {
	reset.Store
	calls atomic.Int64
}

func (c *countingReset) FindUnused(ctx context.Context, h string) (reset.Token, error) {
	c.calls.Add(1)
	return c.Store.FindUnused(ctx, h)
}

func (c *countingReset) MarkUsed(ctx context.Context, id int64, at time.Time) (bool, error) {
	c.calls.Add(1)
	return c.Store.MarkUsed(ctx, id, at)
}

// brokenKV fails every call.
type brokenKV struct{}

var errBackend = errors.New("backend down")

func (brokenKV) SetWithExpiry(context.Context, string, string, time.Duration) error {
	return errBackend
}
func (brokenKV) SetIfAbsent(context.Context, string, string, time.Duration) (bool, error) {
	return false, errBackend
}
func (brokenKV) Get(context.Context, string) (string, bool, error) { return "", false, errBackend }
func (brokenKV) Exists(context.Context, string) (bool, error)      { return false, errBackend }
func (brokenKV) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errBackend
}
func (brokenKV) TTL(context.Context, string) (time.Duration, error) { return 0, errBackend }
func (brokenKV) Delete(context.Context, ...string) error          { return errBackend }

type harness struct {
	engine   *Engine
	clock    *fakeClock
	accounts *fakeAccounts
	kv       *countingKV
	refresh  *countingRefresh
	resets   *countingReset
	notes    *recordingNotifier
	encoder  Encoder
}

type harnessOption func(*Builder)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.PasswordReset.LinkBase = "https://example.test/reset?token="
	return cfg
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	enc, err := password.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)

	clock := newFakeClock()
	h := &harness{
		clock:    clock,
		accounts: newFakeAccounts(),
		kv:       &countingKV{Store: kv.NewMemory(clock.Now)},
		refresh:  &countingRefresh{Store: refresh.NewMemory()},
		resets:   &countingReset{Store: reset.NewMemory()},
		notes:    &recordingNotifier{},
		encoder:  enc,
	}
	b := New().
		WithConfig(testConfig()).
		WithAccounts(h.accounts).
		WithEncoder(enc).
		WithKV(h.kv).
		WithRefreshStore(h.refresh).
		WithResetStore(h.resets).
		WithNotifier(h.notes).
		WithClock(clock.Now).
		WithIDGenerator(&seqIDs{})
	for _, opt := range opts {
		opt(b)
	}
	h.engine, err = b.Build()
	require.NoError(t, err)
	t.Cleanup(h.engine.Close)
	return h
}

// addAccount stores an active account with testPassword.
func (h *harness) addAccount(t *testing.T, id int64, email, role string) {
	t.Helper()
	hash, err := h.encoder.Hash(testPassword)
	require.NoError(t, err)
	require.NoError(t, h.accounts.Create(context.Background(), Account{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		DisplayName:  "Test User",
		Role:         role,
		Active:       true,
	}))
}

// drain waits for queued notifications and installs a fresh dispatcher.
func (h *harness) drain() {
	h.engine.notify.Close()
	h.engine.notify = notify.NewDispatcher(notify.DispatcherConfig{}, h.notes, nil)
}
