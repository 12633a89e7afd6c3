package reset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal"
)

// Defaults applied to zero Config fields.
const (
	DefaultTTL    = time.Hour
	DefaultLimit  = 3
	DefaultWindow = time.Hour
)

// IDGenerator yields unique row ids.
type IDGenerator interface {
	NextID() (int64, error)
}

// Config controls token lifetime and issuance rate.
type Config struct {
	TTL    time.Duration
	Limit  int
	Window time.Duration
}

// Ledger issues, validates and consumes reset tokens.
type Ledger struct {
	store Store
	ids   IDGenerator
	cfg   Config
	now   func() time.Time
}

// NewLedger creates a Ledger. A nil now uses time.Now.
func NewLedger(store Store, ids IDGenerator, cfg Config, now func() time.Time) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("reset: store is required")
	}
	if ids == nil {
		return nil, errors.New("reset: id generator is required")
	}
	if cfg.TTL < 0 || cfg.Limit < 0 || cfg.Window < 0 {
		return nil, errors.New("reset: negative configuration")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Limit == 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: store, ids: ids, cfg: cfg, now: now}, nil
}

// Issue creates a token for userID. It returns ok=false and no token when
// userID already has Limit tokens inside the rolling window.
//
// The count and the insert are separate statements, so concurrent requests
// can briefly exceed Limit.
func (l *Ledger) Issue(ctx context.Context, userID int64) (plain string, ok bool, err error) {
	now := l.now()
	issued, err := l.store.CountIssuedSince(ctx, userID, now.Add(-l.cfg.Window))
	if err != nil {
		return "", false, err
	}
	if issued >= l.cfg.Limit {
		return "", false, nil
	}

	plain, err = internal.NewOpaqueToken()
	if err != nil {
		return "", false, fmt.Errorf("generate reset token: %w", err)
	}
	id, err := l.ids.NextID()
	if err != nil {
		return "", false, fmt.Errorf("generate reset token id: %w", err)
	}
	t := Token{
		ID:        id,
		UserID:    userID,
		Hash:      internal.HashToken(plain),
		CreatedAt: now,
		ExpiresAt: now.Add(l.cfg.TTL),
	}
	if err := l.store.Create(ctx, t); err != nil {
		return "", false, err
	}
	return plain, true, nil
}

// Lookup returns the unused, unexpired record for plain. It fails with
// ErrNotFound or ErrExpired.
func (l *Ledger) Lookup(ctx context.Context, plain string) (Token, error) {
	if internal.CheckOpaqueToken(plain) != nil {
		return Token{}, ErrNotFound
	}
	t, err := l.store.FindUnused(ctx, internal.HashToken(plain))
	if err != nil {
		return Token{}, err
	}
	if !l.now().Before(t.ExpiresAt) {
		return Token{}, ErrExpired
	}
	return t, nil
}

// Validate reports whether plain names an unused, unexpired token. Every
// other condition, including backend failure, yields false.
func (l *Ledger) Validate(ctx context.Context, plain string) bool {
	_, err := l.Lookup(ctx, plain)
	return err == nil
}

// Consume claims t. Exactly one caller succeeds; the rest get ErrNotFound.
func (l *Ledger) Consume(ctx context.Context, t Token) error {
	claimed, err := l.store.MarkUsed(ctx, t.ID, l.now())
	if err != nil {
		return err
	}
	if !claimed {
		return ErrNotFound
	}
	return nil
}

// DeleteExpired prunes tokens that expired before the given time. Tokens
// still inside the rate-limit window are kept even when expired, so pruning
// never frees issuance budget.
func (l *Ledger) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	return l.store.DeleteExpired(ctx, before, before.Add(-l.cfg.Window))
}
