package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal"
)

// DefaultTTL is the refresh token lifetime when Config.TTL is zero.
const DefaultTTL = 30 * 24 * time.Hour

// IDGenerator yields unique row ids.
type IDGenerator interface {
	NextID() (int64, error)
}

// Config controls token lifetime.
type Config struct {
	TTL time.Duration
}

// Service issues, rotates and revokes plaintext refresh tokens over a Store.
type Service struct {
	store Store
	ids   IDGenerator
	ttl   time.Duration
	now   func() time.Time
}

// NewService creates a Service. A nil now uses time.Now.
func NewService(store Store, ids IDGenerator, cfg Config, now func() time.Time) (*Service, error) {
	if store == nil {
		return nil, errors.New("refresh: store is required")
	}
	if ids == nil {
		return nil, errors.New("refresh: id generator is required")
	}
	if cfg.TTL < 0 {
		return nil, errors.New("refresh: ttl must not be negative")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, ids: ids, ttl: cfg.TTL, now: now}, nil
}

// TTL returns the configured token lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

func (s *Service) mint(userID int64) (string, Token, error) {
	plain, err := internal.NewOpaqueToken()
	if err != nil {
		return "", Token{}, fmt.Errorf("generate refresh token: %w", err)
	}
	id, err := s.ids.NextID()
	if err != nil {
		return "", Token{}, fmt.Errorf("generate refresh token id: %w", err)
	}
	now := s.now()
	return plain, Token{
		ID:        id,
		UserID:    userID,
		Hash:      internal.HashToken(plain),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}, nil
}

// Issue creates a new refresh token for userID and returns its plaintext.
func (s *Service) Issue(ctx context.Context, userID int64) (string, Token, error) {
	plain, t, err := s.mint(userID)
	if err != nil {
		return "", Token{}, err
	}
	if err := s.store.Create(ctx, t); err != nil {
		return "", Token{}, err
	}
	return plain, t, nil
}

// VerifyAndRotate consumes presented and returns its successor's plaintext
// together with the successor record, whose UserID names the owner.
func (s *Service) VerifyAndRotate(ctx context.Context, presented string) (string, Token, error) {
	if internal.CheckOpaqueToken(presented) != nil {
		return "", Token{}, ErrInvalid
	}
	plain, next, err := s.mint(0)
	if err != nil {
		return "", Token{}, err
	}
	rotated, err := s.store.Rotate(ctx, internal.HashToken(presented), next, next.IssuedAt)
	if err != nil {
		return "", Token{}, err
	}
	return plain, rotated, nil
}

// Revoke revokes presented. Empty or malformed input is a no-op.
func (s *Service) Revoke(ctx context.Context, presented string) error {
	if internal.CheckOpaqueToken(presented) != nil {
		return nil
	}
	return s.store.Revoke(ctx, internal.HashToken(presented))
}

// RevokeAllForUser revokes every active token of userID.
func (s *Service) RevokeAllForUser(ctx context.Context, userID int64) (int, error) {
	return s.store.RevokeAllForUser(ctx, userID)
}

// DeleteExpired prunes tokens that expired before the given time.
func (s *Service) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	return s.store.DeleteExpired(ctx, before)
}
