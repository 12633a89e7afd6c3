package refresh

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalid is returned for an absent, expired or revoked token.
	ErrInvalid = errors.New("refresh token invalid")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("refresh store unavailable")
	// ErrDuplicate is returned when a token hash already exists.
	ErrDuplicate = errors.New("refresh token already exists")
)

// Token is a persisted refresh token record. Hash is the only form of the
// token a store holds.
type Token struct {
	ID        int64
	UserID    int64
	Hash      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Active reports whether t can still be rotated at now.
func (t Token) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// Store persists refresh tokens.
type Store interface {
	// Create inserts a new active token.
	Create(ctx context.Context, t Token) error
	// Rotate revokes the active token with presentedHash and inserts next in
	// one atomic step. next.UserID is taken from the revoked token and the
	// completed successor is returned. Anything but an active match yields
	// ErrInvalid and changes nothing.
	Rotate(ctx context.Context, presentedHash string, next Token, now time.Time) (Token, error)
	// Revoke marks the token revoked. An unknown hash is not an error.
	Revoke(ctx context.Context, hash string) error
	// RevokeAllForUser revokes every active token of userID and returns how
	// many were revoked.
	RevokeAllForUser(ctx context.Context, userID int64) (int, error)
	// DeleteExpired removes tokens that expired before the given time.
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}
