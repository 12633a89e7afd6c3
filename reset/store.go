package reset

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no unused token matches.
	ErrNotFound = errors.New("reset token not found")
	// ErrExpired is returned for an unused token past its expiry.
	ErrExpired = errors.New("reset token expired")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("reset store unavailable")
)

// Token is a persisted reset token record.
type Token struct {
	ID        int64
	UserID    int64
	Hash      string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

// Store persists reset tokens.
type Store interface {
	Create(ctx context.Context, t Token) error
	// CountIssuedSince counts tokens created for userID at or after since,
	// used or not.
	CountIssuedSince(ctx context.Context, userID int64, since time.Time) (int, error)
	// FindUnused returns the unused token with hash or ErrNotFound. Expired
	// tokens are returned; the caller checks expiry.
	FindUnused(ctx context.Context, hash string) (Token, error)
	// MarkUsed flips the used flag if it was unset and reports whether this
	// call did so.
	MarkUsed(ctx context.Context, id int64, at time.Time) (bool, error)
	// DeleteExpired removes tokens that expired before expiredBefore and
	// were created before createdBefore. Rows younger than createdBefore
	// still count toward CountIssuedSince and must survive.
	DeleteExpired(ctx context.Context, expiredBefore, createdBefore time.Time) (int, error)
}
