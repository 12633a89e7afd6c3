package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	qRTCreate = `
INSERT INTO refresh_tokens(id, user_id, token_hash, issued_at, expires_at, revoked)
VALUES ($1, $2, $3, $4, $5, FALSE);
`
	// The predicate is re-checked after a concurrent writer commits, so only
	// one transaction can ever flip a given row.
	qRTClaim = `
UPDATE refresh_tokens
SET revoked = TRUE, revoked_at = $2, replaced_by = $3
WHERE token_hash = $1 AND revoked = FALSE AND expires_at > $2
RETURNING user_id;
`
	qRTRevoke = `
UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2
WHERE token_hash = $1 AND revoked = FALSE;
`
	qRTRevokeUser = `
UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2
WHERE user_id = $1 AND revoked = FALSE;
`
	qRTDeleteExpired = `
DELETE FROM refresh_tokens WHERE expires_at < $1;
`
)

const uniqueViolation = "23505"

// PostgresStore persists refresh tokens in the refresh_tokens table.
type PostgresStore struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewPostgresStore creates a store. A positive queryTimeout bounds every
// statement.
func NewPostgresStore(pool *pgxpool.Pool, queryTimeout time.Duration) *PostgresStore {
	return &PostgresStore{pool: pool, queryTimeout: queryTimeout}
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (s *PostgresStore) Create(ctx context.Context, t Token) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.pool.Exec(ctx, qRTCreate, t.ID, t.UserID, t.Hash, t.IssuedAt, t.ExpiresAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("%w: create refresh: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Rotate(ctx context.Context, presentedHash string, next Token, now time.Time) (out Token, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Token{}, fmt.Errorf("%w: begin rotate: %v", ErrUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var userID int64
	if err = tx.QueryRow(ctx, qRTClaim, presentedHash, now, next.ID).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Token{}, ErrInvalid
		}
		return Token{}, fmt.Errorf("%w: claim refresh: %v", ErrUnavailable, err)
	}

	next.UserID = userID
	if _, err = tx.Exec(ctx, qRTCreate, next.ID, next.UserID, next.Hash, next.IssuedAt, next.ExpiresAt); err != nil {
		if isUniqueViolation(err) {
			return Token{}, ErrDuplicate
		}
		return Token{}, fmt.Errorf("%w: insert successor: %v", ErrUnavailable, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return Token{}, fmt.Errorf("%w: commit rotate: %v", ErrUnavailable, err)
	}
	next.Revoked = false
	return next, nil
}

func (s *PostgresStore) Revoke(ctx context.Context, hash string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.pool.Exec(ctx, qRTRevoke, hash, time.Now()); err != nil {
		return fmt.Errorf("%w: revoke refresh: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) RevokeAllForUser(ctx context.Context, userID int64) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, qRTRevokeUser, userID, time.Now())
	if err != nil {
		return 0, fmt.Errorf("%w: revoke user refresh: %v", ErrUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, qRTDeleteExpired, before)
	if err != nil {
		return 0, fmt.Errorf("%w: delete expired refresh: %v", ErrUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}
