package reset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	qPRCreate = `
INSERT INTO password_reset_tokens(id, user_id, token_hash, created_at, expires_at, used)
VALUES ($1, $2, $3, $4, $5, FALSE);
`
	qPRCountSince = `
SELECT COUNT(*) FROM password_reset_tokens WHERE user_id = $1 AND created_at >= $2;
`
	qPRFindUnused = `
SELECT id, user_id, token_hash, created_at, expires_at, used
FROM password_reset_tokens
WHERE token_hash = $1 AND used = FALSE
LIMIT 1;
`
	qPRMarkUsed = `
UPDATE password_reset_tokens SET used = TRUE, used_at = $2 WHERE id = $1 AND used = FALSE;
`
	qPRDeleteExpired = `
DELETE FROM password_reset_tokens WHERE expires_at < $1 AND created_at < $2;
`
)

// PostgresStore persists reset tokens in the password_reset_tokens table.
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

func (s *PostgresStore) Create(ctx context.Context, t Token) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.pool.Exec(ctx, qPRCreate, t.ID, t.UserID, t.Hash, t.CreatedAt, t.ExpiresAt); err != nil {
		return fmt.Errorf("%w: create reset: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) CountIssuedSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int
	if err := s.pool.QueryRow(ctx, qPRCountSince, userID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count reset: %v", ErrUnavailable, err)
	}
	return n, nil
}

func (s *PostgresStore) FindUnused(ctx context.Context, hash string) (Token, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var t Token
	err := s.pool.QueryRow(ctx, qPRFindUnused, hash).
		Scan(&t.ID, &t.UserID, &t.Hash, &t.CreatedAt, &t.ExpiresAt, &t.Used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Token{}, ErrNotFound
		}
		return Token{}, fmt.Errorf("%w: find reset: %v", ErrUnavailable, err)
	}
	return t, nil
}

func (s *PostgresStore) MarkUsed(ctx context.Context, id int64, at time.Time) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, qPRMarkUsed, id, at)
	if err != nil {
		return false, fmt.Errorf("%w: mark reset used: %v", ErrUnavailable, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, expiredBefore, createdBefore time.Time) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, qPRDeleteExpired, expiredBefore, createdBefore)
	if err != nil {
		return 0, fmt.Errorf("%w: delete expired reset: %v", ErrUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}
