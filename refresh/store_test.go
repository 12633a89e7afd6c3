package refresh

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/migrations"
)

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NextID() (int64, error) { return s.n.Add(1) + 100, nil }

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemory() },
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return NewRedisStore(client, "test")
		},
		"postgres": func(t *testing.T) Store {
			url := os.Getenv("AUTHCORE_TEST_DATABASE_URL")
			if url == "" {
				t.Skip("AUTHCORE_TEST_DATABASE_URL not set")
			}
			ctx := context.Background()
			require.NoError(t, migrations.UpURL(ctx, url))
			pool, err := pgxpool.New(ctx, url)
			require.NoError(t, err)
			t.Cleanup(pool.Close)
			_, err = pool.Exec(ctx, "TRUNCATE refresh_tokens")
			require.NoError(t, err)
			return NewPostgresStore(pool, 5*time.Second)
		},
	}
}

func newService(t *testing.T, store Store) *Service {
	t.Helper()
	svc, err := NewService(store, &seqIDs{}, Config{}, nil)
	require.NoError(t, err)
	return svc
}

func TestStoreContract(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := newService(t, mk(t))

			first, rec, err := svc.Issue(ctx, 42)
			require.NoError(t, err)
			assert.Equal(t, int64(42), rec.UserID)
			assert.Equal(t, DefaultTTL, rec.ExpiresAt.Sub(rec.IssuedAt))
			assert.NotEqual(t, first, rec.Hash, "only the hash is persisted")

			second, succ, err := svc.VerifyAndRotate(ctx, first)
			require.NoError(t, err)
			assert.Equal(t, int64(42), succ.UserID)
			assert.NotEqual(t, first, second)

			_, _, err = svc.VerifyAndRotate(ctx, first)
			require.ErrorIs(t, err, ErrInvalid, "a rotated token is dead")

			require.NoError(t, svc.Revoke(ctx, second))
			_, _, err = svc.VerifyAndRotate(ctx, second)
			require.ErrorIs(t, err, ErrInvalid)

			// Unknown tokens are indistinguishable and revoking them is a no-op.
			unknown, err := internal.NewOpaqueToken()
			require.NoError(t, err)
			_, _, err = svc.VerifyAndRotate(ctx, unknown)
			require.ErrorIs(t, err, ErrInvalid)
			require.NoError(t, svc.Revoke(ctx, unknown))
			require.NoError(t, svc.Revoke(ctx, ""))
		})
	}
}

func TestStoreRejectsExpired(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := mk(t)
			now := time.Now()
			tok := Token{ID: 1, UserID: 7, Hash: internal.HashToken("expired"), IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
			require.NoError(t, store.Create(ctx, tok))

			next := Token{ID: 2, Hash: internal.HashToken("next"), IssuedAt: now, ExpiresAt: now.Add(2 * time.Hour)}
			_, err := store.Rotate(ctx, tok.Hash, next, now.Add(time.Hour))
			require.ErrorIs(t, err, ErrInvalid, "a token is dead at its expiry instant")

			rotated, err := store.Rotate(ctx, tok.Hash, next, now.Add(time.Hour-time.Second))
			require.NoError(t, err)
			assert.Equal(t, int64(7), rotated.UserID)
		})
	}
}

func TestStoreRevokeAllForUser(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := newService(t, mk(t))

			a, _, err := svc.Issue(ctx, 9)
			require.NoError(t, err)
			b, _, err := svc.Issue(ctx, 9)
			require.NoError(t, err)
			other, _, err := svc.Issue(ctx, 10)
			require.NoError(t, err)

			n, err := svc.RevokeAllForUser(ctx, 9)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			for _, tok := range []string{a, b} {
				_, _, err := svc.VerifyAndRotate(ctx, tok)
				require.ErrorIs(t, err, ErrInvalid)
			}
			_, _, err = svc.VerifyAndRotate(ctx, other)
			require.NoError(t, err)
		})
	}
}

func TestConcurrentRotationSingleWinner(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := newService(t, mk(t))

			tok, _, err := svc.Issue(ctx, 1)
			require.NoError(t, err)

			const racers = 16
			var (
				wg       sync.WaitGroup
				start    = make(chan struct{})
				success  atomic.Int32
				rejected atomic.Int32
			)
			for i := 0; i < racers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					_, _, err := svc.VerifyAndRotate(ctx, tok)
					switch {
					case err == nil:
						success.Add(1)
					case errors.Is(err, ErrInvalid):
						rejected.Add(1)
					}
				}()
			}
			close(start)
			wg.Wait()

			assert.Equal(t, int32(1), success.Load())
			assert.Equal(t, int32(racers-1), rejected.Load())
		})
	}
}

func TestMalformedTokenSkipsStore(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nilStore{t})
	_, _, err := svc.VerifyAndRotate(ctx, "not-a-token")
	require.ErrorIs(t, err, ErrInvalid)
	require.NoError(t, svc.Revoke(ctx, "not-a-token"))
}

type nilStore struct{ t *testing.T }

func (s nilStore) Create(context.Context, Token) error { s.t.Fatal("unexpected Create"); return nil }
func (s nilStore) Rotate(context.Context, string, Token, time.Time) (Token, error) {
	s.t.Fatal("unexpected Rotate")
	return Token{}, nil
}
func (s nilStore) Revoke(context.Context, string) error { s.t.Fatal("unexpected Revoke"); return nil }
func (s nilStore) RevokeAllForUser(context.Context, int64) (int, error) {
	s.t.Fatal("unexpected RevokeAllForUser")
	return 0, nil
}
func (s nilStore) DeleteExpired(context.Context, time.Time) (int, error) {
	s.t.Fatal("unexpected DeleteExpired")
	return 0, nil
}

func TestMemoryDeleteExpired(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()
	require.NoError(t, m.Create(ctx, Token{ID: 1, UserID: 1, Hash: "a", IssuedAt: now, ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, m.Create(ctx, Token{ID: 2, UserID: 1, Hash: "b", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}))
	require.ErrorIs(t, m.Create(ctx, Token{ID: 3, UserID: 1, Hash: "b"}), ErrDuplicate)

	n, err := m.DeleteExpired(ctx, now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := m.Get("a")
	assert.False(t, ok)
	_, ok = m.Get("b")
	assert.True(t, ok)
}

func TestRedisDeleteExpiredPrunesIndex(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, "test")
	now := time.Now()

	require.NoError(t, store.Create(ctx, Token{ID: 1, UserID: 5, Hash: "h1", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}))
	mr.FastForward(2 * time.Hour)

	n, err := store.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
