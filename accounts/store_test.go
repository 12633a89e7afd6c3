package accounts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/MrEthical07/authcore"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := Open(dsn, nil)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := New(db, func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) })
	require.NoError(t, s.AutoMigrate(context.Background()))
	return s
}

func TestCreateAndFind(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, authcore.Account{
		ID:           11,
		Email:        " Alice@Example.com",
		PasswordHash: "hash",
		DisplayName:  "Alice",
		Role:         "ADMIN",
		Active:       true,
	}))

	a, err := s.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(11), a.ID)
	assert.Equal(t, "alice@example.com", a.Email)
	assert.Equal(t, "ADMIN", a.Role)
	assert.True(t, a.Active)

	b, err := s.FindByID(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNotFoundAndDuplicate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.FindByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, authcore.ErrUserNotFound)
	_, err = s.FindByID(ctx, 99)
	require.ErrorIs(t, err, authcore.ErrUserNotFound)

	acct := authcore.Account{ID: 1, Email: "dup@example.com", PasswordHash: "h", Role: "USER", Active: true}
	require.NoError(t, s.Create(ctx, acct))
	acct.ID = 2
	acct.Email = "DUP@example.com"
	require.ErrorIs(t, s.Create(ctx, acct), authcore.ErrDuplicateAccount)
}

func TestUpdates(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, authcore.Account{ID: 5, Email: "u@example.com", PasswordHash: "old", Role: "USER", Active: true}))

	require.NoError(t, s.UpdatePasswordHash(ctx, 5, "new"))
	require.NoError(t, s.SetActive(ctx, 5, false))

	a, err := s.FindByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "new", a.PasswordHash)
	assert.False(t, a.Active)

	require.ErrorIs(t, s.UpdatePasswordHash(ctx, 404, "x"), authcore.ErrUserNotFound)
}
