package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/kv"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/reset"
)

func TestEngineOverGormStore(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	enc, err := password.NewBcrypt(4)
	require.NoError(t, err)
	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")

	e, err := authcore.New().
		WithConfig(cfg).
		WithAccounts(s).
		WithEncoder(enc).
		WithKV(kv.NewMemory(nil)).
		WithRefreshStore(refresh.NewMemory()).
		WithResetStore(reset.NewMemory()).
		Build()
	require.NoError(t, err)
	defer e.Close()

	reg, err := e.Register(ctx, authcore.RegisterRequest{Email: "gorm@example.com", Password: "Gorm-Pass-123"})
	require.NoError(t, err)

	_, err = e.Register(ctx, authcore.RegisterRequest{Email: "gorm@example.com", Password: "Gorm-Pass-123"})
	require.ErrorIs(t, err, authcore.ErrDuplicateAccount)

	res, err := e.RefreshAccessToken(ctx, reg.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, authcore.DefaultRole, res.Role)

	a, err := s.FindByEmail(ctx, "gorm@example.com")
	require.NoError(t, err)
	require.NoError(t, s.SetActive(ctx, a.ID, false))

	_, err = e.Login(ctx, authcore.LoginRequest{Email: "gorm@example.com", Password: "Gorm-Pass-123"})
	require.ErrorIs(t, err, authcore.ErrAccountDisabled)
}
