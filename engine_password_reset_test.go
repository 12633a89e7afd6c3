package authcore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/reset"
)

func requestToken(t *testing.T, h *harness, email string) string {
	t.Helper()
	require.NoError(t, h.engine.RequestPasswordReset(context.Background(), email))
	h.drain()
	sent := h.notes.ofKind(NotifyPasswordReset)
	require.NotEmpty(t, sent)
	return sent[len(sent)-1].Data["token"]
}

func TestRequestPasswordResetIsSilentlyRateLimited(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAccount(t, 7, "alice@example.com", DefaultRole)
	store := h.resets.Store.(*reset.Memory)

	var results []error
	for i := 0; i < 4; i++ {
		results = append(results, h.engine.RequestPasswordReset(ctx, "alice@example.com"))
		if i < 3 {
			assert.Equal(t, i+1, store.Len(), "call %d persists one token", i+1)
		}
		h.clock.Advance(time.Minute)
	}
	h.drain()

	for i, err := range results {
		assert.NoError(t, err, "call %d", i+1)
	}
	assert.Equal(t, 3, store.Len(), "fourth call persists nothing")
	assert.Len(t, h.notes.ofKind(NotifyPasswordReset), 3, "fourth call notifies nobody")
}

func TestRequestPasswordResetWindowRolls(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAccount(t, 7, "alice@example.com", DefaultRole)
	store := h.resets.Store.(*reset.Memory)

	for i := 0; i < 4; i++ {
		require.NoError(t, h.engine.RequestPasswordReset(ctx, "alice@example.com"))
	}
	require.Equal(t, 3, store.Len())

	h.clock.Advance(time.Hour + time.Second)
	require.NoError(t, h.engine.RequestPasswordReset(ctx, "alice@example.com"))
	assert.Equal(t, 4, store.Len())
}

func TestRequestPasswordResetUnknownAccount(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.RequestPasswordReset(context.Background(), "ghost@example.com"))
	h.drain()
	assert.Empty(t, h.notes.ofKind(NotifyPasswordReset))
	assert.Zero(t, h.resets.Store.(*reset.Memory).Len())
}

func TestRequestPasswordResetSurfacesStorageFailure(t *testing.T) {
	h := newHarness(t)
	h.accounts.findErr = errors.New("db gone")
	err := h.engine.RequestPasswordReset(context.Background(), "alice@example.com")
	require.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestResetNotificationCarriesLink(t *testing.T) {
	h := newHarness(t)
	h.addAccount(t, 7, "alice@example.com", DefaultRole)

	tok := requestToken(t, h, "alice@example.com")
	n := h.notes.ofKind(NotifyPasswordReset)[0]
	assert.Equal(t, "alice@example.com", n.Recipient)
	assert.True(t, strings.HasPrefix(n.Data["reset_url"], "https://example.test/reset?token="))
	assert.True(t, strings.HasSuffix(n.Data["reset_url"], tok))
	assert.Equal(t, "1h0m0s", n.Data["expires_in"])
}

func TestResetPasswordFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAccount(t, 7, "alice@example.com", DefaultRole)

	login, err := h.engine.LoginWithRefreshToken(ctx, LoginRequest{Email: "alice@example.com", Password: testPassword})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, _ = h.engine.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "bad"})
	}

	tok := requestToken(t, h, "alice@example.com")
	assert.True(t, h.engine.ValidateResetToken(ctx, tok))

	const next = "Brand-New-Pass-1"
	require.NoError(t, h.engine.ResetPassword(ctx, tok, next))

	assert.False(t, h.engine.ValidateResetToken(ctx, tok), "single use")
	require.ErrorIs(t, h.engine.ResetPassword(ctx, tok, next), ErrPasswordResetInvalid)

	_, err = h.engine.RefreshAccessToken(ctx, login.RefreshToken)
	require.ErrorIs(t, err, ErrRefreshInvalid, "password change revokes refresh tokens")
	assert.Equal(t, 5, h.engine.attempts.RemainingAttempts(ctx, "alice@example.com"), "lockout history cleared")

	_, err = h.engine.Login(ctx, LoginRequest{Email: "alice@example.com", Password: testPassword})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = h.engine.Login(ctx, LoginRequest{Email: "alice@example.com", Password: next})
	require.NoError(t, err)

	h.drain()
	assert.Len(t, h.notes.ofKind(NotifyPasswordChanged), 1)
}

func TestResetPasswordPolicyCheckedBeforeStorage(t *testing.T) {
	h := newHarness(t)
	h.addAccount(t, 7, "alice@example.com", DefaultRole)
	tok := requestToken(t, h, "alice@example.com")
	before := h.resets.calls.Load()

	cases := map[string]string{
		password.ReasonTooShort:       "Ab1!",
		password.ReasonTooLong:        "Aa1!" + strings.Repeat("x", 200),
		password.ReasonMissingUpper:   "lower-case-1",
		password.ReasonMissingLower:   "UPPER-CASE-1",
		password.ReasonMissingDigit:   "No-Digits-Here",
		password.ReasonMissingSpecial: "NoSpecial123",
	}
	for reason, pw := range cases {
		err := h.engine.ResetPassword(context.Background(), tok, pw)
		require.ErrorIs(t, err, ErrPasswordPolicy, reason)
		var pe *password.PolicyError
		require.True(t, errors.As(err, &pe), reason)
		assert.Equal(t, reason, pe.Reason)
	}
	assert.Equal(t, before, h.resets.calls.Load(), "no token store access")
	assert.True(t, h.engine.ValidateResetToken(context.Background(), tok))
}

func TestResetPasswordExpiredToken(t *testing.T) {
	h := newHarness(t)
	h.addAccount(t, 7, "alice@example.com", DefaultRole)
	tok := requestToken(t, h, "alice@example.com")

	h.clock.Advance(time.Hour + time.Second)
	assert.False(t, h.engine.ValidateResetToken(context.Background(), tok))
	require.ErrorIs(t, h.engine.ResetPassword(context.Background(), tok, "Brand-New-Pass-1"), ErrPasswordResetInvalid)
}

func TestResetPasswordConcurrentUseSucceedsOnce(t *testing.T) {
	h := newHarness(t)
	h.addAccount(t, 7, "alice@example.com", DefaultRole)
	tok := requestToken(t, h, "alice@example.com")

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if h.engine.ResetPassword(context.Background(), tok, "Brand-New-Pass-1") == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
}

func TestResetPasswordUnknownUser(t *testing.T) {
	h := newHarness(t)
	h.addAccount(t, 7, "alice@example.com", DefaultRole)
	tok := requestToken(t, h, "alice@example.com")

	h.accounts.mu.Lock()
	delete(h.accounts.byEmail, "alice@example.com")
	h.accounts.mu.Unlock()

	require.ErrorIs(t, h.engine.ResetPassword(context.Background(), tok, "Brand-New-Pass-1"), ErrUserNotFound)
}
