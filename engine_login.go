package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/internal/audit"
)

// Login authenticates req and issues an access token, plus a refresh token
// when req.Remember is set.
//
// Lockout bookkeeping completes before any token is returned. An unknown
// email and a wrong password both yield ErrInvalidCredentials and both count
// toward the lockout of the submitted email, including the failure that trips
// it. Only the next attempt reports *LockedError.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	return e.login(ctx, "Login", req, req.Remember)
}

// LoginWithRefreshToken is Login that always mints a refresh token.
func (e *Engine) LoginWithRefreshToken(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	return e.login(ctx, "LoginWithRefreshToken", req, true)
}

func (e *Engine) login(ctx context.Context, op string, req LoginRequest, withRefresh bool) (res *LoginResult, err error) {
	ctx, span := e.startSpan(ctx, op)
	defer func() { endSpan(span, err) }()

	email := normalizeEmail(req.Email)

	if e.attempts.IsBlocked(ctx, email) {
		if remaining := e.attempts.RemainingLockout(ctx, email); remaining > 0 {
			e.metrics.loginOutcome("locked")
			e.emitAudit(ctx, audit.Event{
				EventType: audit.TypeLoginLocked,
				Email:     email,
				IP:        req.Source.IP,
				UserAgent: req.Source.UserAgent,
				Reason:    "locked",
			})
			return nil, &LockedError{Remaining: remaining}
		}
	}

	acct, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			e.metrics.loginOutcome("error")
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		_, _ = e.encoder.Matches(req.Password, e.dummyHash)
		return nil, e.loginFailure(ctx, email, req.Source, "unknown_account", 0)
	}

	ok, err := e.encoder.Matches(req.Password, acct.PasswordHash)
	if err != nil {
		e.log.Warn("stored password hash unreadable", zap.Int64("user_id", acct.ID), zap.Error(err))
		ok = false
	}
	if !ok {
		return nil, e.loginFailure(ctx, email, req.Source, "password_mismatch", acct.ID)
	}

	if err := e.attempts.Clear(ctx, email); err != nil {
		e.metrics.loginOutcome("error")
		return nil, fmt.Errorf("%w: %v", ErrAttemptTrackingUnavailable, err)
	}
	if !acct.Active {
		e.metrics.loginOutcome("disabled")
		return nil, ErrAccountDisabled
	}

	e.maybeRehash(ctx, acct, req.Password)

	res, err = e.issueCredentials(ctx, acct, withRefresh)
	if err != nil {
		e.metrics.loginOutcome("error")
		return nil, err
	}

	e.metrics.loginOutcome("success")
	e.emitAudit(ctx, audit.Event{
		EventType: audit.TypeLoginSuccess,
		UserID:    userIDString(acct.ID),
		Email:     email,
		IP:        req.Source.IP,
		UserAgent: req.Source.UserAgent,
		Success:   true,
		Metadata:  map[string]string{"refresh": strconv.FormatBool(withRefresh)},
	})
	return res, nil
}

// loginFailure records one failed attempt and returns the error the caller
// sees. The tripping failure is reported as ErrInvalidCredentials like any
// other.
func (e *Engine) loginFailure(ctx context.Context, email string, src Source, reason string, userID int64) error {
	out, err := e.attempts.RecordFailure(ctx, email, trackerSource(src))
	if err != nil {
		e.metrics.loginOutcome("error")
		e.log.Error("failed to record login failure", zap.String("email", email), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrAttemptTrackingUnavailable, err)
	}

	remaining := e.attempts.Threshold() - out.Count
	if remaining < 0 || out.JustLocked {
		remaining = 0
	}
	e.metrics.loginOutcome("invalid")
	e.emitAudit(ctx, audit.Event{
		EventType: audit.TypeLoginFailure,
		UserID:    userIDString(userID),
		Email:     email,
		IP:        src.IP,
		UserAgent: src.UserAgent,
		Reason:    reason,
		Metadata:  map[string]string{"remaining_attempts": strconv.Itoa(remaining)},
	})
	if out.JustLocked {
		e.emitAudit(ctx, audit.Event{
			EventType: audit.TypeAccountLocked,
			UserID:    userIDString(userID),
			Email:     email,
			IP:        src.IP,
			Reason:    "threshold",
			Metadata: map[string]string{
				"failures": strconv.Itoa(out.Count),
				"duration": e.config.Lockout.Duration.String(),
			},
		})
	}
	return ErrInvalidCredentials
}

func (e *Engine) maybeRehash(ctx context.Context, acct *Account, plaintext string) {
	if !e.config.Account.RehashOnLogin {
		return
	}
	uc, ok := e.encoder.(upgradeChecker)
	if !ok {
		return
	}
	stale, err := uc.NeedsUpgrade(acct.PasswordHash)
	if err != nil || !stale {
		return
	}
	hash, err := e.encoder.Hash(plaintext)
	if err != nil {
		e.log.Warn("password rehash failed", zap.Int64("user_id", acct.ID), zap.Error(err))
		return
	}
	if err := e.accounts.UpdatePasswordHash(ctx, acct.ID, hash); err != nil {
		e.log.Warn("persist rehashed password failed", zap.Int64("user_id", acct.ID), zap.Error(err))
	}
}

// issueCredentials signs an access token for acct and optionally mints a
// refresh token.
func (e *Engine) issueCredentials(ctx context.Context, acct *Account, withRefresh bool) (*LoginResult, error) {
	access, _, err := e.tokens.Issue(acct.Email, acct.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenIssue, err)
	}
	res := &LoginResult{
		AccessToken: access,
		TokenType:   TokenType,
		ExpiresIn:   e.tokens.TTL(),
		Email:       acct.Email,
		DisplayName: acct.DisplayName,
		Role:        acct.Role,
	}
	if withRefresh {
		rt, _, err := e.refresh.Issue(ctx, acct.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTokenIssue, err)
		}
		res.RefreshToken = rt
	}
	return res, nil
}
