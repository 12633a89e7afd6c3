package authcore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/refresh"
)

// RefreshAccessToken rotates refreshToken and issues a new access token for
// its owner. An absent, expired or already used token yields
// ErrRefreshInvalid. Concurrent calls with one token succeed at most once.
//
// The owner is re-read so role and email changes take effect. A missing or
// disabled owner revokes the freshly minted successor.
func (e *Engine) RefreshAccessToken(ctx context.Context, refreshToken string) (res *LoginResult, err error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "RefreshAccessToken")
	defer func() { endSpan(span, err) }()

	next, succ, err := e.refresh.VerifyAndRotate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, refresh.ErrInvalid) {
			e.metrics.refreshOutcome("invalid")
			e.emitAudit(ctx, audit.Event{EventType: audit.TypeRefreshFailure, Reason: "invalid"})
			return nil, ErrRefreshInvalid
		}
		e.metrics.refreshOutcome("error")
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	acct, err := e.accounts.FindByID(ctx, succ.UserID)
	if err != nil || !acct.Active {
		if rerr := e.refresh.Revoke(ctx, next); rerr != nil {
			e.log.Warn("revoke successor of orphaned refresh token", zap.Int64("user_id", succ.UserID), zap.Error(rerr))
		}
		e.metrics.refreshOutcome("rejected")
		switch {
		case err != nil && errors.Is(err, ErrUserNotFound):
			return nil, ErrUserNotFound
		case err != nil:
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		default:
			return nil, ErrAccountDisabled
		}
	}

	res, err = e.issueCredentials(ctx, acct, false)
	if err != nil {
		e.metrics.refreshOutcome("error")
		return nil, err
	}
	res.RefreshToken = next

	e.metrics.refreshOutcome("success")
	e.emitAudit(ctx, audit.Event{
		EventType: audit.TypeRefreshSuccess,
		UserID:    userIDString(acct.ID),
		Email:     acct.Email,
		Success:   true,
	})
	return res, nil
}
