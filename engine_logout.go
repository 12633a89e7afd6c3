package authcore

import (
	"context"

	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/internal/audit"
)

// Logout denies accessToken for the rest of its lifetime and revokes
// refreshToken. Either may be empty. Logout never fails because a token was
// missing, already dead or could not be revoked; such cases are logged.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) (err error) {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Logout")
	defer func() { endSpan(span, err) }()

	var email string
	if accessToken != "" {
		if claims, perr := e.tokens.Parse(accessToken); perr == nil {
			email = claims.Subject
			if !e.revocations.Blacklist(ctx, claims.ID, e.tokens.Remaining(claims)) {
				e.log.Warn("access token not revoked on logout", zap.String("jti", claims.ID))
			}
		}
	}
	if refreshToken != "" {
		if rerr := e.refresh.Revoke(ctx, refreshToken); rerr != nil {
			e.log.Warn("refresh token not revoked on logout", zap.Error(rerr))
		}
	}

	e.metrics.logout.Inc()
	e.emitAudit(ctx, audit.Event{EventType: audit.TypeLogout, Email: email, Success: true})
	return nil
}

// RevokeAccessToken denies accessToken until it expires and reports whether
// the denial was recorded.
func (e *Engine) RevokeAccessToken(ctx context.Context, accessToken string) bool {
	if e == nil {
		return false
	}
	ctx, span := e.startSpan(ctx, "RevokeAccessToken")
	defer span.End()

	claims, err := e.tokens.Parse(accessToken)
	if err != nil {
		return false
	}
	return e.revocations.Blacklist(ctx, claims.ID, e.tokens.Remaining(claims))
}
