package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/token"
)

// ValidateToken reports whether accessToken has a valid signature, has not
// expired and has not been revoked. If revocation state cannot be read the
// token is rejected.
func (e *Engine) ValidateToken(ctx context.Context, accessToken string) bool {
	_, err := e.validClaims(ctx, "ValidateToken", accessToken)
	return err == nil
}

// GetEmailFromToken returns the subject email of a valid access token.
func (e *Engine) GetEmailFromToken(ctx context.Context, accessToken string) (string, error) {
	claims, err := e.validClaims(ctx, "GetEmailFromToken", accessToken)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (e *Engine) validClaims(ctx context.Context, op, accessToken string) (claims *token.Claims, err error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, op)
	defer func() { endSpan(span, err) }()

	claims, err = e.tokens.Parse(accessToken)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if e.revocations.IsBlacklisted(ctx, claims.ID) {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
