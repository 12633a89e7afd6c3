package authcore

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/reset"
)

// RequestPasswordReset issues a reset token for email and notifies the
// account holder. Unknown accounts, disabled accounts and accounts over the
// issuance limit return nil with no token and no notification, so the caller
// cannot tell the cases apart. Only storage failures are returned.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (err error) {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "RequestPasswordReset")
	defer func() { endSpan(span, err) }()

	email = normalizeEmail(email)
	requested := func(reason string, userID int64) {
		e.metrics.resetOutcome("request", reason)
		e.emitAudit(ctx, audit.Event{
			EventType: audit.TypePasswordResetRequest,
			UserID:    userIDString(userID),
			Email:     email,
			Success:   reason == "issued",
			Reason:    reason,
		})
	}

	acct, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			requested("unknown_account", 0)
			return nil
		}
		e.metrics.resetOutcome("request", "error")
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !acct.Active {
		requested("disabled", acct.ID)
		return nil
	}

	plain, ok, err := e.resets.Issue(ctx, acct.ID)
	if err != nil {
		e.metrics.resetOutcome("request", "error")
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !ok {
		requested("rate_limited", acct.ID)
		return nil
	}

	data := map[string]string{
		"token":        plain,
		"display_name": acct.DisplayName,
		"expires_in":   e.config.PasswordReset.TTL.String(),
	}
	if base := e.config.PasswordReset.LinkBase; base != "" {
		data["reset_url"] = base + url.QueryEscape(plain)
	}
	e.sendNotification(Notification{Kind: NotifyPasswordReset, Recipient: acct.Email, Data: data})
	requested("issued", acct.ID)
	return nil
}

// ValidateResetToken reports whether resetToken is unused and unexpired.
func (e *Engine) ValidateResetToken(ctx context.Context, resetToken string) bool {
	if e == nil {
		return false
	}
	ctx, span := e.startSpan(ctx, "ValidateResetToken")
	defer span.End()
	return e.resets.Validate(ctx, resetToken)
}

// ResetPassword sets a new password using a reset token.
//
// The password is checked against policy before any storage access and a
// violation returns *password.PolicyError. An unknown, used or expired token
// returns ErrPasswordResetInvalid. The token is claimed before the new hash
// is written so two concurrent calls cannot both succeed. On success every
// refresh token of the account is revoked and its lockout is cleared; those
// steps and the change notice are best effort.
func (e *Engine) ResetPassword(ctx context.Context, resetToken, newPassword string) (err error) {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "ResetPassword")
	defer func() { endSpan(span, err) }()

	if err := e.config.PasswordPolicy.Check(newPassword); err != nil {
		e.metrics.resetOutcome("confirm", "policy")
		return err
	}

	rec, err := e.resets.Lookup(ctx, resetToken)
	if err != nil {
		if errors.Is(err, reset.ErrNotFound) || errors.Is(err, reset.ErrExpired) {
			e.metrics.resetOutcome("confirm", "invalid")
			return ErrPasswordResetInvalid
		}
		e.metrics.resetOutcome("confirm", "error")
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	acct, err := e.accounts.FindByID(ctx, rec.UserID)
	if err != nil {
		e.metrics.resetOutcome("confirm", "error")
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	hash, err := e.encoder.Hash(newPassword)
	if err != nil {
		e.metrics.resetOutcome("confirm", "error")
		return fmt.Errorf("hash password: %w", err)
	}

	if err := e.resets.Consume(ctx, rec); err != nil {
		if errors.Is(err, reset.ErrNotFound) {
			e.metrics.resetOutcome("confirm", "invalid")
			return ErrPasswordResetInvalid
		}
		e.metrics.resetOutcome("confirm", "error")
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := e.accounts.UpdatePasswordHash(ctx, acct.ID, hash); err != nil {
		e.metrics.resetOutcome("confirm", "error")
		e.log.Error("password not updated after reset token was consumed", zap.Int64("user_id", acct.ID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if n, rerr := e.refresh.RevokeAllForUser(ctx, acct.ID); rerr != nil {
		e.log.Warn("refresh tokens not revoked after password reset", zap.Int64("user_id", acct.ID), zap.Error(rerr))
	} else if n > 0 {
		e.log.Info("refresh tokens revoked after password reset", zap.Int64("user_id", acct.ID), zap.Int("count", n))
	}
	if cerr := e.attempts.Clear(ctx, normalizeEmail(acct.Email)); cerr != nil {
		e.log.Warn("lockout not cleared after password reset", zap.Int64("user_id", acct.ID), zap.Error(cerr))
	}

	e.metrics.resetOutcome("confirm", "success")
	e.emitAudit(ctx, audit.Event{
		EventType: audit.TypePasswordResetConfirm,
		UserID:    userIDString(acct.ID),
		Email:     acct.Email,
		Success:   true,
	})
	e.sendNotification(Notification{
		Kind:      NotifyPasswordChanged,
		Recipient: acct.Email,
		Data:      map[string]string{"display_name": acct.DisplayName},
	})
	return nil
}
