package authcore

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/MrEthical07/authcore/internal/audit"
)

// Register creates an account with the default role and signs it in,
// returning both an access and a refresh token. A welcome notification is
// sent best effort.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (res *LoginResult, err error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Register")
	defer func() { endSpan(span, err) }()

	email := normalizeEmail(req.Email)
	if addr, perr := mail.ParseAddress(email); perr != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}
	if err := e.config.PasswordPolicy.Check(req.Password); err != nil {
		return nil, err
	}

	_, err = e.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrDuplicateAccount
	case !errors.Is(err, ErrUserNotFound):
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	hash, err := e.encoder.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	id, err := e.ids.NextID()
	if err != nil {
		return nil, fmt.Errorf("generate account id: %w", err)
	}
	acct := Account{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		DisplayName:  req.DisplayName,
		Role:         e.config.Account.DefaultRole,
		Active:       true,
	}
	if err := e.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			return nil, ErrDuplicateAccount
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	res, err = e.issueCredentials(ctx, &acct, true)
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, audit.Event{
		EventType: audit.TypeRegisterSuccess,
		UserID:    userIDString(acct.ID),
		Email:     email,
		IP:        req.Source.IP,
		UserAgent: req.Source.UserAgent,
		Success:   true,
	})
	e.sendNotification(Notification{
		Kind:      NotifyWelcome,
		Recipient: email,
		Data:      map[string]string{"display_name": acct.DisplayName},
	})
	return res, nil
}
