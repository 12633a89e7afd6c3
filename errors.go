package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/password"
)

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while a lockout is active. The concrete
	// error is a *LockedError carrying the remaining duration.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDisabled is returned when the account exists but is inactive.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrRefreshInvalid covers absent, expired and already rotated refresh
	// tokens.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrPasswordPolicy is returned when a new password fails policy. The
	// concrete error is a *password.PolicyError carrying the reason code.
	ErrPasswordPolicy = password.ErrPolicy
	// ErrDuplicateAccount is returned by Register for an email already in use.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrUserNotFound is returned when an account referenced by a valid token
	// no longer exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenInvalid covers malformed, expired and revoked access tokens.
	ErrTokenInvalid = errors.New("invalid access token")
	// ErrInvalidEmail is returned by Register for an unusable email address.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrPasswordResetInvalid covers unknown, used and expired reset tokens.
	ErrPasswordResetInvalid = errors.New("password reset token invalid")
	// ErrAttemptTrackingUnavailable is returned when lockout bookkeeping could
	// not be recorded. No credential is issued in that case.
	ErrAttemptTrackingUnavailable = errors.New("attempt tracking unavailable")
	// ErrTokenIssue is returned when an access or refresh token could not be
	// minted or persisted.
	ErrTokenIssue = errors.New("token issuance failed")
	// ErrStorageUnavailable wraps account store failures.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrEngineNotReady is returned by operations on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// LockedError reports an active lockout.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked: retry in %s", e.Remaining.Round(time.Second))
}

// Is makes errors.Is(err, ErrAccountLocked) hold.
func (e *LockedError) Is(target error) bool { return target == ErrAccountLocked }
