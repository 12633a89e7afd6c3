package authcore

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/notify"
)

// DefaultRole is assigned to accounts created by Register.
const DefaultRole = "USER"

// TokenType is the token type marker returned with access tokens.
const TokenType = "Bearer"

// Account is the view of a user record the engine needs.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	DisplayName  string
	Role         string
	Active       bool
}

// AccountStore is the external account lookup. Find methods return
// ErrUserNotFound when no account matches; Create returns
// ErrDuplicateAccount when the email is taken.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id int64) (*Account, error)
	Create(ctx context.Context, a Account) error
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

// Encoder hashes and verifies passwords. password.Argon2 and
// password.Bcrypt implement it.
type Encoder interface {
	Hash(plaintext string) (string, error)
	Matches(plaintext, hash string) (bool, error)
}

// upgradeChecker is implemented by encoders that can tell when a stored hash
// uses outdated parameters.
type upgradeChecker interface {
	NeedsUpgrade(hash string) (bool, error)
}

// Notification and Notifier describe best-effort outbound messages.
type (
	Notification = notify.Notification
	Notifier     = notify.Notifier
)

// Notification kinds sent by the engine.
const (
	NotifyPasswordReset   = notify.KindPasswordReset
	NotifyPasswordChanged = notify.KindPasswordChanged
	NotifyWelcome         = notify.KindWelcome
)

// IDGenerator yields globally unique, roughly time-ordered ids.
type IDGenerator interface {
	NextID() (int64, error)
}

// Clock returns the current time.
type Clock func() time.Time

// Source describes where a request came from. It is recorded with lockouts
// and audit events and never affects a decision.
type Source struct {
	IP        string
	UserAgent string
}

// LoginRequest is the input to Login and LoginWithRefreshToken.
type LoginRequest struct {
	Email    string
	Password string
	// Remember asks Login to mint a refresh token.
	Remember bool
	Source   Source
}

// RegisterRequest is the input to Register.
type RegisterRequest struct {
	Email       string
	Password    string
	DisplayName string
	Source      Source
}

// LoginResult carries issued credentials and the profile fields a client
// renders after sign-in. RefreshToken is empty unless one was minted.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    time.Duration
	Email        string
	DisplayName  string
	Role         string
}

// AuditEvent and AuditSink let callers receive audit events through
// Builder.WithAuditSink.
type (
	AuditEvent = audit.Event
	AuditSink  = audit.Sink
)
