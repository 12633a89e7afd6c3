package authcore

import (
	"errors"
	"time"

	"github.com/MrEthical07/authcore/password"
)

// Config is the engine configuration. Start from DefaultConfig and override
// fields; Build validates the result.
type Config struct {
	JWT            JWTConfig
	Refresh        RefreshConfig
	Lockout        LockoutConfig
	PasswordReset  PasswordResetConfig
	PasswordPolicy password.Policy
	Account        AccountConfig
	Audit          AuditConfig
	Notify         NotifyConfig
}

/*
====================================
TOKENS
====================================
*/

// JWTConfig configures access tokens.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	// KeyID is written to the kid header; VerifyKeys lists every key still
	// accepted during rotation.
	KeyID      string
	VerifyKeys map[string][]byte
}

// RefreshConfig configures refresh tokens.
type RefreshConfig struct {
	TTL time.Duration
}

/*
====================================
LOCKOUT
====================================
*/

// LockoutConfig configures the attempt tracker.
type LockoutConfig struct {
	Threshold int
	Window    time.Duration
	Duration  time.Duration
}

/*
====================================
PASSWORD RESET
====================================
*/

// PasswordResetConfig configures the reset ledger.
type PasswordResetConfig struct {
	TTL time.Duration
	// Limit tokens may be issued per account per Window.
	Limit  int
	Window time.Duration
	// LinkBase, when set, is sent to the notifier as reset_url with the
	// token appended.
	LinkBase string
}

// AccountConfig configures registration and login housekeeping.
type AccountConfig struct {
	DefaultRole string
	// RehashOnLogin re-encodes a password on successful login when the
	// encoder reports outdated parameters.
	RehashOnLogin bool
}

// AuditConfig controls audit buffering.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// NotifyConfig controls the notification queue.
type NotifyConfig struct {
	BufferSize  int
	SendTimeout time.Duration
}

// DefaultConfig returns production defaults. JWT keys must still be set.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
			Issuer:        "authcore",
		},
		Refresh: RefreshConfig{
			TTL: 30 * 24 * time.Hour,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Window:    15 * time.Minute,
			Duration:  15 * time.Minute,
		},
		PasswordReset: PasswordResetConfig{
			TTL:    time.Hour,
			Limit:  3,
			Window: time.Hour,
		},
		PasswordPolicy: password.DefaultPolicy(),
		Account: AccountConfig{
			DefaultRole:   DefaultRole,
			RehashOnLogin: true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Notify: NotifyConfig{
			BufferSize:  256,
			SendTimeout: 5 * time.Second,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for k, v := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[k] = cloneBytes(v)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 && len(c.JWT.VerifyKeys) == 0 {
			return errors.New("ed25519 requires PublicKey or VerifyKeys")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Refresh
	if c.Refresh.TTL <= 0 {
		return errors.New("Refresh TTL must be > 0")
	}
	if c.Refresh.TTL <= c.JWT.AccessTTL {
		return errors.New("Refresh TTL must exceed JWT AccessTTL")
	}

	// Lockout
	if c.Lockout.Threshold < 1 {
		return errors.New("Lockout Threshold must be >= 1")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("Lockout Window must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Password reset
	if c.PasswordReset.TTL <= 0 {
		return errors.New("PasswordReset TTL must be > 0")
	}
	if c.PasswordReset.Limit < 1 {
		return errors.New("PasswordReset Limit must be >= 1")
	}
	if c.PasswordReset.Window <= 0 {
		return errors.New("PasswordReset Window must be > 0")
	}

	if err := c.PasswordPolicy.Validate(); err != nil {
		return err
	}

	if c.Account.DefaultRole == "" {
		return errors.New("Account DefaultRole must not be empty")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	if c.Notify.BufferSize < 0 || c.Notify.SendTimeout < 0 {
		return errors.New("Notify settings must not be negative")
	}
	return nil
}
