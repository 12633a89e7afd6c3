package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWS algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

// MaxLeeway bounds the clock skew tolerated on exp.
const MaxLeeway = 2 * time.Minute

// ErrInvalid wraps every parse or verification failure.
var ErrInvalid = errors.New("invalid access token")

// Config holds signing keys and validation settings. For HS256 PrivateKey is
// the shared secret. For Ed25519 keys may be raw or PEM encoded.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	// VerifyKeys maps kid to verification key during key rotation.
	VerifyKeys map[string][]byte
}

// Claims is the access-token payload. Subject carries the account email and
// ID carries the jti.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs and parses access tokens. It is immutable after
// construction and safe for concurrent use.
type Manager struct {
	cfg    Config
	method jwt.SigningMethod
	keys   keyring
	parser *jwt.Parser
	now    func() time.Time
}

// keyring holds keys decoded once at construction.
type keyring struct {
	kid    string
	sign   any // nil for a verify-only Ed25519 manager
	verify any
	byKid  map[string]any
}

// NewManager validates cfg and decodes its keys. A nil now uses time.Now.
func NewManager(cfg Config, now func() time.Time) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("token: access TTL must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > MaxLeeway {
		return nil, fmt.Errorf("token: leeway must be within [0, %s]", MaxLeeway)
	}
	if now == nil {
		now = time.Now
	}

	m := &Manager{cfg: cfg, now: now}
	var err error
	switch cfg.SigningMethod {
	case MethodHS256:
		m.method = jwt.SigningMethodHS256
		m.keys, err = hmacKeyring(cfg)
	case MethodEd25519:
		m.method = jwt.SigningMethodEdDSA
		m.keys, err = edKeyring(cfg)
	default:
		return nil, fmt.Errorf("token: unsupported signing method %q", cfg.SigningMethod)
	}
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	m.parser = jwt.NewParser(opts...)
	return m, nil
}

func hmacKeyring(cfg Config) (keyring, error) {
	if len(cfg.PrivateKey) < 32 {
		return keyring{}, errors.New("token: hs256 secret must be at least 32 bytes")
	}
	kr := keyring{kid: strings.TrimSpace(cfg.KeyID), sign: cfg.PrivateKey, verify: cfg.PrivateKey}
	if len(cfg.VerifyKeys) > 0 {
		kr.byKid = make(map[string]any, len(cfg.VerifyKeys))
		for kid, secret := range cfg.VerifyKeys {
			kr.byKid[kid] = secret
		}
	}
	return kr, kr.check()
}

func edKeyring(cfg Config) (keyring, error) {
	kr := keyring{kid: strings.TrimSpace(cfg.KeyID)}
	if len(cfg.PrivateKey) > 0 {
		priv, err := decodeEdPrivate(cfg.PrivateKey)
		if err != nil {
			return keyring{}, err
		}
		kr.sign = priv
		kr.verify = priv.Public()
	}
	if len(cfg.PublicKey) > 0 {
		pub, err := decodeEdPublic(cfg.PublicKey)
		if err != nil {
			return keyring{}, err
		}
		kr.verify = pub
	}
	if len(cfg.VerifyKeys) > 0 {
		kr.byKid = make(map[string]any, len(cfg.VerifyKeys))
		for kid, raw := range cfg.VerifyKeys {
			pub, err := decodeEdPublic(raw)
			if err != nil {
				return keyring{}, fmt.Errorf("token: verify key %q: %w", kid, err)
			}
			kr.byKid[kid] = pub
		}
	}
	if kr.verify == nil && kr.byKid == nil {
		return keyring{}, errors.New("token: ed25519 needs a key to verify with")
	}
	return kr, kr.check()
}

func (kr keyring) check() error {
	for kid := range kr.byKid {
		if strings.TrimSpace(kid) == "" {
			return errors.New("token: verify keys contain an empty kid")
		}
	}
	if kr.kid != "" && kr.byKid != nil {
		if _, ok := kr.byKid[kr.kid]; !ok {
			return fmt.Errorf("token: KeyID %q missing from VerifyKeys", kr.kid)
		}
	}
	return nil
}

// lookup picks the verification key named by the token's kid header.
func (kr keyring) lookup(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	switch {
	case kr.byKid != nil:
		if key, ok := kr.byKid[kid]; ok {
			return key, nil
		}
		return nil, fmt.Errorf("unknown kid %q", kid)
	case kr.kid != "" && kid != kr.kid:
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	return kr.verify, nil
}

// TTL returns the configured access-token lifetime.
func (m *Manager) TTL() time.Duration { return m.cfg.AccessTTL }

// Issue signs a new token for subject with role and a fresh jti.
func (m *Manager) Issue(subject, role string) (string, *Claims, error) {
	if subject == "" {
		return "", nil, errors.New("token subject must not be empty")
	}
	if m.keys.sign == nil {
		return "", nil, errors.New("token: manager is verify-only")
	}

	now := m.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.AccessTTL)),
			Issuer:    m.cfg.Issuer,
		},
	}
	if m.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.cfg.Audience}
	}

	tok := jwt.NewWithClaims(m.method, claims)
	if m.keys.kid != "" {
		tok.Header["kid"] = m.keys.kid
	}
	signed, err := tok.SignedString(m.keys.sign)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies signature, expiry, issuer and audience and returns the
// claims. Every failure wraps ErrInvalid.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrInvalid
	}
	claims := &Claims{}
	tok, err := m.parser.ParseWithClaims(tokenStr, claims, m.keys.lookup)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !tok.Valid {
		return nil, ErrInvalid
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing sub or jti", ErrInvalid)
	}
	return claims, nil
}

// Remaining returns how long Parse keeps accepting claims from now, leeway
// included, floored at zero.
func (m *Manager) Remaining(claims *Claims) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	d := claims.ExpiresAt.Add(m.cfg.Leeway).Sub(m.now())
	if d < 0 {
		return 0
	}
	return d
}

func decodeEdPrivate(raw []byte) (ed25519.PrivateKey, error) {
	if len(raw) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(raw), nil
	}
	key, err := jwt.ParseEdPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("token: ed25519 private key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("token: PEM is not an ed25519 private key")
	}
	return priv, nil
}

func decodeEdPublic(raw []byte) (ed25519.PublicKey, error) {
	if len(raw) == ed25519.PublicKeySize {
		return ed25519.PublicKey(raw), nil
	}
	key, err := jwt.ParseEdPublicKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("token: ed25519 public key: %w", err)
	}
	pub, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("token: PEM is not an ed25519 public key")
	}
	return pub, nil
}
