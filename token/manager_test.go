package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var hsSecret = []byte("0123456789abcdef0123456789abcdef")

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func mustManager(t *testing.T, cfg Config, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(cfg, now)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func mustIssue(t *testing.T, m *Manager, subject string) (string, *Claims) {
	t.Helper()
	signed, claims, err := m.Issue(subject, "USER")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return signed, claims
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	m := mustManager(t, Config{AccessTTL: 15 * time.Minute, SigningMethod: MethodHS256, PrivateKey: hsSecret, Issuer: "authcore"}, c.Now)

	signed, issued, err := m.Issue("alice@example.com", "ADMIN")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := m.Parse(signed)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "alice@example.com" || claims.Role != "ADMIN" || claims.ID != issued.ID {
		t.Fatalf("claims = %+v, issued jti %q", claims, issued.ID)
	}
	if got := m.Remaining(claims); got != 15*time.Minute {
		t.Fatalf("Remaining = %s, want 15m", got)
	}

	c.now = c.now.Add(10 * time.Minute)
	if got := m.Remaining(claims); got != 5*time.Minute {
		t.Fatalf("Remaining after 10m = %s, want 5m", got)
	}
}

func TestIssueProducesUniqueJTI(t *testing.T) {
	m := mustManager(t, Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: hsSecret}, nil)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		_, claims := mustIssue(t, m, "bob@example.com")
		if seen[claims.ID] {
			t.Fatalf("duplicate jti %q", claims.ID)
		}
		seen[claims.ID] = true
	}
}

func TestParseRejectsExpired(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	m := mustManager(t, Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: hsSecret}, c.Now)
	signed, claims := mustIssue(t, m, "alice@example.com")

	c.now = c.now.Add(2 * time.Minute)
	if _, err := m.Parse(signed); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for expired token, got %v", err)
	}
	if got := m.Remaining(claims); got != 0 {
		t.Fatalf("Remaining = %s, want 0", got)
	}
}

// Remaining must cover every instant at which Parse still accepts the token,
// or a revocation keyed on it lapses early.
func TestRemainingCoversLeeway(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	m := mustManager(t, Config{AccessTTL: 15 * time.Minute, SigningMethod: MethodHS256, PrivateKey: hsSecret, Leeway: time.Minute}, c.Now)
	signed, claims := mustIssue(t, m, "alice@example.com")

	if got := m.Remaining(claims); got != 16*time.Minute {
		t.Fatalf("Remaining = %s, want 16m", got)
	}

	c.now = c.now.Add(15*time.Minute + 10*time.Second)
	if _, err := m.Parse(signed); err != nil {
		t.Fatalf("token inside leeway rejected: %v", err)
	}
	if got := m.Remaining(claims); got != 50*time.Second {
		t.Fatalf("Remaining inside leeway = %s, want 50s", got)
	}

	c.now = c.now.Add(time.Minute)
	if _, err := m.Parse(signed); !errors.Is(err, ErrInvalid) {
		t.Fatalf("token past leeway accepted: %v", err)
	}
	if got := m.Remaining(claims); got != 0 {
		t.Fatalf("Remaining past leeway = %s, want 0", got)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m := mustManager(t, Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub}, nil)

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice@example.com",
		ID:        "jti",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	signed, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(hsSecret)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Parse(signed); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for HS256 token on Ed25519 manager, got %v", err)
	}
}

func TestParseIssuerAudienceAndLeeway(t *testing.T) {
	pub, priv := newEdKeys(t)
	m := mustManager(t, Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "authcore",
		Audience:      "api",
		Leeway:        30 * time.Second,
	}, nil)

	signed, _ := mustIssue(t, m, "alice@example.com")
	if _, err := m.Parse(signed); err != nil {
		t.Fatalf("Parse own token: %v", err)
	}

	sign := func(rc gjwt.RegisteredClaims) string {
		s, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, Claims{RegisteredClaims: rc}).SignedString(priv)
		if err != nil {
			t.Fatal(err)
		}
		return s
	}
	base := func() gjwt.RegisteredClaims {
		return gjwt.RegisteredClaims{
			Subject:   "alice@example.com",
			ID:        "jti-1",
			Issuer:    "authcore",
			Audience:  gjwt.ClaimStrings{"api"},
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
		}
	}

	cases := []struct {
		name   string
		mutate func(*gjwt.RegisteredClaims)
		ok     bool
	}{
		{"wrong issuer", func(rc *gjwt.RegisteredClaims) { rc.Issuer = "other" }, false},
		{"wrong audience", func(rc *gjwt.RegisteredClaims) { rc.Audience = gjwt.ClaimStrings{"other-api"} }, false},
		{"within leeway", func(rc *gjwt.RegisteredClaims) { rc.ExpiresAt = gjwt.NewNumericDate(time.Now().Add(-15 * time.Second)) }, true},
		{"expired", func(rc *gjwt.RegisteredClaims) { rc.ExpiresAt = gjwt.NewNumericDate(time.Now().Add(-2 * time.Minute)) }, false},
		{"missing jti", func(rc *gjwt.RegisteredClaims) { rc.ID = "" }, false},
		{"missing exp", func(rc *gjwt.RegisteredClaims) { rc.ExpiresAt = nil }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rc := base()
			tc.mutate(&rc)
			_, err := m.Parse(sign(rc))
			if tc.ok && err != nil {
				t.Fatalf("expected accept, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestParseKeyRotation(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, priv2 := newEdKeys(t)

	oldSigner := mustManager(t, Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv1, KeyID: "k1"}, nil)
	newSigner := mustManager(t, Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv2,
		KeyID:         "k2",
		VerifyKeys:    map[string][]byte{"k1": pub1, "k2": pub2},
	}, nil)

	oldToken, _ := mustIssue(t, oldSigner, "alice@example.com")
	if _, err := newSigner.Parse(oldToken); err != nil {
		t.Fatalf("token under retired key rejected during rotation: %v", err)
	}

	_, roguePriv := newEdKeys(t)
	rogue := mustManager(t, Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: roguePriv, KeyID: "k3"}, nil)
	rogueToken, _ := mustIssue(t, rogue, "alice@example.com")
	if _, err := newSigner.Parse(rogueToken); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unknown kid, got %v", err)
	}
}

func TestEd25519PEMKeys(t *testing.T) {
	pub, priv := newEdKeys(t)
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}

	signer := mustManager(t, Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}),
	}, nil)
	verifier := mustManager(t, Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PublicKey:     pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}),
	}, nil)

	signed, _ := mustIssue(t, signer, "alice@example.com")
	if _, err := verifier.Parse(signed); err != nil {
		t.Fatalf("PEM verifier rejected PEM-signed token: %v", err)
	}
	if _, _, err := verifier.Issue("alice@example.com", "USER"); err == nil {
		t.Fatal("verify-only manager must not issue")
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := map[string]Config{
		"zero ttl":       {AccessTTL: 0, SigningMethod: MethodHS256, PrivateKey: hsSecret},
		"short secret":   {AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		"unknown method": {AccessTTL: time.Minute, SigningMethod: "rs256", PrivateKey: hsSecret},
		"no ed keys":     {AccessTTL: time.Minute, SigningMethod: MethodEd25519},
		"bad ed key":     {AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: []byte("nope")},
		"leeway":         {AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: hsSecret, Leeway: 3 * time.Minute},
		"kid missing":    {AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: hsSecret, KeyID: "a", VerifyKeys: map[string][]byte{"b": hsSecret}},
		"empty kid":      {AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: hsSecret, VerifyKeys: map[string][]byte{" ": hsSecret}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewManager(cfg, nil); err == nil {
				t.Fatal("expected configuration error")
			}
		})
	}
}

func TestParseEmptyToken(t *testing.T) {
	m := mustManager(t, Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: hsSecret}, nil)
	if _, err := m.Parse(""); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}
