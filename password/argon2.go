package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrMalformedHash is returned when a stored hash cannot be parsed.
var ErrMalformedHash = errors.New("malformed password hash")

// Lower bounds accepted both for configuration and for stored hashes.
const (
	minMemoryKB = 8 * 1024
	minSaltLen  = 16
	minKeyLen   = 16
)

// Argon2Config holds Argon2id cost parameters. Memory is in KiB.
type Argon2Config struct {
	Memory      uint32 `mapstructure:"memory_kb"`
	Time        uint32 `mapstructure:"time"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// DefaultArgon2Config returns the parameters used when none are configured.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (c Argon2Config) validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("argon2: memory must be >= %d KiB", minMemoryKB)
	case c.Time < 1:
		return errors.New("argon2: time must be >= 1")
	case c.Parallelism < 1:
		return errors.New("argon2: parallelism must be >= 1")
	case c.SaltLength < minSaltLen:
		return fmt.Errorf("argon2: salt length must be >= %d", minSaltLen)
	case c.KeyLength < minKeyLen:
		return fmt.Errorf("argon2: key length must be >= %d", minKeyLen)
	}
	return nil
}

// Argon2 hashes and verifies passwords with Argon2id. It is safe for
// concurrent use.
type Argon2 struct {
	cfg Argon2Config
}

// NewArgon2 validates cfg and returns an encoder.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash returns the PHC string for password under a fresh random salt.
// Bytes are hashed as given, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}

	salt := make([]byte, a.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	h := phc{
		memory:  a.cfg.Memory,
		time:    a.cfg.Time,
		threads: a.cfg.Parallelism,
		salt:    salt,
	}
	h.key = h.derive(password, a.cfg.KeyLength)
	return h.String(), nil
}

// Matches reports whether password hashes to encodedHash in constant time.
func (a *Argon2) Matches(password, encodedHash string) (bool, error) {
	h, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	got := h.derive(password, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(got, h.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker
// parameters than the current configuration.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	h, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return h.memory < a.cfg.Memory ||
		h.time < a.cfg.Time ||
		h.threads < a.cfg.Parallelism ||
		uint32(len(h.key)) != a.cfg.KeyLength, nil
}

// phc is a decoded $argon2id$v=19$m=..,t=..,p=..$salt$key string.
type phc struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func (h phc) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.threads, keyLen)
}

func (h phc) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.memory, h.time, h.threads,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key))
}

func decodePHC(s string) (phc, error) {
	var h phc
	bad := func(what string) (phc, error) {
		return phc{}, fmt.Errorf("%w: %s", ErrMalformedHash, what)
	}

	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[0] != "" {
		return bad("want 5 fields")
	}
	if parts[1] != "argon2id" {
		return bad("algorithm " + parts[1])
	}

	var version int
	if n, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || n != 1 {
		return bad("version")
	}
	if version != argon2.Version {
		return bad(fmt.Sprintf("version %d", version))
	}

	// A fourth match means trailing junk after p.
	var rest string
	if n, _ := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d%s", &h.memory, &h.time, &h.threads, &rest); n != 3 {
		return bad("parameters")
	}
	if h.memory < minMemoryKB || h.time < 1 || h.threads < 1 {
		return bad("parameters out of range")
	}

	var err error
	if h.salt, err = decodeB64(parts[4]); err != nil || len(h.salt) < minSaltLen {
		return bad("salt")
	}
	if h.key, err = decodeB64(parts[5]); err != nil || len(h.key) == 0 {
		return bad("key")
	}
	return h, nil
}

// decodeB64 accepts the unpadded PHC form and the padded form older hashes
// were written with.
func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
