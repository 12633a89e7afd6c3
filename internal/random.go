package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// OpaqueTokenSize is the number of random bytes behind refresh and reset
// tokens. Encoded it yields 43 base64url characters.
const OpaqueTokenSize = 32

var errMalformedToken = errors.New("malformed opaque token")

// NewOpaqueToken returns a fresh base64url (no padding) encoded random token.
func NewOpaqueToken() (string, error) {
	var raw [OpaqueTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashToken returns the hex SHA-256 of token. Only hashes are persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CheckOpaqueToken rejects strings that could not have come from
// NewOpaqueToken, so obviously forged input never reaches storage.
func CheckOpaqueToken(token string) error {
	if len(token) != base64.RawURLEncoding.EncodedLen(OpaqueTokenSize) {
		return errMalformedToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != OpaqueTokenSize {
		return errMalformedToken
	}
	return nil
}
