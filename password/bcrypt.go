package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt hashes and verifies passwords with bcrypt. Inputs longer than 72
// bytes are rejected by bcrypt itself, so callers should keep the policy
// maximum at or below that when selecting this encoder.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt encoder. A zero cost selects bcrypt.DefaultCost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be in [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

// Hash returns the bcrypt encoding of password.
func (b *Bcrypt) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Matches reports whether password matches the stored bcrypt hash.
func (b *Bcrypt) Matches(password, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// NeedsUpgrade reports whether encodedHash was produced with a lower cost.
func (b *Bcrypt) NeedsUpgrade(encodedHash string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return cost < b.cost, nil
}
