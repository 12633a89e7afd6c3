package password

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashAndMatches(t *testing.T) {
	enc, err := NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := enc.Hash("Correct#Horse1")
	require.NoError(t, err)

	ok, err := enc.Matches("Correct#Horse1", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = enc.Matches("Wrong#Horse1", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBcryptMalformedHash(t *testing.T) {
	enc, err := NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)

	_, err = enc.Matches("anything", "not-a-bcrypt-hash")
	require.True(t, errors.Is(err, ErrMalformedHash))
}

func TestBcryptNeedsUpgrade(t *testing.T) {
	weak, err := NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)
	strong, err := NewBcrypt(bcrypt.MinCost + 1)
	require.NoError(t, err)

	hash, err := weak.Hash("Upgrade#Me1")
	require.NoError(t, err)

	needs, err := strong.NeedsUpgrade(hash)
	require.NoError(t, err)
	require.True(t, needs)

	needs, err = weak.NeedsUpgrade(hash)
	require.NoError(t, err)
	require.False(t, needs)
}

func TestNewBcryptRejectsCostOutOfRange(t *testing.T) {
	_, err := NewBcrypt(bcrypt.MaxCost + 1)
	require.Error(t, err)
}
