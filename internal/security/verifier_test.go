package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptVerifier_HashAndMatch(t *testing.T) {
	v := NewBcryptVerifier(bcrypt.MinCost)

	digest, err := v.Hash("1234")
	require.NoError(t, err)
	assert.NotEqual(t, "1234", digest)
	assert.True(t, v.Matches("1234", digest))
	assert.False(t, v.Matches("4321", digest))
}

func TestBcryptVerifier_EmptyDigestNeverMatches(t *testing.T) {
	v := NewBcryptVerifier(bcrypt.MinCost)
	assert.False(t, v.Matches("", ""))
	assert.False(t, v.Matches("1234", ""))
}

func TestBcryptVerifier_SaltsEachHash(t *testing.T) {
	v := NewBcryptVerifier(bcrypt.MinCost)
	a, err := v.Hash("1234")
	require.NoError(t, err)
	b, err := v.Hash("1234")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestNewBcryptVerifier_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptVerifier(0).cost)
	assert.Equal(t, bcrypt.MaxCost, NewBcryptVerifier(99).cost)
}

func TestPinPolicy_Validate(t *testing.T) {
	p := PinPolicy{Length: 4}
	assert.NoError(t, p.Validate("0000"))
	assert.ErrorIs(t, p.Validate("123"), ErrPinFormat)
	assert.ErrorIs(t, p.Validate("12345"), ErrPinFormat)
	assert.ErrorIs(t, p.Validate(""), ErrPinFormat)
}
