package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRandomCredential(t *testing.T) {
	h, err := NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	plain, hashed, err := NewRandomCredential(h)
	require.NoError(t, err)
	assert.Len(t, plain, DefaultPasswordLength)
	assert.NoError(t, h.Compare(hashed, plain))
	assert.ErrorIs(t, h.Compare(hashed, plain+"x"), ErrPasswordMismatch)
}

func TestInvalidCost(t *testing.T) {
	_, err := NewBcryptHasher(99)
	assert.Error(t, err)
}
