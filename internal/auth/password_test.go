package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordIsSalted(t *testing.T) {
	first, err := HashPassword("secret-password")
	require.NoError(t, err)
	second, err := HashPassword("secret-password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "two hashes of the same plaintext should differ")
	assert.True(t, CheckPasswordHash("secret-password", first))
	assert.True(t, CheckPasswordHash("secret-password", second))
}

func TestCheckPasswordHashRejectsWrongPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.False(t, CheckPasswordHash("battery staple", hash))
	assert.False(t, CheckPasswordHash("", hash))
}

func TestCheckPasswordHashMalformedHash(t *testing.T) {
	assert.False(t, CheckPasswordHash("anything", "not-a-bcrypt-hash"))
	assert.False(t, CheckPasswordHash("anything", ""))
}
