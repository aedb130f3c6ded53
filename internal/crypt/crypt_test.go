package crypt

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustKey(t *testing.T) []byte {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	require.Len(t, key, KeySize)
	return key
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := mustKey(t)
	for _, size := range []int{0, 1, 15, 16, 17, 4096, 100_000} {
		plain := make([]byte, size)
		_, err := rand.Read(plain)
		require.NoError(t, err)

		sealed, err := Seal(plain, key)
		require.NoError(t, err)
		assert.Len(t, sealed, Overhead+size, "ciphertext length equals plaintext length")

		got, err := Open(sealed, key)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(plain, got))
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	key := mustKey(t)
	a, err := Seal([]byte("same"), key)
	require.NoError(t, err)
	b, err := Seal([]byte("same"), key)
	require.NoError(t, err)
	assert.NotEqual(t, a[:NonceSize], b[:NonceSize])
}

func TestOpenDetectsEveryBitFlip(t *testing.T) {
	key := mustKey(t)
	sealed, err := Seal([]byte("integrity matters"), key)
	require.NoError(t, err)

	for i := range len(sealed) * 8 {
		flipped := bytes.Clone(sealed)
		flipped[i/8] ^= 1 << (i % 8)
		_, err := Open(flipped, key)
		require.ErrorIs(t, err, ErrIntegrity, "bit %d", i)
	}
}

func TestOpenWrongKey(t *testing.T) {
	sealed, err := Seal([]byte("payload"), mustKey(t))
	require.NoError(t, err)
	_, err = Open(sealed, mustKey(t))
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestOpenTruncated(t *testing.T) {
	_, err := Open(make([]byte, Overhead-1), mustKey(t))
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestBadKeySize(t *testing.T) {
	_, err := Seal([]byte("x"), []byte("short"))
	assert.ErrorIs(t, err, ErrKeySize)
	_, err = Open(make([]byte, 64), make([]byte, 16))
	assert.ErrorIs(t, err, ErrKeySize)
}
