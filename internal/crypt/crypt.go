// Package crypt implements the optional asset encryption layer.
//
// Payloads are sealed with AES-256-GCM using a 16-byte nonce. The stored
// layout is nonce || tag || ciphertext with fixed offsets and no length
// prefix; the bootstrap's decrypt routine depends on exactly this layout.
//
// This is an obfuscation feature. The key ships inside the executable.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	KeySize   = 32
	NonceSize = 16
	TagSize   = 16
	Overhead  = NonceSize + TagSize
)

var (
	// ErrIntegrity is returned when authentication fails. Callers treat it
	// as fatal.
	ErrIntegrity = errors.New("encrypted payload failed integrity check")
	// ErrKeySize is returned for keys that are not 32 bytes.
	ErrKeySize = errors.New("encryption key must be 32 bytes")
)

// GenerateKey returns a fresh random 256-bit key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plain under key with a fresh random nonce.
func Seal(plain, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	// gcm.Seal appends ciphertext||tag; the wire layout puts the tag first.
	sealed := gcm.Seal(nil, nonce, plain, nil)
	ct, tag := sealed[:len(plain)], sealed[len(plain):]

	out := make([]byte, 0, Overhead+len(plain))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)
	return out, nil
}

// Open reverses Seal. Any authentication failure yields ErrIntegrity.
func Open(blob, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(blob) < Overhead {
		return nil, fmt.Errorf("%w: payload is %d bytes", ErrIntegrity, len(blob))
	}

	nonce := blob[:NonceSize]
	tag := blob[NonceSize:Overhead]
	ct := blob[Overhead:]

	buf := make([]byte, 0, len(ct)+TagSize)
	buf = append(buf, ct...)
	buf = append(buf, tag...)

	plain, err := gcm.Open(buf[:0], nonce, buf, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plain, nil
}
