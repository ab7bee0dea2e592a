// Package secrets seals provider credentials for storage at rest using
// AES-256-GCM. The master key is supplied out-of-band (environment /
// secret manager) and never persisted next to the data it protects.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
)

// Errors returned by Box operations.
var (
	// ErrInvalidKey indicates the master key is not a 32-byte hex string.
	ErrInvalidKey = errors.New("secrets: master key must be 64 hex characters (32 bytes)")

	// ErrMalformed indicates a sealed value that cannot be decoded or
	// authenticated. It covers truncation, corruption, and wrong-key opens.
	ErrMalformed = errors.New("secrets: malformed or unauthenticated sealed value")
)

// Box seals and opens short string secrets. It is safe for concurrent use.
type Box struct {
	aead cipher.AEAD
}

// New builds a Box from a hex-encoded 32-byte master key.
func New(hexKey string) (*Box, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Box{aead: aead}, nil
}

// Seal encrypts plain and returns a base64 string of nonce||ciphertext.
// Each call uses a fresh random nonce, so sealing the same value twice
// yields different outputs.
func (b *Box) Seal(plain string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Tampered or truncated input,
// and input sealed under a different key, fail with ErrMalformed.
func (b *Box) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrMalformed
	}
	ns := b.aead.NonceSize()
	if len(raw) < ns {
		return "", ErrMalformed
	}
	plain, err := b.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", ErrMalformed
	}
	return string(plain), nil
}
