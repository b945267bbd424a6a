// Package secrets encrypts session artifacts (platform cookies, OAuth tokens)
// before they reach the store. One symmetric key for the whole process,
// supplied as base64 via config.
package secrets

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecrypt covers every failure mode of Open: wrong key, truncated blob,
// tampered ciphertext. Callers treat it as "the stored artifact is unusable".
var ErrDecrypt = errors.New("secrets: decrypt failed")

type Box struct {
	aead cipher.AEAD
}

// NewBox builds a box from a raw 32-byte key.
func NewBox(key []byte) (*Box, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("secrets: key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: init cipher: %w", err)
	}
	return &Box{aead: aead}, nil
}

// NewBoxFromBase64 builds a box from a base64-encoded 32-byte key (the form
// carried in DEALSCOUT_ENCRYPTION_KEY).
func NewBoxFromBase64(encoded string) (*Box, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("secrets: decode key: %w", err)
	}
	return NewBox(key)
}

// Seal encrypts plain and returns nonce||ciphertext.
func (b *Box) Seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("secrets: nonce: %w", err)
	}
	return b.aead.Seal(nonce, nonce, plain, nil), nil
}

// Open decrypts a blob produced by Seal.
func (b *Box) Open(blob []byte) ([]byte, error) {
	if len(blob) < b.aead.NonceSize() {
		return nil, ErrDecrypt
	}
	nonce, ct := blob[:b.aead.NonceSize()], blob[b.aead.NonceSize():]
	plain, err := b.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}
