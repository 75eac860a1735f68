package kms

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// DevSealer is a symmetric envelope sealer keyed from a single configured
// secret. It mirrors the original project's Fernet-based envelope (a key
// derived from a master secret, wrapping arbitrary plaintext) but is
// expressed with golang.org/x/crypto's NaCl secretbox rather than Fernet,
// since this module has no Fernet equivalent in its dependency pack.
// It is explicitly a development/single-node stand-in for a real KMS.
type DevSealer struct {
	key [32]byte
}

// NewDevSealer derives a 32-byte sealing key from an arbitrary-length secret.
func NewDevSealer(secret string) *DevSealer {
	return &DevSealer{key: sha256.Sum256([]byte(secret))}
}

// Seal encrypts plaintext with a fresh random nonce, prefixed to the ciphertext.
func (s *DevSealer) Seal(_ context.Context, plaintext []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generating seal nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.key), nil
}

// Unseal decrypts ciphertext produced by Seal.
func (s *DevSealer) Unseal(_ context.Context, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 24 {
		return nil, fmt.Errorf("sealed blob too short")
	}
	var nonce [24]byte
	copy(nonce[:], ciphertext[:24])

	plaintext, ok := secretbox.Open(nil, ciphertext[24:], &nonce, &s.key)
	if !ok {
		return nil, fmt.Errorf("unsealing blob: authentication failed")
	}
	return plaintext, nil
}
