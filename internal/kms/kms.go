// Package kms defines the sealing boundary around private key material.
// The core credential engine never sees an unsealed private key except for
// the instant it needs to sign, and never logs one. Production deployments
// are expected to swap DevSealer for a real KMS-backed implementation; the
// interface is the contract, not the envelope format below.
package kms

import "context"

// Sealer seals and unseals opaque plaintext, typically a PKCS#8 PEM blob.
// Implementations must treat both arguments as opaque bytes.
type Sealer interface {
	Seal(ctx context.Context, plaintext []byte) (ciphertext []byte, err error)
	Unseal(ctx context.Context, ciphertext []byte) (plaintext []byte, err error)
}
