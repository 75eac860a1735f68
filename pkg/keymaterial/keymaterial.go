// Package keymaterial generates and encodes the Ed25519 key pairs that back
// every DID verification method in the system. It never persists anything
// itself; sealing the private key is the caller's responsibility via the
// internal/kms interface.
package keymaterial

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/pramana-labs/pramana/pkg/bitstring"
)

// JWK is a JSON Web Key in the minimal OKP/Ed25519 shape this system emits
// and accepts. Other kty/crv combinations are rejected outright.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
}

// KeyPair holds a freshly generated Ed25519 key in both wire forms: the
// public JWK and the PKCS#8 PEM encoding of the private key, ready to be
// handed to the KMS for sealing.
type KeyPair struct {
	PrivateKeyPEM []byte
	PublicJWK     JWK
	Alg           string
}

// Generate creates a new Ed25519 key pair.
func Generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating ed25519 key: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshaling private key: %w", err)
	}
	pemBlock := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	return &KeyPair{
		PrivateKeyPEM: pemBlock,
		PublicJWK: JWK{
			Kty: "OKP",
			Crv: "Ed25519",
			X:   bitstring.B64URL(pub),
		},
		Alg: "Ed25519",
	}, nil
}

// PrivateKeyFromPEM parses a PKCS#8 PEM block back into an Ed25519 private key.
func PrivateKeyFromPEM(data []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in private key material")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing PKCS#8 private key: %w", err)
	}

	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key material is not Ed25519")
	}
	return priv, nil
}

// PublicKeyFromJWK validates and decodes an OKP/Ed25519 JWK into a raw public key.
func PublicKeyFromJWK(jwk JWK) (ed25519.PublicKey, error) {
	if jwk.Kty != "OKP" {
		return nil, fmt.Errorf("unsupported jwk kty %q: only OKP is accepted", jwk.Kty)
	}
	if jwk.Crv != "Ed25519" {
		return nil, fmt.Errorf("unsupported jwk crv %q: only Ed25519 is accepted", jwk.Crv)
	}

	raw, err := bitstring.B64URLDecode(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("decoding jwk x coordinate: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("jwk x coordinate has wrong length %d, want %d", len(raw), ed25519.PublicKeySize)
	}

	return ed25519.PublicKey(raw), nil
}
