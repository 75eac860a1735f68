package keymaterial

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateRoundTrip(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	require.Equal(t, "Ed25519", kp.Alg)
	require.Equal(t, "OKP", kp.PublicJWK.Kty)

	priv, err := PrivateKeyFromPEM(kp.PrivateKeyPEM)
	require.NoError(t, err)

	pub, err := PublicKeyFromJWK(kp.PublicJWK)
	require.NoError(t, err)
	require.Equal(t, ed25519.PublicKey(priv.Public().(ed25519.PublicKey)), pub)
}

func TestPublicKeyFromJWKRejectsWrongType(t *testing.T) {
	_, err := PublicKeyFromJWK(JWK{Kty: "RSA", Crv: "Ed25519", X: "abc"})
	require.Error(t, err)

	_, err = PublicKeyFromJWK(JWK{Kty: "OKP", Crv: "P-256", X: "abc"})
	require.Error(t, err)
}

func TestSigningRoundTrip(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	priv, err := PrivateKeyFromPEM(kp.PrivateKeyPEM)
	require.NoError(t, err)

	msg := []byte("hello pramana")
	sig := ed25519.Sign(priv, msg)

	pub, err := PublicKeyFromJWK(kp.PublicJWK)
	require.NoError(t, err)
	require.True(t, ed25519.Verify(pub, msg, sig))
}
