package bitstring

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestB64URLRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0xff, 0xfe, 0xfd},
		make([]byte, 2048),
	}
	for _, c := range cases {
		encoded := B64URL(c)
		decoded, err := B64URLDecode(encoded)
		require.NoError(t, err)
		require.Equal(t, c, decoded)
	}
}

func TestB64URLNoPadding(t *testing.T) {
	encoded := B64URL([]byte("f"))
	require.NotContains(t, encoded, "=")
}

func TestGzipRoundTrip(t *testing.T) {
	raw := make([]byte, 16384/8)
	_, err := rand.Read(raw)
	require.NoError(t, err)

	compressed, err := Gzip(raw)
	require.NoError(t, err)

	decompressed, err := Gunzip(compressed)
	require.NoError(t, err)
	require.Equal(t, raw, decompressed)
}

func TestGunzipRejectsGarbage(t *testing.T) {
	_, err := Gunzip([]byte("not gzip data"))
	require.Error(t, err)
}
