package statuslist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsRevokedAndSetRevoked(t *testing.T) {
	bits := make([]byte, 2)
	require.False(t, IsRevoked(bits, 0))
	require.False(t, IsRevoked(bits, 15))

	require.True(t, SetRevoked(bits, 9))
	require.True(t, IsRevoked(bits, 9))
	require.False(t, IsRevoked(bits, 8))
	require.False(t, IsRevoked(bits, 10))

	// Idempotent: setting an already-set bit is a no-op, not an error.
	require.True(t, SetRevoked(bits, 9))
	require.True(t, IsRevoked(bits, 9))
}

func TestSetRevokedRejectsOutOfRange(t *testing.T) {
	bits := make([]byte, 1)
	require.False(t, SetRevoked(bits, 8))
	require.False(t, SetRevoked(bits, -1))
}

func TestIsRevokedOutOfRangeReportsFalse(t *testing.T) {
	bits := make([]byte, 1)
	require.False(t, IsRevoked(bits, 100))
	require.False(t, IsRevoked(bits, -1))
}

func TestAllocateFreeIndexFindsSmallestFreeBit(t *testing.T) {
	bits := make([]byte, 2)
	require.Equal(t, 0, allocateFreeIndex(bits))

	SetRevoked(bits, 0)
	SetRevoked(bits, 1)
	require.Equal(t, 2, allocateFreeIndex(bits))
}

func TestAllocateFreeIndexReportsFullList(t *testing.T) {
	bits := []byte{0xFF, 0xFF}
	require.Equal(t, -1, allocateFreeIndex(bits))
}

func TestByteLen(t *testing.T) {
	l := List{Size: 16384}
	require.Equal(t, 2048, l.ByteLen())
}
