// Package statuslist implements Component D: a tenant-scoped, bitstring
// revocation list — allocation of a free index, setting/reading the
// revoked bit, and publishing the list as a signed VC-JWT envelope.
package statuslist

import (
	"time"

	"github.com/google/uuid"
)

// DefaultPurpose is the only status-list purpose the current design needs.
const DefaultPurpose = "revocation"

// DefaultSize is the bit-length of a freshly created status list.
const DefaultSize = 16384

// List is a single bitstring status list.
type List struct {
	ID        uuid.UUID
	TenantID  string
	Purpose   string
	Size      int
	Bitstring []byte // raw, uncompressed bytes of length Size/8
	UpdatedAt time.Time
}

// ByteLen returns the expected raw byte length for Size bits.
func (l *List) ByteLen() int {
	return l.Size / 8
}

// IsRevoked reports whether bit i is set. Out-of-range indices report false
// — a deliberately conservative bias, since signature verification already
// failed upstream of any path that could reach a malformed index.
func IsRevoked(bits []byte, i int) bool {
	if i < 0 || i/8 >= len(bits) {
		return false
	}
	return bits[i/8]&(1<<uint(i%8)) != 0
}

// SetRevoked sets bit i to 1 in place. Setting an already-set bit is a
// no-op. Returns false if i is out of range.
func SetRevoked(bits []byte, i int) bool {
	if i < 0 || i/8 >= len(bits) {
		return false
	}
	bits[i/8] |= 1 << uint(i%8)
	return true
}

// allocateFreeIndex scans bits left-to-right (byte 0 first, LSB first
// within each byte) and returns the smallest index whose bit is 0. Returns
// -1 if the list is full.
func allocateFreeIndex(bits []byte) int {
	for byteIdx, b := range bits {
		if b == 0xFF {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if b&(1<<uint(bit)) == 0 {
				return byteIdx*8 + bit
			}
		}
	}
	return -1
}
