// Package hash provides the 32-byte content-addressing digest used to
// identify every cell in the store.
package hash

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Size is the number of bytes in a Hash.
const Size = 32

// Hash is an opaque 32-byte digest. Two hashes are equal iff all bytes
// match; no other ordering is observable outside this package beyond the
// lexicographic byte comparison used for tie-breaks in belief-merge.
type Hash [Size]byte

// Zero is the all-zero hash.
var Zero = Hash{}

// Of returns the Blake2b-256 digest of b.
func Of(b []byte) Hash {
	return blake2b.Sum256(b)
}

// String renders the hash as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Less reports whether h sorts before o in byte-lexicographic order, used
// as the tie-break rule in winning-chain selection.
func (h Hash) Less(o Hash) bool {
	for i := range h {
		if h[i] != o[i] {
			return h[i] < o[i]
		}
	}
	return false
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == Zero
}

// FromHex parses a lowercase/uppercase hex string into a Hash.
func FromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("hash: bad hex: %w", err)
	}
	if len(b) != Size {
		return Hash{}, fmt.Errorf("hash: expected %d bytes, got %d", Size, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}
