package cell

import "errors"

// Error kinds surfaced by the canonical codec. BadSignature lives in
// pkg/cell/signed.go; MissingData lives in pkg/store (it depends on which
// store failed to resolve a hash).
var (
	// ErrBadFormat means the bytes are not a valid canonical encoding: a
	// field is missing, a count disagrees with a mask's popcount, a leaf
	// exceeds LeafMax, or a tree node has count <= LeafMax.
	ErrBadFormat = errors.New("cell: bad format")

	// ErrInvalidData means a cell decoded but violates a structural
	// invariant beyond the raw byte grammar (e.g. an Order whose
	// consensusPoint exceeds its proposalPoint).
	ErrInvalidData = errors.New("cell: invalid data")
)
