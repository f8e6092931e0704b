package cell

import "github.com/latticebft/core/pkg/hash"

// MaxEmbedded is the canonical-encoding size (in bytes) at or under which a
// child is embedded inline in its parent instead of being referenced
// indirectly by hash.
const MaxEmbedded = 140

// Status tracks how durably a Ref's target has been written, a monotone
// lattice: Unknown < Stored < Persisted < Announced.
type Status int

const (
	StatusUnknown Status = iota
	StatusStored
	StatusPersisted
	StatusAnnounced
)

// Ref is a child reference: embedded (the cell itself, inline) or indirect
// (hash-only, resolved through a Store on demand).
type Ref struct {
	value    Cell
	hash     hash.Hash
	embedded bool
	status   Status
}

// NewRef builds a Ref over c, embedding it iff its canonical encoding fits
// within MaxEmbedded bytes.
func NewRef(c Cell) Ref {
	enc := c.Encode()
	h := hash.Of(enc)
	if len(enc) <= MaxEmbedded {
		return Ref{value: c, hash: h, embedded: true, status: StatusStored}
	}
	return Ref{value: c, hash: h, embedded: false, status: StatusUnknown}
}

// NewIndirectRef builds an unresolved Ref pointing at h; Resolve must be
// called (against a Store) before Value is valid.
func NewIndirectRef(h hash.Hash) Ref {
	return Ref{hash: h, embedded: false, status: StatusStored}
}

// IsEmbedded reports whether the ref carries its value inline.
func (r Ref) IsEmbedded() bool { return r.embedded }

// Hash returns the target cell's content hash, valid regardless of whether
// the ref is embedded or indirect.
func (r Ref) Hash() hash.Hash { return r.hash }

// Status reports the ref's place in the Unknown<Stored<Persisted<Announced
// lattice.
func (r Ref) Status() Status { return r.status }

// WithStatus returns a copy of r advanced to (at least) the given status.
// Never moves the lattice position backwards.
func (r Ref) WithStatus(s Status) Ref {
	if s > r.status {
		r.status = s
	}
	return r
}

// Value returns the resolved cell and true if it is already known
// (embedded, or previously resolved), or (nil, false) if a Store lookup is
// required.
func (r Ref) Value() (Cell, bool) {
	if r.value != nil {
		return r.value, true
	}
	return nil, false
}

// WithValue returns a copy of r with its cached value set to c (used after
// a successful store resolution); the embedded/indirect wire shape is
// unchanged.
func (r Ref) WithValue(c Cell) Ref {
	r.value = c
	return r
}

// EncodeRef appends r's canonical wire form to buf; exported for record
// kinds registered by domain packages that hold Ref-typed fields.
func EncodeRef(buf []byte, r Ref) []byte { return r.encode(buf) }

// DecodeRef reads one ref from the front of buf, exported for the same
// reason as EncodeRef.
func DecodeRef(buf []byte) (Ref, int, error) { return decodeRef(buf) }

// encode appends the ref's canonical wire form to buf: the embedded cell's
// own bytes, or TagRefIndirect + the 32-byte hash.
func (r Ref) encode(buf []byte) []byte {
	if r.embedded {
		return append(buf, r.value.Encode()...)
	}
	buf = append(buf, byte(TagRefIndirect))
	return append(buf, r.hash[:]...)
}

// decodeRef reads one ref from the front of buf, returning it and the
// number of bytes consumed.
func decodeRef(buf []byte) (Ref, int, error) {
	if len(buf) == 0 {
		return Ref{}, 0, ErrBadFormat
	}
	if Tag(buf[0]) == TagRefIndirect {
		if len(buf) < 1+hash.Size {
			return Ref{}, 0, ErrBadFormat
		}
		var h hash.Hash
		copy(h[:], buf[1:1+hash.Size])
		return NewIndirectRef(h), 1 + hash.Size, nil
	}
	c, n, err := decodeCellAt(buf)
	if err != nil {
		return Ref{}, 0, err
	}
	if n > MaxEmbedded {
		// A cell large enough to exceed embedding was nonetheless
		// encoded inline: this is a forged/non-canonical form.
		return Ref{}, 0, ErrInvalidData
	}
	return Ref{value: c, hash: hash.Of(buf[:n]), embedded: true, status: StatusStored}, n, nil
}
