package cell

import "github.com/latticebft/core/pkg/hash"

// ChunkSize is the number of elements held by one leaf chunk of a Vector.
const ChunkSize = 16

// vecChunk is an internal, non-canonical grouping of up to ChunkSize
// elements. Its cached hash lets CommonPrefixLength skip an entire chunk
// at once when two vectors share it structurally — the fast path belief
// comparison depends on.
type vecChunk struct {
	elems []Ref
	hash  hash.Hash
}

func newChunk(elems []Ref) vecChunk {
	enc := []byte{}
	for _, e := range elems {
		enc = e.encode(enc)
	}
	return vecChunk{elems: elems, hash: hash.Of(enc)}
}

// Vector is an immutable, ordered sequence of cells, chunked internally for
// O(1) amortized append/pop and fast common-prefix comparison. The
// canonical *encoding* is always the flat element list; chunking is purely
// an in-memory performance detail.
type Vector struct {
	count  int
	chunks []vecChunk
}

// EmptyVector is the zero-length Vector.
var EmptyVector = Vector{}

// NewVector builds a Vector over elems, chunked into groups of ChunkSize.
func NewVector(elems ...Ref) Vector {
	v := Vector{}
	for _, e := range elems {
		v = v.Append(e)
	}
	return v
}

func (v Vector) Tag() Tag { return TagVector }

func (v Vector) Count() int { return v.count }

// Get returns the i'th element, 0 <= i < Count().
func (v Vector) Get(i int) (Ref, error) {
	if i < 0 || i >= v.count {
		return Ref{}, ErrBadFormat
	}
	ci, off := i/ChunkSize, i%ChunkSize
	return v.chunks[ci].elems[off], nil
}

// Append returns a new Vector with e appended to the tail.
func (v Vector) Append(e Ref) Vector {
	if len(v.chunks) > 0 {
		last := v.chunks[len(v.chunks)-1]
		if len(last.elems) < ChunkSize {
			elems := append(append([]Ref{}, last.elems...), e)
			chunks := append([]vecChunk{}, v.chunks[:len(v.chunks)-1]...)
			chunks = append(chunks, newChunk(elems))
			return Vector{count: v.count + 1, chunks: chunks}
		}
	}
	chunks := append(append([]vecChunk{}, v.chunks...), newChunk([]Ref{e}))
	return Vector{count: v.count + 1, chunks: chunks}
}

// Pop returns a new Vector with the last element removed.
func (v Vector) Pop() Vector {
	if v.count == 0 {
		return v
	}
	last := v.chunks[len(v.chunks)-1]
	if len(last.elems) > 1 {
		elems := append([]Ref{}, last.elems[:len(last.elems)-1]...)
		chunks := append([]vecChunk{}, v.chunks[:len(v.chunks)-1]...)
		chunks = append(chunks, newChunk(elems))
		return Vector{count: v.count - 1, chunks: chunks}
	}
	chunks := append([]vecChunk{}, v.chunks[:len(v.chunks)-1]...)
	return Vector{count: v.count - 1, chunks: chunks}
}

// Slice rebuilds a new Vector over [start, start+length).
func (v Vector) Slice(start, length int) Vector {
	out := Vector{}
	for i := start; i < start+length; i++ {
		e, err := v.Get(i)
		if err != nil {
			break
		}
		out = out.Append(e)
	}
	return out
}

// CommonPrefixLength returns the length of the longest common prefix of a
// and b, skipping whole chunks at a time when their cached hashes agree.
func CommonPrefixLength(a, b Vector) int {
	n := 0
	ci := 0
	for ci < len(a.chunks) && ci < len(b.chunks) {
		ca, cb := a.chunks[ci], b.chunks[ci]
		if ca.hash == cb.hash && len(ca.elems) == len(cb.elems) {
			n += len(ca.elems)
			ci++
			continue
		}
		for i := 0; i < len(ca.elems) && i < len(cb.elems); i++ {
			if ca.elems[i].Hash() != cb.elems[i].Hash() {
				return n
			}
			n++
		}
		return n
	}
	return n
}

func (v Vector) RefCount() int { return v.count }

func (v Vector) GetRef(i int) Ref {
	r, err := v.Get(i)
	if err != nil {
		panic(err)
	}
	return r
}

func (v Vector) UpdateRefs(f func(Ref) Ref) Cell {
	out := Vector{}
	for i := 0; i < v.count; i++ {
		out = out.Append(f(v.GetRef(i)))
	}
	return out
}

func (v Vector) Validate() error { return nil }

func (v Vector) Encode() []byte {
	buf := []byte{byte(TagVector)}
	buf = putUvarint(buf, uint64(v.count))
	for i := 0; i < v.count; i++ {
		buf = v.GetRef(i).encode(buf)
	}
	return buf
}

func decodeVectorBody(body []byte) (Cell, int, error) {
	n, used, err := getUvarint(body)
	if err != nil {
		return nil, 0, err
	}
	elems := make([]Ref, 0, n)
	off := used
	for i := uint64(0); i < n; i++ {
		r, rn, err := decodeRef(body[off:])
		if err != nil {
			return nil, 0, err
		}
		elems = append(elems, r)
		off += rn
	}
	return NewVector(elems...), off, nil
}

// List is a lightweight, unchunked sequence (used for small ad hoc
// sequences that never need the vector's append/common-prefix machinery).
type List struct {
	Elems []Ref
}

func (List) Tag() Tag { return TagList }

func (l List) RefCount() int { return len(l.Elems) }
func (l List) GetRef(i int) Ref { return l.Elems[i] }
func (l List) UpdateRefs(f func(Ref) Ref) Cell {
	out := make([]Ref, len(l.Elems))
	for i, r := range l.Elems {
		out[i] = f(r)
	}
	return List{Elems: out}
}
func (List) Validate() error { return nil }

func (l List) Encode() []byte {
	buf := []byte{byte(TagList)}
	buf = putUvarint(buf, uint64(len(l.Elems)))
	for _, r := range l.Elems {
		buf = r.encode(buf)
	}
	return buf
}

func decodeListBody(body []byte) (Cell, int, error) {
	n, used, err := getUvarint(body)
	if err != nil {
		return nil, 0, err
	}
	elems := make([]Ref, 0, n)
	off := used
	for i := uint64(0); i < n; i++ {
		r, rn, err := decodeRef(body[off:])
		if err != nil {
			return nil, 0, err
		}
		elems = append(elems, r)
		off += rn
	}
	return List{Elems: elems}, off, nil
}
