package cell

import "github.com/latticebft/core/pkg/hash"

// Cell is the capability interface every immutable, content-addressed
// value in the data model implements. Dispatch is by Tag on decode and by
// concrete type on encode.
type Cell interface {
	// Tag identifies the cell's kind; the one-byte prefix of Encode.
	Tag() Tag

	// Encode returns this cell's canonical byte encoding (tag-prefixed).
	// Two structurally equal cells MUST produce identical bytes.
	Encode() []byte

	// RefCount returns the number of child refs this cell holds.
	RefCount() int

	// GetRef returns the i'th child ref, 0 <= i < RefCount().
	GetRef(i int) Ref

	// UpdateRefs returns a copy of this cell with every child ref passed
	// through f; used by persist/resolve walks.
	UpdateRefs(f func(Ref) Ref) Cell

	// Validate checks structural invariants beyond the raw byte grammar.
	Validate() error
}

// HashOf returns the content hash of c (the hash of its canonical
// encoding).
func HashOf(c Cell) hash.Hash {
	return hash.Of(c.Encode())
}

// IsEmbedded reports whether c's canonical encoding fits within
// MaxEmbedded bytes.
func IsEmbedded(c Cell) bool {
	return len(c.Encode()) <= MaxEmbedded
}

// Decode parses exactly one canonical cell encoding from b, failing with
// ErrBadFormat if trailing bytes remain or the encoding is malformed.
func Decode(b []byte) (Cell, error) {
	c, n, err := decodeCellAt(b)
	if err != nil {
		return nil, err
	}
	if n != len(b) {
		return nil, ErrBadFormat
	}
	return c, nil
}

// recordDecoder decodes a record's body (everything after the subtag byte)
// into a domain Cell. Registered by domain packages (pkg/txn, pkg/state,
// pkg/belief) so pkg/cell's dispatcher can decode them without importing
// those packages (which import pkg/cell).
type recordDecoder func(body []byte) (Cell, int, error)

var recordDecoders = map[Tag]recordDecoder{}

// RegisterRecordKind binds a record subtag to its body decoder. Call from
// an init() in the package that owns the record type.
func RegisterRecordKind(subtag Tag, dec func(body []byte) (Cell, int, error)) {
	recordDecoders[subtag] = dec
}

func decodeCellAt(buf []byte) (Cell, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrBadFormat
	}
	tag := Tag(buf[0])
	if !tag.valid() {
		return nil, 0, ErrBadFormat
	}
	body := buf[1:]
	var (
		c   Cell
		n   int
		err error
	)
	switch tag {
	case TagNil:
		c, n, err = decodeNilBody(body)
	case TagBool:
		c, n, err = decodeBoolBody(body)
	case TagLong:
		c, n, err = decodeLongBody(body)
	case TagDouble:
		c, n, err = decodeDoubleBody(body)
	case TagChar:
		c, n, err = decodeCharBody(body)
	case TagString:
		c, n, err = decodeStringBody(body)
	case TagBlob:
		c, n, err = decodeBlobBody(body)
	case TagSymbol:
		c, n, err = decodeSymbolBody(body)
	case TagKeyword:
		c, n, err = decodeKeywordBody(body)
	case TagAddress:
		c, n, err = decodeAddressBody(body)
	case TagAccountKey:
		c, n, err = decodeAccountKeyBody(body)
	case TagVector:
		c, n, err = decodeVectorBody(body)
	case TagList:
		c, n, err = decodeListBody(body)
	case TagMap:
		c, n, err = decodeMapBody(body)
	case TagSet:
		c, n, err = decodeSetBody(body)
	case TagBlobMap:
		c, n, err = decodeBlobMapBody(body)
	case TagMapEntry:
		c, n, err = decodeMapEntryBody(body)
	case TagSignedData:
		c, n, err = decodeSignedDataBody(body)
	case TagRecord:
		if len(body) == 0 {
			return nil, 0, ErrBadFormat
		}
		subtag := Tag(body[0])
		dec, ok := recordDecoders[subtag]
		if !ok {
			return nil, 0, ErrBadFormat
		}
		c, n, err = dec(body[1:])
		n++ // account for the subtag byte
	default:
		return nil, 0, ErrBadFormat
	}
	if err != nil {
		return nil, 0, err
	}
	return c, 1 + n, nil
}
