package cell

import "bytes"

type blobEntry struct {
	key []byte
	val Ref
}

// BlobMap is an immutable, persistent map keyed directly on raw byte
// strings (rather than on a key's content hash), used where keys already
// share long common prefixes — hashes, account identities, block heights —
// and a hash-radix index would throw that structure away. Internally kept
// as a sorted array with copy-on-write updates; the prefix-sharing trie
// the name suggests is an index optimization, not part of the canonical
// encoding.
type BlobMap struct {
	entries []blobEntry
}

var EmptyBlobMap = BlobMap{}

func (m BlobMap) Tag() Tag   { return TagBlobMap }
func (m BlobMap) Count() int { return len(m.entries) }

func (m BlobMap) search(key []byte) (int, bool) {
	lo, hi := 0, len(m.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		c := bytes.Compare(m.entries[mid].key, key)
		if c == 0 {
			return mid, true
		}
		if c < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, false
}

func (m BlobMap) Get(key []byte) (Ref, bool) {
	i, ok := m.search(key)
	if !ok {
		return Ref{}, false
	}
	return m.entries[i].val, true
}

func (m BlobMap) Assoc(key []byte, val Ref) BlobMap {
	i, ok := m.search(key)
	out := append([]blobEntry{}, m.entries...)
	k := append([]byte{}, key...)
	if ok {
		out[i] = blobEntry{key: k, val: val}
		return BlobMap{entries: out}
	}
	out = append(out, blobEntry{})
	copy(out[i+1:], out[i:])
	out[i] = blobEntry{key: k, val: val}
	return BlobMap{entries: out}
}

func (m BlobMap) Dissoc(key []byte) BlobMap {
	i, ok := m.search(key)
	if !ok {
		return m
	}
	out := append(append([]blobEntry{}, m.entries[:i]...), m.entries[i+1:]...)
	return BlobMap{entries: out}
}

func (m BlobMap) RefCount() int { return len(m.entries) }
func (m BlobMap) GetRef(i int) Ref { return m.entries[i].val }

func (m BlobMap) UpdateRefs(f func(Ref) Ref) Cell {
	out := BlobMap{}
	for _, e := range m.entries {
		out = out.Assoc(e.key, f(e.val))
	}
	return out
}

func (m BlobMap) Validate() error {
	for i := 1; i < len(m.entries); i++ {
		if bytes.Compare(m.entries[i-1].key, m.entries[i].key) >= 0 {
			return ErrBadFormat
		}
	}
	return nil
}

func (m BlobMap) Encode() []byte {
	buf := []byte{byte(TagBlobMap)}
	buf = putUvarint(buf, uint64(len(m.entries)))
	for _, e := range m.entries {
		buf = putUvarint(buf, uint64(len(e.key)))
		buf = append(buf, e.key...)
		buf = e.val.encode(buf)
	}
	return buf
}

func decodeBlobMapBody(body []byte) (Cell, int, error) {
	n, used, err := getUvarint(body)
	if err != nil {
		return nil, 0, err
	}
	off := used
	entries := make([]blobEntry, 0, n)
	for i := uint64(0); i < n; i++ {
		klen, kn, err := getUvarint(body[off:])
		if err != nil {
			return nil, 0, err
		}
		off += kn
		if off+int(klen) > len(body) {
			return nil, 0, ErrBadFormat
		}
		key := append([]byte{}, body[off:off+int(klen)]...)
		off += int(klen)
		val, vn, err := decodeRef(body[off:])
		if err != nil {
			return nil, 0, err
		}
		off += vn
		entries = append(entries, blobEntry{key: key, val: val})
	}
	for i := 1; i < len(entries); i++ {
		if bytes.Compare(entries[i-1].key, entries[i].key) >= 0 {
			return nil, 0, ErrBadFormat
		}
	}
	return BlobMap{entries: entries}, off, nil
}
