package cell

import "github.com/latticebft/core/pkg/hash"

type setEntry struct {
	keyHash hash.Hash
	key     Ref
}

// setNode mirrors mapNode's shape, including the cached content hash that
// lets Union/Intersection/DiffLeft/DiffRight skip subtrees two sets share.
type setNode struct {
	leaf     []setEntry
	children [16]*setNode
	hash     hash.Hash
}

func hashSetLeaf(entries []setEntry) hash.Hash {
	var enc []byte
	for _, e := range setSortedEntries(entries) {
		enc = e.key.encode(enc)
	}
	return hash.Of(enc)
}

func hashSetChildren(children [16]*setNode) hash.Hash {
	var enc []byte
	for _, c := range children {
		if c == nil {
			enc = append(enc, 0)
			continue
		}
		enc = append(enc, 1)
		enc = append(enc, c.hash[:]...)
	}
	return hash.Of(enc)
}

func newSetLeaf(entries []setEntry) *setNode {
	return &setNode{leaf: entries, hash: hashSetLeaf(entries)}
}

func newSetTree(children [16]*setNode) *setNode {
	return &setNode{children: children, hash: hashSetChildren(children)}
}

func setSortedEntries(entries []setEntry) []setEntry {
	out := append([]setEntry{}, entries...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].keyHash.Less(out[j-1].keyHash); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func setNodeEntries(n *setNode) []setEntry {
	if n == nil {
		return nil
	}
	if n.leaf != nil {
		return setSortedEntries(n.leaf)
	}
	var out []setEntry
	for _, c := range n.children {
		out = append(out, setNodeEntries(c)...)
	}
	return out
}

func setNodeCount(n *setNode) int {
	if n == nil {
		return 0
	}
	if n.leaf != nil {
		return len(n.leaf)
	}
	total := 0
	for _, c := range n.children {
		total += setNodeCount(c)
	}
	return total
}

func setTreeInsert(n *setNode, shift int, e setEntry) *setNode {
	idx := nibbleAt(e.keyHash, shift)
	child, _ := setAssoc(n.children[idx], shift+1, e)
	children := n.children
	children[idx] = child
	return newSetTree(children)
}

func setAssoc(n *setNode, shift int, e setEntry) (*setNode, bool) {
	if n == nil {
		return newSetLeaf([]setEntry{e}), true
	}
	if n.leaf != nil {
		for _, ex := range n.leaf {
			if ex.keyHash == e.keyHash {
				return n, false
			}
		}
		if len(n.leaf) < LeafMax {
			out := append(append([]setEntry{}, n.leaf...), e)
			return newSetLeaf(out), true
		}
		tree := &setNode{}
		for _, ex := range n.leaf {
			tree = setTreeInsert(tree, shift, ex)
		}
		tree = setTreeInsert(tree, shift, e)
		return tree, true
	}
	idx := nibbleAt(e.keyHash, shift)
	child, isNew := setAssoc(n.children[idx], shift+1, e)
	children := n.children
	children[idx] = child
	return newSetTree(children), isNew
}

func setContains(n *setNode, shift int, keyHash hash.Hash) (setEntry, bool) {
	if n == nil {
		return setEntry{}, false
	}
	if n.leaf != nil {
		for _, e := range n.leaf {
			if e.keyHash == keyHash {
				return e, true
			}
		}
		return setEntry{}, false
	}
	return setContains(n.children[nibbleAt(keyHash, shift)], shift+1, keyHash)
}

func setRemove(n *setNode, shift int, keyHash hash.Hash) (*setNode, bool) {
	if n == nil {
		return nil, false
	}
	if n.leaf != nil {
		for i, e := range n.leaf {
			if e.keyHash == keyHash {
				out := append(append([]setEntry{}, n.leaf[:i]...), n.leaf[i+1:]...)
				if len(out) == 0 {
					return nil, true
				}
				return newSetLeaf(out), true
			}
		}
		return n, false
	}
	idx := nibbleAt(keyHash, shift)
	child, removed := setRemove(n.children[idx], shift+1, keyHash)
	if !removed {
		return n, false
	}
	children := n.children
	children[idx] = child
	out := newSetTree(children)
	if entries := setNodeEntries(out); len(entries) <= LeafMax {
		if len(entries) == 0 {
			return nil, true
		}
		return newSetLeaf(entries), true
	}
	return out, true
}

// HashSet is an immutable, persistent radix trie of distinct key cells,
// sharing HashMap's shape and split/collapse rules.
type HashSet struct {
	count int
	root  *setNode
}

var EmptyHashSet = HashSet{}

func (s HashSet) Tag() Tag  { return TagSet }
func (s HashSet) Count() int { return s.count }

func (s HashSet) Contains(key Ref) bool {
	_, ok := setContains(s.root, 0, key.Hash())
	return ok
}

func (s HashSet) Add(key Ref) HashSet {
	root, isNew := setAssoc(s.root, 0, setEntry{keyHash: key.Hash(), key: key})
	cnt := s.count
	if isNew {
		cnt++
	}
	return HashSet{count: cnt, root: root}
}

func (s HashSet) Remove(key Ref) HashSet {
	root, removed := setRemove(s.root, 0, key.Hash())
	cnt := s.count
	if removed {
		cnt--
	}
	return HashSet{count: cnt, root: root}
}

func (s HashSet) Entries() []setEntry { return setNodeEntries(s.root) }

func collectSetEntries(n *setNode, out *[]setEntry) {
	if n == nil {
		return
	}
	if n.leaf != nil {
		*out = append(*out, n.leaf...)
		return
	}
	for _, c := range n.children {
		collectSetEntries(c, out)
	}
}

// diffSetNodes mirrors diffMapNodes: it walks a and b together, skipping
// any subtree pair whose cached hashes agree, and returns every entry that
// might be unique to one side or unresolved within a changed leaf.
func diffSetNodes(a, b *setNode) []setEntry {
	if a == b {
		return nil
	}
	if a == nil {
		var out []setEntry
		collectSetEntries(b, &out)
		return out
	}
	if b == nil {
		var out []setEntry
		collectSetEntries(a, &out)
		return out
	}
	if a.hash == b.hash {
		return nil
	}
	if a.leaf != nil || b.leaf != nil {
		var aEntries, bEntries []setEntry
		collectSetEntries(a, &aEntries)
		collectSetEntries(b, &bEntries)
		seen := map[hash.Hash]bool{}
		out := append([]setEntry{}, aEntries...)
		for _, e := range aEntries {
			seen[e.keyHash] = true
		}
		for _, e := range bEntries {
			if !seen[e.keyHash] {
				out = append(out, e)
			}
		}
		return out
	}
	var out []setEntry
	for i := range a.children {
		out = append(out, diffSetNodes(a.children[i], b.children[i])...)
	}
	return out
}

// Union returns the set of keys present in a or b. Subtrees a and b share
// (equal cached hash) are never visited.
func Union(a, b HashSet) HashSet {
	out := a
	for _, e := range diffSetNodes(a.root, b.root) {
		if !out.Contains(e.key) {
			out = out.Add(e.key)
		}
	}
	return out
}

// intersectSetNodes walks a and b together. An equal-hash subtree pair
// contributes all of its entries directly (both sides hold the same
// keys there); a changed leaf pair falls back to a membership check per
// entry, and disjoint subtrees contribute nothing.
func intersectSetNodes(a, b *setNode, out *[]setEntry) {
	if a == nil || b == nil {
		return
	}
	if a.hash == b.hash {
		collectSetEntries(a, out)
		return
	}
	if a.leaf != nil || b.leaf != nil {
		var bEntries []setEntry
		collectSetEntries(b, &bEntries)
		bSeen := map[hash.Hash]bool{}
		for _, e := range bEntries {
			bSeen[e.keyHash] = true
		}
		var aEntries []setEntry
		collectSetEntries(a, &aEntries)
		for _, e := range aEntries {
			if bSeen[e.keyHash] {
				*out = append(*out, e)
			}
		}
		return
	}
	for i := range a.children {
		intersectSetNodes(a.children[i], b.children[i], out)
	}
}

// Intersection returns the set of keys present in both a and b. Subtrees a
// and b share (equal cached hash) contribute without a per-entry check.
func Intersection(a, b HashSet) HashSet {
	var entries []setEntry
	intersectSetNodes(a.root, b.root, &entries)
	out := HashSet{}
	for _, e := range entries {
		out = out.Add(e.key)
	}
	return out
}

// DiffLeft returns the keys present in a but absent from b. Subtrees a and
// b share (equal cached hash) are never visited, since neither can hold a
// key that's only on one side.
func DiffLeft(a, b HashSet) HashSet {
	out := HashSet{}
	for _, e := range diffSetNodes(a.root, b.root) {
		if a.Contains(e.key) && !b.Contains(e.key) {
			out = out.Add(e.key)
		}
	}
	return out
}

// DiffRight returns the keys present in b but absent from a.
func DiffRight(a, b HashSet) HashSet { return DiffLeft(b, a) }

func (s HashSet) RefCount() int   { return s.count }
func (s HashSet) GetRef(i int) Ref { return s.Entries()[i].key }

func (s HashSet) UpdateRefs(f func(Ref) Ref) Cell {
	out := HashSet{}
	for _, e := range s.Entries() {
		out = out.Add(f(e.key))
	}
	return out
}

func validateSetNode(n *setNode) error {
	if n == nil {
		return nil
	}
	if n.leaf != nil {
		if len(n.leaf) == 0 || len(n.leaf) > LeafMax {
			return ErrBadFormat
		}
		return nil
	}
	if setNodeCount(n) <= LeafMax {
		return ErrBadFormat
	}
	for _, c := range n.children {
		if err := validateSetNode(c); err != nil {
			return err
		}
	}
	return nil
}

func (s HashSet) Validate() error { return validateSetNode(s.root) }

// encodeSetNode mirrors encodeMapNode: a node's own count (VLQ) comes
// first, and the LeafMax canonicity rule lets a decoder tell from that
// count alone whether a flat key-ref leaf or a shift byte + 16-bit child
// mask + child refs follows — no separate leaf/tree discriminator byte.
func encodeSetNode(n *setNode, shift int, buf []byte) []byte {
	cnt := setNodeCount(n)
	buf = putUvarint(buf, uint64(cnt))
	if n == nil {
		return buf
	}
	if n.leaf != nil {
		for _, e := range setNodeEntries(n) {
			buf = e.key.encode(buf)
		}
		return buf
	}
	buf = append(buf, byte(shift))
	var mask uint16
	for i, c := range n.children {
		if c != nil {
			mask |= 1 << uint(i)
		}
	}
	buf = append(buf, byte(mask>>8), byte(mask&0xff))
	for _, c := range n.children {
		if c != nil {
			buf = encodeSetNode(c, shift+1, buf)
		}
	}
	return buf
}

func decodeSetNode(buf []byte, shift int) (*setNode, int, error) {
	cnt, off, err := getUvarint(buf)
	if err != nil {
		return nil, 0, err
	}
	if cnt == 0 {
		return nil, off, nil
	}
	if cnt <= LeafMax {
		entries := make([]setEntry, 0, cnt)
		for i := uint64(0); i < cnt; i++ {
			kr, kn, err := decodeRef(buf[off:])
			if err != nil {
				return nil, 0, err
			}
			off += kn
			entries = append(entries, setEntry{keyHash: kr.Hash(), key: kr})
		}
		for i := 1; i < len(entries); i++ {
			if !entries[i-1].keyHash.Less(entries[i].keyHash) {
				return nil, 0, ErrBadFormat
			}
		}
		return newSetLeaf(entries), off, nil
	}
	if len(buf) < off+3 {
		return nil, 0, ErrBadFormat
	}
	if int(buf[off]) != shift {
		return nil, 0, ErrBadFormat
	}
	off++
	mask := uint16(buf[off])<<8 | uint16(buf[off+1])
	off += 2
	var children [16]*setNode
	total := 0
	for i := 0; i < 16; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		child, cn, err := decodeSetNode(buf[off:], shift+1)
		if err != nil {
			return nil, 0, err
		}
		off += cn
		children[i] = child
		total += setNodeCount(child)
	}
	if total != int(cnt) || total <= LeafMax {
		return nil, 0, ErrBadFormat
	}
	return newSetTree(children), off, nil
}

func (s HashSet) Encode() []byte {
	return encodeSetNode(s.root, 0, []byte{byte(TagSet)})
}

func decodeSetBody(body []byte) (Cell, int, error) {
	root, off, err := decodeSetNode(body, 0)
	if err != nil {
		return nil, 0, err
	}
	return HashSet{count: setNodeCount(root), root: root}, off, nil
}
