// Package belief implements the belief-merge consensus engine: each Order
// is one peer's proposed block sequence with proposal/consensus cut
// points, each Belief is a peer's map of observed Orders, and Peer drives
// the merge that lets beliefs converge across the network.
package belief

import (
	"github.com/latticebft/core/pkg/cell"
	"github.com/latticebft/core/pkg/txn"
)

// Order is one peer's proposed ordering of blocks, with proposalPoint (the
// largest prefix length backed by >2/3 stake) and consensusPoint (the
// largest prefix length already irrevocably final) cuts.
type Order struct {
	Blocks         cell.Ref // Ref(Vector of Ref(txn.Block))
	ProposalPoint  int64
	ConsensusPoint int64
	PeerKey        cell.AccountKey
	Timestamp      int64
}

// NewOrder builds an empty Order for peerKey.
func NewOrder(peerKey cell.AccountKey) Order {
	return Order{Blocks: cell.NewRef(cell.NewVector()), PeerKey: peerKey}
}

// BlocksVector returns the already-resolved blocks vector, or ok=false if
// it hasn't been pulled through a store yet.
func (o Order) BlocksVector() (cell.Vector, bool) {
	v, ok := o.Blocks.Value()
	if !ok {
		return cell.Vector{}, false
	}
	vec, ok := v.(cell.Vector)
	return vec, ok
}

// WithBlocksVector returns a copy of o with its blocks replaced.
func (o Order) WithBlocksVector(v cell.Vector) Order {
	o.Blocks = cell.NewRef(v)
	return o
}

// Block resolves the i'th block, given the blocks vector and that block's
// ref are both already cached.
func (o Order) Block(i int) (txn.Block, bool) {
	vec, ok := o.BlocksVector()
	if !ok || i < 0 || i >= vec.Count() {
		return txn.Block{}, false
	}
	bv, ok := vec.GetRef(i).Value()
	if !ok {
		return txn.Block{}, false
	}
	b, ok := bv.(txn.Block)
	return b, ok
}

func (Order) Tag() cell.Tag { return cell.TagRecord }

func (o Order) RefCount() int { return 1 }

func (o Order) GetRef(i int) cell.Ref {
	if i != 0 {
		panic("belief: Order has exactly one child ref")
	}
	return o.Blocks
}

func (o Order) UpdateRefs(f func(cell.Ref) cell.Ref) cell.Cell {
	o.Blocks = f(o.Blocks)
	return o
}

// Validate enforces 0 <= consensusPoint <= proposalPoint <= blocks.count.
// The upper bound against blocks.count is only checked once Blocks is
// resolved (an indirect ref not yet pulled through a store can't be
// checked against, but is also never trusted as Final until it is).
func (o Order) Validate() error {
	if o.ConsensusPoint < 0 || o.ProposalPoint < o.ConsensusPoint {
		return cell.ErrInvalidData
	}
	if vec, ok := o.BlocksVector(); ok && o.ProposalPoint > int64(vec.Count()) {
		return cell.ErrInvalidData
	}
	return nil
}

func (o Order) Encode() []byte {
	buf := []byte{byte(cell.TagRecord), byte(cell.SubtagOrder)}
	buf = append(buf, o.PeerKey[:]...)
	buf = cell.PutVarint(buf, o.ProposalPoint)
	buf = cell.PutVarint(buf, o.ConsensusPoint)
	buf = cell.PutVarint(buf, o.Timestamp)
	return cell.EncodeRef(buf, o.Blocks)
}

func decodeOrderBody(body []byte) (cell.Cell, int, error) {
	if len(body) < 32 {
		return nil, 0, cell.ErrBadFormat
	}
	var o Order
	copy(o.PeerKey[:], body[:32])
	off := 32
	pp, n, err := cell.GetVarint(body[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	o.ProposalPoint = pp
	cp, n, err := cell.GetVarint(body[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	o.ConsensusPoint = cp
	ts, n, err := cell.GetVarint(body[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	o.Timestamp = ts
	blocksRef, n, err := cell.DecodeRef(body[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	o.Blocks = blocksRef
	if err := o.Validate(); err != nil {
		return nil, 0, err
	}
	return o, off, nil
}

func init() {
	cell.RegisterRecordKind(cell.SubtagOrder, decodeOrderBody)
}
