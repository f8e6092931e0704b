package txn

import "github.com/latticebft/core/pkg/cell"

// Block is an ordered sequence of signed transactions. Each element of Txs
// is a Ref to a cell.SignedData whose Payload resolves to a Transaction.
type Block struct {
	Txs       cell.Ref // Ref(Vector of Ref(SignedData))
	Timestamp int64
}

// NewBlock builds a Block from already-signed transaction envelopes.
func NewBlock(timestamp int64, signedTxs ...cell.SignedData) Block {
	v := cell.NewVector()
	for _, st := range signedTxs {
		v = v.Append(cell.NewRef(st))
	}
	return Block{Txs: cell.NewRef(v), Timestamp: timestamp}
}

func (Block) Tag() cell.Tag { return cell.TagRecord }

func (b Block) RefCount() int { return 1 }

func (b Block) GetRef(i int) cell.Ref {
	if i != 0 {
		panic("txn: Block has exactly one child ref")
	}
	return b.Txs
}

func (b Block) UpdateRefs(f func(cell.Ref) cell.Ref) cell.Cell {
	b.Txs = f(b.Txs)
	return b
}

func (Block) Validate() error { return nil }

func (b Block) Encode() []byte {
	buf := []byte{byte(cell.TagRecord), byte(cell.SubtagBlock)}
	buf = cell.PutVarint(buf, b.Timestamp)
	return cell.EncodeRef(buf, b.Txs)
}

// Transactions returns the block's signed transaction envelopes, resolving
// Txs (which must already carry a cached Vector value — callers pull
// through a store first when it doesn't).
func (b Block) Transactions() ([]cell.SignedData, bool) {
	v, ok := b.Txs.Value()
	if !ok {
		return nil, false
	}
	vec, ok := v.(cell.Vector)
	if !ok {
		return nil, false
	}
	out := make([]cell.SignedData, 0, vec.Count())
	for i := 0; i < vec.Count(); i++ {
		r := vec.GetRef(i)
		sv, ok := r.Value()
		if !ok {
			return nil, false
		}
		sd, ok := sv.(cell.SignedData)
		if !ok {
			return nil, false
		}
		out = append(out, sd)
	}
	return out, true
}

func decodeBlockBody(body []byte) (cell.Cell, int, error) {
	ts, n, err := cell.GetVarint(body)
	if err != nil {
		return nil, 0, err
	}
	off := n
	txsRef, rn, err := cell.DecodeRef(body[off:])
	if err != nil {
		return nil, 0, err
	}
	off += rn
	return Block{Txs: txsRef, Timestamp: ts}, off, nil
}

func init() {
	cell.RegisterRecordKind(cell.SubtagBlock, decodeBlockBody)
}
