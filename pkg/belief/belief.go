package belief

import "github.com/latticebft/core/pkg/cell"

// Belief is a peer's map of observed Orders from all peers, collectively
// the consensus input: the thing peers gossip and merge.
type Belief struct {
	Orders    cell.Ref // Ref(BlobMap: peer key bytes -> Ref(SignedData wrapping Order))
	Timestamp int64
}

// NewBelief builds an empty Belief.
func NewBelief() Belief {
	return Belief{Orders: cell.NewRef(cell.EmptyBlobMap)}
}

// OrdersMap returns the already-resolved orders BlobMap, or ok=false if it
// hasn't been pulled through a store yet.
func (b Belief) OrdersMap() (cell.BlobMap, bool) {
	v, ok := b.Orders.Value()
	if !ok {
		return cell.BlobMap{}, false
	}
	bm, ok := v.(cell.BlobMap)
	return bm, ok
}

// Order resolves the signed Order for peerKey, given both the orders map
// and that entry are already cached.
func (b Belief) Order(peerKey cell.AccountKey) (cell.SignedData, Order, bool) {
	bm, ok := b.OrdersMap()
	if !ok {
		return cell.SignedData{}, Order{}, false
	}
	r, ok := bm.Get(peerKey[:])
	if !ok {
		return cell.SignedData{}, Order{}, false
	}
	v, ok := r.Value()
	if !ok {
		return cell.SignedData{}, Order{}, false
	}
	sd, ok := v.(cell.SignedData)
	if !ok {
		return cell.SignedData{}, Order{}, false
	}
	ov, ok := sd.Payload.Value()
	if !ok {
		return cell.SignedData{}, Order{}, false
	}
	o, ok := ov.(Order)
	return sd, o, ok
}

// WithOrder returns a copy of b with peerKey's signed order replaced.
func (b Belief) WithOrder(peerKey cell.AccountKey, signed cell.SignedData) Belief {
	bm, _ := b.OrdersMap()
	bm = bm.Assoc(peerKey[:], cell.NewRef(signed))
	b.Orders = cell.NewRef(bm)
	return b
}

func (Belief) Tag() cell.Tag { return cell.TagRecord }

func (b Belief) RefCount() int { return 1 }

func (b Belief) GetRef(i int) cell.Ref {
	if i != 0 {
		panic("belief: Belief has exactly one child ref")
	}
	return b.Orders
}

func (b Belief) UpdateRefs(f func(cell.Ref) cell.Ref) cell.Cell {
	b.Orders = f(b.Orders)
	return b
}

func (Belief) Validate() error { return nil }

func (b Belief) Encode() []byte {
	buf := []byte{byte(cell.TagRecord), byte(cell.SubtagBelief)}
	buf = cell.PutVarint(buf, b.Timestamp)
	return cell.EncodeRef(buf, b.Orders)
}

func decodeBeliefBody(body []byte) (cell.Cell, int, error) {
	ts, n, err := cell.GetVarint(body)
	if err != nil {
		return nil, 0, err
	}
	off := n
	ordersRef, n, err := cell.DecodeRef(body[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	return Belief{Orders: ordersRef, Timestamp: ts}, off, nil
}

func init() {
	cell.RegisterRecordKind(cell.SubtagBelief, decodeBeliefBody)
}
