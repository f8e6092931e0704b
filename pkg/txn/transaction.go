// Package txn defines the closed transaction set a Block carries and the
// Applier contract that turns a Block into a new consensus State.
package txn

import (
	"github.com/latticebft/core/pkg/cell"
)

// Transaction is implemented by every member of the closed transaction set.
type Transaction interface {
	cell.Cell
	Sender() cell.AccountKey
	Seq() int64
}

// Transfer moves Amount from From to To, rejected by the applier unless
// Sequence is exactly one past From's current account sequence.
type Transfer struct {
	From     cell.AccountKey
	To       cell.AccountKey
	Amount   int64
	Sequence int64
}

func (Transfer) Tag() cell.Tag { return cell.TagRecord }

func (t Transfer) Sender() cell.AccountKey { return t.From }
func (t Transfer) Seq() int64              { return t.Sequence }

func (Transfer) RefCount() int                       { return 0 }
func (Transfer) GetRef(int) cell.Ref                 { panic("txn: Transfer has no child refs") }
func (t Transfer) UpdateRefs(func(cell.Ref) cell.Ref) cell.Cell { return t }
func (Transfer) Validate() error                     { return nil }

func (t Transfer) Encode() []byte {
	buf := []byte{byte(cell.TagRecord), byte(cell.SubtagTxTransfer)}
	buf = append(buf, t.From[:]...)
	buf = append(buf, t.To[:]...)
	buf = cell.PutVarint(buf, t.Amount)
	buf = cell.PutVarint(buf, t.Sequence)
	return buf
}

func decodeTransferBody(body []byte) (cell.Cell, int, error) {
	if len(body) < 64 {
		return nil, 0, cell.ErrBadFormat
	}
	var t Transfer
	copy(t.From[:], body[:32])
	copy(t.To[:], body[32:64])
	off := 64
	amt, n, err := cell.GetVarint(body[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	seq, n, err := cell.GetVarint(body[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	t.Amount, t.Sequence = amt, seq
	return t, off, nil
}

// GenericCall marks the boundary of the CVM execution engine, an explicit
// non-goal: the applier accepts the transaction format but always rejects
// it with a TransactionException rather than interpreting Payload.
type GenericCall struct {
	Caller   cell.AccountKey
	Sequence int64
	Payload  []byte
}

func (GenericCall) Tag() cell.Tag { return cell.TagRecord }

func (g GenericCall) Sender() cell.AccountKey { return g.Caller }
func (g GenericCall) Seq() int64              { return g.Sequence }

func (GenericCall) RefCount() int                        { return 0 }
func (GenericCall) GetRef(int) cell.Ref                  { panic("txn: GenericCall has no child refs") }
func (g GenericCall) UpdateRefs(func(cell.Ref) cell.Ref) cell.Cell { return g }
func (GenericCall) Validate() error                      { return nil }

func (g GenericCall) Encode() []byte {
	buf := []byte{byte(cell.TagRecord), byte(cell.SubtagTxGenericCall)}
	buf = append(buf, g.Caller[:]...)
	buf = cell.PutVarint(buf, g.Sequence)
	buf = cell.PutUvarint(buf, uint64(len(g.Payload)))
	buf = append(buf, g.Payload...)
	return buf
}

func decodeGenericCallBody(body []byte) (cell.Cell, int, error) {
	if len(body) < 32 {
		return nil, 0, cell.ErrBadFormat
	}
	var g GenericCall
	copy(g.Caller[:], body[:32])
	off := 32
	seq, n, err := cell.GetVarint(body[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	plen, n, err := cell.GetUvarint(body[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	if off+int(plen) > len(body) {
		return nil, 0, cell.ErrBadFormat
	}
	g.Sequence = seq
	g.Payload = append([]byte{}, body[off:off+int(plen)]...)
	off += int(plen)
	return g, off, nil
}

// FeeReserve is a Schedule-queue entry parking execution fees (Transfer
// juice) collected on apply but not yet paid out to any validator. It
// isn't itself a transaction — no Sender/Seq, nothing ever applies it —
// just a reserve that keeps juice inside computeTotalFunds instead of
// letting it vanish from the ledger.
type FeeReserve struct {
	Amount int64
}

func (FeeReserve) Tag() cell.Tag { return cell.TagRecord }

func (FeeReserve) RefCount() int                                  { return 0 }
func (FeeReserve) GetRef(int) cell.Ref                             { panic("txn: FeeReserve has no child refs") }
func (f FeeReserve) UpdateRefs(func(cell.Ref) cell.Ref) cell.Cell { return f }
func (FeeReserve) Validate() error                                 { return nil }

// ReserveAmount implements state.Reservable.
func (f FeeReserve) ReserveAmount() int64 { return f.Amount }

func (f FeeReserve) Encode() []byte {
	buf := []byte{byte(cell.TagRecord), byte(cell.SubtagFeeReserve)}
	return cell.PutVarint(buf, f.Amount)
}

func decodeFeeReserveBody(body []byte) (cell.Cell, int, error) {
	amt, n, err := cell.GetVarint(body)
	if err != nil {
		return nil, 0, err
	}
	return FeeReserve{Amount: amt}, n, nil
}

func init() {
	cell.RegisterRecordKind(cell.SubtagTxTransfer, decodeTransferBody)
	cell.RegisterRecordKind(cell.SubtagTxGenericCall, decodeGenericCallBody)
	cell.RegisterRecordKind(cell.SubtagFeeReserve, decodeFeeReserveBody)
}
