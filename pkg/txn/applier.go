package txn

import (
	"errors"
	"fmt"

	"github.com/latticebft/core/pkg/cell"
	"github.com/latticebft/core/pkg/state"
)

// TransferJuice is the fixed execution cost deducted from the sender's
// balance on every successful Transfer, separate from the transferred
// amount itself.
const TransferJuice int64 = 10

// ErrTransactionException marks a transaction the applier understood but
// rejected (bad sequence, insufficient funds, unimplemented call kind).
// It is not a core fault: Apply skips the rejected transaction, which has
// no effect, and the block still commits. The error is not reported to
// Apply's caller or in any Result message.
var ErrTransactionException = errors.New("txn: transaction exception")

// Applier turns one Block into the State that results from executing its
// transactions in order.
type Applier interface {
	Apply(s state.State, b Block) (state.State, error)
}

// DefaultApplier executes Transfer transactions and rejects GenericCall
// (the CVM execution engine is an explicit non-goal; GenericCall exists
// only to mark where it would plug in).
type DefaultApplier struct{}

func (DefaultApplier) Apply(s state.State, b Block) (state.State, error) {
	txs, ok := b.Transactions()
	if !ok {
		return s, fmt.Errorf("txn: block transactions not resolved")
	}
	for _, signed := range txs {
		if !signed.Verify() {
			// Bad signatures are dropped, not fatal to the block.
			continue
		}
		payload, ok := signed.Payload.Value()
		if !ok {
			continue
		}
		tx, ok := payload.(Transaction)
		if !ok {
			continue
		}
		next, err := applyOne(s, signed.PublicKey, tx)
		if err != nil {
			continue
		}
		s = next
	}
	return s, nil
}

func applyOne(s state.State, signer [32]byte, tx Transaction) (state.State, error) {
	var senderKey cell.AccountKey
	copy(senderKey[:], signer[:])
	if senderKey != tx.Sender() {
		return s, fmt.Errorf("%w: signer does not match sender", ErrTransactionException)
	}
	switch t := tx.(type) {
	case Transfer:
		return applyTransfer(s, t)
	case GenericCall:
		return s, fmt.Errorf("%w: generic call execution not implemented", ErrTransactionException)
	default:
		return s, fmt.Errorf("%w: unknown transaction kind", ErrTransactionException)
	}
}

func applyTransfer(s state.State, t Transfer) (state.State, error) {
	from, ok := s.Account(t.From)
	if !ok {
		return s, fmt.Errorf("%w: unknown sender account", ErrTransactionException)
	}
	if t.Sequence != from.Sequence+1 {
		return s, fmt.Errorf("%w: sequence %d does not follow %d", ErrTransactionException, t.Sequence, from.Sequence)
	}
	cost := t.Amount + TransferJuice
	if from.Balance < cost {
		return s, fmt.Errorf("%w: insufficient balance", ErrTransactionException)
	}
	to, _ := s.Account(t.To)
	from.Balance -= cost
	from.Sequence = t.Sequence
	to.Balance += t.Amount
	s = s.WithAccount(t.From, from)
	s = s.WithAccount(t.To, to)
	return reserveFee(s, t.From, t.Sequence, TransferJuice), nil
}

// reserveFee parks a collected execution fee in Schedule under a key
// unique per (sender, sequence) so it stays inside computeTotalFunds
// instead of being deducted with nowhere for it to land. Distributing
// parked reserves to validators is a scheduling feature this applier
// doesn't implement; they simply accumulate.
func reserveFee(s state.State, sender cell.AccountKey, seq int64, amount int64) state.State {
	key := append(append([]byte{}, sender[:]...), cell.PutVarint(nil, seq)...)
	v, _ := s.Schedule.Value()
	bm, _ := v.(cell.BlobMap)
	bm = bm.Assoc(key, cell.NewRef(FeeReserve{Amount: amount}))
	s.Schedule = cell.NewRef(bm)
	return s
}

// ApplyBlocks folds Apply over blocks in order, returning the final state.
func ApplyBlocks(a Applier, s state.State, blocks []Block) (state.State, error) {
	for _, b := range blocks {
		next, err := a.Apply(s, b)
		if err != nil {
			return s, err
		}
		s = next
	}
	return s, nil
}
