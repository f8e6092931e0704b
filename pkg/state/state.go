// Package state holds the consensus State: account balances and
// sequence numbers, the peer stake table, global parameters, and the
// scheduled-transaction queue.
package state

import "github.com/latticebft/core/pkg/cell"

// AccountStatus is one account's ledger entry.
type AccountStatus struct {
	Balance  int64
	Sequence int64
}

func (AccountStatus) Tag() cell.Tag { return cell.TagRecord }

func (AccountStatus) RefCount() int                        { return 0 }
func (AccountStatus) GetRef(int) cell.Ref                  { panic("state: AccountStatus has no child refs") }
func (a AccountStatus) UpdateRefs(func(cell.Ref) cell.Ref) cell.Cell { return a }
func (AccountStatus) Validate() error                      { return nil }

func (a AccountStatus) Encode() []byte {
	buf := []byte{byte(cell.TagRecord), byte(cell.SubtagAccountStatus)}
	buf = cell.PutVarint(buf, a.Balance)
	buf = cell.PutVarint(buf, a.Sequence)
	return buf
}

func decodeAccountStatusBody(body []byte) (cell.Cell, int, error) {
	bal, n, err := cell.GetVarint(body)
	if err != nil {
		return nil, 0, err
	}
	off := n
	seq, n, err := cell.GetVarint(body[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	return AccountStatus{Balance: bal, Sequence: seq}, off, nil
}

// PeerStatus is one peer's entry in the stake table.
type PeerStatus struct {
	Stake        int64
	ConsensusKey cell.AccountKey
}

func (PeerStatus) Tag() cell.Tag { return cell.TagRecord }

func (PeerStatus) RefCount() int                        { return 0 }
func (PeerStatus) GetRef(int) cell.Ref                  { panic("state: PeerStatus has no child refs") }
func (p PeerStatus) UpdateRefs(func(cell.Ref) cell.Ref) cell.Cell { return p }
func (PeerStatus) Validate() error                      { return nil }

func (p PeerStatus) Encode() []byte {
	buf := []byte{byte(cell.TagRecord), byte(cell.SubtagPeerStatus)}
	buf = cell.PutVarint(buf, p.Stake)
	return append(buf, p.ConsensusKey[:]...)
}

func decodePeerStatusBody(body []byte) (cell.Cell, int, error) {
	stake, n, err := cell.GetVarint(body)
	if err != nil {
		return nil, 0, err
	}
	off := n
	if off+32 > len(body) {
		return nil, 0, cell.ErrBadFormat
	}
	var p PeerStatus
	p.Stake = stake
	copy(p.ConsensusKey[:], body[off:off+32])
	return p, off + 32, nil
}

// State is the full consensus state a peer advances by applying blocks.
type State struct {
	Accounts cell.Ref // Ref(BlobMap: account key bytes -> Ref(AccountStatus))
	Peers    cell.Ref // Ref(BlobMap: peer key bytes -> Ref(PeerStatus))
	Globals  cell.Ref // Ref(Vector of protocol-wide parameters)
	Schedule cell.Ref // Ref(BlobMap: schedule key -> Ref(Reservable, e.g. a parked txn.FeeReserve))
}

// Genesis builds the initial State from a set of funded accounts and the
// peer stake table.
func Genesis(accounts map[cell.AccountKey]int64, peers map[cell.AccountKey]int64) State {
	accMap := cell.EmptyBlobMap
	for k, bal := range accounts {
		accMap = accMap.Assoc(k[:], cell.NewRef(AccountStatus{Balance: bal}))
	}
	peerMap := cell.EmptyBlobMap
	for k, stake := range peers {
		peerMap = peerMap.Assoc(k[:], cell.NewRef(PeerStatus{Stake: stake, ConsensusKey: k}))
	}
	return State{
		Accounts: cell.NewRef(accMap),
		Peers:    cell.NewRef(peerMap),
		Globals:  cell.NewRef(cell.NewVector()),
		Schedule: cell.NewRef(cell.EmptyBlobMap),
	}
}

func (State) Tag() cell.Tag { return cell.TagRecord }

func (s State) RefCount() int { return 4 }

func (s State) GetRef(i int) cell.Ref {
	switch i {
	case 0:
		return s.Accounts
	case 1:
		return s.Peers
	case 2:
		return s.Globals
	case 3:
		return s.Schedule
	default:
		panic("state: State has exactly 4 child refs")
	}
}

func (s State) UpdateRefs(f func(cell.Ref) cell.Ref) cell.Cell {
	s.Accounts = f(s.Accounts)
	s.Peers = f(s.Peers)
	s.Globals = f(s.Globals)
	s.Schedule = f(s.Schedule)
	return s
}

func (State) Validate() error { return nil }

func (s State) Encode() []byte {
	buf := []byte{byte(cell.TagRecord), byte(cell.SubtagState)}
	buf = cell.EncodeRef(buf, s.Accounts)
	buf = cell.EncodeRef(buf, s.Peers)
	buf = cell.EncodeRef(buf, s.Globals)
	buf = cell.EncodeRef(buf, s.Schedule)
	return buf
}

func decodeStateBody(body []byte) (cell.Cell, int, error) {
	var s State
	off := 0
	for _, slot := range []*cell.Ref{&s.Accounts, &s.Peers, &s.Globals, &s.Schedule} {
		r, n, err := cell.DecodeRef(body[off:])
		if err != nil {
			return nil, 0, err
		}
		*slot = r
		off += n
	}
	return s, off, nil
}

func init() {
	cell.RegisterRecordKind(cell.SubtagAccountStatus, decodeAccountStatusBody)
	cell.RegisterRecordKind(cell.SubtagPeerStatus, decodePeerStatusBody)
	cell.RegisterRecordKind(cell.SubtagState, decodeStateBody)
}

// Account resolves an account's status, given the accounts BlobMap is
// already cached on s.Accounts (callers pull through a store first when it
// isn't).
func (s State) Account(key cell.AccountKey) (AccountStatus, bool) {
	v, ok := s.Accounts.Value()
	if !ok {
		return AccountStatus{}, false
	}
	bm, ok := v.(cell.BlobMap)
	if !ok {
		return AccountStatus{}, false
	}
	r, ok := bm.Get(key[:])
	if !ok {
		return AccountStatus{}, false
	}
	av, ok := r.Value()
	if !ok {
		return AccountStatus{}, false
	}
	acc, ok := av.(AccountStatus)
	return acc, ok
}

// WithAccount returns a copy of s with key's account status replaced.
func (s State) WithAccount(key cell.AccountKey, acc AccountStatus) State {
	v, _ := s.Accounts.Value()
	bm, _ := v.(cell.BlobMap)
	bm = bm.Assoc(key[:], cell.NewRef(acc))
	s.Accounts = cell.NewRef(bm)
	return s
}

// WithPeer returns a copy of s with key's peer-stake entry replaced.
func (s State) WithPeer(key cell.AccountKey, p PeerStatus) State {
	v, _ := s.Peers.Value()
	bm, _ := v.(cell.BlobMap)
	bm = bm.Assoc(key[:], cell.NewRef(p))
	s.Peers = cell.NewRef(bm)
	return s
}

// Peer resolves a peer's stake-table entry.
func (s State) Peer(key cell.AccountKey) (PeerStatus, bool) {
	v, ok := s.Peers.Value()
	if !ok {
		return PeerStatus{}, false
	}
	bm, ok := v.(cell.BlobMap)
	if !ok {
		return PeerStatus{}, false
	}
	r, ok := bm.Get(key[:])
	if !ok {
		return PeerStatus{}, false
	}
	pv, ok := r.Value()
	if !ok {
		return PeerStatus{}, false
	}
	ps, ok := pv.(PeerStatus)
	return ps, ok
}

// Stakes returns every peer's stake and the total stake across the table,
// the weights mergeBeliefs votes with.
func (s State) Stakes() (map[cell.AccountKey]int64, int64) {
	v, ok := s.Peers.Value()
	if !ok {
		return nil, 0
	}
	bm, ok := v.(cell.BlobMap)
	if !ok {
		return nil, 0
	}
	out := make(map[cell.AccountKey]int64)
	var total int64
	for i := 0; i < bm.RefCount(); i++ {
		r := bm.GetRef(i)
		pv, ok := r.Value()
		if !ok {
			continue
		}
		ps, ok := pv.(PeerStatus)
		if !ok {
			continue
		}
		out[ps.ConsensusKey] = ps.Stake
		total += ps.Stake
	}
	return out, total
}

// Reservable is implemented by values parked in Schedule: funds already
// deducted from an account but not yet paid out to their destination
// (e.g. collected execution fees awaiting distribution). Its ReserveAmount
// counts toward ComputeTotalFunds so parking funds in Schedule can't be
// used to make them vanish from the ledger.
type Reservable interface {
	ReserveAmount() int64
}

func sumBlobMap(r cell.Ref, amount func(cell.Cell) (int64, bool)) int64 {
	v, ok := r.Value()
	if !ok {
		return 0
	}
	bm, ok := v.(cell.BlobMap)
	if !ok {
		return 0
	}
	var total int64
	for i := 0; i < bm.RefCount(); i++ {
		cv, ok := bm.GetRef(i).Value()
		if !ok {
			continue
		}
		if n, ok := amount(cv); ok {
			total += n
		}
	}
	return total
}

// ComputeTotalFunds sums every account balance, every peer's stake, and
// every reserve parked in Schedule — the invariant that must hold before
// and after applying any block sequence (stake is part of the same
// economy as balances, not a separate pool that execution fees can be
// siphoned into unaccounted for).
func ComputeTotalFunds(s State) int64 {
	total := sumBlobMap(s.Accounts, func(c cell.Cell) (int64, bool) {
		acc, ok := c.(AccountStatus)
		return acc.Balance, ok
	})
	total += sumBlobMap(s.Peers, func(c cell.Cell) (int64, bool) {
		ps, ok := c.(PeerStatus)
		return ps.Stake, ok
	})
	total += sumBlobMap(s.Schedule, func(c cell.Cell) (int64, bool) {
		r, ok := c.(Reservable)
		if !ok {
			return 0, false
		}
		return r.ReserveAmount(), true
	})
	return total
}
