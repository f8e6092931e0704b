package state

import (
	"testing"

	"github.com/latticebft/core/pkg/cell"
)

func acctKey(b byte) cell.AccountKey {
	var k cell.AccountKey
	k[0] = b
	return k
}

func TestGenesisAccountAndPeerLookup(t *testing.T) {
	alice := acctKey(1)
	bob := acctKey(2)
	validator := acctKey(3)

	s := Genesis(
		map[cell.AccountKey]int64{alice: 1000, bob: 500},
		map[cell.AccountKey]int64{validator: 7},
	)

	acc, ok := s.Account(alice)
	if !ok || acc.Balance != 1000 {
		t.Fatalf("Account(alice) = %#v, ok=%v, want Balance 1000", acc, ok)
	}
	if _, ok := s.Account(acctKey(9)); ok {
		t.Error("expected Account to report false for an unfunded key")
	}

	peer, ok := s.Peer(validator)
	if !ok || peer.Stake != 7 {
		t.Fatalf("Peer(validator) = %#v, ok=%v, want Stake 7", peer, ok)
	}
}

func TestWithAccountUpdatesOnlyTheGivenKey(t *testing.T) {
	alice := acctKey(1)
	bob := acctKey(2)
	s := Genesis(map[cell.AccountKey]int64{alice: 100, bob: 100}, nil)

	next := s.WithAccount(alice, AccountStatus{Balance: 50, Sequence: 1})

	acc, _ := next.Account(alice)
	if acc.Balance != 50 || acc.Sequence != 1 {
		t.Errorf("Account(alice) after WithAccount = %#v, want Balance 50 Sequence 1", acc)
	}
	bobAcc, _ := next.Account(bob)
	if bobAcc.Balance != 100 {
		t.Errorf("Account(bob) should be untouched, got %#v", bobAcc)
	}
	// The original State must remain unchanged (persistent/immutable).
	origAlice, _ := s.Account(alice)
	if origAlice.Balance != 100 {
		t.Errorf("original State mutated: Account(alice) = %#v", origAlice)
	}
}

func TestStakesReturnsWeightsAndTotal(t *testing.T) {
	v1, v2 := acctKey(1), acctKey(2)
	s := Genesis(nil, map[cell.AccountKey]int64{v1: 3, v2: 5})

	stakes, total := s.Stakes()
	if total != 8 {
		t.Errorf("total stake = %d, want 8", total)
	}
	if stakes[v1] != 3 || stakes[v2] != 5 {
		t.Errorf("Stakes() = %#v, want {v1:3, v2:5}", stakes)
	}
}

func TestComputeTotalFunds(t *testing.T) {
	alice, bob := acctKey(1), acctKey(2)
	s := Genesis(map[cell.AccountKey]int64{alice: 100, bob: 250}, nil)
	if total := ComputeTotalFunds(s); total != 350 {
		t.Errorf("ComputeTotalFunds() = %d, want 350", total)
	}
}

// testReserve is a minimal Reservable used to exercise the Schedule arm of
// ComputeTotalFunds without pulling in pkg/txn (which imports pkg/state).
type testReserve int64

func (testReserve) Tag() cell.Tag                                   { return cell.TagRecord }
func (testReserve) RefCount() int                                   { return 0 }
func (testReserve) GetRef(int) cell.Ref                             { panic("state: testReserve has no child refs") }
func (r testReserve) UpdateRefs(func(cell.Ref) cell.Ref) cell.Cell { return r }
func (testReserve) Validate() error                                 { return nil }
func (r testReserve) Encode() []byte {
	return cell.PutVarint([]byte{byte(cell.TagRecord), byte(cell.SubtagFeeReserve)}, int64(r))
}
func (r testReserve) ReserveAmount() int64                          { return int64(r) }

func TestComputeTotalFundsIncludesPeerStakeAndScheduleReserves(t *testing.T) {
	alice, bob := acctKey(1), acctKey(2)
	v1, v2 := acctKey(3), acctKey(4)
	s := Genesis(
		map[cell.AccountKey]int64{alice: 100, bob: 250},
		map[cell.AccountKey]int64{v1: 30, v2: 70},
	)
	if total := ComputeTotalFunds(s); total != 450 {
		t.Fatalf("ComputeTotalFunds() = %d, want 450 (350 balances + 100 stake)", total)
	}

	v, _ := s.Schedule.Value()
	bm, _ := v.(cell.BlobMap)
	bm = bm.Assoc([]byte("reserve-1"), cell.NewRef(testReserve(25)))
	s.Schedule = cell.NewRef(bm)

	if total := ComputeTotalFunds(s); total != 475 {
		t.Errorf("ComputeTotalFunds() = %d, want 475 (450 + 25 reserve)", total)
	}
}

func TestStateEncodeDecodeRoundTrip(t *testing.T) {
	alice := acctKey(1)
	validator := acctKey(2)
	s := Genesis(map[cell.AccountKey]int64{alice: 10}, map[cell.AccountKey]int64{validator: 1})

	enc := s.Encode()
	got, err := cell.Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	s2, ok := got.(State)
	if !ok {
		t.Fatalf("decoded cell is %T, want State", got)
	}
	// Refs decode as unresolved indirect or embedded but with no cached
	// value for large collections; BlobMap here is small enough to embed.
	acc, ok := s2.Account(alice)
	if !ok || acc.Balance != 10 {
		t.Errorf("decoded Account(alice) = %#v, ok=%v, want Balance 10", acc, ok)
	}
}
