package belief

import (
	"testing"

	"github.com/latticebft/core/pkg/cell"
	"github.com/latticebft/core/pkg/crypto"
	"github.com/latticebft/core/pkg/state"
	"github.com/latticebft/core/pkg/txn"
)

func mustPeerKey(t *testing.T) (*crypto.KeyPair, cell.AccountKey) {
	t.Helper()
	kp, err := crypto.Generate()
	if err != nil {
		t.Fatalf("crypto.Generate: %v", err)
	}
	var k cell.AccountKey
	pub := kp.PublicKey()
	copy(k[:], pub[:])
	return kp, k
}

func TestOrderEncodeDecodeRoundTrip(t *testing.T) {
	_, key := mustPeerKey(t)
	o := NewOrder(key)
	vec, _ := o.BlocksVector()
	vec = vec.Append(cell.NewRef(txn.NewBlock(100)))
	o = o.WithBlocksVector(vec)
	o.ProposalPoint = 1
	o.ConsensusPoint = 0
	o.Timestamp = 100

	enc := o.Encode()
	got, err := cell.Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	o2, ok := got.(Order)
	if !ok {
		t.Fatalf("decoded %T, want Order", got)
	}
	if o2.PeerKey != key || o2.ProposalPoint != 1 || o2.Timestamp != 100 {
		t.Errorf("decoded Order = %#v, want PeerKey=%v ProposalPoint=1 Timestamp=100", o2, key)
	}
}

// TestOrderDecodeRejectsConsensusPastProposal covers a forged Order
// claiming a consensusPoint past its own proposalPoint: the decoder must
// reject it rather than hand the caller a structurally-decoded but
// invariant-violating value.
func TestOrderDecodeRejectsConsensusPastProposal(t *testing.T) {
	_, key := mustPeerKey(t)
	o := NewOrder(key)
	vec, _ := o.BlocksVector()
	vec = vec.Append(cell.NewRef(txn.NewBlock(100)))
	o = o.WithBlocksVector(vec)
	o.ProposalPoint = 0
	o.ConsensusPoint = 1 // consensusPoint must never exceed proposalPoint

	if err := o.Validate(); err == nil {
		t.Fatal("expected Validate to reject consensusPoint > proposalPoint")
	}
	if _, err := cell.Decode(o.Encode()); err == nil {
		t.Error("expected Decode to reject an Order with consensusPoint > proposalPoint")
	}
}

// TestOrderDecodeRejectsProposalPastBlockCount covers a forged Order
// whose proposalPoint claims a prefix longer than its own blocks vector.
func TestOrderDecodeRejectsProposalPastBlockCount(t *testing.T) {
	_, key := mustPeerKey(t)
	o := NewOrder(key) // empty blocks vector: count == 0
	o.ProposalPoint = 1
	o.ConsensusPoint = 1

	if err := o.Validate(); err == nil {
		t.Fatal("expected Validate to reject proposalPoint > blocks.count")
	}
	if _, err := cell.Decode(o.Encode()); err == nil {
		t.Error("expected Decode to reject an Order with proposalPoint > blocks.count")
	}
}

// threeValidatorNetwork builds three equal-stake peers sharing a genesis
// state, the minimal setup for exercising a unanimous belief-merge round.
func threeValidatorNetwork(t *testing.T) []*Peer {
	t.Helper()
	kp1, k1 := mustPeerKey(t)
	kp2, k2 := mustPeerKey(t)
	kp3, k3 := mustPeerKey(t)

	genesis := state.Genesis(nil, map[cell.AccountKey]int64{k1: 1, k2: 1, k3: 1})

	return []*Peer{
		NewPeer(kp1, genesis, txn.DefaultApplier{}),
		NewPeer(kp2, genesis, txn.DefaultApplier{}),
		NewPeer(kp3, genesis, txn.DefaultApplier{}),
	}
}

func exchangeRound(peers []*Peer, timestamp int64) {
	beliefs := make([]Belief, len(peers))
	for i, p := range peers {
		beliefs[i] = p.Belief()
	}
	for i, p := range peers {
		received := make([]Belief, 0, len(peers)-1)
		for j, b := range beliefs {
			if j != i {
				received = append(received, b)
			}
		}
		if _, err := p.MergeBeliefs(received, timestamp); err != nil {
			panic(err)
		}
	}
}

func TestMergeBeliefsReachesUnanimousConsensus(t *testing.T) {
	peers := threeValidatorNetwork(t)

	// All three peers propose the identical (empty) block at the same
	// timestamp, so their chains share a common prefix.
	for _, p := range peers {
		p.ProposeBlock(txn.NewBlock(100), 100)
	}

	// Round 1: proposalPoint advances to 1 for every peer, but
	// consensusPoint cannot yet, since no peer has observed another
	// peer's proposalPoint having already reached 1.
	exchangeRound(peers, 200)
	for i, p := range peers {
		order, ok := p.GetOrder(p.Key)
		if !ok {
			t.Fatalf("peer %d: missing own order after round 1", i)
		}
		if order.ProposalPoint != 1 {
			t.Errorf("peer %d: ProposalPoint after round 1 = %d, want 1", i, order.ProposalPoint)
		}
		if order.ConsensusPoint != 0 {
			t.Errorf("peer %d: ConsensusPoint after round 1 = %d, want 0", i, order.ConsensusPoint)
		}
	}

	// Round 2: every peer now sees that its peers' proposalPoint already
	// reached 1, so consensusPoint can advance.
	exchangeRound(peers, 300)
	for i, p := range peers {
		order, ok := p.GetOrder(p.Key)
		if !ok {
			t.Fatalf("peer %d: missing own order after round 2", i)
		}
		if order.ConsensusPoint != 1 {
			t.Errorf("peer %d: ConsensusPoint after round 2 = %d, want 1", i, order.ConsensusPoint)
		}
		history := p.StateHistory()
		if len(history) != 2 {
			t.Errorf("peer %d: StateHistory length = %d, want 2 (genesis + 1 applied block)", i, len(history))
		}
	}
}

func TestCombineOrdersRejectsMismatchedSignature(t *testing.T) {
	kp, key := mustPeerKey(t)
	otherKp, other := mustPeerKey(t)

	own := NewBelief()
	goodOrder := NewOrder(key)
	goodOrder.Timestamp = 10
	signed := cell.Sign(kp, cell.NewRef(goodOrder))
	own = own.WithOrder(key, signed)

	// A second, validly-signed order from a different peer.
	otherOrder := NewOrder(other)
	otherOrder.Timestamp = 20
	otherSigned := cell.Sign(otherKp, cell.NewRef(otherOrder))
	// Corrupt it by swapping in a public key the signature doesn't match.
	otherSigned.PublicKey = crypto.AccountKey(key)

	received := NewBelief().WithOrder(other, otherSigned)

	observed := map[cell.AccountKey]int64{}
	combined := combineOrders(own, []Belief{received}, observed)
	if _, ok := combined[other]; ok {
		t.Error("combineOrders accepted an order whose signature doesn't match its declared key")
	}
	if entry, ok := combined[key]; !ok || entry.order.Timestamp != 10 {
		t.Errorf("combineOrders should still accept the validly-signed order, got %#v, ok=%v", combined[key], ok)
	}
}
