package belief

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/latticebft/core/pkg/cell"
	"github.com/latticebft/core/pkg/crypto"
	"github.com/latticebft/core/pkg/state"
	"github.com/latticebft/core/pkg/txn"
)

// Peer drives one participant's view of consensus: its own signed Order,
// the merged Belief, and the consensus State produced by applying blocks
// as consensusPoint advances. Not thread-safe — exactly one scheduler task
// owns a Peer instance at a time.
type Peer struct {
	Key     cell.AccountKey
	keys    *crypto.KeyPair
	applier txn.Applier

	belief          Belief
	consensusState  state.State
	stateHistory    []state.State
	observedConsensus map[cell.AccountKey]int64

	Logger         *zap.SugaredLogger
	VerboseLogging bool
}

// NewPeer starts a fresh Peer at genesis, with its own empty Order already
// present in its Belief.
func NewPeer(kp *crypto.KeyPair, genesis state.State, applier txn.Applier) *Peer {
	key := cell.AccountKey(kp.PublicKey())
	p := &Peer{
		Key:               key,
		keys:              kp,
		applier:           applier,
		belief:            NewBelief(),
		consensusState:    genesis,
		stateHistory:      []state.State{genesis},
		observedConsensus: make(map[cell.AccountKey]int64),
	}
	signed := cell.Sign(kp, cell.NewRef(NewOrder(key)))
	p.belief = p.belief.WithOrder(key, signed)
	return p
}

// ProposeBlock appends b to the peer's own Order and re-signs, returning
// the updated Belief. Does not itself advance proposal/consensus points —
// that happens on the next mergeBeliefs.
func (p *Peer) ProposeBlock(b txn.Block, timestamp int64) Belief {
	_, order, ok := p.belief.Order(p.Key)
	if !ok {
		order = NewOrder(p.Key)
	}
	vec, _ := order.BlocksVector()
	vec = vec.Append(cell.NewRef(b))
	order = order.WithBlocksVector(vec)
	order.Timestamp = timestamp
	signed := cell.Sign(p.keys, cell.NewRef(order))
	p.belief = p.belief.WithOrder(p.Key, signed)
	p.belief.Timestamp = timestamp
	if p.Logger != nil && p.VerboseLogging {
		p.Logger.Infow("proposed block", "peer", p.Key.String(), "blocks", vec.Count())
	}
	return p.belief
}

// MergeBeliefs runs the belief-merge algorithm against received beliefs,
// updates the peer's own Belief and consensus State, and returns the new
// Belief to gossip.
func (p *Peer) MergeBeliefs(received []Belief, timestamp int64) (Belief, error) {
	result := mergeBeliefs(p.keys, p.Key, p.belief, received, p.consensusState, p.observedConsensus, timestamp)
	p.belief = result.Belief

	if bm, ok := p.belief.OrdersMap(); ok {
		for i := 0; i < bm.RefCount(); i++ {
			r := bm.GetRef(i)
			v, ok := r.Value()
			if !ok {
				continue
			}
			sd, ok := v.(cell.SignedData)
			if !ok {
				continue
			}
			ov, ok := sd.Payload.Value()
			if !ok {
				continue
			}
			o, ok := ov.(Order)
			if !ok {
				continue
			}
			p.observedConsensus[o.PeerKey] = o.ConsensusPoint
		}
	}

	if result.NewConsensusPoint > result.PrevConsensusPoint {
		if err := p.catchUp(result.PrevConsensusPoint, result.NewConsensusPoint); err != nil {
			return p.belief, fmt.Errorf("belief: state catch-up: %w", err)
		}
		if p.Logger != nil {
			p.Logger.Infow("consensus point advanced", "peer", p.Key.String(),
				"from", result.PrevConsensusPoint, "to", result.NewConsensusPoint)
		}
	}
	return p.belief, nil
}

func (p *Peer) catchUp(prev, next int64) error {
	_, self, ok := p.belief.Order(p.Key)
	if !ok {
		return fmt.Errorf("belief: own order missing during catch-up")
	}
	for l := prev; l < next; l++ {
		b, ok := self.Block(int(l))
		if !ok {
			return fmt.Errorf("belief: block %d not resolved", l)
		}
		next, err := p.applier.Apply(p.consensusState, b)
		if err != nil {
			return err
		}
		p.consensusState = next
		p.stateHistory = append(p.stateHistory, next)
	}
	return nil
}

// UpdateTimestamp advances the peer's own Order timestamp, monotone.
func (p *Peer) UpdateTimestamp(t int64) {
	_, order, ok := p.belief.Order(p.Key)
	if !ok || t <= order.Timestamp {
		return
	}
	order.Timestamp = t
	signed := cell.Sign(p.keys, cell.NewRef(order))
	p.belief = p.belief.WithOrder(p.Key, signed)
}

// GetConsensusState returns the peer's current consensus State.
func (p *Peer) GetConsensusState() state.State { return p.consensusState }

// GetOrder returns the Order this peer currently holds for peerKey.
func (p *Peer) GetOrder(peerKey cell.AccountKey) (Order, bool) {
	_, order, ok := p.belief.Order(peerKey)
	return order, ok
}

// Belief returns the peer's current Belief, to gossip.
func (p *Peer) Belief() Belief { return p.belief }

// StateHistory returns every intermediate State produced by consensus
// catch-up, oldest first (genesis at index 0).
func (p *Peer) StateHistory() []state.State { return p.stateHistory }
