package belief

import (
	"github.com/latticebft/core/pkg/cell"
	"github.com/latticebft/core/pkg/crypto"
	"github.com/latticebft/core/pkg/state"
)

// combineOrders merges own's and every received belief's orders map,
// keeping, per peer key, the signed Order with the largest timestamp that
// passes signature verification and the monotonic-consensus-point check
// against what this peer has already observed for that key.
func combineOrders(own Belief, received []Belief, observedConsensus map[cell.AccountKey]int64) map[cell.AccountKey]struct {
	signed cell.SignedData
	order  Order
} {
	best := make(map[cell.AccountKey]struct {
		signed cell.SignedData
		order  Order
	})
	consider := func(signed cell.SignedData, o Order) {
		if !signed.Verify() {
			return
		}
		if o.Validate() != nil {
			return
		}
		if prev, ok := observedConsensus[o.PeerKey]; ok && o.ConsensusPoint < prev {
			return
		}
		cur, exists := best[o.PeerKey]
		if !exists || o.Timestamp > cur.order.Timestamp {
			best[o.PeerKey] = struct {
				signed cell.SignedData
				order  Order
			}{signed, o}
		}
	}
	if bm, ok := own.OrdersMap(); ok {
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
			consider(sd, o)
		}
	}
	for _, rb := range received {
		bm, ok := rb.OrdersMap()
		if !ok {
			continue
		}
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
			consider(sd, o)
		}
	}
	return best
}

// selectWinningChain: every voter casts its stake for the longest prefix
// it shares with each candidate chain; the winner is the longest chain
// whose support exceeds half of TotalStake.
func selectWinningChain(chains map[cell.AccountKey]cell.Vector, stakes map[cell.AccountKey]int64, totalStake int64) (cell.Vector, bool) {
	type cand struct {
		peer   cell.AccountKey
		length int
		vec    cell.Vector
	}
	var best *cand
	for p, cp := range chains {
		supportAt := func(l int) int64 {
			var stake int64
			for q, cq := range chains {
				if cell.CommonPrefixLength(cq, cp) >= l {
					stake += stakes[q]
				}
			}
			return stake
		}
		length := 0
		for l := cp.Count(); l >= 0; l-- {
			if supportAt(l)*2 > totalStake {
				length = l
				break
			}
		}
		if length == 0 {
			continue
		}
		c := cand{peer: p, length: length, vec: cp.Slice(0, length)}
		if best == nil || betterCandidate(c, *best) {
			bc := c
			best = &bc
		}
	}
	if best == nil {
		return cell.Vector{}, false
	}
	return best.vec, true
}

func betterCandidate(a, b struct {
	peer   cell.AccountKey
	length int
	vec    cell.Vector
}) bool {
	if a.length != b.length {
		return a.length > b.length
	}
	ha, hb := cell.HashOf(a.vec), cell.HashOf(b.vec)
	if ha != hb {
		return ha.Less(hb)
	}
	return string(a.peer[:]) < string(b.peer[:])
}

// stakeWeightedCut finds the largest prefix length L <= upperBound of base
// for which the predicate-selected voter set's cumulative stake exceeds
// 2/3 of totalStake.
func stakeWeightedCut(base cell.Vector, upperBound int, chains map[cell.AccountKey]cell.Vector, eligible map[cell.AccountKey]bool, stakes map[cell.AccountKey]int64, totalStake int64) int64 {
	best := int64(0)
	for l := upperBound; l >= 1; l-- {
		var stake int64
		for q, cq := range chains {
			if eligible != nil && !eligible[q] {
				continue
			}
			if cell.CommonPrefixLength(cq, base) >= l {
				stake += stakes[q]
			}
		}
		if stake*3 > totalStake*2 {
			best = int64(l)
			break
		}
	}
	return best
}

// MergeResult is the outcome of one mergeBeliefs round.
type MergeResult struct {
	Belief            Belief
	PrevConsensusPoint int64
	NewConsensusPoint  int64
}

// mergeBeliefs combines orders, selects the winning chain, advances
// self's order, advances proposal/consensus points, re-signs, and reports
// the consensus-point delta for state catch-up.
func mergeBeliefs(kp *crypto.KeyPair, selfKey cell.AccountKey, own Belief, received []Belief, consensusState state.State, observedConsensus map[cell.AccountKey]int64, timestamp int64) MergeResult {
	combined := combineOrders(own, received, observedConsensus)

	chains := make(map[cell.AccountKey]cell.Vector)
	for key, e := range combined {
		if vec, ok := e.order.BlocksVector(); ok {
			chains[key] = vec
		}
	}

	stakes, totalStake := consensusState.Stakes()

	_, selfOK := combined[selfKey]
	var selfOrder Order
	if selfOK {
		selfOrder = combined[selfKey].order
	} else {
		selfOrder = NewOrder(selfKey)
	}
	selfOldVec, _ := selfOrder.BlocksVector()

	if totalStake > 0 {
		if winner, ok := selectWinningChain(chains, stakes, totalStake); ok {
			cp := cell.CommonPrefixLength(selfOldVec, winner)
			tail := selfOldVec.Slice(cp, selfOldVec.Count()-cp)
			candidate := winner
			for i := 0; i < tail.Count(); i++ {
				candidate = candidate.Append(tail.GetRef(i))
			}
			if int64(candidate.Count()) >= selfOrder.ConsensusPoint {
				selfOrder = selfOrder.WithBlocksVector(candidate)
				chains[selfKey] = candidate
			}
		}
	}

	selfVec, _ := selfOrder.BlocksVector()

	prevProposal := selfOrder.ProposalPoint
	if totalStake > 0 {
		if l := stakeWeightedCut(selfVec, selfVec.Count(), chains, nil, stakes, totalStake); l > prevProposal {
			selfOrder.ProposalPoint = l
		}
	}

	prevConsensus := selfOrder.ConsensusPoint
	if totalStake > 0 {
		upper := int(selfOrder.ProposalPoint)
		if upper > selfVec.Count() {
			upper = selfVec.Count()
		}
		// A voter only counts at cut L if its own proposalPoint has
		// already reached L — checked per L since the threshold moves.
		best := prevConsensus
		for l := upper; l >= 1; l-- {
			var stake int64
			for q, cq := range chains {
				e, ok := combined[q]
				if ok && e.order.ProposalPoint < int64(l) {
					continue
				}
				if cell.CommonPrefixLength(cq, selfVec) >= l {
					stake += stakes[q]
				}
			}
			if stake*3 > totalStake*2 {
				best = int64(l)
				break
			}
		}
		if best > selfOrder.ConsensusPoint {
			selfOrder.ConsensusPoint = best
		}
	}

	selfOrder.Timestamp = timestamp
	signedSelf := cell.Sign(kp, cell.NewRef(selfOrder))

	newBelief := own
	newBelief.Timestamp = timestamp
	for key, e := range combined {
		if key == selfKey {
			continue
		}
		newBelief = newBelief.WithOrder(key, e.signed)
	}
	newBelief = newBelief.WithOrder(selfKey, signedSelf)

	return MergeResult{
		Belief:             newBelief,
		PrevConsensusPoint: prevConsensus,
		NewConsensusPoint:  selfOrder.ConsensusPoint,
	}
}
