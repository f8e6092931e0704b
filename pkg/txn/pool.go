package txn

import (
	"sync"

	"github.com/latticebft/core/pkg/cell"
)

// Pool is a peer's pending-transaction queue: signed envelopes accepted
// off the wire or submitted locally, FIFO, waiting to be pulled into a
// proposed Block. There's no order book in this domain, so one plain FIFO
// queue suffices.
type Pool struct {
	mu      sync.Mutex
	pending []cell.SignedData
}

func NewPool() *Pool { return &Pool{} }

// Push enqueues a signed transaction envelope, rejecting it up front if the
// signature doesn't verify.
func (p *Pool) Push(signed cell.SignedData) bool {
	if !signed.Verify() {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, signed)
	return true
}

// Drain removes and returns up to max pending envelopes, in FIFO order.
func (p *Pool) Drain(max int) []cell.SignedData {
	p.mu.Lock()
	defer p.mu.Unlock()
	if max <= 0 || max > len(p.pending) {
		max = len(p.pending)
	}
	out := append([]cell.SignedData{}, p.pending[:max]...)
	p.pending = p.pending[max:]
	return out
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
