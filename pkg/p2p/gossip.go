// Package p2p maps pkg/wire frames onto a transport: a gossipsub topic for
// Belief broadcast, and direct libp2p streams for point-to-point
// Query/MissingData/StatusReq/Challenge exchange. Connection management,
// peer discovery, and NAT traversal stay inside the library — this
// package only moves frames.
package p2p

import "context"

// Handlers are the callbacks a Gossip implementation invokes on inbound
// traffic. A nil handler silently drops that kind of message.
type Handlers struct {
	OnBelief  func(ctx context.Context, from string, body []byte)
	OnRequest func(ctx context.Context, from string, body []byte) []byte
}

// Gossip is the transport contract cmd/peer drives against: broadcast beliefs to the whole swarm, and issue point-to-point
// requests (Query, MissingData, StatusReq, Challenge) awaiting a reply.
type Gossip interface {
	// SetHandlers installs the callbacks for inbound Belief broadcasts and
	// point-to-point requests.
	SetHandlers(h Handlers)

	// BroadcastBelief publishes a wire-encoded Belief frame to the topic.
	BroadcastBelief(ctx context.Context, frame []byte) error

	// Request sends a point-to-point frame to peerID and waits for the
	// single-frame reply, or returns ctx.Err() on cancellation/timeout.
	Request(ctx context.Context, peerID string, frame []byte) ([]byte, error)

	// Peers lists the IDs of currently connected peers.
	Peers() []string

	// Close tears down the transport.
	Close() error
}
