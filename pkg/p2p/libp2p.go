package p2p

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"
)

const (
	topicBelief   = "latticebft-belief"
	protocolExchg = protocol.ID("/latticebft/exchange/1.0.0")
)

// maxRequestBytes bounds a single point-to-point request/reply to guard
// against a malformed peer holding a stream open indefinitely.
const maxRequestBytes = 1 << 20

// Libp2pGossip implements Gossip over a libp2p host: a gossipsub topic for
// Belief broadcast and a dedicated stream protocol for point-to-point
// exchange (Query, MissingData, StatusReq, Challenge/Response).
type Libp2pGossip struct {
	h   host.Host
	ps  *pubsub.PubSub
	log *zap.SugaredLogger

	topic *pubsub.Topic
	sub   *pubsub.Subscription

	muH      sync.RWMutex
	handlers Handlers
}

// Config configures a Libp2pGossip instance.
type Config struct {
	ListenAddr string
	Bootstrap  []string
	Logger     *zap.SugaredLogger
}

// New starts a libp2p host, joins the belief-broadcast topic, and
// registers the point-to-point exchange stream handler.
func New(ctx context.Context, cfg Config) (*Libp2pGossip, error) {
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, fmt.Errorf("p2p: listen addr: %w", err)
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("p2p: new host: %w", err)
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("p2p: new gossipsub: %w", err)
	}

	g := &Libp2pGossip{h: h, ps: ps, log: cfg.Logger}

	topic, err := ps.Join(topicBelief)
	if err != nil {
		return nil, fmt.Errorf("p2p: join topic: %w", err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("p2p: subscribe: %w", err)
	}
	g.topic, g.sub = topic, sub

	for _, addr := range cfg.Bootstrap {
		if err := g.connect(ctx, addr); err != nil && g.log != nil {
			g.log.Warnw("bootstrap_connect_failed", "addr", addr, "err", err)
		}
	}

	h.SetStreamHandler(protocolExchg, g.handleStream)
	go g.readBelief(ctx)

	if g.log != nil {
		g.log.Infow("libp2p_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr)
	}
	return g, nil
}

func (g *Libp2pGossip) connect(ctx context.Context, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return g.h.Connect(ctx, *info)
}

func (g *Libp2pGossip) SetHandlers(h Handlers) {
	g.muH.Lock()
	g.handlers = h
	g.muH.Unlock()
}

func (g *Libp2pGossip) BroadcastBelief(ctx context.Context, frame []byte) error {
	return g.topic.Publish(ctx, frame)
}

func (g *Libp2pGossip) Peers() []string {
	ids := g.h.Network().Peers()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func (g *Libp2pGossip) Close() error {
	_ = g.sub
	return g.h.Close()
}

// Request opens a fresh stream to peerID, writes frame, signals end of
// request with CloseWrite, and reads the reply to EOF.
func (g *Libp2pGossip) Request(ctx context.Context, peerID string, frame []byte) ([]byte, error) {
	pid, err := peer.Decode(peerID)
	if err != nil {
		return nil, fmt.Errorf("p2p: bad peer id: %w", err)
	}
	s, err := g.h.NewStream(ctx, pid, protocolExchg)
	if err != nil {
		return nil, fmt.Errorf("p2p: new stream: %w", err)
	}
	defer s.Close()

	if _, err := s.Write(frame); err != nil {
		return nil, err
	}
	if err := s.CloseWrite(); err != nil {
		return nil, err
	}
	reply, err := io.ReadAll(io.LimitReader(s, maxRequestBytes))
	if err != nil {
		return nil, err
	}
	return reply, nil
}

func (g *Libp2pGossip) readBelief(ctx context.Context) {
	for {
		msg, err := g.sub.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == g.h.ID() {
			continue
		}
		g.muH.RLock()
		onBelief := g.handlers.OnBelief
		g.muH.RUnlock()
		if onBelief != nil {
			onBelief(ctx, msg.ReceivedFrom.String(), msg.Data)
		}
	}
}

func (g *Libp2pGossip) handleStream(s network.Stream) {
	defer s.Close()
	body, err := io.ReadAll(io.LimitReader(s, maxRequestBytes))
	if err != nil {
		if g.log != nil && !errors.Is(err, io.EOF) {
			g.log.Warnw("exchange_read_failed", "err", err)
		}
		return
	}
	g.muH.RLock()
	onRequest := g.handlers.OnRequest
	g.muH.RUnlock()
	if onRequest == nil {
		return
	}
	reply := onRequest(context.Background(), s.Conn().RemotePeer().String(), body)
	if reply == nil {
		return
	}
	_, _ = s.Write(reply)
}

var _ Gossip = (*Libp2pGossip)(nil)
