// Command peer runs one belief-merge validator: it loads its identity and
// genesis stake table from the environment, joins the gossip swarm, merges
// incoming beliefs on a fixed interval, applies blocks as consensus
// advances, and exposes its status over HTTP.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/latticebft/core/params"
	"github.com/latticebft/core/pkg/api"
	"github.com/latticebft/core/pkg/belief"
	"github.com/latticebft/core/pkg/cell"
	"github.com/latticebft/core/pkg/crypto"
	"github.com/latticebft/core/pkg/hash"
	"github.com/latticebft/core/pkg/p2p"
	"github.com/latticebft/core/pkg/state"
	"github.com/latticebft/core/pkg/store"
	"github.com/latticebft/core/pkg/txn"
	"github.com/latticebft/core/pkg/util"
	"github.com/latticebft/core/pkg/wire"
)

// startingBalance funds every genesis validator's own account, enough to
// cover devnet transfers without a separate genesis-accounts config knob.
const startingBalance = 1_000_000

func main() {
	cfg := params.LoadFromEnv("")

	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "data/peer.log"
	}
	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	metaStore, err := store.OpenPeerMetaStore(cfg.Store.MetaStorePath)
	if err != nil {
		sugar.Fatalw("meta_store_open_failed", "err", err)
	}
	defer metaStore.Close()

	kp, err := loadOrCreateKeyPair(metaStore)
	if err != nil {
		sugar.Fatalw("keypair_load_failed", "err", err)
	}
	selfKey := cell.AccountKey(kp.PublicKey())
	sugar.Infow("identity_loaded", "peerKey", selfKey.String())

	peers := make(map[cell.AccountKey]int64)
	accounts := make(map[cell.AccountKey]int64)
	for _, v := range cfg.Validators {
		raw, err := hex.DecodeString(v.AccountKeyHex)
		if err != nil || len(raw) != 32 {
			sugar.Warnw("skipping_malformed_validator", "entry", v.AccountKeyHex)
			continue
		}
		var key cell.AccountKey
		copy(key[:], raw)
		peers[key] = v.Stake
		accounts[key] = startingBalance
	}
	if len(peers) == 0 {
		peers[selfKey] = 1
		accounts[selfKey] = startingBalance
	}
	genesis := state.Genesis(accounts, peers)

	cellStore, err := store.OpenFileStore(cfg.Store.CellStorePath)
	if err != nil {
		sugar.Fatalw("cell_store_open_failed", "err", err)
	}
	defer cellStore.Close()

	p := belief.NewPeer(kp, genesis, txn.DefaultApplier{})
	p.Logger = sugar
	p.VerboseLogging = os.Getenv("VERBOSE") == "true"

	pool := txn.NewPool()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gossip, err := p2p.New(ctx, p2p.Config{
		ListenAddr: cfg.Network.ListenAddr,
		Bootstrap:  cfg.Network.Bootstrap,
		Logger:     sugar,
	})
	if err != nil {
		sugar.Fatalw("gossip_init_failed", "err", err)
	}
	defer gossip.Close()

	n := &node{
		peer:     p,
		pool:     pool,
		store:    cellStore,
		gossip:   gossip,
		log:      sugar,
		selfKey:  selfKey,
		keys:     kp,
		clock:    util.RealClock{},
		incoming: make(chan belief.Belief, 64),
	}
	gossip.SetHandlers(p2p.Handlers{
		OnBelief:  n.handleBelief,
		OnRequest: n.handleRequest,
	})

	apiServer := api.NewServer(p, pool)
	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.API.ListenAddr)
		if err := apiServer.Start(cfg.API.ListenAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()
	n.api = apiServer

	mergeInterval := cfg.MergeInterval
	if mergeInterval <= 0 {
		mergeInterval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(mergeInterval)
	defer ticker.Stop()

	sugar.Infow("peer_starting", "validators", len(peers), "mergeIntervalMs", mergeInterval.Milliseconds())

	for {
		select {
		case <-ctx.Done():
			sugar.Info("peer_shutting_down")
			return
		case <-ticker.C:
			n.runMergeRound(ctx)
		}
	}
}

// loadOrCreateKeyPair reads a previously persisted seed from metaStore, or
// generates and persists a fresh one. The persisted blob is a raw 32-byte
// seed: at-rest encryption is left to deploy-time tooling (disk
// encryption, a secrets manager) rather than reinvented here.
func loadOrCreateKeyPair(metaStore *store.PeerMetaStore) (*crypto.KeyPair, error) {
	if seedHex := os.Getenv("PEER_KEY_SEED"); seedHex != "" {
		seed, err := hex.DecodeString(seedHex)
		if err != nil {
			return nil, err
		}
		return crypto.FromSeed(seed)
	}
	blob, ok, err := metaStore.LoadEncryptedKeypair()
	if err != nil {
		return nil, err
	}
	if ok {
		return crypto.FromSeed(blob)
	}
	// KeyPair exposes no seed accessor (circl's ed25519 keeps only the
	// expanded private key), so a fresh seed is drawn directly rather than
	// generating a KeyPair and trying to recover its seed afterward.
	seed := make([]byte, 32)
	if _, err := randRead(seed); err != nil {
		return nil, err
	}
	kp, err := crypto.FromSeed(seed)
	if err != nil {
		return nil, err
	}
	if err := metaStore.SaveEncryptedKeypair(seed); err != nil {
		return nil, err
	}
	return kp, nil
}

func randRead(b []byte) (int, error) {
	f, err := os.Open("/dev/urandom")
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return f.Read(b)
}

// node bundles everything the gossip callbacks and merge loop need.
type node struct {
	peer    *belief.Peer
	pool    *txn.Pool
	store   *store.FileStore
	gossip  p2p.Gossip
	api     *api.Server
	log     *zap.SugaredLogger
	selfKey cell.AccountKey
	keys    *crypto.KeyPair
	clock   util.Clock

	incoming chan belief.Belief
}

// handleBelief decodes an inbound gossip frame, resolves every indirect
// ref it can satisfy from the local store (fetching what's missing from
// the sender), and queues the result for the next merge round.
func (n *node) handleBelief(ctx context.Context, from string, body []byte) {
	f, err := wire.ReadFrame(bufio.NewReader(bytes.NewReader(body)))
	if err != nil || f.Tag != wire.TagBelief {
		return
	}
	c, err := wire.DecodeCellFrame(f)
	if err != nil {
		return
	}
	b, ok := c.(belief.Belief)
	if !ok {
		return
	}
	b = n.hydrate(ctx, from, b)
	select {
	case n.incoming <- b:
	default:
		// Buffer full: the next merge round will pick up a fresher
		// belief from this peer anyway, so dropping this one is fine.
	}
}

// hydrate walks b's refs, fetching any indirect ref's target from from via
// a point-to-point Query when it isn't already in the local store.
func (n *node) hydrate(ctx context.Context, from string, b belief.Belief) belief.Belief {
	resolved, missing := store.Persist(cell.NewRef(b), n.store)
	for _, h := range dedupeHashes(missing) {
		n.fetchAndStore(ctx, from, h)
	}
	v, err := store.ResolveDeep(resolved, n.store)
	if err != nil {
		return b
	}
	nb, ok := v.(belief.Belief)
	if !ok {
		return b
	}
	return nb
}

func dedupeHashes(hs []hash.Hash) []hash.Hash {
	seen := make(map[hash.Hash]bool, len(hs))
	out := make([]hash.Hash, 0, len(hs))
	for _, h := range hs {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

func (n *node) fetchAndStore(ctx context.Context, from string, h hash.Hash) {
	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	frame := wire.Encode(wire.QueryFrame(wire.Query{Hash: h}))
	reply, err := n.gossip.Request(reqCtx, from, frame)
	if err != nil {
		n.log.Warnw("missing_data_fetch_failed", "hash", h.String(), "peer", from, "err", err)
		return
	}
	rf, err := wire.ReadFrame(bufio.NewReader(bytes.NewReader(reply)))
	if err != nil || rf.Tag != wire.TagDataReply {
		return
	}
	c, err := wire.DecodeCellFrame(rf)
	if err != nil {
		return
	}
	n.store.Put(c)
}

// handleRequest answers the point-to-point request protocol: Query and
// MissingData resolve a hash from the local store, StatusReq reports the
// peer's current belief hash and consensus point, and Challenge is
// answered with a signature proving ownership of the peer key.
func (n *node) handleRequest(ctx context.Context, from string, body []byte) []byte {
	f, err := wire.ReadFrame(bufio.NewReader(bytes.NewReader(body)))
	if err != nil {
		return nil
	}
	switch f.Tag {
	case wire.TagQuery:
		q, err := wire.DecodeQuery(f)
		if err != nil {
			return nil
		}
		c, ok := n.store.Get(q.Hash)
		if !ok {
			return nil
		}
		return wire.Encode(wire.CellFrame(wire.TagDataReply, c))

	case wire.TagMissingData:
		m, err := wire.DecodeMissingData(f)
		if err != nil {
			return nil
		}
		c, ok := n.store.Get(m.Hash)
		if !ok {
			return nil
		}
		return wire.Encode(wire.CellFrame(wire.TagDataReply, c))

	case wire.TagStatusReq:
		sr, err := wire.DecodeStatusReq(f)
		if err != nil {
			return nil
		}
		order, _ := n.peer.GetOrder(n.selfKey)
		status := wire.Status{
			ID:             sr.ID,
			BeliefHash:     cell.HashOf(n.peer.Belief()),
			ConsensusPoint: order.ConsensusPoint,
		}
		return wire.Encode(wire.StatusFrame(status))

	case wire.TagChallenge:
		c, err := wire.DecodeChallenge(f)
		if err != nil {
			return nil
		}
		sig := n.keys.Sign(c.Nonce[:])
		resp := wire.Response{PeerKey: n.selfKey}
		copy(resp.Signature[:], sig)
		return wire.Encode(wire.ResponseFrame(resp))

	default:
		return nil
	}
}

// runMergeRound drains pending transactions into a proposed block (if
// any), drains buffered incoming beliefs, runs one belief-merge round, and
// gossips the result.
func (n *node) runMergeRound(ctx context.Context) {
	now := n.clock.Now().UnixMilli()

	if txs := n.pool.Drain(64); len(txs) > 0 {
		block := txn.NewBlock(now, txs...)
		n.peer.ProposeBlock(block, now)
	}

	var received []belief.Belief
drain:
	for {
		select {
		case b := <-n.incoming:
			received = append(received, b)
		default:
			break drain
		}
	}

	order, _ := n.peer.GetOrder(n.selfKey)
	prevConsensus := order.ConsensusPoint

	merged, err := n.peer.MergeBeliefs(received, now)
	if err != nil {
		n.log.Warnw("merge_failed", "err", err)
		return
	}

	if err := n.gossip.BroadcastBelief(ctx, wire.Encode(wire.CellFrame(wire.TagBelief, merged))); err != nil {
		n.log.Warnw("broadcast_failed", "err", err)
	}

	newOrder, _ := n.peer.GetOrder(n.selfKey)
	if newOrder.ConsensusPoint > prevConsensus {
		n.api.BroadcastConsensusAdvanced(n.selfKey, prevConsensus, newOrder.ConsensusPoint, now)
	}
}
