package store

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/latticebft/core/pkg/hash"
)

// PeerMetaStore durably persists the handful of small records a peer needs
// to survive a restart: the hash of the latest durable Belief, the
// encrypted keypair blob, and a checkpoint of the last consensus height
// applied. These are small, latency-sensitive, point-lookup records —
// exactly pebble's sweet spot — unlike the cell log itself (FileStore),
// whose on-disk byte layout is fixed and can't be delegated to an LSM
// engine.
type PeerMetaStore struct {
	db *pebble.DB
}

func OpenPeerMetaStore(path string) (*PeerMetaStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("store: open peer meta at %s: %w", path, err)
	}
	return &PeerMetaStore{db: db}, nil
}

func (s *PeerMetaStore) Close() error { return s.db.Close() }

// keys: belief:hash, keypair, height:<8-byte big-endian consensus height>
var (
	keyBeliefHash = []byte("belief:hash")
	keyKeypair    = []byte("keypair")
)

func keyHeight(h uint64) []byte {
	buf := make([]byte, 7+8)
	copy(buf, "height:")
	binary.BigEndian.PutUint64(buf[7:], h)
	return buf
}

func (s *PeerMetaStore) SaveBeliefHash(h hash.Hash) error {
	return s.db.Set(keyBeliefHash, h[:], pebble.Sync)
}

func (s *PeerMetaStore) LoadBeliefHash() (hash.Hash, bool, error) {
	val, closer, err := s.db.Get(keyBeliefHash)
	if err == pebble.ErrNotFound {
		return hash.Hash{}, false, nil
	}
	if err != nil {
		return hash.Hash{}, false, err
	}
	defer closer.Close()
	var h hash.Hash
	copy(h[:], val)
	return h, true, nil
}

// SaveEncryptedKeypair stores an already-encrypted private key blob;
// encryption itself is the outer orchestrator's concern.
func (s *PeerMetaStore) SaveEncryptedKeypair(blob []byte) error {
	return s.db.Set(keyKeypair, blob, pebble.Sync)
}

func (s *PeerMetaStore) LoadEncryptedKeypair() ([]byte, bool, error) {
	val, closer, err := s.db.Get(keyKeypair)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	out := append([]byte(nil), val...)
	return out, true, nil
}

func (s *PeerMetaStore) SaveConsensusHeight(height uint64) error {
	return s.db.Set(keyHeight(height), []byte{1}, pebble.NoSync)
}

// LastConsensusHeight scans for the highest recorded checkpoint.
func (s *PeerMetaStore) LastConsensusHeight() (uint64, bool, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("height:"),
		UpperBound: []byte("height;"),
	})
	if err != nil {
		return 0, false, err
	}
	defer iter.Close()
	if !iter.Last() {
		return 0, false, nil
	}
	key := iter.Key()
	if len(key) < 15 {
		return 0, false, fmt.Errorf("store: malformed height key %q", key)
	}
	return binary.BigEndian.Uint64(key[7:15]), true, nil
}
