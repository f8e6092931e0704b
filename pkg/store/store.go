// Package store holds cell bytes addressed by their content hash: an
// in-memory map for tests and short-lived peers, an append-only on-disk
// log with an in-memory hash-map index (not a radix trie) for durability,
// and a small pebble-backed
// store for the handful of non-cell peer metadata records.
package store

import (
	"fmt"

	"github.com/latticebft/core/pkg/cell"
	"github.com/latticebft/core/pkg/hash"
)

// ErrMissingData is returned by Resolve/ResolveDeep when a hash is not present
// locally; recoverable by fetching it from a peer and retrying.
type ErrMissingData struct {
	Hash hash.Hash
}

func (e *ErrMissingData) Error() string {
	return fmt.Sprintf("store: missing data for hash %s", e.Hash)
}

func NewErrMissingData(h hash.Hash) error { return &ErrMissingData{Hash: h} }

// CellStore is multi-reader, single-writer per hash: concurrent Put of the
// same hash is idempotent since the bytes are always identical.
type CellStore interface {
	// Put writes c's canonical encoding, keyed by its content hash, and
	// returns that hash. Writing an already-present hash is a no-op.
	Put(c cell.Cell) hash.Hash

	// Get resolves h to its cell, or reports ok=false if absent.
	Get(h hash.Hash) (cell.Cell, bool)

	// Has reports whether h is present without paying for a decode.
	Has(h hash.Hash) bool
}

// Persist walks r and every non-embedded descendant reachable from it,
// writing each to store and advancing its status to at least Persisted.
// A descendant whose value is not locally known is reported via missing,
// rather than aborting the whole walk — the caller can batch-fetch and
// retry.
func Persist(r cell.Ref, s CellStore) (cell.Ref, []hash.Hash) {
	var missing []hash.Hash
	out := persistRef(r, s, &missing)
	return out, missing
}

func persistRef(r cell.Ref, s CellStore, missing *[]hash.Hash) cell.Ref {
	v, ok := r.Value()
	if !ok {
		*missing = append(*missing, r.Hash())
		return r
	}
	updated := v.UpdateRefs(func(child cell.Ref) cell.Ref {
		return persistRef(child, s, missing)
	})
	if !r.IsEmbedded() {
		s.Put(updated)
	}
	return r.WithValue(updated).WithStatus(cell.StatusPersisted)
}

// Resolve returns r's value, fetching it from s if not already cached on
// the ref. Only r itself is resolved; its child refs are left as they are
// (ResolveDeep walks them). Fails with ErrMissingData when r's hash is not
// in s; the caller accumulates these across a traversal and requests them
// from the network.
func Resolve(r cell.Ref, s CellStore) (cell.Cell, error) {
	if v, ok := r.Value(); ok {
		return v, nil
	}
	v, ok := s.Get(r.Hash())
	if !ok {
		return nil, NewErrMissingData(r.Hash())
	}
	return v, nil
}

// ResolveDeep is Resolve followed by resolving every child ref
// transitively, returning the fully-hydrated cell or the first
// MissingData error encountered.
func ResolveDeep(r cell.Ref, s CellStore) (cell.Cell, error) {
	v, err := Resolve(r, s)
	if err != nil {
		return nil, err
	}
	var walkErr error
	out := v.UpdateRefs(func(child cell.Ref) cell.Ref {
		if walkErr != nil {
			return child
		}
		cv, err := ResolveDeep(child, s)
		if err != nil {
			walkErr = err
			return child
		}
		return child.WithValue(cv)
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}
