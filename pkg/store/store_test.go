package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/latticebft/core/pkg/cell"
)

func TestMemStorePutGetHas(t *testing.T) {
	s := NewMemStore()
	h := s.Put(cell.Long{Value: 42})
	if !s.Has(h) {
		t.Fatal("expected Has to report the just-written hash")
	}
	got, ok := s.Get(h)
	if !ok {
		t.Fatal("expected Get to find the just-written hash")
	}
	if got.(cell.Long).Value != 42 {
		t.Errorf("Get = %#v, want Long{42}", got)
	}
	if _, ok := s.Get(cell.HashOf(cell.Long{Value: 99})); ok {
		t.Error("expected Get to report false for an absent hash")
	}
}

func TestPersistResolveDeep(t *testing.T) {
	s := NewMemStore()
	// A vector big enough that its elements are indirect refs, so
	// Persist/ResolveDeep actually exercise the store round trip.
	v := cell.NewVector()
	for i := 0; i < 20; i++ {
		v = v.Append(cell.NewRef(cell.Blob{Value: make([]byte, 200)}))
	}
	r := cell.NewRef(v)

	persisted, missing := Persist(r, s)
	if len(missing) != 0 {
		t.Fatalf("Persist reported missing hashes on a fully-resolved ref: %v", missing)
	}

	// Simulate receiving only the top-level hash over the wire, with
	// none of the indirect children cached.
	wireOnly := cell.NewIndirectRef(persisted.Hash())
	got, err := ResolveDeep(wireOnly, s)
	if err != nil {
		t.Fatalf("ResolveDeep: %v", err)
	}
	v2, ok := got.(cell.Vector)
	if !ok || v2.Count() != 20 {
		t.Fatalf("ResolveDeep produced %#v, want a 20-element Vector", got)
	}
}

func TestResolveReportsMissingData(t *testing.T) {
	s := NewMemStore()
	r := cell.NewIndirectRef(cell.HashOf(cell.Long{Value: 7}))
	if _, err := Resolve(r, s); err == nil {
		t.Error("expected Resolve to report an error for an unknown hash")
	}
}

func TestFileStorePutGetHas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cells.log")
	fs, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	defer fs.Close()

	h := fs.Put(cell.String{Value: "hello"})
	if !fs.Has(h) {
		t.Fatal("expected Has to report the just-written hash")
	}
	got, ok := fs.Get(h)
	if !ok || got.(cell.String).Value != "hello" {
		t.Fatalf("Get = %#v, ok=%v, want String{hello}", got, ok)
	}

	// Re-opening the same log must replay the index and see the same data.
	if err := fs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	fs2, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("re-open OpenFileStore: %v", err)
	}
	defer fs2.Close()
	got2, ok := fs2.Get(h)
	if !ok || got2.(cell.String).Value != "hello" {
		t.Fatalf("after reopen Get = %#v, ok=%v, want String{hello}", got2, ok)
	}
}

func TestFileStoreTruncatesTornRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cells.log")
	fs, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	h := fs.Put(cell.Long{Value: 1})
	if err := fs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Append a truncated record (header claims a body longer than what
	// follows) to simulate a crash mid-write.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	header := make([]byte, recordHeaderSize)
	header[recordHeaderSize-1] = 100 // claims a 100-byte body that was never written
	if _, err := f.Write(header); err != nil {
		t.Fatalf("write torn record: %v", err)
	}
	f.Close()

	fs2, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("re-open after torn write: %v", err)
	}
	defer fs2.Close()
	if !fs2.Has(h) {
		t.Error("expected the valid record before the torn one to survive replay")
	}
	got, ok := fs2.Get(h)
	if !ok || got.(cell.Long).Value != 1 {
		t.Errorf("Get after replay = %#v, ok=%v, want Long{1}", got, ok)
	}
}

func TestPeerMetaStoreSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta")
	s, err := OpenPeerMetaStore(path)
	if err != nil {
		t.Fatalf("OpenPeerMetaStore: %v", err)
	}
	defer s.Close()

	h := cell.HashOf(cell.Long{Value: 5})
	if err := s.SaveBeliefHash(h); err != nil {
		t.Fatalf("SaveBeliefHash: %v", err)
	}
	got, ok, err := s.LoadBeliefHash()
	if err != nil || !ok || got != h {
		t.Fatalf("LoadBeliefHash = %v, %v, %v, want %v, true, nil", got, ok, err, h)
	}

	blob := []byte{1, 2, 3, 4}
	if err := s.SaveEncryptedKeypair(blob); err != nil {
		t.Fatalf("SaveEncryptedKeypair: %v", err)
	}
	gotBlob, ok, err := s.LoadEncryptedKeypair()
	if err != nil || !ok || string(gotBlob) != string(blob) {
		t.Fatalf("LoadEncryptedKeypair = %v, %v, %v, want %v, true, nil", gotBlob, ok, err, blob)
	}

	if err := s.SaveConsensusHeight(3); err != nil {
		t.Fatalf("SaveConsensusHeight(3): %v", err)
	}
	if err := s.SaveConsensusHeight(7); err != nil {
		t.Fatalf("SaveConsensusHeight(7): %v", err)
	}
	height, ok, err := s.LastConsensusHeight()
	if err != nil || !ok || height != 7 {
		t.Fatalf("LastConsensusHeight = %v, %v, %v, want 7, true, nil", height, ok, err)
	}
}

func TestPeerMetaStoreLoadAbsentReportsNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta")
	s, err := OpenPeerMetaStore(path)
	if err != nil {
		t.Fatalf("OpenPeerMetaStore: %v", err)
	}
	defer s.Close()

	if _, ok, err := s.LoadBeliefHash(); err != nil || ok {
		t.Errorf("LoadBeliefHash on empty store = ok=%v, err=%v, want false, nil", ok, err)
	}
	if _, ok, err := s.LastConsensusHeight(); err != nil || ok {
		t.Errorf("LastConsensusHeight on empty store = ok=%v, err=%v, want false, nil", ok, err)
	}
}
