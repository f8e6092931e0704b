package wire

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/latticebft/core/pkg/cell"
)

func TestFrameRoundTrip(t *testing.T) {
	f := CellFrame(TagBelief, cell.Long{Value: 42})
	encoded := Encode(f)

	r := bufio.NewReader(bytes.NewReader(encoded))
	got, err := ReadFrame(r)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Tag != TagBelief {
		t.Fatalf("tag = %v, want TagBelief", got.Tag)
	}
	c, err := DecodeCellFrame(got)
	if err != nil {
		t.Fatalf("DecodeCellFrame: %v", err)
	}
	lv, ok := c.(cell.Long)
	if !ok || lv.Value != 42 {
		t.Fatalf("decoded = %#v, want Long(42)", c)
	}
}

// TestEncodingFlood streams 10,000 distinct long values through the frame
// codec, verifying every one is received once, in order, with no loss.
func TestEncodingFlood(t *testing.T) {
	const n = 10000
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		if err := WriteFrame(&buf, CellFrame(TagTransact, cell.Long{Value: int64(i)})); err != nil {
			t.Fatalf("WriteFrame(%d): %v", i, err)
		}
	}

	r := bufio.NewReader(&buf)
	for i := 0; i < n; i++ {
		f, err := ReadFrame(r)
		if err != nil {
			t.Fatalf("ReadFrame(%d): %v", i, err)
		}
		c, err := DecodeCellFrame(f)
		if err != nil {
			t.Fatalf("DecodeCellFrame(%d): %v", i, err)
		}
		lv, ok := c.(cell.Long)
		if !ok || lv.Value != int64(i) {
			t.Fatalf("value %d = %#v, want Long(%d)", i, c, i)
		}
	}
	if _, err := r.ReadByte(); err == nil {
		t.Fatalf("expected stream exhausted after %d frames", n)
	}
}

func TestQueryRoundTrip(t *testing.T) {
	q := Query{ID: 7, Hash: [32]byte{1, 2, 3}}
	f := QueryFrame(q)
	got, err := DecodeQuery(f)
	if err != nil {
		t.Fatalf("DecodeQuery: %v", err)
	}
	if got != q {
		t.Fatalf("got %+v, want %+v", got, q)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	s := Status{ID: 9, BeliefHash: [32]byte{9, 9}, ConsensusPoint: 12}
	f := StatusFrame(s)
	got, err := DecodeStatus(f)
	if err != nil {
		t.Fatalf("DecodeStatus: %v", err)
	}
	if got != s {
		t.Fatalf("got %+v, want %+v", got, s)
	}
}

func TestDecodeWrongTagFails(t *testing.T) {
	f := QueryFrame(Query{ID: 1})
	if _, err := DecodeStatus(f); err == nil {
		t.Fatalf("expected error decoding a Query frame as Status")
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	buf := cell.PutUvarint(nil, MaxFrameBody+1)
	r := bufio.NewReader(bytes.NewReader(buf))
	if _, err := ReadFrame(r); err != ErrBadFormat {
		t.Fatalf("err = %v, want ErrBadFormat", err)
	}
}

func TestPendingRequestsDeliver(t *testing.T) {
	p := NewPendingRequests()
	id, ch := p.NewID()
	reply := Frame{Tag: TagDataReply, Body: []byte("x")}
	if !p.Deliver(id, reply) {
		t.Fatalf("Deliver returned false for a live waiter")
	}
	got := <-ch
	if !bytes.Equal(got.Body, reply.Body) {
		t.Fatalf("got %v, want %v", got.Body, reply.Body)
	}
	if p.Deliver(id, reply) {
		t.Fatalf("Deliver returned true for an already-consumed id")
	}
}

func TestPendingRequestsCancel(t *testing.T) {
	p := NewPendingRequests()
	id, _ := p.NewID()
	p.Cancel(id)
	if p.Deliver(id, Frame{}) {
		t.Fatalf("Deliver returned true after Cancel")
	}
}
