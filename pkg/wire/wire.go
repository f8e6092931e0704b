// Package wire implements the peer-to-peer message frame: a length-prefixed,
// tagged envelope carrying either a canonical cell encoding or a small
// query/status message. Framing is transport-agnostic — it runs the same
// way over a libp2p stream or an in-process pipe.
package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/latticebft/core/pkg/cell"
)

// Tag identifies the kind of message carried by a Frame.
type Tag byte

const (
	TagBelief Tag = iota + 1
	TagQuery
	TagTransact
	TagResult
	TagStatusReq
	TagStatus
	TagMissingData
	TagDataReply
	TagChallenge
	TagResponse
)

func (t Tag) valid() bool { return t >= TagBelief && t <= TagResponse }

// ErrWouldBlock signals that the transport's outbound buffer is full; the
// caller must retry without assigning a new message ID.
var ErrWouldBlock = errors.New("wire: would block")

// ErrBadFormat signals a frame whose length or tag byte could not be parsed.
var ErrBadFormat = errors.New("wire: bad format")

// MaxFrameBody bounds a single frame's body to guard against a peer
// claiming an unbounded length prefix.
const MaxFrameBody = 64 << 20

// Frame is one message on the wire: a tag and an opaque body. Body is
// either a canonical cell encoding (Belief, Transact, Result, DataReply)
// or a message-specific payload (Query, MissingData, StatusReq, Status,
// Challenge, Response).
type Frame struct {
	Tag  Tag
	Body []byte
}

// Encode writes a frame's complete on-wire representation: length:VLQ,
// tag:1, body:bytes. Length counts the tag byte plus the body.
func Encode(f Frame) []byte {
	buf := cell.PutUvarint(nil, uint64(len(f.Body)+1))
	buf = append(buf, byte(f.Tag))
	return append(buf, f.Body...)
}

// WriteFrame encodes f and writes it to w in one call.
func WriteFrame(w io.Writer, f Frame) error {
	_, err := w.Write(Encode(f))
	return err
}

// ReadFrame reads one frame from r, blocking until the full frame has
// arrived or the stream errors.
func ReadFrame(r *bufio.Reader) (Frame, error) {
	length, err := readUvarint(r)
	if err != nil {
		return Frame{}, err
	}
	if length == 0 || length > MaxFrameBody {
		return Frame{}, ErrBadFormat
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, err
	}
	tag := Tag(payload[0])
	if !tag.valid() {
		return Frame{}, ErrBadFormat
	}
	return Frame{Tag: tag, Body: payload[1:]}, nil
}

// readUvarint decodes a VLQ directly from a byte stream, one byte at a
// time, matching cell's little-endian-group VLQ grammar.
func readUvarint(r *bufio.Reader) (uint64, error) {
	var x uint64
	var shift uint
	for i := 0; i < 10; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		x |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return x, nil
		}
		shift += 7
	}
	return 0, fmt.Errorf("wire: varint too long")
}

// CellFrame wraps a cell in a Frame of the given tag, using its canonical
// encoding as the body. Valid for TagBelief, TagTransact, TagResult, and
// TagDataReply.
func CellFrame(tag Tag, c cell.Cell) Frame {
	return Frame{Tag: tag, Body: c.Encode()}
}

// DecodeCellFrame decodes f's body as a canonical cell, for the tags whose
// body is a cell encoding.
func DecodeCellFrame(f Frame) (cell.Cell, error) {
	return cell.Decode(f.Body)
}
