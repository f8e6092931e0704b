package wire

import (
	"github.com/latticebft/core/pkg/cell"
	"github.com/latticebft/core/pkg/hash"
)

// Query asks the peer to resolve and return the cell at Hash, identified
// by ID so the reply (a DataReply frame) can be matched back to the
// in-flight request.
type Query struct {
	ID   uint64
	Hash hash.Hash
}

func (q Query) encode() []byte {
	buf := cell.PutUvarint(nil, q.ID)
	return append(buf, q.Hash[:]...)
}

func decodeQuery(body []byte) (Query, error) {
	id, n, err := cell.GetUvarint(body)
	if err != nil {
		return Query{}, err
	}
	if len(body)-n != hash.Size {
		return Query{}, ErrBadFormat
	}
	var q Query
	q.ID = id
	copy(q.Hash[:], body[n:])
	return q, nil
}

// MissingData asks the peer for the raw bytes of the cell at Hash,
// discovered missing mid-resolve. Same ID/Hash shape as Query; kept as a
// distinct tag because its reply has no record-vs-scalar ambiguity to
// resolve (it's always exactly the encoded cell at Hash).
type MissingData struct {
	ID   uint64
	Hash hash.Hash
}

func (m MissingData) encode() []byte {
	buf := cell.PutUvarint(nil, m.ID)
	return append(buf, m.Hash[:]...)
}

func decodeMissingData(body []byte) (MissingData, error) {
	id, n, err := cell.GetUvarint(body)
	if err != nil {
		return MissingData{}, err
	}
	if len(body)-n != hash.Size {
		return MissingData{}, ErrBadFormat
	}
	var m MissingData
	m.ID = id
	copy(m.Hash[:], body[n:])
	return m, nil
}

// StatusReq asks a peer to report its current belief hash and consensus
// height.
type StatusReq struct {
	ID uint64
}

func (s StatusReq) encode() []byte { return cell.PutUvarint(nil, s.ID) }

func decodeStatusReq(body []byte) (StatusReq, error) {
	id, n, err := cell.GetUvarint(body)
	if err != nil {
		return StatusReq{}, err
	}
	if n != len(body) {
		return StatusReq{}, ErrBadFormat
	}
	return StatusReq{ID: id}, nil
}

// Status is the reply to a StatusReq.
type Status struct {
	ID             uint64
	BeliefHash     hash.Hash
	ConsensusPoint int64
}

func (s Status) encode() []byte {
	buf := cell.PutUvarint(nil, s.ID)
	buf = append(buf, s.BeliefHash[:]...)
	return cell.PutVarint(buf, s.ConsensusPoint)
}

func decodeStatus(body []byte) (Status, error) {
	id, n, err := cell.GetUvarint(body)
	if err != nil {
		return Status{}, err
	}
	off := n
	if len(body)-off < hash.Size {
		return Status{}, ErrBadFormat
	}
	var s Status
	s.ID = id
	copy(s.BeliefHash[:], body[off:off+hash.Size])
	off += hash.Size
	cp, n, err := cell.GetVarint(body[off:])
	if err != nil {
		return Status{}, err
	}
	off += n
	if off != len(body) {
		return Status{}, ErrBadFormat
	}
	s.ConsensusPoint = cp
	return s, nil
}

// Challenge is a handshake nonce sent to a freshly connected peer, to be
// signed and returned as a Response before any Belief traffic is trusted.
type Challenge struct {
	Nonce [32]byte
}

func (c Challenge) encode() []byte { return append([]byte{}, c.Nonce[:]...) }

func decodeChallenge(body []byte) (Challenge, error) {
	if len(body) != 32 {
		return Challenge{}, ErrBadFormat
	}
	var c Challenge
	copy(c.Nonce[:], body)
	return c, nil
}

// Response answers a Challenge with the responder's identity and a
// signature over the nonce.
type Response struct {
	PeerKey   cell.AccountKey
	Signature [64]byte
}

func (r Response) encode() []byte {
	buf := append([]byte{}, r.PeerKey[:]...)
	return append(buf, r.Signature[:]...)
}

func decodeResponse(body []byte) (Response, error) {
	if len(body) != 32+64 {
		return Response{}, ErrBadFormat
	}
	var r Response
	copy(r.PeerKey[:], body[:32])
	copy(r.Signature[:], body[32:])
	return r, nil
}

// QueryFrame, MissingDataFrame, StatusReqFrame, StatusFrame,
// ChallengeFrame, ResponseFrame build the corresponding Frame for each
// non-cell message kind.

func QueryFrame(q Query) Frame             { return Frame{Tag: TagQuery, Body: q.encode()} }
func MissingDataFrame(m MissingData) Frame { return Frame{Tag: TagMissingData, Body: m.encode()} }
func StatusReqFrame(s StatusReq) Frame     { return Frame{Tag: TagStatusReq, Body: s.encode()} }
func StatusFrame(s Status) Frame           { return Frame{Tag: TagStatus, Body: s.encode()} }
func ChallengeFrame(c Challenge) Frame     { return Frame{Tag: TagChallenge, Body: c.encode()} }
func ResponseFrame(r Response) Frame       { return Frame{Tag: TagResponse, Body: r.encode()} }

// DecodeQuery, DecodeMissingData, DecodeStatusReq, DecodeStatus,
// DecodeChallenge, DecodeResponse parse a Frame's body back into its
// typed message, failing if f's Tag doesn't match.

func DecodeQuery(f Frame) (Query, error) {
	if f.Tag != TagQuery {
		return Query{}, ErrBadFormat
	}
	return decodeQuery(f.Body)
}

func DecodeMissingData(f Frame) (MissingData, error) {
	if f.Tag != TagMissingData {
		return MissingData{}, ErrBadFormat
	}
	return decodeMissingData(f.Body)
}

func DecodeStatusReq(f Frame) (StatusReq, error) {
	if f.Tag != TagStatusReq {
		return StatusReq{}, ErrBadFormat
	}
	return decodeStatusReq(f.Body)
}

func DecodeStatus(f Frame) (Status, error) {
	if f.Tag != TagStatus {
		return Status{}, ErrBadFormat
	}
	return decodeStatus(f.Body)
}

func DecodeChallenge(f Frame) (Challenge, error) {
	if f.Tag != TagChallenge {
		return Challenge{}, ErrBadFormat
	}
	return decodeChallenge(f.Body)
}

func DecodeResponse(f Frame) (Response, error) {
	if f.Tag != TagResponse {
		return Response{}, ErrBadFormat
	}
	return decodeResponse(f.Body)
}
