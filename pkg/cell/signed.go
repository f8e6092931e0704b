package cell

import (
	"errors"

	"github.com/latticebft/core/pkg/crypto"
)

// ErrBadSignature is returned by SignedData.Validate when the signature
// does not verify against the public key and payload hash.
var ErrBadSignature = errors.New("cell: bad signature")

// SignedData wraps a payload ref with an Ed25519 signature over the
// payload's content hash, so the signature stays valid whether the payload
// is embedded or resolved indirectly through a store.
type SignedData struct {
	PublicKey crypto.AccountKey
	Signature [crypto.SignatureSize]byte
	Payload   Ref
}

// Sign builds a SignedData envelope, signing payload's content hash with kp.
func Sign(kp *crypto.KeyPair, payload Ref) SignedData {
	h := payload.Hash()
	sig := kp.Sign(h[:])
	sd := SignedData{PublicKey: kp.PublicKey(), Payload: payload}
	copy(sd.Signature[:], sig)
	return sd
}

// Verify reports whether the signature is valid for PublicKey over the
// payload's content hash.
func (s SignedData) Verify() bool {
	h := s.Payload.Hash()
	return crypto.Verify(s.PublicKey, h[:], s.Signature[:])
}

func (SignedData) Tag() Tag { return TagSignedData }

func (s SignedData) RefCount() int { return 1 }

func (s SignedData) GetRef(i int) Ref {
	if i != 0 {
		panic("cell: SignedData has exactly one child ref")
	}
	return s.Payload
}

func (s SignedData) UpdateRefs(f func(Ref) Ref) Cell {
	s.Payload = f(s.Payload)
	return s
}

func (s SignedData) Validate() error {
	if !s.Verify() {
		return ErrBadSignature
	}
	return nil
}

func (s SignedData) Encode() []byte {
	buf := []byte{byte(TagSignedData)}
	buf = append(buf, s.PublicKey[:]...)
	buf = append(buf, s.Signature[:]...)
	return s.Payload.encode(buf)
}

func decodeSignedDataBody(body []byte) (Cell, int, error) {
	const keyLen = 32
	const sigLen = crypto.SignatureSize
	if len(body) < keyLen+sigLen {
		return nil, 0, ErrBadFormat
	}
	var s SignedData
	copy(s.PublicKey[:], body[:keyLen])
	copy(s.Signature[:], body[keyLen:keyLen+sigLen])
	payload, n, err := decodeRef(body[keyLen+sigLen:])
	if err != nil {
		return nil, 0, err
	}
	s.Payload = payload
	return s, keyLen + sigLen + n, nil
}
