// Package crypto wraps the Ed25519 keypair and signing contract: produce
// and verify signatures over a byte sequence. Key generation and the
// signature primitive itself come from circl; everything above that line
// (canonical encoding, what gets signed, SignedData) lives in pkg/cell.
package crypto

import (
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/sign/ed25519"
)

// AccountKey is an Ed25519 public key: the identity of a peer or account.
type AccountKey [ed25519.PublicKeySize]byte

// String renders the key as lowercase hex.
func (k AccountKey) String() string {
	return fmt.Sprintf("%x", k[:])
}

// KeyPair holds an Ed25519 private key alongside its derived public key.
type KeyPair struct {
	public  AccountKey
	private ed25519.PrivateKey
}

// Generate creates a fresh random KeyPair.
func Generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	kp := &KeyPair{private: priv}
	copy(kp.public[:], pub)
	return kp, nil
}

// FromSeed derives a KeyPair deterministically from a 32-byte seed.
// Used by cmd/genesis to produce a reproducible devnet validator set.
func FromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("crypto: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	kp := &KeyPair{private: priv}
	copy(kp.public[:], priv.Public().(ed25519.PublicKey))
	return kp, nil
}

// PublicKey returns the peer's public identity.
func (k *KeyPair) PublicKey() AccountKey { return k.public }

// Sign produces a canonical Ed25519 signature (RFC 8032) over msg.
func (k *KeyPair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.private, msg)
}

// Verify checks that sig is a valid Ed25519 signature by pub over msg.
func Verify(pub AccountKey, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig)
}

// SignatureSize is the fixed size in bytes of an Ed25519 signature.
const SignatureSize = ed25519.SignatureSize
