package crypto

import (
	"bytes"
	"testing"
)

func TestGenerateProducesUsableKeyPair(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if kp.PublicKey() == (AccountKey{}) {
		t.Error("generated zero public key")
	}
}

func TestSignAndVerify(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	msg := []byte("belief-merge")
	sig := kp.Sign(msg)
	if !Verify(kp.PublicKey(), msg, sig) {
		t.Error("signature did not verify against the signing key")
	}
	if Verify(kp.PublicKey(), []byte("different message"), sig) {
		t.Error("signature verified against a different message")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	kp1, _ := Generate()
	kp2, _ := Generate()
	msg := []byte("belief-merge")
	sig := kp1.Sign(msg)
	if Verify(kp2.PublicKey(), msg, sig) {
		t.Error("signature verified against an unrelated public key")
	}
}

func TestFromSeedIsDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, 32)
	kp1, err := FromSeed(seed)
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	kp2, err := FromSeed(seed)
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	if kp1.PublicKey() != kp2.PublicKey() {
		t.Error("same seed produced different public keys")
	}
}

func TestFromSeedRejectsWrongLength(t *testing.T) {
	if _, err := FromSeed(make([]byte, 16)); err == nil {
		t.Error("expected an error for a short seed")
	}
}

func TestAccountKeyString(t *testing.T) {
	kp, _ := Generate()
	s := kp.PublicKey().String()
	if len(s) != 64 {
		t.Errorf("String() length = %d, want 64 (32 bytes hex)", len(s))
	}
}
