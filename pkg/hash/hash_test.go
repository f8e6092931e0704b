package hash

import "testing"

func TestOfIsDeterministic(t *testing.T) {
	a := Of([]byte("belief"))
	b := Of([]byte("belief"))
	if a != b {
		t.Error("Of produced different digests for the same input")
	}
	if Of([]byte("belief")) == Of([]byte("order")) {
		t.Error("different inputs hashed to the same digest")
	}
}

func TestLessIsAStrictWeakOrdering(t *testing.T) {
	a := Hash{0x01}
	b := Hash{0x02}
	if !a.Less(b) {
		t.Error("expected a < b")
	}
	if a.Less(a) {
		t.Error("a should not be less than itself")
	}
	if b.Less(a) == a.Less(b) {
		t.Error("Less should be antisymmetric")
	}
}

func TestIsZero(t *testing.T) {
	if !(Hash{}).IsZero() {
		t.Error("zero-valued Hash should report IsZero")
	}
	if Zero.IsZero() != true {
		t.Error("Zero constant should report IsZero")
	}
	h := Of([]byte("x"))
	if h.IsZero() {
		t.Error("a real digest should not report IsZero")
	}
}

func TestFromHexRoundTrip(t *testing.T) {
	h := Of([]byte("round trip"))
	parsed, err := FromHex(h.String())
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	if parsed != h {
		t.Errorf("FromHex(String()) = %v, want %v", parsed, h)
	}
}

func TestFromHexRejectsBadInput(t *testing.T) {
	if _, err := FromHex("not hex"); err == nil {
		t.Error("expected an error for non-hex input")
	}
	if _, err := FromHex("ab"); err == nil {
		t.Error("expected an error for a short hex string")
	}
}
