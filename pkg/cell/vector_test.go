package cell

import "testing"

func TestVectorAppendAndGet(t *testing.T) {
	v := NewVector()
	for i := 0; i < 40; i++ {
		v = v.Append(NewRef(Long{Value: int64(i)}))
	}
	if v.Count() != 40 {
		t.Fatalf("Count() = %d, want 40", v.Count())
	}
	for i := 0; i < 40; i++ {
		r, err := v.Get(i)
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		val, _ := r.Value()
		l, ok := val.(Long)
		if !ok || l.Value != int64(i) {
			t.Fatalf("Get(%d) = %#v, want Long{%d}", i, val, i)
		}
	}
}

func TestVectorPop(t *testing.T) {
	v := NewVector(NewRef(Long{Value: 1}), NewRef(Long{Value: 2}))
	v = v.Pop()
	if v.Count() != 1 {
		t.Fatalf("Count() after Pop = %d, want 1", v.Count())
	}
	r, _ := v.Get(0)
	val, _ := r.Value()
	if val.(Long).Value != 1 {
		t.Error("Pop removed the wrong element")
	}
}

func TestVectorSliceAndCommonPrefixLength(t *testing.T) {
	a := NewVector()
	for i := 0; i < 20; i++ {
		a = a.Append(NewRef(Long{Value: int64(i)}))
	}
	b := a.Slice(0, 12)
	b = b.Append(NewRef(Long{Value: 999}))

	cp := CommonPrefixLength(a, b)
	if cp != 12 {
		t.Errorf("CommonPrefixLength = %d, want 12", cp)
	}
}

func TestVectorEncodeDecodeRoundTrip(t *testing.T) {
	v := NewVector(NewRef(Long{Value: 1}), NewRef(String{Value: "x"}))
	enc := v.Encode()
	got, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	v2, ok := got.(Vector)
	if !ok || v2.Count() != 2 {
		t.Fatalf("decoded = %#v, want a 2-element Vector", got)
	}
}
