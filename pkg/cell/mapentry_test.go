package cell

import "testing"

func TestMapEntryEncodeDecodeRoundTrip(t *testing.T) {
	e := MapEntry{Key: key("alice"), Val: NewRef(Long{Value: 7})}
	enc := e.Encode()
	got, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	e2, ok := got.(MapEntry)
	if !ok {
		t.Fatalf("decoded %T, want MapEntry", got)
	}
	kv, _ := e2.Key.Value()
	vv, _ := e2.Val.Value()
	if kv.(String).Value != "alice" || vv.(Long).Value != 7 {
		t.Errorf("decoded MapEntry = {%#v, %#v}, want {alice, 7}", kv, vv)
	}
}

func TestMapEntryUpdateRefs(t *testing.T) {
	e := MapEntry{Key: key("k"), Val: NewRef(Long{Value: 1})}
	updated := e.UpdateRefs(func(r Ref) Ref {
		return r.WithStatus(StatusPersisted)
	}).(MapEntry)
	if updated.Key.Status() != StatusPersisted || updated.Val.Status() != StatusPersisted {
		t.Errorf("UpdateRefs did not apply f to both Key and Val refs")
	}
}
