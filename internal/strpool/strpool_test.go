package strpool

import "testing"

func TestInternIsIdempotent(t *testing.T) {
	p := New()
	a := p.Intern("hello")
	b := p.Intern("hello")
	if a != b {
		t.Fatalf("expected identical entries, got %+v and %+v", a, b)
	}
	if p.HeapBase() != len("hello") {
		t.Fatalf("expected heap base %d, got %d", len("hello"), p.HeapBase())
	}
}

func TestInternDistinctStrings(t *testing.T) {
	p := New()
	a := p.Intern("foo")
	b := p.Intern("bar")
	if a.Offset == b.Offset {
		t.Fatalf("expected distinct offsets, got %+v and %+v", a, b)
	}
	if string(p.Bytes()) != "foobar" {
		t.Fatalf("unexpected pool contents: %q", p.Bytes())
	}
}

func TestPackedValue(t *testing.T) {
	p := New()
	e := p.Intern("abc")
	packed := e.Packed()
	gotLen := packed & 0xffffffff
	gotOff := packed >> 32
	if gotLen != 3 || gotOff != 0 {
		t.Fatalf("unexpected packed value: off=%d len=%d", gotOff, gotLen)
	}
}
