package wasm

import "testing"

func TestEncodeULEB128(t *testing.T) {
	cases := map[uint64][]byte{
		0:   {0x00},
		127: {0x7f},
		128: {0x80, 0x01},
		624485: {0xe5, 0x8e, 0x26},
	}
	for in, want := range cases {
		got := EncodeU(in)
		if !bytesEqual(got, want) {
			t.Errorf("EncodeU(%d) = %v, want %v", in, got, want)
		}
	}
}

func TestEncodeSLEB128(t *testing.T) {
	cases := map[int64][]byte{
		0:   {0x00},
		-1:  {0x7f},
		63:  {0x3f},
		-64: {0x40},
		-123456: {0xc0, 0xbb, 0x78},
	}
	for in, want := range cases {
		got := EncodeS(in)
		if !bytesEqual(got, want) {
			t.Errorf("EncodeS(%d) = %v, want %v", in, got, want)
		}
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestModuleEmitStartsWithMagicAndVersion(t *testing.T) {
	b := &Builder{}
	out := b.Emit()
	want := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if !bytesEqual(out[:8], want) {
		t.Fatalf("expected wasm magic+version prefix, got %v", out[:8])
	}
}

func TestCompactLocals(t *testing.T) {
	groups := compactLocals([]ValType{ValI64, ValI64, ValF64, ValI64})
	if len(groups) != 3 {
		t.Fatalf("expected 3 runs, got %d: %+v", len(groups), groups)
	}
	if groups[0].count != 2 || groups[0].typ != ValI64 {
		t.Errorf("unexpected first group: %+v", groups[0])
	}
}

func TestTypeIndexInterning(t *testing.T) {
	b := &Builder{}
	s1 := FuncSig{Params: []ValType{ValI64}, Results: []ValType{ValI64}}
	s2 := FuncSig{Params: []ValType{ValI64}, Results: []ValType{ValI64}}
	i1 := b.TypeIndex(s1)
	i2 := b.TypeIndex(s2)
	if i1 != i2 {
		t.Fatalf("expected identical signatures to share a type index, got %d and %d", i1, i2)
	}
	if len(b.Types) != 1 {
		t.Fatalf("expected 1 interned type, got %d", len(b.Types))
	}
}
