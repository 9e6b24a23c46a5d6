package wasm

// FuncBuilder accumulates one function body's byte stream plus the local
// declarations that must prefix it. The emitter calls Emit*/Const* in
// source order; locals are declared up front via DeclareLocal, mirroring
// the pre-scan pass's up-front slot reservation.
type FuncBuilder struct {
	localTypes []ValType
	body       []byte
}

func NewFuncBuilder() *FuncBuilder {
	return &FuncBuilder{}
}

// DeclareLocal reserves the next local slot and returns its index. Slot 0
// is always the first declared local after the function's explicit
// parameters (the caller is responsible for offsetting by param count).
func (f *FuncBuilder) DeclareLocal(t ValType) int {
	f.localTypes = append(f.localTypes, t)
	return len(f.localTypes) - 1
}

func (f *FuncBuilder) EmitByte(b byte) {
	f.body = append(f.body, b)
}

func (f *FuncBuilder) EmitOp(op byte) {
	f.body = append(f.body, op)
}

func (f *FuncBuilder) EmitBytes(b ...byte) {
	f.body = append(f.body, b...)
}

func (f *FuncBuilder) EmitU32(v uint64) {
	f.body = append(f.body, EncodeU(v)...)
}

func (f *FuncBuilder) EmitS64(v int64) {
	f.body = append(f.body, EncodeS(v)...)
}

func (f *FuncBuilder) EmitF64Bits(bits uint64) {
	f.body = append(f.body, EncodeF64Bits(bits)...)
}

// Len reports the current body length, used by the emitter to compute
// branch-depth-independent offsets where needed.
func (f *FuncBuilder) Len() int {
	return len(f.body)
}

// Finish produces the encoded function body: a compacted local-declaration
// vector followed by the instruction stream and an explicit `end` opcode.
func (f *FuncBuilder) Finish() []byte {
	groups := compactLocals(f.localTypes)
	var locals []byte
	locals = append(locals, EncodeU(uint64(len(groups)))...)
	for _, g := range groups {
		locals = append(locals, EncodeU(uint64(g.count))...)
		locals = append(locals, byte(g.typ))
	}
	content := append(locals, f.body...)
	content = append(content, OpEnd)
	out := EncodeU(uint64(len(content)))
	return append(out, content...)
}

type localGroup struct {
	typ   ValType
	count int
}

// compactLocals runs together consecutive equal-typed locals into the
// minimal number of (count, type) groups the binary format allows.
func compactLocals(types []ValType) []localGroup {
	var groups []localGroup
	for _, t := range types {
		if len(groups) > 0 && groups[len(groups)-1].typ == t {
			groups[len(groups)-1].count++
			continue
		}
		groups = append(groups, localGroup{typ: t, count: 1})
	}
	return groups
}
