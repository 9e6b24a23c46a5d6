package codegen

import (
	"vela/internal/closures"
	"vela/internal/parser"
	"vela/internal/prescan"
	"vela/internal/types"
	"vela/internal/wasm"
)

func (e *Emitter) buildUserFuncBody(fd *parser.FuncDecl) ([]byte, error) {
	fc := prescan.Scan(e.env, fd.Params, fd.Body)
	fe := &fnEmitter{e: e, fc: fc, fb: wasm.NewFuncBuilder(), paramShift: 0}
	fe.declareLocals()
	for _, st := range fd.Body {
		if err := fe.stmt(st); err != nil {
			return nil, err
		}
	}
	// A body that falls off the end leaves one zeroed i64 per declared
	// return type.
	if !bodyAlwaysReturns(fd.Body) {
		for range fd.ReturnTypes {
			fe.fb.EmitOp(wasm.OpI64Const)
			fe.fb.EmitS64(0)
		}
	}
	return fe.fb.Finish(), nil
}

func (e *Emitter) buildClosureBody(d *closures.Descriptor) ([]byte, error) {
	n := d.Node
	params := make([]parser.Param, len(n.Params))
	for i, p := range n.Params {
		params[i] = parser.Param{Name: p, Type: "int"}
	}
	fc := prescan.Scan(e.env, params, n.Body)
	// Captured names are only read in the body, so the pre-scan gives them
	// no slot; each one gets a local here for loadCaptures to store into.
	for _, name := range d.Captures {
		if _, ok := fc.Locals[name]; !ok {
			fc.AllocLocal(name, types.TUnknown)
		}
	}
	fe := &fnEmitter{e: e, fc: fc, fb: wasm.NewFuncBuilder(), paramShift: 1, isClosure: true, desc: d}
	fe.declareLocals()
	fe.loadCaptures()
	for _, st := range n.Body {
		if err := fe.stmt(st); err != nil {
			return nil, err
		}
	}
	// A closure body that falls off the end without an explicit return
	// still has to satisfy its declared i64 result type.
	if !bodyAlwaysReturns(n.Body) {
		fe.fb.EmitOp(wasm.OpI64Const)
		fe.fb.EmitS64(0)
	}
	return fe.fb.Finish(), nil
}

func (e *Emitter) buildTopLevelBody(stmts []parser.Stmt) ([]byte, error) {
	fc := prescan.Scan(e.env, nil, stmts)
	fe := &fnEmitter{e: e, fc: fc, fb: wasm.NewFuncBuilder(), paramShift: 0}
	fe.declareLocals()
	for _, st := range stmts {
		if err := fe.stmt(st); err != nil {
			return nil, err
		}
	}
	return fe.fb.Finish(), nil
}

func bodyAlwaysReturns(body []parser.Stmt) bool {
	if len(body) == 0 {
		return false
	}
	_, ok := body[len(body)-1].(*parser.Return)
	return ok
}

// fnEmitter lowers one function body's statements and expressions onto a
// wasm.FuncBuilder, consuming the same pre-scan FuncCtx the emitter
// re-walks in lockstep so every temp group lines up with its reservation.
type fnEmitter struct {
	e          *Emitter
	fc         *prescan.FuncCtx
	fb         *wasm.FuncBuilder
	paramShift int
	isClosure  bool
	desc       *closures.Descriptor

	blockDepth int
	loopStack  []loopMarks
}

type loopMarks struct {
	breakDepth    int
	continueDepth int
}

// declareLocals mirrors every pre-scanned local (SIMD scratch block,
// named locals, temp groups) as a FuncBuilder local declaration; fcIdx and
// the local's final wasm index always differ by exactly paramShift.
func (fe *fnEmitter) declareLocals() {
	for _, t := range fe.fc.LocalTypes[fe.fc.NumParams:] {
		fe.fb.DeclareLocal(valTypeOf(t))
	}
}

// Every local is a uniform 8-byte slot (spec.md §4 value encoding): a
// compile-time Float lives in an i64 local too, bit-reinterpreted to f64
// at each point of arithmetic use. This keeps the local address space,
// capture records and table fields all the same shape.
func valTypeOf(t types.Type) wasm.ValType {
	return wasm.ValI64
}

func (fe *fnEmitter) localIdx(fcIdx int) int { return fcIdx + fe.paramShift }

// loadCaptures emits the closure prologue (spec.md §4.8.4): every captured
// name is read out of the env record (local 0, env_ptr) at its index in
// the descriptor's sorted capture list and stashed into the matching
// local slot.
func (fe *fnEmitter) loadCaptures() {
	for i, name := range fe.desc.Captures {
		idx, ok := fe.fc.Locals[name]
		if !ok {
			continue
		}
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(0) // env_ptr
		fe.fb.EmitOp(wasm.OpI64Load)
		fe.fb.EmitU32(3) // align
		fe.fb.EmitU32(uint64(i * 8))
		fe.fb.EmitOp(wasm.OpLocalSet)
		fe.fb.EmitU32(uint64(fe.localIdx(idx)))
	}
}

func (fe *fnEmitter) callImport(name string) {
	fe.fb.EmitOp(wasm.OpCall)
	fe.fb.EmitU32(uint64(fe.e.imports[name]))
}

func (fe *fnEmitter) inferType(ex parser.Expr) types.Type {
	return types.Infer(ex, fe.fc)
}
