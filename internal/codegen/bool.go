package codegen

import (
	"vela/internal/parser"
	"vela/internal/types"
	"vela/internal/wasm"
)

// boolExpr lowers a boolean-expression node to a single i32 (0/1) on the
// stack (spec.md §4.8.3). Comparisons dispatch on the inferred operand
// type; Float operands are reinterpreted from their boxed i64 form before
// the f64 comparison, then the f64 result (already i32) is used directly.
func (fe *fnEmitter) boolExpr(b parser.BoolNode) error {
	switch n := b.(type) {
	case *parser.Comparison:
		return fe.comparison(n)
	case *parser.Logical:
		return fe.logical(n)
	case *parser.BoolGrouped:
		return fe.boolExpr(n.Inner)
	}
	return codegenErr(b.Span(), "unsupported boolean node")
}

func (fe *fnEmitter) comparison(n *parser.Comparison) error {
	lt := fe.inferType(n.Left)
	rt := fe.inferType(n.Right)
	if lt.Tag == types.Float || rt.Tag == types.Float {
		// Either side being Float forces an f64 comparison; the other
		// side is converted rather than bit-reinterpreted if it is an
		// Int (mirrors the mixed-type handling in floatOp).
		if err := fe.emitAsF64(n.Left); err != nil {
			return err
		}
		if err := fe.emitAsF64(n.Right); err != nil {
			return err
		}
		fe.fb.EmitOp(floatCmpOp(n.Op))
		return nil
	}
	if err := fe.expr(n.Left); err != nil {
		return err
	}
	if err := fe.expr(n.Right); err != nil {
		return err
	}
	fe.fb.EmitOp(intCmpOp(n.Op))
	return nil
}

func floatCmpOp(op string) byte {
	switch op {
	case ">":
		return wasm.OpF64Gt
	case "<":
		return wasm.OpF64Lt
	case ">=":
		return wasm.OpF64Ge
	case "<=":
		return wasm.OpF64Le
	case "!=":
		return wasm.OpF64Ne
	default:
		return wasm.OpF64Eq
	}
}

func intCmpOp(op string) byte {
	switch op {
	case ">":
		return wasm.OpI64GtS
	case "<":
		return wasm.OpI64LtS
	case ">=":
		return wasm.OpI64GeS
	case "<=":
		return wasm.OpI64LeS
	case "!=":
		return wasm.OpI64Ne
	default:
		return wasm.OpI64Eq
	}
}

// logical implements short-circuit && and || with an if/else that yields
// an i32, so the unevaluated side is never reached (spec.md §4.2.6).
func (fe *fnEmitter) logical(n *parser.Logical) error {
	if err := fe.boolExpr(n.Left); err != nil {
		return err
	}
	fe.fb.EmitOp(wasm.OpIf)
	fe.fb.EmitByte(byte(wasm.ValI32))
	if n.Op == "&&" {
		if err := fe.boolExpr(n.Right); err != nil {
			return err
		}
		fe.fb.EmitOp(wasm.OpElse)
		fe.fb.EmitOp(wasm.OpI32Const)
		fe.fb.EmitS64(0)
	} else {
		fe.fb.EmitOp(wasm.OpI32Const)
		fe.fb.EmitS64(1)
		fe.fb.EmitOp(wasm.OpElse)
		if err := fe.boolExpr(n.Right); err != nil {
			return err
		}
	}
	fe.fb.EmitOp(wasm.OpEnd)
	return nil
}
