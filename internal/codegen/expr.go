package codegen

import (
	"math"

	"vela/internal/parser"
	"vela/internal/types"
	"vela/internal/wasm"
)

// expr lowers any expression to exactly one boxed i64 value on the stack
// (spec.md §4.8.3).
func (fe *fnEmitter) expr(e parser.Expr) error {
	switch n := e.(type) {
	case *parser.Number:
		return fe.number(n)
	case *parser.String:
		fe.fb.EmitOp(wasm.OpI64Const)
		fe.fb.EmitS64(int64(fe.e.pool.Intern(n.Text).Packed()))
		return nil
	case *parser.Bool:
		fe.fb.EmitOp(wasm.OpI64Const)
		if n.Value {
			fe.fb.EmitS64(1)
		} else {
			fe.fb.EmitS64(0)
		}
		return nil
	case *parser.Variable:
		idx, ok := fe.fc.Locals[n.Name]
		if !ok {
			return codegenErr(n.Span(), "reference to unknown local %q", n.Name)
		}
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(uint64(fe.localIdx(idx)))
		return nil
	case *parser.UnaryOp:
		return fe.unaryOp(n)
	case *parser.BinaryOp:
		return fe.binaryOp(n)
	case *parser.CallFunc:
		_, err := fe.callFunc(n)
		return err
	case *parser.Closure:
		return fe.closureExpr(n)
	case *parser.TableLiteral:
		return fe.tableLiteral(n)
	case *parser.FieldAccess:
		return fe.fieldAccess(n)
	case *parser.IndexAccess:
		return fe.indexAccess(n)
	case *parser.MethodCall:
		return fe.methodCall(n)
	case *parser.VecLiteral:
		return fe.vecLiteral(n)
	case *parser.MatLiteral:
		return fe.matLiteral(n)
	case *parser.Transpose:
		if err := fe.expr(n.Operand); err != nil {
			return err
		}
		fe.matTranspose()
		return nil
	case *parser.Grouped:
		return fe.expr(n.Inner)
	case *parser.BooleanExpr:
		if err := fe.boolExpr(n.Inner); err != nil {
			return err
		}
		fe.fb.EmitOp(wasm.OpI64ExtendI32U)
		return nil
	}
	return codegenErr(e.Span(), "unsupported expression")
}

func (fe *fnEmitter) number(n *parser.Number) error {
	v, isFloat := parseNumber(n.Text)
	fe.fb.EmitOp(wasm.OpI64Const)
	if isFloat {
		fe.fb.EmitS64(int64(math.Float64bits(v)))
	} else {
		fe.fb.EmitS64(int64(v))
	}
	return nil
}

// parseNumber mirrors the inferencer's own literal classification: a '.'
// anywhere in the text makes it a float.
func parseNumber(text string) (float64, bool) {
	isFloat := false
	for _, r := range text {
		if r == '.' {
			isFloat = true
			break
		}
	}
	if !isFloat {
		var v int64
		neg := false
		for i, r := range text {
			if i == 0 && r == '-' {
				neg = true
				continue
			}
			v = v*10 + int64(r-'0')
		}
		if neg {
			v = -v
		}
		return float64(v), false
	}
	var whole, frac int64
	var fracDiv float64 = 1
	afterDot := false
	neg := false
	for i, r := range text {
		switch {
		case i == 0 && r == '-':
			neg = true
		case r == '.':
			afterDot = true
		case afterDot:
			frac = frac*10 + int64(r-'0')
			fracDiv *= 10
		default:
			whole = whole*10 + int64(r-'0')
		}
	}
	v := float64(whole) + float64(frac)/fracDiv
	if neg {
		v = -v
	}
	return v, true
}

// unaryOp is post-increment/decrement: it yields the pre-update value
// while still advancing the local (spec.md §4.2.2).
func (fe *fnEmitter) unaryOp(n *parser.UnaryOp) error {
	idx, ok := fe.fc.Locals[n.Name]
	if !ok {
		return codegenErr(n.Span(), "reference to unknown local %q", n.Name)
	}
	li := uint64(fe.localIdx(idx))
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(li)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(li)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(1)
	if n.Op == "++" {
		fe.fb.EmitOp(wasm.OpI64Add)
	} else {
		fe.fb.EmitOp(wasm.OpI64Sub)
	}
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(li)
	return nil
}

func (fe *fnEmitter) binaryOp(n *parser.BinaryOp) error {
	lt := fe.inferType(n.Left)
	switch lt.Tag {
	case types.Str:
		return fe.strConcat(n)
	case types.Vec, types.Mat:
		return fe.vecOrMatOp(n, lt)
	case types.Float:
		return fe.floatOp(n)
	default:
		return fe.intOp(n)
	}
}

func (fe *fnEmitter) strConcat(n *parser.BinaryOp) error {
	if n.Op != "+" {
		return codegenErr(n.Span(), "unsupported string operator %q", n.Op)
	}
	if err := fe.exprCoerceToStr(n.Left); err != nil {
		return err
	}
	if err := fe.exprCoerceToStr(n.Right); err != nil {
		return err
	}
	fe.callImport("str_concat")
	return nil
}

func (fe *fnEmitter) exprCoerceToStr(e parser.Expr) error {
	t := fe.inferType(e)
	if err := fe.expr(e); err != nil {
		return err
	}
	switch t.Tag {
	case types.Str:
	case types.Float:
		fe.callImport("float_to_str")
	default:
		fe.callImport("int_to_str")
	}
	return nil
}

func (fe *fnEmitter) floatOp(n *parser.BinaryOp) error {
	if n.Op == "^" || n.Op == "%" {
		// float_pow/float_mod take boxed f64 bits, so an Int side is
		// converted first, the same as for the inline operators below.
		if err := fe.emitAsF64(n.Left); err != nil {
			return err
		}
		fe.fb.EmitOp(wasm.OpI64ReinterpretF64)
		if err := fe.emitAsF64(n.Right); err != nil {
			return err
		}
		fe.fb.EmitOp(wasm.OpI64ReinterpretF64)
		if n.Op == "^" {
			fe.callImport("float_pow")
		} else {
			fe.callImport("float_mod")
		}
		return nil
	}
	// Each side is coerced by its own inferred type -- the dispatch in
	// binaryOp only checks the left operand, so a mixed int/float
	// expression (e.g. `1.5 + 2`) still needs the int side converted
	// rather than bit-reinterpreted.
	if err := fe.emitAsF64(n.Left); err != nil {
		return err
	}
	if err := fe.emitAsF64(n.Right); err != nil {
		return err
	}
	switch n.Op {
	case "+":
		fe.fb.EmitOp(wasm.OpF64Add)
	case "-":
		fe.fb.EmitOp(wasm.OpF64Sub)
	case "*":
		fe.fb.EmitOp(wasm.OpF64Mul)
	case "/":
		fe.fb.EmitOp(wasm.OpF64Div)
	default:
		return codegenErr(n.Span(), "unsupported float operator %q", n.Op)
	}
	fe.fb.EmitOp(wasm.OpI64ReinterpretF64)
	return nil
}

func (fe *fnEmitter) intOp(n *parser.BinaryOp) error {
	if n.Op == "^" {
		return fe.intPow(n)
	}
	if err := fe.expr(n.Left); err != nil {
		return err
	}
	if err := fe.expr(n.Right); err != nil {
		return err
	}
	switch n.Op {
	case "+":
		fe.fb.EmitOp(wasm.OpI64Add)
	case "-":
		fe.fb.EmitOp(wasm.OpI64Sub)
	case "*":
		fe.fb.EmitOp(wasm.OpI64Mul)
	case "/":
		fe.fb.EmitOp(wasm.OpI64DivS)
	case "%":
		fe.fb.EmitOp(wasm.OpI64RemS)
	default:
		return codegenErr(n.Span(), "unsupported int operator %q", n.Op)
	}
	return nil
}

// intPow lowers integer `^` as a counted multiply loop using the 3-slot
// temp group pre-scan reserved for it (spec.md §4.7 power groups):
// base, exponent (counts down), accumulator.
func (fe *fnEmitter) intPow(n *parser.BinaryOp) error {
	group := fe.fc.NextPowerGroup()
	baseSlot := uint64(fe.localIdx(group.Slots[0]))
	expSlot := uint64(fe.localIdx(group.Slots[1]))
	accSlot := uint64(fe.localIdx(group.Slots[2]))

	if err := fe.expr(n.Left); err != nil {
		return err
	}
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(baseSlot)
	if err := fe.expr(n.Right); err != nil {
		return err
	}
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(expSlot)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(1)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(accSlot)

	fe.fb.EmitOp(wasm.OpBlock)
	fe.fb.EmitByte(0x40)
	fe.fb.EmitOp(wasm.OpLoop)
	fe.fb.EmitByte(0x40)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(expSlot)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(0)
	fe.fb.EmitOp(wasm.OpI64LeS)
	fe.fb.EmitOp(wasm.OpBrIf)
	fe.fb.EmitU32(1)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(accSlot)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(baseSlot)
	fe.fb.EmitOp(wasm.OpI64Mul)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(accSlot)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(expSlot)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(1)
	fe.fb.EmitOp(wasm.OpI64Sub)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(expSlot)
	fe.fb.EmitOp(wasm.OpBr)
	fe.fb.EmitU32(0)
	fe.fb.EmitOp(wasm.OpEnd)
	fe.fb.EmitOp(wasm.OpEnd)

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(accSlot)
	return nil
}

// vecOrMatOp dispatches Vec/Mat arithmetic (spec.md §4.8.3/§4.8.5): `^`
// and mat+/-vec broadcast defer to host helpers; `@`/`#` lower to the
// inline dot/cross routines and mat*vec/mat*mat to inline loops; a matching
// pair of containers, and every scalar combination but mat+/-/÷scalar,
// lowers to an inline SIMD loop instead.
func (fe *fnEmitter) vecOrMatOp(n *parser.BinaryOp, lt types.Type) error {
	rt := fe.inferType(n.Right)
	isMat := lt.Tag == types.Mat || rt.Tag == types.Mat

	if n.Op == "^" {
		if err := fe.expr(n.Left); err != nil {
			return err
		}
		if err := fe.expr(n.Right); err != nil {
			return err
		}
		if isMat {
			fe.callImport("mat_pow")
		} else {
			fe.callImport("vec_pow")
		}
		return nil
	}
	if n.Op == "@" || n.Op == "#" {
		if err := fe.expr(n.Left); err != nil {
			return err
		}
		if err := fe.expr(n.Right); err != nil {
			return err
		}
		if n.Op == "@" {
			fe.vecDot()
		} else {
			fe.vecCross()
		}
		return nil
	}
	if n.Op == "*" && lt.Tag == types.Mat && rt.Tag == types.Vec {
		if err := fe.expr(n.Left); err != nil {
			return err
		}
		if err := fe.expr(n.Right); err != nil {
			return err
		}
		fe.matMulVec()
		return nil
	}
	if n.Op == "*" && lt.Tag == types.Mat && rt.Tag == types.Mat {
		if err := fe.expr(n.Left); err != nil {
			return err
		}
		if err := fe.expr(n.Right); err != nil {
			return err
		}
		fe.matMulMat()
		return nil
	}

	// Mat +/- Vec broadcasts the vector across every row; it has no
	// inline SIMD lowering of its own and stays a host helper
	// (spec.md §6.1), distinct from the matching-container and
	// scalar-broadcast paths below.
	if lt.Tag == types.Mat && rt.Tag == types.Vec && (n.Op == "+" || n.Op == "-") {
		if err := fe.expr(n.Left); err != nil {
			return err
		}
		if err := fe.expr(n.Right); err != nil {
			return err
		}
		if n.Op == "+" {
			fe.callImport("mat_add_vec_broadcast")
		} else {
			fe.callImport("mat_sub_vec_broadcast")
		}
		return nil
	}

	if lt.Tag == rt.Tag {
		if err := fe.expr(n.Left); err != nil {
			return err
		}
		if err := fe.expr(n.Right); err != nil {
			return err
		}
		fe.vecBinary(n.Op[0], isMat)
		return nil
	}

	// Mat+/-/÷scalar keep their host helpers (spec.md §6.1); every other
	// container-scalar combination (all Vec ops, and Mat*scalar) lowers
	// to the inline SIMD scalar-broadcast loop.
	containerExpr, scalarExpr := n.Left, n.Right
	if rt.Tag == types.Vec || rt.Tag == types.Mat {
		containerExpr, scalarExpr = n.Right, n.Left
	}
	if isMat && (n.Op == "+" || n.Op == "-" || n.Op == "/") {
		if err := fe.expr(containerExpr); err != nil {
			return err
		}
		// The scalar host helpers operate on the same flat f64 storage
		// as the container, so an Int scalar (e.g. `m + 2`) needs
		// converting, not bit-reinterpreting -- boxed back into the
		// i64 wire format the import expects.
		if err := fe.emitAsF64(scalarExpr); err != nil {
			return err
		}
		fe.fb.EmitOp(wasm.OpI64ReinterpretF64)
		fe.callImport(scalarImportFor(n.Op))
		return nil
	}

	if err := fe.expr(containerExpr); err != nil {
		return err
	}
	// scalarBroadcast consumes a raw f64, not a boxed i64 -- it splats
	// the scalar fresh into the inline loop rather than calling a host
	// helper.
	if err := fe.emitAsF64(scalarExpr); err != nil {
		return err
	}
	fe.scalarBroadcast(n.Op[0], isMat)
	return nil
}

func scalarImportFor(op string) string {
	switch op {
	case "+":
		return "mat_add_scalar"
	case "-":
		return "mat_sub_scalar"
	default:
		return "mat_div_scalar"
	}
}
