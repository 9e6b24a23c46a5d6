package codegen

import (
	"vela/internal/parser"
	"vela/internal/types"
	"vela/internal/wasm"
)

// callFunc lowers a bare `name(args)` call: one of the small set of
// builtins with bespoke lowering, or a call to a declared function
// (spec.md §4.8.3, §6.1).
func (fe *fnEmitter) callFunc(n *parser.CallFunc) (types.Type, error) {
	switch n.Name {
	case "print":
		return types.TUnknown, fe.emitPrint(n)
	case "input":
		fe.callImport("input")
		return types.TStr, nil
	case "random":
		if err := fe.evalArgs(n.Args); err != nil {
			return types.TUnknown, err
		}
		fe.callImport("random")
		return types.TInt, nil
	case "clock":
		fe.callImport("clock")
		return types.TInt, nil
	case "dot":
		if err := fe.evalArgs(n.Args); err != nil {
			return types.TUnknown, err
		}
		fe.vecDot()
		return types.TFloat, nil
	case "cross":
		if err := fe.evalArgs(n.Args); err != nil {
			return types.TUnknown, err
		}
		fe.vecCross()
		return types.TVec, nil
	}

	if fd, ok := fe.e.funcDecls[n.Name]; ok {
		if err := fe.evalArgs(n.Args); err != nil {
			return types.TUnknown, err
		}
		fe.fb.EmitOp(wasm.OpCall)
		fe.fb.EmitU32(uint64(fe.e.funcIndex[n.Name]))
		if len(fd.ReturnTypes) > 0 {
			return types.FromName(fd.ReturnTypes[0]), nil
		}
		return types.TUnknown, nil
	}
	return types.TUnknown, codegenErr(n.Span(), "call to unknown function %q", n.Name)
}

func (fe *fnEmitter) evalArgs(args []parser.Expr) error {
	for _, a := range args {
		if err := fe.expr(a); err != nil {
			return err
		}
	}
	return nil
}

// emitPrint dispatches `print(x)` to the right typed host import
// (spec.md §6.1); every print_* import is void, so nothing is pushed.
func (fe *fnEmitter) emitPrint(n *parser.CallFunc) error {
	if len(n.Args) != 1 {
		return codegenErr(n.Span(), "print takes exactly one argument")
	}
	arg := n.Args[0]
	t := fe.inferType(arg)
	if err := fe.expr(arg); err != nil {
		return err
	}
	switch t.Tag {
	case types.Str:
		fe.callImport("print_str")
	case types.Float:
		fe.callImport("print_float")
	case types.Vec:
		fe.callImport("print_vec")
	case types.Mat:
		fe.callImport("print_mat")
	default:
		fe.callImport("print")
	}
	return nil
}

// isVoidCall reports whether a top-level CallFunc statement produces no
// value, so the statement lowering can skip the usual result-drop.
func (fe *fnEmitter) isVoidCall(n *parser.CallFunc) bool {
	return n.Name == "print"
}

// closureExpr constructs a closure value: a table slot paired with a
// heap-allocated capture environment, or a bare table slot (env_ptr 0)
// when nothing is captured (spec.md §4.8.4).
func (fe *fnEmitter) closureExpr(n *parser.Closure) error {
	d, ok := fe.e.closures.DescriptorByNode(n)
	if !ok {
		return codegenErr(n.Span(), "closure was not registered")
	}
	if len(d.Captures) == 0 {
		fe.fb.EmitOp(wasm.OpI64Const)
		fe.fb.EmitS64(int64(d.TableSlot) << 32)
		return nil
	}

	envSlot := uint64(fe.localIdx(fe.fc.NextClosureEnvSlot()))
	fe.bumpAlloc(envSlot, func() {
		fe.fb.EmitOp(wasm.OpI32Const)
		fe.fb.EmitS64(int64(len(d.Captures) * 8))
	})

	for i, name := range d.Captures {
		idx, ok := fe.fc.Locals[name]
		if !ok {
			continue
		}
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(envSlot)
		fe.fb.EmitOp(wasm.OpI32WrapI64)
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(uint64(fe.localIdx(idx)))
		fe.fb.EmitOp(wasm.OpI64Store)
		fe.fb.EmitU32(3)
		fe.fb.EmitU32(uint64(i * 8))
	}

	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(int64(d.TableSlot) << 32)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(envSlot)
	fe.fb.EmitOp(wasm.OpI64Or)
	return nil
}

func (fe *fnEmitter) tableLiteral(n *parser.TableLiteral) error {
	handleSlot := uint64(fe.localIdx(fe.fc.NextTableHandleSlot()))
	fe.callImport("table_new")
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(handleSlot)

	for _, entry := range n.Entries {
		key := fe.e.pool.Intern(entry.Key).Packed()
		valType := fe.inferType(entry.Value)
		importName := "table_set"
		if valType.Tag == types.TableTag {
			importName = "table_set_table"
		}
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(handleSlot)
		fe.fb.EmitOp(wasm.OpI64Const)
		fe.fb.EmitS64(int64(key))
		if err := fe.expr(entry.Value); err != nil {
			return err
		}
		fe.callImport(importName)
	}

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(handleSlot)
	return nil
}

// fieldAccess dispatches `.field` per the inferencer's own field
// semantics (types.inferFieldAccess): Mat exposes T/inv/det/rows/cols,
// Vec exposes len and swizzle groups, and everything else is a table
// field read (spec.md §4.8.3). rows/cols/len are bit-extracted from the
// packed representation inline; T is an inline transpose; inv/det still
// defer to the host (spec.md §6.1 keeps both in the ABI).
func (fe *fnEmitter) fieldAccess(n *parser.FieldAccess) error {
	objType := fe.inferType(n.Object)
	switch objType.Tag {
	case types.Mat:
		if err := fe.expr(n.Object); err != nil {
			return err
		}
		switch n.Field {
		case "T":
			fe.matTranspose()
		case "inv":
			fe.callImport("mat_inv")
		case "det":
			fe.callImport("mat_det")
		case "rows":
			fe.matRows()
		case "cols":
			fe.matCols()
		default:
			return codegenErr(n.Span(), "unknown mat field %q", n.Field)
		}
		return nil
	case types.Vec:
		if err := fe.expr(n.Object); err != nil {
			return err
		}
		if n.Field == "len" {
			fe.vecLen()
			return nil
		}
		if len(n.Field) == 1 {
			fe.vecSingleSwizzle(swizzleLaneIndex(n.Field[0]))
			return nil
		}
		fe.fb.EmitOp(wasm.OpI64Const)
		fe.fb.EmitS64(swizzlePattern(n.Field))
		fe.callImport("vec_swizzle")
		return nil
	default:
		if err := fe.expr(n.Object); err != nil {
			return err
		}
		fe.fb.EmitOp(wasm.OpI64Const)
		fe.fb.EmitS64(int64(fe.e.pool.Intern(n.Field).Packed()))
		fe.callImport("table_get")
		return nil
	}
}

// matRows/matCols extract rows/cols straight out of a Mat's packed low 32
// bits (rows<<16|cols), already on the stack (spec.md §4.8.3).
func (fe *fnEmitter) matRows() {
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(0xffff0000)
	fe.fb.EmitOp(wasm.OpI64And)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(16)
	fe.fb.EmitOp(wasm.OpI64ShrU)
}

func (fe *fnEmitter) matCols() {
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(0xffff)
	fe.fb.EmitOp(wasm.OpI64And)
}

// vecLen extracts a Vec's length straight out of its packed low 32 bits,
// already on the stack.
func (fe *fnEmitter) vecLen() {
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(0xffffffff)
	fe.fb.EmitOp(wasm.OpI64And)
}

// vecSingleSwizzle loads one lane directly from the Vec's flat f64
// storage -- a single-character field (one of xyzw/rgba) never needs the
// vec_swizzle host helper (spec.md §4.6, §4.8.3).
func (fe *fnEmitter) vecSingleSwizzle(idx int) {
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(32)
	fe.fb.EmitOp(wasm.OpI64ShrU)
	fe.fb.EmitOp(wasm.OpI32WrapI64)
	fe.fb.EmitOp(wasm.OpF64Load)
	fe.fb.EmitU32(3)
	fe.fb.EmitU32(uint64(idx * 8))
	fe.fb.EmitOp(wasm.OpI64ReinterpretF64)
}

// swizzleLaneIndex maps a swizzle character to its 0-3 lane index; the
// xyzw and rgba groups alias the same four lanes.
func swizzleLaneIndex(c byte) int {
	switch c {
	case 'x', 'r':
		return 0
	case 'y', 'g':
		return 1
	case 'z', 'b':
		return 2
	default:
		return 3
	}
}

// swizzlePattern bit-encodes a multi-character swizzle field for the
// vec_swizzle host helper: low 4 bits are the character count, then 4
// bits per lane index (spec.md §4.8.3) -- not a string-pool reference,
// since the host has no way to decode a swizzle pattern from a pointer.
func swizzlePattern(field string) int64 {
	pattern := int64(len(field))
	for i := 0; i < len(field) && i < 4; i++ {
		pattern |= int64(swizzleLaneIndex(field[i])) << uint(4+4*i)
	}
	return pattern
}

// indexAccess covers element access, slicing, masking and the `m[i][j]`
// double-index matrix read (spec.md §4.8.3).
func (fe *fnEmitter) indexAccess(n *parser.IndexAccess) error {
	objType := fe.inferType(n.Object)

	switch idx := n.Index.(type) {
	case *parser.Range:
		importName := "vec_slice"
		if objType.Tag == types.Mat {
			importName = "mat_slice"
		}
		if err := fe.expr(n.Object); err != nil {
			return err
		}
		if idx.Start != nil {
			if err := fe.expr(idx.Start); err != nil {
				return err
			}
		} else {
			fe.fb.EmitOp(wasm.OpI64Const)
			fe.fb.EmitS64(0)
		}
		if idx.End != nil {
			if err := fe.expr(idx.End); err != nil {
				return err
			}
		} else {
			fe.fb.EmitOp(wasm.OpI64Const)
			fe.fb.EmitS64(-1)
		}
		fe.callImport(importName)
		return nil
	case *parser.BooleanExpr:
		importName := "vec_mask"
		if objType.Tag == types.Mat {
			importName = "mat_mask"
		}
		if err := fe.expr(n.Object); err != nil {
			return err
		}
		if err := fe.boolExpr(idx.Inner); err != nil {
			return err
		}
		fe.fb.EmitOp(wasm.OpI64ExtendI32U)
		fe.callImport(importName)
		return nil
	}

	if objType.Tag == types.Mat {
		if inner, ok := n.Object.(*parser.IndexAccess); ok {
			if !isRangeOrMask(inner.Index) {
				if err := fe.expr(inner.Object); err != nil {
					return err
				}
				if err := fe.expr(inner.Index); err != nil {
					return err
				}
				if err := fe.expr(n.Index); err != nil {
					return err
				}
				fe.callImport("mat_get")
				return nil
			}
		}
		if fe.inferType(n.Index) == types.TVec {
			if err := fe.expr(n.Object); err != nil {
				return err
			}
			if err := fe.expr(n.Index); err != nil {
				return err
			}
			fe.callImport("mat_fancy_index")
			return nil
		}
		if err := fe.expr(n.Object); err != nil {
			return err
		}
		if err := fe.expr(n.Index); err != nil {
			return err
		}
		fe.callImport("mat_fancy_index")
		return nil
	}

	if fe.inferType(n.Index) == types.TVec {
		if err := fe.expr(n.Object); err != nil {
			return err
		}
		if err := fe.expr(n.Index); err != nil {
			return err
		}
		fe.callImport("vec_fancy_index")
		return nil
	}
	if err := fe.expr(n.Object); err != nil {
		return err
	}
	if err := fe.expr(n.Index); err != nil {
		return err
	}
	fe.callImport("vec_get")
	return nil
}

func isRangeOrMask(e parser.Expr) bool {
	switch e.(type) {
	case *parser.Range, *parser.BooleanExpr:
		return true
	}
	return false
}

// methodCall dispatches a closure stored behind a postfix chain (e.g. a
// table field) through the indirect-call table (spec.md §4.8.3/§6.4). A
// zero-arg call has no pre-scanned temp group, so it borrows the first
// SIMD scratch slot instead -- safe, since no inline SIMD sequence is ever
// mid-flight at a call site.
func (fe *fnEmitter) methodCall(n *parser.MethodCall) error {
	if err := fe.expr(n.Callee); err != nil {
		return err
	}

	var closureSlot int
	var argSlots []int
	if len(n.Args) >= 1 {
		group := fe.fc.NextClosureCallGroup()
		closureSlot = group.Slots[0]
		argSlots = group.Slots[1:]
	} else {
		closureSlot = fe.fc.SIMDSlot(0)
	}
	cs := uint64(fe.localIdx(closureSlot))
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(cs)

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(cs)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(0xffffffff)
	fe.fb.EmitOp(wasm.OpI64And)
	fe.fb.EmitOp(wasm.OpI32WrapI64)

	for i, a := range n.Args {
		if err := fe.expr(a); err != nil {
			return err
		}
		fe.fb.EmitOp(wasm.OpLocalSet)
		fe.fb.EmitU32(uint64(fe.localIdx(argSlots[i])))
	}
	for i := range n.Args {
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(uint64(fe.localIdx(argSlots[i])))
	}

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(cs)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(32)
	fe.fb.EmitOp(wasm.OpI64ShrU)
	fe.fb.EmitOp(wasm.OpI32WrapI64)

	params := make([]wasm.ValType, 0, len(n.Args)+1)
	params = append(params, wasm.ValI32)
	for range n.Args {
		params = append(params, wasm.ValI64)
	}
	typeIdx := fe.e.b.TypeIndex(wasm.FuncSig{Params: params, Results: []wasm.ValType{wasm.ValI64}})
	fe.fb.EmitOp(wasm.OpCallIndirect)
	fe.fb.EmitU32(uint64(typeIdx))
	fe.fb.EmitU32(0)
	return nil
}

// emitAsF64 lowers e and leaves an unboxed f64 on the stack: a Float
// operand is reinterpreted from its boxed bit pattern, anything else
// (Int, Unknown) is converted from its boxed integer value -- vec/mat
// storage is always a flat f64 buffer regardless of each element's own
// literal form (spec.md §3 Vec/Mat representation).
func (fe *fnEmitter) emitAsF64(e parser.Expr) error {
	t := fe.inferType(e)
	if err := fe.expr(e); err != nil {
		return err
	}
	if t.Tag == types.Float {
		fe.fb.EmitOp(wasm.OpF64ReinterpretI64)
	} else {
		fe.fb.EmitOp(wasm.OpF64ConvertI64S)
	}
	return nil
}

func (fe *fnEmitter) vecLiteral(n *parser.VecLiteral) error {
	baseSlot := uint64(fe.localIdx(fe.fc.NextVecBaseSlot()))
	size := int64(len(n.Elements) * 8)
	fe.bumpAlloc(baseSlot, func() {
		fe.fb.EmitOp(wasm.OpI32Const)
		fe.fb.EmitS64(size)
	})

	for i, el := range n.Elements {
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(baseSlot)
		fe.fb.EmitOp(wasm.OpI32WrapI64)
		if err := fe.emitAsF64(el); err != nil {
			return err
		}
		fe.fb.EmitOp(wasm.OpF64Store)
		fe.fb.EmitU32(3)
		fe.fb.EmitU32(uint64(i * 8))
	}

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(baseSlot)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(32)
	fe.fb.EmitOp(wasm.OpI64Shl)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(int64(len(n.Elements)))
	fe.fb.EmitOp(wasm.OpI64Or)
	return nil
}

func (fe *fnEmitter) matLiteral(n *parser.MatLiteral) error {
	total := 0
	for _, row := range n.Rows {
		total += len(row)
	}
	rows := len(n.Rows)
	cols := 0
	if rows > 0 {
		cols = len(n.Rows[0])
	}
	baseSlot := uint64(fe.localIdx(fe.fc.NextMatBaseSlot()))
	size := int64(total * 8)
	fe.bumpAlloc(baseSlot, func() {
		fe.fb.EmitOp(wasm.OpI32Const)
		fe.fb.EmitS64(size)
	})

	i := 0
	for _, row := range n.Rows {
		for _, el := range row {
			fe.fb.EmitOp(wasm.OpLocalGet)
			fe.fb.EmitU32(baseSlot)
			fe.fb.EmitOp(wasm.OpI32WrapI64)
			if err := fe.emitAsF64(el); err != nil {
				return err
			}
			fe.fb.EmitOp(wasm.OpF64Store)
			fe.fb.EmitU32(3)
			fe.fb.EmitU32(uint64(i * 8))
			i++
		}
	}

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(baseSlot)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(32)
	fe.fb.EmitOp(wasm.OpI64Shl)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(int64(rows<<16 | cols))
	fe.fb.EmitOp(wasm.OpI64Or)
	return nil
}
