package codegen

import (
	"vela/internal/parser"
	"vela/internal/types"
	"vela/internal/wasm"
)

func (fe *fnEmitter) stmt(st parser.Stmt) error {
	switch n := st.(type) {
	case *parser.TypeDecl:
		idx := fe.fc.Locals[n.Name]
		fe.fb.EmitOp(wasm.OpI64Const)
		fe.fb.EmitS64(0)
		fe.fb.EmitOp(wasm.OpLocalSet)
		fe.fb.EmitU32(uint64(fe.localIdx(idx)))
		return nil
	case *parser.Assignment:
		return fe.assignment(n)
	case *parser.IfStmt:
		return fe.ifStmt(n)
	case *parser.ForStmt:
		return fe.forStmt(n)
	case *parser.Block:
		return fe.stmts(n.Statements)
	case *parser.ExprStmt:
		if _, err := fe.callFunc(n.Call); err != nil {
			return err
		}
		if !fe.isVoidCall(n.Call) {
			fe.fb.EmitOp(wasm.OpDrop)
		}
		return nil
	case *parser.MethodCallStmt:
		if err := fe.methodCall(n.Call); err != nil {
			return err
		}
		fe.fb.EmitOp(wasm.OpDrop)
		return nil
	case *parser.Return:
		return fe.returnStmt(n)
	case *parser.Break:
		return fe.branch(true)
	case *parser.Continue:
		return fe.branch(false)
	case *parser.TimerStmt:
		return fe.timerStmt(n)
	case *parser.FieldAssign:
		return fe.fieldAssign(n)
	case *parser.IndexAssign:
		return fe.indexAssign(n)
	}
	return codegenErr(st.Span(), "unsupported statement")
}

func (fe *fnEmitter) stmts(body []parser.Stmt) error {
	for _, s := range body {
		if err := fe.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

// assignment lowers both plain parallel assignment (targets[i] = values[i])
// and the single-Vec-to-many-targets destructuring form pre-scan already
// sized a save slot for (spec.md §4.7/§4.8.2).
func (fe *fnEmitter) assignment(n *parser.Assignment) error {
	if len(n.Values) == 1 && len(n.Targets) > 1 && fe.inferType(n.Values[0]) == types.TVec {
		return fe.destructure(n)
	}
	for i, target := range n.Targets {
		var v parser.Expr
		if i < len(n.Values) {
			v = n.Values[i]
		}
		if v == nil {
			continue
		}
		if err := fe.freeIfOwnedTableReassign(target, v); err != nil {
			return err
		}
		if err := fe.expr(v); err != nil {
			return err
		}
		idx, ok := fe.fc.Locals[target]
		if !ok {
			return codegenErr(n.Span(), "assignment to unknown local %q", target)
		}
		fe.fb.EmitOp(wasm.OpLocalSet)
		fe.fb.EmitU32(uint64(fe.localIdx(idx)))
	}
	return nil
}

// freeIfOwnedTableReassign frees the previous table handle held by target
// before it is overwritten, unless this is target's first assignment
// (nothing to free yet) -- approximated here by only freeing when target
// is already classified as an owned table and the new value is itself a
// fresh table-producing expression rather than a reference to target.
func (fe *fnEmitter) freeIfOwnedTableReassign(target string, v parser.Expr) error {
	if !fe.fc.OwnedTables[target] {
		return nil
	}
	if vv, ok := v.(*parser.Variable); ok && vv.Name == target {
		return nil
	}
	idx, ok := fe.fc.Locals[target]
	if !ok {
		return nil
	}
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(uint64(fe.localIdx(idx)))
	fe.callImport("table_free")
	return nil
}

func (fe *fnEmitter) destructure(n *parser.Assignment) error {
	saveSlot := fe.fc.NextDestructureSlot()
	if err := fe.expr(n.Values[0]); err != nil {
		return err
	}
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(uint64(fe.localIdx(saveSlot)))
	for i, target := range n.Targets {
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(uint64(fe.localIdx(saveSlot)))
		fe.fb.EmitOp(wasm.OpI64Const)
		fe.fb.EmitS64(int64(i))
		fe.callImport("vec_get")
		idx := fe.fc.Locals[target]
		fe.fb.EmitOp(wasm.OpLocalSet)
		fe.fb.EmitU32(uint64(fe.localIdx(idx)))
	}
	return nil
}

func (fe *fnEmitter) ifStmt(n *parser.IfStmt) error {
	if err := fe.boolExpr(n.Condition); err != nil {
		return err
	}
	fe.fb.EmitOp(wasm.OpIf)
	fe.fb.EmitByte(0x40)
	fe.blockDepth++
	if err := fe.stmts(n.Body); err != nil {
		return err
	}
	if len(n.ElseIfs) > 0 || len(n.Else) > 0 {
		fe.fb.EmitOp(wasm.OpElse)
		if err := fe.elseChain(n.ElseIfs, n.Else); err != nil {
			return err
		}
	}
	fe.fb.EmitOp(wasm.OpEnd)
	fe.blockDepth--
	return nil
}

// elseChain lowers a chain of `else if` clauses as nested `if` inside the
// enclosing else arm, terminating in the trailing bare `else` if present.
func (fe *fnEmitter) elseChain(elseIfs []parser.ElseIf, elseBody []parser.Stmt) error {
	if len(elseIfs) == 0 {
		return fe.stmts(elseBody)
	}
	head := elseIfs[0]
	if err := fe.boolExpr(head.Condition); err != nil {
		return err
	}
	fe.fb.EmitOp(wasm.OpIf)
	fe.fb.EmitByte(0x40)
	fe.blockDepth++
	if err := fe.stmts(head.Body); err != nil {
		return err
	}
	if len(elseIfs) > 1 || len(elseBody) > 0 {
		fe.fb.EmitOp(wasm.OpElse)
		if err := fe.elseChain(elseIfs[1:], elseBody); err != nil {
			return err
		}
	}
	fe.fb.EmitOp(wasm.OpEnd)
	fe.blockDepth--
	return nil
}

// forStmt lowers the C-style for loop as an outer block (break target)
// wrapping an inner loop (continue target), per spec.md §4.8.2.
func (fe *fnEmitter) forStmt(n *parser.ForStmt) error {
	if n.Init != nil {
		if err := fe.stmt(n.Init); err != nil {
			return err
		}
	}
	fe.fb.EmitOp(wasm.OpBlock)
	fe.fb.EmitByte(0x40)
	fe.blockDepth++
	breakDepth := fe.blockDepth

	fe.fb.EmitOp(wasm.OpLoop)
	fe.fb.EmitByte(0x40)
	fe.blockDepth++
	continueDepth := fe.blockDepth
	fe.loopStack = append(fe.loopStack, loopMarks{breakDepth: breakDepth, continueDepth: continueDepth})

	if n.Condition != nil {
		if err := fe.boolExpr(n.Condition); err != nil {
			return err
		}
		fe.fb.EmitOp(wasm.OpI32Eqz)
		fe.fb.EmitOp(wasm.OpBrIf)
		fe.fb.EmitU32(uint64(fe.blockDepth - breakDepth))
	}
	if err := fe.stmts(n.Body); err != nil {
		return err
	}
	if n.Step != nil {
		if err := fe.stmt(n.Step); err != nil {
			return err
		}
	}
	fe.fb.EmitOp(wasm.OpBr)
	fe.fb.EmitU32(uint64(fe.blockDepth - continueDepth))
	fe.fb.EmitOp(wasm.OpEnd) // loop
	fe.blockDepth--
	fe.fb.EmitOp(wasm.OpEnd) // block
	fe.blockDepth--
	fe.loopStack = fe.loopStack[:len(fe.loopStack)-1]
	return nil
}

func (fe *fnEmitter) branch(isBreak bool) error {
	if len(fe.loopStack) == 0 {
		return codegenErr(parser.Span{}, "break/continue outside a loop")
	}
	top := fe.loopStack[len(fe.loopStack)-1]
	target := top.continueDepth
	if isBreak {
		target = top.breakDepth
	}
	fe.fb.EmitOp(wasm.OpBr)
	fe.fb.EmitU32(uint64(fe.blockDepth - target))
	return nil
}

// returnStmt evaluates every value into its reserved save slot first, then
// frees every owned table not being transferred out by this very return,
// then reloads the saved values and emits `return` (spec.md §4.8.2).
func (fe *fnEmitter) returnStmt(n *parser.Return) error {
	group := fe.fc.NextReturnSaveGroup()
	transferred := map[string]bool{}
	for i, v := range n.Values {
		if err := fe.expr(v); err != nil {
			return err
		}
		fe.fb.EmitOp(wasm.OpLocalSet)
		fe.fb.EmitU32(uint64(fe.localIdx(group.Slots[i])))
		if vv, ok := v.(*parser.Variable); ok {
			transferred[vv.Name] = true
		}
	}
	names := make([]string, 0, len(fe.fc.OwnedTables))
	for name := range fe.fc.OwnedTables {
		names = append(names, name)
	}
	sortStrings(names)
	for _, name := range names {
		if transferred[name] {
			continue
		}
		idx := fe.fc.Locals[name]
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(uint64(fe.localIdx(idx)))
		fe.callImport("table_free")
	}
	for _, slot := range group.Slots {
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(uint64(fe.localIdx(slot)))
	}
	fe.fb.EmitOp(wasm.OpReturn)
	return nil
}

func (fe *fnEmitter) timerStmt(n *parser.TimerStmt) error {
	group := fe.fc.NextTimerGroup()
	fe.callImport("clock")
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(uint64(fe.localIdx(group.Slots[0])))
	if err := fe.stmts(n.Body); err != nil {
		return err
	}
	fe.callImport("clock")
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(uint64(fe.localIdx(group.Slots[1])))
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(uint64(fe.localIdx(group.Slots[1])))
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(uint64(fe.localIdx(group.Slots[0])))
	fe.fb.EmitOp(wasm.OpI64Sub)
	fe.callImport("print_timer")
	return nil
}

func (fe *fnEmitter) fieldAssign(n *parser.FieldAssign) error {
	idx, ok := fe.fc.Locals[n.ObjectName]
	if !ok {
		return codegenErr(n.Span(), "field assignment on unknown local %q", n.ObjectName)
	}
	key := fe.e.pool.Intern(n.Field).Packed()
	valType := fe.inferType(n.Value)
	if valType.Tag == types.TableTag {
		return codegenErr(n.Span(), "cannot assign a table to a field (%q)", n.Field)
	}
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(uint64(fe.localIdx(idx)))
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(int64(key))
	if err := fe.expr(n.Value); err != nil {
		return err
	}
	fe.callImport("table_set")
	return nil
}

// indexAssign covers `name[index] = value`. The grammar only ever gives a
// single bracket level at assignment position, and every index assignment,
// on a Vec or a Mat, calls vec_set with the index as a flat element
// offset; mat_set is not called.
func (fe *fnEmitter) indexAssign(n *parser.IndexAssign) error {
	idx, ok := fe.fc.Locals[n.ObjectName]
	if !ok {
		return codegenErr(n.Span(), "index assignment on unknown local %q", n.ObjectName)
	}
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(uint64(fe.localIdx(idx)))
	if err := fe.expr(n.Index); err != nil {
		return err
	}
	if err := fe.expr(n.Value); err != nil {
		return err
	}
	fe.callImport("vec_set")
	return nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
