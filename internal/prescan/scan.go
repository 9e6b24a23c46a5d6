package prescan

import (
	"vela/internal/parser"
	"vela/internal/types"
)

// Scan performs the pre-scan pass over one function body (spec.md §4.7).
func Scan(env *ModuleEnv, params []parser.Param, body []parser.Stmt) *FuncCtx {
	fc := newFuncCtx(env, params)
	for _, p := range params {
		fc.Locals[p.Name] = len(fc.LocalTypes)
		fc.LocalTypes = append(fc.LocalTypes, types.FromName(p.Type))
	}
	fc.NumParams = len(fc.LocalTypes)
	fc.SIMDBase = len(fc.LocalTypes)
	for i := 0; i < SIMDHelperSlots; i++ {
		fc.allocTemp(types.TFloat)
	}
	s := &scanner{fc: fc}
	for _, st := range body {
		s.stmt(st)
	}
	for name := range fc.CapturedTables {
		delete(fc.OwnedTables, name)
	}
	return fc
}

type scanner struct {
	fc *FuncCtx
}

func (s *scanner) stmt(st parser.Stmt) {
	switch n := st.(type) {
	case *parser.TypeDecl:
		s.fc.AllocLocal(n.Name, types.FromName(n.Type))
	case *parser.Assignment:
		s.assignment(n)
	case *parser.IfStmt:
		s.boolExpr(n.Condition)
		for _, st2 := range n.Body {
			s.stmt(st2)
		}
		for _, ei := range n.ElseIfs {
			s.boolExpr(ei.Condition)
			for _, st2 := range ei.Body {
				s.stmt(st2)
			}
		}
		for _, st2 := range n.Else {
			s.stmt(st2)
		}
	case *parser.ForStmt:
		if n.Init != nil {
			s.stmt(n.Init)
		}
		if n.Condition != nil {
			s.boolExpr(n.Condition)
		}
		for _, st2 := range n.Body {
			s.stmt(st2)
		}
		if n.Step != nil {
			s.stmt(n.Step)
		}
	case *parser.Block:
		for _, st2 := range n.Statements {
			s.stmt(st2)
		}
	case *parser.ExprStmt:
		s.expr(n.Call)
	case *parser.MethodCallStmt:
		s.expr(n.Call)
	case *parser.Return:
		for _, v := range n.Values {
			s.expr(v)
		}
		valTypes := make([]types.Type, len(n.Values))
		for i, v := range n.Values {
			valTypes[i] = s.inferType(v)
		}
		group := TempGroup{}
		for _, t := range valTypes {
			group.Slots = append(group.Slots, s.fc.allocTemp(t))
		}
		s.fc.ReturnSaveGroups = append(s.fc.ReturnSaveGroups, group)
	case *parser.TimerStmt:
		s.fc.TimerGroups = append(s.fc.TimerGroups, s.fc.allocGroup(2, types.TInt))
		for _, st2 := range n.Body {
			s.stmt(st2)
		}
	case *parser.FieldAssign:
		s.expr(n.Value)
	case *parser.IndexAssign:
		s.expr(n.Index)
		s.expr(n.Value)
	}
}

func (s *scanner) assignment(n *parser.Assignment) {
	for _, v := range n.Values {
		s.expr(v)
	}
	if len(n.Values) == 1 && len(n.Targets) > 1 && s.inferType(n.Values[0]) == types.TVec {
		s.fc.DestructureSlots = append(s.fc.DestructureSlots, s.fc.allocTemp(types.TVec))
		for _, target := range n.Targets {
			s.fc.AllocLocal(target, types.TFloat)
		}
		return
	}
	for i, target := range n.Targets {
		var t types.Type
		if i < len(n.Values) {
			t = s.inferType(n.Values[i])
		} else {
			t = types.TUnknown
		}
		s.fc.AllocLocal(target, t)
		if t.Tag == types.TableTag && !s.fc.ParamNames[target] {
			s.fc.OwnedTables[target] = true
		}
	}
}

func (s *scanner) inferType(e parser.Expr) types.Type {
	return types.Infer(e, s.fc)
}

func (s *scanner) boolExpr(b parser.BoolNode) {
	switch n := b.(type) {
	case *parser.Comparison:
		s.expr(n.Left)
		s.expr(n.Right)
	case *parser.Logical:
		s.boolExpr(n.Left)
		s.boolExpr(n.Right)
	case *parser.BoolGrouped:
		s.boolExpr(n.Inner)
	}
}

func (s *scanner) expr(e parser.Expr) {
	switch n := e.(type) {
	case *parser.BinaryOp:
		s.expr(n.Left)
		s.expr(n.Right)
		if n.Op == "^" && s.inferType(n.Left) == types.TInt {
			s.fc.PowerGroups = append(s.fc.PowerGroups, s.fc.allocGroup(3, types.TInt))
		}
	case *parser.CallFunc:
		for _, a := range n.Args {
			s.expr(a)
		}
	case *parser.Closure:
		if t, ok := s.fc.env.Closures.DescriptorByNode(n); ok {
			for _, name := range t.Captures {
				s.fc.CapturedTables[name] = true
			}
			if len(t.Captures) > 0 {
				s.fc.ClosureEnvSlots = append(s.fc.ClosureEnvSlots, s.fc.allocTemp(types.TInt))
			}
		}
	case *parser.TableLiteral:
		for _, entry := range n.Entries {
			s.expr(entry.Value)
		}
		s.fc.TableHandleSlots = append(s.fc.TableHandleSlots, s.fc.allocTemp(types.Table(n.ID)))
	case *parser.FieldAccess:
		s.expr(n.Object)
	case *parser.IndexAccess:
		s.expr(n.Object)
		s.expr(n.Index)
	case *parser.MethodCall:
		s.expr(n.Callee)
		for _, a := range n.Args {
			s.expr(a)
		}
		if len(n.Args) >= 1 {
			group := TempGroup{}
			for i := 0; i < len(n.Args)+1; i++ {
				group.Slots = append(group.Slots, s.fc.allocTemp(types.TInt))
			}
			s.fc.ClosureCallGroups = append(s.fc.ClosureCallGroups, group)
		}
	case *parser.VecLiteral:
		for _, el := range n.Elements {
			s.expr(el)
		}
		s.fc.VecBaseSlots = append(s.fc.VecBaseSlots, s.fc.allocTemp(types.TInt))
	case *parser.MatLiteral:
		for _, row := range n.Rows {
			for _, el := range row {
				s.expr(el)
			}
		}
		s.fc.MatBaseSlots = append(s.fc.MatBaseSlots, s.fc.allocTemp(types.TInt))
	case *parser.Transpose:
		s.expr(n.Operand)
	case *parser.Grouped:
		s.expr(n.Inner)
	case *parser.BooleanExpr:
		s.boolExpr(n.Inner)
	}
}
