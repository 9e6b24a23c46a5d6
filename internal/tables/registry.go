// Package tables implements the table-type registry and its post-closure
// fixup pass (spec.md §4.4): every TableLiteral is assigned a dense id and
// a field->type map, inferred from the literal's own entries using the
// variable types threaded through var-declarations; fixup then re-types
// closure-valued fields with the closure's return type.
package tables

import (
	"vela/internal/parser"
	"vela/internal/types"
)

type Descriptor struct {
	Fields map[string]types.Type
}

type pendingClosureField struct {
	tableID int
	field   string
	closure *parser.Closure
}

// Registry assigns ids by literal encounter order (depth-first, matching
// the parser's own traversal), and tracks a running variable->type map
// built as it walks declarations -- good enough for field typing since
// closures are not registered yet on the first walk.
type Registry struct {
	descriptors []*Descriptor
	vars        map[string]types.Type
	closureRT   map[int]types.Type // filled in between Assign and Fixup by the closure registry
	pending     []pendingClosureField
}

func New() *Registry {
	return &Registry{vars: make(map[string]types.Type)}
}

// SetClosureReturnTypes lets the closure registry publish return types
// before Fixup runs, satisfying the field-type re-inference spec.md §4.4
// requires for fields whose value was a closure.
func (r *Registry) SetClosureReturnTypes(m map[int]types.Type) {
	r.closureRT = m
}

func (r *Registry) TableFieldType(id int, field string) (types.Type, bool) {
	if id < 0 || id >= len(r.descriptors) {
		return types.TUnknown, false
	}
	t, ok := r.descriptors[id].Fields[field]
	return t, ok
}

func (r *Registry) Lookup(name string) (types.Type, bool) {
	t, ok := r.vars[name]
	return t, ok
}

func (r *Registry) FuncReturnType(string) (types.Type, bool) {
	return types.TUnknown, false
}

// Assign performs the first walk: assigns every TableLiteral a dense id
// and conservatively types its fields (closure-valued fields default to
// Int, per spec, since the closure registry has not run yet).
func (r *Registry) Assign(stmts []parser.Stmt) {
	for _, s := range stmts {
		r.assignStmt(s)
	}
}

func (r *Registry) assignStmt(s parser.Stmt) {
	switch n := s.(type) {
	case *parser.FuncDecl:
		for _, st := range n.Body {
			r.assignStmt(st)
		}
	case *parser.Assignment:
		for i, v := range n.Values {
			r.assignExpr(v)
			if i < len(n.Targets) {
				r.vars[n.Targets[i]] = r.typeOfAssignValue(v)
			}
		}
	case *parser.TypeDecl:
		r.vars[n.Name] = types.FromName(n.Type)
	case *parser.IfStmt:
		for _, st := range n.Body {
			r.assignStmt(st)
		}
		for _, ei := range n.ElseIfs {
			for _, st := range ei.Body {
				r.assignStmt(st)
			}
		}
		for _, st := range n.Else {
			r.assignStmt(st)
		}
	case *parser.ForStmt:
		if n.Init != nil {
			r.assignStmt(n.Init)
		}
		if n.Step != nil {
			r.assignStmt(n.Step)
		}
		for _, st := range n.Body {
			r.assignStmt(st)
		}
	case *parser.Block:
		for _, st := range n.Statements {
			r.assignStmt(st)
		}
	case *parser.ExprStmt:
		r.assignExpr(n.Call)
	case *parser.MethodCallStmt:
		r.assignExpr(n.Call)
	case *parser.Return:
		for _, v := range n.Values {
			r.assignExpr(v)
		}
	case *parser.TimerStmt:
		for _, st := range n.Body {
			r.assignStmt(st)
		}
	case *parser.FieldAssign:
		r.assignExpr(n.Value)
	case *parser.IndexAssign:
		r.assignExpr(n.Value)
	}
}

// typeOfAssignValue special-cases a closure value per spec.md §4.4: until
// the closure registry has run, any field (or variable) holding a closure
// literal is conservatively typed Int.
func (r *Registry) typeOfAssignValue(v parser.Expr) types.Type {
	if _, ok := v.(*parser.Closure); ok {
		return types.TInt
	}
	return types.Infer(v, r)
}

func (r *Registry) assignExpr(e parser.Expr) {
	switch n := e.(type) {
	case *parser.BinaryOp:
		r.assignExpr(n.Left)
		r.assignExpr(n.Right)
	case *parser.CallFunc:
		for _, a := range n.Args {
			r.assignExpr(a)
		}
	case *parser.Closure:
		for _, st := range n.Body {
			r.assignStmt(st)
		}
	case *parser.TableLiteral:
		n.ID = len(r.descriptors)
		desc := &Descriptor{Fields: make(map[string]types.Type)}
		for _, entry := range n.Entries {
			r.assignExpr(entry.Value)
			if cl, ok := entry.Value.(*parser.Closure); ok {
				desc.Fields[entry.Key] = types.TInt
				r.pending = append(r.pending, pendingClosureField{tableID: n.ID, field: entry.Key, closure: cl})
			} else {
				desc.Fields[entry.Key] = types.Infer(entry.Value, r)
			}
		}
		r.descriptors = append(r.descriptors, desc)
	case *parser.FieldAccess:
		r.assignExpr(n.Object)
	case *parser.IndexAccess:
		r.assignExpr(n.Object)
		r.assignExpr(n.Index)
	case *parser.MethodCall:
		r.assignExpr(n.Callee)
		for _, a := range n.Args {
			r.assignExpr(a)
		}
	case *parser.VecLiteral:
		for _, el := range n.Elements {
			r.assignExpr(el)
		}
	case *parser.MatLiteral:
		for _, row := range n.Rows {
			for _, el := range row {
				r.assignExpr(el)
			}
		}
	case *parser.Transpose:
		r.assignExpr(n.Operand)
	case *parser.Grouped:
		r.assignExpr(n.Inner)
	}
}

// Fixup re-types every field that was conservatively defaulted to Int
// because its value was a closure literal, now that the closure registry
// has assigned each closure an id and inferred its return type
// (spec.md §4.4). Must run after SetClosureReturnTypes.
func (r *Registry) Fixup() {
	for _, pf := range r.pending {
		if pf.closure.ID < 0 {
			continue
		}
		if rt, ok := r.closureRT[pf.closure.ID]; ok {
			r.descriptors[pf.tableID].Fields[pf.field] = rt
		}
	}
}
