// Package closures implements the closure registry (spec.md §4.5): a
// depth-first walk assigning every closure expression a dense id, a
// synthetic name, an indirect-call table slot equal to its id, and its
// free-variable capture set in deterministic lexicographic order.
package closures

import (
	"sort"
	"strconv"

	"github.com/samber/lo"

	"vela/internal/parser"
	"vela/internal/types"
)

var builtins = map[string]bool{"print": true, "input": true}

type Descriptor struct {
	SyntheticName      string
	FuncIndex          int // assigned later by the code emitter
	FuncTypeIndex      int // assigned later by the code emitter
	Captures           []string
	ExplicitParamCount int
	TableSlot          int
	ReturnType         types.Type
	Node               *parser.Closure
}

type Registry struct {
	descriptors []*Descriptor
	funcNames   map[string]bool
}

func New(funcNames map[string]bool) *Registry {
	return &Registry{funcNames: funcNames}
}

func (r *Registry) Descriptors() []*Descriptor { return r.descriptors }

// DescriptorByNode looks up a closure's descriptor by its AST node,
// available once Assign has run (the node's ID field is set at the same
// time its descriptor is appended).
func (r *Registry) DescriptorByNode(n *parser.Closure) (*Descriptor, bool) {
	if n.ID < 0 || n.ID >= len(r.descriptors) {
		return nil, false
	}
	return r.descriptors[n.ID], true
}

func (r *Registry) ReturnTypes() map[int]types.Type {
	out := make(map[int]types.Type, len(r.descriptors))
	for i, d := range r.descriptors {
		out[i] = d.ReturnType
	}
	return out
}

// Assign walks every statement depth-first, registering each Closure node
// encountered in source order (post-order within an expression so nested
// closures are registered -- and their capture sets available -- before
// the closure that contains them).
func (r *Registry) Assign(stmts []parser.Stmt) {
	for _, s := range stmts {
		r.walkStmt(s)
	}
}

func (r *Registry) walkStmt(s parser.Stmt) {
	switch n := s.(type) {
	case *parser.FuncDecl:
		for _, st := range n.Body {
			r.walkStmt(st)
		}
	case *parser.Assignment:
		for _, v := range n.Values {
			r.walkExpr(v)
		}
	case *parser.IfStmt:
		walkBoolForClosures(r, n.Condition)
		for _, st := range n.Body {
			r.walkStmt(st)
		}
		for _, ei := range n.ElseIfs {
			walkBoolForClosures(r, ei.Condition)
			for _, st := range ei.Body {
				r.walkStmt(st)
			}
		}
		for _, st := range n.Else {
			r.walkStmt(st)
		}
	case *parser.ForStmt:
		if n.Init != nil {
			r.walkStmt(n.Init)
		}
		if n.Condition != nil {
			walkBoolForClosures(r, n.Condition)
		}
		if n.Step != nil {
			r.walkStmt(n.Step)
		}
		for _, st := range n.Body {
			r.walkStmt(st)
		}
	case *parser.Block:
		for _, st := range n.Statements {
			r.walkStmt(st)
		}
	case *parser.ExprStmt:
		r.walkExpr(n.Call)
	case *parser.MethodCallStmt:
		r.walkExpr(n.Call)
	case *parser.Return:
		for _, v := range n.Values {
			r.walkExpr(v)
		}
	case *parser.TimerStmt:
		for _, st := range n.Body {
			r.walkStmt(st)
		}
	case *parser.FieldAssign:
		r.walkExpr(n.Value)
	case *parser.IndexAssign:
		r.walkExpr(n.Index)
		r.walkExpr(n.Value)
	}
}

func walkBoolForClosures(r *Registry, b parser.BoolNode) {
	switch n := b.(type) {
	case *parser.Comparison:
		r.walkExpr(n.Left)
		r.walkExpr(n.Right)
	case *parser.Logical:
		walkBoolForClosures(r, n.Left)
		walkBoolForClosures(r, n.Right)
	case *parser.BoolGrouped:
		walkBoolForClosures(r, n.Inner)
	}
}

func (r *Registry) walkExpr(e parser.Expr) {
	switch n := e.(type) {
	case *parser.BinaryOp:
		r.walkExpr(n.Left)
		r.walkExpr(n.Right)
	case *parser.CallFunc:
		for _, a := range n.Args {
			r.walkExpr(a)
		}
	case *parser.TableLiteral:
		for _, entry := range n.Entries {
			r.walkExpr(entry.Value)
		}
	case *parser.FieldAccess:
		r.walkExpr(n.Object)
	case *parser.IndexAccess:
		r.walkExpr(n.Object)
		r.walkExpr(n.Index)
	case *parser.MethodCall:
		r.walkExpr(n.Callee)
		for _, a := range n.Args {
			r.walkExpr(a)
		}
	case *parser.VecLiteral:
		for _, el := range n.Elements {
			r.walkExpr(el)
		}
	case *parser.MatLiteral:
		for _, row := range n.Rows {
			for _, el := range row {
				r.walkExpr(el)
			}
		}
	case *parser.Transpose:
		r.walkExpr(n.Operand)
	case *parser.Grouped:
		r.walkExpr(n.Inner)
	case *parser.Closure:
		r.register(n)
	}
}

func (r *Registry) register(n *parser.Closure) {
	for _, st := range n.Body {
		r.walkStmt(st)
	}

	refs := map[string]bool{}
	locals := map[string]bool{}
	for _, p := range n.Params {
		locals[p] = true
	}
	collectLocals(n.Body, locals)
	collectRefs(n.Body, refs)

	captureSet := map[string]bool{}
	for name := range refs {
		if locals[name] || r.funcNames[name] || builtins[name] {
			continue
		}
		captureSet[name] = true
	}
	captures := lo.Keys(captureSet)
	sort.Strings(captures)

	id := len(r.descriptors)
	n.ID = id
	desc := &Descriptor{
		SyntheticName:      "__closure_" + strconv.Itoa(id),
		FuncIndex:          -1,
		FuncTypeIndex:      -1,
		Captures:           captures,
		ExplicitParamCount: len(n.Params),
		TableSlot:          id,
		ReturnType:         inferReturnType(n.Body),
		Node:               n,
	}
	r.descriptors = append(r.descriptors, desc)
}

func inferReturnType(body []parser.Stmt) types.Type {
	t, ok := findReturn(body)
	if !ok {
		return types.TInt
	}
	return t
}

func findReturn(body []parser.Stmt) (types.Type, bool) {
	for _, s := range body {
		switch n := s.(type) {
		case *parser.Return:
			if len(n.Values) == 0 {
				return types.TInt, true
			}
			return types.Infer(n.Values[0], emptyEnv{}), true
		case *parser.IfStmt:
			if t, ok := findReturn(n.Body); ok {
				return t, ok
			}
			for _, ei := range n.ElseIfs {
				if t, ok := findReturn(ei.Body); ok {
					return t, ok
				}
			}
			if t, ok := findReturn(n.Else); ok {
				return t, ok
			}
		case *parser.ForStmt:
			if t, ok := findReturn(n.Body); ok {
				return t, ok
			}
		case *parser.Block:
			if t, ok := findReturn(n.Statements); ok {
				return t, ok
			}
		case *parser.TimerStmt:
			if t, ok := findReturn(n.Body); ok {
				return t, ok
			}
		}
	}
	return types.TUnknown, false
}

type emptyEnv struct{}

func (emptyEnv) Lookup(string) (types.Type, bool)              { return types.TUnknown, false }
func (emptyEnv) FuncReturnType(string) (types.Type, bool)       { return types.TUnknown, false }
func (emptyEnv) TableFieldType(int, string) (types.Type, bool)  { return types.TUnknown, false }

// collectLocals gathers every name declared (assignment or type-decl
// target, for-loop induction variable) anywhere in body, flattened
// without flow sensitivity -- an over-approximation acceptable because
// the only use is exclusion from the capture set.
func collectLocals(body []parser.Stmt, out map[string]bool) {
	for _, s := range body {
		switch n := s.(type) {
		case *parser.Assignment:
			for _, t := range n.Targets {
				out[t] = true
			}
		case *parser.TypeDecl:
			out[n.Name] = true
		case *parser.IfStmt:
			collectLocals(n.Body, out)
			for _, ei := range n.ElseIfs {
				collectLocals(ei.Body, out)
			}
			collectLocals(n.Else, out)
		case *parser.ForStmt:
			if n.Init != nil {
				collectLocals([]parser.Stmt{n.Init}, out)
			}
			if n.Step != nil {
				collectLocals([]parser.Stmt{n.Step}, out)
			}
			collectLocals(n.Body, out)
		case *parser.Block:
			collectLocals(n.Statements, out)
		case *parser.TimerStmt:
			collectLocals(n.Body, out)
		}
	}
}

// collectRefs gathers every Variable read anywhere in body, recursing
// into nested closures' raw bodies too (a nested closure's free
// reference to an outer name still requires the outer closure to capture
// it on the enclosing name's behalf).
func collectRefs(body []parser.Stmt, out map[string]bool) {
	for _, s := range body {
		refsInStmt(s, out)
	}
}

func refsInStmt(s parser.Stmt, out map[string]bool) {
	switch n := s.(type) {
	case *parser.Assignment:
		for _, v := range n.Values {
			refsInExpr(v, out)
		}
	case *parser.IfStmt:
		refsInBool(n.Condition, out)
		collectRefs(n.Body, out)
		for _, ei := range n.ElseIfs {
			refsInBool(ei.Condition, out)
			collectRefs(ei.Body, out)
		}
		collectRefs(n.Else, out)
	case *parser.ForStmt:
		if n.Init != nil {
			refsInStmt(n.Init, out)
		}
		if n.Condition != nil {
			refsInBool(n.Condition, out)
		}
		if n.Step != nil {
			refsInStmt(n.Step, out)
		}
		collectRefs(n.Body, out)
	case *parser.Block:
		collectRefs(n.Statements, out)
	case *parser.ExprStmt:
		refsInExpr(n.Call, out)
	case *parser.MethodCallStmt:
		refsInExpr(n.Call, out)
	case *parser.Return:
		for _, v := range n.Values {
			refsInExpr(v, out)
		}
	case *parser.TimerStmt:
		collectRefs(n.Body, out)
	case *parser.FieldAssign:
		out[n.ObjectName] = true
		refsInExpr(n.Value, out)
	case *parser.IndexAssign:
		out[n.ObjectName] = true
		refsInExpr(n.Index, out)
		refsInExpr(n.Value, out)
	}
}

func refsInBool(b parser.BoolNode, out map[string]bool) {
	switch n := b.(type) {
	case *parser.Comparison:
		refsInExpr(n.Left, out)
		refsInExpr(n.Right, out)
	case *parser.Logical:
		refsInBool(n.Left, out)
		refsInBool(n.Right, out)
	case *parser.BoolGrouped:
		refsInBool(n.Inner, out)
	}
}

func refsInExpr(e parser.Expr, out map[string]bool) {
	switch n := e.(type) {
	case *parser.Variable:
		out[n.Name] = true
	case *parser.UnaryOp:
		out[n.Name] = true
	case *parser.BinaryOp:
		refsInExpr(n.Left, out)
		refsInExpr(n.Right, out)
	case *parser.CallFunc:
		for _, a := range n.Args {
			refsInExpr(a, out)
		}
	case *parser.Closure:
		collectRefs(n.Body, out)
	case *parser.TableLiteral:
		for _, entry := range n.Entries {
			refsInExpr(entry.Value, out)
		}
	case *parser.FieldAccess:
		refsInExpr(n.Object, out)
	case *parser.IndexAccess:
		refsInExpr(n.Object, out)
		refsInExpr(n.Index, out)
	case *parser.MethodCall:
		refsInExpr(n.Callee, out)
		for _, a := range n.Args {
			refsInExpr(a, out)
		}
	case *parser.VecLiteral:
		for _, el := range n.Elements {
			refsInExpr(el, out)
		}
	case *parser.MatLiteral:
		for _, row := range n.Rows {
			for _, el := range row {
				refsInExpr(el, out)
			}
		}
	case *parser.Transpose:
		refsInExpr(n.Operand, out)
	case *parser.Grouped:
		refsInExpr(n.Inner, out)
	case *parser.BooleanExpr:
		refsInBool(n.Inner, out)
	}
}
