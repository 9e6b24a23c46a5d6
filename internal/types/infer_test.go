package types

import (
	"testing"

	"vela/internal/parser"
)

type fakeEnv struct {
	vars    map[string]Type
	funcs   map[string]Type
	fields  map[int]map[string]Type
}

func (f fakeEnv) Lookup(name string) (Type, bool) {
	t, ok := f.vars[name]
	return t, ok
}

func (f fakeEnv) FuncReturnType(name string) (Type, bool) {
	t, ok := f.funcs[name]
	return t, ok
}

func (f fakeEnv) TableFieldType(id int, field string) (Type, bool) {
	m, ok := f.fields[id]
	if !ok {
		return TUnknown, false
	}
	t, ok := m[field]
	return t, ok
}

func newEnv() fakeEnv {
	return fakeEnv{vars: map[string]Type{}, funcs: map[string]Type{}, fields: map[int]map[string]Type{}}
}

func TestInferNumberLiteral(t *testing.T) {
	env := newEnv()
	if got := Infer(&parser.Number{Text: "42"}, env); got != TInt {
		t.Errorf("expected int, got %v", got)
	}
	if got := Infer(&parser.Number{Text: "4.2"}, env); got != TFloat {
		t.Errorf("expected float, got %v", got)
	}
}

func TestInferBinaryAdd(t *testing.T) {
	env := newEnv()
	add := &parser.BinaryOp{Op: "+", Left: &parser.Number{Text: "1"}, Right: &parser.String{Text: "x"}}
	if got := Infer(add, env); got != TStr {
		t.Errorf("expected str when either side is str, got %v", got)
	}
}

func TestInferMatVecMultiply(t *testing.T) {
	env := newEnv()
	mul := &parser.BinaryOp{Op: "*", Left: &parser.MatLiteral{}, Right: &parser.VecLiteral{}}
	if got := Infer(mul, env); got != TVec {
		t.Errorf("expected vec for mat*vec, got %v", got)
	}
}

func TestInferDotAndCross(t *testing.T) {
	env := newEnv()
	dot := &parser.BinaryOp{Op: "@", Left: &parser.VecLiteral{}, Right: &parser.VecLiteral{}}
	if got := Infer(dot, env); got != TFloat {
		t.Errorf("expected float for dot product, got %v", got)
	}
	cross := &parser.BinaryOp{Op: "#", Left: &parser.VecLiteral{}, Right: &parser.VecLiteral{}}
	if got := Infer(cross, env); got != TVec {
		t.Errorf("expected vec for cross product, got %v", got)
	}
}

func TestInferVecSwizzle(t *testing.T) {
	env := newEnv()
	env.vars["v"] = TVec
	single := &parser.FieldAccess{Object: &parser.Variable{Name: "v"}, Field: "x"}
	if got := Infer(single, env); got != TFloat {
		t.Errorf("expected float for single-char swizzle, got %v", got)
	}
	multi := &parser.FieldAccess{Object: &parser.Variable{Name: "v"}, Field: "xy"}
	if got := Infer(multi, env); got != TVec {
		t.Errorf("expected vec for multi-char swizzle, got %v", got)
	}
}

func TestInferMatFields(t *testing.T) {
	env := newEnv()
	env.vars["m"] = TMat
	if got := Infer(&parser.FieldAccess{Object: &parser.Variable{Name: "m"}, Field: "det"}, env); got != TFloat {
		t.Errorf("expected float for .det, got %v", got)
	}
	if got := Infer(&parser.FieldAccess{Object: &parser.Variable{Name: "m"}, Field: "rows"}, env); got != TInt {
		t.Errorf("expected int for .rows, got %v", got)
	}
}

func TestInferTableFieldLookup(t *testing.T) {
	env := newEnv()
	env.vars["t"] = Table(0)
	env.fields[0] = map[string]Type{"hp": TInt}
	got := Infer(&parser.FieldAccess{Object: &parser.Variable{Name: "t"}, Field: "hp"}, env)
	if got != TInt {
		t.Errorf("expected int from table registry, got %v", got)
	}
}

func TestInferIndexRangeYieldsContainer(t *testing.T) {
	env := newEnv()
	env.vars["v"] = TVec
	idx := &parser.IndexAccess{Object: &parser.Variable{Name: "v"}, Index: &parser.Range{}}
	if got := Infer(idx, env); got != TVec {
		t.Errorf("expected vec for range index, got %v", got)
	}
}

func TestInferCallReturnType(t *testing.T) {
	env := newEnv()
	env.funcs["mk"] = TStr
	call := &parser.CallFunc{Name: "mk"}
	if got := Infer(call, env); got != TStr {
		t.Errorf("expected str from declared return type, got %v", got)
	}
}
