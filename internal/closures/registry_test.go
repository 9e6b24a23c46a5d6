package closures

import (
	"testing"

	"vela/internal/lexer"
	"vela/internal/parser"
	"vela/internal/types"
)

func parse(t *testing.T, src string) []parser.Stmt {
	t.Helper()
	toks, err := lexer.NewScanner(src).ScanTokens()
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	stmts, err := parser.NewParser(toks).Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return stmts
}

func TestCaptureSetExcludesParamsAndBuiltins(t *testing.T) {
	stmts := parse(t, "var a = 10\nvar f = |x| => x + a + input()")
	r := New(map[string]bool{})
	r.Assign(stmts)
	descs := r.Descriptors()
	if len(descs) != 1 {
		t.Fatalf("expected 1 closure, got %d", len(descs))
	}
	if len(descs[0].Captures) != 1 || descs[0].Captures[0] != "a" {
		t.Fatalf("expected capture set {a}, got %v", descs[0].Captures)
	}
}

func TestCapturesExcludeFuncNames(t *testing.T) {
	stmts := parse(t, "var f = || => helper()")
	r := New(map[string]bool{"helper": true})
	r.Assign(stmts)
	if len(r.Descriptors()[0].Captures) != 0 {
		t.Fatalf("expected no captures, got %v", r.Descriptors()[0].Captures)
	}
}

func TestDeterministicIDAssignment(t *testing.T) {
	stmts := parse(t, "var f = || => 1\nvar g = || => 2")
	r := New(map[string]bool{})
	r.Assign(stmts)
	a := stmts[0].(*parser.Assignment).Values[0].(*parser.Closure)
	b := stmts[1].(*parser.Assignment).Values[0].(*parser.Closure)
	if a.ID != 0 || b.ID != 1 {
		t.Fatalf("expected ids 0,1 in source order, got %d,%d", a.ID, b.ID)
	}
	if r.Descriptors()[0].TableSlot != 0 || r.Descriptors()[1].TableSlot != 1 {
		t.Fatalf("expected table slot == id")
	}
}

func TestReturnTypeInference(t *testing.T) {
	stmts := parse(t, `var f = |x| => { return "hi" }`)
	r := New(map[string]bool{})
	r.Assign(stmts)
	if r.Descriptors()[0].ReturnType != types.TStr {
		t.Fatalf("expected str return type, got %v", r.Descriptors()[0].ReturnType)
	}
}

func TestCaptureSortedLexicographically(t *testing.T) {
	stmts := parse(t, "var z = 1\nvar a = 2\nvar f = || => z + a")
	r := New(map[string]bool{})
	r.Assign(stmts)
	got := r.Descriptors()[0].Captures
	if len(got) != 2 || got[0] != "a" || got[1] != "z" {
		t.Fatalf("expected lexicographic [a z], got %v", got)
	}
}
