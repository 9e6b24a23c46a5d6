package tables

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

func TestAssignGivesDenseIDs(t *testing.T) {
	stmts := parse(t, "var a = { x: 1 }\nvar b = { y: 2 }")
	r := New()
	r.Assign(stmts)
	assignA := stmts[0].(*parser.Assignment)
	assignB := stmts[1].(*parser.Assignment)
	idA := assignA.Values[0].(*parser.TableLiteral).ID
	idB := assignB.Values[0].(*parser.TableLiteral).ID
	if idA != 0 || idB != 1 {
		t.Fatalf("expected ids 0 and 1, got %d and %d", idA, idB)
	}
}

func TestFieldTypeInference(t *testing.T) {
	stmts := parse(t, `var t = { hp: 100, name: "bob" }`)
	r := New()
	r.Assign(stmts)
	hp, ok := r.TableFieldType(0, "hp")
	if !ok || hp != types.TInt {
		t.Errorf("expected hp: int, got %v (ok=%v)", hp, ok)
	}
	name, ok := r.TableFieldType(0, "name")
	if !ok || name != types.TStr {
		t.Errorf("expected name: str, got %v (ok=%v)", name, ok)
	}
}

func TestClosureFieldFixup(t *testing.T) {
	stmts := parse(t, `var t = { cb: |x| => x + 1 }`)
	r := New()
	r.Assign(stmts)
	before, _ := r.TableFieldType(0, "cb")
	if before != types.TInt {
		t.Fatalf("expected conservative int default before fixup, got %v", before)
	}
	assign := stmts[0].(*parser.Assignment)
	cl := assign.Values[0].(*parser.TableLiteral).Entries[0].Value.(*parser.Closure)
	cl.ID = 0
	r.SetClosureReturnTypes(map[int]types.Type{0: types.TFloat})
	r.Fixup()
	after, _ := r.TableFieldType(0, "cb")
	if after != types.TFloat {
		t.Errorf("expected fixup to promote to float, got %v", after)
	}
}
