package parser

import (
	"fmt"
	"testing"

	"vela/internal/lexer"
)

// parseString is the shared test helper: scan then parse, converting any
// panic into a returned error exactly like Parse does internally.
func parseString(input string) (stmts []Stmt, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("parser panic: %v", r)
			}
			stmts = nil
		}
	}()
	tokens, lexErr := lexer.NewScanner(input).ScanTokens()
	if lexErr != nil {
		return nil, lexErr
	}
	return NewParser(tokens).Parse()
}

func assertParseSuccess(t *testing.T, input, desc string) []Stmt {
	t.Helper()
	stmts, err := parseString(input)
	if err != nil {
		t.Errorf("%s: expected success, got error: %v", desc, err)
		return nil
	}
	return stmts
}

func assertParseError(t *testing.T, input, desc string) {
	t.Helper()
	_, err := parseString(input)
	if err == nil {
		t.Errorf("%s: expected a parse error, got none", desc)
	}
}

func TestVarDecl(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "var x = 5", false},
		{"multi-target", "var x, y = 1, 2", false},
		{"type-only decl", "var x: int", false},
		{"missing value", "var x =", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantErr {
				assertParseError(t, tt.input, tt.name)
			} else {
				assertParseSuccess(t, tt.input, tt.name)
			}
		})
	}
}

func TestFuncDecl(t *testing.T) {
	stmts := assertParseSuccess(t, "func add(a: int, b: int) -> int {\n return a + b\n}", "func decl")
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	fd, ok := stmts[0].(*FuncDecl)
	if !ok {
		t.Fatalf("expected *FuncDecl, got %T", stmts[0])
	}
	if fd.Name != "add" || len(fd.Params) != 2 || len(fd.ReturnTypes) != 1 {
		t.Errorf("unexpected func shape: %+v", fd)
	}
}

func TestExpressionPrecedence(t *testing.T) {
	// 1 + 2 * 3 must parse as 1 + (2 * 3): BinaryOp{+, 1, BinaryOp{*, 2, 3}}
	stmts := assertParseSuccess(t, "var x = 1 + 2 * 3", "precedence")
	assign := stmts[0].(*Assignment)
	top, ok := assign.Values[0].(*BinaryOp)
	if !ok || top.Op != "+" {
		t.Fatalf("expected top-level '+', got %+v", assign.Values[0])
	}
	right, ok := top.Right.(*BinaryOp)
	if !ok || right.Op != "*" {
		t.Fatalf("expected right operand to be '*', got %+v", top.Right)
	}
}

func TestPostfixChain(t *testing.T) {
	stmts := assertParseSuccess(t, "var x = obj.field.method(1, 2)[0]", "postfix chain")
	assign := stmts[0].(*Assignment)
	idx, ok := assign.Values[0].(*IndexAccess)
	if !ok {
		t.Fatalf("expected outermost node to be IndexAccess, got %T", assign.Values[0])
	}
	if _, ok := idx.Object.(*MethodCall); !ok {
		t.Fatalf("expected IndexAccess.Object to be MethodCall, got %T", idx.Object)
	}
}

func TestGroupedBooleanVsArithmeticComparison(t *testing.T) {
	// (a > 1 && b < 2) is a grouped boolean used directly as an if-condition.
	stmts := assertParseSuccess(t, "if ((a > 1 && b < 2)) {\n}", "grouped boolean")
	ifs := stmts[0].(*IfStmt)
	if _, ok := ifs.Condition.(*BoolGrouped); !ok {
		t.Fatalf("expected BoolGrouped condition, got %T", ifs.Condition)
	}

	// ((a + b) > c) is a parenthesized arithmetic expr compared with c,
	// itself wrapped by the outer if-parens -- must backtrack out of the
	// speculative boolean parse of the inner '(a + b)'.
	stmts = assertParseSuccess(t, "if ((a + b) > c) {\n}", "arithmetic then comparison")
	ifs = stmts[0].(*IfStmt)
	cmp, ok := ifs.Condition.(*Comparison)
	if !ok {
		t.Fatalf("expected Comparison condition, got %T", ifs.Condition)
	}
	if _, ok := cmp.Left.(*Grouped); !ok {
		t.Fatalf("expected Comparison.Left to be Grouped, got %T", cmp.Left)
	}
}

func TestElseIfChain(t *testing.T) {
	stmts := assertParseSuccess(t, "if (a > b) {\n} elseif (a < b) {\n} else {\n}", "elseif chain")
	ifs := stmts[0].(*IfStmt)
	if len(ifs.ElseIfs) != 1 {
		t.Fatalf("expected 1 elseif clause, got %d", len(ifs.ElseIfs))
	}
	if ifs.Else == nil {
		t.Fatalf("expected an else body")
	}
}

func TestIndexRangeAndMask(t *testing.T) {
	stmts := assertParseSuccess(t, "var x = v[1..3]", "range index")
	assign := stmts[0].(*Assignment)
	idx := assign.Values[0].(*IndexAccess)
	if _, ok := idx.Index.(*Range); !ok {
		t.Fatalf("expected Range index, got %T", idx.Index)
	}

	stmts = assertParseSuccess(t, "var y = v[x > 0]", "mask index")
	assign = stmts[0].(*Assignment)
	idx = assign.Values[0].(*IndexAccess)
	boxed, ok := idx.Index.(*BooleanExpr)
	if !ok {
		t.Fatalf("expected BooleanExpr mask index, got %T", idx.Index)
	}
	if _, ok := boxed.Inner.(*Comparison); !ok {
		t.Fatalf("expected Comparison inside mask, got %T", boxed.Inner)
	}
}

func TestTableLiteral(t *testing.T) {
	stmts := assertParseSuccess(t, `var x = { name: "a", age: 5 }`, "table literal")
	assign := stmts[0].(*Assignment)
	tbl, ok := assign.Values[0].(*TableLiteral)
	if !ok {
		t.Fatalf("expected TableLiteral, got %T", assign.Values[0])
	}
	if len(tbl.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(tbl.Entries))
	}
}

func TestVecAndMatLiteral(t *testing.T) {
	stmts := assertParseSuccess(t, "var v = [1, 2, 3]", "vector literal")
	assign := stmts[0].(*Assignment)
	if _, ok := assign.Values[0].(*VecLiteral); !ok {
		t.Fatalf("expected VecLiteral, got %T", assign.Values[0])
	}

	stmts = assertParseSuccess(t, "var m = [1, 2; 3, 4]", "matrix literal")
	assign = stmts[0].(*Assignment)
	mat, ok := assign.Values[0].(*MatLiteral)
	if !ok {
		t.Fatalf("expected MatLiteral, got %T", assign.Values[0])
	}
	if len(mat.Rows) != 2 || len(mat.Rows[0]) != 2 {
		t.Fatalf("unexpected matrix shape: %+v", mat.Rows)
	}
}

func TestClosureParsing(t *testing.T) {
	stmts := assertParseSuccess(t, "var f = |a, b| => a + b", "closure")
	assign := stmts[0].(*Assignment)
	cl, ok := assign.Values[0].(*Closure)
	if !ok {
		t.Fatalf("expected Closure, got %T", assign.Values[0])
	}
	if len(cl.Params) != 2 || cl.ID != -1 {
		t.Fatalf("unexpected closure shape: %+v", cl)
	}

	stmts = assertParseSuccess(t, "var g = || => { return 1 }", "no-arg closure")
	assign = stmts[0].(*Assignment)
	if _, ok := assign.Values[0].(*Closure); !ok {
		t.Fatalf("expected Closure, got %T", assign.Values[0])
	}
}

func TestTopLevelControlFlowRestrictions(t *testing.T) {
	assertParseError(t, "return 1", "return at top level")
	assertParseError(t, "break", "break at top level")
	assertParseError(t, "continue", "continue at top level")
	assertParseSuccess(t, "timer {\n}", "timer allowed at top level")
}

func TestForLoop(t *testing.T) {
	stmts := assertParseSuccess(t, "for (var i = 0; i < 10; i = i + 1) {\n}", "for loop")
	fs, ok := stmts[0].(*ForStmt)
	if !ok {
		t.Fatalf("expected *ForStmt, got %T", stmts[0])
	}
	if fs.Init == nil || fs.Condition == nil || fs.Step == nil {
		t.Fatalf("expected all three for-clauses populated: %+v", fs)
	}

	stmts = assertParseSuccess(t, "for (;;) {\n}", "infinite for loop")
	fs = stmts[0].(*ForStmt)
	if fs.Init != nil || fs.Condition != nil || fs.Step != nil {
		t.Fatalf("expected all clauses nil on for(;;), got %+v", fs)
	}
}

func TestFieldAndIndexAssignment(t *testing.T) {
	assertParseSuccess(t, "obj.field = 5", "field assignment")
	assertParseSuccess(t, "arr[0] = 5", "index assignment")
	assertParseSuccess(t, "obj.method(1, 2)", "method call statement")
}
