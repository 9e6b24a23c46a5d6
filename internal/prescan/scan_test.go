package prescan

import (
	"testing"

	"vela/internal/closures"
	"vela/internal/lexer"
	"vela/internal/parser"
	"vela/internal/tables"
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

func testEnv() *ModuleEnv {
	return &ModuleEnv{
		FuncReturns: map[string]types.Type{},
		Tables:      tables.New(),
		Closures:    closures.New(map[string]bool{}),
	}
}

func TestAllocLocalReusesSlotOnRedeclaration(t *testing.T) {
	body := parse(t, "var x = 1\nvar x = 2")
	fc := Scan(testEnv(), nil, body)
	if len(fc.Locals) != 1 {
		t.Fatalf("expected 1 local slot, got %d", len(fc.Locals))
	}
}

func TestTableLiteralReservesHandleSlot(t *testing.T) {
	body := parse(t, "var t = { x: 1 }")
	fc := Scan(testEnv(), nil, body)
	if len(fc.TableHandleSlots) != 1 {
		t.Fatalf("expected 1 table handle slot, got %d", len(fc.TableHandleSlots))
	}
	if !fc.OwnedTables["t"] {
		t.Fatalf("expected t to be classified as an owned table")
	}
}

func TestTimerReservesTwoSlots(t *testing.T) {
	body := parse(t, "timer {\n}")
	fc := Scan(testEnv(), nil, body)
	if len(fc.TimerGroups) != 1 || len(fc.TimerGroups[0].Slots) != 2 {
		t.Fatalf("expected one 2-slot timer group, got %+v", fc.TimerGroups)
	}
}

func TestReturnSaveGroupSizedToValueCount(t *testing.T) {
	body := parse(t, "func f() -> int, int {\n return 1, 2\n}")
	fd := body[0].(*parser.FuncDecl)
	fc := Scan(testEnv(), fd.Params, fd.Body)
	if len(fc.ReturnSaveGroups) != 1 || len(fc.ReturnSaveGroups[0].Slots) != 2 {
		t.Fatalf("expected one 2-slot return group, got %+v", fc.ReturnSaveGroups)
	}
}

func TestVecAndMatLiteralBaseSlots(t *testing.T) {
	body := parse(t, "var v = [1, 2]\nvar m = [1, 2; 3, 4]")
	fc := Scan(testEnv(), nil, body)
	if len(fc.VecBaseSlots) != 1 {
		t.Fatalf("expected 1 vec base slot, got %d", len(fc.VecBaseSlots))
	}
	if len(fc.MatBaseSlots) != 1 {
		t.Fatalf("expected 1 mat base slot, got %d", len(fc.MatBaseSlots))
	}
}

func TestCapturedTableExcludedFromOwned(t *testing.T) {
	fc := newFuncCtx(testEnv(), nil)
	fc.OwnedTables["t"] = true
	fc.CapturedTables["t"] = true
	for name := range fc.CapturedTables {
		delete(fc.OwnedTables, name)
	}
	if fc.OwnedTables["t"] {
		t.Fatalf("expected captured table to be excluded from owned set")
	}
}
