// Package compiler wires the four compilation passes into the single
// entry point a caller needs: source text in, a target module binary out
// (spec.md §4.8.1). Each pass is fail-fast, so the first error from any
// stage aborts the whole pipeline.
package compiler

import (
	"vela/internal/closures"
	"vela/internal/codegen"
	"vela/internal/lexer"
	"vela/internal/parser"
	"vela/internal/strpool"
	"vela/internal/tables"
)

// Compile lowers one Vela source file to a binary module.
func Compile(source string) ([]byte, error) {
	scanner := lexer.NewScanner(source)
	tokens, err := scanner.ScanTokens()
	if err != nil {
		return nil, err
	}

	stmts, err := parser.NewParser(tokens).Parse()
	if err != nil {
		return nil, err
	}

	pool := strpool.New()
	collectStrings(stmts, pool)

	funcNames := map[string]bool{}
	for _, s := range stmts {
		if fd, ok := s.(*parser.FuncDecl); ok {
			funcNames[fd.Name] = true
		}
	}

	tableReg := tables.New()
	tableReg.Assign(stmts)

	closureReg := closures.New(funcNames)
	closureReg.Assign(stmts)
	tableReg.SetClosureReturnTypes(closureReg.ReturnTypes())
	tableReg.Fixup()

	mod, err := codegen.EmitModule(stmts, pool, tableReg, closureReg)
	if err != nil {
		return nil, err
	}
	return mod, nil
}

// collectStrings walks every expression position a string literal can
// appear in and interns it, so every table/field/method name and string
// constant has a pool entry before codegen ever asks for one.
func collectStrings(stmts []parser.Stmt, pool *strpool.Pool) {
	for _, s := range stmts {
		collectStringsStmt(s, pool)
	}
}

func collectStringsStmt(s parser.Stmt, pool *strpool.Pool) {
	switch n := s.(type) {
	case *parser.FuncDecl:
		collectStrings(n.Body, pool)
	case *parser.Assignment:
		for _, v := range n.Values {
			collectStringsExpr(v, pool)
		}
	case *parser.IfStmt:
		collectStringsBool(n.Condition, pool)
		collectStrings(n.Body, pool)
		for _, ei := range n.ElseIfs {
			collectStringsBool(ei.Condition, pool)
			collectStrings(ei.Body, pool)
		}
		collectStrings(n.Else, pool)
	case *parser.ForStmt:
		if n.Init != nil {
			collectStringsStmt(n.Init, pool)
		}
		if n.Condition != nil {
			collectStringsBool(n.Condition, pool)
		}
		if n.Step != nil {
			collectStringsStmt(n.Step, pool)
		}
		collectStrings(n.Body, pool)
	case *parser.Block:
		collectStrings(n.Statements, pool)
	case *parser.ExprStmt:
		collectStringsExpr(n.Call, pool)
	case *parser.MethodCallStmt:
		collectStringsExpr(n.Call, pool)
	case *parser.Return:
		for _, v := range n.Values {
			collectStringsExpr(v, pool)
		}
	case *parser.TimerStmt:
		collectStrings(n.Body, pool)
	case *parser.FieldAssign:
		pool.Intern(n.Field)
		collectStringsExpr(n.Value, pool)
	case *parser.IndexAssign:
		collectStringsExpr(n.Index, pool)
		collectStringsExpr(n.Value, pool)
	}
}

func collectStringsBool(b parser.BoolNode, pool *strpool.Pool) {
	switch n := b.(type) {
	case *parser.Comparison:
		collectStringsExpr(n.Left, pool)
		collectStringsExpr(n.Right, pool)
	case *parser.Logical:
		collectStringsBool(n.Left, pool)
		collectStringsBool(n.Right, pool)
	case *parser.BoolGrouped:
		collectStringsBool(n.Inner, pool)
	}
}

func collectStringsExpr(e parser.Expr, pool *strpool.Pool) {
	switch n := e.(type) {
	case *parser.String:
		pool.Intern(n.Text)
	case *parser.BinaryOp:
		collectStringsExpr(n.Left, pool)
		collectStringsExpr(n.Right, pool)
	case *parser.CallFunc:
		for _, a := range n.Args {
			collectStringsExpr(a, pool)
		}
	case *parser.Closure:
		collectStrings(n.Body, pool)
	case *parser.TableLiteral:
		for _, entry := range n.Entries {
			pool.Intern(entry.Key)
			collectStringsExpr(entry.Value, pool)
		}
	case *parser.FieldAccess:
		pool.Intern(n.Field)
		collectStringsExpr(n.Object, pool)
	case *parser.IndexAccess:
		collectStringsExpr(n.Object, pool)
		collectStringsExpr(n.Index, pool)
	case *parser.MethodCall:
		collectStringsExpr(n.Callee, pool)
		for _, a := range n.Args {
			collectStringsExpr(a, pool)
		}
	case *parser.VecLiteral:
		for _, el := range n.Elements {
			collectStringsExpr(el, pool)
		}
	case *parser.MatLiteral:
		for _, row := range n.Rows {
			for _, el := range row {
				collectStringsExpr(el, pool)
			}
		}
	case *parser.Transpose:
		collectStringsExpr(n.Operand, pool)
	case *parser.Grouped:
		collectStringsExpr(n.Inner, pool)
	case *parser.BooleanExpr:
		collectStringsBool(n.Inner, pool)
	}
}
