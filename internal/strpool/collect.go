package strpool

import "vela/internal/parser"

// Collect walks every statement, interning each string literal and each
// table-field name encountered (at definition and at field-access/
// field-assign sites), per spec.md §4.3.
func Collect(pool *Pool, stmts []parser.Stmt) {
	for _, s := range stmts {
		collectStmt(pool, s)
	}
}

func collectStmt(pool *Pool, s parser.Stmt) {
	switch n := s.(type) {
	case *parser.FuncDecl:
		for _, st := range n.Body {
			collectStmt(pool, st)
		}
	case *parser.Assignment:
		for _, v := range n.Values {
			collectExpr(pool, v)
		}
	case *parser.IfStmt:
		collectBool(pool, n.Condition)
		for _, st := range n.Body {
			collectStmt(pool, st)
		}
		for _, ei := range n.ElseIfs {
			collectBool(pool, ei.Condition)
			for _, st := range ei.Body {
				collectStmt(pool, st)
			}
		}
		for _, st := range n.Else {
			collectStmt(pool, st)
		}
	case *parser.ForStmt:
		if n.Init != nil {
			collectStmt(pool, n.Init)
		}
		if n.Condition != nil {
			collectBool(pool, n.Condition)
		}
		if n.Step != nil {
			collectStmt(pool, n.Step)
		}
		for _, st := range n.Body {
			collectStmt(pool, st)
		}
	case *parser.Block:
		for _, st := range n.Statements {
			collectStmt(pool, st)
		}
	case *parser.ExprStmt:
		collectExpr(pool, n.Call)
	case *parser.MethodCallStmt:
		collectExpr(pool, n.Call)
	case *parser.Return:
		for _, v := range n.Values {
			collectExpr(pool, v)
		}
	case *parser.TimerStmt:
		for _, st := range n.Body {
			collectStmt(pool, st)
		}
	case *parser.FieldAssign:
		pool.Intern(n.Field)
		collectExpr(pool, n.Value)
	case *parser.IndexAssign:
		collectExpr(pool, n.Index)
		collectExpr(pool, n.Value)
	}
}

func collectBool(pool *Pool, b parser.BoolNode) {
	switch n := b.(type) {
	case *parser.Comparison:
		collectExpr(pool, n.Left)
		collectExpr(pool, n.Right)
	case *parser.Logical:
		collectBool(pool, n.Left)
		collectBool(pool, n.Right)
	case *parser.BoolGrouped:
		collectBool(pool, n.Inner)
	}
}

func collectExpr(pool *Pool, e parser.Expr) {
	switch n := e.(type) {
	case *parser.String:
		pool.Intern(n.Text)
	case *parser.BinaryOp:
		collectExpr(pool, n.Left)
		collectExpr(pool, n.Right)
	case *parser.CallFunc:
		for _, a := range n.Args {
			collectExpr(pool, a)
		}
	case *parser.Closure:
		for _, st := range n.Body {
			collectStmt(pool, st)
		}
	case *parser.TableLiteral:
		for _, entry := range n.Entries {
			pool.Intern(entry.Key)
			collectExpr(pool, entry.Value)
		}
	case *parser.FieldAccess:
		pool.Intern(n.Field)
		collectExpr(pool, n.Object)
	case *parser.IndexAccess:
		collectExpr(pool, n.Object)
		collectExpr(pool, n.Index)
	case *parser.MethodCall:
		collectExpr(pool, n.Callee)
		for _, a := range n.Args {
			collectExpr(pool, a)
		}
	case *parser.VecLiteral:
		for _, el := range n.Elements {
			collectExpr(pool, el)
		}
	case *parser.MatLiteral:
		for _, row := range n.Rows {
			for _, el := range row {
				collectExpr(pool, el)
			}
		}
	case *parser.Transpose:
		collectExpr(pool, n.Operand)
	case *parser.Range:
		if n.Start != nil {
			collectExpr(pool, n.Start)
		}
		if n.End != nil {
			collectExpr(pool, n.End)
		}
	case *parser.BooleanExpr:
		collectBool(pool, n.Inner)
	case *parser.Grouped:
		collectExpr(pool, n.Inner)
	}
}
