package types

import (
	"strings"

	"vela/internal/parser"
)

var vecSwizzle = "xyzwrgba"

// Infer types an expression given an environment, per spec.md §4.6. It
// never fails -- an unresolvable case defaults to Unknown (callers that
// need a concrete lowering strategy treat Unknown as Int, matching the
// emitter's conservative default).
func Infer(e parser.Expr, env Env) Type {
	switch n := e.(type) {
	case *parser.Number:
		if strings.Contains(n.Text, ".") {
			return TFloat
		}
		return TInt
	case *parser.String:
		return TStr
	case *parser.Bool:
		return TInt
	case *parser.Variable:
		if t, ok := env.Lookup(n.Name); ok {
			return t
		}
		return TUnknown
	case *parser.Grouped:
		return Infer(n.Inner, env)
	case *parser.BinaryOp:
		return inferBinary(n, env)
	case *parser.UnaryOp:
		if t, ok := env.Lookup(n.Name); ok {
			return t
		}
		return TInt
	case *parser.CallFunc:
		if t, ok := env.FuncReturnType(n.Name); ok {
			return t
		}
		if t, ok := env.Lookup(n.Name); ok && t.Tag == ClosureTag {
			if rt, ok := env.FuncReturnType(syntheticClosureName(t.ID)); ok {
				return rt
			}
		}
		return TInt
	case *parser.Closure:
		return Closure(n.ID)
	case *parser.TableLiteral:
		return Table(n.ID)
	case *parser.VecLiteral:
		return TVec
	case *parser.MatLiteral:
		return TMat
	case *parser.Transpose:
		return Infer(n.Operand, env)
	case *parser.FieldAccess:
		return inferFieldAccess(n, env)
	case *parser.IndexAccess:
		return inferIndexAccess(n, env)
	case *parser.MethodCall:
		return TInt
	case *parser.BooleanExpr:
		return TInt
	default:
		return TUnknown
	}
}

func syntheticClosureName(id int) string {
	return "__closure_" + itoa(id)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func inferBinary(n *parser.BinaryOp, env Env) Type {
	l := Infer(n.Left, env)
	r := Infer(n.Right, env)
	switch n.Op {
	case "+":
		if l.Tag == Mat || r.Tag == Mat {
			return TMat
		}
		if l.Tag == Vec || r.Tag == Vec {
			return TVec
		}
		if l.Tag == Str || r.Tag == Str {
			return TStr
		}
		if l.Tag == Float || r.Tag == Float {
			return TFloat
		}
		return TInt
	case "-", "/", "%", "^":
		if l.Tag == Mat || l.Tag == Vec {
			return l
		}
		if l.Tag == Float || r.Tag == Float {
			return TFloat
		}
		return TInt
	case "*":
		if l.Tag == Mat && r.Tag == Mat {
			return TMat
		}
		if l.Tag == Mat && r.Tag == Vec {
			return TVec
		}
		if l.Tag == Mat || r.Tag == Mat {
			return TMat
		}
		if l.Tag == Vec || r.Tag == Vec {
			return TVec
		}
		if l.Tag == Float || r.Tag == Float {
			return TFloat
		}
		return TInt
	case "@":
		return TFloat
	case "#":
		return TVec
	case "\\":
		if r.Tag == Vec {
			return TVec
		}
		return TMat
	case "~":
		return TInt
	case ".^":
		if l.Tag == Mat || l.Tag == Vec {
			return l
		}
		return TFloat
	default:
		return TUnknown
	}
}

func inferFieldAccess(n *parser.FieldAccess, env Env) Type {
	objType := Infer(n.Object, env)
	switch objType.Tag {
	case Mat:
		switch n.Field {
		case "T", "inv":
			return TMat
		case "det":
			return TFloat
		case "rows", "cols":
			return TInt
		}
		return TUnknown
	case Vec:
		switch n.Field {
		case "len":
			return TInt
		}
		if len(n.Field) == 1 && strings.ContainsRune(vecSwizzle, rune(n.Field[0])) {
			return TFloat
		}
		if isSwizzle(n.Field) {
			return TVec
		}
		return TUnknown
	case TableTag:
		if t, ok := env.TableFieldType(objType.ID, n.Field); ok {
			return t
		}
		return TUnknown
	default:
		return TUnknown
	}
}

func isSwizzle(field string) bool {
	if len(field) == 0 {
		return false
	}
	for _, c := range field {
		if !strings.ContainsRune(vecSwizzle, c) {
			return false
		}
	}
	return true
}

func inferIndexAccess(n *parser.IndexAccess, env Env) Type {
	objType := Infer(n.Object, env)
	switch n.Index.(type) {
	case *parser.Range, *parser.BooleanExpr:
		return objType
	}
	if v, ok := n.Index.(*parser.Variable); ok {
		if t, hasT := env.Lookup(v.Name); hasT && t.Tag == Vec {
			return objType
		}
	}
	if objType.Tag == Mat {
		return TVec
	}
	return TFloat
}
