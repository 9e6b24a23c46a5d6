// Package types implements the on-demand, best-effort type inferencer
// (spec.md §4.6): a pure function of an expression and a type environment,
// with no fixed-point iteration.
package types

// Tag is a compile-time type tag; there is no runtime representation of
// it, only a lowering-strategy choice at each use site.
type Tag int

const (
	Unknown Tag = iota
	Int
	Float
	Str
	Vec
	Mat
	ClosureTag
	TableTag
)

func (t Tag) String() string {
	switch t {
	case Int:
		return "int"
	case Float:
		return "float"
	case Str:
		return "str"
	case Vec:
		return "vec"
	case Mat:
		return "mat"
	case ClosureTag:
		return "closure"
	case TableTag:
		return "table"
	default:
		return "unknown"
	}
}

// Type pairs a tag with an identifier, meaningful only for ClosureTag
// (closure registry id) and TableTag (table-type registry id).
type Type struct {
	Tag Tag
	ID  int
}

var (
	TInt     = Type{Tag: Int, ID: -1}
	TFloat   = Type{Tag: Float, ID: -1}
	TStr     = Type{Tag: Str, ID: -1}
	TVec     = Type{Tag: Vec, ID: -1}
	TMat     = Type{Tag: Mat, ID: -1}
	TUnknown = Type{Tag: Unknown, ID: -1}
)

func Closure(id int) Type { return Type{Tag: ClosureTag, ID: id} }
func Table(id int) Type   { return Type{Tag: TableTag, ID: id} }

func FromName(name string) Type {
	switch name {
	case "int":
		return TInt
	case "float":
		return TFloat
	case "str", "string":
		return TStr
	case "vec":
		return TVec
	case "mat":
		return TMat
	default:
		return TUnknown
	}
}

// Env exposes everything the inferencer needs beyond the expression
// itself: the local variable environment plus the two registries filled
// by earlier passes. Implemented by internal/prescan.FuncCtx and by
// internal/tables.Registry during its own walk; kept as an interface here to
// avoid an import cycle between types, tables, and closures.
type Env interface {
	Lookup(name string) (Type, bool)
	FuncReturnType(name string) (Type, bool)
	TableFieldType(tableID int, field string) (Type, bool)
}
