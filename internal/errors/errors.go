// Package errors implements the single error kind shared by every
// compiler phase: a message plus the source position that triggered it.
// Phases fail fast -- the first violation aborts the phase, there is no
// partial parse and no partial codegen.
package errors

import (
	"fmt"
	"strings"
)

// Kind partitions errors by the phase that raised them.
type Kind string

const (
	Lex     Kind = "LexError"
	Syntax  Kind = "SyntaxError"
	Codegen Kind = "CodegenError"
)

// Pos is a 1-based source position, carried on every AST node that can
// originate a diagnostic.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// VelaError is the one error shape every phase returns.
type VelaError struct {
	Kind    Kind
	Message string
	Pos     Pos
	Source  string // offending source line, if known
}

func New(kind Kind, pos Pos, format string, args ...interface{}) *VelaError {
	return &VelaError{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// WithSource attaches the offending source line for a caret-pointed
// rendering in Error().
func (e *VelaError) WithSource(line string) *VelaError {
	e.Source = line
	return e
}

func (e *VelaError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s at %s", e.Kind, e.Message, e.Pos)
	if e.Source != "" {
		prefix := fmt.Sprintf("  %d | ", e.Pos.Line)
		fmt.Fprintf(&sb, "\n%s%s", prefix, e.Source)
		if e.Pos.Column > 0 {
			sb.WriteString("\n" + strings.Repeat(" ", len(prefix)+e.Pos.Column-1) + "^")
		}
	}
	return sb.String()
}
