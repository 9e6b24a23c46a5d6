package compiler

import "testing"

func assertCompiles(t *testing.T, input, desc string) []byte {
	t.Helper()
	mod, err := Compile(input)
	if err != nil {
		t.Fatalf("%s: expected success, got error: %v", desc, err)
	}
	if len(mod) == 0 {
		t.Fatalf("%s: expected a non-empty module", desc)
	}
	return mod
}

func assertCompileError(t *testing.T, input, desc string) {
	t.Helper()
	if _, err := Compile(input); err == nil {
		t.Fatalf("%s: expected an error, got none", desc)
	}
}

func TestCompileTopLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"arithmetic", "var x = 1 + 2 * 3\nprint(x)"},
		{"string concat", `var s = "a" + "b"` + "\n" + `print(s)`},
		{"vec literal and index", "var v = [1, 2, 3]\nprint(v[0])"},
		{"mat literal", "var m = [1, 2; 3, 4]\nprint(m)"},
		{"for loop with break", "for (var i = 0; i < 10; i = i + 1) {\n  if (i == 5) {\n    break\n  }\n}"},
		{"table literal and field", `var t = {name: "a", age: 1}` + "\n" + "print(t.name)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertCompiles(t, tt.input, tt.name)
		})
	}
}

func TestCompileFunctions(t *testing.T) {
	src := `
func add(a: int, b: int) -> int {
  return a + b
}
var r = add(1, 2)
print(r)
`
	assertCompiles(t, src, "plain function call")
}

func TestCompileClosures(t *testing.T) {
	src := `
var n = 10
var adder = |x| => {
  return x + n
}
`
	assertCompiles(t, src, "closure capturing outer local")
}

func TestCompileVecMath(t *testing.T) {
	src := `
var a = [1.0, 2.0, 3.0]
var b = [4.0, 5.0, 6.0]
var c = a + b
var d = dot(a, b)
print(c)
print(d)
`
	assertCompiles(t, src, "vec arithmetic and dot product")
}

func TestCompileSyntaxError(t *testing.T) {
	assertCompileError(t, "var x = ", "missing value in var decl")
}

func TestCompileUnknownFunction(t *testing.T) {
	assertCompileError(t, "foo(1, 2)", "call to an undeclared function")
}
