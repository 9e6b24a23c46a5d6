// Package codegen lowers a Vela AST to the target module format: WASM 1.0
// plus 128-bit SIMD, per spec.md §4.8. It assembles one function body per
// source function and closure, plus a synthetic _start for top-level code,
// and calls into the fixed `env.*` host import surface for everything not
// expressed as inline SIMD.
package codegen

import "vela/internal/wasm"

// hostImport names one entry of the env.* surface (spec.md §6.1).
type hostImport struct {
	name    string
	params  []wasm.ValType
	results []wasm.ValType
}

var i64 = wasm.ValI64

var hostImports = []hostImport{
	{"print", []wasm.ValType{i64}, nil},
	{"print_str", []wasm.ValType{i64}, nil},
	{"print_float", []wasm.ValType{i64}, nil},
	{"print_vec", []wasm.ValType{i64}, nil},
	{"print_mat", []wasm.ValType{i64}, nil},
	{"print_timer", []wasm.ValType{i64}, nil},
	{"input", nil, []wasm.ValType{i64}},
	{"random", []wasm.ValType{i64, i64}, []wasm.ValType{i64}},
	{"clock", nil, []wasm.ValType{i64}},
	{"str_concat", []wasm.ValType{i64, i64}, []wasm.ValType{i64}},
	{"int_to_str", []wasm.ValType{i64}, []wasm.ValType{i64}},
	{"float_to_str", []wasm.ValType{i64}, []wasm.ValType{i64}},
	{"table_new", nil, []wasm.ValType{i64}},
	{"table_set", []wasm.ValType{i64, i64, i64}, nil},
	{"table_get", []wasm.ValType{i64, i64}, []wasm.ValType{i64}},
	{"table_set_table", []wasm.ValType{i64, i64, i64}, nil},
	{"table_free", []wasm.ValType{i64}, nil},
	{"vec_get", []wasm.ValType{i64, i64}, []wasm.ValType{i64}},
	{"vec_set", []wasm.ValType{i64, i64, i64}, nil},
	{"vec_slice", []wasm.ValType{i64, i64, i64}, []wasm.ValType{i64}},
	{"vec_mask", []wasm.ValType{i64, i64, i64, i64}, []wasm.ValType{i64}},
	{"vec_fancy_index", []wasm.ValType{i64, i64}, []wasm.ValType{i64}},
	{"vec_swizzle", []wasm.ValType{i64, i64}, []wasm.ValType{i64}},
	{"vec_pow", []wasm.ValType{i64, i64}, []wasm.ValType{i64}},
	{"mat_get", []wasm.ValType{i64, i64, i64}, []wasm.ValType{i64}},
	{"mat_set", []wasm.ValType{i64, i64, i64, i64}, nil},
	{"mat_slice", []wasm.ValType{i64, i64, i64}, []wasm.ValType{i64}},
	{"mat_mask", []wasm.ValType{i64, i64, i64, i64}, []wasm.ValType{i64}},
	{"mat_fancy_index", []wasm.ValType{i64, i64}, []wasm.ValType{i64}},
	{"mat_transpose", []wasm.ValType{i64}, []wasm.ValType{i64}},
	{"mat_det", []wasm.ValType{i64}, []wasm.ValType{i64}},
	{"mat_inv", []wasm.ValType{i64}, []wasm.ValType{i64}},
	{"mat_solve", []wasm.ValType{i64, i64}, []wasm.ValType{i64}},
	{"mat_pow", []wasm.ValType{i64, i64}, []wasm.ValType{i64}},
	{"mat_add_scalar", []wasm.ValType{i64, i64}, []wasm.ValType{i64}},
	{"mat_sub_scalar", []wasm.ValType{i64, i64}, []wasm.ValType{i64}},
	{"mat_div_scalar", []wasm.ValType{i64, i64}, []wasm.ValType{i64}},
	{"mat_add_vec_broadcast", []wasm.ValType{i64, i64}, []wasm.ValType{i64}},
	{"mat_sub_vec_broadcast", []wasm.ValType{i64, i64}, []wasm.ValType{i64}},
	{"float_pow", []wasm.ValType{i64, i64}, []wasm.ValType{i64}},
	{"float_mod", []wasm.ValType{i64, i64}, []wasm.ValType{i64}},
}

// registerImports adds every host import to the builder and returns a
// name->function-index lookup table.
func registerImports(b *wasm.Builder) map[string]int {
	idx := make(map[string]int)
	for i, imp := range hostImports {
		t := b.TypeIndex(wasm.FuncSig{Params: imp.params, Results: imp.results})
		b.Imports = append(b.Imports, wasm.Import{Module: "env", Name: imp.name, TypeIdx: t})
		idx[imp.name] = i
	}
	return idx
}
