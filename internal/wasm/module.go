package wasm

var magic = []byte{0x00, 0x61, 0x73, 0x6d}
var version = []byte{0x01, 0x00, 0x00, 0x00}

// FuncSig is a function type signature keyed by its parameter/result shape.
type FuncSig struct {
	Params  []ValType
	Results []ValType
}

// Import is one entry of the `env.*` host import surface (spec §6.1).
type Import struct {
	Module string
	Name   string
	TypeIdx int
}

// Export is one exported name (user functions, `_start`, `memory`,
// `__heap_base`).
type Export struct {
	Name string
	Kind byte
	Idx  int
}

// Global is a module-level global; the core declares exactly one:
// `__heap_base`, mutable i32.
type Global struct {
	Type    ValType
	Mutable bool
	InitI32 int32
}

// Builder assembles the fixed section order of §4.8.1 / §6.4: types,
// imports, functions, table, memory, globals, exports, element, code, data.
type Builder struct {
	Types   []FuncSig
	Imports []Import
	// FuncTypeIdx[i] is the type index of the i-th non-imported function,
	// in declaration order (closures then user functions, per registry
	// assignment order).
	FuncTypeIdx []int
	FuncBodies  [][]byte // pre-finished bodies, parallel to FuncTypeIdx
	TableSize   int      // indirect-call table length; 0 means no table section
	Elements    []int    // function indices populating table slots 0..n-1
	Globals     []Global
	Exports     []Export
	Data        []byte // string pool contents, placed at offset 0
}

// TypeIndex interns a signature, returning its index, adding it if new.
func (b *Builder) TypeIndex(sig FuncSig) int {
	for i, t := range b.Types {
		if sigEqual(t, sig) {
			return i
		}
	}
	b.Types = append(b.Types, sig)
	return len(b.Types) - 1
}

func sigEqual(a, b FuncSig) bool {
	if len(a.Params) != len(b.Params) || len(a.Results) != len(b.Results) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	for i := range a.Results {
		if a.Results[i] != b.Results[i] {
			return false
		}
	}
	return true
}

// Emit produces the complete module binary.
func (b *Builder) Emit() []byte {
	out := append([]byte{}, magic...)
	out = append(out, version...)
	out = append(out, b.emitTypeSection()...)
	if len(b.Imports) > 0 {
		out = append(out, b.emitImportSection()...)
	}
	out = append(out, b.emitFunctionSection()...)
	if b.TableSize > 0 {
		out = append(out, b.emitTableSection()...)
	}
	out = append(out, b.emitMemorySection()...)
	if len(b.Globals) > 0 {
		out = append(out, b.emitGlobalSection()...)
	}
	out = append(out, b.emitExportSection()...)
	if len(b.Elements) > 0 {
		out = append(out, b.emitElementSection()...)
	}
	out = append(out, b.emitCodeSection()...)
	if len(b.Data) > 0 {
		out = append(out, b.emitDataSection()...)
	}
	return out
}

func (b *Builder) emitTypeSection() []byte {
	var contents []byte
	for _, sig := range b.Types {
		contents = append(contents, FuncTypeTag)
		contents = append(contents, EncodeU(uint64(len(sig.Params)))...)
		for _, p := range sig.Params {
			contents = append(contents, byte(p))
		}
		contents = append(contents, EncodeU(uint64(len(sig.Results)))...)
		for _, r := range sig.Results {
			contents = append(contents, byte(r))
		}
	}
	body := EncodeVector(len(b.Types), contents)
	return EncodeSection(SectionType, body)
}

func (b *Builder) emitImportSection() []byte {
	var contents []byte
	for _, imp := range b.Imports {
		contents = append(contents, EncodeName(imp.Module)...)
		contents = append(contents, EncodeName(imp.Name)...)
		contents = append(contents, KindFunc)
		contents = append(contents, EncodeU(uint64(imp.TypeIdx))...)
	}
	body := EncodeVector(len(b.Imports), contents)
	return EncodeSection(SectionImport, body)
}

func (b *Builder) emitFunctionSection() []byte {
	var contents []byte
	for _, idx := range b.FuncTypeIdx {
		contents = append(contents, EncodeU(uint64(idx))...)
	}
	body := EncodeVector(len(b.FuncTypeIdx), contents)
	return EncodeSection(SectionFunction, body)
}

func (b *Builder) emitTableSection() []byte {
	// anyfunc table, no max, min = TableSize
	contents := []byte{0x70, 0x00}
	contents = append(contents, EncodeU(uint64(b.TableSize))...)
	body := EncodeVector(1, contents)
	return EncodeSection(SectionTable, body)
}

func (b *Builder) emitMemorySection() []byte {
	contents := []byte{0x00}
	contents = append(contents, EncodeU(1)...) // one initial page
	body := EncodeVector(1, contents)
	return EncodeSection(SectionMemory, body)
}

func (b *Builder) emitGlobalSection() []byte {
	var contents []byte
	for _, g := range b.Globals {
		contents = append(contents, byte(g.Type))
		if g.Mutable {
			contents = append(contents, 0x01)
		} else {
			contents = append(contents, 0x00)
		}
		contents = append(contents, OpI32Const)
		contents = append(contents, EncodeS(int64(g.InitI32))...)
		contents = append(contents, OpEnd)
	}
	body := EncodeVector(len(b.Globals), contents)
	return EncodeSection(SectionGlobal, body)
}

func (b *Builder) emitExportSection() []byte {
	var contents []byte
	for _, exp := range b.Exports {
		contents = append(contents, EncodeName(exp.Name)...)
		contents = append(contents, exp.Kind)
		contents = append(contents, EncodeU(uint64(exp.Idx))...)
	}
	body := EncodeVector(len(b.Exports), contents)
	return EncodeSection(SectionExport, body)
}

func (b *Builder) emitElementSection() []byte {
	var contents []byte
	contents = append(contents, EncodeU(0)...) // table index 0
	contents = append(contents, OpI32Const)
	contents = append(contents, EncodeS(0)...)
	contents = append(contents, OpEnd)
	contents = append(contents, EncodeU(uint64(len(b.Elements)))...)
	for _, fn := range b.Elements {
		contents = append(contents, EncodeU(uint64(fn))...)
	}
	body := EncodeVector(1, contents)
	return EncodeSection(SectionElement, body)
}

func (b *Builder) emitCodeSection() []byte {
	var contents []byte
	for _, fb := range b.FuncBodies {
		contents = append(contents, fb...)
	}
	body := EncodeVector(len(b.FuncBodies), contents)
	return EncodeSection(SectionCode, body)
}

func (b *Builder) emitDataSection() []byte {
	var contents []byte
	contents = append(contents, EncodeU(0)...) // memory index 0
	contents = append(contents, OpI32Const)
	contents = append(contents, EncodeS(0)...)
	contents = append(contents, OpEnd)
	contents = append(contents, EncodeU(uint64(len(b.Data)))...)
	contents = append(contents, b.Data...)
	body := EncodeVector(1, contents)
	return EncodeSection(SectionData, body)
}
