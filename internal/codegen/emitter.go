package codegen

import (
	"vela/internal/closures"
	"vela/internal/errors"
	"vela/internal/parser"
	"vela/internal/prescan"
	"vela/internal/strpool"
	"vela/internal/tables"
	"vela/internal/types"
	"vela/internal/wasm"
)

// Emitter holds the module-wide state shared by every function body it
// lowers: the import table, the final function-index layout, and the
// three earlier passes' registries.
type Emitter struct {
	b         *wasm.Builder
	pool      *strpool.Pool
	tables    *tables.Registry
	closures  *closures.Registry
	imports   map[string]int
	funcIndex map[string]int // user function name -> final function index
	funcDecls map[string]*parser.FuncDecl
	env       *prescan.ModuleEnv
}

// EmitModule lowers a complete program to the target binary module format
// (spec.md §4.8.1). stmts is the full top-level statement list as parsed;
// pool, tableReg and closureReg must already have completed their passes
// (Collect/Assign/Fixup) over the same statement list.
func EmitModule(stmts []parser.Stmt, pool *strpool.Pool, tableReg *tables.Registry, closureReg *closures.Registry) ([]byte, error) {
	var funcDecls []*parser.FuncDecl
	var topLevel []parser.Stmt
	for _, s := range stmts {
		if fd, ok := s.(*parser.FuncDecl); ok {
			funcDecls = append(funcDecls, fd)
			continue
		}
		topLevel = append(topLevel, s)
	}

	funcReturns := make(map[string]types.Type)
	for _, fd := range funcDecls {
		if len(fd.ReturnTypes) > 0 {
			funcReturns[fd.Name] = types.FromName(fd.ReturnTypes[0])
		} else {
			funcReturns[fd.Name] = types.TUnknown
		}
	}

	env := &prescan.ModuleEnv{FuncReturns: funcReturns, Tables: tableReg, Closures: closureReg}

	b := &wasm.Builder{}
	imports := registerImports(b)

	e := &Emitter{
		b:         b,
		pool:      pool,
		tables:    tableReg,
		closures:  closureReg,
		imports:   imports,
		funcIndex: make(map[string]int),
		funcDecls: make(map[string]*parser.FuncDecl),
		env:       env,
	}

	nImports := len(b.Imports)
	descs := closureReg.Descriptors()

	// Function index layout: imports, then closures (table slot order,
	// which is assignment order), then user functions in source order,
	// then a synthetic _start if there is any top-level code.
	for i, d := range descs {
		d.FuncIndex = nImports + i
		d.FuncTypeIndex = b.TypeIndex(closureSig(d))
	}

	nextIdx := nImports + len(descs)
	for _, fd := range funcDecls {
		e.funcIndex[fd.Name] = nextIdx
		e.funcDecls[fd.Name] = fd
		nextIdx++
	}

	hasStart := len(topLevel) > 0
	startIdx := -1
	if hasStart {
		startIdx = nextIdx
	}

	// Register function-section entries (type indices) in the same order
	// function bodies will be appended, and build the code section bodies.
	for _, d := range descs {
		b.FuncTypeIdx = append(b.FuncTypeIdx, d.FuncTypeIndex)
	}
	for _, fd := range funcDecls {
		sig := userFuncSig(fd)
		b.FuncTypeIdx = append(b.FuncTypeIdx, b.TypeIndex(sig))
	}
	if hasStart {
		b.FuncTypeIdx = append(b.FuncTypeIdx, b.TypeIndex(wasm.FuncSig{}))
	}

	for _, d := range descs {
		body, err := e.buildClosureBody(d)
		if err != nil {
			return nil, err
		}
		b.FuncBodies = append(b.FuncBodies, body)
	}
	for _, fd := range funcDecls {
		body, err := e.buildUserFuncBody(fd)
		if err != nil {
			return nil, err
		}
		b.FuncBodies = append(b.FuncBodies, body)
	}
	if hasStart {
		body, err := e.buildTopLevelBody(topLevel)
		if err != nil {
			return nil, err
		}
		b.FuncBodies = append(b.FuncBodies, body)
	}

	if len(descs) > 0 {
		b.TableSize = len(descs)
		for _, d := range descs {
			b.Elements = append(b.Elements, d.FuncIndex)
		}
	}

	b.Globals = append(b.Globals, wasm.Global{Type: wasm.ValI32, Mutable: true, InitI32: int32(pool.HeapBase())})
	b.Data = pool.Bytes()

	for _, fd := range funcDecls {
		b.Exports = append(b.Exports, wasm.Export{Name: fd.Name, Kind: wasm.KindFunc, Idx: e.funcIndex[fd.Name]})
	}
	if hasStart {
		b.Exports = append(b.Exports, wasm.Export{Name: "_start", Kind: wasm.KindFunc, Idx: startIdx})
	}
	b.Exports = append(b.Exports, wasm.Export{Name: "memory", Kind: wasm.KindMemory, Idx: 0})
	b.Exports = append(b.Exports, wasm.Export{Name: "__heap_base", Kind: wasm.KindGlobal, Idx: 0})

	return b.Emit(), nil
}

func closureSig(d *closures.Descriptor) wasm.FuncSig {
	params := make([]wasm.ValType, 0, d.ExplicitParamCount+1)
	params = append(params, wasm.ValI32) // env_ptr, 0 if uncaptured
	for i := 0; i < d.ExplicitParamCount; i++ {
		params = append(params, wasm.ValI64)
	}
	return wasm.FuncSig{Params: params, Results: []wasm.ValType{wasm.ValI64}}
}

func userFuncSig(fd *parser.FuncDecl) wasm.FuncSig {
	params := make([]wasm.ValType, len(fd.Params))
	for i := range fd.Params {
		params[i] = wasm.ValI64
	}
	results := make([]wasm.ValType, len(fd.ReturnTypes))
	for i := range fd.ReturnTypes {
		results[i] = wasm.ValI64
	}
	return wasm.FuncSig{Params: params, Results: results}
}

func codegenErr(pos errors.Pos, format string, args ...interface{}) error {
	return errors.New(errors.Codegen, pos, format, args...)
}
