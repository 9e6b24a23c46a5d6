// Package prescan implements the pre-scan pass (spec.md §4.7): before
// emitting a function body, walk it once to reserve every local slot and
// every temporary group the emitter will need, in the exact order the
// emitter consumes them. The target format requires locals to be declared
// in a single prefix before the function body, so this lets the emitter
// allocate up front while still emitting linear code.
package prescan

import (
	"vela/internal/closures"
	"vela/internal/parser"
	"vela/internal/tables"
	"vela/internal/types"
)

// SIMDHelperSlots is the fixed block of scratch locals every function
// reserves for inline vector/matrix code (spec.md §3 FuncCtx).
const SIMDHelperSlots = 12

type TempGroup struct {
	Slots []int
}

type LoopFrame struct {
	BreakDepth    int
	ContinueDepth int
}

// ModuleEnv is the module-wide, read-only lookup surface every function's
// pre-scan and emission needs: declared function return types, the
// table-type registry and the closure registry. All three are filled and frozen before any function
// body is scanned (spec.md §5 concurrency model).
type ModuleEnv struct {
	FuncReturns map[string]types.Type
	Tables      *tables.Registry
	Closures    *closures.Registry
}

// FuncCtx is the code-gen scratch record for one function (spec.md §3).
//
// LocalTypes is a single, unified WASM local-index space: entries
// [0, len(params)) are the function's explicit parameters (already
// implicit WASM locals, never separately declared), entries
// [len(params), len(params)+SIMDHelperSlots) are the fixed scratch block
// every function reserves for inline vector/matrix code, and everything
// after that is a declared local or pre-scan temp in first-use order.
type FuncCtx struct {
	Locals     map[string]int
	LocalTypes []types.Type
	SIMDBase   int
	NumParams  int

	LoopStack  []LoopFrame
	BlockDepth int

	PowerGroups       []TempGroup
	TimerGroups       []TempGroup
	ClosureCallGroups []TempGroup
	ReturnSaveGroups  []TempGroup
	ClosureEnvSlots   []int
	TableHandleSlots  []int
	VecBaseSlots      []int
	MatBaseSlots      []int
	DestructureSlots  []int

	OwnedTables    map[string]bool
	CapturedTables map[string]bool
	ParamNames     map[string]bool

	// Cursors: advanced by the emitter as it re-walks the same AST and
	// consumes groups in the same order pre-scan produced them.
	powerCursor, timerCursor, closureCallCursor int
	returnCursor, vecCursor, matCursor          int
	tableCursor, envCursor, destructCursor      int

	env *ModuleEnv
}

func newFuncCtx(env *ModuleEnv, params []parser.Param) *FuncCtx {
	fc := &FuncCtx{
		Locals:         make(map[string]int),
		OwnedTables:    make(map[string]bool),
		CapturedTables: make(map[string]bool),
		ParamNames:     make(map[string]bool),
		env:            env,
	}
	for _, p := range params {
		fc.ParamNames[p.Name] = true
	}
	return fc
}

// AllocLocal reserves a slot for a declared variable; first occurrence
// wins, later `var` statements with the same name reuse the slot.
func (fc *FuncCtx) AllocLocal(name string, t types.Type) int {
	if idx, ok := fc.Locals[name]; ok {
		fc.LocalTypes[idx] = t
		return idx
	}
	idx := len(fc.LocalTypes)
	fc.LocalTypes = append(fc.LocalTypes, t)
	fc.Locals[name] = idx
	return idx
}

func (fc *FuncCtx) allocTemp(t types.Type) int {
	idx := len(fc.LocalTypes)
	fc.LocalTypes = append(fc.LocalTypes, t)
	return idx
}

func (fc *FuncCtx) allocGroup(n int, t types.Type) TempGroup {
	g := TempGroup{}
	for i := 0; i < n; i++ {
		g.Slots = append(g.Slots, fc.allocTemp(t))
	}
	return g
}

// SIMDSlot returns the local index of the i'th reserved SIMD scratch slot.
func (fc *FuncCtx) SIMDSlot(i int) int { return fc.SIMDBase + i }

// --- types.Env --------------------------------------------------------

func (fc *FuncCtx) Lookup(name string) (types.Type, bool) {
	idx, ok := fc.Locals[name]
	if !ok {
		return types.TUnknown, false
	}
	return fc.LocalTypes[idx], true
}

func (fc *FuncCtx) FuncReturnType(name string) (types.Type, bool) {
	t, ok := fc.env.FuncReturns[name]
	return t, ok
}

func (fc *FuncCtx) TableFieldType(tableID int, field string) (types.Type, bool) {
	return fc.env.Tables.TableFieldType(tableID, field)
}

// --- cursor consumption (used by the emitter) --------------------------

func (fc *FuncCtx) NextPowerGroup() TempGroup {
	g := fc.PowerGroups[fc.powerCursor]
	fc.powerCursor++
	return g
}

func (fc *FuncCtx) NextTimerGroup() TempGroup {
	g := fc.TimerGroups[fc.timerCursor]
	fc.timerCursor++
	return g
}

func (fc *FuncCtx) NextClosureCallGroup() TempGroup {
	g := fc.ClosureCallGroups[fc.closureCallCursor]
	fc.closureCallCursor++
	return g
}

func (fc *FuncCtx) NextReturnSaveGroup() TempGroup {
	g := fc.ReturnSaveGroups[fc.returnCursor]
	fc.returnCursor++
	return g
}

func (fc *FuncCtx) NextVecBaseSlot() int {
	s := fc.VecBaseSlots[fc.vecCursor]
	fc.vecCursor++
	return s
}

func (fc *FuncCtx) NextMatBaseSlot() int {
	s := fc.MatBaseSlots[fc.matCursor]
	fc.matCursor++
	return s
}

func (fc *FuncCtx) NextTableHandleSlot() int {
	s := fc.TableHandleSlots[fc.tableCursor]
	fc.tableCursor++
	return s
}

func (fc *FuncCtx) NextClosureEnvSlot() int {
	s := fc.ClosureEnvSlots[fc.envCursor]
	fc.envCursor++
	return s
}

func (fc *FuncCtx) NextDestructureSlot() int {
	s := fc.DestructureSlots[fc.destructCursor]
	fc.destructCursor++
	return s
}
