package wasm

// SectionID is the fixed section ordering of the module binary layout.
type SectionID byte

const (
	SectionType     SectionID = 1
	SectionImport   SectionID = 2
	SectionFunction SectionID = 3
	SectionTable    SectionID = 4
	SectionMemory   SectionID = 5
	SectionGlobal   SectionID = 6
	SectionExport   SectionID = 7
	SectionElement  SectionID = 9
	SectionCode     SectionID = 10
	SectionData     SectionID = 11
)

// ValType is a WebAssembly value type byte.
type ValType byte

const (
	ValI32 ValType = 0x7f
	ValI64 ValType = 0x7e
	ValF32 ValType = 0x7d
	ValF64 ValType = 0x7c
	ValV128 ValType = 0x7b
)

const (
	FuncTypeTag byte = 0x60
)

// ExternalKind tags an import/export descriptor.
const (
	KindFunc   byte = 0x00
	KindTable  byte = 0x01
	KindMemory byte = 0x02
	KindGlobal byte = 0x03
)

// Control / variable / numeric opcodes used by the code emitter. Only the
// subset the emitter actually emits is named; anything else is reached via
// EmitByte with a literal.
const (
	OpUnreachable byte = 0x00
	OpNop         byte = 0x01
	OpBlock       byte = 0x02
	OpLoop        byte = 0x03
	OpIf          byte = 0x04
	OpElse        byte = 0x05
	OpEnd         byte = 0x0b
	OpBr          byte = 0x0c
	OpBrIf        byte = 0x0d
	OpReturn      byte = 0x0f
	OpCall        byte = 0x10
	OpCallIndirect byte = 0x11

	OpDrop   byte = 0x1a
	OpSelect byte = 0x1b

	OpLocalGet  byte = 0x20
	OpLocalSet  byte = 0x21
	OpLocalTee  byte = 0x22
	OpGlobalGet byte = 0x23
	OpGlobalSet byte = 0x24

	OpI32Load byte = 0x28
	OpI64Load byte = 0x29
	OpF64Load byte = 0x2b
	OpI32Store byte = 0x36
	OpI64Store byte = 0x37
	OpF64Store byte = 0x39

	OpI32Const byte = 0x41
	OpI64Const byte = 0x42
	OpF32Const byte = 0x43
	OpF64Const byte = 0x44

	OpI32Eqz byte = 0x45
	OpI32Eq  byte = 0x46
	OpI32Ne  byte = 0x47
	OpI64Eqz byte = 0x50
	OpI64Eq  byte = 0x51
	OpI64Ne  byte = 0x52
	OpI64LtS byte = 0x53
	OpI64GtS byte = 0x55
	OpI64LeS byte = 0x57
	OpI64GeS byte = 0x59

	OpF64Eq byte = 0x61
	OpF64Ne byte = 0x62
	OpF64Lt byte = 0x63
	OpF64Gt byte = 0x64
	OpF64Le byte = 0x65
	OpF64Ge byte = 0x66

	OpI32Add        byte = 0x6a
	OpI32WrapI64    byte = 0xa7
	OpI64ExtendI32S byte = 0xac
	OpI64ExtendI32U byte = 0xad
	OpF64ConvertI64S byte = 0xb9
	OpI64TruncF64S  byte = 0xb0
	OpI64ReinterpretF64 byte = 0xbd
	OpF64ReinterpretI64 byte = 0xbf

	OpI64Add byte = 0x7c
	OpI64Sub byte = 0x7d
	OpI64Mul byte = 0x7e
	OpI64DivS byte = 0x7f
	OpI64RemS byte = 0x81
	OpI64And  byte = 0x83
	OpI64Or   byte = 0x84
	OpI64Shl  byte = 0x86
	OpI64ShrU byte = 0x88

	OpF64Add byte = 0xa0
	OpF64Sub byte = 0xa1
	OpF64Mul byte = 0xa2
	OpF64Div byte = 0xa3
)

// The SIMD prefix opcode (0xfd) precedes every 128-bit vector instruction;
// the actual operation is a LEB128 immediate that follows it. Only the
// handful the inline SIMD lowering uses are named.
const (
	OpSIMDPrefix byte = 0xfd

	SIMDV128Load         uint64 = 0
	SIMDV128Store        uint64 = 11
	SIMDF64x2Splat       uint64 = 20
	SIMDF64x2ExtractLane uint64 = 33
	SIMDF64x2ReplaceLane uint64 = 34
	SIMDF64x2Add         uint64 = 240
	SIMDF64x2Sub         uint64 = 241
	SIMDF64x2Mul         uint64 = 242
	SIMDF64x2Div         uint64 = 243
)
