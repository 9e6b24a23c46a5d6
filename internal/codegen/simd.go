package codegen

import "vela/internal/wasm"

// Fixed roles inside the SIMDHelperSlots scratch block every function
// reserves (spec.md §4.8.5): since inline vector code never executes two
// such ops concurrently, one block is reused for every call site in the
// function body. dims holds the packed value's low 32 bits verbatim (a
// Vec's length, or a Mat's rows<<16|cols) so the output packing can just
// copy it back rather than re-deriving it.
const (
	simdLeftPacked = iota
	simdRightPacked
	simdOutPacked
	simdLength
	simdCursor
	simdLeftPtr
	simdRightPtr
	simdOutPtr
	simdDims
	simdScalar
)

// bumpAlloc is the only allocation primitive available to the emitter: it
// saves the current __heap_base (global 0) into ptrSlot as an i64, then
// advances the global by the i32 byte count emitSize leaves on the stack
// (spec.md §3, §4.8.3 -- there is no host-side allocator import).
func (fe *fnEmitter) bumpAlloc(ptrSlot uint64, emitSize func()) {
	fe.fb.EmitOp(wasm.OpGlobalGet)
	fe.fb.EmitU32(0)
	fe.fb.EmitOp(wasm.OpI64ExtendI32U)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(ptrSlot)

	fe.fb.EmitOp(wasm.OpGlobalGet)
	fe.fb.EmitU32(0)
	emitSize()
	fe.fb.EmitOp(wasm.OpI32Add)
	fe.fb.EmitOp(wasm.OpGlobalSet)
	fe.fb.EmitU32(0)
}

// loadDims splits a packed value already sitting in packedSlot into dims
// (the low 32 bits, copied verbatim) and length (the element count a loop
// should iterate: dims itself for a Vec, rows*cols for a Mat).
func (fe *fnEmitter) loadDims(packedSlot uint64, isMat bool, dimsSlot, lengthSlot uint64) {
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(packedSlot)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(0xffffffff)
	fe.fb.EmitOp(wasm.OpI64And)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(dimsSlot)

	if !isMat {
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(dimsSlot)
		fe.fb.EmitOp(wasm.OpLocalSet)
		fe.fb.EmitU32(lengthSlot)
		return
	}
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(dimsSlot)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(16)
	fe.fb.EmitOp(wasm.OpI64ShrU)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(dimsSlot)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(0xffff)
	fe.fb.EmitOp(wasm.OpI64And)
	fe.fb.EmitOp(wasm.OpI64Mul)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(lengthSlot)
}

// loadPtr extracts the pointer (upper 32 bits) out of a packed value
// already sitting in packedSlot.
func (fe *fnEmitter) loadPtr(packedSlot, ptrSlot uint64) {
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(packedSlot)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(32)
	fe.fb.EmitOp(wasm.OpI64ShrU)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(ptrSlot)
}

// allocOutBuffer bump-allocates length*8 bytes for an output buffer and
// repacks it with dims, leaving nothing on the stack.
func (fe *fnEmitter) allocOutBuffer(lengthSlot, dimsSlot, outPtrSlot, outPackedSlot uint64) {
	fe.bumpAlloc(outPtrSlot, func() {
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(lengthSlot)
		fe.fb.EmitOp(wasm.OpI64Const)
		fe.fb.EmitS64(8)
		fe.fb.EmitOp(wasm.OpI64Mul)
		fe.fb.EmitOp(wasm.OpI32WrapI64)
	})

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(outPtrSlot)
	fe.fb.EmitOp(wasm.OpI64ExtendI32U)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(32)
	fe.fb.EmitOp(wasm.OpI64Shl)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(dimsSlot)
	fe.fb.EmitOp(wasm.OpI64Or)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(outPackedSlot)
}

// vecBinary lowers an elementwise Vec/Mat arithmetic op to a paired f64x2
// SIMD loop over a freshly bump-allocated result buffer, with a scalar
// tail for an odd trailing element (spec.md §4.8.5). left and right are
// already on the stack as packed values when this is called; isMat picks
// the Mat-shaped dims->length derivation (rows*cols) over a Vec's plain
// length.
func (fe *fnEmitter) vecBinary(op byte, isMat bool) {
	base := fe.fc.SIMDBase
	slot := func(i int) uint64 { return uint64(fe.localIdx(base + i)) }

	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(slot(simdRightPacked))
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(slot(simdLeftPacked))

	fe.loadDims(slot(simdLeftPacked), isMat, slot(simdDims), slot(simdLength))
	fe.loadPtr(slot(simdLeftPacked), slot(simdLeftPtr))
	fe.loadPtr(slot(simdRightPacked), slot(simdRightPtr))
	fe.allocOutBuffer(slot(simdLength), slot(simdDims), slot(simdOutPtr), slot(simdOutPacked))

	// i = 0
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(0)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(slot(simdCursor))

	fe.fb.EmitOp(wasm.OpBlock)
	fe.fb.EmitByte(0x40)
	fe.fb.EmitOp(wasm.OpLoop)
	fe.fb.EmitByte(0x40)

	// if i + 1 >= length: break
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(slot(simdCursor))
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(1)
	fe.fb.EmitOp(wasm.OpI64Add)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(slot(simdLength))
	fe.fb.EmitOp(wasm.OpI64GeS)
	fe.fb.EmitOp(wasm.OpBrIf)
	fe.fb.EmitU32(1)

	// store's operand order is [addr, value]; compute the destination
	// address first so the lanes land on top once both loads and the op
	// have run.
	fe.emitAddr(slot(simdOutPtr), slot(simdCursor))

	fe.emitAddr(slot(simdLeftPtr), slot(simdCursor))
	fe.fb.EmitOp(wasm.OpSIMDPrefix)
	fe.fb.EmitU32(wasm.SIMDV128Load)
	fe.fb.EmitU32(3)
	fe.fb.EmitU32(0)

	fe.emitAddr(slot(simdRightPtr), slot(simdCursor))
	fe.fb.EmitOp(wasm.OpSIMDPrefix)
	fe.fb.EmitU32(wasm.SIMDV128Load)
	fe.fb.EmitU32(3)
	fe.fb.EmitU32(0)

	fe.fb.EmitOp(wasm.OpSIMDPrefix)
	fe.fb.EmitU32(simdOpFor(op))

	fe.fb.EmitOp(wasm.OpSIMDPrefix)
	fe.fb.EmitU32(wasm.SIMDV128Store)
	fe.fb.EmitU32(3)
	fe.fb.EmitU32(0)

	// i += 2
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(slot(simdCursor))
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(2)
	fe.fb.EmitOp(wasm.OpI64Add)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(slot(simdCursor))
	fe.fb.EmitOp(wasm.OpBr)
	fe.fb.EmitU32(0)
	fe.fb.EmitOp(wasm.OpEnd) // loop
	fe.fb.EmitOp(wasm.OpEnd) // block

	// scalar tail: if cursor < length, one f64 op on the last element
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(slot(simdCursor))
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(slot(simdLength))
	fe.fb.EmitOp(wasm.OpI64LtS)
	fe.fb.EmitOp(wasm.OpIf)
	fe.fb.EmitByte(0x40)

	fe.emitAddr(slot(simdOutPtr), slot(simdCursor))
	fe.emitAddr(slot(simdLeftPtr), slot(simdCursor))
	fe.fb.EmitOp(wasm.OpF64Load)
	fe.fb.EmitU32(3)
	fe.fb.EmitU32(0)
	fe.emitAddr(slot(simdRightPtr), slot(simdCursor))
	fe.fb.EmitOp(wasm.OpF64Load)
	fe.fb.EmitU32(3)
	fe.fb.EmitU32(0)
	fe.fb.EmitOp(scalarOpFor(op))
	fe.fb.EmitOp(wasm.OpF64Store)
	fe.fb.EmitU32(3)
	fe.fb.EmitU32(0)

	fe.fb.EmitOp(wasm.OpEnd) // if

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(slot(simdOutPacked))
}

// scalarBroadcast lowers container-op-scalar to the same paired-splat
// loop shape as vecBinary, but the right-hand operand is a bare f64
// rather than a second packed buffer: vec+/-/*//scalar and mat*scalar
// have no host helper in the fixed import surface, so they always lower
// inline (spec.md §4.8.5). The scalar is re-splatted every iteration
// rather than cached in a declared v128 local, to stay inside the
// existing i64-only scratch block.
func (fe *fnEmitter) scalarBroadcast(op byte, isMat bool) {
	base := fe.fc.SIMDBase
	slot := func(i int) uint64 { return uint64(fe.localIdx(base + i)) }

	// simdScalar is an i64 local like every other scratch slot, so the raw
	// f64 scalar is boxed going in and unboxed at each point of use below.
	fe.fb.EmitOp(wasm.OpI64ReinterpretF64)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(slot(simdScalar))
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(slot(simdLeftPacked))

	fe.loadDims(slot(simdLeftPacked), isMat, slot(simdDims), slot(simdLength))
	fe.loadPtr(slot(simdLeftPacked), slot(simdLeftPtr))
	fe.allocOutBuffer(slot(simdLength), slot(simdDims), slot(simdOutPtr), slot(simdOutPacked))

	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(0)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(slot(simdCursor))

	fe.fb.EmitOp(wasm.OpBlock)
	fe.fb.EmitByte(0x40)
	fe.fb.EmitOp(wasm.OpLoop)
	fe.fb.EmitByte(0x40)

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(slot(simdCursor))
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(1)
	fe.fb.EmitOp(wasm.OpI64Add)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(slot(simdLength))
	fe.fb.EmitOp(wasm.OpI64GeS)
	fe.fb.EmitOp(wasm.OpBrIf)
	fe.fb.EmitU32(1)

	fe.emitAddr(slot(simdOutPtr), slot(simdCursor))
	fe.emitAddr(slot(simdLeftPtr), slot(simdCursor))
	fe.fb.EmitOp(wasm.OpSIMDPrefix)
	fe.fb.EmitU32(wasm.SIMDV128Load)
	fe.fb.EmitU32(3)
	fe.fb.EmitU32(0)

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(slot(simdScalar))
	fe.fb.EmitOp(wasm.OpF64ReinterpretI64)
	fe.fb.EmitOp(wasm.OpSIMDPrefix)
	fe.fb.EmitU32(wasm.SIMDF64x2Splat)

	fe.fb.EmitOp(wasm.OpSIMDPrefix)
	fe.fb.EmitU32(simdOpFor(op))

	fe.fb.EmitOp(wasm.OpSIMDPrefix)
	fe.fb.EmitU32(wasm.SIMDV128Store)
	fe.fb.EmitU32(3)
	fe.fb.EmitU32(0)

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(slot(simdCursor))
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(2)
	fe.fb.EmitOp(wasm.OpI64Add)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(slot(simdCursor))
	fe.fb.EmitOp(wasm.OpBr)
	fe.fb.EmitU32(0)
	fe.fb.EmitOp(wasm.OpEnd) // loop
	fe.fb.EmitOp(wasm.OpEnd) // block

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(slot(simdCursor))
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(slot(simdLength))
	fe.fb.EmitOp(wasm.OpI64LtS)
	fe.fb.EmitOp(wasm.OpIf)
	fe.fb.EmitByte(0x40)

	fe.emitAddr(slot(simdOutPtr), slot(simdCursor))
	fe.emitAddr(slot(simdLeftPtr), slot(simdCursor))
	fe.fb.EmitOp(wasm.OpF64Load)
	fe.fb.EmitU32(3)
	fe.fb.EmitU32(0)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(slot(simdScalar))
	fe.fb.EmitOp(wasm.OpF64ReinterpretI64)
	fe.fb.EmitOp(scalarOpFor(op))
	fe.fb.EmitOp(wasm.OpF64Store)
	fe.fb.EmitU32(3)
	fe.fb.EmitU32(0)

	fe.fb.EmitOp(wasm.OpEnd) // if

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(slot(simdOutPacked))
}

// vecDot lowers `a @ b` and `dot(a, b)` to an inline multiply-accumulate loop over the
// two operands' flat f64 storage, returning a raw f64 boxed back to the
// wire i64 form (spec.md §4.8.3: "`@`: inline dot product"). Every wasm
// local in a function body is i64 (no exception is carved out for a v128
// scratch register), so the accumulation works lane-at-a-time rather than
// through a v128 multiply -- still zero host calls, matching the "no
// `dot` import" requirement.
func (fe *fnEmitter) vecDot() {
	base := fe.fc.SIMDBase
	slot := func(i int) uint64 { return uint64(fe.localIdx(base + i)) }
	accSlot := slot(simdScalar) // running f64 accumulator

	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(slot(simdRightPacked))
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(slot(simdLeftPacked))

	fe.loadDims(slot(simdLeftPacked), false, slot(simdDims), slot(simdLength))
	fe.loadPtr(slot(simdLeftPacked), slot(simdLeftPtr))
	fe.loadPtr(slot(simdRightPacked), slot(simdRightPtr))

	fe.fb.EmitOp(wasm.OpF64Const)
	fe.fb.EmitF64Bits(0)
	fe.fb.EmitOp(wasm.OpI64ReinterpretF64)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(accSlot)

	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(0)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(slot(simdCursor))

	fe.fb.EmitOp(wasm.OpBlock)
	fe.fb.EmitByte(0x40)
	fe.fb.EmitOp(wasm.OpLoop)
	fe.fb.EmitByte(0x40)

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(slot(simdCursor))
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(slot(simdLength))
	fe.fb.EmitOp(wasm.OpI64GeS)
	fe.fb.EmitOp(wasm.OpBrIf)
	fe.fb.EmitU32(1)

	fe.emitAddr(slot(simdLeftPtr), slot(simdCursor))
	fe.fb.EmitOp(wasm.OpF64Load)
	fe.fb.EmitU32(3)
	fe.fb.EmitU32(0)
	fe.emitAddr(slot(simdRightPtr), slot(simdCursor))
	fe.fb.EmitOp(wasm.OpF64Load)
	fe.fb.EmitU32(3)
	fe.fb.EmitU32(0)
	fe.fb.EmitOp(wasm.OpF64Mul)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(accSlot)
	fe.fb.EmitOp(wasm.OpF64ReinterpretI64)
	fe.fb.EmitOp(wasm.OpF64Add)
	fe.fb.EmitOp(wasm.OpI64ReinterpretF64)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(accSlot)

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(slot(simdCursor))
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(1)
	fe.fb.EmitOp(wasm.OpI64Add)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(slot(simdCursor))
	fe.fb.EmitOp(wasm.OpBr)
	fe.fb.EmitU32(0)
	fe.fb.EmitOp(wasm.OpEnd) // loop
	fe.fb.EmitOp(wasm.OpEnd) // block

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(accSlot)
}

// vecCross lowers `a # b` and `cross(a, b)` to nine unrolled scalar f64 ops -- no
// loop, per spec.md §4.8.5 -- producing a freshly allocated 3-element Vec.
func (fe *fnEmitter) vecCross() {
	base := fe.fc.SIMDBase
	slot := func(i int) uint64 { return uint64(fe.localIdx(base + i)) }

	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(slot(simdRightPacked))
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(slot(simdLeftPacked))
	fe.loadPtr(slot(simdLeftPacked), slot(simdLeftPtr))
	fe.loadPtr(slot(simdRightPacked), slot(simdRightPtr))

	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(3)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(slot(simdLength))
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(3)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(slot(simdDims))
	fe.bumpAlloc(slot(simdOutPtr), func() {
		fe.fb.EmitOp(wasm.OpI32Const)
		fe.fb.EmitS64(24)
	})

	lane := func(ptrSlot uint64, i int64) {
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(ptrSlot)
		fe.fb.EmitOp(wasm.OpF64Load)
		fe.fb.EmitU32(3)
		fe.fb.EmitU32(uint64(i * 8))
	}
	store := func(i int64, emitValue func()) {
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(slot(simdOutPtr))
		emitValue()
		fe.fb.EmitOp(wasm.OpF64Store)
		fe.fb.EmitU32(3)
		fe.fb.EmitU32(uint64(i * 8))
	}
	// cx = ay*bz - az*by
	store(0, func() {
		lane(slot(simdLeftPtr), 1)
		lane(slot(simdRightPtr), 2)
		fe.fb.EmitOp(wasm.OpF64Mul)
		lane(slot(simdLeftPtr), 2)
		lane(slot(simdRightPtr), 1)
		fe.fb.EmitOp(wasm.OpF64Mul)
		fe.fb.EmitOp(wasm.OpF64Sub)
	})
	// cy = az*bx - ax*bz
	store(1, func() {
		lane(slot(simdLeftPtr), 2)
		lane(slot(simdRightPtr), 0)
		fe.fb.EmitOp(wasm.OpF64Mul)
		lane(slot(simdLeftPtr), 0)
		lane(slot(simdRightPtr), 2)
		fe.fb.EmitOp(wasm.OpF64Mul)
		fe.fb.EmitOp(wasm.OpF64Sub)
	})
	// cz = ax*by - ay*bx
	store(2, func() {
		lane(slot(simdLeftPtr), 0)
		lane(slot(simdRightPtr), 1)
		fe.fb.EmitOp(wasm.OpF64Mul)
		lane(slot(simdLeftPtr), 1)
		lane(slot(simdRightPtr), 0)
		fe.fb.EmitOp(wasm.OpF64Mul)
		fe.fb.EmitOp(wasm.OpF64Sub)
	})

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(slot(simdOutPtr))
	fe.fb.EmitOp(wasm.OpI64ExtendI32U)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(32)
	fe.fb.EmitOp(wasm.OpI64Shl)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(3)
	fe.fb.EmitOp(wasm.OpI64Or)
}

// matMulMat lowers `mat * mat` to an inline triple-nested-loop multiply
// (spec.md §4.8.5): row-major i*K+k / k*N+j indexing, one f64 multiply-add
// per inner step. left is M*K, right is K*N, result is M*N.
func (fe *fnEmitter) matMulMat() {
	fe.matMulImpl(false)
}

// matMulVec lowers `mat * vec` the same way, with N fixed at 1.
func (fe *fnEmitter) matMulVec() {
	fe.matMulImpl(true)
}

// matMulImpl is shared by matMulMat and matMulVec: asVec picks a plain Vec
// result (N=1, packed as (ptr<<32)|rows) over a Mat result.
func (fe *fnEmitter) matMulImpl(asVec bool) {
	base := fe.fc.SIMDBase
	s := func(i int) uint64 { return uint64(fe.localIdx(base + i)) }
	leftPacked, rightPacked := s(0), s(1)
	leftPtr, rightPtr, outPtr := s(2), s(3), s(4)
	mRows, kDim, nCols := s(5), s(6), s(7)
	i, j, k := s(8), s(9), s(10)
	acc := s(11)

	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(rightPacked)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(leftPacked)
	fe.loadPtr(leftPacked, leftPtr)
	fe.loadPtr(rightPacked, rightPtr)

	// mRows = (leftPacked & 0xffffffff) >> 16, kDim = leftPacked & 0xffff
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(leftPacked)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(0xffff0000)
	fe.fb.EmitOp(wasm.OpI64And)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(16)
	fe.fb.EmitOp(wasm.OpI64ShrU)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(mRows)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(leftPacked)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(0xffff)
	fe.fb.EmitOp(wasm.OpI64And)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(kDim)

	if asVec {
		fe.fb.EmitOp(wasm.OpI64Const)
		fe.fb.EmitS64(1)
		fe.fb.EmitOp(wasm.OpLocalSet)
		fe.fb.EmitU32(nCols)
	} else {
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(rightPacked)
		fe.fb.EmitOp(wasm.OpI64Const)
		fe.fb.EmitS64(0xffff)
		fe.fb.EmitOp(wasm.OpI64And)
		fe.fb.EmitOp(wasm.OpLocalSet)
		fe.fb.EmitU32(nCols)
	}

	fe.bumpAlloc(outPtr, func() {
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(mRows)
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(nCols)
		fe.fb.EmitOp(wasm.OpI64Mul)
		fe.fb.EmitOp(wasm.OpI64Const)
		fe.fb.EmitS64(8)
		fe.fb.EmitOp(wasm.OpI64Mul)
		fe.fb.EmitOp(wasm.OpI32WrapI64)
	})

	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(0)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(i)

	fe.fb.EmitOp(wasm.OpBlock)
	fe.fb.EmitByte(0x40)
	fe.fb.EmitOp(wasm.OpLoop) // outer: i
	fe.fb.EmitByte(0x40)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(i)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(mRows)
	fe.fb.EmitOp(wasm.OpI64GeS)
	fe.fb.EmitOp(wasm.OpBrIf)
	fe.fb.EmitU32(1)

	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(0)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(j)
	fe.fb.EmitOp(wasm.OpBlock)
	fe.fb.EmitByte(0x40)
	fe.fb.EmitOp(wasm.OpLoop) // middle: j
	fe.fb.EmitByte(0x40)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(j)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(nCols)
	fe.fb.EmitOp(wasm.OpI64GeS)
	fe.fb.EmitOp(wasm.OpBrIf)
	fe.fb.EmitU32(1)

	fe.fb.EmitOp(wasm.OpF64Const)
	fe.fb.EmitF64Bits(0)
	fe.fb.EmitOp(wasm.OpI64ReinterpretF64)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(acc)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(0)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(k)
	fe.fb.EmitOp(wasm.OpBlock)
	fe.fb.EmitByte(0x40)
	fe.fb.EmitOp(wasm.OpLoop) // inner: k
	fe.fb.EmitByte(0x40)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(k)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(kDim)
	fe.fb.EmitOp(wasm.OpI64GeS)
	fe.fb.EmitOp(wasm.OpBrIf)
	fe.fb.EmitU32(1)

	// acc += left[i*kDim+k] * right[k*nCols+j]
	fe.rowMajorLoad(leftPtr, i, kDim, k)
	fe.rowMajorLoad(rightPtr, k, nCols, j)
	fe.fb.EmitOp(wasm.OpF64Mul)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(acc)
	fe.fb.EmitOp(wasm.OpF64ReinterpretI64)
	fe.fb.EmitOp(wasm.OpF64Add)
	fe.fb.EmitOp(wasm.OpI64ReinterpretF64)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(acc)

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(k)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(1)
	fe.fb.EmitOp(wasm.OpI64Add)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(k)
	fe.fb.EmitOp(wasm.OpBr)
	fe.fb.EmitU32(0)
	fe.fb.EmitOp(wasm.OpEnd) // loop k
	fe.fb.EmitOp(wasm.OpEnd) // block k

	// out[i*nCols+j] = acc
	fe.rowMajorAddr(outPtr, i, nCols, j)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(acc)
	fe.fb.EmitOp(wasm.OpF64ReinterpretI64)
	fe.fb.EmitOp(wasm.OpF64Store)
	fe.fb.EmitU32(3)
	fe.fb.EmitU32(0)

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(j)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(1)
	fe.fb.EmitOp(wasm.OpI64Add)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(j)
	fe.fb.EmitOp(wasm.OpBr)
	fe.fb.EmitU32(0)
	fe.fb.EmitOp(wasm.OpEnd) // loop j
	fe.fb.EmitOp(wasm.OpEnd) // block j

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(i)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(1)
	fe.fb.EmitOp(wasm.OpI64Add)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(i)
	fe.fb.EmitOp(wasm.OpBr)
	fe.fb.EmitU32(0)
	fe.fb.EmitOp(wasm.OpEnd) // loop i
	fe.fb.EmitOp(wasm.OpEnd) // block i

	// result packed value
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(outPtr)
	fe.fb.EmitOp(wasm.OpI64ExtendI32U)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(32)
	fe.fb.EmitOp(wasm.OpI64Shl)
	if asVec {
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(mRows)
		fe.fb.EmitOp(wasm.OpI64Or)
		return
	}
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(mRows)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(16)
	fe.fb.EmitOp(wasm.OpI64Shl)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(nCols)
	fe.fb.EmitOp(wasm.OpI64Or)
	fe.fb.EmitOp(wasm.OpI64Or)
}

// rowMajorLoad loads ptr[rowSlot*strideSlot+colSlot] as f64.
func (fe *fnEmitter) rowMajorLoad(ptrSlot, rowSlot, strideSlot, colSlot uint64) {
	fe.rowMajorAddr(ptrSlot, rowSlot, strideSlot, colSlot)
	fe.fb.EmitOp(wasm.OpF64Load)
	fe.fb.EmitU32(3)
	fe.fb.EmitU32(0)
}

// rowMajorAddr computes the byte address of ptr[rowSlot*strideSlot+colSlot].
func (fe *fnEmitter) rowMajorAddr(ptrSlot, rowSlot, strideSlot, colSlot uint64) {
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(ptrSlot)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(rowSlot)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(strideSlot)
	fe.fb.EmitOp(wasm.OpI64Mul)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(colSlot)
	fe.fb.EmitOp(wasm.OpI64Add)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(8)
	fe.fb.EmitOp(wasm.OpI64Mul)
	fe.fb.EmitOp(wasm.OpI64Add)
	fe.fb.EmitOp(wasm.OpI32WrapI64)
}

// matTranspose lowers `.T`/the postfix `'` operator to an inline
// nested-loop transpose: out[j*rows+i] = in[i*cols+j] (spec.md §4.8.5).
// The operand is already on the stack as a packed value.
func (fe *fnEmitter) matTranspose() {
	base := fe.fc.SIMDBase
	s := func(i int) uint64 { return uint64(fe.localIdx(base + i)) }
	srcPacked, srcPtr, outPtr := s(0), s(1), s(2)
	rows, cols, i, j := s(3), s(4), s(5), s(6)

	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(srcPacked)
	fe.loadPtr(srcPacked, srcPtr)

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(srcPacked)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(0xffff0000)
	fe.fb.EmitOp(wasm.OpI64And)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(16)
	fe.fb.EmitOp(wasm.OpI64ShrU)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(rows)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(srcPacked)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(0xffff)
	fe.fb.EmitOp(wasm.OpI64And)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(cols)

	fe.bumpAlloc(outPtr, func() {
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(rows)
		fe.fb.EmitOp(wasm.OpLocalGet)
		fe.fb.EmitU32(cols)
		fe.fb.EmitOp(wasm.OpI64Mul)
		fe.fb.EmitOp(wasm.OpI64Const)
		fe.fb.EmitS64(8)
		fe.fb.EmitOp(wasm.OpI64Mul)
		fe.fb.EmitOp(wasm.OpI32WrapI64)
	})

	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(0)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(i)
	fe.fb.EmitOp(wasm.OpBlock)
	fe.fb.EmitByte(0x40)
	fe.fb.EmitOp(wasm.OpLoop)
	fe.fb.EmitByte(0x40)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(i)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(rows)
	fe.fb.EmitOp(wasm.OpI64GeS)
	fe.fb.EmitOp(wasm.OpBrIf)
	fe.fb.EmitU32(1)

	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(0)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(j)
	fe.fb.EmitOp(wasm.OpBlock)
	fe.fb.EmitByte(0x40)
	fe.fb.EmitOp(wasm.OpLoop)
	fe.fb.EmitByte(0x40)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(j)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(cols)
	fe.fb.EmitOp(wasm.OpI64GeS)
	fe.fb.EmitOp(wasm.OpBrIf)
	fe.fb.EmitU32(1)

	// out[j*rows+i] = src[i*cols+j]
	fe.rowMajorAddr(outPtr, j, rows, i)
	fe.rowMajorLoad(srcPtr, i, cols, j)
	fe.fb.EmitOp(wasm.OpF64Store)
	fe.fb.EmitU32(3)
	fe.fb.EmitU32(0)

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(j)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(1)
	fe.fb.EmitOp(wasm.OpI64Add)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(j)
	fe.fb.EmitOp(wasm.OpBr)
	fe.fb.EmitU32(0)
	fe.fb.EmitOp(wasm.OpEnd)
	fe.fb.EmitOp(wasm.OpEnd)

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(i)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(1)
	fe.fb.EmitOp(wasm.OpI64Add)
	fe.fb.EmitOp(wasm.OpLocalSet)
	fe.fb.EmitU32(i)
	fe.fb.EmitOp(wasm.OpBr)
	fe.fb.EmitU32(0)
	fe.fb.EmitOp(wasm.OpEnd)
	fe.fb.EmitOp(wasm.OpEnd)

	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(outPtr)
	fe.fb.EmitOp(wasm.OpI64ExtendI32U)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(32)
	fe.fb.EmitOp(wasm.OpI64Shl)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(cols)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(16)
	fe.fb.EmitOp(wasm.OpI64Shl)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(rows)
	fe.fb.EmitOp(wasm.OpI64Or)
	fe.fb.EmitOp(wasm.OpI64Or)
}

// emitAddr computes byte address (i32) = wasm-local(ptrSlot) + wasm-local(idxSlot)*8.
func (fe *fnEmitter) emitAddr(ptrSlot, idxSlot uint64) {
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(ptrSlot)
	fe.fb.EmitOp(wasm.OpLocalGet)
	fe.fb.EmitU32(idxSlot)
	fe.fb.EmitOp(wasm.OpI64Const)
	fe.fb.EmitS64(8)
	fe.fb.EmitOp(wasm.OpI64Mul)
	fe.fb.EmitOp(wasm.OpI64Add)
	fe.fb.EmitOp(wasm.OpI32WrapI64)
}

func simdOpFor(op byte) uint64 {
	switch op {
	case '+':
		return wasm.SIMDF64x2Add
	case '-':
		return wasm.SIMDF64x2Sub
	case '*':
		return wasm.SIMDF64x2Mul
	default:
		return wasm.SIMDF64x2Div
	}
}

func scalarOpFor(op byte) byte {
	switch op {
	case '+':
		return wasm.OpF64Add
	case '-':
		return wasm.OpF64Sub
	case '*':
		return wasm.OpF64Mul
	default:
		return wasm.OpF64Div
	}
}
