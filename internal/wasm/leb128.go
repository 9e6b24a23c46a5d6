// Package wasm assembles the target module format: a standard WebAssembly
// 1.0 binary container (magic, version, then fixed-order sections) plus the
// 128-bit SIMD opcodes the code emitter needs for inline vector/matrix ops.
package wasm

// EncodeU encodes an unsigned LEB128 varint.
func EncodeU(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}

// EncodeS encodes a signed LEB128 varint.
func EncodeS(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

// EncodeF64Bits encodes an IEEE-754 double's bit pattern in little-endian
// byte order, as used by the f64.const immediate.
func EncodeF64Bits(bits uint64) []byte {
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(bits >> (8 * i))
	}
	return out
}

// EncodeVector prepends a LEB128 element count to an already-encoded
// sequence of elements.
func EncodeVector(count int, contents []byte) []byte {
	out := EncodeU(uint64(count))
	return append(out, contents...)
}

// EncodeSection frames a section body with its id byte and LEB128 byte
// length, per the module binary layout (magic, version, then sections in
// fixed order).
func EncodeSection(id SectionID, body []byte) []byte {
	out := []byte{byte(id)}
	out = append(out, EncodeU(uint64(len(body)))...)
	return append(out, body...)
}

// EncodeName encodes a UTF-8 string as a length-prefixed vector of bytes,
// the shape used for import/export names.
func EncodeName(s string) []byte {
	return EncodeVector(len(s), []byte(s))
}
