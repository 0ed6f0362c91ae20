// Package emit provides low-level bytecode-construction helpers used by
// tests, native-contract script builders and the consensus signature
// script builder alike - a thin wrapper over io.BinWriter that knows how
// to pick the shortest PUSH-family encoding for a given value.
package emit

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/vm/opcode"
)

// InteropID derives the 4-byte little-endian SYSCALL identifier for an
// interop method name, matching the reference VM's "first four bytes of
// SHA256(name)" convention.
func InteropID(method string) uint32 {
	h := sha256.Sum256([]byte(method))
	return binary.LittleEndian.Uint32(h[:4])
}

// Opcode appends a bare opcode with no operand.
func Opcode(w *vio.BinWriter, op opcode.Opcode) {
	w.WriteU8(byte(op))
}

// Instruction appends op followed by a raw operand.
func Instruction(w *vio.BinWriter, op opcode.Opcode, operand []byte) {
	w.WriteU8(byte(op))
	if len(operand) > 0 {
		w.WriteB(operand)
	}
}

// Bool appends PUSH1 for true and PUSH0 for false.
func Bool(w *vio.BinWriter, b bool) {
	if b {
		Opcode(w, opcode.PUSH1)
	} else {
		Opcode(w, opcode.PUSH0)
	}
}

// Int appends the shortest PUSH-family encoding of n: a dedicated
// PUSHM1..PUSH16 opcode for small values, otherwise PUSHINT8/16/32/64/128/256
// sized to n's minimal two's-complement width.
func Int(w *vio.BinWriter, n int64) {
	if n == -1 {
		Opcode(w, opcode.PUSHM1)
		return
	}
	if n >= 0 && n <= 16 {
		Opcode(w, opcode.PUSH0+opcode.Opcode(n))
		return
	}
	BigInt(w, big.NewInt(n))
}

// BigInt appends the minimally-sized PUSHINT* encoding of n.
func BigInt(w *vio.BinWriter, n *big.Int) {
	if n.IsInt64() && n.Int64() >= -1 && n.Int64() <= 16 {
		Int(w, n.Int64())
		return
	}
	b := encodeSignedLE(n)
	switch {
	case len(b) <= 1:
		Opcode(w, opcode.PUSHINT8)
	case len(b) <= 2:
		Opcode(w, opcode.PUSHINT16)
	case len(b) <= 4:
		Opcode(w, opcode.PUSHINT32)
	case len(b) <= 8:
		Opcode(w, opcode.PUSHINT64)
	case len(b) <= 16:
		Opcode(w, opcode.PUSHINT128)
	default:
		Opcode(w, opcode.PUSHINT256)
	}
	sz := paddedSize(len(b))
	padded := make([]byte, sz)
	copy(padded, b)
	if n.Sign() < 0 {
		for i := len(b); i < sz; i++ {
			padded[i] = 0xff
		}
	}
	w.WriteB(padded)
}

func paddedSize(n int) int {
	switch {
	case n <= 1:
		return 1
	case n <= 2:
		return 2
	case n <= 4:
		return 4
	case n <= 8:
		return 8
	case n <= 16:
		return 16
	default:
		return 32
	}
}

func encodeSignedLE(n *big.Int) []byte {
	if n.Sign() == 0 {
		return []byte{0}
	}
	abs := new(big.Int).Abs(n)
	be := abs.Bytes()
	le := make([]byte, len(be))
	for i, b := range be {
		le[len(be)-1-i] = b
	}
	if n.Sign() > 0 && le[len(le)-1]&0x80 != 0 {
		le = append(le, 0)
	}
	if n.Sign() < 0 {
		carry := 1
		for i := range le {
			v := int(^le[i]&0xff) + carry
			le[i] = byte(v)
			carry = v >> 8
		}
		if le[len(le)-1]&0x80 == 0 {
			le = append(le, 0xff)
		}
	}
	return le
}

// String appends the PUSHDATA encoding of s's UTF-8 bytes.
func String(w *vio.BinWriter, s string) {
	Bytes(w, []byte(s))
}

// Bytes appends the shortest PUSHDATA1/2/4 encoding of b.
func Bytes(w *vio.BinWriter, b []byte) {
	n := len(b)
	switch {
	case n < 0x100:
		Opcode(w, opcode.PUSHDATA1)
		w.WriteU8(byte(n))
	case n < 0x10000:
		Opcode(w, opcode.PUSHDATA2)
		w.WriteU16LE(uint16(n))
	default:
		Opcode(w, opcode.PUSHDATA4)
		w.WriteU32LE(uint32(n))
	}
	w.WriteB(b)
}

// Syscall appends a SYSCALL instruction for the given interop method name,
// hashed the same way the interop dispatch table keys its entries.
func Syscall(w *vio.BinWriter, method string) {
	Opcode(w, opcode.SYSCALL)
	id := InteropID(method)
	w.WriteU32LE(id)
}

// Call appends a CALL_L instruction to an offset that will be patched once
// the target's absolute position is known.
func Call(w *vio.BinWriter, offset int32) {
	Opcode(w, opcode.CALLL)
	w.WriteU32LE(uint32(offset))
}

// Jmp appends op followed by offset as a 4-byte operand, the layout of
// the JMP*_L forms.
func Jmp(w *vio.BinWriter, op opcode.Opcode, offset int32) {
	Opcode(w, op)
	w.WriteU32LE(uint32(offset))
}

// Array appends instructions that build an array of n items already on the
// top of the evaluation stack, in the canonical PACK-based idiom.
func Array(w *vio.BinWriter, n int) {
	Int(w, int64(n))
	Opcode(w, opcode.PACK)
}
