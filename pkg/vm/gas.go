package vm

import "github.com/noriachain/neonode/pkg/vm/opcode"

// Fixed per-opcode GAS prices (§4.5), in the same "datoshi" unit as Fixed8
// fractions used elsewhere in the protocol. Opcodes not listed default to
// opcodePriceLow.
const (
	opcodePriceLow    int64 = 1 << 0
	opcodePriceMedium int64 = 1 << 3
	opcodePriceHigh   int64 = 1 << 5
	opcodePriceVeryHigh int64 = 1 << 10
	opcodePriceStorage  int64 = 1 << 15
)

var opcodePrices = map[opcode.Opcode]int64{
	opcode.PUSHA:    opcodePriceMedium,
	opcode.NEWBUFFER: opcodePriceMedium,
	opcode.MEMCPY:    opcodePriceMedium,
	opcode.CAT:       opcodePriceMedium,
	opcode.SUBSTR:    opcodePriceMedium,
	opcode.LEFT:      opcodePriceMedium,
	opcode.RIGHT:     opcodePriceMedium,
	opcode.INVERT:    opcodePriceLow,
	opcode.AND:       opcodePriceMedium,
	opcode.OR:        opcodePriceMedium,
	opcode.XOR:       opcodePriceMedium,
	opcode.EQUAL:     opcodePriceMedium,
	opcode.NOTEQUAL:  opcodePriceMedium,
	opcode.MUL:       opcodePriceMedium,
	opcode.DIV:       opcodePriceMedium,
	opcode.MOD:       opcodePriceMedium,
	opcode.POW:       opcodePriceHigh,
	opcode.SQRT:      opcodePriceHigh,
	opcode.PACK:      opcodePriceMedium,
	opcode.UNPACK:    opcodePriceMedium,
	opcode.NEWARRAY:  opcodePriceMedium,
	opcode.NEWARRAYT: opcodePriceMedium,
	opcode.NEWSTRUCT: opcodePriceMedium,
	opcode.NEWMAP:    opcodePriceLow,
	opcode.KEYS:      opcodePriceMedium,
	opcode.VALUES:    opcodePriceVeryHigh,
	opcode.PICKITEM:  opcodePriceMedium,
	opcode.APPEND:    opcodePriceVeryHigh,
	opcode.SETITEM:   opcodePriceVeryHigh,
	opcode.REVERSEITEMS: opcodePriceVeryHigh,
	opcode.REMOVE:    opcodePriceVeryHigh,
	opcode.CALL:      opcodePriceMedium,
	opcode.CALLL:     opcodePriceMedium,
	opcode.CALLA:     opcodePriceMedium,
	opcode.THROW:     opcodePriceLow,
	opcode.SYSCALL:   0, // a handler charges through AddGas itself, if at all
}

// OpcodePrice returns the fixed gas cost of executing o. Variable-size
// allocations such as NEWARRAY/NEWBUFFER carry no per-byte surcharge.
func OpcodePrice(o opcode.Opcode) int64 {
	if p, ok := opcodePrices[o]; ok {
		return p
	}
	return opcodePriceLow
}
