package opcode

// OperandSize describes how an instruction's operand is laid out: either a
// fixed number of bytes, or a size prefix (1/2/4 bytes) giving the length
// of a following variable-length blob (PUSHDATA*).
type OperandSize struct {
	// Fixed is the number of fixed operand bytes following the opcode, or
	// zero if the opcode has a size-prefixed operand instead.
	Fixed int
	// Prefix is the number of bytes in the length prefix of a
	// variable-length operand (0 if Fixed is used instead).
	Prefix int
}

// operandSizes enumerates every opcode whose encoded form carries more than
// the single opcode byte.
var operandSizes = map[Opcode]OperandSize{
	PUSHINT8:   {Fixed: 1},
	PUSHINT16:  {Fixed: 2},
	PUSHINT32:  {Fixed: 4},
	PUSHINT64:  {Fixed: 8},
	PUSHINT128: {Fixed: 16},
	PUSHINT256: {Fixed: 32},
	PUSHA:      {Fixed: 4},
	PUSHDATA1:  {Prefix: 1},
	PUSHDATA2:  {Prefix: 2},
	PUSHDATA4:  {Prefix: 4},

	JMP: {Fixed: 1}, JMPIF: {Fixed: 1}, JMPIFNOT: {Fixed: 1},
	JMPEQ: {Fixed: 1}, JMPNE: {Fixed: 1}, JMPGT: {Fixed: 1}, JMPGE: {Fixed: 1},
	JMPLT: {Fixed: 1}, JMPLE: {Fixed: 1}, CALL: {Fixed: 1},

	JMPL: {Fixed: 4}, JMPIFL: {Fixed: 4}, JMPIFNOTL: {Fixed: 4},
	JMPEQL: {Fixed: 4}, JMPNEL: {Fixed: 4}, JMPGTL: {Fixed: 4}, JMPGEL: {Fixed: 4},
	JMPLTL: {Fixed: 4}, JMPLEL: {Fixed: 4}, CALLL: {Fixed: 4},

	CALLA: {Fixed: 0},

	TRY:  {Fixed: 2},
	TRYL: {Fixed: 8},

	ENDTRY:  {Fixed: 1},
	ENDTRYL: {Fixed: 4},

	SYSCALL: {Fixed: 4},

	INITSSLOT: {Fixed: 1},
	INITSLOT:  {Fixed: 2},
	LDSFLD:    {Fixed: 1}, STSFLD: {Fixed: 1},
	LDLOC: {Fixed: 1}, STLOC: {Fixed: 1},
	LDARG: {Fixed: 1}, STARG: {Fixed: 1},

	NEWARRAYT: {Fixed: 1},
	ISTYPE:    {Fixed: 1},
	CONVERT:   {Fixed: 1},
}

// Operand returns the operand layout for o. Opcodes with no entry carry no
// operand at all (just the single opcode byte).
func Operand(o Opcode) OperandSize {
	return operandSizes[o]
}
