package vm

import (
	"encoding/binary"

	"github.com/noriachain/neonode/pkg/vm/opcode"
	"github.com/noriachain/neonode/pkg/vm/stackitem"
)

// TryState tracks where a TRY/CATCH/FINALLY region's execution currently
// sits, so ENDTRY/ENDFINALLY know whether to resume an in-flight exception.
type TryState int

const (
	tryNone TryState = iota
	tryTry
	tryCatch
	tryFinally
)

// TryContext is one entry of a context's try-block stack (§4.4's
// TRY/ENDTRY/ENDFINALLY handling).
type TryContext struct {
	CatchOffset   int
	FinallyOffset int
	EndOffset     int
	State         TryState
	HasCatch      bool
	HasFinally    bool
}

// ExecutionContext is one invocation frame: a script plus its instruction
// pointer, evaluation stack, static/local/argument slots and try-region
// stack (§4.4).
type ExecutionContext struct {
	script       []byte
	ip           int
	estack       *Stack
	statics      []*Element
	locals       []*Element
	args         []*Element
	tryStack     []*TryContext
	scriptHash   []byte
	callFlags    byte
	rvcount      int
}

// NewExecutionContext creates a frame over script with its own evaluation
// stack, starting at instruction 0.
func NewExecutionContext(script []byte) *ExecutionContext {
	return &ExecutionContext{
		script: script,
		estack: NewStack(),
	}
}

// Script returns the frame's code.
func (c *ExecutionContext) Script() []byte { return c.script }

// IP returns the current instruction pointer.
func (c *ExecutionContext) IP() int { return c.ip }

// Estack returns the frame-local evaluation stack.
func (c *ExecutionContext) Estack() *Stack { return c.estack }

// AtEnd reports whether ip has run past the end of the script.
func (c *ExecutionContext) AtEnd() bool { return c.ip >= len(c.script) }

// ScriptHash returns the hash this frame was loaded under, as set by
// LoadScriptWithFlags.
func (c *ExecutionContext) ScriptHash() []byte { return c.scriptHash }

// CallFlags returns the permission bitmask this frame was loaded with.
func (c *ExecutionContext) CallFlags() byte { return c.callFlags }

// NextInstruction returns the opcode at ip without advancing, or RET if ip
// is past the end (mirrors a script falling through its final byte).
func (c *ExecutionContext) NextInstruction() opcode.Opcode {
	if c.AtEnd() {
		return opcode.RET
	}
	return opcode.Opcode(c.script[c.ip])
}

func (c *ExecutionContext) readByte() (byte, error) {
	if c.ip >= len(c.script) {
		return 0, errInvalidJump
	}
	b := c.script[c.ip]
	c.ip++
	return b, nil
}

func (c *ExecutionContext) readBytes(n int) ([]byte, error) {
	if c.ip+n > len(c.script) {
		return nil, errInvalidJump
	}
	b := c.script[c.ip : c.ip+n]
	c.ip += n
	return b, nil
}

func (c *ExecutionContext) readI8() (int8, error) {
	b, err := c.readByte()
	return int8(b), err
}

func (c *ExecutionContext) readI32() (int32, error) {
	b, err := c.readBytes(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (c *ExecutionContext) readU16() (uint16, error) {
	b, err := c.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Jump sets ip to an absolute offset within the script, validating bounds.
func (c *ExecutionContext) Jump(offset int) error {
	if offset < 0 || offset > len(c.script) {
		return errInvalidJump
	}
	c.ip = offset
	return nil
}

// initSlots allocates n elements, each defaulting to Null, for one of the
// statics/locals/args slot groups.
func initSlots(n int) []*Element {
	if n == 0 {
		return nil
	}
	s := make([]*Element, n)
	for i := range s {
		s[i] = &Element{value: stackitem.Null{}}
	}
	return s
}

// InitStatics allocates the static-field slot group (INITSSLOT).
func (c *ExecutionContext) InitStatics(n int) { c.statics = initSlots(n) }

// InitSlots allocates the local and argument slot groups (INITSLOT).
func (c *ExecutionContext) InitSlots(locals, args int) {
	c.locals = initSlots(locals)
	c.args = initSlots(args)
}

func slotGet(slots []*Element, i int) (*Element, error) {
	if slots == nil {
		return nil, errSlotNotInit
	}
	if i < 0 || i >= len(slots) {
		return nil, errSlotIndexRange
	}
	return slots[i], nil
}

func slotSet(slots []*Element, i int, item stackitem.Item) error {
	if slots == nil {
		return errSlotNotInit
	}
	if i < 0 || i >= len(slots) {
		return errSlotIndexRange
	}
	slots[i] = &Element{value: item}
	return nil
}

// Static returns the i-th static field slot.
func (c *ExecutionContext) Static(i int) (*Element, error) { return slotGet(c.statics, i) }

// SetStatic overwrites the i-th static field slot.
func (c *ExecutionContext) SetStatic(i int, item stackitem.Item) error {
	return slotSet(c.statics, i, item)
}

// Local returns the i-th local variable slot.
func (c *ExecutionContext) Local(i int) (*Element, error) { return slotGet(c.locals, i) }

// SetLocal overwrites the i-th local variable slot.
func (c *ExecutionContext) SetLocal(i int, item stackitem.Item) error {
	return slotSet(c.locals, i, item)
}

// Arg returns the i-th argument slot.
func (c *ExecutionContext) Arg(i int) (*Element, error) { return slotGet(c.args, i) }

// SetArg overwrites the i-th argument slot.
func (c *ExecutionContext) SetArg(i int, item stackitem.Item) error {
	return slotSet(c.args, i, item)
}

// PushTry enters a new try region.
func (c *ExecutionContext) PushTry(tc *TryContext) { c.tryStack = append(c.tryStack, tc) }

// CurrentTry returns the innermost active try region, or nil.
func (c *ExecutionContext) CurrentTry() *TryContext {
	if len(c.tryStack) == 0 {
		return nil
	}
	return c.tryStack[len(c.tryStack)-1]
}

// PopTry leaves the innermost try region.
func (c *ExecutionContext) PopTry() {
	if len(c.tryStack) == 0 {
		return
	}
	c.tryStack = c.tryStack[:len(c.tryStack)-1]
}

// Clone returns a new frame sharing the same script and scriptHash but
// with a fresh evaluation stack and slot groups, used by CALL-family
// opcodes to start a nested invocation (§4.4).
func (c *ExecutionContext) Clone() *ExecutionContext {
	return &ExecutionContext{
		script:     c.script,
		scriptHash: c.scriptHash,
		callFlags:  c.callFlags,
		estack:     NewStack(),
	}
}
