// Package vm implements the stack-based bytecode interpreter that executes
// contract scripts: opcode dispatch, the per-frame evaluation stack and
// slot groups, TRY/CATCH/FINALLY unwinding, SYSCALL dispatch into the host,
// and gas metering (§4.4/§4.5).
package vm

import (
	"fmt"
	"math/big"

	"github.com/noriachain/neonode/pkg/vm/opcode"
	"github.com/noriachain/neonode/pkg/vm/stackitem"
)

// State is the VM's run state.
type State byte

const (
	// StateNone means execution can continue (Run/Step may be called again).
	StateNone State = iota
	// StateHalt means the script ran to completion without error.
	StateHalt
	// StateFault means execution stopped on an unrecovered error.
	StateFault
	// StateBreak means a debugger breakpoint paused execution (unused by
	// the headless node but kept for parity with the reference VM's state
	// machine and for future interactive tooling).
	StateBreak
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateHalt:
		return "HALT"
	case StateFault:
		return "FAULT"
	case StateBreak:
		return "BREAK"
	default:
		return "UNKNOWN"
	}
}

// invocationStack tracks nested ExecutionContext frames (CALL/CALLA push,
// RET pops).
type invocationStack struct {
	frames []*ExecutionContext
}

func (s *invocationStack) Len() int { return len(s.frames) }

func (s *invocationStack) Push(c *ExecutionContext) {
	s.frames = append(s.frames, c)
}

func (s *invocationStack) Pop() *ExecutionContext {
	n := len(s.frames)
	if n == 0 {
		return nil
	}
	c := s.frames[n-1]
	s.frames = s.frames[:n-1]
	return c
}

func (s *invocationStack) Peek(n int) *ExecutionContext {
	idx := len(s.frames) - 1 - n
	if idx < 0 || idx >= len(s.frames) {
		return nil
	}
	return s.frames[idx]
}

// VM executes NeoVM bytecode against an evaluation stack, under a gas
// budget, dispatching SYSCALL instructions to a caller-supplied handler.
type VM struct {
	istack invocationStack
	rstack *Stack // final top-level results, populated when istack empties

	refs *stackitem.RefCounter

	state State
	fault error

	gasConsumed int64
	gasLimit    int64

	// SyscallHandler is invoked for every SYSCALL instruction with the
	// 4-byte interop id read from the operand; it must push its own
	// results onto v.Estack() and call v.AddGas for any interop price.
	SyscallHandler func(v *VM, id uint32) error
}

// New returns a VM with no gas limit (the caller should set one via
// SetGasLimit before Run for untrusted scripts).
func New() *VM {
	return &VM{
		rstack: NewStack(),
		refs:   stackitem.New(),
		gasLimit: -1,
	}
}

// SetGasLimit bounds total gas consumption; a negative limit means
// unbounded.
func (v *VM) SetGasLimit(limit int64) { v.gasLimit = limit }

// GasConsumed returns the running gas total.
func (v *VM) GasConsumed() int64 { return v.gasConsumed }

// State returns the current run state.
func (v *VM) State() State { return v.state }

// FaultException returns the error that caused a Fault state, if any.
func (v *VM) FaultException() error { return v.fault }

// RefCounter exposes the item liveness tracker shared by every frame's
// evaluation stack (§4.3).
func (v *VM) RefCounter() *stackitem.RefCounter { return v.refs }

// Load pushes a new top-level invocation frame over script.
func (v *VM) Load(script []byte) *ExecutionContext {
	ctx := NewExecutionContext(script)
	v.istack.Push(ctx)
	return ctx
}

// LoadScriptWithFlags pushes a frame tagged with callFlags and scriptHash,
// used by CALL-family opcodes and by the contract-invocation boundary to
// track permission scoping (§4.4, §C).
func (v *VM) LoadScriptWithFlags(script, scriptHash []byte, callFlags byte) *ExecutionContext {
	ctx := v.Load(script)
	ctx.scriptHash = scriptHash
	ctx.callFlags = callFlags
	return ctx
}

// Context returns the currently executing frame, or nil if the invocation
// stack is empty.
func (v *VM) Context() *ExecutionContext { return v.istack.Peek(0) }

// Istack exposes the invocation stack depth for diagnostics.
func (v *VM) Istack() int { return v.istack.Len() }

// CurrentScriptHash is the script hash of the currently executing frame.
func (v *VM) CurrentScriptHash() []byte {
	if c := v.Context(); c != nil {
		return c.ScriptHash()
	}
	return nil
}

// CallingScriptHash is the script hash of the frame that CALLed into the
// current one, or nil at the entry frame.
func (v *VM) CallingScriptHash() []byte {
	if c := v.istack.Peek(1); c != nil {
		return c.ScriptHash()
	}
	return nil
}

// EntryScriptHash is the script hash of the bottommost (first-loaded)
// invocation frame.
func (v *VM) EntryScriptHash() []byte {
	if c := v.istack.Peek(v.istack.Len() - 1); c != nil {
		return c.ScriptHash()
	}
	return nil
}

// Estack returns the current frame's evaluation stack, or the top-level
// result stack if no frame is executing (post-Halt inspection).
func (v *VM) Estack() *Stack {
	if c := v.Context(); c != nil {
		return c.estack
	}
	return v.rstack
}

// AddGas charges price against the gas budget, faulting the VM and
// returning false if the budget would be exceeded.
func (v *VM) AddGas(price int64) bool {
	if v.gasLimit >= 0 && v.gasConsumed+price > v.gasLimit {
		v.throwFault(errGasLimitExceeded)
		return false
	}
	v.gasConsumed += price
	return true
}

// Ready reports whether Run/Step may still make progress.
func (v *VM) Ready() bool { return v.state == StateNone }

// Run executes until Halt, Fault, or Break.
func (v *VM) Run() {
	for v.state == StateNone {
		v.Step()
	}
}

func (v *VM) throwFault(err error) {
	v.fault = err
	v.state = StateFault
}

// Step executes a single instruction.
func (v *VM) Step() {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				v.throwFault(err)
			} else {
				v.throwFault(fmt.Errorf("vm fault: %v", r))
			}
		}
	}()

	ctx := v.Context()
	if ctx == nil {
		v.state = StateHalt
		return
	}

	op := ctx.NextInstruction()
	if !v.AddGas(OpcodePrice(op)) {
		return
	}

	if err := v.execute(ctx, op); err != nil {
		if thr, ok := err.(*thrownException); ok {
			v.handleException(thr.value)
			return
		}
		v.throwFault(err)
		return
	}

	if v.istack.Len() == 0 {
		v.state = StateHalt
	}
}

// thrownException signals a THROW or a runtime fault converted into a
// catchable exception, as opposed to an unrecoverable Fault.
type thrownException struct{ value stackitem.Item }

func (t *thrownException) Error() string { return "thrown: " + t.value.String() }

// handleException unwinds frames looking for an active TRY's catch clause;
// if none is found anywhere on the invocation stack, the VM Faults.
func (v *VM) handleException(val stackitem.Item) {
	for v.istack.Len() > 0 {
		ctx := v.Context()
		tc := ctx.CurrentTry()
		if tc == nil {
			v.istack.Pop()
			continue
		}
		if tc.State == tryTry && tc.HasCatch {
			tc.State = tryCatch
			ctx.estack.PushItem(val)
			_ = ctx.Jump(tc.CatchOffset)
			return
		}
		if tc.HasFinally && tc.State != tryFinally {
			tc.State = tryFinally
			ctx.PopTry()
			ctx.PushTry(tc)
			_ = ctx.Jump(tc.FinallyOffset)
			// Finally runs before rethrow; ENDFINALLY resumes unwinding
			// by noticing there's no pending catch left to try.
			return
		}
		ctx.PopTry()
		v.istack.Pop()
	}
	v.throwFault(fmt.Errorf("%w: %s", errUncaughtThrow, val.String()))
}

func (v *VM) pop() *Element    { return v.Estack().Pop() }
func (v *VM) push(i stackitem.Item) { v.Estack().PushItem(i) }

func popInt(e *Element, maxBytes int) *big.Int {
	n, err := e.BigInt(maxBytes)
	if err != nil {
		panic(err)
	}
	return n
}

func popBytes(e *Element) []byte {
	b, err := e.Bytes()
	if err != nil {
		panic(err)
	}
	return b
}

// execute dispatches a single opcode against ctx, mutating the VM's
// stacks/state; it returns a *thrownException for THROW/runtime faults
// that are catchable, or a plain error for unrecoverable VM faults.
func (v *VM) execute(ctx *ExecutionContext, op opcode.Opcode) error {
	ctx.ip++ // consume the opcode byte; operand reads advance ip further

	switch {
	case op >= opcode.PUSHINT8 && op <= opcode.PUSHINT256:
		return v.execPushInt(ctx, op)
	case op >= opcode.PUSH0 && op <= opcode.PUSH16:
		v.push(stackitem.NewBigInteger(big.NewInt(int64(op - opcode.PUSH0))))
		return nil
	}

	switch op {
	case opcode.PUSHM1:
		v.push(stackitem.NewBigInteger(big.NewInt(-1)))
	case opcode.PUSHNULL:
		v.push(stackitem.Null{})
	case opcode.PUSHA:
		base := ctx.ip - 1
		off, err := ctx.readI32()
		if err != nil {
			return err
		}
		v.push(stackitem.NewPointer(base+int(off), ctx.script))
	case opcode.PUSHDATA1:
		n, err := ctx.readByte()
		if err != nil {
			return err
		}
		b, err := ctx.readBytes(int(n))
		if err != nil {
			return err
		}
		v.push(stackitem.NewByteArray(append([]byte(nil), b...)))
	case opcode.PUSHDATA2:
		n, err := ctx.readU16()
		if err != nil {
			return err
		}
		b, err := ctx.readBytes(int(n))
		if err != nil {
			return err
		}
		v.push(stackitem.NewByteArray(append([]byte(nil), b...)))
	case opcode.PUSHDATA4:
		n, err := ctx.readI32()
		if err != nil {
			return err
		}
		b, err := ctx.readBytes(int(n))
		if err != nil {
			return err
		}
		v.push(stackitem.NewByteArray(append([]byte(nil), b...)))

	case opcode.NOP:
		// no-op

	case opcode.JMP, opcode.JMPL, opcode.JMPIF, opcode.JMPIFL,
		opcode.JMPIFNOT, opcode.JMPIFNOTL, opcode.JMPEQ, opcode.JMPEQL,
		opcode.JMPNE, opcode.JMPNEL, opcode.JMPGT, opcode.JMPGTL,
		opcode.JMPGE, opcode.JMPGEL, opcode.JMPLT, opcode.JMPLTL,
		opcode.JMPLE, opcode.JMPLEL:
		return v.execJump(ctx, op)

	case opcode.CALL, opcode.CALLL:
		return v.execCall(ctx, op)
	case opcode.CALLA:
		e := v.pop()
		ptr, ok := e.Item().(*stackitem.Pointer)
		if !ok {
			return errInvalidOpcode
		}
		return v.pushFrame(ptr.Script, ptr.Pos)

	case opcode.ABORT:
		return fmt.Errorf("vm fault: ABORT")
	case opcode.ASSERT:
		if !v.pop().Bool() {
			return fmt.Errorf("vm fault: ASSERT failed")
		}
	case opcode.THROW:
		return &thrownException{value: v.pop().Item()}
	case opcode.TRY, opcode.TRYL:
		return v.execTry(ctx, op)
	case opcode.ENDTRY, opcode.ENDTRYL:
		return v.execEndTry(ctx, op)
	case opcode.ENDFINALLY:
		tc := ctx.CurrentTry()
		if tc == nil {
			return errInvalidOpcode
		}
		ctx.PopTry()
		return ctx.Jump(tc.EndOffset)
	case opcode.RET:
		v.execReturn()
	case opcode.SYSCALL:
		id, err := ctx.readBytes(4)
		if err != nil {
			return err
		}
		return v.execSyscall(id)

	case opcode.DEPTH:
		v.push(stackitem.NewBigInteger(big.NewInt(int64(ctx.estack.Len()))))
	case opcode.DROP:
		v.pop()
	case opcode.NIP:
		e := ctx.estack.RemoveAt(1)
		v.refs.Remove(e.Item())
	case opcode.XDROP:
		n := int(popInt(v.pop(), 4).Int64())
		e := ctx.estack.RemoveAt(n)
		v.refs.Remove(e.Item())
	case opcode.CLEAR:
		for _, e := range ctx.estack.Items() {
			v.refs.Remove(e.Item())
		}
		ctx.estack.Clear()
	case opcode.DUP:
		top := ctx.estack.Peek(0)
		v.push(top.Item())
	case opcode.OVER:
		v.push(ctx.estack.Peek(1).Item())
	case opcode.PICK:
		n := int(popInt(v.pop(), 4).Int64())
		v.push(ctx.estack.Peek(n).Item())
	case opcode.TUCK:
		top := ctx.estack.Peek(0).Item()
		ctx.estack.InsertAt(&Element{value: top}, 2)
	case opcode.SWAP:
		a := ctx.estack.RemoveAt(0)
		ctx.estack.InsertAt(a, 1)
	case opcode.ROT:
		a := ctx.estack.RemoveAt(2)
		ctx.estack.InsertAt(a, 0)
	case opcode.ROLL:
		n := int(popInt(v.pop(), 4).Int64())
		a := ctx.estack.RemoveAt(n)
		ctx.estack.InsertAt(a, 0)
	case opcode.REVERSE3:
		reverseTop(ctx.estack, 3)
	case opcode.REVERSE4:
		reverseTop(ctx.estack, 4)
	case opcode.REVERSEN:
		n := int(popInt(v.pop(), 4).Int64())
		reverseTop(ctx.estack, n)

	case opcode.INITSSLOT:
		n, err := ctx.readByte()
		if err != nil {
			return err
		}
		ctx.InitStatics(int(n))
	case opcode.INITSLOT:
		locals, err := ctx.readByte()
		if err != nil {
			return err
		}
		args, err := ctx.readByte()
		if err != nil {
			return err
		}
		ctx.InitSlots(int(locals), int(args))

	case opcode.LDSFLD0, opcode.LDSFLD:
		idx, err := slotIndex(ctx, op, opcode.LDSFLD0, opcode.LDSFLD)
		if err != nil {
			return err
		}
		e, err := ctx.Static(idx)
		if err != nil {
			return err
		}
		v.push(e.Item())
	case opcode.STSFLD0, opcode.STSFLD:
		idx, err := slotIndex(ctx, op, opcode.STSFLD0, opcode.STSFLD)
		if err != nil {
			return err
		}
		return ctx.SetStatic(idx, v.pop().Item())
	case opcode.LDLOC0, opcode.LDLOC:
		idx, err := slotIndex(ctx, op, opcode.LDLOC0, opcode.LDLOC)
		if err != nil {
			return err
		}
		e, err := ctx.Local(idx)
		if err != nil {
			return err
		}
		v.push(e.Item())
	case opcode.STLOC0, opcode.STLOC:
		idx, err := slotIndex(ctx, op, opcode.STLOC0, opcode.STLOC)
		if err != nil {
			return err
		}
		return ctx.SetLocal(idx, v.pop().Item())
	case opcode.LDARG0, opcode.LDARG:
		idx, err := slotIndex(ctx, op, opcode.LDARG0, opcode.LDARG)
		if err != nil {
			return err
		}
		e, err := ctx.Arg(idx)
		if err != nil {
			return err
		}
		v.push(e.Item())
	case opcode.STARG0, opcode.STARG:
		idx, err := slotIndex(ctx, op, opcode.STARG0, opcode.STARG)
		if err != nil {
			return err
		}
		return ctx.SetArg(idx, v.pop().Item())

	case opcode.NEWBUFFER:
		n := int(popInt(v.pop(), 4).Int64())
		v.push(stackitem.NewBuffer(make([]byte, n)))
	case opcode.MEMCPY:
		count := int(popInt(v.pop(), 4).Int64())
		srcIdx := int(popInt(v.pop(), 4).Int64())
		src := popBytes(v.pop())
		dstIdx := int(popInt(v.pop(), 4).Int64())
		dstItem, ok := ctx.estack.Peek(0).Item().(*stackitem.Buffer)
		if !ok {
			return errInvalidOpcode
		}
		v.pop()
		dst := dstItem.Value().([]byte)
		if srcIdx < 0 || dstIdx < 0 || count < 0 || srcIdx+count > len(src) || dstIdx+count > len(dst) {
			return fmt.Errorf("vm fault: MEMCPY out of range")
		}
		copy(dst[dstIdx:dstIdx+count], src[srcIdx:srcIdx+count])
	case opcode.CAT:
		b := popBytes(v.pop())
		a := popBytes(v.pop())
		out := make([]byte, 0, len(a)+len(b))
		out = append(out, a...)
		out = append(out, b...)
		v.push(stackitem.NewBuffer(out))
	case opcode.SUBSTR:
		count := int(popInt(v.pop(), 4).Int64())
		idx := int(popInt(v.pop(), 4).Int64())
		s := popBytes(v.pop())
		if idx < 0 || count < 0 || idx+count > len(s) {
			return fmt.Errorf("vm fault: SUBSTR out of range")
		}
		v.push(stackitem.NewBuffer(append([]byte(nil), s[idx:idx+count]...)))
	case opcode.LEFT:
		count := int(popInt(v.pop(), 4).Int64())
		s := popBytes(v.pop())
		if count < 0 || count > len(s) {
			return fmt.Errorf("vm fault: LEFT out of range")
		}
		v.push(stackitem.NewBuffer(append([]byte(nil), s[:count]...)))
	case opcode.RIGHT:
		count := int(popInt(v.pop(), 4).Int64())
		s := popBytes(v.pop())
		if count < 0 || count > len(s) {
			return fmt.Errorf("vm fault: RIGHT out of range")
		}
		v.push(stackitem.NewBuffer(append([]byte(nil), s[len(s)-count:]...)))

	case opcode.INVERT:
		a := popInt(v.pop(), 32)
		v.push(stackitem.NewBigInteger(new(big.Int).Not(a)))
	case opcode.AND:
		b, a := popInt(v.pop(), 32), popInt(v.pop(), 32)
		v.push(stackitem.NewBigInteger(new(big.Int).And(a, b)))
	case opcode.OR:
		b, a := popInt(v.pop(), 32), popInt(v.pop(), 32)
		v.push(stackitem.NewBigInteger(new(big.Int).Or(a, b)))
	case opcode.XOR:
		b, a := popInt(v.pop(), 32), popInt(v.pop(), 32)
		v.push(stackitem.NewBigInteger(new(big.Int).Xor(a, b)))
	case opcode.EQUAL:
		b, a := v.pop(), v.pop()
		v.push(stackitem.NewBool(a.Item().Equals(b.Item())))
	case opcode.NOTEQUAL:
		b, a := v.pop(), v.pop()
		v.push(stackitem.NewBool(!a.Item().Equals(b.Item())))

	case opcode.SIGN:
		a := popInt(v.pop(), 32)
		v.push(stackitem.NewBigInteger(big.NewInt(int64(a.Sign()))))
	case opcode.ABS:
		a := popInt(v.pop(), 32)
		v.push(stackitem.NewBigInteger(new(big.Int).Abs(a)))
	case opcode.NEGATE:
		a := popInt(v.pop(), 32)
		v.push(stackitem.NewBigInteger(new(big.Int).Neg(a)))
	case opcode.INC:
		a := popInt(v.pop(), 32)
		v.push(stackitem.NewBigInteger(new(big.Int).Add(a, big.NewInt(1))))
	case opcode.DEC:
		a := popInt(v.pop(), 32)
		v.push(stackitem.NewBigInteger(new(big.Int).Sub(a, big.NewInt(1))))
	case opcode.ADD:
		b, a := popInt(v.pop(), 32), popInt(v.pop(), 32)
		v.push(stackitem.NewBigInteger(new(big.Int).Add(a, b)))
	case opcode.SUB:
		b, a := popInt(v.pop(), 32), popInt(v.pop(), 32)
		v.push(stackitem.NewBigInteger(new(big.Int).Sub(a, b)))
	case opcode.MUL:
		b, a := popInt(v.pop(), 32), popInt(v.pop(), 32)
		v.push(stackitem.NewBigInteger(new(big.Int).Mul(a, b)))
	case opcode.DIV:
		b, a := popInt(v.pop(), 32), popInt(v.pop(), 32)
		if b.Sign() == 0 {
			return &thrownException{value: stackitem.NewByteArray([]byte(errDivideByZero.Error()))}
		}
		v.push(stackitem.NewBigInteger(new(big.Int).Quo(a, b)))
	case opcode.MOD:
		b, a := popInt(v.pop(), 32), popInt(v.pop(), 32)
		if b.Sign() == 0 {
			return &thrownException{value: stackitem.NewByteArray([]byte(errDivideByZero.Error()))}
		}
		v.push(stackitem.NewBigInteger(new(big.Int).Rem(a, b)))
	case opcode.POW:
		b, a := popInt(v.pop(), 4), popInt(v.pop(), 32)
		if b.Sign() < 0 {
			return fmt.Errorf("vm fault: POW negative exponent")
		}
		v.push(stackitem.NewBigInteger(new(big.Int).Exp(a, b, nil)))
	case opcode.SQRT:
		a := popInt(v.pop(), 32)
		if a.Sign() < 0 {
			return fmt.Errorf("vm fault: SQRT of negative")
		}
		v.push(stackitem.NewBigInteger(new(big.Int).Sqrt(a)))
	case opcode.SHL:
		n := uint(popInt(v.pop(), 4).Int64())
		a := popInt(v.pop(), 32)
		v.push(stackitem.NewBigInteger(new(big.Int).Lsh(a, n)))
	case opcode.SHR:
		n := uint(popInt(v.pop(), 4).Int64())
		a := popInt(v.pop(), 32)
		v.push(stackitem.NewBigInteger(new(big.Int).Rsh(a, n)))
	case opcode.NOT:
		v.push(stackitem.NewBool(!v.pop().Bool()))
	case opcode.BOOLAND:
		b, a := v.pop().Bool(), v.pop().Bool()
		v.push(stackitem.NewBool(a && b))
	case opcode.BOOLOR:
		b, a := v.pop().Bool(), v.pop().Bool()
		v.push(stackitem.NewBool(a || b))
	case opcode.NZ:
		a := popInt(v.pop(), 32)
		v.push(stackitem.NewBool(a.Sign() != 0))

	case opcode.NUMEQUAL:
		b, a := popInt(v.pop(), 32), popInt(v.pop(), 32)
		v.push(stackitem.NewBool(a.Cmp(b) == 0))
	case opcode.NUMNOTEQUAL:
		b, a := popInt(v.pop(), 32), popInt(v.pop(), 32)
		v.push(stackitem.NewBool(a.Cmp(b) != 0))
	case opcode.LT:
		b, a := popInt(v.pop(), 32), popInt(v.pop(), 32)
		v.push(stackitem.NewBool(a.Cmp(b) < 0))
	case opcode.LE:
		b, a := popInt(v.pop(), 32), popInt(v.pop(), 32)
		v.push(stackitem.NewBool(a.Cmp(b) <= 0))
	case opcode.GT:
		b, a := popInt(v.pop(), 32), popInt(v.pop(), 32)
		v.push(stackitem.NewBool(a.Cmp(b) > 0))
	case opcode.GE:
		b, a := popInt(v.pop(), 32), popInt(v.pop(), 32)
		v.push(stackitem.NewBool(a.Cmp(b) >= 0))
	case opcode.MIN:
		b, a := popInt(v.pop(), 32), popInt(v.pop(), 32)
		if a.Cmp(b) < 0 {
			v.push(stackitem.NewBigInteger(a))
		} else {
			v.push(stackitem.NewBigInteger(b))
		}
	case opcode.MAX:
		b, a := popInt(v.pop(), 32), popInt(v.pop(), 32)
		if a.Cmp(b) > 0 {
			v.push(stackitem.NewBigInteger(a))
		} else {
			v.push(stackitem.NewBigInteger(b))
		}
	case opcode.WITHIN:
		b, a, x := popInt(v.pop(), 32), popInt(v.pop(), 32), popInt(v.pop(), 32)
		v.push(stackitem.NewBool(x.Cmp(a) >= 0 && x.Cmp(b) < 0))

	case opcode.PACK:
		n := int(popInt(v.pop(), 4).Int64())
		items := make([]stackitem.Item, n)
		for i := n - 1; i >= 0; i-- {
			items[i] = v.pop().Item()
		}
		v.push(stackitem.NewArray(items))
	case opcode.UNPACK:
		arr, ok := v.pop().Item().(*stackitem.Array)
		if !ok {
			return errInvalidOpcode
		}
		for i := arr.Len() - 1; i >= 0; i-- {
			v.push(arr.At(i))
		}
		v.push(stackitem.NewBigInteger(big.NewInt(int64(arr.Len()))))
	case opcode.NEWARRAY0:
		v.push(stackitem.NewArray(nil))
	case opcode.NEWARRAY, opcode.NEWARRAYT:
		if op == opcode.NEWARRAYT {
			if _, err := ctx.readByte(); err != nil {
				return err
			}
		}
		n := int(popInt(v.pop(), 4).Int64())
		items := make([]stackitem.Item, n)
		for i := range items {
			items[i] = stackitem.Null{}
		}
		v.push(stackitem.NewArray(items))
	case opcode.NEWSTRUCT0:
		v.push(stackitem.NewStruct(nil))
	case opcode.NEWSTRUCT:
		n := int(popInt(v.pop(), 4).Int64())
		items := make([]stackitem.Item, n)
		for i := range items {
			items[i] = stackitem.Null{}
		}
		v.push(stackitem.NewStruct(items))
	case opcode.NEWMAP:
		v.push(stackitem.NewMap())
	case opcode.SIZE:
		item := v.pop().Item()
		switch it := item.(type) {
		case *stackitem.Array:
			v.push(stackitem.NewBigInteger(big.NewInt(int64(it.Len()))))
		case *stackitem.Map:
			v.push(stackitem.NewBigInteger(big.NewInt(int64(it.Len()))))
		default:
			b, err := item.TryBytes()
			if err != nil {
				return err
			}
			v.push(stackitem.NewBigInteger(big.NewInt(int64(len(b)))))
		}
	case opcode.HASKEY:
		key := v.pop().Item()
		item := v.pop().Item()
		switch it := item.(type) {
		case *stackitem.Array:
			n := int(popIntFromItem(key))
			v.push(stackitem.NewBool(n >= 0 && n < it.Len()))
		case *stackitem.Map:
			_, ok := it.Get(key)
			v.push(stackitem.NewBool(ok))
		default:
			return errInvalidOpcode
		}
	case opcode.KEYS:
		m, ok := v.pop().Item().(*stackitem.Map)
		if !ok {
			return errInvalidOpcode
		}
		keys := make([]stackitem.Item, m.Len())
		for i, e := range m.Elements() {
			keys[i] = e.Key
		}
		v.push(stackitem.NewArray(keys))
	case opcode.VALUES:
		switch it := v.pop().Item().(type) {
		case *stackitem.Map:
			vals := make([]stackitem.Item, it.Len())
			for i, e := range it.Elements() {
				vals[i] = stackitem.DeepCopy(e.Value)
			}
			v.push(stackitem.NewArray(vals))
		case *stackitem.Array:
			vals := make([]stackitem.Item, it.Len())
			for i, x := range it.Items() {
				vals[i] = stackitem.DeepCopy(x)
			}
			v.push(stackitem.NewArray(vals))
		default:
			return errInvalidOpcode
		}
	case opcode.PICKITEM:
		key := v.pop().Item()
		switch it := v.pop().Item().(type) {
		case *stackitem.Array:
			n := int(popIntFromItem(key))
			if n < 0 || n >= it.Len() {
				return fmt.Errorf("vm fault: PICKITEM index out of range")
			}
			v.push(it.At(n))
		case *stackitem.Map:
			val, ok := it.Get(key)
			if !ok {
				return fmt.Errorf("vm fault: PICKITEM key not found")
			}
			v.push(val)
		default:
			return errInvalidOpcode
		}
	case opcode.APPEND:
		item := v.pop().Item()
		arr, ok := v.pop().Item().(*stackitem.Array)
		if !ok {
			return errInvalidOpcode
		}
		arr.Append(item)
		if err := v.refs.AddChild(item); err != nil {
			return err
		}
	case opcode.SETITEM:
		value := v.pop().Item()
		key := v.pop().Item()
		switch it := v.pop().Item().(type) {
		case *stackitem.Array:
			n := int(popIntFromItem(key))
			if n < 0 || n >= it.Len() {
				return fmt.Errorf("vm fault: SETITEM index out of range")
			}
			v.refs.RemoveChild(it.At(n))
			it.SetAt(n, value)
			if err := v.refs.AddChild(value); err != nil {
				return err
			}
		case *stackitem.Map:
			if old, ok := it.Get(key); ok {
				v.refs.RemoveChild(old)
			}
			it.Set(key, value)
			if err := v.refs.AddChild(value); err != nil {
				return err
			}
		default:
			return errInvalidOpcode
		}
	case opcode.REVERSEITEMS:
		switch it := v.pop().Item().(type) {
		case *stackitem.Array:
			it.Reverse()
		default:
			return errInvalidOpcode
		}
	case opcode.REMOVE:
		key := v.pop().Item()
		switch it := v.pop().Item().(type) {
		case *stackitem.Array:
			n := int(popIntFromItem(key))
			if n < 0 || n >= it.Len() {
				return fmt.Errorf("vm fault: REMOVE index out of range")
			}
			v.refs.RemoveChild(it.At(n))
			it.Remove(n)
		case *stackitem.Map:
			if old, ok := it.Get(key); ok {
				v.refs.RemoveChild(old)
			}
			it.Delete(key)
		default:
			return errInvalidOpcode
		}
	case opcode.CLEARITEMS:
		switch it := v.pop().Item().(type) {
		case *stackitem.Array:
			for _, x := range it.Items() {
				v.refs.RemoveChild(x)
			}
			it.Clear()
		case *stackitem.Map:
			for _, e := range it.Elements() {
				v.refs.RemoveChild(e.Value)
			}
			*it = *stackitem.NewMap()
		default:
			return errInvalidOpcode
		}
	case opcode.POPITEM:
		arr, ok := v.pop().Item().(*stackitem.Array)
		if !ok || arr.Len() == 0 {
			return errInvalidOpcode
		}
		last := arr.Len() - 1
		item := arr.At(last)
		arr.Remove(last)
		v.refs.RemoveChild(item)
		v.push(item)

	case opcode.ISNULL:
		_, ok := v.pop().Item().(stackitem.Null)
		v.push(stackitem.NewBool(ok))
	case opcode.ISTYPE:
		b, err := ctx.readByte()
		if err != nil {
			return err
		}
		v.push(stackitem.NewBool(v.pop().Item().Type() == stackitem.Type(b)))
	case opcode.CONVERT:
		b, err := ctx.readByte()
		if err != nil {
			return err
		}
		item, err := convertItem(v.pop().Item(), stackitem.Type(b))
		if err != nil {
			return err
		}
		v.push(item)

	default:
		return fmt.Errorf("%w: %s", errInvalidOpcode, op)
	}
	return nil
}

func popIntFromItem(item stackitem.Item) int64 {
	n, err := item.TryInteger(8)
	if err != nil {
		panic(err)
	}
	return n.Int64()
}

func reverseTop(s *Stack, n int) {
	if n <= 1 {
		return
	}
	items := s.Items()
	l := len(items)
	for i, j := l-n, l-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}

func slotIndex(ctx *ExecutionContext, op, op0, opN opcode.Opcode) (int, error) {
	if op == op0 {
		return 0, nil
	}
	b, err := ctx.readByte()
	if err != nil {
		return 0, err
	}
	return int(b), nil
}

func (v *VM) execPushInt(ctx *ExecutionContext, op opcode.Opcode) error {
	n := map[opcode.Opcode]int{
		opcode.PUSHINT8: 1, opcode.PUSHINT16: 2, opcode.PUSHINT32: 4,
		opcode.PUSHINT64: 8, opcode.PUSHINT128: 16, opcode.PUSHINT256: 32,
	}[op]
	b, err := ctx.readBytes(n)
	if err != nil {
		return err
	}
	le := make([]byte, len(b))
	copy(le, b)
	v.push(stackitem.NewBigInteger(decodeSignedLE(le)))
	return nil
}

func decodeSignedLE(le []byte) *big.Int {
	if len(le) == 0 {
		return big.NewInt(0)
	}
	be := make([]byte, len(le))
	for i, b := range le {
		be[len(le)-1-i] = b
	}
	neg := be[0]&0x80 != 0
	n := new(big.Int).SetBytes(be)
	if !neg {
		return n
	}
	full := new(big.Int).Lsh(big.NewInt(1), uint(len(le)*8))
	return n.Sub(n, full)
}

func (v *VM) execJump(ctx *ExecutionContext, op opcode.Opcode) error {
	base := ctx.ip - 1
	var offset int32
	long := isLongJump(op)
	if long {
		n, err := ctx.readI32()
		if err != nil {
			return err
		}
		offset = n
	} else {
		n, err := ctx.readI8()
		if err != nil {
			return err
		}
		offset = int32(n)
	}

	cond, needsPop := jumpCondition(op)
	take := true
	if needsPop {
		switch cond {
		case jcIf:
			take = v.pop().Bool()
		case jcIfNot:
			take = !v.pop().Bool()
		case jcEq, jcNe, jcGt, jcGe, jcLt, jcLe:
			b, a := popInt(v.pop(), 32), popInt(v.pop(), 32)
			cmp := a.Cmp(b)
			switch cond {
			case jcEq:
				take = cmp == 0
			case jcNe:
				take = cmp != 0
			case jcGt:
				take = cmp > 0
			case jcGe:
				take = cmp >= 0
			case jcLt:
				take = cmp < 0
			case jcLe:
				take = cmp <= 0
			}
		}
	}
	if !take {
		return nil
	}
	return ctx.Jump(base + int(offset))
}

type jumpCond int

const (
	jcAlways jumpCond = iota
	jcIf
	jcIfNot
	jcEq
	jcNe
	jcGt
	jcGe
	jcLt
	jcLe
)

func isLongJump(op opcode.Opcode) bool {
	switch op {
	case opcode.JMPL, opcode.JMPIFL, opcode.JMPIFNOTL, opcode.JMPEQL,
		opcode.JMPNEL, opcode.JMPGTL, opcode.JMPGEL, opcode.JMPLTL,
		opcode.JMPLEL, opcode.CALLL:
		return true
	default:
		return false
	}
}

func jumpCondition(op opcode.Opcode) (jumpCond, bool) {
	switch op {
	case opcode.JMP, opcode.JMPL:
		return jcAlways, false
	case opcode.JMPIF, opcode.JMPIFL:
		return jcIf, true
	case opcode.JMPIFNOT, opcode.JMPIFNOTL:
		return jcIfNot, true
	case opcode.JMPEQ, opcode.JMPEQL:
		return jcEq, true
	case opcode.JMPNE, opcode.JMPNEL:
		return jcNe, true
	case opcode.JMPGT, opcode.JMPGTL:
		return jcGt, true
	case opcode.JMPGE, opcode.JMPGEL:
		return jcGe, true
	case opcode.JMPLT, opcode.JMPLTL:
		return jcLt, true
	case opcode.JMPLE, opcode.JMPLEL:
		return jcLe, true
	default:
		return jcAlways, false
	}
}

func (v *VM) execCall(ctx *ExecutionContext, op opcode.Opcode) error {
	base := ctx.ip - 1
	var offset int32
	if op == opcode.CALLL {
		n, err := ctx.readI32()
		if err != nil {
			return err
		}
		offset = n
	} else {
		n, err := ctx.readI8()
		if err != nil {
			return err
		}
		offset = int32(n)
	}
	return v.pushFrame(ctx.script, base+int(offset))
}

func (v *VM) pushFrame(script []byte, pos int) error {
	if v.istack.Len() >= MaxInvocationStackDepth {
		return errInvokeDepth
	}
	nc := v.Context().Clone()
	nc.script = script
	if err := nc.Jump(pos); err != nil {
		return err
	}
	v.istack.Push(nc)
	return nil
}

func (v *VM) execTry(ctx *ExecutionContext, op opcode.Opcode) error {
	base := ctx.ip - 1
	var catchOff, finallyOff int64
	if op == opcode.TRYL {
		c, err := ctx.readI32()
		if err != nil {
			return err
		}
		f, err := ctx.readI32()
		if err != nil {
			return err
		}
		catchOff, finallyOff = int64(c), int64(f)
	} else {
		c, err := ctx.readI8()
		if err != nil {
			return err
		}
		f, err := ctx.readI8()
		if err != nil {
			return err
		}
		catchOff, finallyOff = int64(c), int64(f)
	}
	tc := &TryContext{State: tryTry}
	if catchOff != 0 {
		tc.HasCatch = true
		tc.CatchOffset = base + int(catchOff)
	}
	if finallyOff != 0 {
		tc.HasFinally = true
		tc.FinallyOffset = base + int(finallyOff)
	}
	ctx.PushTry(tc)
	return nil
}

func (v *VM) execEndTry(ctx *ExecutionContext, op opcode.Opcode) error {
	base := ctx.ip - 1
	var off int64
	if op == opcode.ENDTRYL {
		n, err := ctx.readI32()
		if err != nil {
			return err
		}
		off = int64(n)
	} else {
		n, err := ctx.readI8()
		if err != nil {
			return err
		}
		off = int64(n)
	}
	tc := ctx.CurrentTry()
	if tc == nil {
		return errInvalidOpcode
	}
	target := base + int(off)
	if tc.HasFinally && tc.State != tryFinally {
		tc.State = tryFinally
		tc.EndOffset = target
		return ctx.Jump(tc.FinallyOffset)
	}
	ctx.PopTry()
	return ctx.Jump(target)
}

func (v *VM) execReturn() {
	ctx := v.istack.Pop()
	parent := v.Context()
	if parent == nil {
		// Top-level return: surface the finished frame's stack as results.
		for _, e := range ctx.estack.Items() {
			v.rstack.Push(e)
		}
		return
	}
	for _, e := range ctx.estack.Items() {
		parent.estack.Push(e)
	}
}

func (v *VM) execSyscall(idBytes []byte) error {
	if v.SyscallHandler == nil {
		return errNoSyscallHandler
	}
	id := uint32(idBytes[0]) | uint32(idBytes[1])<<8 | uint32(idBytes[2])<<16 | uint32(idBytes[3])<<24
	return v.SyscallHandler(v, id)
}

func convertItem(item stackitem.Item, t stackitem.Type) (stackitem.Item, error) {
	switch t {
	case stackitem.BooleanT:
		return stackitem.NewBool(item.Bool()), nil
	case stackitem.IntegerT:
		n, err := item.TryInteger(32)
		if err != nil {
			return nil, err
		}
		return stackitem.NewBigInteger(n), nil
	case stackitem.ByteArrayT:
		b, err := item.TryBytes()
		if err != nil {
			return nil, err
		}
		return stackitem.NewByteArray(b), nil
	case stackitem.BufferT:
		b, err := item.TryBytes()
		if err != nil {
			return nil, err
		}
		return stackitem.NewBuffer(append([]byte(nil), b...)), nil
	default:
		return nil, fmt.Errorf("%w: unsupported CONVERT target", stackitem.ErrInvalidValue)
	}
}
