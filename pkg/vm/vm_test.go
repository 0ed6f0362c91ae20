package vm

import (
	"errors"
	"math/big"
	"testing"

	"github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/vm/emit"
	"github.com/noriachain/neonode/pkg/vm/opcode"
	"github.com/noriachain/neonode/pkg/vm/stackitem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVM() *VM {
	v := New()
	v.SetGasLimit(-1)
	return v
}

func fooInteropHandler(v *VM, id uint32) error {
	if id == emit.InteropID("foo") {
		if !v.AddGas(1) {
			return errors.New("invalid gas amount")
		}
		v.Estack().PushVal(1)
		return nil
	}
	return errors.New("syscall not found")
}

func TestInteropHook(t *testing.T) {
	v := newTestVM()
	v.SyscallHandler = fooInteropHandler

	w := io.NewBufBinWriter()
	emit.Syscall(w, "foo")
	emit.Opcode(w, opcode.RET)
	require.NoError(t, w.Err)

	v.Load(w.Bytes())
	v.Run()
	require.Equal(t, StateHalt, v.State())
	require.Equal(t, 1, v.Estack().Len())
	assert.EqualValues(t, 1, v.Estack().Pop().BigIntOrPanic().Int64())
}

func TestPushPushAdd(t *testing.T) {
	v := newTestVM()
	w := io.NewBufBinWriter()
	emit.Int(w, 2)
	emit.Int(w, 3)
	emit.Opcode(w, opcode.ADD)
	emit.Opcode(w, opcode.RET)

	v.Load(w.Bytes())
	v.Run()
	require.Equal(t, StateHalt, v.State())
	require.Equal(t, 1, v.Estack().Len())
	assert.EqualValues(t, 5, v.Estack().Pop().BigIntOrPanic().Int64())
}

func TestDivByZeroFaults(t *testing.T) {
	v := newTestVM()
	w := io.NewBufBinWriter()
	emit.Int(w, 1)
	emit.Int(w, 0)
	emit.Opcode(w, opcode.DIV)
	emit.Opcode(w, opcode.RET)

	v.Load(w.Bytes())
	v.Run()
	require.Equal(t, StateFault, v.State())
	require.Error(t, v.FaultException())
}

func TestTryCatchRecoversThrow(t *testing.T) {
	v := newTestVM()
	w := io.NewBufBinWriter()

	// TRY catch=+? finally=0; body THROWs; catch drops value, pushes 42.
	emit.Opcode(w, opcode.TRY)
	tryOperandPos := w.Len()
	w.WriteU8(0) // catch offset placeholder, patched below
	w.WriteU8(0) // finally offset (0 = none)
	bodyStart := w.Len()
	emit.Int(w, 7)
	emit.Opcode(w, opcode.THROW)
	catchStart := w.Len()
	emit.Opcode(w, opcode.DROP)
	emit.Int(w, 42)
	emit.Opcode(w, opcode.ENDTRY)
	w.WriteU8(byte(2)) // end offset: two bytes ahead (past this operand) to RET
	emit.Opcode(w, opcode.RET)

	script := w.Bytes()
	script[tryOperandPos] = byte(catchStart - (tryOperandPos - 1))
	_ = bodyStart

	v.Load(script)
	v.Run()
	require.Equal(t, StateHalt, v.State())
	require.Equal(t, 1, v.Estack().Len())
	assert.EqualValues(t, 42, v.Estack().Pop().BigIntOrPanic().Int64())
}

func TestArrayPushPop(t *testing.T) {
	v := newTestVM()
	arr := stackitem.NewArray([]stackitem.Item{
		stackitem.NewBigInteger(big.NewInt(1)),
		stackitem.NewBigInteger(big.NewInt(2)),
	})
	v.Estack().PushItem(arr)
	e := v.Estack().Pop()
	got, ok := e.Item().(*stackitem.Array)
	require.True(t, ok)
	assert.Equal(t, 2, got.Len())
}

func TestStackUnderflowFaults(t *testing.T) {
	v := newTestVM()
	w := io.NewBufBinWriter()
	emit.Opcode(w, opcode.ADD)
	v.Load(w.Bytes())
	v.Run()
	require.Equal(t, StateFault, v.State())
}

func TestGasLimitFaults(t *testing.T) {
	v := newTestVM()
	v.SetGasLimit(0)
	w := io.NewBufBinWriter()
	emit.Int(w, 1)
	emit.Opcode(w, opcode.RET)
	v.Load(w.Bytes())
	v.Run()
	require.Equal(t, StateFault, v.State())
}
