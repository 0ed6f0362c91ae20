package interop

import (
	"testing"

	"github.com/noriachain/neonode/pkg/core/dao"
	"github.com/noriachain/neonode/pkg/core/storage"
	"github.com/noriachain/neonode/pkg/core/transaction"
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/smartcontract/trigger"
	"github.com/noriachain/neonode/pkg/util"
	"github.com/noriachain/neonode/pkg/vm"
	"github.com/noriachain/neonode/pkg/vm/emit"
	"github.com/noriachain/neonode/pkg/vm/opcode"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, container Container) *Context {
	d := dao.NewSimple(storage.NewMemoryStore(), false, true)
	return NewContext(d, trigger.Application, container, 100, 10_000_000_000)
}

func TestCheckWitnessSigner(t *testing.T) {
	tx := transaction.New([]byte{byte(opcode.RET)}, 0)
	acc := util.Uint160{1, 2, 3}
	tx.Signers = []transaction.Signer{{Account: acc}}

	c := newTestContext(t, tx)
	require.True(t, c.CheckWitness(acc))
	require.False(t, c.CheckWitness(util.Uint160{9, 9, 9}))
}

func TestSyscallCheckWitnessViaScript(t *testing.T) {
	tx := transaction.New([]byte{byte(opcode.RET)}, 0)
	acc := util.Uint160{1, 2, 3}
	tx.Signers = []transaction.Signer{{Account: acc}}

	c := newTestContext(t, tx)

	w := vio.NewBufBinWriter()
	emit.Bytes(w, acc.BytesBE())
	emit.Syscall(w, "System.Runtime.CheckWitness")
	require.NoError(t, w.Err)

	c.VM.LoadScriptWithFlags(w.Bytes(), acc.BytesBE(), 0xFF)
	c.VM.Run()
	require.Equal(t, vm.StateHalt, c.VM.State(), c.VM.FaultException())
	require.Equal(t, 1, c.VM.Estack().Len())
	require.True(t, c.VM.Estack().Pop().Bool())
}

func TestSyscallStoragePutGet(t *testing.T) {
	acc := util.Uint160{4, 5, 6}
	c := newTestContext(t, nil)

	w := vio.NewBufBinWriter()
	emit.Syscall(w, "System.Storage.GetContext")
	emit.Bytes(w, []byte("key"))
	emit.Bytes(w, []byte("value"))
	emit.Syscall(w, "System.Storage.Put")
	require.NoError(t, w.Err)

	c.VM.LoadScriptWithFlags(w.Bytes(), acc.BytesBE(), 0xFF)
	c.VM.Run()
	require.Equal(t, vm.StateHalt, c.VM.State(), c.VM.FaultException())

	item := c.DAO.GetStorageItem(ScriptHashID(acc.BytesBE()), []byte("key"))
	require.Equal(t, []byte("value"), []byte(item))
}

func TestSyscallNotify(t *testing.T) {
	acc := util.Uint160{7, 7, 7}
	c := newTestContext(t, nil)

	w := vio.NewBufBinWriter()
	emit.Bytes(w, []byte("Transfer"))
	emit.Array(w, 0)
	emit.Syscall(w, "System.Runtime.Notify")
	require.NoError(t, w.Err)

	c.VM.LoadScriptWithFlags(w.Bytes(), acc.BytesBE(), 0xFF)
	c.VM.Run()
	require.Equal(t, vm.StateHalt, c.VM.State(), c.VM.FaultException())
	require.Len(t, c.Notifications, 1)
	require.Equal(t, "Transfer", c.Notifications[0].Name)
	require.True(t, acc.Equals(c.Notifications[0].ScriptHash))
}
