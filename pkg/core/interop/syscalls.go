package interop

import (
	"errors"
	"fmt"

	"github.com/noriachain/neonode/pkg/core/interop/interopnames"
	"github.com/noriachain/neonode/pkg/core/state"
	"github.com/noriachain/neonode/pkg/crypto/hash"
	"github.com/noriachain/neonode/pkg/crypto/keys"
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/smartcontract/callflag"
	"github.com/noriachain/neonode/pkg/util"
	"github.com/noriachain/neonode/pkg/vm"
	"github.com/noriachain/neonode/pkg/vm/stackitem"
)

// handler is one registered syscall: its required call flags and the
// function implementing it.
type handler struct {
	flags callflag.CallFlag
	fn    func(c *Context) error
}

var handlers = map[uint32]handler{
	idOf(interopnames.SystemRuntimeCheckWitness):         {callflag.ReadStates, (*Context).sysCheckWitness},
	idOf(interopnames.SystemRuntimeGasLeft):               {callflag.None, (*Context).sysGasLeft},
	idOf(interopnames.SystemRuntimeGetTrigger):            {callflag.None, (*Context).sysGetTrigger},
	idOf(interopnames.SystemRuntimeGetExecutingScriptHash): {callflag.None, (*Context).sysGetExecutingScriptHash},
	idOf(interopnames.SystemRuntimeGetCallingScriptHash):   {callflag.None, (*Context).sysGetCallingScriptHash},
	idOf(interopnames.SystemRuntimeGetEntryScriptHash):     {callflag.None, (*Context).sysGetEntryScriptHash},
	idOf(interopnames.SystemRuntimeLog):                    {callflag.AllowNotify, (*Context).sysLog},
	idOf(interopnames.SystemRuntimeNotify):                 {callflag.AllowNotify, (*Context).sysNotify},
	idOf(interopnames.SystemRuntimePlatform):               {callflag.None, (*Context).sysPlatform},

	idOf(interopnames.SystemStorageGetContext):         {callflag.ReadStates, (*Context).sysStorageGetContext},
	idOf(interopnames.SystemStorageGetReadOnlyContext): {callflag.ReadStates, (*Context).sysStorageGetContext},
	idOf(interopnames.SystemStorageGet):                {callflag.ReadStates, (*Context).sysStorageGet},
	idOf(interopnames.SystemStoragePut):                {callflag.WriteStates, (*Context).sysStoragePut},
	idOf(interopnames.SystemStorageDelete):             {callflag.WriteStates, (*Context).sysStorageDelete},

	idOf(interopnames.SystemBlockchainGetHeight): {callflag.ReadStates, (*Context).sysGetHeight},

	idOf(interopnames.SystemContractCall): {callflag.AllowCall, (*Context).sysContractCall},

	idOf(interopnames.SystemCryptoVerifyWithECDsa): {callflag.None, (*Context).sysVerifyWithECDsa},
}

func idOf(name string) uint32 { return interopnames.ToID([]byte(name)) }

// dispatch is installed as vm.VM.SyscallHandler; it enforces the call
// flag a handler requires before running it.
func (c *Context) dispatch(v *vm.VM, id uint32) error {
	h, ok := handlers[id]
	if !ok {
		return fmt.Errorf("interop: unknown syscall id %#x", id)
	}
	if err := c.requireFlag(h.flags); err != nil {
		return err
	}
	return h.fn(c)
}

func (c *Context) sysCheckWitness() error {
	b, err := c.VM.Estack().Pop().Bytes()
	if err != nil {
		return err
	}
	acc, err := util.Uint160DecodeBytesBE(b)
	if err != nil {
		return err
	}
	c.VM.Estack().PushVal(c.CheckWitness(acc))
	return nil
}

func (c *Context) sysGasLeft() error {
	c.VM.Estack().PushVal(c.VM.GasConsumed())
	return nil
}

func (c *Context) sysGetTrigger() error {
	c.VM.Estack().PushVal(int64(c.Trigger))
	return nil
}

func (c *Context) sysGetExecutingScriptHash() error {
	c.VM.Estack().PushVal(c.VM.CurrentScriptHash())
	return nil
}

func (c *Context) sysGetCallingScriptHash() error {
	c.VM.Estack().PushVal(c.VM.CallingScriptHash())
	return nil
}

func (c *Context) sysGetEntryScriptHash() error {
	c.VM.Estack().PushVal(c.VM.EntryScriptHash())
	return nil
}

func (c *Context) sysLog() error {
	b, err := c.VM.Estack().Pop().Bytes()
	if err != nil {
		return err
	}
	c.Logs = append(c.Logs, string(b))
	return nil
}

func (c *Context) sysNotify() error {
	argsItem := c.VM.Estack().Pop().Item()
	nameB, err := c.VM.Estack().Pop().Bytes()
	if err != nil {
		return err
	}
	arr, ok := argsItem.(*stackitem.Array)
	if !ok {
		arr = stackitem.NewArray([]stackitem.Item{argsItem})
	}
	c.Notify(string(nameB), arr)
	return nil
}

func (c *Context) sysPlatform() error {
	c.VM.Estack().PushVal([]byte("NEO"))
	return nil
}

func (c *Context) sysStorageGetContext() error {
	c.VM.Estack().PushVal(c.VM.CurrentScriptHash())
	return nil
}

func (c *Context) sysStorageGet() error {
	key, err := c.VM.Estack().Pop().Bytes()
	if err != nil {
		return err
	}
	ctxHash, err := c.VM.Estack().Pop().Bytes()
	if err != nil {
		return err
	}
	item := c.DAO.GetStorageItem(ScriptHashID(ctxHash), key)
	if item == nil {
		c.VM.Estack().PushItem(stackitem.NewNull())
		return nil
	}
	c.VM.Estack().PushVal([]byte(item))
	return nil
}

func (c *Context) sysStoragePut() error {
	value, err := c.VM.Estack().Pop().Bytes()
	if err != nil {
		return err
	}
	key, err := c.VM.Estack().Pop().Bytes()
	if err != nil {
		return err
	}
	ctxHash, err := c.VM.Estack().Pop().Bytes()
	if err != nil {
		return err
	}
	return c.DAO.PutStorageItem(ScriptHashID(ctxHash), key, state.StorageItem(value))
}

func (c *Context) sysStorageDelete() error {
	key, err := c.VM.Estack().Pop().Bytes()
	if err != nil {
		return err
	}
	ctxHash, err := c.VM.Estack().Pop().Bytes()
	if err != nil {
		return err
	}
	return c.DAO.DeleteStorageItem(ScriptHashID(ctxHash), key)
}

func (c *Context) sysGetHeight() error {
	c.VM.Estack().PushVal(int64(c.Height))
	return nil
}

// sysContractCall implements System.Contract.Call for native contracts
// only: (scriptHash, method, callFlags, args). Calling into a
// non-native (deployed) contract is out of scope without a
// ContractManagement native to resolve a hash to a script.
func (c *Context) sysContractCall() error {
	argsItem := c.VM.Estack().Pop().Item()
	_, err := c.VM.Estack().Pop().Bytes() // callFlags, unused: natives don't restrict by caller flags beyond requireFlag above
	if err != nil {
		return err
	}
	methodB, err := c.VM.Estack().Pop().Bytes()
	if err != nil {
		return err
	}
	hashB, err := c.VM.Estack().Pop().Bytes()
	if err != nil {
		return err
	}
	target, err := util.Uint160DecodeBytesBE(hashB)
	if err != nil {
		return err
	}
	contract, ok := c.Natives[target]
	if !ok {
		return fmt.Errorf("interop: no native contract at %s", target.StringLE())
	}

	arr, ok := argsItem.(*stackitem.Array)
	if !ok {
		return errors.New("interop: Contract.Call args must be an array")
	}
	items := arr.Value().([]stackitem.Item)
	args := make([]interface{}, len(items))
	for i, it := range items {
		args[i] = nativeArg(it)
	}

	if !c.VM.AddGas(contract.RequiredGas(string(methodB))) {
		return nil
	}
	result, err := contract.Invoke(c, string(methodB), args)
	if err != nil {
		return err
	}
	c.VM.Estack().PushItem(nativeResult(result))
	return nil
}

// sysVerifyWithECDsa implements System.Crypto.VerifyWithECDsa: pops
// (message, pubkey, signature, curve) and pushes a bool, matching
// CryptoLib.verifyWithECDsa's four-argument signature. curve is an
// integer, 0 for secp256r1 and 1 for secp256k1 (keys.NamedCurve).
func (c *Context) sysVerifyWithECDsa() error {
	curveN, err := c.VM.Estack().Pop().BigInt(1)
	if err != nil {
		return err
	}
	signature, err := c.VM.Estack().Pop().Bytes()
	if err != nil {
		return err
	}
	pub, err := c.VM.Estack().Pop().Bytes()
	if err != nil {
		return err
	}
	msg, err := c.VM.Estack().Pop().Bytes()
	if err != nil {
		return err
	}
	digest := hash.Sha256(msg).BytesBE()
	ok, err := keys.VerifyWithECDsa(keys.NamedCurve(curveN.Int64()), pub, signature, digest)
	if err != nil {
		c.VM.Estack().PushVal(false)
		return nil
	}
	c.VM.Estack().PushVal(ok)
	return nil
}

// nativeArg unwraps a stackitem.Item into the plain byte/integer/bool
// form native-contract method bodies expect to type-switch on.
func nativeArg(it stackitem.Item) interface{} {
	if b, err := it.TryBytes(); err == nil {
		return b
	}
	if n, err := it.TryInteger(32); err == nil {
		return n
	}
	return it
}

// nativeResult converts a native-contract method's return value into a
// stack item. Complex domain types (blocks, transactions) have no
// first-class stack-item form here, so they round-trip through their own
// binary codec as a ByteString - a native contract script reading one
// back is expected to treat it opaquely rather than destructure fields
// the way it would a real contract-storage struct.
func nativeResult(v interface{}) stackitem.Item {
	switch val := v.(type) {
	case nil:
		return stackitem.NewNull()
	case util.Uint256:
		return stackitem.NewByteArray(val.BytesBE())
	case util.Uint160:
		return stackitem.NewByteArray(val.BytesBE())
	case uint32:
		return stackitem.Make(int64(val))
	case int32:
		return stackitem.Make(int64(val))
	case vio.Serializable:
		w := vio.NewBufBinWriter()
		val.EncodeBinary(w)
		return stackitem.NewByteArray(w.Bytes())
	default:
		return stackitem.Make(v)
	}
}
