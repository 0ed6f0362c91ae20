// Package interop is the host side of the SYSCALL boundary: it wires a
// vm.VM's SyscallHandler to the blockchain state (dao, current block
// height, the triggering container) and to the runtime checks and storage
// primitives a script is allowed to invoke (§4.4, §C).
package interop

import (
	"encoding/binary"
	"errors"

	"github.com/noriachain/neonode/pkg/core/dao"
	"github.com/noriachain/neonode/pkg/core/state"
	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/smartcontract/callflag"
	"github.com/noriachain/neonode/pkg/smartcontract/trigger"
	"github.com/noriachain/neonode/pkg/util"
	"github.com/noriachain/neonode/pkg/vm"
	"github.com/noriachain/neonode/pkg/vm/stackitem"
)

var errCallFlagDenied = errors.New("interop: call flag not granted to the current context")

// Container is whatever triggered this execution: a transaction under
// Verification/Application, nothing under OnPersist/PostPersist.
type Container interface {
	Hash() util.Uint256
}

// Context aggregates everything a syscall handler needs beyond the VM
// itself: persistent state, the triggering container, and the
// notifications/log lines accumulated so far.
type Context struct {
	VM        *vm.VM
	DAO       *dao.Simple
	Trigger   trigger.Type
	Container Container
	Height    uint32

	Notifications []state.NotificationEvent
	Logs          []string

	// Natives holds the node's built-in contracts, keyed by script hash,
	// for System.Contract.Call to route into - populated by whoever
	// constructs the Context (the blockchain layer owns the registry; an
	// interface here keeps this package from importing native and
	// creating a cycle).
	Natives map[util.Uint160]NativeContract
}

// NativeContract is the subset of a native contract's surface the
// interop dispatcher needs to route a call into it.
type NativeContract interface {
	RequiredGas(method string) int64
	Invoke(c *Context, method string, args []interface{}) (interface{}, error)
}

// NewContext wires a fresh VM to the given persistent state and trigger,
// ready to have scripts Load()ed onto it.
func NewContext(d *dao.Simple, trig trigger.Type, container Container, height uint32, gasLimit int64) *Context {
	v := vm.New()
	v.SetGasLimit(gasLimit)
	ctx := &Context{VM: v, DAO: d, Trigger: trig, Container: container, Height: height}
	v.SyscallHandler = ctx.dispatch
	return ctx
}

// ScriptHashID derives the storage-partition id PutStorageItem/
// GetStorageItem key on, from a contract's 20-byte script hash. A full
// ContractManagement native contract would assign ids at deploy time;
// absent one, this is a stable, collision-free-in-practice stand-in,
// exported so callers outside this package (RPC's getstorage) address
// the same partition the interop layer wrote under.
func ScriptHashID(h []byte) int32 {
	if len(h) < 4 {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(h[:4]))
}

func (c *Context) currentScriptHash() util.Uint160 {
	h, _ := util.Uint160DecodeBytesBE(c.VM.CurrentScriptHash())
	return h
}

// requireFlag faults the VM and returns an error if the current frame
// wasn't loaded with every bit of required.
func (c *Context) requireFlag(required callflag.CallFlag) error {
	cf := callflag.CallFlag(0)
	if ctx := c.VM.Context(); ctx != nil {
		cf = callflag.CallFlag(ctx.CallFlags())
	}
	if !cf.Has(required) {
		return errCallFlagDenied
	}
	return nil
}

// Notify records a runtime notification emitted by the executing
// contract, mirroring the reference VM's System.Runtime.Notify.
func (c *Context) Notify(name string, args *stackitem.Array) {
	c.Notifications = append(c.Notifications, state.NotificationEvent{
		ScriptHash: c.currentScriptHash(),
		Name:       name,
		Item:       args,
	})
}

// CheckWitness reports whether acc authorized this execution. When the
// container is a Transaction, acc must be one of its Signers; witness
// scopes are not evaluated and the executing script hash is not
// consulted. For any other container, acc must equal the currently
// executing contract's script hash (self-signed calls).
func (c *Context) CheckWitness(acc util.Uint160) bool {
	if tx, ok := c.Container.(*transaction.Transaction); ok {
		return tx.HasSigner(acc)
	}
	return acc.Equals(c.currentScriptHash())
}
