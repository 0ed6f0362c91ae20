package state

import (
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/smartcontract/trigger"
	"github.com/noriachain/neonode/pkg/vm/stackitem"
)

const maxNotifications = 1024
const maxStackItems = 2048

// EncodeBinary implements io.Serializable.
func (n *NotificationEvent) EncodeBinary(w *vio.BinWriter) {
	n.ScriptHash.EncodeBinary(w)
	w.WriteString(n.Name)
	b, err := stackitem.Serialize(n.Item)
	if err != nil {
		w.Err = err
		return
	}
	w.WriteVarBytes(b)
}

// DecodeBinary implements io.Serializable.
func (n *NotificationEvent) DecodeBinary(r *vio.BinReader) {
	n.ScriptHash.DecodeBinary(r)
	n.Name = r.ReadString(stackitem.MaxByteArraySize)
	b := r.ReadVarBytes(stackitem.MaxByteArraySize)
	if r.Err != nil {
		return
	}
	item, err := stackitem.Deserialize(b)
	if err != nil {
		r.Err = err
		return
	}
	arr, ok := item.(*stackitem.Array)
	if !ok {
		arr = stackitem.NewArray([]stackitem.Item{item})
	}
	n.Item = arr
}

// EncodeBinary implements io.Serializable.
func (e *Execution) EncodeBinary(w *vio.BinWriter) {
	w.WriteU8(byte(e.Trigger))
	w.WriteString(e.VMState)
	w.WriteI64LE(e.GasConsumed)
	w.WriteVarUint(uint64(len(e.Stack)))
	for _, it := range e.Stack {
		b, err := stackitem.Serialize(it)
		if err != nil {
			w.Err = err
			return
		}
		w.WriteVarBytes(b)
	}
	w.WriteVarUint(uint64(len(e.Events)))
	for i := range e.Events {
		e.Events[i].EncodeBinary(w)
	}
	w.WriteString(e.FaultException)
}

// DecodeBinary implements io.Serializable.
func (e *Execution) DecodeBinary(r *vio.BinReader) {
	e.Trigger = trigger.Type(r.ReadU8())
	e.VMState = r.ReadString(64)
	e.GasConsumed = r.ReadI64LE()
	n := r.ReadVarUint()
	if r.Err != nil {
		return
	}
	if n > maxStackItems {
		r.Err = vio.ErrOverflow
		return
	}
	e.Stack = make([]stackitem.Item, n)
	for i := range e.Stack {
		b := r.ReadVarBytes(stackitem.MaxByteArraySize)
		if r.Err != nil {
			return
		}
		item, err := stackitem.Deserialize(b)
		if err != nil {
			r.Err = err
			return
		}
		e.Stack[i] = item
	}
	e.Events = vio.ReadArray[NotificationEvent, *NotificationEvent](r, maxNotifications)
	e.FaultException = r.ReadString(1024)
}

// EncodeBinary implements io.Serializable.
func (a *AppExecResult) EncodeBinary(w *vio.BinWriter) {
	a.Container.EncodeBinary(w)
	a.Execution.EncodeBinary(w)
}

// DecodeBinary implements io.Serializable.
func (a *AppExecResult) DecodeBinary(r *vio.BinReader) {
	a.Container.DecodeBinary(r)
	a.Execution.DecodeBinary(r)
}
