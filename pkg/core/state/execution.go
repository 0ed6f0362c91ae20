package state

import (
	"github.com/noriachain/neonode/pkg/smartcontract/trigger"
	"github.com/noriachain/neonode/pkg/util"
	"github.com/noriachain/neonode/pkg/vm/stackitem"
)

// Execution is the outcome of running one script under one trigger: its
// resulting evaluation stack, gas spent, emitted notifications, and -
// on Fault - the exception text shown to RPC callers.
type Execution struct {
	Trigger        trigger.Type
	VMState        string
	GasConsumed    int64
	Stack          []stackitem.Item
	Events         []NotificationEvent
	FaultException string
}

// AppExecResult pairs an Execution with the block/transaction hash that
// produced it, the unit persisted to and served from the chain's
// application-log store.
type AppExecResult struct {
	Container util.Uint256
	Execution
}
