// Package state holds the persisted-but-not-consensus-critical records a
// node keeps about what happened when it ran a script: emitted
// notifications and the overall per-trigger execution result (§4.8, §C).
package state

import (
	"github.com/noriachain/neonode/pkg/util"
	"github.com/noriachain/neonode/pkg/vm/stackitem"
)

// NotificationEvent is one System.Runtime.Notify call captured during
// execution.
type NotificationEvent struct {
	ScriptHash util.Uint160
	Name       string
	Item       *stackitem.Array
}
