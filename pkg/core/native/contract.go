// Package native implements the built-in contracts a script invokes
// through the normal SYSCALL/CALL surface rather than over the network:
// no manifest, no deployment, just a fixed script hash the interop layer
// recognizes (§C).
package native

import (
	"github.com/noriachain/neonode/pkg/core/interop"
	"github.com/noriachain/neonode/pkg/util"
)

// Metadata describes a native contract's identity for registration and
// RPC/manifest reporting.
type Metadata struct {
	Name string
	Hash util.Uint160
}

// Contract is a native contract: something the interop layer can route
// a System.Contract.Call to by hash, charging RequiredGas for the method
// invoked before running Invoke.
type Contract interface {
	Metadata() Metadata
	RequiredGas(method string) int64
	Invoke(c *interop.Context, method string, args []interface{}) (interface{}, error)
}
