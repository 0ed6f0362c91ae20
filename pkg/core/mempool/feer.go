// Package mempool implements the fee-ordered transaction pool: admission
// verification, a verified/unverified partition split, conflict-based
// replacement, and eviction under capacity pressure (§4.7).
package mempool

import (
	"math/big"

	"github.com/noriachain/neonode/pkg/util"
)

// Feer answers the chain-state questions Add needs but the pool itself
// has no business tracking: current fee policy, chain height, and a
// signer's spendable GAS.
type Feer interface {
	GetBaseExecFee() int64
	FeePerByte() int64
	BlockHeight() uint32
	GetUtilityTokenBalance(acc util.Uint160) *big.Int
	P2PSigExtensionsEnabled() bool
}
