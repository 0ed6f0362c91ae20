package server

import (
	"github.com/noriachain/neonode/pkg/config/netmode"
	"github.com/noriachain/neonode/pkg/util"
)

// Version answers getversion (§6), mirroring the teacher's
// result.Version shape reduced to the fields this node actually tracks
// (no plugin list: this node has no plugin system).
type Version struct {
	TCPPort   uint16   `json:"tcpport"`
	Nonce     uint32   `json:"nonce"`
	UserAgent string   `json:"useragent"`
	Protocol  Protocol `json:"protocol"`
}

// Protocol is the network-parameter block nested in Version.
type Protocol struct {
	AddressVersion              byte        `json:"addressversion"`
	Network                     netmode.Magic `json:"network"`
	MillisecondsPerBlock        int64       `json:"msperblock"`
	MaxTraceableBlocks          uint32      `json:"maxtraceableblocks"`
	MaxValidUntilBlockIncrement uint32      `json:"maxvaliduntilblockincrement"`
	MaxTransactionsPerBlock     uint16      `json:"maxtransactionsperblock"`
	MemoryPoolMaxTransactions   int         `json:"memorypoolmaxtransactions"`
	P2PSigExtensions            bool        `json:"p2psigextensions"`
	StateRootInHeader           bool        `json:"staterootinheader"`
}

// ValidateAddress answers validateaddress (§6).
type ValidateAddress struct {
	Address interface{} `json:"address"`
	IsValid bool        `json:"isvalid"`
}

// Peer is one entry of GetPeers' connected/unconnected lists.
type Peer struct {
	Address string `json:"address"`
}

// GetPeers answers getpeers (§6).
type GetPeers struct {
	Unconnected []Peer `json:"unconnected"`
	Connected   []Peer `json:"connected"`
	Bad         []Peer `json:"bad"`
}

// ContractState answers getcontractstate for the handful of native
// contracts this node registers (§C's native-contract scaffolding;
// user-deployed contracts have no manifest registry here, see
// DESIGN.md, so any other hash gets an Invalid Params "unknown contract"
// error).
type ContractState struct {
	ID   int32        `json:"id"`
	Hash util.Uint160 `json:"hash"`
	Name string       `json:"name"`
}

// InvokeResult answers invokefunction/invokescript (§6).
type InvokeResult struct {
	State          string        `json:"state"`
	GasConsumed    string        `json:"gasconsumed"`
	Script         string        `json:"script"`
	Stack          []StackItem   `json:"stack"`
	FaultException string        `json:"exception,omitempty"`
}

// StackItem is a minimal JSON projection of a vm/stackitem.Item: enough
// for an RPC client to read a simple invocation result without needing
// the VM's internal types (§6 "JSON request dispatch only").
type StackItem struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// NEP17Balance is one entry of GetNep17Balances' Balance list.
type NEP17Balance struct {
	Asset       util.Uint160 `json:"assethash"`
	Amount      string       `json:"amount"`
	LastUpdated uint32       `json:"lastupdatedblock"`
}

// GetNep17Balances answers getnep17balances (§6). This node implements
// no NEP17 token economics (§1 native-contract business logic is out of
// scope), so Balances is always empty; the method still dispatches and
// validates its address parameter, matching the "boundary interface
// only" framing.
type GetNep17Balances struct {
	Address  string         `json:"address"`
	Balances []NEP17Balance `json:"balance"`
}
