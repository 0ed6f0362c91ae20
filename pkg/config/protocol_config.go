package config

import (
	"errors"
	"time"

	"github.com/noriachain/neonode/pkg/config/netmode"
	"github.com/noriachain/neonode/pkg/util"
)

// ProtocolConfiguration is the chain-wide, network-level parameter set
// every node on the same network must agree on (§6).
type ProtocolConfiguration struct {
	// Magic is the network identifier carried in every P2P message; block
	// and transaction hashes do not include it.
	Magic netmode.Magic `yaml:"Magic"`
	// Genesis carries the block-zero construction parameters.
	Genesis Genesis `yaml:"Genesis"`

	// InitialGASSupply is loaded from configuration; nothing reads it, and
	// the genesis block mints no GAS.
	InitialGASSupply util.Fixed8 `yaml:"InitialGASSupply"`
	// MaxBlockSize bounds a block's total wire size; zero disables the
	// check.
	MaxBlockSize uint32 `yaml:"MaxBlockSize"`
	// MaxBlockSystemFee bounds the sum of a block's transactions'
	// SystemFee; zero disables the check.
	MaxBlockSystemFee int64 `yaml:"MaxBlockSystemFee"`
	// MaxTraceableBlocks is reported by getversion; neither contract
	// execution nor ValidUntilBlock checks consult it.
	MaxTraceableBlocks uint32 `yaml:"MaxTraceableBlocks"`
	// MaxTransactionsPerBlock bounds a block's transaction count.
	MaxTransactionsPerBlock uint16 `yaml:"MaxTransactionsPerBlock"`
	// MaxValidUntilBlockIncrement bounds how far into the future a
	// transaction's ValidUntilBlock may be set.
	MaxValidUntilBlockIncrement uint32 `yaml:"MaxValidUntilBlockIncrement"`
	// MemPoolSize is the mempool's capacity, counted across its verified
	// and unverified partitions together.
	MemPoolSize int `yaml:"MemPoolSize"`
	// P2PSigExtensions enables Conflicts/NotaryAssisted attribute
	// processing.
	P2PSigExtensions bool `yaml:"P2PSigExtensions"`
	// SeedList is the bootstrap peer address list.
	SeedList []string `yaml:"SeedList"`
	// StandbyCommittee is the ordered list of compressed public keys
	// making up the committee (and, by prefix, the consensus
	// validators) at genesis.
	StandbyCommittee []string `yaml:"StandbyCommittee"`
	// StateRootInHeader enables storing the MPT state root commitment
	// in every block header.
	StateRootInHeader bool `yaml:"StateRootInHeader"`
	// TimePerBlock is the minimum interval between blocks that
	// consensus nodes target.
	TimePerBlock time.Duration `yaml:"TimePerBlock"`
	// ValidatorsCount is the number of StandbyCommittee entries, from
	// the front, that act as consensus validators.
	ValidatorsCount int `yaml:"ValidatorsCount"`
	// VerifyTransactions is loaded from configuration but not consulted:
	// AddBlock always runs StateDependent verification of the
	// transactions inside a block.
	VerifyTransactions bool `yaml:"VerifyTransactions"`
}

// Validate checks internal consistency of the protocol settings.
func (p *ProtocolConfiguration) Validate() error {
	if p.ValidatorsCount <= 0 {
		return errors.New("config: ValidatorsCount must be positive")
	}
	if len(p.StandbyCommittee) < p.ValidatorsCount {
		return errors.New("config: StandbyCommittee shorter than ValidatorsCount")
	}
	if p.TimePerBlock <= 0 {
		return errors.New("config: TimePerBlock must be positive")
	}
	if p.MaxTransactionsPerBlock == 0 {
		return errors.New("config: MaxTransactionsPerBlock must be positive")
	}
	return nil
}
