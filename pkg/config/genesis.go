package config

import "time"

// Genesis holds the settings needed to construct block zero and seed
// native-contract state at chain start (§C genesis block construction).
type Genesis struct {
	// MaxTraceableBlocks is loaded from configuration; nothing reads it.
	MaxTraceableBlocks uint32 `yaml:"MaxTraceableBlocks"`
	// MaxValidUntilBlockIncrement bounds a transaction's ValidUntilBlock
	// relative to the height at acceptance time.
	MaxValidUntilBlockIncrement uint32 `yaml:"MaxValidUntilBlockIncrement"`
	// TimePerBlock is the minimum interval between blocks.
	TimePerBlock time.Duration `yaml:"TimePerBlock"`
	// Transaction, if set, is included as the genesis block's sole
	// transaction, signed for by the validators' multisig account (a
	// NeoGo-style test/private-net extension). Bootstrap stores it without
	// running its script or charging its system fee.
	Transaction *GenesisTransaction `yaml:"Transaction,omitempty"`
}

// GenesisTransaction is a script to embed in the genesis block.
type GenesisTransaction struct {
	Script    []byte `yaml:"-"`
	SystemFee int64  `yaml:"SystemFee"`
}
