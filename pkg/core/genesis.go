package core

import (
	"fmt"

	"github.com/noriachain/neonode/pkg/config"
	"github.com/noriachain/neonode/pkg/config/netmode"
	"github.com/noriachain/neonode/pkg/core/block"
	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/crypto/hash"
	"github.com/noriachain/neonode/pkg/crypto/keys"
	"github.com/noriachain/neonode/pkg/util"
)

// GetValidators exposes getValidators for callers outside this package
// (namely pkg/consensus) that need this block's consensus committee
// without reaching into Blockchain internals.
func GetValidators(cfg config.ProtocolConfiguration) (keys.PublicKeys, error) {
	return getValidators(cfg)
}

// getValidators parses the protocol config's StandbyCommittee and takes
// its first ValidatorsCount entries as the genesis consensus nodes.
func getValidators(cfg config.ProtocolConfiguration) (keys.PublicKeys, error) {
	if cfg.ValidatorsCount > len(cfg.StandbyCommittee) {
		return nil, fmt.Errorf("core: ValidatorsCount %d exceeds StandbyCommittee length %d", cfg.ValidatorsCount, len(cfg.StandbyCommittee))
	}
	vals := make(keys.PublicKeys, cfg.ValidatorsCount)
	for i := 0; i < cfg.ValidatorsCount; i++ {
		pub, err := keys.NewPublicKeyFromString(cfg.StandbyCommittee[i])
		if err != nil {
			return nil, fmt.Errorf("core: parsing StandbyCommittee[%d]: %w", i, err)
		}
		vals[i] = pub
	}
	return vals, nil
}

// GetNextConsensusAddress exposes getNextConsensusAddress for callers
// outside this package (namely pkg/consensus) building headers.
func GetNextConsensusAddress(validators keys.PublicKeys) (util.Uint160, error) {
	return getNextConsensusAddress(validators)
}

// getNextConsensusAddress derives the script hash of the m-of-n
// multisig redeem script committing the next block's validators, m
// being the smallest quorum tolerating f = (n-1)/3 faulty nodes.
func getNextConsensusAddress(validators keys.PublicKeys) (util.Uint160, error) {
	n := len(validators)
	m := n - (n-1)/3
	script, err := keys.CreateMultiSigRedeemScript(m, validators)
	if err != nil {
		return util.Uint160{}, err
	}
	return hash.Hash160(script), nil
}

// createGenesisBlock builds block zero: no predecessor, no state root,
// a witness satisfied trivially (there is no prior NextConsensus to
// check against), and - if cfg.Genesis.Transaction names one - a
// single embedded transaction whose signer is the validators' multisig
// account. Bootstrap stores that transaction without running it.
func createGenesisBlock(cfg config.ProtocolConfiguration) (*block.Block, error) {
	validators, err := getValidators(cfg)
	if err != nil {
		return nil, err
	}
	nextConsensus, err := getNextConsensusAddress(validators)
	if err != nil {
		return nil, err
	}

	b := block.New(cfg.Magic, cfg.StateRootInHeader)
	b.PrevHash = util.Uint256{}
	b.Timestamp = uint64(genesisTimestamp(cfg.Magic))
	b.Index = 0
	b.NextConsensus = nextConsensus
	b.Script = transaction.Witness{
		InvocationScript:   []byte{},
		VerificationScript: []byte{0x11}, // PUSH1: genesis has no predecessor witness to satisfy
	}

	if cfg.Genesis.Transaction != nil {
		tx := transaction.New(cfg.Genesis.Transaction.Script, cfg.Genesis.Transaction.SystemFee)
		tx.Nonce = 0
		tx.ValidUntilBlock = 0
		tx.Signers = []transaction.Signer{{Account: nextConsensus, Scopes: transaction.CalledByEntry}}
		tx.Scripts = []transaction.Witness{{InvocationScript: []byte{}, VerificationScript: []byte{0x11}}}
		b.Transactions = []*transaction.Transaction{tx}
	}
	b.RebuildMerkleRoot()
	return b, nil
}

// genesisTimestamp pins a deterministic, per-network genesis time so
// repeated genesis construction for the same Magic is reproducible.
func genesisTimestamp(magic netmode.Magic) int64 {
	switch magic {
	case netmode.MainNet:
		return 1468595301000
	case netmode.TestNet:
		return 1610603677279
	default:
		return 1600000000000
	}
}
