package core

import (
	"testing"

	"github.com/noriachain/neonode/pkg/core/block"
	"github.com/noriachain/neonode/pkg/core/storage"
	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/crypto/hash"
	"github.com/noriachain/neonode/pkg/crypto/keys"
	"github.com/noriachain/neonode/pkg/vm/opcode"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestChain(t *testing.T, n int) (*Blockchain, []*keys.PrivateKey) {
	t.Helper()
	privs, committee := testStandbyCommittee(t, n)
	cfg := testProtocolConfig(t, n)
	cfg.StandbyCommittee = committee

	bc, err := New(cfg, storage.NewMemoryStore(), zap.NewNop())
	require.NoError(t, err)
	return bc, privs
}

func TestNewBootstrapsGenesis(t *testing.T) {
	bc, _ := newTestChain(t, 4)
	require.Equal(t, uint32(0), bc.BlockHeight())

	genesis, err := bc.GetBlock(bc.CurrentBlockHash())
	require.NoError(t, err)
	require.Equal(t, uint32(0), genesis.Index)
}

func TestNewIsIdempotentOverExistingStore(t *testing.T) {
	store := storage.NewMemoryStore()
	cfg := testProtocolConfig(t, 4)

	bc1, err := New(cfg, store, zap.NewNop())
	require.NoError(t, err)
	tip := bc1.CurrentBlockHash()

	bc2, err := New(cfg, store, zap.NewNop())
	require.NoError(t, err)
	require.True(t, tip.Equals(bc2.CurrentBlockHash()))
}

func signedBlockFollowing(t *testing.T, bc *Blockchain, privs []*keys.PrivateKey, quorum int, txs []*transaction.Transaction) *block.Block {
	t.Helper()
	tipHash := bc.CurrentBlockHash()
	tip, err := bc.GetBlock(tipHash)
	require.NoError(t, err)

	b := &block.Block{}
	b.Version = block.VersionInitial
	b.PrevHash = tip.Hash()
	b.Index = tip.Index + 1
	b.Timestamp = tip.Timestamp + 1
	b.NextConsensus = tip.NextConsensus
	b.Transactions = txs
	b.RebuildMerkleRoot()

	vals, err := getValidators(bc.config)
	require.NoError(t, err)
	verification, err := keys.CreateMultiSigRedeemScript(quorum, vals)
	require.NoError(t, err)
	signHeader(t, &b.Header, verification, privs, quorum)
	return b
}

func TestAddBlockExtendsChain(t *testing.T) {
	bc, privs := newTestChain(t, 4)
	b := signedBlockFollowing(t, bc, privs, 3, nil)

	require.NoError(t, bc.AddBlock(b))
	require.Equal(t, uint32(1), bc.BlockHeight())
	require.True(t, bc.CurrentBlockHash().Equals(b.Hash()))
}

func TestAddBlockPersistsAndExecutesTransactions(t *testing.T) {
	bc, privs := newTestChain(t, 4)
	tx := signedTxValidUntil(t, 100)
	b := signedBlockFollowing(t, bc, privs, 3, []*transaction.Transaction{tx})

	require.NoError(t, bc.AddBlock(b))

	got, idx, err := bc.GetTransaction(tx.Hash())
	require.NoError(t, err)
	require.Equal(t, uint32(1), idx)
	require.Equal(t, tx.Hash(), got.Hash())
}

func TestAddBlockRejectsInvalidHeader(t *testing.T) {
	bc, privs := newTestChain(t, 4)
	b := signedBlockFollowing(t, bc, privs, 3, nil)
	b.Index = 5 // breaks the +1 chain-extension rule

	require.ErrorIs(t, bc.AddBlock(b), ErrInvalidBlock)
	require.Equal(t, uint32(0), bc.BlockHeight())
}

// signedTxValidUntil builds a well-formed transaction like signedTx but
// with an explicit ValidUntilBlock, needed once a chain height exists
// for AddBlock's state-dependent check to accept it against.
func signedTxValidUntil(t *testing.T, validUntil uint32) *transaction.Transaction {
	t.Helper()
	priv, err := keys.NewPrivateKey()
	require.NoError(t, err)
	verification := priv.PublicKey().VerificationScript()

	tx := transaction.New([]byte{byte(opcode.RET)}, 0)
	tx.ValidUntilBlock = validUntil
	tx.Signers = []transaction.Signer{{Account: hash.Hash160(verification), Scopes: transaction.CalledByEntry}}

	sig := priv.Sign(tx.Hash().BytesBE())
	invocation := append([]byte{0x0c, 64}, sig...)
	tx.Scripts = []transaction.Witness{{InvocationScript: invocation, VerificationScript: verification}}
	return tx
}
