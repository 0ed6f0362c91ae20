package core

import (
	"sort"
	"testing"

	"github.com/noriachain/neonode/pkg/core/block"
	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/crypto/hash"
	"github.com/noriachain/neonode/pkg/crypto/keys"
	"github.com/noriachain/neonode/pkg/vm/opcode"
	"github.com/stretchr/testify/require"
)

// signHeader signs hdr with the first quorum keys (by sorted public-key
// order, the order CreateMultiSigRedeemScript committed to) from privs,
// and installs the resulting witness.
func signHeader(t *testing.T, hdr *block.Header, verification []byte, privs []*keys.PrivateKey, quorum int) {
	t.Helper()

	sorted := make(keys.PublicKeys, len(privs))
	for i, p := range privs {
		sorted[i] = p.PublicKey()
	}
	sort.Sort(sorted)

	msg := hdr.Hash().BytesBE()

	var invocation []byte
	used := 0
	for _, pub := range sorted {
		if used == quorum {
			break
		}
		for _, p := range privs {
			if string(p.PublicKey().Bytes()) == string(pub.Bytes()) {
				sig := p.Sign(msg)
				invocation = append(invocation, 0x0c, 64)
				invocation = append(invocation, sig...)
				used++
				break
			}
		}
	}
	require.Equal(t, quorum, used)

	hdr.Script = transaction.Witness{
		InvocationScript:   invocation,
		VerificationScript: verification,
	}
}

func TestVerifyHeaderAcceptsValidExtension(t *testing.T) {
	n := 4
	privs, committee := testStandbyCommittee(t, n)
	cfg := testProtocolConfig(t, n)
	cfg.StandbyCommittee = committee

	genesis, err := createGenesisBlock(cfg)
	require.NoError(t, err)

	vals, err := getValidators(cfg)
	require.NoError(t, err)
	verification, err := keys.CreateMultiSigRedeemScript(n-(n-1)/3, vals)
	require.NoError(t, err)

	child := &block.Block{}
	child.Version = block.VersionInitial
	child.PrevHash = genesis.Hash()
	child.Index = 1
	child.Timestamp = genesis.Timestamp + 1
	child.NextConsensus = genesis.NextConsensus
	signHeader(t, &child.Header, verification, privs, n-(n-1)/3)
	child.RebuildMerkleRoot()

	bc := &Blockchain{}
	require.NoError(t, bc.verifyHeader(&child.Header, &genesis.Header))
}

func TestVerifyHeaderRejectsWrongPrevHash(t *testing.T) {
	n := 4
	privs, committee := testStandbyCommittee(t, n)
	cfg := testProtocolConfig(t, n)
	cfg.StandbyCommittee = committee

	genesis, err := createGenesisBlock(cfg)
	require.NoError(t, err)

	vals, err := getValidators(cfg)
	require.NoError(t, err)
	verification, err := keys.CreateMultiSigRedeemScript(n-(n-1)/3, vals)
	require.NoError(t, err)

	child := &block.Block{}
	child.Version = block.VersionInitial
	child.PrevHash = block.New(genesis.Network, false).Hash() // wrong, not genesis.Hash()
	child.Index = 1
	child.Timestamp = genesis.Timestamp + 1
	child.NextConsensus = genesis.NextConsensus
	signHeader(t, &child.Header, verification, privs, n-(n-1)/3)
	child.RebuildMerkleRoot()

	bc := &Blockchain{}
	require.ErrorIs(t, bc.verifyHeader(&child.Header, &genesis.Header), ErrHdrHashMismatch)
}

func TestVerifyHeaderRejectsStaleTimestamp(t *testing.T) {
	n := 4
	privs, committee := testStandbyCommittee(t, n)
	cfg := testProtocolConfig(t, n)
	cfg.StandbyCommittee = committee

	genesis, err := createGenesisBlock(cfg)
	require.NoError(t, err)

	vals, err := getValidators(cfg)
	require.NoError(t, err)
	verification, err := keys.CreateMultiSigRedeemScript(n-(n-1)/3, vals)
	require.NoError(t, err)

	child := &block.Block{}
	child.Version = block.VersionInitial
	child.PrevHash = genesis.Hash()
	child.Index = 1
	child.Timestamp = genesis.Timestamp // not advanced
	child.NextConsensus = genesis.NextConsensus
	signHeader(t, &child.Header, verification, privs, n-(n-1)/3)
	child.RebuildMerkleRoot()

	bc := &Blockchain{}
	require.ErrorIs(t, bc.verifyHeader(&child.Header, &genesis.Header), ErrHdrInvalidTimestamp)
}

func TestVerifyBodyRejectsDuplicateTransaction(t *testing.T) {
	tx := signedTx(t)

	b := block.New(0, false)
	b.Transactions = []*transaction.Transaction{tx, tx}
	b.RebuildMerkleRoot()

	bc := &Blockchain{}
	require.ErrorIs(t, bc.verifyBody(b), ErrTxDuplicate)
}

func TestVerifyBodyAcceptsWellFormedTransaction(t *testing.T) {
	tx := signedTx(t)

	b := block.New(0, false)
	b.Transactions = []*transaction.Transaction{tx}
	b.RebuildMerkleRoot()

	bc := &Blockchain{}
	require.NoError(t, bc.verifyBody(b))
}

// signedTx builds a single-signer transaction whose witness validly
// authorizes its own (otherwise-irrelevant) script.
func signedTx(t *testing.T) *transaction.Transaction {
	t.Helper()
	priv, err := keys.NewPrivateKey()
	require.NoError(t, err)
	pub := priv.PublicKey()
	verification := pub.VerificationScript()

	tx := transaction.New([]byte{byte(opcode.RET)}, 0)
	tx.Signers = []transaction.Signer{{Account: hash.Hash160(verification), Scopes: transaction.CalledByEntry}}

	sig := priv.Sign(tx.Hash().BytesBE())
	invocation := append([]byte{0x0c, 64}, sig...)
	tx.Scripts = []transaction.Witness{{InvocationScript: invocation, VerificationScript: verification}}
	return tx
}

func TestVerifyBodyRejectsWrongMerkleRoot(t *testing.T) {
	b := block.New(0, false)
	b.MerkleRoot[0] = 0xff

	bc := &Blockchain{}
	require.Error(t, bc.verifyBody(b))
}
