package block

import (
	"bytes"
	"testing"

	"github.com/noriachain/neonode/pkg/config/netmode"
	"github.com/noriachain/neonode/pkg/core/transaction"
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/vm/opcode"
	"github.com/stretchr/testify/require"
)

func newSignedBlock() *Block {
	b := New(netmode.UnitTestNet, false)
	b.Index = 1
	b.Script = transaction.Witness{
		InvocationScript:   []byte{byte(opcode.NOP)},
		VerificationScript: []byte{byte(opcode.PUSH1)},
	}
	return b
}

func TestBlockEncodeDecode(t *testing.T) {
	b := newSignedBlock()
	tx := transaction.New([]byte{byte(opcode.PUSH1)}, 0)
	tx.Signers = []transaction.Signer{{}}
	tx.Scripts = []transaction.Witness{{}}
	b.Transactions = []*transaction.Transaction{tx}
	b.RebuildMerkleRoot()

	w := vio.NewBufBinWriter()
	b.EncodeBinary(w)
	require.NoError(t, w.Err)

	got := &Block{}
	got.StateRootEnabled = false
	r := vio.NewBinReaderFromIO(bytes.NewReader(w.Bytes()))
	got.DecodeBinary(r)
	require.NoError(t, r.Err)
	require.Equal(t, b.Index, got.Index)
	require.Len(t, got.Transactions, 1)
	require.Equal(t, b.MerkleRoot, got.MerkleRoot)
	require.Equal(t, b.Hash(), got.Hash())
}

func TestHeaderWrongWitnessCount(t *testing.T) {
	b := newSignedBlock()
	w := vio.NewBufBinWriter()
	b.Header.encodeHashableFields(w)
	w.WriteVarUint(2)
	require.NoError(t, w.Err)

	h := &Header{}
	r := vio.NewBinReaderFromIO(bytes.NewReader(w.Bytes()))
	h.DecodeBinary(r)
	require.ErrorIs(t, r.Err, errWrongWitnessCount)
}
