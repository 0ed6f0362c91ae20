package transaction

import (
	"bytes"
	"testing"

	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/util"
	"github.com/noriachain/neonode/pkg/vm/opcode"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeTransaction(t *testing.T) {
	tx := New([]byte{byte(opcode.PUSH1)}, 100)
	tx.Nonce = 42
	tx.NetworkFee = 10
	tx.ValidUntilBlock = 1000
	tx.Signers = []Signer{{Account: util.Uint160{1, 2, 3}, Scopes: CalledByEntry}}
	tx.Attributes = []Attribute{{Type: HighPriorityT, Value: &HighPriority{}}}
	tx.Scripts = []Witness{{InvocationScript: []byte{1}, VerificationScript: []byte{2}}}

	w := vio.NewBufBinWriter()
	tx.EncodeBinary(w)
	require.NoError(t, w.Err)

	got := &Transaction{}
	r := vio.NewBinReaderFromIO(bytes.NewReader(w.Bytes()))
	got.DecodeBinary(r)
	require.NoError(t, r.Err)
	require.Equal(t, tx.Nonce, got.Nonce)
	require.Equal(t, tx.NetworkFee, got.NetworkFee)
	require.Equal(t, tx.Signers, got.Signers)
	require.Equal(t, tx.Script, got.Script)
	require.Equal(t, tx.Hash(), got.Hash())
}

func TestHashStable(t *testing.T) {
	tx := New([]byte{byte(opcode.PUSH1)}, 0)
	h1 := tx.Hash()
	tx.Scripts = []Witness{{InvocationScript: []byte{9}}}
	h2 := tx.Hash()
	require.Equal(t, h1, h2, "witness scripts are not part of the hashable fields")
}

func TestWitnessScopeString(t *testing.T) {
	require.Equal(t, "Global", Global.String())
	require.Equal(t, "CalledByEntry", CalledByEntry.String())
	_, err := ScopesFromByte(byte(Global | CalledByEntry))
	require.Error(t, err)
}

func TestConflictsAllowsMultiple(t *testing.T) {
	require.True(t, AllowsMultiple(ConflictsT))
	require.False(t, AllowsMultiple(HighPriorityT))
}
