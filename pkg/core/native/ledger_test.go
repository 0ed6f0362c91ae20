package native

import (
	"testing"

	"github.com/noriachain/neonode/pkg/config/netmode"
	"github.com/noriachain/neonode/pkg/core/block"
	"github.com/noriachain/neonode/pkg/core/dao"
	"github.com/noriachain/neonode/pkg/core/interop"
	"github.com/noriachain/neonode/pkg/core/storage"
	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/smartcontract/trigger"
	"github.com/noriachain/neonode/pkg/vm/opcode"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) (*Ledger, *dao.Simple) {
	d := dao.NewSimple(storage.NewMemoryStore(), false, true)
	return NewLedger(d), d
}

func storeBlockWithTx(t *testing.T, d *dao.Simple, index uint32, tx *transaction.Transaction) *block.Block {
	b := block.New(netmode.UnitTestNet, false)
	b.Index = index
	b.Transactions = []*transaction.Transaction{tx}
	b.RebuildMerkleRoot()

	require.NoError(t, d.StoreAsBlock(b, nil))
	require.NoError(t, d.StoreAsCurrentBlock(b, nil))
	require.NoError(t, d.StoreAsTransaction(tx, index, nil))
	return b
}

func TestLedgerCurrentHashAndIndex(t *testing.T) {
	l, d := newTestLedger(t)
	tx := transaction.New([]byte{byte(opcode.RET)}, 0)
	b := storeBlockWithTx(t, d, 7, tx)

	c := interop.NewContext(d, trigger.Application, nil, 7, 0)

	got, err := l.Invoke(c, "currentHash", nil)
	require.NoError(t, err)
	require.Equal(t, b.Hash(), got)

	gotIndex, err := l.Invoke(c, "currentIndex", nil)
	require.NoError(t, err)
	require.Equal(t, uint32(7), gotIndex)
}

func TestLedgerGetTransactionAndHeight(t *testing.T) {
	l, d := newTestLedger(t)
	tx := transaction.New([]byte{byte(opcode.RET)}, 42)
	storeBlockWithTx(t, d, 3, tx)

	c := interop.NewContext(d, trigger.Application, nil, 3, 0)

	got, err := l.Invoke(c, "getTransaction", []interface{}{tx.Hash().BytesBE()})
	require.NoError(t, err)
	gotTx, ok := got.(*transaction.Transaction)
	require.True(t, ok)
	require.Equal(t, tx.Hash(), gotTx.Hash())

	height, err := l.Invoke(c, "getTransactionHeight", []interface{}{tx.Hash().BytesBE()})
	require.NoError(t, err)
	require.Equal(t, int32(3), height)
}

func TestLedgerGetTransactionHeightMissing(t *testing.T) {
	l, d := newTestLedger(t)
	c := interop.NewContext(d, trigger.Application, nil, 0, 0)

	tx := transaction.New([]byte{byte(opcode.RET)}, 0)
	height, err := l.Invoke(c, "getTransactionHeight", []interface{}{tx.Hash().BytesBE()})
	require.NoError(t, err)
	require.Equal(t, int32(-1), height)
}

func TestLedgerUnknownMethod(t *testing.T) {
	l, d := newTestLedger(t)
	c := interop.NewContext(d, trigger.Application, nil, 0, 0)

	_, err := l.Invoke(c, "notAMethod", nil)
	require.ErrorIs(t, err, errUnknownMethod)
}
