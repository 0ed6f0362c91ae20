package mempool

import (
	"math/big"
	"testing"

	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/util"
	"github.com/noriachain/neonode/pkg/vm/opcode"
	"github.com/stretchr/testify/require"
)

type feerStub struct {
	height     uint32
	feePerByte int64
	balance    int64
	p2pSig     bool
}

func (f *feerStub) GetBaseExecFee() int64               { return 30 }
func (f *feerStub) FeePerByte() int64                   { return f.feePerByte }
func (f *feerStub) BlockHeight() uint32                 { return f.height }
func (f *feerStub) GetUtilityTokenBalance(util.Uint160) *big.Int { return big.NewInt(f.balance) }
func (f *feerStub) P2PSigExtensionsEnabled() bool       { return f.p2pSig }

func newTestTx(nonce uint32, networkFee int64) *transaction.Transaction {
	tx := transaction.New([]byte{byte(opcode.PUSH1), byte(opcode.RET)}, 0)
	tx.Nonce = nonce
	tx.NetworkFee = networkFee
	tx.ValidUntilBlock = 1000
	tx.Signers = []transaction.Signer{{Account: util.Uint160{byte(nonce)}}}
	tx.Scripts = []transaction.Witness{{}}
	return tx
}

func TestPoolAddTryGetRemove(t *testing.T) {
	mp := New(10, 0, false)
	fs := &feerStub{height: 1, balance: 1000000}
	tx := newTestTx(1, 100000)

	require.NoError(t, mp.Add(tx, fs))
	got, ok := mp.TryGetValue(tx.Hash())
	require.True(t, ok)
	require.Equal(t, tx, got)

	require.ErrorIs(t, mp.Add(tx, fs), ErrConflict)

	mp.Remove(tx.Hash(), fs)
	_, ok = mp.TryGetValue(tx.Hash())
	require.False(t, ok)
}

func TestPoolVerifiedOrdering(t *testing.T) {
	mp := New(10, 0, false)
	fs := &feerStub{height: 1, balance: 100000000}

	low := newTestTx(1, 1000)
	high := newTestTx(2, 900000)
	mid := newTestTx(3, 500000)

	require.NoError(t, mp.Add(low, fs))
	require.NoError(t, mp.Add(high, fs))
	require.NoError(t, mp.Add(mid, fs))

	ordered := mp.GetVerifiedTransactions()
	require.Len(t, ordered, 3)
	require.Equal(t, high.Hash(), ordered[0].Hash())
	require.Equal(t, mid.Hash(), ordered[1].Hash())
	require.Equal(t, low.Hash(), ordered[2].Hash())
}

func TestPoolEvictsLowestPriorityOverCapacity(t *testing.T) {
	mp := New(2, 0, false)
	fs := &feerStub{height: 1, balance: 100000000}

	ch := make(chan Event, 10)
	mp.SubscribeForTransactions(ch)

	low := newTestTx(1, 1000)
	mid := newTestTx(2, 5000)
	high := newTestTx(3, 9000)

	require.NoError(t, mp.Add(low, fs))
	require.NoError(t, mp.Add(mid, fs))
	require.NoError(t, mp.Add(high, fs))

	require.Equal(t, 2, mp.Count())
	_, ok := mp.TryGetValue(low.Hash())
	require.False(t, ok, "lowest fee_per_byte transaction should have been evicted")

	var sawEviction bool
	for {
		select {
		case ev := <-ch:
			if ev.Type == EventRemoved && ev.Reason == ReasonLowPriority && ev.Tx.Hash().Equals(low.Hash()) {
				sawEviction = true
			}
		default:
			require.True(t, sawEviction)
			return
		}
	}
}

func TestPoolRemoveStaleDropsInvalidAndResends(t *testing.T) {
	mp := New(10, 0, false)
	fs := &feerStub{height: 5, balance: 100000000}

	txs := make([]*transaction.Transaction, 5)
	for i := range txs {
		txs[i] = newTestTx(uint32(i), 1000)
		fs.height = uint32(i)
		require.NoError(t, mp.Add(txs[i], fs))
	}

	staleTxs := make(chan *transaction.Transaction, 10)
	mp.SetResendThreshold(5, func(tx *transaction.Transaction, _ interface{}) {
		staleTxs <- tx
	})

	isValid := func(tx *transaction.Transaction) bool { return tx.Nonce%2 == 0 }

	fs.height = 5
	mp.RemoveStale(isValid, fs)

	_, ok := mp.TryGetValue(txs[1].Hash())
	require.False(t, ok)
	_, ok = mp.TryGetValue(txs[3].Hash())
	require.False(t, ok)
	_, ok = mp.TryGetValue(txs[0].Hash())
	require.True(t, ok)

	require.Equal(t, txs[0].Hash(), (<-staleTxs).Hash())
}

func TestPoolConflictReplacement(t *testing.T) {
	mp := New(10, 0, false)
	fs := &feerStub{height: 1, balance: 100000000}

	victim := newTestTx(1, 1000)
	require.NoError(t, mp.Add(victim, fs))

	replacer := newTestTx(2, 900000)
	replacer.Attributes = []transaction.Attribute{
		{Type: transaction.ConflictsT, Value: &transaction.Conflicts{Hash: victim.Hash()}},
	}

	require.NoError(t, mp.Add(replacer, fs))

	_, ok := mp.TryGetValue(victim.Hash())
	require.False(t, ok, "lower fee_per_byte conflicting tx should be evicted")
	_, ok = mp.TryGetValue(replacer.Hash())
	require.True(t, ok)
}

func TestPoolConflictLoses(t *testing.T) {
	mp := New(10, 0, false)
	fs := &feerStub{height: 1, balance: 100000000}

	victim := newTestTx(1, 900000)
	require.NoError(t, mp.Add(victim, fs))

	challenger := newTestTx(2, 1000)
	challenger.Attributes = []transaction.Attribute{
		{Type: transaction.ConflictsT, Value: &transaction.Conflicts{Hash: victim.Hash()}},
	}

	require.ErrorIs(t, mp.Add(challenger, fs), ErrConflictsAttribute)
	_, ok := mp.TryGetValue(victim.Hash())
	require.True(t, ok)
}
