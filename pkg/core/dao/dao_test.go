package dao

import (
	"testing"

	"github.com/noriachain/neonode/pkg/config/netmode"
	"github.com/noriachain/neonode/pkg/core/block"
	"github.com/noriachain/neonode/pkg/core/state"
	"github.com/noriachain/neonode/pkg/core/storage"
	"github.com/noriachain/neonode/pkg/core/transaction"
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/smartcontract/trigger"
	"github.com/noriachain/neonode/pkg/util"
	"github.com/noriachain/neonode/pkg/vm/opcode"
	"github.com/noriachain/neonode/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
)

type testSerializable struct{ field string }

func (t *testSerializable) EncodeBinary(w *vio.BinWriter) { w.WriteString(t.field) }
func (t *testSerializable) DecodeBinary(r *vio.BinReader) { t.field = r.ReadString(256) }

func TestPutGetAndDecode(t *testing.T) {
	d := NewSimple(storage.NewMemoryStore(), false, false)
	s := &testSerializable{field: "hello"}
	require.NoError(t, d.Put(s, []byte{1}))

	got := &testSerializable{}
	require.NoError(t, d.GetAndDecode(got, []byte{1}))
	require.Equal(t, s.field, got.field)
}

func TestPutGetAppExecResult(t *testing.T) {
	d := NewSimple(storage.NewMemoryStore(), false, false)
	hash := util.Uint256{1, 2, 3}
	result := &state.AppExecResult{
		Container: hash,
		Execution: state.Execution{
			Trigger: trigger.Application,
			Events:  []state.NotificationEvent{},
			Stack:   []stackitem.Item{},
		},
	}
	require.NoError(t, d.AppendAppExecResult(result, nil))
	got, err := d.GetAppExecResults(hash, trigger.All)
	require.NoError(t, err)
	require.Equal(t, []state.AppExecResult{*result}, got)
}

func TestPutGetDeleteStorageItem(t *testing.T) {
	d := NewSimple(storage.NewMemoryStore(), false, false)
	id := int32(5)
	key := []byte{0}
	item := state.StorageItem{1, 2, 3}
	require.NoError(t, d.PutStorageItem(id, key, item))
	require.Equal(t, item, d.GetStorageItem(id, key))

	require.NoError(t, d.DeleteStorageItem(id, key))
	require.Nil(t, d.GetStorageItem(id, key))
}

func TestGetBlockNotExists(t *testing.T) {
	d := NewSimple(storage.NewMemoryStore(), false, false)
	b, err := d.GetBlock(util.Uint256{9, 9, 9})
	require.Error(t, err)
	require.Nil(t, b)
}

func TestPutGetBlock(t *testing.T) {
	d := NewSimple(storage.NewMemoryStore(), false, false)
	b := block.New(netmode.UnitTestNet, false)
	b.Script = transaction.Witness{
		VerificationScript: []byte{byte(opcode.PUSH1)},
		InvocationScript:   []byte{byte(opcode.NOP)},
	}
	hash := b.Hash()
	require.NoError(t, d.StoreAsBlock(b, nil))
	got, err := d.GetBlock(hash)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestGetVersionNoVersion(t *testing.T) {
	d := NewSimple(storage.NewMemoryStore(), false, false)
	v, err := d.GetVersion()
	require.Error(t, err)
	require.Equal(t, "", v.Value)
}

func TestPutGetVersion(t *testing.T) {
	d := NewSimple(storage.NewMemoryStore(), false, false)
	require.NoError(t, d.PutVersion(Version{Prefix: 0x42, Value: "testVersion"}))
	v, err := d.GetVersion()
	require.NoError(t, err)
	require.EqualValues(t, 0x42, v.Prefix)
	require.Equal(t, "testVersion", v.Value)
}

func TestGetCurrentBlockHeightNoHeader(t *testing.T) {
	d := NewSimple(storage.NewMemoryStore(), false, false)
	h, err := d.GetCurrentBlockHeight()
	require.Error(t, err)
	require.Equal(t, uint32(0), h)
}

func TestStoreAsCurrentBlock(t *testing.T) {
	d := NewSimple(storage.NewMemoryStore(), false, false)
	b := block.New(netmode.UnitTestNet, false)
	b.Script = transaction.Witness{
		VerificationScript: []byte{byte(opcode.PUSH1)},
		InvocationScript:   []byte{byte(opcode.NOP)},
	}
	require.NoError(t, d.StoreAsCurrentBlock(b, nil))
	h, err := d.GetCurrentBlockHeight()
	require.NoError(t, err)
	require.Equal(t, uint32(0), h)
}

func TestStoreAsTransactionConflicts(t *testing.T) {
	d := NewSimple(storage.NewMemoryStore(), false, true)
	conflictsH := util.Uint256{1, 2, 3}
	tx := transaction.New([]byte{byte(opcode.PUSH1)}, 1)
	tx.Attributes = []transaction.Attribute{
		{Type: transaction.ConflictsT, Value: &transaction.Conflicts{Hash: conflictsH}},
	}
	hash := tx.Hash()
	require.NoError(t, d.StoreAsTransaction(tx, 0, nil))
	require.ErrorIs(t, d.HasTransaction(hash), ErrAlreadyExists)
	require.ErrorIs(t, d.HasTransaction(conflictsH), ErrHasConflicts)
}

func TestStateSyncPoint(t *testing.T) {
	d := NewSimple(storage.NewMemoryStore(), true, false)
	_, err := d.GetStateSyncPoint()
	require.Error(t, err)

	require.NoError(t, d.PutStateSyncPoint(5))
	got, err := d.GetStateSyncPoint()
	require.NoError(t, err)
	require.Equal(t, uint32(5), got)
}

func TestMakeStorageItemKey(t *testing.T) {
	id := int32(5)
	expected := []byte{byte(storage.STStorage), 5, 0, 0, 0, 1, 2, 3}
	require.Equal(t, expected, makeStorageItemKey(storage.STStorage, id, []byte{1, 2, 3}))
	require.Equal(t, expected[:5], makeStorageItemKey(storage.STStorage, id, nil))
}
