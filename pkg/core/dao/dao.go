// Package dao layers typed accessors and a small amount of change
// tracking over a storage.Store: blocks, transactions, contract
// storage items, application execution logs and singleton chain
// metadata, all addressed through storage.KeyPrefix-tagged keys (§4.5).
package dao

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/noriachain/neonode/pkg/core/block"
	"github.com/noriachain/neonode/pkg/core/state"
	"github.com/noriachain/neonode/pkg/core/storage"
	"github.com/noriachain/neonode/pkg/core/transaction"
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/smartcontract/trigger"
	"github.com/noriachain/neonode/pkg/util"
)

// ErrAlreadyExists is returned by HasTransaction when the hash is
// already on chain.
var ErrAlreadyExists = errors.New("dao: transaction already exists")

// ErrHasConflicts is returned by HasTransaction when the hash was named
// by another transaction's Conflicts attribute (§C).
var ErrHasConflicts = errors.New("dao: transaction conflicts with an on-chain transaction")

var errNotFound = errors.New("dao: not found")

// Simple is a thin typed facade over a storage.Store. It performs no
// snapshot isolation of its own - that is StoreCache's job one layer up
// - it only knows how to (de)serialize the node's persisted record
// types to/from prefixed keys.
type Simple struct {
	Store storage.Store

	stateRootEnabled bool
	p2pSigExtensions bool
}

// NewSimple wraps st, matching the teacher's (store, stateRootEnabled,
// p2pSigExtensions) constructor shape.
func NewSimple(st storage.Store, stateRootEnabled, p2pSigExtensions bool) *Simple {
	return &Simple{Store: st, stateRootEnabled: stateRootEnabled, p2pSigExtensions: p2pSigExtensions}
}

// Put serializes v and stores it at key verbatim (no prefix is added;
// callers that need a category prefix build it into key themselves).
func (dao *Simple) Put(v vio.Serializable, key []byte) error {
	w := vio.NewBufBinWriter()
	v.EncodeBinary(w)
	if w.Err != nil {
		return w.Err
	}
	return dao.Store.Put(key, w.Bytes())
}

// GetAndDecode loads the value at key into v.
func (dao *Simple) GetAndDecode(v vio.Serializable, key []byte) error {
	b, err := dao.Store.Get(key)
	if err != nil {
		return err
	}
	r := vio.NewBinReaderFromIO(bytes.NewReader(b))
	v.DecodeBinary(r)
	return r.Err
}

// Delete removes key.
func (dao *Simple) Delete(key []byte) error {
	return dao.Store.Delete(key)
}

func makeStorageItemKey(prefix storage.KeyPrefix, id int32, key []byte) []byte {
	b := make([]byte, 5+len(key))
	b[0] = byte(prefix)
	binary.LittleEndian.PutUint32(b[1:5], uint32(id))
	copy(b[5:], key)
	return b
}

// PutStorageItem stores a contract's (id, key) -> item mapping.
func (dao *Simple) PutStorageItem(id int32, key []byte, item state.StorageItem) error {
	return dao.Store.Put(makeStorageItemKey(storage.STStorage, id, key), item)
}

// GetStorageItem retrieves a contract's stored item, or nil if absent.
func (dao *Simple) GetStorageItem(id int32, key []byte) state.StorageItem {
	b, err := dao.Store.Get(makeStorageItemKey(storage.STStorage, id, key))
	if err != nil {
		return nil
	}
	return state.StorageItem(b)
}

// DeleteStorageItem removes a contract's stored item.
func (dao *Simple) DeleteStorageItem(id int32, key []byte) error {
	return dao.Store.Delete(makeStorageItemKey(storage.STStorage, id, key))
}

// SeekStorage enumerates every (key, item) pair of contract id whose
// key starts with prefix, stripped of the (category, id) header.
func (dao *Simple) SeekStorage(id int32, prefix []byte, f func(k []byte, v state.StorageItem) bool) {
	rng := storage.SeekRange{Prefix: makeStorageItemKey(storage.STStorage, id, prefix)}
	dao.Store.Seek(rng, func(k, v []byte) bool {
		return f(k[5:], state.StorageItem(v))
	})
}

func appExecResultKey(hash util.Uint256) []byte {
	key := make([]byte, 1+util.Uint256Size)
	key[0] = byte(storage.DataExecutable)
	copy(key[1:], hash.BytesBE())
	return append(key, 'L')
}

// AppendAppExecResult appends result to the application log kept under
// its container hash; batch is accepted for API parity with the
// teacher's cached-dao signature but unused by Simple, which writes
// straight through.
func (dao *Simple) AppendAppExecResult(result *state.AppExecResult, batch storage.Batch) error {
	existing, _ := dao.GetAppExecResults(result.Container, trigger.All)
	existing = append(existing, *result)

	w := vio.NewBufBinWriter()
	w.WriteVarUint(uint64(len(existing)))
	for i := range existing {
		existing[i].EncodeBinary(w)
	}
	if w.Err != nil {
		return w.Err
	}
	return dao.Store.Put(appExecResultKey(result.Container), w.Bytes())
}

// GetAppExecResults returns every logged execution of hash whose
// Trigger is included in trig (trigger.All matches any).
func (dao *Simple) GetAppExecResults(hash util.Uint256, trig trigger.Type) ([]state.AppExecResult, error) {
	b, err := dao.Store.Get(appExecResultKey(hash))
	if err != nil {
		return nil, nil
	}
	r := vio.NewBinReaderFromIO(bytes.NewReader(b))
	n := r.ReadVarUint()
	if r.Err != nil {
		return nil, r.Err
	}
	all := make([]state.AppExecResult, n)
	for i := range all {
		all[i].DecodeBinary(r)
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if trig == trigger.All {
		return all, nil
	}
	out := make([]state.AppExecResult, 0, len(all))
	for _, a := range all {
		if a.Trigger&trig != 0 {
			out = append(out, a)
		}
	}
	return out, nil
}

func blockKey(hash util.Uint256) []byte {
	key := make([]byte, 1+util.Uint256Size)
	key[0] = byte(storage.DataExecutable)
	copy(key[1:], hash.BytesBE())
	return key
}

// StoreAsBlock persists b under its own hash.
func (dao *Simple) StoreAsBlock(b *block.Block, batch storage.Batch) error {
	w := vio.NewBufBinWriter()
	b.EncodeBinary(w)
	if w.Err != nil {
		return w.Err
	}
	return dao.Store.Put(blockKey(b.Hash()), w.Bytes())
}

// GetBlock loads the block stored under hash.
func (dao *Simple) GetBlock(hash util.Uint256) (*block.Block, error) {
	raw, err := dao.Store.Get(blockKey(hash))
	if err != nil {
		return nil, err
	}
	b := &block.Block{}
	r := vio.NewBinReaderFromIO(bytes.NewReader(raw))
	b.DecodeBinary(r)
	if r.Err != nil {
		return nil, r.Err
	}
	return b, nil
}

// StoreAsCurrentBlock records hash/index as the chain tip.
func (dao *Simple) StoreAsCurrentBlock(b *block.Block, batch storage.Batch) error {
	w := vio.NewBufBinWriter()
	h := b.Hash()
	w.WriteB(h[:])
	w.WriteU32LE(b.Index)
	if w.Err != nil {
		return w.Err
	}
	return dao.Store.Put(storage.SYSCurrentBlock.Bytes(), w.Bytes())
}

// GetCurrentBlockHeight returns the tip's index.
func (dao *Simple) GetCurrentBlockHeight() (uint32, error) {
	b, err := dao.Store.Get(storage.SYSCurrentBlock.Bytes())
	if err != nil {
		return 0, err
	}
	if len(b) < util.Uint256Size+4 {
		return 0, errNotFound
	}
	return binary.LittleEndian.Uint32(b[util.Uint256Size:]), nil
}

// GetCurrentBlockHash returns the tip's hash.
func (dao *Simple) GetCurrentBlockHash() (util.Uint256, error) {
	b, err := dao.Store.Get(storage.SYSCurrentBlock.Bytes())
	if err != nil {
		return util.Uint256{}, err
	}
	if len(b) < util.Uint256Size+4 {
		return util.Uint256{}, errNotFound
	}
	return util.Uint256DecodeBytesBE(b[:util.Uint256Size])
}

// txRecord is what's stored for each transaction hash: either the
// transaction itself (isConflict=false) or a marker left by another
// transaction's Conflicts attribute (isConflict=true, Tx is nil).
type txRecord struct {
	isConflict bool
	blockIndex uint32
	tx         *transaction.Transaction
}

func (r *txRecord) EncodeBinary(w *vio.BinWriter) {
	w.WriteBool(r.isConflict)
	w.WriteU32LE(r.blockIndex)
	if !r.isConflict {
		r.tx.EncodeBinary(w)
	}
}

func (r *txRecord) DecodeBinary(br *vio.BinReader) {
	r.isConflict = br.ReadBool()
	r.blockIndex = br.ReadU32LE()
	if !r.isConflict {
		r.tx = &transaction.Transaction{}
		r.tx.DecodeBinary(br)
	}
}

func txKey(hash util.Uint256) []byte {
	key := make([]byte, 2+util.Uint256Size)
	key[0] = byte(storage.DataExecutable)
	key[1] = 'T'
	copy(key[2:], hash.BytesBE())
	return key
}

// StoreAsTransaction persists tx under its hash at the given block
// index, and - when p2pSigExtensions is on - marks every hash named by
// a Conflicts attribute as conflicted so future HasTransaction checks
// reject transactions that would invalidate an on-chain one (§C).
func (dao *Simple) StoreAsTransaction(tx *transaction.Transaction, index uint32, batch storage.Batch) error {
	rec := &txRecord{blockIndex: index, tx: tx}
	w := vio.NewBufBinWriter()
	rec.EncodeBinary(w)
	if w.Err != nil {
		return w.Err
	}
	if err := dao.Store.Put(txKey(tx.Hash()), w.Bytes()); err != nil {
		return err
	}
	if !dao.p2pSigExtensions {
		return nil
	}
	for _, a := range tx.GetAttributes(transaction.ConflictsT) {
		c := a.Value.(*transaction.Conflicts)
		markRec := &txRecord{isConflict: true, blockIndex: index}
		mw := vio.NewBufBinWriter()
		markRec.EncodeBinary(mw)
		if mw.Err != nil {
			return mw.Err
		}
		if err := dao.Store.Put(txKey(c.Hash), mw.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// HasTransaction reports why hash cannot be (re)accepted: ErrAlreadyExists
// if it is itself on chain, ErrHasConflicts if another on-chain
// transaction named it via Conflicts, or nil if hash is free.
func (dao *Simple) HasTransaction(hash util.Uint256) error {
	b, err := dao.Store.Get(txKey(hash))
	if err != nil {
		return nil
	}
	rec := &txRecord{}
	r := vio.NewBinReaderFromIO(bytes.NewReader(b))
	rec.DecodeBinary(r)
	if r.Err != nil {
		return r.Err
	}
	if rec.isConflict {
		return ErrHasConflicts
	}
	return ErrAlreadyExists
}

// GetTransaction fetches a previously stored, non-conflict transaction
// record by hash, along with the index of the block that included it.
func (dao *Simple) GetTransaction(hash util.Uint256) (*transaction.Transaction, uint32, error) {
	b, err := dao.Store.Get(txKey(hash))
	if err != nil {
		return nil, 0, errNotFound
	}
	rec := &txRecord{}
	r := vio.NewBinReaderFromIO(bytes.NewReader(b))
	rec.DecodeBinary(r)
	if r.Err != nil {
		return nil, 0, r.Err
	}
	if rec.isConflict {
		return nil, 0, errNotFound
	}
	return rec.tx, rec.blockIndex, nil
}

// Version is the persisted node/schema version marker.
type Version struct {
	Prefix byte
	Value  string
}

// PutVersion stores v.
func (dao *Simple) PutVersion(v Version) error {
	w := vio.NewBufBinWriter()
	w.WriteU8(v.Prefix)
	w.WriteString(v.Value)
	if w.Err != nil {
		return w.Err
	}
	return dao.Store.Put(storage.SYSVersion.Bytes(), w.Bytes())
}

// GetVersion loads the version marker, falling back to treating the
// whole value as a plain version string if it doesn't parse as the
// (prefix, value) format (pre-N3 on-disk layout).
func (dao *Simple) GetVersion() (Version, error) {
	b, err := dao.Store.Get(storage.SYSVersion.Bytes())
	if err != nil {
		return Version{}, err
	}
	r := vio.NewBinReaderFromIO(bytes.NewReader(b))
	prefix := r.ReadU8()
	value := r.ReadString(64)
	if r.Err != nil {
		return Version{Value: string(b)}, nil
	}
	return Version{Prefix: prefix, Value: value}, nil
}

func (dao *Simple) putUint32(prefix storage.KeyPrefix, v uint32) error {
	w := vio.NewBufBinWriter()
	w.WriteU32LE(v)
	return dao.Store.Put(prefix.Bytes(), w.Bytes())
}

func (dao *Simple) getUint32(prefix storage.KeyPrefix) (uint32, error) {
	b, err := dao.Store.Get(prefix.Bytes())
	if err != nil {
		return 0, err
	}
	if len(b) < 4 {
		return 0, errNotFound
	}
	return binary.LittleEndian.Uint32(b), nil
}

// PutStateSyncPoint records the height state-sync is targeting.
func (dao *Simple) PutStateSyncPoint(h uint32) error {
	return dao.putUint32(storage.SYSStateSyncPoint, h)
}

// GetStateSyncPoint returns the height recorded by PutStateSyncPoint.
func (dao *Simple) GetStateSyncPoint() (uint32, error) {
	return dao.getUint32(storage.SYSStateSyncPoint)
}

// PutStateSyncCurrentBlockHeight records state-sync's block-fetch progress.
func (dao *Simple) PutStateSyncCurrentBlockHeight(h uint32) error {
	return dao.putUint32(storage.SYSStateSyncCurrentBlockHeight, h)
}

// GetStateSyncCurrentBlockHeight returns the height recorded by
// PutStateSyncCurrentBlockHeight.
func (dao *Simple) GetStateSyncCurrentBlockHeight() (uint32, error) {
	return dao.getUint32(storage.SYSStateSyncCurrentBlockHeight)
}
