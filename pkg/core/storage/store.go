// Package storage implements the key/value persistence layer: a common
// Store interface plus LevelDB, BoltDB and in-memory backends, all keyed
// by a one-byte prefix identifying the logical data category (§4.2).
package storage

import "errors"

// ErrKeyNotFound is returned by Get when the key is absent.
var ErrKeyNotFound = errors.New("key not found")

// KeyPrefix identifies the logical category of a stored key (§4.2): one
// byte prepended to every on-disk key so unrelated data never collides and
// so prefix scans (Seek) can enumerate one category at a time.
type KeyPrefix byte

// Key prefixes in use.
const (
	// DataExecutable stores serialized blocks and transactions.
	DataExecutable KeyPrefix = 0x01
	// STAccount, STStorage, etc. store native-contract and account state.
	STAccount       KeyPrefix = 0x40
	STStorage       KeyPrefix = 0x70
	STNEP11Transfers KeyPrefix = 0x72
	STNEP17Transfers KeyPrefix = 0x73
	STContractID    KeyPrefix = 0x51
	// STTempStorage is used during state-sync to stage storage items
	// under a not-yet-verified MPT root.
	STTempStorage KeyPrefix = 0x71
	// DataMPT stores Merkle-Patricia-Trie nodes for the state root.
	DataMPT KeyPrefix = 0x02
	// IXHeaderHashList indexes header hashes by height for fast sync.
	IXHeaderHashList KeyPrefix = 0x80
	// SYSCurrentBlock/SYSCurrentHeader/SYSVersion hold singleton chain
	// metadata values.
	SYSCurrentBlock  KeyPrefix = 0xc0
	SYSCurrentHeader KeyPrefix = 0xc1
	SYSVersion       KeyPrefix = 0xf0
	// SYSStateSyncPoint/SYSStateSyncCurrentBlockHeight mark state-sync
	// progress across restarts.
	SYSStateSyncPoint             KeyPrefix = 0xf1
	SYSStateSyncCurrentBlockHeight KeyPrefix = 0xf2
)

// Bytes returns the prefix as a one-byte slice, letting callers use it
// directly as a singleton storage key.
func (k KeyPrefix) Bytes() []byte { return []byte{byte(k)} }

// KeyValue is a single stored key/value pair.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// KeyValueExists additionally records whether the key already existed
// before this change, letting BatchToOperations classify it as an
// addition vs. a modification.
type KeyValueExists struct {
	KeyValue
	Exists bool
}

// MemBatch groups the puts and deletes of one change set, as read by
// BatchToOperations. No Store in this package builds one.
type MemBatch struct {
	Put     []KeyValueExists
	Deleted []KeyValueExists
}

// SeekRange bounds a Seek scan: all keys with the given Prefix, optionally
// starting at Start (inclusive) and proceeding backwards if Backwards.
type SeekRange struct {
	Prefix    []byte
	Start     []byte
	Backwards bool
}

// Batch accumulates Put/Delete operations for atomic application via
// Store.PutBatch.
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)
	Len() int
}

// Store is the backend-agnostic key/value persistence interface every
// node component (dao, mempool recovery, consensus log) is built on.
type Store interface {
	Get([]byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	PutBatch(Batch) error
	PutChangeSet(puts map[string][]byte, stores map[string][]byte) error
	Seek(rng SeekRange, f func(k, v []byte) bool)
	SeekGC(rng SeekRange, keep func(k, v []byte) bool) error
	Close() error
}

// Batchable is implemented by stores that can produce a fresh Batch
// matching their own backend's write semantics.
type Batchable interface {
	Batch() Batch
}
