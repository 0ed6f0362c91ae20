package storage

import (
	"bytes"
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBOptions configures a LevelDBStore (§6 storage.engine=leveldb).
type LevelDBOptions struct {
	DataDirectoryPath string
}

// LevelDBStore is a Store backed by syndtr/goleveldb, the default
// persistent backend for a single-process full node.
type LevelDBStore struct {
	db *leveldb.DB
}

// NewLevelDBStore opens (creating if absent) a LevelDB database at
// cfg.DataDirectoryPath.
func NewLevelDBStore(cfg LevelDBOptions) (*LevelDBStore, error) {
	o := &opt.Options{
		Filter: filter.NewBloomFilter(10),
	}
	db, err := leveldb.OpenFile(cfg.DataDirectoryPath, o)
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{db: db}, nil
}

// Get implements Store.
func (s *LevelDBStore) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	return v, err
}

// Put implements Store.
func (s *LevelDBStore) Put(key, value []byte) error {
	return s.db.Put(key, value, nil)
}

// Delete implements Store.
func (s *LevelDBStore) Delete(key []byte) error {
	return s.db.Delete(key, nil)
}

type levelDBBatch struct{ b leveldb.Batch }

func (b *levelDBBatch) Put(key, value []byte) { b.b.Put(key, value) }
func (b *levelDBBatch) Delete(key []byte)     { b.b.Delete(key) }
func (b *levelDBBatch) Len() int              { return b.b.Len() }

// Batch returns a fresh leveldb.Batch-backed Batch.
func (s *LevelDBStore) Batch() Batch { return &levelDBBatch{} }

// PutBatch implements Store.
func (s *LevelDBStore) PutBatch(b Batch) error {
	lb, ok := b.(*levelDBBatch)
	if !ok {
		return errors.New("leveldb: batch type mismatch")
	}
	return s.db.Write(&lb.b, nil)
}

// PutChangeSet implements Store.
func (s *LevelDBStore) PutChangeSet(puts map[string][]byte, stores map[string][]byte) error {
	var b leveldb.Batch
	for k, v := range puts {
		if v == nil {
			b.Delete([]byte(k))
			continue
		}
		b.Put([]byte(k), v)
	}
	for k, v := range stores {
		if v == nil {
			b.Delete([]byte(k))
			continue
		}
		b.Put([]byte(k), v)
	}
	return s.db.Write(&b, nil)
}

// Seek implements Store.
func (s *LevelDBStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	slice := util.BytesPrefix(rng.Prefix)
	iter := s.db.NewIterator(slice, nil)
	defer iter.Release()

	if rng.Backwards {
		seekBackwards(iter, rng, f)
		return
	}

	var ok bool
	if len(rng.Start) > 0 {
		ok = iter.Seek(append(append([]byte(nil), rng.Prefix...), rng.Start...))
	} else {
		ok = iter.First()
	}
	for ok {
		if !f(append([]byte(nil), iter.Key()...), append([]byte(nil), iter.Value()...)) {
			return
		}
		ok = iter.Next()
	}
}

func seekBackwards(iter interface {
	Last() bool
	Prev() bool
	Key() []byte
	Value() []byte
}, rng SeekRange, f func(k, v []byte) bool) {
	if !iter.Last() {
		return
	}
	for {
		k := iter.Key()
		if bytes.HasPrefix(k, rng.Prefix) && (rng.Start == nil || bytes.Compare(k, append(rng.Prefix, rng.Start...)) <= 0) {
			if !f(append([]byte(nil), k...), append([]byte(nil), iter.Value()...)) {
				return
			}
		}
		if !iter.Prev() {
			return
		}
	}
}

// SeekGC implements Store.
func (s *LevelDBStore) SeekGC(rng SeekRange, keep func(k, v []byte) bool) error {
	var b leveldb.Batch
	s.Seek(rng, func(k, v []byte) bool {
		if !keep(k, v) {
			b.Delete(append([]byte(nil), k...))
		}
		return true
	})
	if b.Len() == 0 {
		return nil
	}
	return s.db.Write(&b, nil)
}

// Close implements Store.
func (s *LevelDBStore) Close() error { return s.db.Close() }
