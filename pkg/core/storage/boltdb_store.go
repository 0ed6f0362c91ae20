package storage

import (
	"bytes"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("neonode")

// BoltDBOptions configures a BoltDBStore (§6 storage.engine=boltdb).
type BoltDBOptions struct {
	FilePath string
}

// BoltDBStore is a Store backed by go.etcd.io/bbolt, offered as an
// alternative single-file persistent backend.
type BoltDBStore struct {
	db *bolt.DB
}

// NewBoltDBStore opens (creating if absent) a bbolt database at
// cfg.FilePath, ensuring the single top-level bucket exists.
func NewBoltDBStore(cfg BoltDBOptions) (*BoltDBStore, error) {
	db, err := bolt.Open(cfg.FilePath, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltDBStore{db: db}, nil
}

// Get implements Store.
func (s *BoltDBStore) Get(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltBucket).Get(key)
		if v == nil {
			return ErrKeyNotFound
		}
		val = append([]byte(nil), v...)
		return nil
	})
	return val, err
}

// Put implements Store.
func (s *BoltDBStore) Put(key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(key, value)
	})
}

// Delete implements Store.
func (s *BoltDBStore) Delete(key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete(key)
	})
}

type boltBatch struct {
	puts    []KeyValue
	deletes [][]byte
}

func (b *boltBatch) Put(key, value []byte) {
	b.puts = append(b.puts, KeyValue{Key: append([]byte(nil), key...), Value: append([]byte(nil), value...)})
}
func (b *boltBatch) Delete(key []byte) {
	b.deletes = append(b.deletes, append([]byte(nil), key...))
}
func (b *boltBatch) Len() int { return len(b.puts) + len(b.deletes) }

// Batch returns a fresh Batch for this store.
func (s *BoltDBStore) Batch() Batch { return &boltBatch{} }

// PutBatch implements Store, applying the whole batch in one bbolt
// transaction.
func (s *BoltDBStore) PutBatch(b Batch) error {
	bb, ok := b.(*boltBatch)
	if !ok {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		for _, kv := range bb.puts {
			if err := bucket.Put(kv.Key, kv.Value); err != nil {
				return err
			}
		}
		for _, k := range bb.deletes {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutChangeSet implements Store.
func (s *BoltDBStore) PutChangeSet(puts map[string][]byte, stores map[string][]byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		for k, v := range puts {
			if v == nil {
				if err := bucket.Delete([]byte(k)); err != nil {
					return err
				}
				continue
			}
			if err := bucket.Put([]byte(k), v); err != nil {
				return err
			}
		}
		for k, v := range stores {
			if v == nil {
				if err := bucket.Delete([]byte(k)); err != nil {
					return err
				}
				continue
			}
			if err := bucket.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Seek implements Store.
func (s *BoltDBStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	_ = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()
		if rng.Backwards {
			seekBoltBackwards(c, rng, f)
			return nil
		}
		start := append(append([]byte(nil), rng.Prefix...), rng.Start...)
		for k, v := c.Seek(start); k != nil && bytes.HasPrefix(k, rng.Prefix); k, v = c.Next() {
			if !f(append([]byte(nil), k...), append([]byte(nil), v...)) {
				return nil
			}
		}
		return nil
	})
}

func seekBoltBackwards(c *bolt.Cursor, rng SeekRange, f func(k, v []byte) bool) {
	upper := append(append([]byte(nil), rng.Prefix...), rng.Start...)
	k, v := c.Seek(upper)
	if k == nil || bytes.Compare(k, upper) > 0 {
		k, v = c.Prev()
	}
	for ; k != nil && bytes.HasPrefix(k, rng.Prefix); k, v = c.Prev() {
		if !f(append([]byte(nil), k...), append([]byte(nil), v...)) {
			return
		}
	}
}

// SeekGC implements Store.
func (s *BoltDBStore) SeekGC(rng SeekRange, keep func(k, v []byte) bool) error {
	var toDelete [][]byte
	s.Seek(rng, func(k, v []byte) bool {
		if !keep(k, v) {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		return true
	})
	if len(toDelete) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		for _, k := range toDelete {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close implements Store.
func (s *BoltDBStore) Close() error { return s.db.Close() }
