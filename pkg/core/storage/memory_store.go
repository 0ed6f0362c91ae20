package storage

import (
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store, used for tests and for the
// `--memory` quick-start node mode.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get implements Store.
func (s *MemoryStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return v, nil
}

// Put implements Store.
func (s *MemoryStore) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[string(key)] = value
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
	return nil
}

type memoryBatch struct {
	puts    []KeyValue
	deletes [][]byte
}

func (b *memoryBatch) Put(key, value []byte) {
	b.puts = append(b.puts, KeyValue{Key: append([]byte(nil), key...), Value: append([]byte(nil), value...)})
}
func (b *memoryBatch) Delete(key []byte) {
	b.deletes = append(b.deletes, append([]byte(nil), key...))
}
func (b *memoryBatch) Len() int { return len(b.puts) + len(b.deletes) }

// Batch returns a fresh in-memory Batch.
func (s *MemoryStore) Batch() Batch { return &memoryBatch{} }

// PutBatch implements Store.
func (s *MemoryStore) PutBatch(b Batch) error {
	mb, ok := b.(*memoryBatch)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kv := range mb.puts {
		s.data[string(kv.Key)] = kv.Value
	}
	for _, k := range mb.deletes {
		delete(s.data, string(k))
	}
	return nil
}

// PutChangeSet implements Store.
func (s *MemoryStore) PutChangeSet(puts map[string][]byte, stores map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range puts {
		if v == nil {
			delete(s.data, k)
			continue
		}
		s.data[k] = v
	}
	for k, v := range stores {
		if v == nil {
			delete(s.data, k)
			continue
		}
		s.data[k] = v
	}
	return nil
}

// Seek implements Store.
func (s *MemoryStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, string(rng.Prefix)) {
			keys = append(keys, k)
		}
	}
	if rng.Backwards {
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	} else {
		sort.Strings(keys)
	}
	type pair struct{ k, v []byte }
	var pairs []pair
	for _, k := range keys {
		if rng.Start != nil {
			if !rng.Backwards && k < string(rng.Prefix)+string(rng.Start) {
				continue
			}
			if rng.Backwards && k > string(rng.Prefix)+string(rng.Start) {
				continue
			}
		}
		pairs = append(pairs, pair{[]byte(k), s.data[k]})
	}
	s.mu.RUnlock()
	for _, p := range pairs {
		if !f(p.k, p.v) {
			return
		}
	}
}

// SeekGC implements Store: it removes every key under rng.Prefix for which
// keep returns false.
func (s *MemoryStore) SeekGC(rng SeekRange, keep func(k, v []byte) bool) error {
	var toDelete [][]byte
	s.Seek(rng, func(k, v []byte) bool {
		if !keep(k, v) {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		return true
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range toDelete {
		delete(s.data, string(k))
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
