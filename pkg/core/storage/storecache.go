package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// TrackState records why a key is present in a StoreCache's overlay: it was
// newly added, an existing value was changed, it was deleted, or (the zero
// value) it isn't tracked at all and reads fall through to base.
type TrackState byte

const (
	TrackNone TrackState = iota
	TrackAdded
	TrackChanged
	TrackDeleted
)

type trackEntry struct {
	value []byte
	state TrackState
}

// StoreCache is the layered storage cache of §4.5: a write-tracking overlay
// atop a base Store. The base may be the chain's real backend or another
// StoreCache, so a StoreCache created via CreateSnapshot nests arbitrarily
// deep, giving each in-flight transaction (and each block under assembly)
// its own rollback-by-discard scope without ever touching the parent's
// tracked map until Commit is called explicitly.
type StoreCache struct {
	mu      sync.RWMutex
	base    Store
	tracked map[string]trackEntry
}

// NewStoreCache wraps base with an empty write-tracking overlay.
func NewStoreCache(base Store) *StoreCache {
	return &StoreCache{base: base, tracked: make(map[string]trackEntry)}
}

// CreateSnapshot returns a child StoreCache pointing at c as its base (§4.5).
// The child's mutations are invisible to c until the child's Commit is
// called; dropping the child without committing discards them entirely,
// which is how per-transaction FAULT rollback and read-only RPC invocation
// are implemented against the block-assembly and chain caches.
func (c *StoreCache) CreateSnapshot() *StoreCache {
	return NewStoreCache(c)
}

// Get implements Store: a tracked entry wins over the base, and a Deleted
// tracked entry reports ErrKeyNotFound without consulting base at all.
func (c *StoreCache) Get(key []byte) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.tracked[string(key)]
	c.mu.RUnlock()
	if ok {
		if e.state == TrackDeleted {
			return nil, ErrKeyNotFound
		}
		return e.value, nil
	}
	return c.base.Get(key)
}

// contains reports whether key resolves to a value (tracked or inherited),
// used by add/delete to classify the pre-existing state of a key.
func (c *StoreCache) contains(key []byte) bool {
	_, err := c.Get(key)
	return err == nil
}

// Put implements Store as the spec's get_or_change: it upserts key,
// marking the tracked entry Added if the key didn't previously resolve to a
// value (through tracked or base) and Changed otherwise.
func (c *StoreCache) Put(key, value []byte) error {
	existed := c.contains(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	state := TrackChanged
	if !existed {
		state = TrackAdded
	}
	c.tracked[string(key)] = trackEntry{value: append([]byte(nil), value...), state: state}
	return nil
}

// Add is the spec's strict add(k, v): it fails if key already resolves to a
// value in the tracked overlay (other than a pending delete) or in base.
func (c *StoreCache) Add(key, value []byte) error {
	if c.contains(key) {
		return fmt.Errorf("storage: key already exists: %x", key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracked[string(key)] = trackEntry{value: append([]byte(nil), value...), state: TrackAdded}
	return nil
}

// Delete implements Store as the spec's delete(k): a key only ever Added in
// this overlay (never persisted to base) is forgotten outright, since base
// has nothing to delete; any other key is recorded as Deleted so Commit
// removes it from base and Get/Seek treat it as absent in the meantime.
func (c *StoreCache) Delete(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := string(key)
	if e, ok := c.tracked[k]; ok && e.state == TrackAdded {
		delete(c.tracked, k)
		return nil
	}
	c.tracked[k] = trackEntry{state: TrackDeleted}
	return nil
}

type cacheBatch struct {
	puts    []KeyValue
	deletes [][]byte
}

func (b *cacheBatch) Put(key, value []byte) {
	b.puts = append(b.puts, KeyValue{Key: append([]byte(nil), key...), Value: append([]byte(nil), value...)})
}
func (b *cacheBatch) Delete(key []byte) {
	b.deletes = append(b.deletes, append([]byte(nil), key...))
}
func (b *cacheBatch) Len() int { return len(b.puts) + len(b.deletes) }

// Batch implements Batchable.
func (c *StoreCache) Batch() Batch { return &cacheBatch{} }

// PutBatch implements Store by replaying the batch's puts and deletes
// through Put/Delete so they go through the same tracking logic.
func (c *StoreCache) PutBatch(b Batch) error {
	cb, ok := b.(*cacheBatch)
	if !ok {
		return nil
	}
	for _, kv := range cb.puts {
		if err := c.Put(kv.Key, kv.Value); err != nil {
			return err
		}
	}
	for _, k := range cb.deletes {
		if err := c.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// PutChangeSet implements Store: a nil value deletes, anything else upserts.
func (c *StoreCache) PutChangeSet(puts map[string][]byte, stores map[string][]byte) error {
	for k, v := range puts {
		if v == nil {
			if err := c.Delete([]byte(k)); err != nil {
				return err
			}
			continue
		}
		if err := c.Put([]byte(k), v); err != nil {
			return err
		}
	}
	for k, v := range stores {
		if v == nil {
			if err := c.Delete([]byte(k)); err != nil {
				return err
			}
			continue
		}
		if err := c.Put([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}

// Seek implements Store: it merges the tracked overlay with base's own
// Seek, preferring tracked entries and skipping anything marked Deleted,
// mirroring MemoryStore's buffer-then-sort approach so both layers present
// keys in the same lexicographic (or reverse) order.
func (c *StoreCache) Seek(rng SeekRange, f func(k, v []byte) bool) {
	c.mu.RLock()
	type pair struct {
		k, v  []byte
		state TrackState
	}
	merged := make(map[string]pair)
	for k, e := range c.tracked {
		if !strings.HasPrefix(k, string(rng.Prefix)) {
			continue
		}
		merged[k] = pair{k: []byte(k), v: e.value, state: e.state}
	}
	c.mu.RUnlock()

	c.base.Seek(SeekRange{Prefix: rng.Prefix}, func(k, v []byte) bool {
		ks := string(k)
		if _, ok := merged[ks]; !ok {
			merged[ks] = pair{k: append([]byte(nil), k...), v: append([]byte(nil), v...), state: TrackNone}
		}
		return true
	})

	keys := make([]string, 0, len(merged))
	for k, p := range merged {
		if p.state == TrackDeleted {
			continue
		}
		if rng.Start != nil {
			if !rng.Backwards && k < string(rng.Prefix)+string(rng.Start) {
				continue
			}
			if rng.Backwards && k > string(rng.Prefix)+string(rng.Start) {
				continue
			}
		}
		keys = append(keys, k)
	}
	if rng.Backwards {
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	} else {
		sort.Strings(keys)
	}
	for _, k := range keys {
		p := merged[k]
		if !f(p.k, p.v) {
			return
		}
	}
}

// SeekGC implements Store by deleting every key under rng.Prefix for which
// keep returns false, through the same tracked-overlay path as Delete.
func (c *StoreCache) SeekGC(rng SeekRange, keep func(k, v []byte) bool) error {
	var toDelete [][]byte
	c.Seek(rng, func(k, v []byte) bool {
		if !keep(k, v) {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		return true
	})
	for _, k := range toDelete {
		if err := c.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Store. A StoreCache owns no resources of its own; the
// base (if it is the real backend, not another cache) closes separately.
func (c *StoreCache) Close() error { return nil }

// Commit applies every tracked entry to base in one PutChangeSet call
// (Put for Added/Changed, nil-valued delete for Deleted), then clears the
// overlay, and returns the number of keys applied. This is the single
// atomic merge the spec requires: from the caller's viewpoint either all of
// it lands in base or none of it does, because PutChangeSet's backends
// (MemoryStore, BoltDBStore, LevelDBStore) apply their changeset under one
// lock/transaction.
func (c *StoreCache) Commit() (int, error) {
	c.mu.Lock()
	changes := make(map[string][]byte, len(c.tracked))
	for k, e := range c.tracked {
		switch e.state {
		case TrackAdded, TrackChanged:
			changes[k] = e.value
		case TrackDeleted:
			changes[k] = nil
		}
	}
	c.mu.Unlock()
	if len(changes) == 0 {
		return 0, nil
	}
	if err := c.base.PutChangeSet(changes, nil); err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.tracked = make(map[string]trackEntry)
	c.mu.Unlock()
	return len(changes), nil
}
