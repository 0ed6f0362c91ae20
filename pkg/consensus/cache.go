package consensus

import (
	"container/list"
	"sync"

	"github.com/noriachain/neonode/pkg/util"
)

// cacheCapacity bounds how many payloads a single round's relay cache
// holds before evicting the oldest; a round has at most one payload per
// validator per message type, so this comfortably covers a handful of
// views' worth of chatter even for a large committee.
const cacheCapacity = 1000

// relayCache deduplicates consensus payloads by the (validator, block,
// view, type) tuple they're defined to be unique on (§4.9), while also
// indexing them by Hash so a node can answer getdata-style lookups by
// the hash it advertised in an inv.
type relayCache struct {
	mu sync.RWMutex

	maxCap int
	byKey  map[dedupKey]*list.Element
	byHash map[util.Uint256]*Payload
	queue  *list.List
}

func newRelayCache(capacity int) *relayCache {
	return &relayCache{
		maxCap: capacity,
		byKey:  make(map[dedupKey]*list.Element),
		byHash: make(map[util.Uint256]*Payload),
		queue:  list.New(),
	}
}

// Add inserts p if its dedup key hasn't been seen yet, evicting the
// oldest entry if the cache is at capacity. It reports whether p was
// newly added: a caller should only react to (re-broadcast, feed into
// the state machine) payloads Add accepts as new.
func (c *relayCache) Add(p *Payload) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := p.dedup()
	if _, ok := c.byKey[key]; ok {
		return false
	}

	if c.queue.Len() >= c.maxCap {
		front := c.queue.Front()
		c.queue.Remove(front)
		old := front.Value.(*Payload)
		delete(c.byKey, old.dedup())
		delete(c.byHash, old.Hash())
	}

	e := c.queue.PushBack(p)
	c.byKey[key] = e
	c.byHash[p.Hash()] = p
	return true
}

// Get returns the payload with the given hash, or nil if it isn't
// cached.
func (c *relayCache) Get(h util.Uint256) *Payload {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byHash[h]
}

// Has reports whether a payload with dedup key key is already cached,
// without mutating anything.
func (c *relayCache) Has(key dedupKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byKey[key]
	return ok
}
