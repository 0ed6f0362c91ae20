package network

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/noriachain/neonode/pkg/network/payload"
	"github.com/noriachain/neonode/pkg/util"
)

// relayCacheSize bounds how many recently-relayed hashes each network
// keeps around for dedup, approximately 100 per originator scaled up
// for a multi-peer cache (§4.10: "bounded RelayCache of recently-seen
// hashes, capacity ≈ 100 per originator").
const relayCacheSize = 4096

// relayItem is whatever payload a RelayCache entry wraps: a
// *transaction.Transaction, *block.Block, or *payload.Extensible,
// stored so a getdata for a hash this node just advertised can be
// answered without going back to the blockchain/mempool.
type relayItem struct {
	typ  payload.InventoryType
	data any
}

// RelayCache deduplicates inventory flood-relay by hash (§4.10 step 4)
// using a bounded LRU so memory use stays flat regardless of how long
// the node runs.
type RelayCache struct {
	lru *lru.Cache
}

// NewRelayCache builds a RelayCache with relayCacheSize capacity.
func NewRelayCache() *RelayCache {
	c, _ := lru.New(relayCacheSize)
	return &RelayCache{lru: c}
}

// Add records hash h as having carried item (for later getdata lookups)
// and reports whether it was newly seen; a caller should only
// re-broadcast an inv for hashes Add reports as new.
func (c *RelayCache) Add(h util.Uint256, typ payload.InventoryType, item any) bool {
	if c.lru.Contains(h) {
		return false
	}
	c.lru.Add(h, relayItem{typ: typ, data: item})
	return true
}

// Has reports whether h has already been relayed, without recording
// anything.
func (c *RelayCache) Has(h util.Uint256) bool {
	return c.lru.Contains(h)
}

// Get returns the item previously stored for h, if still cached.
func (c *RelayCache) Get(h util.Uint256) (any, payload.InventoryType, bool) {
	v, ok := c.lru.Get(h)
	if !ok {
		return nil, 0, false
	}
	ri := v.(relayItem)
	return ri.data, ri.typ, true
}
