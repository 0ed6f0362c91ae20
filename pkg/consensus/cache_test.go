package consensus

import (
	"testing"

	"github.com/noriachain/neonode/pkg/util"
	"github.com/stretchr/testify/require"
)

func testPayload(validatorIndex uint16, blockIndex uint32, view byte) *Payload {
	p := &Payload{ValidatorIndex: validatorIndex, BlockIndex: blockIndex}
	p.message = message{Type: changeViewType, ViewNumber: view, payload: &changeView{NewViewNumber: view + 1}}
	return p
}

func TestRelayCacheDedup(t *testing.T) {
	c := newRelayCache(10)

	p := testPayload(0, 1, 0)
	require.True(t, c.Add(p))
	require.False(t, c.Add(p), "re-adding the same dedup key is a no-op")

	other := testPayload(1, 1, 0)
	require.True(t, c.Add(other))
}

func TestRelayCacheGetByHash(t *testing.T) {
	c := newRelayCache(10)
	p := testPayload(0, 1, 0)
	c.Add(p)

	got := c.Get(p.Hash())
	require.Same(t, p, got)

	require.Nil(t, c.Get(util.Uint256{0xFF}))
}

func TestRelayCacheEvictsOldestOverCapacity(t *testing.T) {
	c := newRelayCache(2)

	first := testPayload(0, 1, 0)
	second := testPayload(1, 1, 0)
	third := testPayload(2, 1, 0)

	c.Add(first)
	c.Add(second)
	c.Add(third)

	require.Nil(t, c.Get(first.Hash()), "oldest entry should have been evicted")
	require.NotNil(t, c.Get(second.Hash()))
	require.NotNil(t, c.Get(third.Hash()))
	require.False(t, c.Has(first.dedup()))
}
