package network

import (
	"testing"

	"github.com/noriachain/neonode/pkg/network/payload"
	"github.com/noriachain/neonode/pkg/util"
	"github.com/stretchr/testify/require"
)

func TestRelayCacheAddDedup(t *testing.T) {
	c := NewRelayCache()
	h := util.Uint256{1, 2, 3}

	require.True(t, c.Add(h, payload.TXType, "payload-one"))
	require.False(t, c.Add(h, payload.TXType, "payload-two"))

	item, typ, ok := c.Get(h)
	require.True(t, ok)
	require.Equal(t, payload.TXType, typ)
	require.Equal(t, "payload-one", item)
}

func TestRelayCacheHasAndMiss(t *testing.T) {
	c := NewRelayCache()
	h := util.Uint256{9}
	require.False(t, c.Has(h))
	c.Add(h, payload.BlockType, []byte("block"))
	require.True(t, c.Has(h))

	_, _, ok := c.Get(util.Uint256{42})
	require.False(t, ok)
}
