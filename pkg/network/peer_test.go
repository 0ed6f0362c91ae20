package network

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestTCPPeer(t *testing.T) (*TCPPeer, net.Conn) {
	t.Helper()
	c1, c2 := net.Pipe()
	t.Cleanup(func() { _ = c1.Close(); _ = c2.Close() })
	s := &Server{quit: make(chan struct{}), unregister: make(chan peerDrop, 1)}
	return NewTCPPeer(c1, s), c2
}

func TestTCPPeerEnqueueLowPriorityDropsWhenFull(t *testing.T) {
	p, _ := newTestTCPPeer(t)
	m, err := NewMessage(1, CmdPing, nil)
	require.NoError(t, err)

	for i := 0; i < outQueueSize; i++ {
		require.NoError(t, p.EnqueueMessage(m, false))
	}
	require.ErrorIs(t, p.EnqueueMessage(m, false), errQueueFull)
}

func TestTCPPeerDisconnectIsIdempotent(t *testing.T) {
	p, _ := newTestTCPPeer(t)
	p.Disconnect(nil)
	require.NotPanics(t, func() { p.Disconnect(nil) })
	require.True(t, p.Handshaked() == false)
}

func TestTCPPeerHandshakeOnce(t *testing.T) {
	p, _ := newTestTCPPeer(t)
	require.NoError(t, p.markHandshaked())
	require.True(t, p.Handshaked())
	require.Error(t, p.markHandshaked())
}

func TestTCPPeerVersionAndFilterAccessors(t *testing.T) {
	p, _ := newTestTCPPeer(t)
	require.Nil(t, p.Version())
	require.Nil(t, p.Filter())
	p.SetLastBlockIndex(42)
	require.Equal(t, uint32(42), p.LastBlockIndex())
}
