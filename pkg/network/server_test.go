package network

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/noriachain/neonode/pkg/config"
	"github.com/noriachain/neonode/pkg/core/block"
	"github.com/noriachain/neonode/pkg/core/mempool"
	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/network/bloom"
	"github.com/noriachain/neonode/pkg/network/payload"
	"github.com/noriachain/neonode/pkg/util"
	"github.com/stretchr/testify/require"
)

// fakeLedger is a minimal in-memory Ledger good enough to drive the
// handshake and relay paths without a real *core.Blockchain.
type fakeLedger struct {
	mu        sync.Mutex
	height    uint32
	tip       util.Uint256
	headers   map[util.Uint256]*block.Header
	blocks    map[util.Uint256]*block.Block
	heightIdx map[uint32]util.Uint256
	mp        *mempool.Pool
	subs      []chan *block.Block
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		headers:   make(map[util.Uint256]*block.Header),
		blocks:    make(map[util.Uint256]*block.Block),
		heightIdx: make(map[uint32]util.Uint256),
		mp:        mempool.New(100, 100, false),
	}
}

func (l *fakeLedger) BlockHeight() uint32              { return l.height }
func (l *fakeLedger) CurrentBlockHash() util.Uint256   { return l.tip }
func (l *fakeLedger) GetBlock(h util.Uint256) (*block.Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.blocks[h]; ok {
		return b, nil
	}
	return nil, errNotFoundForTest
}
func (l *fakeLedger) GetHeader(h util.Uint256) (*block.Header, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hd, ok := l.headers[h]; ok {
		return hd, nil
	}
	return nil, errNotFoundForTest
}
func (l *fakeLedger) GetHeaderHash(idx uint32) (util.Uint256, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.heightIdx[idx]; ok {
		return h, nil
	}
	return util.Uint256{}, errNotFoundForTest
}
func (l *fakeLedger) GetTransaction(util.Uint256) (*transaction.Transaction, uint32, error) {
	return nil, 0, errNotFoundForTest
}
func (l *fakeLedger) AddBlock(b *block.Block) error {
	l.mu.Lock()
	l.height = b.Index
	l.tip = b.Hash()
	l.blocks[b.Hash()] = b
	l.headers[b.Hash()] = &b.Header
	l.heightIdx[b.Index] = b.Hash()
	subs := append([]chan *block.Block{}, l.subs...)
	l.mu.Unlock()
	for _, ch := range subs {
		ch <- b
	}
	return nil
}
func (l *fakeLedger) Mempool() *mempool.Pool                      { return l.mp }
func (l *fakeLedger) GetConfig() config.ProtocolConfiguration     { return config.ProtocolConfiguration{} }
func (l *fakeLedger) Subscribe(ch chan *block.Block) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, ch)
}
func (l *fakeLedger) Unsubscribe(ch chan *block.Block) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, c := range l.subs {
		if c == ch {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			return
		}
	}
}

var errNotFoundForTest = errors.New("network: test fixture has no such item")

// loopTransport connects two in-process Servers over a net.Pipe instead
// of a real socket, so Dial on one side hands the other end straight
// to the peer Server's own handleAccepted.
type loopTransport struct {
	peer *Server
}

func (lt *loopTransport) Dial(addr string, timeout time.Duration) (net.Conn, error) {
	c1, c2 := net.Pipe()
	go lt.peer.handleAccepted(c2)
	return c1, nil
}
func (lt *loopTransport) Accept(handle func(net.Conn)) {}
func (lt *loopTransport) Proto() string                { return "loop" }
func (lt *loopTransport) HostPort() (string, string)   { return "127.0.0.1", "0" }
func (lt *loopTransport) Close() error                 { return nil }

func testServerConfig(magic uint32, seeds []string) ServerConfig {
	return ServerConfig{
		Magic:      magic,
		UserAgent:  "/neonode:test/",
		ListenAddr: "127.0.0.1:0",
		Seeds:      seeds,
		P2P: config.P2P{
			DialTimeout:  time.Second,
			PingInterval: time.Hour,
			PingTimeout:  time.Hour,
			MinPeers:     0,
		},
	}
}

func TestServerHandshake(t *testing.T) {
	tA := &loopTransport{}
	tB := &loopTransport{}

	sA, err := NewServer(testServerConfig(0x4e454f00, []string{"peerB"}), newFakeLedger(), tA)
	require.NoError(t, err)
	sB, err := NewServer(testServerConfig(0x4e454f00, nil), newFakeLedger(), tB)
	require.NoError(t, err)
	tA.peer = sB
	tB.peer = sA

	require.NoError(t, sA.Start())
	require.NoError(t, sB.Start())
	defer sA.Shutdown()
	defer sB.Shutdown()

	require.Eventually(t, func() bool {
		return sA.PeerCount() == 1 && sB.PeerCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// fakePeerFull is a minimal Peer for unit-testing Server.handleMessage
// without a real connection.
type fakePeerFull struct {
	handshaked bool
	version    *payload.Version
	lastBlock  uint32
	filter     *bloom.Filter
	sent       []*Message
	dropped    error
}

func (p *fakePeerFull) ConnectionAddr() string          { return "fake:0" }
func (p *fakePeerFull) PeerAddr() net.Addr              { return nil }
func (p *fakePeerFull) Version() *payload.Version       { return p.version }
func (p *fakePeerFull) SetVersion(v *payload.Version)   { p.version = v }
func (p *fakePeerFull) Handshaked() bool                { return p.handshaked }
func (p *fakePeerFull) LastBlockIndex() uint32          { return p.lastBlock }
func (p *fakePeerFull) SetLastBlockIndex(h uint32)      { p.lastBlock = h }
func (p *fakePeerFull) Filter() *bloom.Filter           { return p.filter }
func (p *fakePeerFull) SetFilter(f *bloom.Filter)       { p.filter = f }
func (p *fakePeerFull) Disconnect(err error)            { p.dropped = err }
func (p *fakePeerFull) EnqueueMessage(m *Message, hi bool) error {
	p.sent = append(p.sent, m)
	return nil
}

func TestServerRejectsEarlyNonHandshakeMessage(t *testing.T) {
	tA := &loopTransport{}
	sA, _ := NewServer(testServerConfig(1, nil), newFakeLedger(), tA)

	fp := &fakePeerFull{}
	ping, err := NewMessage(1, CmdPing, nil)
	require.NoError(t, err)
	sA.handleMessage(fp, ping)
	require.Error(t, fp.dropped)
}

func TestServerGetAddrRespondsWithKnownPeers(t *testing.T) {
	tA := &loopTransport{}
	sA, _ := NewServer(testServerConfig(1, nil), newFakeLedger(), tA)
	sA.discover.RegisterGood("1.2.3.4:10333")

	fp := &fakePeerFull{handshaked: true}
	getAddr, err := NewMessage(1, CmdGetAddr, nil)
	require.NoError(t, err)
	sA.handleMessage(fp, getAddr)

	require.Len(t, fp.sent, 1)
	require.Equal(t, CmdAddr, fp.sent[0].Command)
}
