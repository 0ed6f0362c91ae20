package network

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/network/bloom"
	"github.com/noriachain/neonode/pkg/network/payload"
)

// outQueueSize bounds each peer's per-priority outbound queue (§4.10
// "bounded outbound queue... when full, low-priority broadcasts are
// dropped").
const outQueueSize = 200

var (
	errQueueFull       = errors.New("network: peer outbound queue is full")
	errAlreadyHandshaked = errors.New("network: peer already completed handshake")
)

// AddressablePeer is the minimal identity surface a peer exposes before
// (or independent of) full handshake completion: where it's reached and
// what it last told us about itself.
type AddressablePeer interface {
	ConnectionAddr() string
	PeerAddr() net.Addr
	Version() *payload.Version
}

// Peer is a single, live P2P connection. TCPPeer is the concrete
// implementation Server creates for each connection; Server's message
// handlers take this interface so tests can substitute a fake.
type Peer interface {
	AddressablePeer

	// Handshaked reports whether version/verack have both completed.
	Handshaked() bool
	SetVersion(*payload.Version)

	// LastBlockIndex is this peer's self-reported height, refreshed on
	// every ping/pong exchange.
	LastBlockIndex() uint32
	SetLastBlockIndex(uint32)

	// EnqueueMessage queues msg for sending. highPriority messages
	// (handshake, direct responses) always enqueue; others are
	// dropped if the outbound queue is full.
	EnqueueMessage(msg *Message, highPriority bool) error

	// Disconnect closes the connection, recording err as the reason.
	Disconnect(err error)

	// Filter is the SPV bloom filter this peer loaded via filterload,
	// if any; a nil Filter means "relay everything" (§4.10).
	Filter() *bloom.Filter
	SetFilter(*bloom.Filter)
}

// TCPPeer is a Peer backed by a net.Conn.
type TCPPeer struct {
	conn   net.Conn
	server *Server

	mu      sync.RWMutex
	version *payload.Version
	filter  *bloom.Filter

	handshaked     atomic.Bool
	lastBlockIndex atomic.Uint32

	outHi chan *Message
	outLo chan *Message
	done  chan struct{}
	once  sync.Once

	droppedWith atomic.Value
}

// NewTCPPeer wraps conn as a not-yet-handshaked Peer owned by s.
func NewTCPPeer(conn net.Conn, s *Server) *TCPPeer {
	return &TCPPeer{
		conn:   conn,
		server: s,
		outHi:  make(chan *Message, outQueueSize),
		outLo:  make(chan *Message, outQueueSize),
		done:   make(chan struct{}),
	}
}

// ConnectionAddr implements AddressablePeer.
func (p *TCPPeer) ConnectionAddr() string { return p.conn.RemoteAddr().String() }

// PeerAddr implements AddressablePeer.
func (p *TCPPeer) PeerAddr() net.Addr { return p.conn.RemoteAddr() }

// Version implements AddressablePeer.
func (p *TCPPeer) Version() *payload.Version {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

// SetVersion implements Peer.
func (p *TCPPeer) SetVersion(v *payload.Version) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.version = v
}

// Filter implements Peer.
func (p *TCPPeer) Filter() *bloom.Filter {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.filter
}

// SetFilter implements Peer.
func (p *TCPPeer) SetFilter(f *bloom.Filter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter = f
}

// Handshaked implements Peer.
func (p *TCPPeer) Handshaked() bool { return p.handshaked.Load() }

// markHandshaked completes the handshake exactly once.
func (p *TCPPeer) markHandshaked() error {
	if !p.handshaked.CompareAndSwap(false, true) {
		return errAlreadyHandshaked
	}
	return nil
}

// LastBlockIndex implements Peer.
func (p *TCPPeer) LastBlockIndex() uint32 { return p.lastBlockIndex.Load() }

// SetLastBlockIndex implements Peer.
func (p *TCPPeer) SetLastBlockIndex(h uint32) { p.lastBlockIndex.Store(h) }

// EnqueueMessage implements Peer.
func (p *TCPPeer) EnqueueMessage(msg *Message, highPriority bool) error {
	q := p.outLo
	if highPriority {
		q = p.outHi
	}
	select {
	case <-p.done:
		return errPeerDisconnected
	default:
	}
	if highPriority {
		select {
		case q <- msg:
			return nil
		case <-p.done:
			return errPeerDisconnected
		}
	}
	select {
	case q <- msg:
		return nil
	default:
		return errQueueFull
	}
}

var errPeerDisconnected = errors.New("network: peer is disconnected")

// Disconnect implements Peer.
func (p *TCPPeer) Disconnect(err error) {
	p.once.Do(func() {
		p.droppedWith.Store(err)
		close(p.done)
		_ = p.conn.Close()
		select {
		case p.server.unregister <- peerDrop{peer: p, reason: err}:
		case <-p.server.quit:
		}
	})
}

// writeLoop drains outHi before outLo, giving handshake and direct
// responses priority over flooded broadcasts, until done closes.
func (p *TCPPeer) writeLoop() {
	w := vio.NewBinWriterFromIO(p.conn)
	for {
		select {
		case <-p.done:
			return
		case m := <-p.outHi:
			m.encode(w)
			if w.Err != nil {
				p.Disconnect(w.Err)
				return
			}
		default:
			select {
			case <-p.done:
				return
			case m := <-p.outHi:
				m.encode(w)
			case m := <-p.outLo:
				m.encode(w)
			}
			if w.Err != nil {
				p.Disconnect(w.Err)
				return
			}
		}
	}
}

// readLoop decodes frames off the wire and hands them to the server
// until the connection errors or Disconnect is called.
func (p *TCPPeer) readLoop(magic uint32) {
	br := bufio.NewReader(p.conn)
	r := vio.NewBinReaderFromIO(br)
	for {
		m := &Message{}
		m.decode(r, magic)
		if r.Err != nil {
			p.Disconnect(r.Err)
			return
		}
		p.server.handleMessage(p, m)
	}
}

// pingLoop sends a ping every interval until the peer disconnects. The
// timeout argument is not used: no pong deadline is tracked, and a peer
// that never answers is not dropped.
func (p *TCPPeer) pingLoop(interval, timeout time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-t.C:
			ping, err := NewMessage(p.server.cfg.Magic, CmdPing, payload.NewPing(p.server.ledgerHeight(), p.server.nonce))
			if err != nil {
				continue
			}
			_ = p.EnqueueMessage(ping, true)
		}
	}
}

type peerDrop struct {
	peer   Peer
	reason error
}
