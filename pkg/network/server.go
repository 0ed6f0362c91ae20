package network

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/noriachain/neonode/pkg/config"
	"github.com/noriachain/neonode/pkg/consensus"
	"github.com/noriachain/neonode/pkg/core/block"
	"github.com/noriachain/neonode/pkg/core/mempool"
	"github.com/noriachain/neonode/pkg/core/transaction"
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/network/bloom"
	"github.com/noriachain/neonode/pkg/network/capability"
	"github.com/noriachain/neonode/pkg/network/payload"
	"github.com/noriachain/neonode/pkg/util"
	"go.uber.org/zap"
)

const (
	minPeersDefault  = 5
	maxPeersDefault  = 100
	getAddrLimit     = payload.MaxAddressesInList
	maintenanceEvery = 30 * time.Second
)

var (
	errAlreadyStarted = errors.New("network: server already started")
	errSelfConnect    = errors.New("network: refusing to connect to self")
)

// Ledger is everything the P2P server needs from the chain to serve
// and validate peers. *core.Blockchain satisfies this directly.
type Ledger interface {
	BlockHeight() uint32
	CurrentBlockHash() util.Uint256
	GetBlock(util.Uint256) (*block.Block, error)
	GetHeader(util.Uint256) (*block.Header, error)
	GetHeaderHash(uint32) (util.Uint256, error)
	GetTransaction(util.Uint256) (*transaction.Transaction, uint32, error)
	AddBlock(*block.Block) error
	Mempool() *mempool.Pool
	GetConfig() config.ProtocolConfiguration
	Subscribe(chan *block.Block)
	Unsubscribe(chan *block.Block)
}

// ConsensusService is the subset of *consensus.Service the P2P layer
// drives: feeding it inbound extensible payloads and transactions, and
// asking it to reconstruct a payload this node itself produced.
type ConsensusService interface {
	Start()
	Shutdown()
	OnPayload(*consensus.Payload)
	OnTransaction(*transaction.Transaction)
	GetPayload(util.Uint256) *consensus.Payload
}

// Transporter abstracts the network listener/dialer so tests can
// substitute an in-memory transport.
type Transporter interface {
	Dial(addr string, timeout time.Duration) (net.Conn, error)
	Accept(handle func(net.Conn))
	Proto() string
	HostPort() (string, string)
	Close() error
}

// TCPTransport is the real net.Listen/net.Dial Transporter.
type TCPTransport struct {
	addr     string
	listener net.Listener
}

// NewTCPTransport builds a TCPTransport bound to addr (host:port); the
// listener is opened lazily by Accept.
func NewTCPTransport(addr string) *TCPTransport {
	return &TCPTransport{addr: addr}
}

// Dial implements Transporter.
func (t *TCPTransport) Dial(addr string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, timeout)
}

// Accept implements Transporter, calling handle for every accepted
// connection until Close is called.
func (t *TCPTransport) Accept(handle func(net.Conn)) {
	l, err := net.Listen("tcp", t.addr)
	if err != nil {
		return
	}
	t.listener = l
	for {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		go handle(conn)
	}
}

// Proto implements Transporter.
func (t *TCPTransport) Proto() string { return "tcp" }

// HostPort implements Transporter.
func (t *TCPTransport) HostPort() (string, string) {
	host, port, _ := net.SplitHostPort(t.addr)
	return host, port
}

// Close implements Transporter.
func (t *TCPTransport) Close() error {
	if t.listener != nil {
		return t.listener.Close()
	}
	return nil
}

// ServerConfig configures a Server instance.
type ServerConfig struct {
	Magic      uint32
	UserAgent  string
	ListenAddr string
	Seeds      []string
	P2P        config.P2P
	Archival   bool

	Log *zap.Logger
}

// Server is the P2P engine (§4.10): it maintains peer connections,
// runs the version/verack handshake, synchronizes headers and blocks,
// floods transactions and consensus extensibles, and answers address
// and inventory queries.
type Server struct {
	cfg   ServerConfig
	chain Ledger
	log   *zap.Logger

	nonce     uint32
	transport Transporter
	discover  *Discoverer
	relay     *RelayCache

	consensus ConsensusService

	mu         sync.RWMutex
	peers      map[Peer]struct{}
	started    bool

	register   chan Peer
	unregister chan peerDrop
	blocks     chan *block.Block
	quit       chan struct{}
}

// NewServer builds a Server over chain, using transport for dialing
// and listening; pass nil for transport to use a real TCPTransport
// bound to cfg.ListenAddr.
func NewServer(cfg ServerConfig, chain Ledger, transport Transporter) (*Server, error) {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	if transport == nil {
		transport = NewTCPTransport(cfg.ListenAddr)
	}
	s := &Server{
		cfg:        cfg,
		chain:      chain,
		log:        log,
		nonce:      randomNonce(),
		transport:  transport,
		relay:      NewRelayCache(),
		peers:      make(map[Peer]struct{}),
		register:   make(chan Peer),
		unregister: make(chan peerDrop),
		blocks:     make(chan *block.Block, 16),
		quit:       make(chan struct{}),
	}
	dialTimeout := cfg.P2P.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 5 * time.Second
	}
	banDuration := time.Hour
	s.discover = NewDiscoverer(cfg.Seeds, dialTimeout, banDuration, s.dial)
	return s, nil
}

// AddConsensusService wires a consensus replica into the server so
// extensible payloads and mempool transactions reach it, and so it can
// broadcast its own payloads (RelayConsensusPayload implements
// consensus.Broadcaster).
func (s *Server) AddConsensusService(cs ConsensusService) { s.consensus = cs }

// ID returns this node's session nonce, used as its peer identity in
// the version handshake.
func (s *Server) ID() uint32 { return s.nonce }

// PeerCount returns the number of currently registered peers.
func (s *Server) PeerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// PeerAddrs lists every currently-registered peer's remote address, for
// RPC's getpeers (§6).
func (s *Server) PeerAddrs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addrs := make([]string, 0, len(s.peers))
	for p := range s.peers {
		addrs = append(addrs, p.ConnectionAddr())
	}
	return addrs
}

// UnconnectedAddrs lists addresses this node knows about but is not
// currently connected to, for RPC's getpeers (§6).
func (s *Server) UnconnectedAddrs() []string {
	return s.discover.Candidates(1 << 20)
}

func randomNonce() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

// Start begins listening, dialing seeds, and running the registration
// and maintenance loops. It returns once those goroutines are spawned.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	s.chain.Subscribe(s.blocks)

	go s.transport.Accept(s.handleAccepted)
	go s.registrationLoop()
	go s.maintenanceLoop()
	go s.blockNotifyLoop()

	for _, seed := range s.cfg.Seeds {
		go s.dial(seed, s.cfg.P2P.DialTimeout)
	}
	if s.consensus != nil {
		s.consensus.Start()
	}
	return nil
}

// Shutdown stops all loops and disconnects every peer.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	close(s.quit)
	_ = s.transport.Close()
	s.chain.Unsubscribe(s.blocks)
	if s.consensus != nil {
		s.consensus.Shutdown()
	}
	s.mu.RLock()
	for p := range s.peers {
		p.Disconnect(errors.New("network: server shutting down"))
	}
	s.mu.RUnlock()
}

func (s *Server) blockNotifyLoop() {
	for {
		select {
		case <-s.quit:
			return
		case b, ok := <-s.blocks:
			if !ok {
				return
			}
			s.broadcastInv(payload.BlockType, b.Hash())
		}
	}
}

// headerHashByIndex answers getheaders/getblockbyindex by height,
// via the chain's own GetHeaderHash (§4.8) rather than a local copy of
// the same index.
func (s *Server) headerHashByIndex(idx uint32) (util.Uint256, bool) {
	h, err := s.chain.GetHeaderHash(idx)
	return h, err == nil
}

func (s *Server) ledgerHeight() uint32 { return s.chain.BlockHeight() }

func (s *Server) dial(addr string, timeout time.Duration) {
	conn, err := s.transport.Dial(addr, timeout)
	if err != nil {
		s.discover.RegisterBad(addr)
		return
	}
	s.handleAccepted(conn)
}

func (s *Server) handleAccepted(conn net.Conn) {
	addr := conn.RemoteAddr().String()
	if s.discover.IsBanned(addr) {
		_ = conn.Close()
		return
	}
	p := NewTCPPeer(conn, s)
	go p.writeLoop()
	go p.readLoop(s.cfg.Magic)
	go p.pingLoop(s.cfg.P2P.PingInterval, s.cfg.P2P.PingTimeout)

	v := payload.NewVersion(s.cfg.Magic, s.nonce, s.cfg.UserAgent, s.chain.BlockHeight(), tcpPortOf(s.cfg.ListenAddr), s.cfg.Archival)
	m, err := NewMessage(s.cfg.Magic, CmdVersion, v)
	if err != nil {
		p.Disconnect(err)
		return
	}
	if err := p.EnqueueMessage(m, true); err != nil {
		p.Disconnect(err)
		return
	}
}

func tcpPortOf(listenAddr string) uint16 {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return 0
	}
	var port uint16
	_, _ = fmt.Sscanf(portStr, "%d", &port)
	return port
}

// registrationLoop owns the peers map, serializing add/remove against
// concurrent peer goroutines.
func (s *Server) registrationLoop() {
	for {
		select {
		case <-s.quit:
			return
		case p := <-s.register:
			s.mu.Lock()
			s.peers[p] = struct{}{}
			n := len(s.peers)
			s.mu.Unlock()
			s.log.Debug("peer registered", zap.String("addr", p.ConnectionAddr()), zap.Int("count", n))
		case d := <-s.unregister:
			s.mu.Lock()
			delete(s.peers, d.peer)
			s.mu.Unlock()
			if addr := d.peer.ConnectionAddr(); addr != "" {
				s.discover.RegisterBad(addr)
			}
		}
	}
}

// maintenanceLoop periodically tops up the peer count from the
// discoverer's candidate pool (§4.10 connection maintenance).
func (s *Server) maintenanceLoop() {
	t := time.NewTicker(maintenanceEvery)
	defer t.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-t.C:
			want := s.cfg.P2P.MinPeers
			if want == 0 {
				want = minPeersDefault
			}
			if s.PeerCount() >= want {
				continue
			}
			need := want - s.PeerCount()
			for _, addr := range s.discover.Candidates(need) {
				go s.dial(addr, s.cfg.P2P.DialTimeout)
			}
		}
	}
}

// handleMessage dispatches one decoded frame from p (§4.10 per-command
// handling).
func (s *Server) handleMessage(p Peer, m *Message) {
	if !p.Handshaked() && m.Command != CmdVersion && m.Command != CmdVerack {
		p.Disconnect(fmt.Errorf("network: %s before handshake complete", m.Command))
		return
	}
	switch m.Command {
	case CmdVersion:
		s.onVersion(p, m)
	case CmdVerack:
		s.onVerack(p)
	case CmdGetAddr:
		s.onGetAddr(p)
	case CmdAddr:
		s.onAddr(m)
	case CmdPing:
		s.onPing(p, m)
	case CmdPong:
		s.onPong(p, m)
	case CmdGetHeaders:
		s.onGetHeaders(p, m)
	case CmdHeaders:
		// Header batches are ignored; this server never sends
		// getheaders.
	case CmdGetBlocks:
		s.onGetBlockByIndex(p, m)
	case CmdInv:
		s.onInv(p, m)
	case CmdGetData:
		s.onGetData(p, m)
	case CmdBlock:
		s.onBlock(p, m)
	case CmdTX:
		s.onTX(p, m)
	case CmdExtensible:
		s.onExtensible(p, m)
	case CmdMempool:
		s.onMempool(p)
	case CmdFilterLoad:
		s.onFilterLoad(p, m)
	case CmdFilterAdd:
		s.onFilterAdd(p, m)
	case CmdFilterClear:
		p.SetFilter(nil)
	case CmdNotFound, CmdReject:
		// Best-effort protocol; nothing actionable for either today.
	default:
		s.log.Debug("unhandled command", zap.String("cmd", string(m.Command)))
	}
}

func (s *Server) onVersion(p Peer, m *Message) {
	d, err := m.Decoded()
	if err != nil {
		p.Disconnect(err)
		return
	}
	v := d.(*payload.Version)
	if v.Nonce == s.nonce {
		p.Disconnect(errSelfConnect)
		return
	}
	p.SetVersion(v)
	if h, ok := v.Capabilities.StartHeight(); ok {
		p.SetLastBlockIndex(h)
	}

	verack, err := NewMessage(s.cfg.Magic, CmdVerack, nil)
	if err != nil {
		p.Disconnect(err)
		return
	}
	_ = p.EnqueueMessage(verack, true)
}

func (s *Server) onVerack(p Peer) {
	if tp, ok := p.(*TCPPeer); ok {
		if err := tp.markHandshaked(); err != nil {
			return
		}
	}
	s.register <- p
	s.discover.RegisterGood(p.ConnectionAddr())
}

func (s *Server) onGetAddr(p Peer) {
	addrs := s.discover.GoodAddresses(p.ConnectionAddr(), getAddrLimit)
	now := uint32(time.Now().Unix())
	entries := make([]*payload.AddressAndTime, 0, len(addrs))
	for _, a := range addrs {
		tcpAddr, err := net.ResolveTCPAddr("tcp", a)
		if err != nil {
			continue
		}
		entries = append(entries, payload.NewAddressAndTime(tcpAddr, now, capability.NewList(&capability.Server{Port: uint16(tcpAddr.Port)})))
	}
	list := &payload.AddressList{Addrs: entries}
	m, err := NewMessage(s.cfg.Magic, CmdAddr, list)
	if err != nil {
		return
	}
	_ = p.EnqueueMessage(m, false)
}

func (s *Server) onAddr(m *Message) {
	d, err := m.Decoded()
	if err != nil {
		return
	}
	list := d.(*payload.AddressList)
	addrs := make([]string, 0, len(list.Addrs))
	for _, a := range list.Addrs {
		if tcp := a.Addr(); tcp != nil {
			addrs = append(addrs, tcp.String())
		}
	}
	s.discover.Merge(addrs)
}

func (s *Server) onPing(p Peer, m *Message) {
	d, err := m.Decoded()
	if err != nil {
		return
	}
	ping := d.(*payload.Ping)
	p.SetLastBlockIndex(ping.LastBlockIndex)
	pong, err := NewMessage(s.cfg.Magic, CmdPong, payload.NewPing(s.chain.BlockHeight(), ping.Nonce))
	if err != nil {
		return
	}
	_ = p.EnqueueMessage(pong, true)
}

func (s *Server) onPong(p Peer, m *Message) {
	d, err := m.Decoded()
	if err != nil {
		return
	}
	p.SetLastBlockIndex(d.(*payload.Ping).LastBlockIndex)
}

func (s *Server) onGetHeaders(p Peer, m *Message) {
	d, err := m.Decoded()
	if err != nil {
		return
	}
	req := d.(*payload.GetBlockByIndex)
	hdrs := &payload.Headers{}
	count := int(req.Count)
	if req.Count < 0 {
		count = payload.MaxHeadersAllowed
	}
	for i := 0; i < count; i++ {
		h, ok := s.headerHashByIndex(req.IndexStart + uint32(i))
		if !ok {
			break
		}
		hdr, err := s.chain.GetHeader(h)
		if err != nil {
			break
		}
		hdrs.Hdrs = append(hdrs.Hdrs, hdr)
	}
	resp, err := NewMessage(s.cfg.Magic, CmdHeaders, hdrs)
	if err != nil {
		return
	}
	_ = p.EnqueueMessage(resp, false)
}

func (s *Server) onGetBlockByIndex(p Peer, m *Message) {
	d, err := m.Decoded()
	if err != nil {
		return
	}
	req := d.(*payload.GetBlockByIndex)
	count := int(req.Count)
	if req.Count < 0 {
		count = payload.MaxHeadersAllowed
	}
	for i := 0; i < count; i++ {
		h, ok := s.headerHashByIndex(req.IndexStart + uint32(i))
		if !ok {
			break
		}
		b, err := s.chain.GetBlock(h)
		if err != nil {
			break
		}
		resp, err := NewMessage(s.cfg.Magic, CmdBlock, b)
		if err != nil {
			continue
		}
		_ = p.EnqueueMessage(resp, false)
	}
}

func (s *Server) onInv(p Peer, m *Message) {
	d, err := m.Decoded()
	if err != nil {
		return
	}
	inv := d.(*payload.Inventory)
	want := make([]util.Uint256, 0, len(inv.Hashes))
	for _, h := range inv.Hashes {
		if s.haveItem(inv.Type, h) {
			continue
		}
		want = append(want, h)
	}
	if len(want) == 0 {
		return
	}
	getData, err := NewMessage(s.cfg.Magic, CmdGetData, mustInventory(inv.Type, want))
	if err != nil {
		return
	}
	_ = p.EnqueueMessage(getData, false)
}

func mustInventory(t payload.InventoryType, hashes []util.Uint256) *payload.Inventory {
	return payload.NewInventory(t, hashes)
}

func (s *Server) haveItem(t payload.InventoryType, h util.Uint256) bool {
	switch t {
	case payload.TXType:
		if _, _, err := s.chain.GetTransaction(h); err == nil {
			return true
		}
		return s.chain.Mempool().ContainsKey(h)
	case payload.BlockType:
		_, err := s.chain.GetBlock(h)
		return err == nil
	case payload.ExtensibleType:
		return s.relay.Has(h)
	default:
		return false
	}
}

func (s *Server) onGetData(p Peer, m *Message) {
	d, err := m.Decoded()
	if err != nil {
		return
	}
	inv := d.(*payload.Inventory)
	for _, h := range inv.Hashes {
		s.sendItem(p, inv.Type, h)
	}
}

func (s *Server) sendItem(p Peer, t payload.InventoryType, h util.Uint256) {
	switch t {
	case payload.TXType:
		if tx, ok := s.chain.Mempool().TryGetValue(h); ok {
			if m, err := NewMessage(s.cfg.Magic, CmdTX, tx); err == nil {
				_ = p.EnqueueMessage(m, false)
			}
			return
		}
		if tx, _, err := s.chain.GetTransaction(h); err == nil {
			if m, err := NewMessage(s.cfg.Magic, CmdTX, tx); err == nil {
				_ = p.EnqueueMessage(m, false)
			}
			return
		}
	case payload.BlockType:
		if b, err := s.chain.GetBlock(h); err == nil {
			if m, err := NewMessage(s.cfg.Magic, CmdBlock, b); err == nil {
				_ = p.EnqueueMessage(m, false)
			}
			return
		}
	case payload.ExtensibleType:
		if item, _, ok := s.relay.Get(h); ok {
			if ext, ok := item.(*payload.Extensible); ok {
				if m, err := NewMessage(s.cfg.Magic, CmdExtensible, ext); err == nil {
					_ = p.EnqueueMessage(m, false)
				}
				return
			}
		}
	}
	notFound, err := NewMessage(s.cfg.Magic, CmdNotFound, mustInventory(t, []util.Uint256{h}))
	if err == nil {
		_ = p.EnqueueMessage(notFound, false)
	}
}

func (s *Server) onBlock(p Peer, m *Message) {
	d, err := m.Decoded()
	if err != nil {
		return
	}
	b := d.(*block.Block)
	if err := s.chain.AddBlock(b); err != nil {
		s.log.Debug("rejected block", zap.Error(err), zap.Uint32("index", b.Index))
		return
	}
}

func (s *Server) onTX(p Peer, m *Message) {
	d, err := m.Decoded()
	if err != nil {
		return
	}
	tx := d.(*transaction.Transaction)
	if err := s.chain.Mempool().Add(tx, s.chain.(mempool.Feer)); err != nil {
		return
	}
	if s.consensus != nil {
		s.consensus.OnTransaction(tx)
	}
	s.broadcastInv(payload.TXType, tx.Hash())
}

func (s *Server) onExtensible(p Peer, m *Message) {
	d, err := m.Decoded()
	if err != nil {
		return
	}
	ext := d.(*payload.Extensible)
	h := ext.Hash()
	if !s.relay.Add(h, payload.ExtensibleType, ext) {
		return
	}
	if s.consensus != nil && ext.Category == "dBFT" {
		cp := &consensus.Payload{}
		if err := vio.FromArray(cp, ext.Data); err == nil {
			s.consensus.OnPayload(cp)
		}
	}
	s.broadcastInv(payload.ExtensibleType, h)
}

func (s *Server) onMempool(p Peer) {
	txs := s.chain.Mempool().GetVerifiedTransactions()
	hashes := make([]util.Uint256, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.Hash()
	}
	for i := 0; i < len(hashes); i += payload.MaxHashesCount {
		end := i + payload.MaxHashesCount
		if end > len(hashes) {
			end = len(hashes)
		}
		inv := mustInventory(payload.TXType, hashes[i:end])
		if m, err := NewMessage(s.cfg.Magic, CmdInv, inv); err == nil {
			_ = p.EnqueueMessage(m, false)
		}
	}
}

// broadcastInv fans a single-hash inv message out to every handshaked
// peer. It does no deduplication of its own: extensibles pass the relay
// cache and transactions the mempool before reaching it, and a block is
// announced once per chain notification. A peer that loaded a bloom filter only gets
// transaction invs whose hash matches it (§4.10 bloom filtering;
// matching against the raw hash rather than script/signature content
// is a deliberate simplification, see DESIGN.md).
func (s *Server) broadcastInv(t payload.InventoryType, h util.Uint256) {
	inv := mustInventory(t, []util.Uint256{h})
	m, err := NewMessage(s.cfg.Magic, CmdInv, inv)
	if err != nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for p := range s.peers {
		if !p.Handshaked() {
			continue
		}
		if t == payload.TXType {
			if f := p.Filter(); f != nil && !f.Test(h[:]) {
				continue
			}
		}
		_ = p.EnqueueMessage(m, false)
	}
}

func (s *Server) onFilterLoad(p Peer, m *Message) {
	d, err := m.Decoded()
	if err != nil {
		return
	}
	fl := d.(*payload.FilterLoad)
	p.SetFilter(bloom.Load(fl.Data, fl.K, fl.Tweak))
}

func (s *Server) onFilterAdd(p Peer, m *Message) {
	d, err := m.Decoded()
	if err != nil {
		return
	}
	f := p.Filter()
	if f == nil {
		return
	}
	f.Add(d.(*payload.FilterAdd).Data)
}

// RelayConsensusPayload implements consensus.Broadcaster: it wraps a
// dBFT payload in the generic Extensible transport envelope, copying
// the payload's own witness across rather than signing a second time,
// and floods it like any other extensible.
func (s *Server) RelayConsensusPayload(cp *consensus.Payload) {
	ext := payload.NewExtensible()
	ext.Category = "dBFT"
	ext.ValidBlockStart = 0
	ext.ValidBlockEnd = s.chain.BlockHeight() + 1
	ext.Witness = cp.Witness
	raw, err := vio.ToArray(cp)
	if err != nil {
		return
	}
	ext.Data = raw
	h := ext.Hash()
	s.relay.Add(h, payload.ExtensibleType, ext)
	s.broadcastInv(payload.ExtensibleType, h)
}
