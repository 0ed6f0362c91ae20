package consensus

import (
	"sync"
	"time"

	"github.com/noriachain/neonode/pkg/config"
	"github.com/noriachain/neonode/pkg/core"
	"github.com/noriachain/neonode/pkg/core/block"
	"github.com/noriachain/neonode/pkg/core/mempool"
	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/crypto/keys"
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/util"
	"go.uber.org/zap"
)

// Ledger is everything the consensus Service needs from the chain: its
// own tip, the ability to extend it, and the mempool to draw
// transactions from. *core.Blockchain satisfies this directly.
type Ledger interface {
	BlockHeight() uint32
	CurrentBlockHash() util.Uint256
	GetHeader(util.Uint256) (*block.Header, error)
	AddBlock(*block.Block) error
	Mempool() *mempool.Pool
	GetConfig() config.ProtocolConfiguration
	Subscribe(chan *block.Block)
	Unsubscribe(chan *block.Block)
}

// Broadcaster relays a consensus payload to the rest of the network;
// the P2P layer implements it.
type Broadcaster interface {
	RelayConsensusPayload(*Payload)
}

// ServiceConfig configures a Service instance.
type ServiceConfig struct {
	Chain       Ledger
	Broadcaster Broadcaster

	// PrivateKey is this node's consensus key. Leave nil to run as a
	// non-voting observer that only tracks round state for recovery
	// and relay purposes.
	PrivateKey *keys.PrivateKey

	Log *zap.Logger
}

// Service runs one replica's dBFT state machine against Chain,
// reacting to incoming Payloads, newly relevant mempool transactions,
// and its own view timer, and broadcasting what it produces via
// Broadcaster.
type Service struct {
	cfg ServiceConfig
	log *zap.Logger

	cache *relayCache
	ctx   *context

	payloads chan *Payload
	txs      chan *transaction.Transaction
	blocks   chan *block.Block
	quit     chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	started bool
}

// NewService builds a Service ready to Start.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Chain == nil {
		return nil, errNilChain
	}
	log := cfg.Log
	if log == nil {
		var err error
		log, err = newLogger()
		if err != nil {
			return nil, err
		}
	}
	return &Service{
		cfg:      cfg,
		log:      log,
		cache:    newRelayCache(cacheCapacity),
		payloads: make(chan *Payload, 256),
		txs:      make(chan *transaction.Transaction, 256),
		blocks:   make(chan *block.Block, 16),
		quit:     make(chan struct{}),
	}, nil
}

var errNilChain = errorString("consensus: ServiceConfig.Chain is required")

type errorString string

func (e errorString) Error() string { return string(e) }

// Start launches the replica's event loop in a background goroutine.
// A second call to Start does nothing.
func (s *Service) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.cfg.Chain.Subscribe(s.blocks)
	go s.run()
}

// Shutdown stops the event loop and unsubscribes from the chain.
func (s *Service) Shutdown() {
	close(s.quit)
}

// OnPayload feeds a consensus payload received from the network (or
// from another local source) into the replica.
func (s *Service) OnPayload(p *Payload) {
	select {
	case s.payloads <- p:
	default:
		s.log.Warn("dropping consensus payload, queue full", zap.Stringer("type", p.Type()))
	}
}

// OnTransaction notifies the replica of a transaction that just became
// available, in case it completes an in-progress prepareRequest.
func (s *Service) OnTransaction(tx *transaction.Transaction) {
	select {
	case s.txs <- tx:
	default:
	}
}

// GetPayload returns a payload this replica has seen, by hash, for
// answering getdata-style requests. Returns nil if unknown.
func (s *Service) GetPayload(h util.Uint256) *Payload {
	return s.cache.Get(h)
}

func (s *Service) run() {
	defer s.cfg.Chain.Unsubscribe(s.blocks)

	s.initializeRound()
	for {
		select {
		case <-s.quit:
			return
		case p := <-s.payloads:
			s.handlePayload(p)
		case tx := <-s.txs:
			s.handleTransaction(tx)
		case b := <-s.blocks:
			if b.Index+1 > s.ctx.blockIndex {
				s.initializeRound()
			}
		case <-s.timerChan():
			s.onTimeout()
		}
	}
}

// timerChan returns the active round timer's channel, or nil (which
// blocks forever in a select) before the first round starts.
func (s *Service) timerChan() <-chan time.Time {
	if s.timer == nil {
		return nil
	}
	return s.timer.C
}

func (s *Service) resetTimer() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.NewTimer(s.ctx.viewTimeout())
}

func (s *Service) initializeRound() {
	cfg := s.cfg.Chain.GetConfig()
	validators, err := core.GetValidators(cfg)
	if err != nil {
		s.log.Error("deriving consensus validators", zap.Error(err))
		return
	}

	tipHash := s.cfg.Chain.CurrentBlockHash()
	tip, err := s.cfg.Chain.GetHeader(tipHash)
	if err != nil {
		s.log.Error("loading chain tip", zap.Error(err))
		return
	}

	myIndex := -1
	if s.cfg.PrivateKey != nil {
		myIndex = indexOf(validators, s.cfg.PrivateKey.PublicKey())
	}

	blockIndex := s.cfg.Chain.BlockHeight() + 1
	if s.ctx == nil {
		s.ctx = newContext(cfg, validators, myIndex, s.cfg.PrivateKey)
	}
	s.ctx.reset(blockIndex, tip, validators, myIndex)

	updateViewNumberMetric(0)
	updateConsensusRestartMetric(blockIndex)
	s.resetTimer()

	s.log.Info("starting consensus round",
		zap.Uint32("blockIndex", blockIndex),
		zap.Int("myIndex", myIndex),
		zap.Int("n", s.ctx.n()),
		zap.Int("m", s.ctx.m()))

	if s.ctx.isPrimary() {
		s.sendPrepareRequest()
	}
}

func nowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}

func (s *Service) broadcast(p *Payload) {
	s.cache.Add(p)
	if s.cfg.Broadcaster != nil {
		s.cfg.Broadcaster.RelayConsensusPayload(p)
	}
}

func (s *Service) sendPrepareRequest() {
	max := int(s.ctx.cfg.MaxTransactionsPerBlock)
	txs := s.cfg.Chain.Mempool().GetVerifiedTransactions()
	if len(txs) > max {
		txs = txs[:max]
	}

	p := s.ctx.makePrepareRequest(txs, nowMillis())
	p.Sign(s.cfg.PrivateKey)
	s.ctx.prepareRequest = p
	s.ctx.preparationHash = p.Hash()

	pr, _ := p.prepareRequest()
	s.ctx.header = s.ctx.buildHeader(s.ctx.prevHash, pr)
	s.ctx.preparations[uint16(s.ctx.myIndex)] = p
	s.ctx.state = StateRequestSent

	s.log.Info("sending prepare request",
		zap.Uint32("blockIndex", s.ctx.blockIndex),
		zap.Int("transactions", len(txs)))
	s.broadcast(p)
	s.checkPrepareQuorum()
}

func (s *Service) handlePayload(p *Payload) {
	if s.ctx == nil || p.BlockIndex != s.ctx.blockIndex {
		return
	}
	if !s.cache.Add(p) {
		return
	}
	ok, err := p.Verify(s.ctx.validators)
	if err != nil || !ok {
		s.log.Warn("rejecting unverifiable consensus payload",
			zap.Stringer("type", p.Type()), zap.Uint16("validator", p.ValidatorIndex))
		return
	}

	switch p.Type() {
	case prepareRequestType:
		s.onPrepareRequest(p)
	case prepareResponseType:
		s.onPrepareResponse(p)
	case commitType:
		s.onCommit(p)
	case changeViewType:
		s.onChangeView(p)
	case recoveryRequestType:
		s.onRecoveryRequest(p)
	case recoveryMessageType:
		s.onRecoveryMessage(p)
	}
}

func (s *Service) onPrepareRequest(p *Payload) {
	if p.ViewNumber() != s.ctx.view || p.ValidatorIndex != s.ctx.primaryIndex() {
		return
	}
	if s.ctx.prepareRequest != nil {
		return
	}
	pr, ok := p.prepareRequest()
	if !ok || len(pr.TransactionHashes) > int(s.ctx.cfg.MaxTransactionsPerBlock) {
		return
	}

	s.ctx.prepareRequest = p
	s.ctx.preparationHash = p.Hash()
	s.ctx.header = s.ctx.buildHeader(s.ctx.prevHash, pr)
	s.ctx.preparations[p.ValidatorIndex] = p
	s.ctx.txHashes = pr.TransactionHashes

	for _, h := range pr.TransactionHashes {
		if tx, ok := s.cfg.Chain.Mempool().TryGetValue(h); ok {
			s.ctx.transactions[h] = tx
		}
	}
	s.tryRespond()
}

// tryRespond sends this replica's prepareResponse once every
// transaction the accepted prepareRequest names has arrived.
func (s *Service) tryRespond() {
	if s.ctx.myIndex < 0 || s.ctx.header == nil || s.ctx.state != StateInitial {
		return
	}
	for _, h := range s.ctx.txHashes {
		if _, ok := s.ctx.transactions[h]; !ok {
			return
		}
	}

	resp := s.ctx.makePrepareResponse()
	resp.Sign(s.cfg.PrivateKey)
	s.ctx.preparations[uint16(s.ctx.myIndex)] = resp
	s.ctx.state = StateResponseSent
	s.broadcast(resp)
	s.checkPrepareQuorum()
}

func (s *Service) handleTransaction(tx *transaction.Transaction) {
	if s.ctx == nil || s.ctx.prepareRequest == nil {
		return
	}
	h := tx.Hash()
	if _, already := s.ctx.transactions[h]; already {
		return
	}
	for _, want := range s.ctx.txHashes {
		if want.Equals(h) {
			s.ctx.transactions[h] = tx
			s.tryRespond()
			return
		}
	}
}

func (s *Service) onPrepareResponse(p *Payload) {
	if p.ViewNumber() != s.ctx.view {
		return
	}
	pr, ok := p.prepareResponse()
	if !ok {
		return
	}
	if s.ctx.prepareRequest != nil && !pr.PreparationHash.Equals(s.ctx.preparationHash) {
		return
	}
	s.ctx.preparations[p.ValidatorIndex] = p
	s.checkPrepareQuorum()
}

func (s *Service) checkPrepareQuorum() {
	if s.ctx.header == nil || s.ctx.state == StateCommitSent || s.ctx.state == StateBlockPersisted {
		return
	}
	if !s.ctx.quorumReached(s.ctx.preparations) {
		return
	}
	if s.ctx.myIndex < 0 {
		return
	}

	c := s.ctx.makeCommit()
	c.Sign(s.cfg.PrivateKey)
	s.ctx.commits[uint16(s.ctx.myIndex)] = c
	s.ctx.state = StateCommitSent
	s.log.Info("reached prepare quorum, committing", zap.Uint32("blockIndex", s.ctx.blockIndex))
	s.broadcast(c)
	s.checkCommitQuorum()
}

func (s *Service) onCommit(p *Payload) {
	if _, ok := p.commit(); !ok {
		return
	}
	if p.ViewNumber() != s.ctx.view {
		return
	}
	s.ctx.commits[p.ValidatorIndex] = p
	s.checkCommitQuorum()
}

func (s *Service) checkCommitQuorum() {
	if s.ctx.header == nil || s.ctx.state == StateBlockPersisted {
		return
	}
	if !s.ctx.quorumReached(s.ctx.commits) {
		return
	}
	for _, h := range s.ctx.txHashes {
		if _, ok := s.ctx.transactions[h]; !ok {
			return
		}
	}

	witness, err := assembleWitness(s.ctx.validators, s.ctx.commits, s.ctx.m())
	if err != nil {
		s.log.Error("assembling commit witness", zap.Error(err))
		return
	}

	blk := &block.Block{Header: *s.ctx.header}
	blk.Script = witness
	blk.Transactions = make([]*transaction.Transaction, len(s.ctx.txHashes))
	for i, h := range s.ctx.txHashes {
		blk.Transactions[i] = s.ctx.transactions[h]
	}

	if err := s.cfg.Chain.AddBlock(blk); err != nil {
		s.log.Error("persisting consensus block", zap.Error(err), zap.Uint32("blockIndex", blk.Index))
		return
	}
	s.ctx.state = StateBlockPersisted
	s.log.Info("persisted consensus block", zap.Uint32("blockIndex", blk.Index), zap.Int("transactions", len(blk.Transactions)))
	// the next round starts when this (or a peer's) block arrives over
	// s.blocks, keeping consensus progress and chain sync a single path.
}

func (s *Service) onTimeout() {
	s.log.Warn("view timed out, requesting change view",
		zap.Uint32("blockIndex", s.ctx.blockIndex), zap.Uint8("view", s.ctx.view))

	if s.ctx.myIndex >= 0 && s.ctx.state != StateCommitSent && s.ctx.state != StateBlockPersisted {
		cv := s.ctx.makeChangeView(nowMillis(), reasonTimeout)
		cv.Sign(s.cfg.PrivateKey)
		s.ctx.changeViews[uint16(s.ctx.myIndex)] = cv
		s.broadcast(cv)
	}
	s.resetTimer()
	s.checkChangeViewQuorum()
}

func (s *Service) onChangeView(p *Payload) {
	if _, ok := p.changeView(); !ok {
		return
	}
	if p.ViewNumber() != s.ctx.view {
		return
	}
	s.ctx.changeViews[p.ValidatorIndex] = p
	s.checkChangeViewQuorum()
}

func (s *Service) checkChangeViewQuorum() {
	if s.ctx.state == StateCommitSent || s.ctx.state == StateBlockPersisted {
		return
	}
	if !s.ctx.quorumReached(s.ctx.changeViews) {
		return
	}

	newView := s.ctx.view + 1
	s.ctx.changeView(newView)
	updateViewNumberMetric(newView)
	s.resetTimer()

	s.log.Info("moved to new view", zap.Uint32("blockIndex", s.ctx.blockIndex), zap.Uint8("view", newView))
	if s.ctx.isPrimary() {
		s.sendPrepareRequest()
	}
}

// onRecoveryRequest answers a peer's request for this replica's round
// state by broadcasting a full recoveryMessage. Every other validator
// sees it too rather than just the requester, trading some bandwidth
// for simplicity: this replica has no direct-reply transport of its
// own, only Broadcaster.
func (s *Service) onRecoveryRequest(p *Payload) {
	if s.ctx.myIndex < 0 {
		return
	}
	rm := s.buildRecoveryMessage()
	env := &Payload{
		Version:        block.VersionInitial,
		ValidatorIndex: uint16(s.ctx.myIndex),
		BlockIndex:     s.ctx.blockIndex,
		Timestamp:      nowMillis(),
	}
	env.message = message{Type: recoveryMessageType, ViewNumber: s.ctx.view, payload: rm}
	env.Sign(s.cfg.PrivateKey)
	s.broadcast(env)
}

func (s *Service) buildRecoveryMessage() *recoveryMessage {
	rm := &recoveryMessage{}
	for idx, cvp := range s.ctx.changeViews {
		cv, ok := cvp.changeView()
		if !ok {
			continue
		}
		rm.ChangeViews = append(rm.ChangeViews, changeViewCompact{
			ValidatorIndex:     idx,
			OriginalViewNumber: cvp.ViewNumber(),
			Timestamp:          cv.Timestamp,
			InvocationScript:   cvp.Witness.InvocationScript,
		})
	}
	if s.ctx.prepareRequest != nil {
		pr, _ := s.ctx.prepareRequest.prepareRequest()
		rm.PrepareRequest = pr
		rm.PrepareRequestValidatorIndex = s.ctx.prepareRequest.ValidatorIndex
	} else if !s.ctx.preparationHash.IsZero() {
		h := s.ctx.preparationHash
		rm.PreparationHash = &h
	}
	for idx, pp := range s.ctx.preparations {
		rm.Preparations = append(rm.Preparations, preparationCompact{
			ValidatorIndex:   idx,
			InvocationScript: pp.Witness.InvocationScript,
		})
	}
	for idx, cp := range s.ctx.commits {
		c, ok := cp.commit()
		if !ok {
			continue
		}
		rm.Commits = append(rm.Commits, commitCompact{
			ValidatorIndex:   idx,
			ViewNumber:       cp.ViewNumber(),
			Signature:        c.Signature,
			InvocationScript: cp.Witness.InvocationScript,
		})
	}
	return rm
}

// onRecoveryMessage merges a peer's recovery snapshot into this
// replica's own round state, reconstructing each compact entry's
// witness-bearing Payload and running it through the same handlers a
// live message would. Entries that fail to verify are dropped; stale
// entries (wrong block or view) are rejected downstream the same way a
// live message would be.
func (s *Service) onRecoveryMessage(p *Payload) {
	rm, ok := p.recoveryMessage()
	if !ok {
		return
	}

	for i := range rm.ChangeViews {
		cv := rm.ChangeViews[i]
		env := s.reconstructPayload(changeViewType, cv.ValidatorIndex, cv.OriginalViewNumber,
			&changeView{NewViewNumber: cv.OriginalViewNumber + 1, Timestamp: cv.Timestamp}, cv.InvocationScript)
		if env != nil {
			s.onChangeView(env)
		}
	}

	if rm.PrepareRequest != nil {
		env := s.reconstructPayload(prepareRequestType, rm.PrepareRequestValidatorIndex, s.ctx.view,
			rm.PrepareRequest, p.Witness.InvocationScript)
		if env != nil {
			s.onPrepareRequest(env)
		}
	}

	for i := range rm.Preparations {
		pp := rm.Preparations[i]
		if s.ctx.prepareRequest == nil {
			break
		}
		env := s.reconstructPayload(prepareResponseType, pp.ValidatorIndex, s.ctx.view,
			&prepareResponse{PreparationHash: s.ctx.preparationHash}, pp.InvocationScript)
		if env != nil {
			s.onPrepareResponse(env)
		}
	}

	for i := range rm.Commits {
		cc := rm.Commits[i]
		env := s.reconstructPayload(commitType, cc.ValidatorIndex, cc.ViewNumber,
			&commit{Signature: cc.Signature}, cc.InvocationScript)
		if env != nil {
			s.onCommit(env)
		}
	}
}

// reconstructPayload rebuilds and verifies the Payload envelope a
// compact recoveryMessage entry was distilled from, so every handler
// downstream sees the same authenticated shape a live message would
// have arrived in. Returns nil if validatorIndex is out of range or
// the reattached witness doesn't verify.
func (s *Service) reconstructPayload(t messageType, validatorIndex uint16, view byte, inner vio.Serializable, invocation []byte) *Payload {
	if int(validatorIndex) >= len(s.ctx.validators) {
		return nil
	}
	env := &Payload{
		Version:        block.VersionInitial,
		ValidatorIndex: validatorIndex,
		BlockIndex:     s.ctx.blockIndex,
		Timestamp:      s.ctx.timestamp,
		Witness: transaction.Witness{
			InvocationScript:   invocation,
			VerificationScript: s.ctx.validators[validatorIndex].VerificationScript(),
		},
	}
	env.message = message{Type: t, ViewNumber: view, payload: inner}
	ok, err := env.Verify(s.ctx.validators)
	if err != nil || !ok {
		return nil
	}
	return env
}
