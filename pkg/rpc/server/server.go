// Package server implements the JSON-RPC 2.0 boundary a node exposes
// over HTTP and (for subscriptions) websocket: request dispatch only,
// the domain semantics belong to core/network/consensus (§1, §6).
package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noriachain/neonode/pkg/config"
	"github.com/noriachain/neonode/pkg/core/block"
	"github.com/noriachain/neonode/pkg/core/mempool"
	"github.com/noriachain/neonode/pkg/core/native"
	"github.com/noriachain/neonode/pkg/core/state"
	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/neorpc"
	"github.com/noriachain/neonode/pkg/smartcontract/trigger"
	"github.com/noriachain/neonode/pkg/util"
)

// Ledger is the read surface the RPC server needs from the chain; a
// narrow slice of *core.Blockchain's actual method set so this package
// never imports core directly (mirrors network.Ledger's role, §6).
type Ledger interface {
	BlockHeight() uint32
	CurrentBlockHash() util.Uint256
	GetBlock(util.Uint256) (*block.Block, error)
	GetHeader(util.Uint256) (*block.Header, error)
	GetHeaderHash(uint32) (util.Uint256, error)
	GetTransaction(util.Uint256) (*transaction.Transaction, uint32, error)
	GetAppExecResults(util.Uint256, trigger.Type) ([]state.AppExecResult, error)
	GetStorageItem(util.Uint160, []byte) state.StorageItem
	GetNativeContractMetadata(util.Uint160) (native.Metadata, bool)
	Invoke(script []byte, sender util.Uint160, gasLimit int64) *state.Execution
	AddBlock(*block.Block) error
	Mempool() *mempool.Pool
	GetConfig() config.ProtocolConfiguration
	Subscribe(chan *block.Block)
	Unsubscribe(chan *block.Block)
}

// Submitter is how the RPC server hands a verified transaction to the
// rest of the node; separated from Ledger because admission also needs
// the mempool's Feer (chain fee/height policy), which *core.Blockchain
// itself implements.
type Submitter interface {
	GetBaseExecFee() int64
	FeePerByte() int64
	BlockHeight() uint32
	GetUtilityTokenBalance(util.Uint160) *big.Int
	P2PSigExtensionsEnabled() bool
}

// Network is the peer-count/address surface *network.Server exposes.
type Network interface {
	PeerCount() int
	ID() uint32
	PeerAddrs() []string
	UnconnectedAddrs() []string
}

const (
	userAgentVersion = "0.1.0"
	readTimeout      = 15 * time.Second
	writeTimeout     = 15 * time.Second
)

// Config configures one RPC server instance.
type Config struct {
	Addr         string
	MaxGasInvoke int64
	UserAgent    string
	Log          *zap.Logger
}

// Server answers JSON-RPC 2.0 requests over HTTP, and (via websocket)
// lets a client subscribe to block/transaction/notification feeds.
type Server struct {
	cfg     Config
	chain   Ledger
	sub     Submitter
	net     Network
	log     *zap.Logger
	http    *http.Server
	upgrade websocket.Upgrader

	subs   *subscriptionHub
	quit   chan struct{}
	quitOnce sync.Once
}

// New builds a Server bound to chain's read surface and sub's fee
// policy; it does not start listening until Start is called.
func New(cfg Config, chain Ledger, sub Submitter, net Network) *Server {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "/neonode:" + userAgentVersion + "/"
	}
	s := &Server{
		cfg:       cfg,
		chain:     chain,
		sub:       sub,
		net:       net,
		log:       log,
		upgrade:   websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(*http.Request) bool { return true }},
		subs:      newSubscriptionHub(),
		quit:      make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHTTP)
	mux.HandleFunc("/ws", s.handleWS)
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	return s
}

// Start begins serving HTTP; it returns once the listener goroutine is
// spawned, not once it exits.
func (s *Server) Start() error {
	blocks := make(chan *block.Block, 64)
	s.chain.Subscribe(blocks)
	go s.blockFeedLoop(blocks)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("rpc: server exited", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown stops accepting connections and drops all subscribers.
func (s *Server) Shutdown() {
	s.quitOnce.Do(func() { close(s.quit) })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.http.Shutdown(ctx)
	s.subs.closeAll()
}

func (s *Server) blockFeedLoop(ch chan *block.Block) {
	for {
		select {
		case <-s.quit:
			s.chain.Unsubscribe(ch)
			return
		case b, ok := <-ch:
			if !ok {
				return
			}
			s.subs.publishBlock(b)
		}
	}
}

// blockHashByIndex answers getblock/getblockhash by height, via the
// chain's own GetHeaderHash (§6) rather than a local copy of the same
// index network.Server also no longer keeps (§4.8).
func (s *Server) blockHashByIndex(idx uint32) (util.Uint256, bool) {
	h, err := s.chain.GetHeaderHash(idx)
	return h, err == nil
}

// handleHTTP is the JSON-RPC 2.0 entry point: one request object in,
// one response object out (batching is not supported, matching the
// boundary-only scope, §1).
func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST is supported", http.StatusMethodNotAllowed)
		return
	}
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, newError(nil, neorpc.NewInvalidRequestError(err.Error())))
		return
	}
	resp := s.dispatch(&req)
	code := http.StatusOK
	if resp.Error != nil {
		code = resp.Error.HTTPCode
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// dispatch routes a decoded request to its handler, converting panics
// from malformed handler logic into -32603 rather than crashing the
// server (the teacher's pattern of never letting one bad request take
// the whole node down with it).
func (s *Server) dispatch(req *request) (resp *response) {
	defer func() {
		if r := recover(); r != nil {
			resp = newError(req.ID, neorpc.NewInternalServerError("internal panic handling request"))
		}
	}()
	h, ok := methods[req.Method]
	if !ok {
		return newError(req.ID, neorpc.NewMethodNotFoundError(req.Method))
	}
	result, rpcErr := h(s, req)
	if rpcErr != nil {
		return newError(req.ID, rpcErr)
	}
	return newResult(req.ID, result)
}
