// Package core wires together the storage, dao, mempool, interop and
// native-contract layers into the block validation and persistence
// pipeline (§4.8): header/body checks, per-transaction execution, and
// atomic commit. The OnPersist/PostPersist triggers are not run.
package core

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/noriachain/neonode/pkg/config"
	"github.com/noriachain/neonode/pkg/core/block"
	"github.com/noriachain/neonode/pkg/core/dao"
	"github.com/noriachain/neonode/pkg/core/interop"
	"github.com/noriachain/neonode/pkg/core/mempool"
	"github.com/noriachain/neonode/pkg/core/native"
	"github.com/noriachain/neonode/pkg/core/state"
	"github.com/noriachain/neonode/pkg/core/storage"
	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/smartcontract/trigger"
	"github.com/noriachain/neonode/pkg/util"
	"go.uber.org/zap"
)

// versionMarker is the on-disk schema tag PutVersion/GetVersion guard
// against running this node over an incompatible store.
const versionMarker = "neonode-0"

// Blockchain owns the single exclusive write path onto a dao.Simple:
// it is the only component allowed to call the dao's mutating methods
// directly, everyone else (RPC, consensus, the P2P layer) goes through
// AddBlock/mempool.
type Blockchain struct {
	log    *zap.Logger
	config config.ProtocolConfiguration

	mu    sync.RWMutex
	store storage.Store
	dao   *dao.Simple

	mp         *mempool.Pool
	natives    map[util.Uint160]interop.NativeContract
	nativeMeta map[util.Uint160]native.Metadata
	ledger     *native.Ledger

	heightIdx map[uint32]util.Uint256

	subsMu sync.RWMutex
	subs   []chan *block.Block
}

// New wires a Blockchain over store, bootstrapping a genesis block if
// the store is empty.
func New(cfg config.ProtocolConfiguration, store storage.Store, log *zap.Logger) (*Blockchain, error) {
	if log == nil {
		log = zap.NewNop()
	}
	d := dao.NewSimple(store, cfg.StateRootInHeader, cfg.P2PSigExtensions)
	ledger := native.NewLedger(d)
	bc := &Blockchain{
		log:        log,
		config:     cfg,
		store:      store,
		dao:        d,
		mp:         mempool.New(cfg.MemPoolSize, 0, cfg.P2PSigExtensions),
		ledger:     ledger,
		natives:    map[util.Uint160]interop.NativeContract{ledger.Metadata().Hash: ledger},
		nativeMeta: map[util.Uint160]native.Metadata{ledger.Metadata().Hash: ledger.Metadata()},
		heightIdx:  make(map[uint32]util.Uint256),
	}

	if v, err := d.GetVersion(); err != nil {
		if err := bc.bootstrap(); err != nil {
			return nil, fmt.Errorf("core: bootstrapping genesis: %w", err)
		}
	} else if v.Value != versionMarker {
		return nil, fmt.Errorf("core: store version %q, want %q", v.Value, versionMarker)
	}
	bc.rebuildHeightIndex()
	return bc, nil
}

// rebuildHeightIndex walks PrevHash links from the tip to populate
// heightIdx at startup; AddBlock keeps it current afterward. The store
// itself carries no height-indexed lookup (§4.8 note), so this is the
// one place that pays the walk instead of every caller (chaindump,
// network.Server, rpc/server) keeping its own copy.
func (bc *Blockchain) rebuildHeightIndex() {
	h, err := bc.dao.GetCurrentBlockHash()
	if err != nil {
		return
	}
	for {
		hdr, err := bc.dao.GetBlock(h)
		if err != nil {
			return
		}
		bc.heightIdx[hdr.Index] = h
		if hdr.Index == 0 {
			return
		}
		h = hdr.PrevHash
	}
}

// GetHeaderHash resolves a block's hash from its height.
func (bc *Blockchain) GetHeaderHash(index uint32) (util.Uint256, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	h, ok := bc.heightIdx[index]
	if !ok {
		return util.Uint256{}, fmt.Errorf("core: no block at height %d", index)
	}
	return h, nil
}

func (bc *Blockchain) bootstrap() error {
	genesis, err := createGenesisBlock(bc.config)
	if err != nil {
		return err
	}
	if err := bc.dao.PutVersion(dao.Version{Value: versionMarker}); err != nil {
		return err
	}
	if err := bc.dao.StoreAsBlock(genesis, nil); err != nil {
		return err
	}
	if err := bc.dao.StoreAsCurrentBlock(genesis, nil); err != nil {
		return err
	}
	for i, tx := range genesis.Transactions {
		if err := bc.dao.StoreAsTransaction(tx, genesis.Index, nil); err != nil {
			return fmt.Errorf("core: storing genesis transaction %d: %w", i, err)
		}
	}
	bc.log.Info("genesis block persisted", zap.Stringer("hash", genesis.Hash()))
	return nil
}

// BlockHeight returns the tip's index.
func (bc *Blockchain) BlockHeight() uint32 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	h, _ := bc.dao.GetCurrentBlockHeight()
	return h
}

// CurrentBlockHash returns the tip's hash.
func (bc *Blockchain) CurrentBlockHash() util.Uint256 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	h, _ := bc.dao.GetCurrentBlockHash()
	return h
}

// GetBlock retrieves a block by hash.
func (bc *Blockchain) GetBlock(hash util.Uint256) (*block.Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.dao.GetBlock(hash)
}

// GetHeader retrieves a block's header by hash; this node keeps no
// header-only index separate from full blocks.
func (bc *Blockchain) GetHeader(hash util.Uint256) (*block.Header, error) {
	b, err := bc.GetBlock(hash)
	if err != nil {
		return nil, err
	}
	return &b.Header, nil
}

// GetTransaction retrieves a transaction and the index of the block
// that included it.
func (bc *Blockchain) GetTransaction(hash util.Uint256) (*transaction.Transaction, uint32, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.dao.GetTransaction(hash)
}

// Mempool exposes the pending-transaction pool.
func (bc *Blockchain) Mempool() *mempool.Pool { return bc.mp }

// GetAppExecResults returns the persisted execution log for a block or
// transaction hash under the given trigger, as recorded by AddBlock.
func (bc *Blockchain) GetAppExecResults(hash util.Uint256, trig trigger.Type) ([]state.AppExecResult, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.dao.GetAppExecResults(hash, trig)
}

// GetStorageItem reads one (contract, key) storage cell, using the same
// script-hash-derived partition id the interop layer writes under.
func (bc *Blockchain) GetStorageItem(contract util.Uint160, key []byte) state.StorageItem {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.dao.GetStorageItem(interop.ScriptHashID(contract.BytesBE()), key)
}

// Invoke runs script under the Application trigger and gasLimit,
// returning its execution record without persisting anything to a
// block. RPC's invokefunction/invokescript are the only callers (§6);
// since those are read-only queries, script execution runs over a
// throwaway StoreCache snapshot of the chain (§4.5) that is never
// committed, so any storage writes the script makes are discarded the
// moment this call returns rather than landing in the live chain state.
func (bc *Blockchain) Invoke(script []byte, sender util.Uint160, gasLimit int64) *state.Execution {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	height, _ := bc.dao.GetCurrentBlockHeight()
	snap := storage.NewStoreCache(bc.store)
	snapDAO := dao.NewSimple(snap, bc.config.StateRootInHeader, bc.config.P2PSigExtensions)
	ic := interop.NewContext(snapDAO, trigger.Application, invokeContainer{sender: sender}, height, gasLimit)
	ic.Natives = bc.natives
	ic.VM.LoadScriptWithFlags(script, sender.BytesBE(), 0xFF)
	ic.VM.Run()
	res := &state.Execution{
		Trigger:     trigger.Application,
		VMState:     ic.VM.State().String(),
		GasConsumed: ic.VM.GasConsumed(),
		Events:      ic.Notifications,
	}
	for _, el := range ic.VM.Estack().Items() {
		res.Stack = append(res.Stack, el.Item())
	}
	if err := ic.VM.FaultException(); err != nil {
		res.FaultException = err.Error()
	}
	return res
}

// invokeContainer satisfies interop.Container for an ad hoc RPC
// invocation, which has no transaction of its own.
type invokeContainer struct {
	sender util.Uint160
}

func (c invokeContainer) Hash() util.Uint256 { return util.Uint256{} }

// GetNativeContractMetadata looks up a registered native contract's
// identity by script hash; this node has no general contract-deployment
// registry (§C), so only native contracts (currently just Ledger)
// resolve. getcontractstate answers any other hash with an Invalid
// Params "unknown contract" error.
func (bc *Blockchain) GetNativeContractMetadata(hash util.Uint160) (native.Metadata, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	m, ok := bc.nativeMeta[hash]
	return m, ok
}

// GetConfig returns the protocol parameters this chain runs under.
func (bc *Blockchain) GetConfig() config.ProtocolConfiguration { return bc.config }

// Subscribe registers ch to receive every block this chain persists.
// Sends are non-blocking: a slow subscriber misses blocks rather than
// stalling the chain.
func (bc *Blockchain) Subscribe(ch chan *block.Block) {
	bc.subsMu.Lock()
	defer bc.subsMu.Unlock()
	bc.subs = append(bc.subs, ch)
}

// Unsubscribe removes ch, added by a prior Subscribe call.
func (bc *Blockchain) Unsubscribe(ch chan *block.Block) {
	bc.subsMu.Lock()
	defer bc.subsMu.Unlock()
	for i, c := range bc.subs {
		if c == ch {
			bc.subs = append(bc.subs[:i], bc.subs[i+1:]...)
			return
		}
	}
}

func (bc *Blockchain) notifyPersisted(b *block.Block) {
	bc.subsMu.RLock()
	defer bc.subsMu.RUnlock()
	for _, ch := range bc.subs {
		select {
		case ch <- b:
		default:
		}
	}
}

// AddBlock runs the full validation and persistence pipeline (§4.8)
// against b. It acquires the chain's exclusive write lock for its
// entire duration, so re-entry from concurrent callers is safe by
// construction. The whole block body runs against a child StoreCache
// (§4.5) layered over bc.store and is flushed to bc.store in exactly one
// Commit at the very end, so failure at any step - header/body
// verification, a transaction's state-dependent checks, or persisting
// the block/tip records - aborts with bc.store completely untouched
// (no partial commit). Each transaction additionally gets its own child
// StoreCache nested inside the block cache: a HALT folds the
// transaction's storage writes into the block cache via its own Commit,
// while a FAULT simply drops that child cache, discarding the
// transaction's state mutations while still recording the transaction
// and its (faulted) execution log. No fee is deducted for any
// transaction, whether it HALTs or FAULTs.
func (bc *Blockchain) AddBlock(b *block.Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	tipHash, err := bc.dao.GetCurrentBlockHash()
	if err != nil {
		return fmt.Errorf("core: reading tip: %w", err)
	}
	tip, err := bc.dao.GetBlock(tipHash)
	if err != nil {
		return fmt.Errorf("core: loading tip block: %w", err)
	}

	if err := bc.verifyHeader(&b.Header, &tip.Header); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	if err := bc.verifyBody(b); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}

	height := b.Index

	blockCache := storage.NewStoreCache(bc.store)
	blockDAO := dao.NewSimple(blockCache, bc.config.StateRootInHeader, bc.config.P2PSigExtensions)

	// OnPersist/PostPersist triggers exist to let native contracts react
	// to a block landing (GAS emission, committee rotation, and so on);
	// the only native contract registered here is the read-only Ledger,
	// which has nothing to do at either hook, so neither trigger is fired.
	var appLogs []state.AppExecResult
	for _, tx := range b.Transactions {
		if err := verifyTxStateDependent(blockDAO, tx, height, bc.config.MaxValidUntilBlockIncrement); err != nil {
			return fmt.Errorf("core: transaction %s failed verification: %w", tx.Hash().StringLE(), err)
		}

		txCache := blockCache.CreateSnapshot()
		txDAO := dao.NewSimple(txCache, bc.config.StateRootInHeader, bc.config.P2PSigExtensions)

		ic := interop.NewContext(txDAO, trigger.Application, tx, height, tx.SystemFee)
		ic.Natives = bc.natives
		ic.VM.LoadScriptWithFlags(tx.Script, tx.Sender().BytesBE(), 0xFF)
		ic.VM.Run()

		result := state.Execution{
			Trigger:     trigger.Application,
			VMState:     ic.VM.State().String(),
			GasConsumed: ic.VM.GasConsumed(),
			Events:      ic.Notifications,
		}
		if err := ic.VM.FaultException(); err != nil {
			result.FaultException = err.Error()
			// FAULT: txCache's tracked storage mutations are discarded by
			// never committing it; the transaction and its execution log
			// are still recorded below, against blockDAO.
		} else if _, err := txCache.Commit(); err != nil {
			return fmt.Errorf("core: folding transaction %s storage writes: %w", tx.Hash().StringLE(), err)
		}
		appLogs = append(appLogs, state.AppExecResult{Container: tx.Hash(), Execution: result})

		if err := blockDAO.StoreAsTransaction(tx, height, nil); err != nil {
			return fmt.Errorf("core: persisting transaction %s: %w", tx.Hash().StringLE(), err)
		}
		bc.mp.Remove(tx.Hash(), bc)
	}

	for _, rec := range appLogs {
		if err := blockDAO.AppendAppExecResult(&rec, nil); err != nil {
			return fmt.Errorf("core: persisting execution log: %w", err)
		}
	}

	if err := blockDAO.StoreAsBlock(b, nil); err != nil {
		return fmt.Errorf("core: persisting block: %w", err)
	}
	if err := blockDAO.StoreAsCurrentBlock(b, nil); err != nil {
		return fmt.Errorf("core: advancing tip: %w", err)
	}

	if _, err := blockCache.Commit(); err != nil {
		return fmt.Errorf("core: committing block: %w", err)
	}

	bc.heightIdx[b.Index] = b.Hash()

	bc.log.Info("block persisted",
		zap.Uint32("index", b.Index),
		zap.Stringer("hash", b.Hash()),
		zap.Int("txs", len(b.Transactions)))
	bc.notifyPersisted(b)
	return nil
}

// verifyTxStateDependent implements §4.8 step 5a: the checks that need
// the chain's current height and committed transaction set, as
// opposed to verifyTxStateIndependent's pure structural checks.
func verifyTxStateDependent(d *dao.Simple, tx *transaction.Transaction, height uint32, maxIncrement uint32) error {
	if tx.ValidUntilBlock <= height {
		return errors.New("core: transaction ValidUntilBlock already passed")
	}
	if tx.ValidUntilBlock > height+maxIncrement {
		return errors.New("core: transaction ValidUntilBlock too far in the future")
	}
	if err := d.HasTransaction(tx.Hash()); err != nil {
		return err
	}
	return nil
}

// Feer implementation, handing the mempool just enough chain-state
// awareness to price and order pending transactions (§4.7).

// GetBaseExecFee is a fixed per-instruction price; no Policy native
// contract exists yet to make it governance-adjustable.
func (bc *Blockchain) GetBaseExecFee() int64 { return 30 }

// FeePerByte is a fixed network fee rate, for the same reason.
func (bc *Blockchain) FeePerByte() int64 { return 1000 }

// GetUtilityTokenBalance always reports a balance of zero: no GAS
// native contract exists to track spendable balances, so the mempool's
// balance check fails for every transaction with a nonzero SystemFee or
// NetworkFee, and such transactions are kept in the Unverified
// partition. Noted as a scope reduction rather than a faithful economic
// model.
func (bc *Blockchain) GetUtilityTokenBalance(util.Uint160) *big.Int { return big.NewInt(0) }

// P2PSigExtensionsEnabled implements mempool.Feer.
func (bc *Blockchain) P2PSigExtensionsEnabled() bool { return bc.config.P2PSigExtensions }
