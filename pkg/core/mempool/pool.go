package mempool

import (
	"sort"
	"sync"
	"time"

	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/util"
)

// DefaultExpiry is the lifetime constant for unverified transactions. The
// pool does not enforce it: RemoveStale drops exactly the transactions its
// isValid callback rejects and reports them with ReasonExpired (§4.7).
const DefaultExpiry = 30 * time.Minute

// EventType discriminates a pool observer notification.
type EventType byte

// Observer event kinds.
const (
	EventAdded EventType = iota
	EventRemoved
)

// Event is delivered to every channel registered via
// SubscribeForTransactions.
type Event struct {
	Type   EventType
	Tx     *transaction.Transaction
	Reason RemovalReason
}

type item struct {
	tx         *transaction.Transaction
	feePerByte int64
	blockStamp uint32
	addedAt    time.Time
}

// items orders pooled transactions by priority: Less puts the lowest
// priority first, so the reverse of its order is fee_per_byte-DESC,
// fee-DESC, hash-ASC, the order block assembly packs transactions by
// (§4.7).
type items []*item

func (it items) Len() int      { return len(it) }
func (it items) Swap(i, j int) { it[i], it[j] = it[j], it[i] }
func (it items) Less(i, j int) bool {
	if it[i].feePerByte != it[j].feePerByte {
		return it[i].feePerByte < it[j].feePerByte
	}
	if it[i].tx.NetworkFee != it[j].tx.NetworkFee {
		return it[i].tx.NetworkFee < it[j].tx.NetworkFee
	}
	return it[i].tx.Hash().CompareTo(it[j].tx.Hash()) > 0
}

// Pool is the node's transaction memory pool: two fee-ordered
// partitions (verified, unverified) plus a conflict index.
type Pool struct {
	mu sync.RWMutex

	capacity int

	verifiedMap  map[util.Uint256]*item
	verifiedTxes items

	unverifiedMap  map[util.Uint256]*item
	unverifiedTxes items

	// conflicts maps a hash named by some verified tx's Conflicts
	// attribute to the hash of the tx that named it.
	conflicts map[util.Uint256]util.Uint256

	resendThreshold uint32
	resendFunc      func(tx *transaction.Transaction, data interface{})

	subscribers   []chan Event
	subscribersMu sync.RWMutex
}

// New creates a pool holding at most capacity transactions, counted
// across the verified and unverified partitions together. The pool keeps
// neither unverifiedCapacity nor p2pSigExtensionsEnabled: the unverified
// partition has no bound of its own, and fee floors come from the Feer
// passed to Add.
func New(capacity int, unverifiedCapacity int, p2pSigExtensionsEnabled bool) *Pool {
	if unverifiedCapacity <= 0 {
		unverifiedCapacity = capacity
	}
	return &Pool{
		capacity:      capacity,
		verifiedMap:   make(map[util.Uint256]*item),
		unverifiedMap: make(map[util.Uint256]*item),
		conflicts:     make(map[util.Uint256]util.Uint256),
	}
}

// Count returns the total number of transactions held, across both
// partitions.
func (mp *Pool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return len(mp.verifiedMap) + len(mp.unverifiedMap)
}

// ContainsKey reports whether hash is present in either partition.
func (mp *Pool) ContainsKey(hash util.Uint256) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	if _, ok := mp.verifiedMap[hash]; ok {
		return true
	}
	_, ok := mp.unverifiedMap[hash]
	return ok
}

// TryGetValue fetches a pooled transaction by hash.
func (mp *Pool) TryGetValue(hash util.Uint256) (*transaction.Transaction, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	if it, ok := mp.verifiedMap[hash]; ok {
		return it.tx, true
	}
	if it, ok := mp.unverifiedMap[hash]; ok {
		return it.tx, true
	}
	return nil, false
}

func txFeePerByte(tx *transaction.Transaction) int64 {
	size := tx.Size()
	if size == 0 {
		return 0
	}
	return tx.NetworkFee / int64(size)
}

// Add performs StateDependent admission (§4.6/§4.7): rejects a
// duplicate hash, rejects if outbid in a conflict contest, verifies
// fee/balance against feer, and inserts into the Verified partition on
// success. On capacity breach it evicts the lowest-priority item
// (unverified first, then verified) and emits ReasonLowPriority.
func (mp *Pool) Add(tx *transaction.Transaction, feer Feer) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	hash := tx.Hash()
	if _, ok := mp.verifiedMap[hash]; ok {
		return ErrConflict
	}
	if _, ok := mp.unverifiedMap[hash]; ok {
		return ErrConflict
	}

	fpb := txFeePerByte(tx)

	// Someone else's conflict declaration already names this hash: if
	// that declarer outbids us, we lose the contest before we even start.
	if conflictingTx, ok := mp.conflicts[hash]; ok {
		if declarer := mp.verifiedMap[conflictingTx]; declarer != nil && declarer.feePerByte >= fpb {
			return ErrConflictsAttribute
		}
	}

	// This transaction names an existing verified tx as a conflict: it
	// must outbid it to be admitted.
	for _, a := range tx.GetAttributes(transaction.ConflictsT) {
		c := a.Value.(*transaction.Conflicts)
		if victim, ok := mp.verifiedMap[c.Hash]; ok && victim.feePerByte >= fpb {
			return ErrConflictsAttribute
		}
	}

	it := &item{tx: tx, feePerByte: fpb, blockStamp: feer.BlockHeight(), addedAt: time.Now()}

	if err := mp.verifyFee(tx, feer); err != nil {
		mp.insertUnverified(it)
		mp.evictIfNeeded()
		mp.notify(Event{Type: EventAdded, Tx: tx})
		return nil
	}

	mp.resolveConflicts(tx, fpb)
	mp.insertVerified(it)
	mp.evictIfNeeded()
	mp.notify(Event{Type: EventAdded, Tx: tx})
	return nil
}

func (mp *Pool) verifyFee(tx *transaction.Transaction, feer Feer) error {
	if tx.NetworkFee < feer.FeePerByte()*int64(tx.Size()) {
		return ErrInsufficientFunds
	}
	balance := feer.GetUtilityTokenBalance(tx.Sender())
	if balance == nil || balance.Int64() < tx.SystemFee+tx.NetworkFee {
		return ErrInsufficientFunds
	}
	return nil
}

// resolveConflicts evicts any verified transaction this one's Conflicts
// attributes name, recording the replacement direction for future Adds.
func (mp *Pool) resolveConflicts(tx *transaction.Transaction, fpb int64) {
	for _, a := range tx.GetAttributes(transaction.ConflictsT) {
		c := a.Value.(*transaction.Conflicts)
		mp.conflicts[c.Hash] = tx.Hash()
		if existing, ok := mp.verifiedMap[c.Hash]; ok && existing.feePerByte < fpb {
			mp.removeFromVerified(c.Hash)
			mp.notify(Event{Type: EventRemoved, Tx: existing.tx, Reason: ReasonReplaced})
		}
	}
}

func (mp *Pool) insertVerified(it *item) {
	mp.verifiedMap[it.tx.Hash()] = it
	idx := sort.Search(len(mp.verifiedTxes), func(i int) bool { return items{it, mp.verifiedTxes[i]}.Less(0, 1) })
	mp.verifiedTxes = append(mp.verifiedTxes, nil)
	copy(mp.verifiedTxes[idx+1:], mp.verifiedTxes[idx:])
	mp.verifiedTxes[idx] = it
}

func (mp *Pool) insertUnverified(it *item) {
	mp.unverifiedMap[it.tx.Hash()] = it
	mp.unverifiedTxes = append(mp.unverifiedTxes, it)
	sort.Sort(sort.Reverse(mp.unverifiedTxes))
}

func (mp *Pool) removeFromVerified(hash util.Uint256) {
	delete(mp.verifiedMap, hash)
	for i, it := range mp.verifiedTxes {
		if it.tx.Hash().Equals(hash) {
			mp.verifiedTxes = append(mp.verifiedTxes[:i], mp.verifiedTxes[i+1:]...)
			break
		}
	}
}

func (mp *Pool) removeFromUnverified(hash util.Uint256) {
	delete(mp.unverifiedMap, hash)
	for i, it := range mp.unverifiedTxes {
		if it.tx.Hash().Equals(hash) {
			mp.unverifiedTxes = append(mp.unverifiedTxes[:i], mp.unverifiedTxes[i+1:]...)
			break
		}
	}
}

// evictIfNeeded drops the lowest-priority item - from Unverified first,
// then Verified - while the pool exceeds capacity.
func (mp *Pool) evictIfNeeded() {
	for len(mp.verifiedMap)+len(mp.unverifiedMap) > mp.capacity {
		if len(mp.unverifiedTxes) > 0 {
			worst := mp.unverifiedTxes[len(mp.unverifiedTxes)-1]
			mp.removeFromUnverified(worst.tx.Hash())
			mp.notify(Event{Type: EventRemoved, Tx: worst.tx, Reason: ReasonLowPriority})
			continue
		}
		if len(mp.verifiedTxes) > 0 {
			worst := mp.verifiedTxes[0]
			mp.removeFromVerified(worst.tx.Hash())
			mp.notify(Event{Type: EventRemoved, Tx: worst.tx, Reason: ReasonLowPriority})
			continue
		}
		return
	}
}

// Remove drops hash unconditionally - used both for direct eviction and
// to drain a persisted block's transactions from the pool (§4.8 step 8).
func (mp *Pool) Remove(hash util.Uint256, feer Feer) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if it, ok := mp.verifiedMap[hash]; ok {
		mp.removeFromVerified(hash)
		mp.notify(Event{Type: EventRemoved, Tx: it.tx, Reason: ReasonIncluded})
		return
	}
	if it, ok := mp.unverifiedMap[hash]; ok {
		mp.removeFromUnverified(hash)
		mp.notify(Event{Type: EventRemoved, Tx: it.tx, Reason: ReasonIncluded})
	}
}

// RemoveStale drops every pooled transaction isValid rejects (age-out,
// became invalid against current state) and, for a resend threshold set
// via SetResendThreshold, re-announces transactions still valid every
// resendThreshold blocks since they were added.
func (mp *Pool) RemoveStale(isValid func(*transaction.Transaction) bool, feer Feer) {
	mp.mu.Lock()
	var toResend []*transaction.Transaction
	var toRemove []util.Uint256
	var removedTxes []*transaction.Transaction

	check := func(it *item) {
		if !isValid(it.tx) {
			toRemove = append(toRemove, it.tx.Hash())
			removedTxes = append(removedTxes, it.tx)
			return
		}
		if mp.resendThreshold != 0 {
			diff := feer.BlockHeight() - it.blockStamp
			if diff != 0 && diff%mp.resendThreshold == 0 {
				toResend = append(toResend, it.tx)
			}
		}
	}
	for _, it := range mp.verifiedMap {
		check(it)
	}
	for _, it := range mp.unverifiedMap {
		check(it)
	}
	for _, h := range toRemove {
		mp.removeFromVerified(h)
		mp.removeFromUnverified(h)
	}
	for _, tx := range removedTxes {
		mp.notify(Event{Type: EventRemoved, Tx: tx, Reason: ReasonExpired})
	}
	resendFunc := mp.resendFunc
	mp.mu.Unlock()

	if resendFunc != nil {
		for _, tx := range toResend {
			resendFunc(tx, nil)
		}
	}
}

// SetResendThreshold configures RemoveStale to call f every n blocks a
// still-valid transaction has sat in the pool.
func (mp *Pool) SetResendThreshold(n uint32, f func(tx *transaction.Transaction, data interface{})) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.resendThreshold = n
	mp.resendFunc = f
}

// GetVerifiedTransactions returns a snapshot of the Verified partition
// in block-packing order (highest priority first).
func (mp *Pool) GetVerifiedTransactions() []*transaction.Transaction {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	out := make([]*transaction.Transaction, len(mp.verifiedTxes))
	for i := range mp.verifiedTxes {
		out[len(out)-1-i] = mp.verifiedTxes[i].tx
	}
	return out
}

// SubscribeForTransactions registers ch to receive Added/Removed
// events; the caller owns ch and should drain it promptly.
func (mp *Pool) SubscribeForTransactions(ch chan Event) {
	mp.subscribersMu.Lock()
	defer mp.subscribersMu.Unlock()
	mp.subscribers = append(mp.subscribers, ch)
}

// UnsubscribeFromTransactions removes a previously registered channel.
func (mp *Pool) UnsubscribeFromTransactions(ch chan Event) {
	mp.subscribersMu.Lock()
	defer mp.subscribersMu.Unlock()
	for i, s := range mp.subscribers {
		if s == ch {
			mp.subscribers = append(mp.subscribers[:i], mp.subscribers[i+1:]...)
			return
		}
	}
}

func (mp *Pool) notify(ev Event) {
	mp.subscribersMu.RLock()
	defer mp.subscribersMu.RUnlock()
	for _, ch := range mp.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
