package mempool

import "errors"

var (
	// ErrConflict is returned by Add for a duplicate hash.
	ErrConflict = errors.New("mempool: transaction is already in the pool")
	// ErrOOM reports a full pool that a new transaction cannot outbid.
	// Add never returns it: on overflow Add evicts the lowest-priority
	// transaction instead.
	ErrOOM = errors.New("mempool: out of memory, transaction fee too low to evict anything")
	// ErrInsufficientFunds is the result of the pool's fee check when the
	// network fee is below FeePerByte times the size, or the sender's
	// balance can't cover SystemFee plus NetworkFee. Add does not return
	// it: a transaction failing the check goes to the Unverified partition.
	ErrInsufficientFunds = errors.New("mempool: insufficient GAS balance")
	// ErrConflictsAttribute is returned by Add when the new transaction
	// loses a conflict-replacement contest to one already verified.
	ErrConflictsAttribute = errors.New("mempool: outbid by a conflicting transaction already in the pool")
)

// RemovalReason explains why a transaction left the pool, for the
// TransactionRemoved event (§4.7).
type RemovalReason byte

// Removal reasons.
const (
	ReasonIncluded RemovalReason = iota
	ReasonReplaced
	ReasonLowPriority
	ReasonExpired
	ReasonPolicyFail
)

func (r RemovalReason) String() string {
	switch r {
	case ReasonIncluded:
		return "Included"
	case ReasonReplaced:
		return "Replaced"
	case ReasonLowPriority:
		return "LowPriority"
	case ReasonExpired:
		return "Expired"
	case ReasonPolicyFail:
		return "PolicyFail"
	default:
		return "Unknown"
	}
}
