package native

import (
	"errors"
	"fmt"

	"github.com/noriachain/neonode/pkg/core/block"
	"github.com/noriachain/neonode/pkg/core/dao"
	"github.com/noriachain/neonode/pkg/core/interop"
	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/crypto/hash"
	"github.com/noriachain/neonode/pkg/util"
)

var errUnknownMethod = errors.New("native: unknown method")

// Ledger is the read-only native contract backing Ledger.* syscalls: the
// chain's current tip and historical block/transaction lookup. It never
// writes; OnPersist/PostPersist bookkeeping belongs to the blockchain
// persist pipeline, not to this contract.
type Ledger struct {
	dao *dao.Simple
}

// NewLedger wraps d for native-contract lookups.
func NewLedger(d *dao.Simple) *Ledger {
	return &Ledger{dao: d}
}

// Metadata implements Contract.
func (l *Ledger) Metadata() Metadata {
	return Metadata{Name: "Ledger", Hash: hash.Hash160([]byte("Ledger"))}
}

// RequiredGas implements Contract: every Ledger method is a plain state
// read, priced uniformly.
func (l *Ledger) RequiredGas(method string) int64 {
	return 1 << 15
}

// Invoke implements Contract, dispatching by method name.
func (l *Ledger) Invoke(c *interop.Context, method string, args []interface{}) (interface{}, error) {
	switch method {
	case "currentHash":
		return l.dao.GetCurrentBlockHash()
	case "currentIndex":
		return l.dao.GetCurrentBlockHeight()
	case "getBlock":
		return l.getBlock(args)
	case "getTransaction":
		return l.getTransaction(args)
	case "getTransactionHeight":
		return l.getTransactionHeight(args)
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownMethod, method)
	}
}

func argHash(args []interface{}, i int) (util.Uint256, error) {
	if i >= len(args) {
		return util.Uint256{}, errors.New("native: missing hash argument")
	}
	switch v := args[i].(type) {
	case util.Uint256:
		return v, nil
	case []byte:
		return util.Uint256DecodeBytesBE(v)
	default:
		return util.Uint256{}, errors.New("native: expected []byte of size 32")
	}
}

func (l *Ledger) getBlock(args []interface{}) (*block.Block, error) {
	h, err := argHash(args, 0)
	if err != nil {
		return nil, err
	}
	return l.dao.GetBlock(h)
}

func (l *Ledger) getTransaction(args []interface{}) (*transaction.Transaction, error) {
	h, err := argHash(args, 0)
	if err != nil {
		return nil, err
	}
	tx, _, err := l.dao.GetTransaction(h)
	return tx, err
}

func (l *Ledger) getTransactionHeight(args []interface{}) (int32, error) {
	h, err := argHash(args, 0)
	if err != nil {
		return -1, err
	}
	_, index, err := l.dao.GetTransaction(h)
	if err != nil {
		return -1, nil
	}
	return int32(index), nil
}
