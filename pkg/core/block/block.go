package block

import (
	"errors"
	"math"

	"github.com/noriachain/neonode/pkg/config/netmode"
	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/crypto/hash"
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/util"
)

// MaxTransactionsPerBlock bounds a block's body length (§4.8 step 2).
const MaxTransactionsPerBlock = math.MaxUint16

// ErrMaxContentsPerBlock is returned when a decoded body exceeds
// MaxTransactionsPerBlock.
var ErrMaxContentsPerBlock = errors.New("block: transaction count exceeds the maximum per block")

var errDuplicateTx = errors.New("block: duplicate transaction hash")

// Block is a Header plus its ordered, distinct-hash transaction list.
type Block struct {
	Header
	Transactions []*transaction.Transaction
}

// New creates a blank block tied to the given network.
func New(network netmode.Magic, stateRootEnabled bool) *Block {
	return &Block{
		Header: Header{
			Network:          network,
			Version:          VersionInitial,
			StateRootEnabled: stateRootEnabled,
		},
	}
}

// ComputeMerkleRoot recomputes the Merkle root over this block's
// current transaction list.
func (b *Block) ComputeMerkleRoot() util.Uint256 {
	hashes := make([]util.Uint256, len(b.Transactions))
	for i, tx := range b.Transactions {
		hashes[i] = tx.Hash()
	}
	return hash.CalcMerkleRoot(hashes)
}

// RebuildMerkleRoot recomputes and overwrites MerkleRoot.
func (b *Block) RebuildMerkleRoot() {
	b.MerkleRoot = b.ComputeMerkleRoot()
}

// EncodeBinary implements io.Serializable.
func (b *Block) EncodeBinary(w *vio.BinWriter) {
	b.Header.EncodeBinary(w)
	w.WriteVarUint(uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		tx.EncodeBinary(w)
	}
}

// DecodeBinary implements io.Serializable.
func (b *Block) DecodeBinary(r *vio.BinReader) {
	b.Header.DecodeBinary(r)
	n := r.ReadVarUint()
	if r.Err != nil {
		return
	}
	if n > MaxTransactionsPerBlock {
		r.Err = ErrMaxContentsPerBlock
		return
	}
	seen := make(map[util.Uint256]bool, n)
	txs := make([]*transaction.Transaction, n)
	for i := range txs {
		tx := &transaction.Transaction{}
		tx.DecodeBinary(r)
		if r.Err != nil {
			return
		}
		h := tx.Hash()
		if seen[h] {
			r.Err = errDuplicateTx
			return
		}
		seen[h] = true
		txs[i] = tx
	}
	b.Transactions = txs
}
