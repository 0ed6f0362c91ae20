package consensus

import (
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/util"
)

// prepareRequest is the primary's proposal for the next block: its
// timestamp, nonce, NextConsensus commitment, and the ordered set of
// transaction hashes the block will contain (§4.9).
type prepareRequest struct {
	Timestamp         uint64
	Nonce             uint64
	NextConsensus     util.Uint160
	TransactionHashes []util.Uint256
}

// EncodeBinary implements io.Serializable.
func (p *prepareRequest) EncodeBinary(w *vio.BinWriter) {
	w.WriteU64LE(p.Timestamp)
	w.WriteU64LE(p.Nonce)
	p.NextConsensus.EncodeBinary(w)
	vio.WriteArray(w, p.TransactionHashes)
}

// maxTransactionsPerPrepareRequest bounds a decoded hash list; actual
// enforcement of the protocol's real per-block cap happens against the
// running config when a prepareRequest is accepted.
const maxTransactionsPerPrepareRequest = 1 << 16

// DecodeBinary implements io.Serializable.
func (p *prepareRequest) DecodeBinary(r *vio.BinReader) {
	p.Timestamp = r.ReadU64LE()
	p.Nonce = r.ReadU64LE()
	p.NextConsensus.DecodeBinary(r)
	p.TransactionHashes = vio.ReadArray[util.Uint256, *util.Uint256](r, maxTransactionsPerPrepareRequest)
}
