// Package block implements the N3 block and header layout: the
// hashable fields extending the header chain, the witness proving
// validator quorum, and the transaction body (§3, §4.8).
package block

import (
	"errors"

	"github.com/noriachain/neonode/pkg/config/netmode"
	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/crypto/hash"
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/util"
)

// VersionInitial is the only block version this implementation accepts.
const VersionInitial uint32 = 0

var errWrongWitnessCount = errors.New("block: header must carry exactly one witness")

// Header holds everything that extends the header chain and commits to
// a block's body without containing it: the predecessor link, the
// Merkle root over transaction hashes, and the quorum witness.
type Header struct {
	Network netmode.Magic

	Version       uint32
	PrevHash      util.Uint256
	MerkleRoot    util.Uint256
	Timestamp     uint64
	Nonce         uint64
	Index         uint32
	PrimaryIndex  byte
	NextConsensus util.Uint160

	// Script is the witness proving quorum signature over the
	// previous header's NextConsensus multisig; it is not part of the
	// hashable field set.
	Script transaction.Witness

	StateRootEnabled bool
	PrevStateRoot    util.Uint256

	hash      util.Uint256
	hashValid bool
}

// Hash is the SHA-256 of the hashable fields, cached after first
// computation; re-decode the header to pick up further mutations.
func (h *Header) Hash() util.Uint256 {
	if !h.hashValid {
		h.createHash()
	}
	return h.hash
}

func (h *Header) createHash() {
	buf := vio.NewBufBinWriter()
	h.encodeHashableFields(buf)
	h.hash = hash.Sha256(buf.Bytes())
	h.hashValid = true
}

func (h *Header) encodeHashableFields(w *vio.BinWriter) {
	w.WriteU32LE(h.Version)
	w.WriteB(h.PrevHash[:])
	w.WriteB(h.MerkleRoot[:])
	w.WriteU64LE(h.Timestamp)
	w.WriteU64LE(h.Nonce)
	w.WriteU32LE(h.Index)
	w.WriteU8(h.PrimaryIndex)
	w.WriteB(h.NextConsensus[:])
	if h.StateRootEnabled {
		w.WriteB(h.PrevStateRoot[:])
	}
}

// EncodeBinary implements io.Serializable.
func (h *Header) EncodeBinary(w *vio.BinWriter) {
	h.encodeHashableFields(w)
	w.WriteVarUint(1)
	h.Script.EncodeBinary(w)
}

// DecodeBinary implements io.Serializable.
func (h *Header) DecodeBinary(r *vio.BinReader) {
	h.Version = r.ReadU32LE()
	copy(h.PrevHash[:], r.ReadB(util.Uint256Size))
	copy(h.MerkleRoot[:], r.ReadB(util.Uint256Size))
	h.Timestamp = r.ReadU64LE()
	h.Nonce = r.ReadU64LE()
	h.Index = r.ReadU32LE()
	h.PrimaryIndex = r.ReadU8()
	copy(h.NextConsensus[:], r.ReadB(util.Uint160Size))
	if h.StateRootEnabled {
		copy(h.PrevStateRoot[:], r.ReadB(util.Uint256Size))
	}
	if r.Err != nil {
		return
	}
	h.createHash()

	n := r.ReadVarUint()
	if r.Err != nil {
		return
	}
	if n != 1 {
		r.Err = errWrongWitnessCount
		return
	}
	h.Script.DecodeBinary(r)
}
