package consensus

import (
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/util"
)

const maxInvocationScriptSize = 1024

// changeViewCompact is one validator's ChangeView vote, compacted to
// just what a recovering node needs to reconstruct it: the view it
// asked to leave (the message envelope ViewNumber its signature
// covered) plus the witness proving it.
type changeViewCompact struct {
	ValidatorIndex     uint16
	OriginalViewNumber byte
	Timestamp          uint64
	InvocationScript   []byte
}

// EncodeBinary implements io.Serializable.
func (c *changeViewCompact) EncodeBinary(w *vio.BinWriter) {
	w.WriteU16LE(c.ValidatorIndex)
	w.WriteU8(c.OriginalViewNumber)
	w.WriteU64LE(c.Timestamp)
	w.WriteVarBytes(c.InvocationScript)
}

// DecodeBinary implements io.Serializable.
func (c *changeViewCompact) DecodeBinary(r *vio.BinReader) {
	c.ValidatorIndex = r.ReadU16LE()
	c.OriginalViewNumber = r.ReadU8()
	c.Timestamp = r.ReadU64LE()
	c.InvocationScript = r.ReadVarBytes(maxInvocationScriptSize)
}

// preparationCompact is one validator's prepareRequest/prepareResponse
// agreement, compacted to its witness alone: every honest preparation
// in a round signs the same PreparationHash, carried once at the
// recoveryMessage level rather than repeated per entry.
type preparationCompact struct {
	ValidatorIndex   uint16
	InvocationScript []byte
}

// EncodeBinary implements io.Serializable.
func (p *preparationCompact) EncodeBinary(w *vio.BinWriter) {
	w.WriteU16LE(p.ValidatorIndex)
	w.WriteVarBytes(p.InvocationScript)
}

// DecodeBinary implements io.Serializable.
func (p *preparationCompact) DecodeBinary(r *vio.BinReader) {
	p.ValidatorIndex = r.ReadU16LE()
	p.InvocationScript = r.ReadVarBytes(maxInvocationScriptSize)
}

// commitCompact is one validator's Commit, compacted to its view,
// signature and witness.
type commitCompact struct {
	ValidatorIndex   uint16
	ViewNumber       byte
	Signature        [commitSignatureSize]byte
	InvocationScript []byte
}

// EncodeBinary implements io.Serializable.
func (c *commitCompact) EncodeBinary(w *vio.BinWriter) {
	w.WriteU16LE(c.ValidatorIndex)
	w.WriteU8(c.ViewNumber)
	w.WriteB(c.Signature[:])
	w.WriteVarBytes(c.InvocationScript)
}

// DecodeBinary implements io.Serializable.
func (c *commitCompact) DecodeBinary(r *vio.BinReader) {
	c.ValidatorIndex = r.ReadU16LE()
	c.ViewNumber = r.ReadU8()
	copy(c.Signature[:], r.ReadB(commitSignatureSize))
	c.InvocationScript = r.ReadVarBytes(maxInvocationScriptSize)
}

const (
	maxRecoveryEntries = 1024
)

// recoveryMessage lets a node that missed part of a round catch up:
// every ChangeView a recovering node should know about, the current
// primary's prepareRequest (if the sender has it), every preparation
// witness collected so far, and every commit witness collected so far
// (§4.9). A node sends one of these in response to a RecoveryRequest.
type recoveryMessage struct {
	ChangeViews []changeViewCompact

	PrepareRequest               *prepareRequest
	PrepareRequestValidatorIndex uint16

	PreparationHash *util.Uint256
	Preparations    []preparationCompact

	Commits []commitCompact
}

// EncodeBinary implements io.Serializable.
func (m *recoveryMessage) EncodeBinary(w *vio.BinWriter) {
	w.WriteVarUint(uint64(len(m.ChangeViews)))
	for i := range m.ChangeViews {
		m.ChangeViews[i].EncodeBinary(w)
	}

	hasReq := m.PrepareRequest != nil
	w.WriteBool(hasReq)
	if hasReq {
		w.WriteU16LE(m.PrepareRequestValidatorIndex)
		m.PrepareRequest.EncodeBinary(w)
	} else if m.PreparationHash != nil {
		w.WriteBool(true)
		m.PreparationHash.EncodeBinary(w)
	} else {
		w.WriteBool(false)
	}

	w.WriteVarUint(uint64(len(m.Preparations)))
	for i := range m.Preparations {
		m.Preparations[i].EncodeBinary(w)
	}

	w.WriteVarUint(uint64(len(m.Commits)))
	for i := range m.Commits {
		m.Commits[i].EncodeBinary(w)
	}
}

// DecodeBinary implements io.Serializable.
func (m *recoveryMessage) DecodeBinary(r *vio.BinReader) {
	m.ChangeViews = vio.ReadArray[changeViewCompact, *changeViewCompact](r, maxRecoveryEntries)
	if r.Err != nil {
		return
	}

	hasReq := r.ReadBool()
	if r.Err != nil {
		return
	}
	if hasReq {
		m.PrepareRequestValidatorIndex = r.ReadU16LE()
		m.PrepareRequest = &prepareRequest{}
		m.PrepareRequest.DecodeBinary(r)
	} else {
		hasHash := r.ReadBool()
		if r.Err != nil {
			return
		}
		if hasHash {
			m.PreparationHash = &util.Uint256{}
			m.PreparationHash.DecodeBinary(r)
		}
	}
	if r.Err != nil {
		return
	}

	m.Preparations = vio.ReadArray[preparationCompact, *preparationCompact](r, maxRecoveryEntries)
	if r.Err != nil {
		return
	}
	m.Commits = vio.ReadArray[commitCompact, *commitCompact](r, maxRecoveryEntries)
}
