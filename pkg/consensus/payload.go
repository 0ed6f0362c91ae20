// Package consensus implements the dBFT replica state machine: primary
// selection, the prepare/response/commit/change-view message flow, and
// the wire envelope those messages travel in (§4.9).
package consensus

import (
	"fmt"

	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/crypto/hash"
	"github.com/noriachain/neonode/pkg/crypto/keys"
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/util"
)

// messageType identifies the inner payload carried by a Payload.
type messageType byte

const (
	changeViewType      messageType = 0x00
	prepareRequestType  messageType = 0x20
	prepareResponseType messageType = 0x21
	commitType          messageType = 0x30
	recoveryRequestType messageType = 0x40
	recoveryMessageType messageType = 0x41
)

func (t messageType) String() string {
	switch t {
	case changeViewType:
		return "ChangeView"
	case prepareRequestType:
		return "PrepareRequest"
	case prepareResponseType:
		return "PrepareResponse"
	case commitType:
		return "Commit"
	case recoveryRequestType:
		return "RecoveryRequest"
	case recoveryMessageType:
		return "RecoveryMessage"
	default:
		return fmt.Sprintf("messageType(0x%02x)", byte(t))
	}
}

// message is the (type, view, inner payload) triple every consensus
// message shares; Payload wraps it with the routing/witness envelope.
type message struct {
	Type       messageType
	ViewNumber byte

	payload vio.Serializable
}

// EncodeBinary implements io.Serializable.
func (m *message) EncodeBinary(w *vio.BinWriter) {
	w.WriteU8(byte(m.Type))
	w.WriteU8(m.ViewNumber)
	m.payload.EncodeBinary(w)
}

// DecodeBinary implements io.Serializable.
func (m *message) DecodeBinary(r *vio.BinReader) {
	m.Type = messageType(r.ReadU8())
	m.ViewNumber = r.ReadU8()
	if r.Err != nil {
		return
	}
	switch m.Type {
	case changeViewType:
		m.payload = &changeView{}
	case prepareRequestType:
		m.payload = &prepareRequest{}
	case prepareResponseType:
		m.payload = &prepareResponse{}
	case commitType:
		m.payload = &commit{}
	case recoveryRequestType:
		m.payload = &recoveryRequest{}
	case recoveryMessageType:
		m.payload = &recoveryMessage{}
	default:
		r.Err = fmt.Errorf("consensus: unknown message type 0x%02x", byte(m.Type))
		return
	}
	m.payload.DecodeBinary(r)
}

// dedupKey is the (validator, block, view, type) tuple messages are
// deduplicated by (§4.9): a validator can say each thing at most once
// per view, regardless of how many times the network redelivers it.
type dedupKey struct {
	ValidatorIndex uint16
	BlockIndex     uint32
	ViewNumber     byte
	Type           messageType
}

// Payload is the signed, routable envelope every consensus message
// travels the network in.
type Payload struct {
	message

	Version        uint32
	ValidatorIndex uint16
	BlockIndex     uint32
	Timestamp      uint64

	Witness transaction.Witness

	hash      util.Uint256
	hashValid bool
}

// Type reports which inner message this payload carries.
func (p *Payload) Type() messageType { return p.message.Type }

// ViewNumber reports the view this payload was sent under.
func (p *Payload) ViewNumber() byte { return p.message.ViewNumber }

func (p *Payload) dedup() dedupKey {
	return dedupKey{p.ValidatorIndex, p.BlockIndex, p.message.ViewNumber, p.message.Type}
}

func (p *Payload) changeView() (*changeView, bool) {
	cv, ok := p.payload.(*changeView)
	return cv, ok
}

func (p *Payload) prepareRequest() (*prepareRequest, bool) {
	pr, ok := p.payload.(*prepareRequest)
	return pr, ok
}

func (p *Payload) prepareResponse() (*prepareResponse, bool) {
	pr, ok := p.payload.(*prepareResponse)
	return pr, ok
}

func (p *Payload) commit() (*commit, bool) {
	c, ok := p.payload.(*commit)
	return c, ok
}

func (p *Payload) recoveryRequest() (*recoveryRequest, bool) {
	rr, ok := p.payload.(*recoveryRequest)
	return rr, ok
}

func (p *Payload) recoveryMessage() (*recoveryMessage, bool) {
	rm, ok := p.payload.(*recoveryMessage)
	return rm, ok
}

// encodeUnsigned writes everything the witness signs over: the routing
// envelope plus the inner message, excluding the witness itself.
func (p *Payload) encodeUnsigned(w *vio.BinWriter) {
	w.WriteU32LE(p.Version)
	w.WriteU16LE(p.ValidatorIndex)
	w.WriteU32LE(p.BlockIndex)
	w.WriteU64LE(p.Timestamp)
	p.message.EncodeBinary(w)
}

// EncodeBinary implements io.Serializable.
func (p *Payload) EncodeBinary(w *vio.BinWriter) {
	p.encodeUnsigned(w)
	p.Witness.EncodeBinary(w)
}

// DecodeBinary implements io.Serializable.
func (p *Payload) DecodeBinary(r *vio.BinReader) {
	p.Version = r.ReadU32LE()
	p.ValidatorIndex = r.ReadU16LE()
	p.BlockIndex = r.ReadU32LE()
	p.Timestamp = r.ReadU64LE()
	if r.Err != nil {
		return
	}
	p.message.DecodeBinary(r)
	if r.Err != nil {
		return
	}
	p.Witness.DecodeBinary(r)
}

// Hash is the SHA-256 of the payload's unsigned encoding, cached after
// first computation, mirroring block.Header.Hash and
// transaction.Transaction.Hash.
func (p *Payload) Hash() util.Uint256 {
	if !p.hashValid {
		w := vio.NewBufBinWriter()
		p.encodeUnsigned(w)
		p.hash = hash.Sha256(w.Bytes())
		p.hashValid = true
	}
	return p.hash
}

// signedDigest is the message a payload's witness signs, matching
// core's txSignedDigest/headerSignedDigest convention.
func (p *Payload) signedDigest() []byte {
	h := p.Hash()
	return hash.Sha256(h.BytesBE()).BytesBE()
}

// Sign computes and installs a single-signature Witness over this
// payload's unsigned encoding. It must be called after every mutable
// field (including the inner payload) is set, since Hash is cached.
func (p *Payload) Sign(priv *keys.PrivateKey) {
	sig := priv.Sign(p.Hash().BytesBE())
	p.Witness = transaction.Witness{
		InvocationScript:   append([]byte{0x0c, 64}, sig...),
		VerificationScript: priv.PublicKey().VerificationScript(),
	}
}

// Verify checks the payload's Witness proves sender is the validator at
// ValidatorIndex within validators.
func (p *Payload) Verify(validators keys.PublicKeys) (bool, error) {
	if int(p.ValidatorIndex) >= len(validators) {
		return false, fmt.Errorf("consensus: validator index %d out of range", p.ValidatorIndex)
	}
	want := validators[p.ValidatorIndex].VerificationScript()
	if string(want) != string(p.Witness.VerificationScript) {
		return false, nil
	}
	return keys.VerifyWitness(p.Witness.VerificationScript, p.Witness.InvocationScript, p.signedDigest())
}
