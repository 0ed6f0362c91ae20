package payload

import (
	"errors"

	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/crypto/hash"
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/util"
)

// MaxSize bounds an Extensible payload's Data field, matching the
// extensible message's overall cap on arbitrary subsystem traffic.
const MaxSize = 1 << 20

var errInvalidPadding = errors.New("payload: invalid extensible payload padding")

// Extensible is the generic envelope consensus and state-service
// messages travel the P2P network in (§4.10, §9 "extensible payload");
// the network engine routes it to a subsystem by Category without
// interpreting Data itself.
type Extensible struct {
	// Category names the subsystem this payload belongs to, e.g. "dBFT".
	Category string
	// ValidBlockStart/ValidBlockEnd bound the chain height range over
	// which this payload remains meaningful. They are encoded and hashed;
	// the P2P server relays a payload without checking them.
	ValidBlockStart uint32
	ValidBlockEnd   uint32
	// Sender is the script hash whose witness authorizes this payload.
	Sender util.Uint160
	// Data is the opaque subsystem-specific body.
	Data []byte

	Witness transaction.Witness

	hash      util.Uint256
	hashValid bool
}

// NewExtensible builds an empty Extensible ready to have its fields set
// before being signed and sent.
func NewExtensible() *Extensible {
	return &Extensible{}
}

func (p *Extensible) encodeBinaryUnsigned(w *vio.BinWriter) {
	w.WriteString(p.Category)
	w.WriteU32LE(p.ValidBlockStart)
	w.WriteU32LE(p.ValidBlockEnd)
	p.Sender.EncodeBinary(w)
	w.WriteVarBytes(p.Data)
}

// EncodeBinary implements io.Serializable.
func (p *Extensible) EncodeBinary(w *vio.BinWriter) {
	p.encodeBinaryUnsigned(w)
	w.WriteU8(1) // witness count, always exactly one
	p.Witness.EncodeBinary(w)
}

// DecodeBinary implements io.Serializable.
func (p *Extensible) DecodeBinary(r *vio.BinReader) {
	p.Category = r.ReadString(maxCategorySize)
	p.ValidBlockStart = r.ReadU32LE()
	p.ValidBlockEnd = r.ReadU32LE()
	p.Sender.DecodeBinary(r)
	p.Data = r.ReadVarBytes(MaxSize)
	if r.Err != nil {
		return
	}
	n := r.ReadU8()
	if r.Err != nil {
		return
	}
	if n != 1 {
		r.Err = errInvalidPadding
		return
	}
	p.Witness.DecodeBinary(r)
}

const maxCategorySize = 32

// Hash is the SHA-256 of the payload's unsigned encoding, cached after
// first computation.
func (p *Extensible) Hash() util.Uint256 {
	if !p.hashValid {
		w := vio.NewBufBinWriter()
		p.encodeBinaryUnsigned(w)
		p.hash = hash.Sha256(w.Bytes())
		p.hashValid = true
	}
	return p.hash
}
