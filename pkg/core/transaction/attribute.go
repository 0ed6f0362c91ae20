package transaction

import (
	"errors"

	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/util"
)

// AttrType discriminates the kind of an Attribute.
type AttrType byte

// Attribute kinds.
const (
	HighPriorityT   AttrType = 0x01
	OracleResponseT AttrType = 0x11
	NotValidBeforeT AttrType = 0x20
	ConflictsT      AttrType = 0x21
	NotaryAssistedT AttrType = 0x22
)

var errUnknownAttrType = errors.New("transaction: unknown attribute type")

// AttrValue is the payload carried by one attribute kind.
type AttrValue interface {
	AttrType() AttrType
	EncodeBinary(w *vio.BinWriter)
	DecodeBinary(r *vio.BinReader)
}

// Attribute is one entry of a transaction's attribute list; by default
// at most one of a given Type is allowed unless the type is in
// allowMultiple (§3: "duplicates allowed only for types marked
// allow_multiple" - only Conflicts is, in this implementation, since a
// transaction may invalidate more than one predecessor).
type Attribute struct {
	Type  AttrType
	Value AttrValue
}

// AllowsMultiple reports whether more than one attribute of t may
// appear in the same transaction.
func AllowsMultiple(t AttrType) bool {
	return t == ConflictsT
}

// HighPriority marks a transaction for priority block inclusion; it
// carries no payload beyond its presence.
type HighPriority struct{}

func (HighPriority) AttrType() AttrType          { return HighPriorityT }
func (HighPriority) EncodeBinary(*vio.BinWriter) {}
func (*HighPriority) DecodeBinary(*vio.BinReader) {}

// NotValidBefore rejects the transaction from the pool/block until the
// chain reaches Height.
type NotValidBefore struct {
	Height uint32
}

func (n *NotValidBefore) AttrType() AttrType { return NotValidBeforeT }
func (n *NotValidBefore) EncodeBinary(w *vio.BinWriter) {
	w.WriteU32LE(n.Height)
}
func (n *NotValidBefore) DecodeBinary(r *vio.BinReader) {
	n.Height = r.ReadU32LE()
}

// Conflicts names a transaction hash this one invalidates: if Hash is
// already on chain or in the pool, this transaction's higher fee lets
// it replace it (§4.7 conflict replacement, §C).
type Conflicts struct {
	Hash util.Uint256
}

func (c *Conflicts) AttrType() AttrType { return ConflictsT }
func (c *Conflicts) EncodeBinary(w *vio.BinWriter) {
	c.Hash.EncodeBinary(w)
}
func (c *Conflicts) DecodeBinary(r *vio.BinReader) {
	c.Hash.DecodeBinary(r)
}

// NotaryAssisted marks a transaction as carrying a notary deposit,
// NKeys being the number of extra signatures the notary contract
// pre-validated. Full notary business logic is out of scope; this is
// enough to decode such transactions without faulting.
type NotaryAssisted struct {
	NKeys uint8
}

func (n *NotaryAssisted) AttrType() AttrType { return NotaryAssistedT }
func (n *NotaryAssisted) EncodeBinary(w *vio.BinWriter) {
	w.WriteU8(n.NKeys)
}
func (n *NotaryAssisted) DecodeBinary(r *vio.BinReader) {
	n.NKeys = r.ReadU8()
}

// OracleResponse carries the result of an oracle request this
// transaction answers. Oracle native-contract economics are out of
// scope (§1); only enough shape to round-trip on the wire is kept.
type OracleResponse struct {
	ID     uint64
	Code   byte
	Result []byte
}

func (o *OracleResponse) AttrType() AttrType { return OracleResponseT }
func (o *OracleResponse) EncodeBinary(w *vio.BinWriter) {
	w.WriteU64LE(o.ID)
	w.WriteU8(o.Code)
	w.WriteVarBytes(o.Result)
}
func (o *OracleResponse) DecodeBinary(r *vio.BinReader) {
	o.ID = r.ReadU64LE()
	o.Code = r.ReadU8()
	o.Result = r.ReadVarBytes(65535)
}

// EncodeBinary implements io.Serializable.
func (a *Attribute) EncodeBinary(w *vio.BinWriter) {
	w.WriteU8(byte(a.Type))
	a.Value.EncodeBinary(w)
}

// DecodeBinary implements io.Serializable.
func (a *Attribute) DecodeBinary(r *vio.BinReader) {
	a.Type = AttrType(r.ReadU8())
	if r.Err != nil {
		return
	}
	switch a.Type {
	case HighPriorityT:
		a.Value = &HighPriority{}
	case OracleResponseT:
		a.Value = &OracleResponse{}
	case NotValidBeforeT:
		a.Value = &NotValidBefore{}
	case ConflictsT:
		a.Value = &Conflicts{}
	case NotaryAssistedT:
		a.Value = &NotaryAssisted{}
	default:
		r.Err = errUnknownAttrType
		return
	}
	a.Value.DecodeBinary(r)
}
