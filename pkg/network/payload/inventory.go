package payload

import (
	"errors"
	"fmt"

	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/util"
)

// InventoryType discriminates what kind of object a hash in an inv,
// getdata, or notfound payload refers to.
type InventoryType byte

// Known inventory types.
const (
	TXType          InventoryType = 0x2b
	BlockType       InventoryType = 0x2c
	ExtensibleType  InventoryType = 0x2e
)

// Valid reports whether t is one of the known inventory types.
func (t InventoryType) Valid() bool {
	switch t {
	case TXType, BlockType, ExtensibleType:
		return true
	default:
		return false
	}
}

func (t InventoryType) String() string {
	switch t {
	case TXType:
		return "TX"
	case BlockType:
		return "block"
	case ExtensibleType:
		return "extensible"
	default:
		return fmt.Sprintf("InventoryType(0x%02x)", byte(t))
	}
}

// MaxHashesCount bounds how many hashes a single inv/getdata/notfound
// batch may carry.
const MaxHashesCount = 500

var (
	errInvalidInvType  = errors.New("payload: invalid inventory type")
	errTooManyHashes   = errors.New("payload: too many hashes in inventory payload")
	errEmptyInventory  = errors.New("payload: inventory payload carries no hashes")
)

// Inventory is the body shared by inv, getdata, and notfound: a type tag
// plus a batch of hashes of that type (§4.10 inventory flow, step 1-2).
type Inventory struct {
	Type   InventoryType
	Hashes []util.Uint256
}

// NewInventory builds an Inventory payload advertising hashes of type t.
func NewInventory(t InventoryType, hashes []util.Uint256) *Inventory {
	return &Inventory{Type: t, Hashes: hashes}
}

// EncodeBinary implements io.Serializable.
func (p *Inventory) EncodeBinary(w *vio.BinWriter) {
	w.WriteU8(byte(p.Type))
	w.WriteVarUint(uint64(len(p.Hashes)))
	for i := range p.Hashes {
		p.Hashes[i].EncodeBinary(w)
	}
}

// DecodeBinary implements io.Serializable.
func (p *Inventory) DecodeBinary(r *vio.BinReader) {
	p.Type = InventoryType(r.ReadU8())
	if r.Err != nil {
		return
	}
	if !p.Type.Valid() {
		r.Err = errInvalidInvType
		return
	}
	n := r.ReadVarUint()
	if r.Err != nil {
		return
	}
	if n == 0 {
		r.Err = errEmptyInventory
		return
	}
	if n > MaxHashesCount {
		r.Err = errTooManyHashes
		return
	}
	p.Hashes = make([]util.Uint256, n)
	for i := range p.Hashes {
		p.Hashes[i].DecodeBinary(r)
		if r.Err != nil {
			return
		}
	}
}
