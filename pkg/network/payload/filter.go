package payload

import (
	"errors"

	vio "github.com/noriachain/neonode/pkg/io"
)

// maxFilterSize bounds a FilterLoad's bit array, matching the bloom
// package's own sane-size expectations.
const maxFilterSize = 36000

var errEmptyFilter = errors.New("payload: filterload payload carries no bits")

// FilterLoad is the body of a filterload message: the bit array and
// hash-function parameters an SPV peer wants this node's relay
// filtered through (§4.10 bloom filtering).
type FilterLoad struct {
	Data  []byte
	K     uint32
	Tweak uint32
}

// EncodeBinary implements io.Serializable.
func (f *FilterLoad) EncodeBinary(w *vio.BinWriter) {
	w.WriteVarBytes(f.Data)
	w.WriteU32LE(f.K)
	w.WriteU32LE(f.Tweak)
}

// DecodeBinary implements io.Serializable.
func (f *FilterLoad) DecodeBinary(r *vio.BinReader) {
	f.Data = r.ReadVarBytes(maxFilterSize)
	f.K = r.ReadU32LE()
	f.Tweak = r.ReadU32LE()
	if r.Err != nil {
		return
	}
	if len(f.Data) == 0 {
		r.Err = errEmptyFilter
	}
}

// FilterAdd is the body of a filteradd message: one more element to
// fold into an already-loaded filter.
type FilterAdd struct {
	Data []byte
}

// EncodeBinary implements io.Serializable.
func (f *FilterAdd) EncodeBinary(w *vio.BinWriter) { w.WriteVarBytes(f.Data) }

// DecodeBinary implements io.Serializable.
func (f *FilterAdd) DecodeBinary(r *vio.BinReader) { f.Data = r.ReadVarBytes(maxFilterSize) }
