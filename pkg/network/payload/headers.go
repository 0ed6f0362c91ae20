package payload

import (
	"errors"

	"github.com/noriachain/neonode/pkg/core/block"

	vio "github.com/noriachain/neonode/pkg/io"
)

var errTooManyHeaders = errors.New("payload: too many headers in a single batch")

// Headers is the response to a getheaders request: a batch of block
// headers in ascending index order, capped at MaxHeadersAllowed to match
// what a single getheaders request may ask for.
type Headers struct {
	Hdrs []*block.Header
}

// EncodeBinary implements io.Serializable.
func (h *Headers) EncodeBinary(w *vio.BinWriter) {
	vio.WriteArray(w, h.Hdrs)
}

// DecodeBinary implements io.Serializable.
func (h *Headers) DecodeBinary(r *vio.BinReader) {
	n := r.ReadVarUint()
	if r.Err != nil {
		return
	}
	if n > MaxHeadersAllowed {
		r.Err = errTooManyHeaders
		return
	}
	h.Hdrs = make([]*block.Header, n)
	for i := range h.Hdrs {
		h.Hdrs[i] = &block.Header{}
		h.Hdrs[i].DecodeBinary(r)
		if r.Err != nil {
			return
		}
	}
}
