package payload

import (
	"errors"

	vio "github.com/noriachain/neonode/pkg/io"
)

// MaxHeadersAllowed bounds a single getheaders/getblockbyindex batch
// (§4.10: "requests headers in batches up to 2000").
const MaxHeadersAllowed = 2000

var errZeroOrOverflowCount = errors.New("payload: block count must be 1..MaxHeadersAllowed, or -1 for unlimited")

// GetBlockByIndex requests a contiguous run of blocks or headers by
// height; a getheaders message and a getblockbyindex message share this
// exact body, distinguished only by the P2P command they travel under.
type GetBlockByIndex struct {
	IndexStart uint32
	// Count is the number of blocks/headers requested, capped at
	// MaxHeadersAllowed; -1 requests as many as the peer will send.
	Count int16
}

// NewGetBlockByIndex builds a GetBlockByIndex for count items starting
// at indexStart.
func NewGetBlockByIndex(indexStart uint32, count int16) *GetBlockByIndex {
	return &GetBlockByIndex{IndexStart: indexStart, Count: count}
}

// EncodeBinary implements io.Serializable.
func (p *GetBlockByIndex) EncodeBinary(w *vio.BinWriter) {
	w.WriteU32LE(p.IndexStart)
	w.WriteU16LE(uint16(p.Count))
}

// DecodeBinary implements io.Serializable.
func (p *GetBlockByIndex) DecodeBinary(r *vio.BinReader) {
	p.IndexStart = r.ReadU32LE()
	p.Count = int16(r.ReadU16LE())
	if r.Err != nil {
		return
	}
	if p.Count == 0 || p.Count < -1 || p.Count > MaxHeadersAllowed {
		r.Err = errZeroOrOverflowCount
	}
}
