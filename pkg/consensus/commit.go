package consensus

import vio "github.com/noriachain/neonode/pkg/io"

// commitSignatureSize is the raw r||s ECDSA signature size this
// codebase's keys package produces (no leading recovery byte).
const commitSignatureSize = 64

// commit carries a validator's signature over the proposed block's
// unsigned header, the final step before the block is persisted
// (§4.9).
type commit struct {
	Signature [commitSignatureSize]byte
}

// EncodeBinary implements io.Serializable.
func (c *commit) EncodeBinary(w *vio.BinWriter) {
	w.WriteB(c.Signature[:])
}

// DecodeBinary implements io.Serializable.
func (c *commit) DecodeBinary(r *vio.BinReader) {
	copy(c.Signature[:], r.ReadB(commitSignatureSize))
}
