package consensus

import (
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/util"
)

// prepareResponse is a backup's agreement with a prepareRequest,
// identified by the hash of that request's payload rather than by
// repeating its contents (§4.9).
type prepareResponse struct {
	PreparationHash util.Uint256
}

// EncodeBinary implements io.Serializable.
func (p *prepareResponse) EncodeBinary(w *vio.BinWriter) {
	p.PreparationHash.EncodeBinary(w)
}

// DecodeBinary implements io.Serializable.
func (p *prepareResponse) DecodeBinary(r *vio.BinReader) {
	p.PreparationHash.DecodeBinary(r)
}
