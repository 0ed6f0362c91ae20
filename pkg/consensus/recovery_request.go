package consensus

import vio "github.com/noriachain/neonode/pkg/io"

// recoveryRequest asks peers to resend a RecoveryMessage rebuilding the
// sender's view of the current round, typically sent right after
// (re)joining consensus for a block it has no state for (§4.9).
type recoveryRequest struct {
	Timestamp uint64
}

// EncodeBinary implements io.Serializable.
func (r *recoveryRequest) EncodeBinary(w *vio.BinWriter) {
	w.WriteU64LE(r.Timestamp)
}

// DecodeBinary implements io.Serializable.
func (m *recoveryRequest) DecodeBinary(r *vio.BinReader) {
	m.Timestamp = r.ReadU64LE()
}
