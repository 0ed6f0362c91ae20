package consensus

import vio "github.com/noriachain/neonode/pkg/io"

// changeViewReason documents why a validator is asking to move to the
// next view, purely informational for logging/diagnostics.
type changeViewReason byte

const (
	reasonTimeout             changeViewReason = 0x0
	reasonChangeAgreement     changeViewReason = 0x1
	reasonTxNotFound          changeViewReason = 0x2
	reasonTxRejectedByPolicy  changeViewReason = 0x3
	reasonTxInvalid           changeViewReason = 0x4
	reasonBlockRejectedByPolicy changeViewReason = 0x5
)

// changeView requests moving from the sender's current view to
// NewViewNumber, most commonly because its prepare timer expired
// without reaching CommitSent (§4.9).
type changeView struct {
	NewViewNumber byte
	Timestamp     uint64
	Reason        changeViewReason
}

// EncodeBinary implements io.Serializable.
func (c *changeView) EncodeBinary(w *vio.BinWriter) {
	w.WriteU64LE(c.Timestamp)
	w.WriteU8(byte(c.Reason))
}

// DecodeBinary implements io.Serializable. NewViewNumber is not carried
// on the wire: it is always the sender's message-envelope ViewNumber
// plus one, so the caller derives it from the envelope after decoding.
func (c *changeView) DecodeBinary(r *vio.BinReader) {
	c.Timestamp = r.ReadU64LE()
	c.Reason = changeViewReason(r.ReadU8())
}
