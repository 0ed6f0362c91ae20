package payload

import vio "github.com/noriachain/neonode/pkg/io"

// Ping is the body of both ping and pong messages: the sender's current
// height, a nonce the pong must echo, and a timestamp (NewPing leaves
// it zero). The receiver records LastBlockIndex as the peer's height; no
// pong deadline is enforced.
type Ping struct {
	LastBlockIndex uint32
	Timestamp      uint32
	Nonce          uint32
}

// NewPing builds a Ping payload reporting height at nonce.
func NewPing(height, nonce uint32) *Ping {
	return &Ping{LastBlockIndex: height, Timestamp: 0, Nonce: nonce}
}

// EncodeBinary implements io.Serializable.
func (p *Ping) EncodeBinary(w *vio.BinWriter) {
	w.WriteU32LE(p.LastBlockIndex)
	w.WriteU32LE(p.Timestamp)
	w.WriteU32LE(p.Nonce)
}

// DecodeBinary implements io.Serializable.
func (p *Ping) DecodeBinary(r *vio.BinReader) {
	p.LastBlockIndex = r.ReadU32LE()
	p.Timestamp = r.ReadU32LE()
	p.Nonce = r.ReadU32LE()
}
