// Package payload implements the P2P message bodies carried inside a
// network.Message (§4.10): handshake, inventory, header/block sync,
// address gossip, and the extensible envelope consensus/state-service
// traffic piggybacks on.
package payload

import (
	"errors"

	"github.com/noriachain/neonode/pkg/network/capability"

	vio "github.com/noriachain/neonode/pkg/io"
)

const maxUserAgentSize = 1024

var errInvalidVersion = errors.New("payload: version field is reserved and must be zero")

// Version is the first payload exchanged on every connection (§4.10
// handshake): protocol version, service identity, and the capability
// list the peer advertises.
type Version struct {
	// Magic is the network this peer believes it's joining; a mismatch
	// against the local network's magic is a handshake failure.
	Magic uint32
	// Version is the protocol version; Neo N3 always sends 0.
	Version uint32
	// Timestamp is the sender's wall-clock time, seconds since epoch.
	Timestamp uint32
	// Nonce is a random per-process value; equal nonces between two
	// ends of a connection indicate a self-connection.
	Nonce uint32
	// UserAgent is a free-form client identification string.
	UserAgent string
	// Capabilities lists the transports/roles this peer offers.
	Capabilities capability.Capabilities
}

// NewVersion builds a Version payload advertising the given identity.
func NewVersion(magic, nonce uint32, userAgent string, startHeight uint32, tcpPort uint16, archival bool) *Version {
	caps := []capability.Capability{
		&capability.Server{Port: tcpPort},
		&capability.Node{StartHeight: startHeight},
	}
	if archival {
		caps = append(caps, &capability.Archival{})
	}
	return &Version{
		Magic:        magic,
		Version:      0,
		Timestamp:    0,
		Nonce:        nonce,
		UserAgent:    userAgent,
		Capabilities: capability.NewList(caps...),
	}
}

// EncodeBinary implements io.Serializable.
func (v *Version) EncodeBinary(w *vio.BinWriter) {
	w.WriteU32LE(v.Magic)
	w.WriteU32LE(v.Version)
	w.WriteU32LE(v.Timestamp)
	w.WriteU32LE(v.Nonce)
	w.WriteString(v.UserAgent)
	v.Capabilities.EncodeBinary(w)
}

// DecodeBinary implements io.Serializable.
func (v *Version) DecodeBinary(r *vio.BinReader) {
	v.Magic = r.ReadU32LE()
	v.Version = r.ReadU32LE()
	v.Timestamp = r.ReadU32LE()
	v.Nonce = r.ReadU32LE()
	v.UserAgent = r.ReadString(maxUserAgentSize)
	if r.Err != nil {
		return
	}
	if v.Version != 0 {
		r.Err = errInvalidVersion
		return
	}
	v.Capabilities.DecodeBinary(r)
}
