// Package network implements the P2P engine (§4.10): message framing,
// the version/verack handshake, inventory-driven block and transaction
// relay, answers to getheaders and getblockbyindex requests, address
// gossip, and peer admission/scoring. The node never sends getheaders
// itself: there is no header-first synchronization.
package network

import (
	"errors"
	"fmt"

	"github.com/noriachain/neonode/pkg/core/block"
	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/crypto/hash"
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/network/payload"
)

// CommandType names the 12-byte ASCII command every message frame
// carries, selecting which concrete payload type follows.
type CommandType string

// Commands (§4.10 "relevant subset").
const (
	CmdVersion     CommandType = "version"
	CmdVerack      CommandType = "verack"
	CmdGetAddr     CommandType = "getaddr"
	CmdAddr        CommandType = "addr"
	CmdPing        CommandType = "ping"
	CmdPong        CommandType = "pong"
	CmdGetHeaders  CommandType = "getheaders"
	CmdHeaders     CommandType = "headers"
	CmdGetBlocks   CommandType = "getblockbyindex"
	CmdInv         CommandType = "inv"
	CmdGetData     CommandType = "getdata"
	CmdBlock       CommandType = "block"
	CmdTX          CommandType = "tx"
	CmdMempool     CommandType = "mempool"
	CmdExtensible  CommandType = "extensible"
	CmdReject      CommandType = "reject"
	CmdNotFound    CommandType = "notfound"
	CmdFilterLoad  CommandType = "filterload"
	CmdFilterAdd   CommandType = "filteradd"
	CmdFilterClear CommandType = "filterclear"
)

const (
	commandSize  = 12
	maxPayloadSize = 0x02000000 // 32 MiB, generous over MaxBlockSize
)

var (
	// ErrInvalidMagic is returned when a decoded message's Magic does
	// not match the network this node runs on.
	ErrInvalidMagic = errors.New("network: message magic does not match local network")
	// ErrChecksumMismatch is returned when a decoded payload's checksum
	// doesn't match the header's.
	ErrChecksumMismatch   = errors.New("network: checksum mismatch")
	errCommandTooLong     = errors.New("network: command name exceeds 12 bytes")
	errPayloadTooLarge    = errors.New("network: payload exceeds maximum message size")
)

// flagCompressed marks Payload as lz4-compressed on the wire (§4.10):
// above compressMinSize, NewMessage tries compression and only keeps it
// if it actually shrank the payload.
const flagCompressed byte = 0x01

// Message is the wire envelope every P2P payload travels in (§4.10
// framing): magic | flags | command | payload_len | checksum | payload.
type Message struct {
	Magic    uint32
	Flags    byte
	Command  CommandType
	Length   uint32
	Checksum uint32
	Payload  []byte

	decoded any
}

// NewMessage builds a Message from an already-encoded payload, lz4
// compressing it first when that's large enough to be worth the pass.
func NewMessage(magic uint32, cmd CommandType, p vio.Serializable) (*Message, error) {
	var raw []byte
	if p != nil {
		var err error
		raw, err = vio.ToArray(p)
		if err != nil {
			return nil, err
		}
	}
	if len(cmd) > commandSize {
		return nil, errCommandTooLong
	}
	wire := raw
	var flags byte
	if len(raw) > compressMinSize {
		if c, ok := compressPayload(raw); ok {
			wire = c
			flags = flagCompressed
		}
	}
	return &Message{
		Magic:    magic,
		Flags:    flags,
		Command:  cmd,
		Length:   uint32(len(wire)),
		Checksum: checksum(wire),
		Payload:  wire,
		decoded:  p,
	}, nil
}

func checksum(b []byte) uint32 {
	sum := hash.Checksum(b)
	return uint32(sum[0]) | uint32(sum[1])<<8 | uint32(sum[2])<<16 | uint32(sum[3])<<24
}

// encode writes the full frame: header plus raw payload bytes.
func (m *Message) encode(w *vio.BinWriter) {
	w.WriteU32LE(m.Magic)
	w.WriteB([]byte{m.Flags})
	var cmd [commandSize]byte
	copy(cmd[:], []byte(m.Command))
	w.WriteB(cmd[:])
	w.WriteU32LE(m.Length)
	w.WriteU32LE(m.Checksum)
	w.WriteB(m.Payload)
}

// decode reads a full frame and validates the checksum, but does not
// interpret Payload into a concrete type — callers do that via Decoded
// once they know which struct Command implies.
func (m *Message) decode(r *vio.BinReader, expectedMagic uint32) {
	m.Magic = r.ReadU32LE()
	flags := r.ReadB(1)
	cmd := r.ReadB(commandSize)
	m.Length = r.ReadU32LE()
	m.Checksum = r.ReadU32LE()
	if r.Err != nil {
		return
	}
	if m.Magic != expectedMagic {
		r.Err = ErrInvalidMagic
		return
	}
	if m.Length > maxPayloadSize {
		r.Err = errPayloadTooLarge
		return
	}
	m.Flags = flags[0]
	m.Command = CommandType(trimZero(cmd))
	m.Payload = r.ReadB(int(m.Length))
	if r.Err != nil {
		return
	}
	if checksum(m.Payload) != m.Checksum {
		r.Err = ErrChecksumMismatch
	}
}

func trimZero(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	return b[:i]
}

// Decoded lazily decodes Payload into the concrete type matching
// Command, caching the result. Returns an error for unrecognized
// commands or malformed payloads.
func (m *Message) Decoded() (any, error) {
	if m.decoded != nil {
		return m.decoded, nil
	}
	raw := m.Payload
	if m.Flags&flagCompressed != 0 {
		var err error
		raw, err = decompressPayload(m.Payload)
		if err != nil {
			return nil, err
		}
	}
	var p vio.Serializable
	switch m.Command {
	case CmdVersion:
		p = &payload.Version{}
	case CmdVerack, CmdGetAddr, CmdMempool:
		m.decoded = struct{}{}
		return m.decoded, nil
	case CmdAddr:
		p = &payload.AddressList{}
	case CmdPing, CmdPong:
		p = &payload.Ping{}
	case CmdGetHeaders, CmdGetBlocks:
		p = &payload.GetBlockByIndex{}
	case CmdHeaders:
		p = &payload.Headers{}
	case CmdInv, CmdGetData, CmdNotFound:
		p = &payload.Inventory{}
	case CmdBlock:
		p = &block.Block{}
	case CmdTX:
		p = &transaction.Transaction{}
	case CmdExtensible:
		p = &payload.Extensible{}
	case CmdFilterLoad:
		p = &payload.FilterLoad{}
	case CmdFilterAdd:
		p = &payload.FilterAdd{}
	case CmdFilterClear:
		m.decoded = struct{}{}
		return m.decoded, nil
	default:
		return nil, fmt.Errorf("network: unrecognized command %q", m.Command)
	}
	if err := vio.FromArray(p, raw); err != nil {
		return nil, err
	}
	m.decoded = p
	return p, nil
}
