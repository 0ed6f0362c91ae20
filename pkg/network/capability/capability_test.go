package capability

import (
	"bytes"
	"testing"

	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, c Capability) Capability {
	w := vio.NewBufBinWriter()
	c.EncodeBinary(w)
	require.NoError(t, w.Err)

	clone := newBodyForTest(c)
	r := vio.NewBinReaderFromIO(bytes.NewReader(w.Bytes()))
	clone.DecodeBinary(r)
	require.NoError(t, r.Err)
	return clone
}

func TestUnknownEncodeDecode(t *testing.T) {
	u := Unknown{0x55, 0xaa}
	got := roundTrip(t, &u)
	require.Equal(t, Unknown{0x55, 0xaa}, *got.(*Unknown))
}

func TestArchivalEncodeDecode(t *testing.T) {
	a := &Archival{}
	roundTrip(t, a)

	var bad Archival
	r := vio.NewBinReaderFromIO(bytes.NewReader([]byte{0x02, 0x55, 0xaa}))
	bad.DecodeBinary(r)
	require.Error(t, r.Err)
}

func TestServerEncodeDecode(t *testing.T) {
	s := &Server{Port: 10333}
	got := roundTrip(t, s).(*Server)
	require.Equal(t, uint16(10333), got.Port)
}

func TestCapabilitiesDuplicateRejected(t *testing.T) {
	caps := Capabilities{
		{typ: FullNode, cap: &Node{StartHeight: 1}},
		{typ: FullNode, cap: &Node{StartHeight: 2}},
	}
	w := vio.NewBufBinWriter()
	caps.EncodeBinary(w)

	var decoded Capabilities
	r := vio.NewBinReaderFromIO(bytes.NewReader(w.Bytes()))
	decoded.DecodeBinary(r)
	require.Error(t, r.Err)
}

func TestCapabilitiesRoundTrip(t *testing.T) {
	caps := Capabilities{
		{typ: TCPServer, cap: &Server{Port: 10333}},
		{typ: FullNode, cap: &Node{StartHeight: 42}},
		{typ: ArchivalType, cap: &Archival{}},
	}
	w := vio.NewBufBinWriter()
	caps.EncodeBinary(w)

	var decoded Capabilities
	r := vio.NewBinReaderFromIO(bytes.NewReader(w.Bytes()))
	decoded.DecodeBinary(r)
	require.NoError(t, r.Err)

	port, ok := decoded.TCPPort()
	require.True(t, ok)
	require.Equal(t, uint16(10333), port)

	h, ok := decoded.StartHeight()
	require.True(t, ok)
	require.Equal(t, uint32(42), h)

	require.True(t, decoded.IsArchival())
}

func newBodyForTest(c Capability) Capability {
	switch c.(type) {
	case *Unknown:
		return new(Unknown)
	case *Archival:
		return new(Archival)
	case *Server:
		return new(Server)
	case *Node:
		return new(Node)
	default:
		panic("unhandled capability in test")
	}
}
