package payload

import (
	"bytes"
	"net"
	"testing"

	"github.com/noriachain/neonode/pkg/config/netmode"
	"github.com/noriachain/neonode/pkg/core/block"
	"github.com/noriachain/neonode/pkg/core/transaction"
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/util"
	"github.com/stretchr/testify/require"
)

func encodeDecode(t *testing.T, in, out vio.Serializable) {
	t.Helper()
	w := vio.NewBufBinWriter()
	in.EncodeBinary(w)
	require.NoError(t, w.Err)

	r := vio.NewBinReaderFromIO(bytes.NewReader(w.Bytes()))
	out.DecodeBinary(r)
	require.NoError(t, r.Err)
}

func TestVersionEncodeDecode(t *testing.T) {
	v := NewVersion(0x4e454f00, 3000, "/neonode:0.1/", 42, 10333, false)
	out := &Version{}
	encodeDecode(t, v, out)
	require.Equal(t, v, out)

	port, ok := out.Capabilities.TCPPort()
	require.True(t, ok)
	require.Equal(t, uint16(10333), port)
}

func TestVersionRejectsNonZeroVersion(t *testing.T) {
	v := NewVersion(1, 1, "x", 0, 0, false)
	v.Version = 1
	w := vio.NewBufBinWriter()
	v.EncodeBinary(w)
	r := vio.NewBinReaderFromIO(bytes.NewReader(w.Bytes()))
	out := &Version{}
	out.DecodeBinary(r)
	require.Error(t, r.Err)
}

func TestAddressListEncodeDecode(t *testing.T) {
	l := &AddressList{Addrs: []*AddressAndTime{
		{Timestamp: 1, IP: [16]byte{1}},
		{Timestamp: 2, IP: [16]byte{2}},
	}}
	out := &AddressList{}
	encodeDecode(t, l, out)
	require.Equal(t, l, out)
}

func TestNewAddressAndTime(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 2000}
	aat := NewAddressAndTime(addr, 100, nil)
	require.Equal(t, addr.IP.To16(), net.IP(aat.IP[:]))
}

func TestInventoryEncodeDecode(t *testing.T) {
	inv := NewInventory(BlockType, []util.Uint256{{1}, {2}})
	out := &Inventory{}
	encodeDecode(t, inv, out)
	require.Equal(t, inv, out)
}

func TestInventoryRejectsEmpty(t *testing.T) {
	inv := NewInventory(TXType, nil)
	w := vio.NewBufBinWriter()
	inv.EncodeBinary(w)
	r := vio.NewBinReaderFromIO(bytes.NewReader(w.Bytes()))
	out := &Inventory{}
	out.DecodeBinary(r)
	require.Error(t, r.Err)
}

func TestGetBlockByIndexEncodeDecode(t *testing.T) {
	p := NewGetBlockByIndex(123, 100)
	out := &GetBlockByIndex{}
	encodeDecode(t, p, out)
	require.Equal(t, p, out)

	bad := NewGetBlockByIndex(5, 0)
	w := vio.NewBufBinWriter()
	bad.EncodeBinary(w)
	r := vio.NewBinReaderFromIO(bytes.NewReader(w.Bytes()))
	decoded := &GetBlockByIndex{}
	decoded.DecodeBinary(r)
	require.Error(t, r.Err)
}

func TestHeadersEncodeDecode(t *testing.T) {
	h1 := &block.Header{Network: netmode.UnitTestNet, Index: 1, Script: transaction.Witness{InvocationScript: []byte{0}, VerificationScript: []byte{1}}}
	h2 := &block.Header{Network: netmode.UnitTestNet, Index: 2, Script: transaction.Witness{InvocationScript: []byte{0}, VerificationScript: []byte{1}}}
	hs := &Headers{Hdrs: []*block.Header{h1, h2}}
	out := &Headers{}
	encodeDecode(t, hs, out)
	require.Len(t, out.Hdrs, 2)
	require.Equal(t, h1.Hash(), out.Hdrs[0].Hash())
}

func TestPingEncodeDecode(t *testing.T) {
	p := NewPing(1, 2)
	out := &Ping{}
	encodeDecode(t, p, out)
	require.Equal(t, p, out)
}

func TestExtensibleEncodeDecode(t *testing.T) {
	e := NewExtensible()
	e.Category = "dBFT"
	e.ValidBlockStart = 12
	e.ValidBlockEnd = 1234
	e.Data = []byte{1, 2, 3, 4}
	e.Witness = transaction.Witness{InvocationScript: []byte{9, 9, 9}, VerificationScript: []byte{8, 8}}

	out := NewExtensible()
	encodeDecode(t, e, out)
	require.Equal(t, e.Category, out.Category)
	require.Equal(t, e.Data, out.Data)
	require.Equal(t, e.Hash(), out.Hash())
}

func TestExtensibleHashesDiffer(t *testing.T) {
	p1 := NewExtensible()
	p1.Data = []byte{1, 2, 3}
	p2 := NewExtensible()
	p2.Data = []byte{3, 2, 1}
	require.NotEqual(t, p1.Hash(), p2.Hash())
}

func TestFilterLoadEncodeDecode(t *testing.T) {
	f := &FilterLoad{Data: []byte{0xff, 0x00, 0xaa}, K: 3, Tweak: 12345}
	out := &FilterLoad{}
	encodeDecode(t, f, out)
	require.Equal(t, f, out)
}

func TestFilterLoadRejectsEmpty(t *testing.T) {
	f := &FilterLoad{Data: nil, K: 1, Tweak: 1}
	w := vio.NewBufBinWriter()
	f.EncodeBinary(w)
	r := vio.NewBinReaderFromIO(bytes.NewReader(w.Bytes()))
	out := &FilterLoad{}
	out.DecodeBinary(r)
	require.Error(t, r.Err)
}

func TestFilterAddEncodeDecode(t *testing.T) {
	f := &FilterAdd{Data: []byte{1, 2, 3}}
	out := &FilterAdd{}
	encodeDecode(t, f, out)
	require.Equal(t, f, out)
}

func TestExtensibleDataTooLarge(t *testing.T) {
	e := NewExtensible()
	e.Data = make([]byte, MaxSize+1)
	w := vio.NewBufBinWriter()
	e.encodeBinaryUnsigned(w)
	w.WriteU8(1)
	e.Witness.EncodeBinary(w)

	r := vio.NewBinReaderFromIO(bytes.NewReader(w.Bytes()))
	out := NewExtensible()
	out.DecodeBinary(r)
	require.Error(t, r.Err)
}
