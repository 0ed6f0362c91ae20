package payload

import (
	"errors"
	"net"

	"github.com/noriachain/neonode/pkg/network/capability"

	vio "github.com/noriachain/neonode/pkg/io"
)

// AddressAndTime is one entry in an AddressList: a peer's address, the
// time it was last seen alive, and the capabilities it advertised at
// that time (§4.10 address gossip).
type AddressAndTime struct {
	Timestamp    uint32
	IP           [16]byte
	Capabilities capability.Capabilities
}

// NewAddressAndTime builds an AddressAndTime from a TCP address and the
// capabilities last observed for it.
func NewAddressAndTime(e *net.TCPAddr, timestamp uint32, caps capability.Capabilities) *AddressAndTime {
	aa := &AddressAndTime{Timestamp: timestamp, Capabilities: caps}
	copy(aa.IP[:], e.IP.To16())
	return aa
}

// Addr is the net.TCPAddr this entry describes, reconstructed from its
// IP and advertised TCPServer capability port.
func (a *AddressAndTime) Addr() *net.TCPAddr {
	port, _ := a.Capabilities.TCPPort()
	return &net.TCPAddr{IP: net.IP(a.IP[:]), Port: int(port)}
}

// EncodeBinary implements io.Serializable.
func (a *AddressAndTime) EncodeBinary(w *vio.BinWriter) {
	w.WriteU32LE(a.Timestamp)
	w.WriteB(a.IP[:])
	a.Capabilities.EncodeBinary(w)
}

// DecodeBinary implements io.Serializable.
func (a *AddressAndTime) DecodeBinary(r *vio.BinReader) {
	a.Timestamp = r.ReadU32LE()
	copy(a.IP[:], r.ReadB(16))
	if r.Err != nil {
		return
	}
	a.Capabilities.DecodeBinary(r)
}

// MaxAddressesInList bounds an AddressList's entry count: §4.10 caps
// getaddr responses at 200 recently-seen peers.
const MaxAddressesInList = 200

var errTooManyAddresses = errors.New("payload: address list exceeds maximum size")

// AddressList is the body of an addr message: a batch of recently-seen
// peer addresses exchanged in response to getaddr.
type AddressList struct {
	Addrs []*AddressAndTime
}

// NewAddressList allocates an AddressList with room for n entries.
func NewAddressList(n int) *AddressList {
	return &AddressList{Addrs: make([]*AddressAndTime, n)}
}

// EncodeBinary implements io.Serializable.
func (l *AddressList) EncodeBinary(w *vio.BinWriter) {
	vio.WriteArray(w, l.Addrs)
}

// DecodeBinary implements io.Serializable.
func (l *AddressList) DecodeBinary(r *vio.BinReader) {
	n := r.ReadVarUint()
	if r.Err != nil {
		return
	}
	if n > MaxAddressesInList {
		r.Err = errTooManyAddresses
		return
	}
	l.Addrs = make([]*AddressAndTime, n)
	for i := range l.Addrs {
		l.Addrs[i] = &AddressAndTime{}
		l.Addrs[i].DecodeBinary(r)
		if r.Err != nil {
			return
		}
	}
}
