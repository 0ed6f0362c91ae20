package util

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/noriachain/neonode/pkg/io"
)

// Uint256Size is the length in bytes of a Uint256 value.
const Uint256Size = 32

// Uint256 is a 32-byte hash stored internally in the order it's computed in
// (big-endian, matching the SHA-256 digest) but serialized on the wire and
// printed as little-endian, matching Neo's convention.
type Uint256 [Uint256Size]byte

// Uint256DecodeBytesBE decodes a Uint256 from a big-endian byte slice.
func Uint256DecodeBytesBE(b []byte) (u Uint256, err error) {
	if len(b) != Uint256Size {
		return u, fmt.Errorf("expected %d bytes, got %d", Uint256Size, len(b))
	}
	copy(u[:], b)
	return u, nil
}

// Uint256DecodeBytesLE decodes a Uint256 from a little-endian byte slice
// (the wire/string representation).
func Uint256DecodeBytesLE(b []byte) (u Uint256, err error) {
	if len(b) != Uint256Size {
		return u, fmt.Errorf("expected %d bytes, got %d", Uint256Size, len(b))
	}
	for i, v := range b {
		u[Uint256Size-i-1] = v
	}
	return u, nil
}

// Uint256DecodeStringLE decodes a Uint256 from its hex string, with or
// without a leading "0x".
func Uint256DecodeStringLE(s string) (u Uint256, err error) {
	s = trimHexPrefix(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return u, err
	}
	return Uint256DecodeBytesLE(b)
}

// BytesBE returns the big-endian byte representation.
func (u Uint256) BytesBE() []byte {
	b := make([]byte, Uint256Size)
	copy(b, u[:])
	return b
}

// BytesLE returns the little-endian (wire-order) byte representation.
func (u Uint256) BytesLE() []byte {
	b := make([]byte, Uint256Size)
	for i := 0; i < Uint256Size; i++ {
		b[i] = u[Uint256Size-i-1]
	}
	return b
}

// StringLE is the canonical display/hex form (little-endian, no prefix).
func (u Uint256) StringLE() string {
	return hex.EncodeToString(u.BytesLE())
}

// String implements fmt.Stringer.
func (u Uint256) String() string {
	return u.StringLE()
}

// Equals reports whether u and other hold the same bytes.
func (u Uint256) Equals(other Uint256) bool {
	return u == other
}

// IsZero reports whether u is the all-zero hash.
func (u Uint256) IsZero() bool {
	return u == Uint256{}
}

// CompareTo defines an ascending byte order over Uint256, used to sort
// storage keys and transaction hashes canonically.
func (u Uint256) CompareTo(other Uint256) int {
	return bytes.Compare(u[:], other[:])
}

// EncodeBinary implements io.Serializable; Uint256 is written
// little-endian on disk/wire, the digest's natural byte order reversed per
// Neo convention (wire bytes equal BytesLE).
func (u Uint256) EncodeBinary(w *io.BinWriter) {
	b := u.BytesLE()
	w.WriteB(b)
}

// DecodeBinary implements io.Serializable.
func (u *Uint256) DecodeBinary(r *io.BinReader) {
	b := r.ReadB(Uint256Size)
	if r.Err != nil {
		return
	}
	v, err := Uint256DecodeBytesLE(b)
	if err != nil {
		r.Err = err
		return
	}
	*u = v
}

// MarshalJSON implements json.Marshaler, emitting "0x"-prefixed hex.
func (u Uint256) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + u.StringLE())
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *Uint256) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := Uint256DecodeStringLE(s)
	if err != nil {
		return err
	}
	*u = v
	return nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// ErrInvalidLength names the wrong-length decoding failure. The Uint160 and
// Uint256 decoders do not return it: they report the expected and actual
// lengths in a plain formatted error.
var ErrInvalidLength = errors.New("invalid length")
