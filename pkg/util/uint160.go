package util

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/noriachain/neonode/pkg/io"
)

// Uint160Size is the length in bytes of a Uint160 value (a RIPEMD-160
// digest, used as a script hash for accounts and contracts).
const Uint160Size = 20

// Uint160 is a 20-byte script hash.
type Uint160 [Uint160Size]byte

// Uint160DecodeBytesBE decodes a Uint160 from a big-endian byte slice.
func Uint160DecodeBytesBE(b []byte) (u Uint160, err error) {
	if len(b) != Uint160Size {
		return u, fmt.Errorf("expected %d bytes, got %d", Uint160Size, len(b))
	}
	copy(u[:], b)
	return u, nil
}

// Uint160DecodeBytesLE decodes a Uint160 from a little-endian byte slice.
func Uint160DecodeBytesLE(b []byte) (u Uint160, err error) {
	if len(b) != Uint160Size {
		return u, fmt.Errorf("expected %d bytes, got %d", Uint160Size, len(b))
	}
	for i, v := range b {
		u[Uint160Size-i-1] = v
	}
	return u, nil
}

// Uint160DecodeStringLE decodes a Uint160 from hex, with or without "0x".
func Uint160DecodeStringLE(s string) (u Uint160, err error) {
	s = trimHexPrefix(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return u, err
	}
	return Uint160DecodeBytesLE(b)
}

// BytesBE returns the big-endian byte representation.
func (u Uint160) BytesBE() []byte {
	b := make([]byte, Uint160Size)
	copy(b, u[:])
	return b
}

// BytesLE returns the little-endian (wire-order) byte representation.
func (u Uint160) BytesLE() []byte {
	b := make([]byte, Uint160Size)
	for i := 0; i < Uint160Size; i++ {
		b[i] = u[Uint160Size-i-1]
	}
	return b
}

// StringLE is the canonical hex display form.
func (u Uint160) StringLE() string {
	return hex.EncodeToString(u.BytesLE())
}

// String implements fmt.Stringer.
func (u Uint160) String() string {
	return u.StringLE()
}

// Equals reports whether u and other hold the same bytes.
func (u Uint160) Equals(other Uint160) bool {
	return u == other
}

// IsZero reports whether u is the all-zero hash.
func (u Uint160) IsZero() bool {
	return u == Uint160{}
}

// CompareTo defines an ascending byte order over Uint160.
func (u Uint160) CompareTo(other Uint160) int {
	return bytes.Compare(u[:], other[:])
}

// EncodeBinary implements io.Serializable.
func (u Uint160) EncodeBinary(w *io.BinWriter) {
	w.WriteB(u.BytesLE())
}

// DecodeBinary implements io.Serializable.
func (u *Uint160) DecodeBinary(r *io.BinReader) {
	b := r.ReadB(Uint160Size)
	if r.Err != nil {
		return
	}
	v, err := Uint160DecodeBytesLE(b)
	if err != nil {
		r.Err = err
		return
	}
	*u = v
}

// MarshalJSON implements json.Marshaler.
func (u Uint160) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + u.StringLE())
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *Uint160) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := Uint160DecodeStringLE(s)
	if err != nil {
		return err
	}
	*u = v
	return nil
}
