package io

import "bytes"

// Serializable is implemented by every structure with a fixed binary wire
// representation (blocks, headers, transactions, consensus payloads, P2P
// payloads). EncodeBinary/DecodeBinary must round-trip exactly:
// DecodeBinary(Encode(x)) == x.
type Serializable interface {
	EncodeBinary(w *BinWriter)
	DecodeBinary(r *BinReader)
}

// ToArray serializes s into a freshly allocated byte slice, returning any
// error the writer accumulated.
func ToArray(s Serializable) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := NewBinWriterFromIO(buf)
	s.EncodeBinary(w)
	if w.Err != nil {
		return nil, w.Err
	}
	return buf.Bytes(), nil
}

// FromArray deserializes s from b, returning any error the reader
// accumulated (including trailing-garbage is not checked here; callers
// that require exact consumption should compare reader position).
func FromArray(s Serializable, b []byte) error {
	r := NewBinReaderFromIO(bytes.NewReader(b))
	s.DecodeBinary(r)
	return r.Err
}
