// Package io implements the binary codec used by every on-chain and
// on-wire structure: fixed-width little-endian primitives, Bitcoin-style
// varints and length-prefixed byte strings, layered on top of a sticky
// error so a whole tree of nested Encode/Decode calls can be written
// without per-call error checks.
package io

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// ErrEOF is returned (wrapped) when a read runs past the end of the
// underlying stream.
var ErrEOF = errors.New("unexpected EOF")

// ErrOverflow is returned when a var-sized read exceeds the caller-supplied
// maximum.
var ErrOverflow = errors.New("overflow: value exceeds allowed maximum")

// ErrInvalidData is returned for malformed non length-related encodings
// (e.g. a boolean byte that's neither 0x00 nor 0x01).
var ErrInvalidData = errors.New("invalid data")

// BinWriter wraps an io.Writer; once Err is non-nil every subsequent
// Write* call becomes a no-op so callers can chain writes and check Err once
// at the end.
type BinWriter struct {
	w   io.Writer
	Err error
}

// NewBinWriterFromIO creates a BinWriter writing to w.
func NewBinWriterFromIO(w io.Writer) *BinWriter {
	return &BinWriter{w: w}
}

// NewBufBinWriter creates a BinWriter over an in-memory buffer, for callers
// (mainly tests and script builders) that just want the resulting bytes
// back via Bytes.
func NewBufBinWriter() *BinWriter {
	return NewBinWriterFromIO(new(bytes.Buffer))
}

// Bytes returns the accumulated output of a BinWriter created with
// NewBufBinWriter. It panics if w does not wrap a *bytes.Buffer.
func (w *BinWriter) Bytes() []byte {
	return w.w.(*bytes.Buffer).Bytes()
}

// Len returns the number of bytes written so far; like Bytes, only valid
// for a BinWriter created with NewBufBinWriter.
func (w *BinWriter) Len() int {
	return w.w.(*bytes.Buffer).Len()
}

func (w *BinWriter) writeBytes(b []byte) {
	if w.Err != nil {
		return
	}
	_, w.Err = w.w.Write(b)
}

// WriteU8 writes a single byte.
func (w *BinWriter) WriteU8(val uint8) {
	w.writeBytes([]byte{val})
}

// WriteB writes a raw byte slice with no length prefix.
func (w *BinWriter) WriteB(b []byte) {
	w.writeBytes(b)
}

// WriteBool writes a canonical boolean byte.
func (w *BinWriter) WriteBool(val bool) {
	if val {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
}

// WriteU16LE writes val as two little-endian bytes.
func (w *BinWriter) WriteU16LE(val uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], val)
	w.writeBytes(b[:])
}

// WriteU32LE writes val as four little-endian bytes.
func (w *BinWriter) WriteU32LE(val uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], val)
	w.writeBytes(b[:])
}

// WriteU64LE writes val as eight little-endian bytes.
func (w *BinWriter) WriteU64LE(val uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], val)
	w.writeBytes(b[:])
}

// WriteI64LE writes a signed 64-bit little-endian integer.
func (w *BinWriter) WriteI64LE(val int64) {
	w.WriteU64LE(uint64(val))
}

// WriteVarUint writes val using the Bitcoin-compatible varint encoding:
// a single byte below 0xFD is the value itself; 0xFD introduces a u16;
// 0xFE a u32; 0xFF a u64 (the reader bounds u64 reads to math.MaxInt64).
func (w *BinWriter) WriteVarUint(val uint64) {
	if w.Err != nil {
		return
	}
	switch {
	case val < 0xfd:
		w.WriteU8(uint8(val))
	case val <= 0xffff:
		w.WriteU8(0xfd)
		w.WriteU16LE(uint16(val))
	case val <= 0xffffffff:
		w.WriteU8(0xfe)
		w.WriteU32LE(uint32(val))
	default:
		w.WriteU8(0xff)
		w.WriteU64LE(val)
	}
}

// WriteVarBytes writes the var_int length of b followed by b itself.
func (w *BinWriter) WriteVarBytes(b []byte) {
	w.WriteVarUint(uint64(len(b)))
	w.WriteB(b)
}

// WriteString writes s as a var_bytes-encoded UTF-8 string.
func (w *BinWriter) WriteString(s string) {
	w.WriteVarBytes([]byte(s))
}

// WriteArray writes a var_int count followed by each element's
// EncodeBinary. Every element of arr must implement Serializable, or arr
// must be a slice of a type implementing it via a pointer receiver.
func WriteArray[T Serializable](w *BinWriter, arr []T) {
	w.WriteVarUint(uint64(len(arr)))
	for i := range arr {
		arr[i].EncodeBinary(w)
	}
}

// BinReader wraps an io.Reader with a sticky error; once Err is set all
// Read* calls return zero values without touching the underlying reader.
type BinReader struct {
	r   io.Reader
	Err error
}

// NewBinReaderFromIO creates a BinReader reading from r.
func NewBinReaderFromIO(r io.Reader) *BinReader {
	return &BinReader{r: r}
}

func (r *BinReader) readBytes(n int) []byte {
	if r.Err != nil {
		return nil
	}
	b := make([]byte, n)
	_, err := io.ReadFull(r.r, b)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			r.Err = ErrEOF
		} else {
			r.Err = err
		}
		return nil
	}
	return b
}

// ReadU8 reads a single byte.
func (r *BinReader) ReadU8() uint8 {
	b := r.readBytes(1)
	if r.Err != nil {
		return 0
	}
	return b[0]
}

// ReadB reads n raw bytes.
func (r *BinReader) ReadB(n int) []byte {
	return r.readBytes(n)
}

// ReadBool reads a canonical boolean byte, failing with ErrInvalidData on
// anything but 0x00/0x01.
func (r *BinReader) ReadBool() bool {
	b := r.ReadU8()
	if r.Err != nil {
		return false
	}
	switch b {
	case 0:
		return false
	case 1:
		return true
	default:
		r.Err = ErrInvalidData
		return false
	}
}

// ReadU16LE reads a little-endian uint16.
func (r *BinReader) ReadU16LE() uint16 {
	b := r.readBytes(2)
	if r.Err != nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// ReadU32LE reads a little-endian uint32.
func (r *BinReader) ReadU32LE() uint32 {
	b := r.readBytes(4)
	if r.Err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// ReadU64LE reads a little-endian uint64.
func (r *BinReader) ReadU64LE() uint64 {
	b := r.readBytes(8)
	if r.Err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// ReadI64LE reads a signed little-endian int64.
func (r *BinReader) ReadI64LE() int64 {
	return int64(r.ReadU64LE())
}

// ReadVarUint reads a Bitcoin-compatible varint, capping u64 values at
// math.MaxInt64: a larger 0xFF-prefixed value sets ErrOverflow and
// returns 0.
func (r *BinReader) ReadVarUint() uint64 {
	b := r.ReadU8()
	if r.Err != nil {
		return 0
	}
	switch b {
	case 0xfd:
		return uint64(r.ReadU16LE())
	case 0xfe:
		return uint64(r.ReadU32LE())
	case 0xff:
		v := r.ReadU64LE()
		if r.Err == nil && v > uint64(1<<63-1) {
			r.Err = ErrOverflow
			return 0
		}
		return v
	default:
		return uint64(b)
	}
}

// ReadVarBytes reads a var_int length capped at maxSize, then that many
// raw bytes.
func (r *BinReader) ReadVarBytes(maxSize int) []byte {
	n := r.ReadVarUint()
	if r.Err != nil {
		return nil
	}
	if n > uint64(maxSize) {
		r.Err = ErrOverflow
		return nil
	}
	return r.readBytes(int(n))
}

// ReadString reads a var_bytes-encoded UTF-8 string capped at maxSize bytes.
func (r *BinReader) ReadString(maxSize int) string {
	return string(r.ReadVarBytes(maxSize))
}

// ReadArray reads a var_int count (capped at maxCount) followed by that
// many elements, each decoded via DecodeBinary.
func ReadArray[T any, PT interface {
	*T
	Serializable
}](r *BinReader, maxCount int) []T {
	n := r.ReadVarUint()
	if r.Err != nil {
		return nil
	}
	if n > uint64(maxCount) {
		r.Err = ErrOverflow
		return nil
	}
	arr := make([]T, n)
	for i := range arr {
		PT(&arr[i]).DecodeBinary(r)
		if r.Err != nil {
			return nil
		}
	}
	return arr
}
