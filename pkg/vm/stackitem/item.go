// Package stackitem implements the NeoVM's sum-typed value model (§4.3):
// Null, Boolean, Integer, ByteString, Buffer, Array, Struct, Map, Pointer
// and InteropInterface, plus the reference counter that makes cyclic
// compound values safe to garbage-collect (§4.3, §9).
package stackitem

import (
	"errors"
	"fmt"
	"math/big"
)

// MaxBigIntegerSizeBits bounds Integer width in bits; the default matches
// spec's 32-byte ("max_integer_bytes") default.
const MaxBigIntegerSizeBits = 32 * 8

// MaxByteArraySize is the default cap on ByteString/Buffer sizes.
const MaxByteArraySize = 1024 * 1024

// ErrTooBig is returned by operations whose result exceeds a configured
// size limit.
var ErrTooBig = errors.New("item too big")

// ErrInvalidValue is returned when a conversion request cannot be honored
// (e.g. Integer() on a Map).
var ErrInvalidValue = errors.New("invalid item value")

// Item is the common interface of every VM value.
type Item interface {
	// Type returns the item's discriminant.
	Type() Type
	// Value returns the underlying Go value (type varies per variant).
	Value() interface{}
	// Bool coerces the item to a boolean per NeoVM truthiness rules; every
	// variant converts without failing.
	Bool() bool
	// TryInteger attempts a numeric conversion bounded to maxBytes.
	TryInteger(maxBytes int) (*big.Int, error)
	// TryBytes attempts a byte-slice conversion.
	TryBytes() ([]byte, error)
	// Dup returns a shallow copy sharing the same identity for compound
	// types where identity matters (Array/Struct/Map/Buffer get new
	// wrapper-independent semantics per the type's Equals rule).
	Dup() Item
	// Equals compares i against other per §4.3: reference equality for
	// compound types except Struct, which compares structurally with a
	// depth limit.
	Equals(other Item) bool
	// String renders a short debug form.
	String() string
}

// Null is the VM's null value.
type Null struct{}

// NewNull returns the singleton-like Null item (a fresh value each call;
// Null carries no state so this is cheap and safe to share).
func NewNull() Item { return Null{} }

func (Null) Type() Type        { return AnyT }
func (Null) Value() interface{} { return nil }
func (Null) Bool() bool         { return false }
func (Null) TryInteger(int) (*big.Int, error) {
	return nil, fmt.Errorf("%w: cannot convert Null to integer", ErrInvalidValue)
}
func (Null) TryBytes() ([]byte, error) {
	return nil, fmt.Errorf("%w: cannot convert Null to bytes", ErrInvalidValue)
}
func (n Null) Dup() Item   { return n }
func (Null) String() string { return "Null" }
func (Null) Equals(other Item) bool {
	_, ok := other.(Null)
	return ok
}

// Bool is a boolean value.
type Bool struct{ value bool }

// NewBool wraps b.
func NewBool(b bool) *Bool { return &Bool{value: b} }

func (b *Bool) Type() Type         { return BooleanT }
func (b *Bool) Value() interface{} { return b.value }
func (b *Bool) Bool() bool         { return b.value }
func (b *Bool) TryInteger(int) (*big.Int, error) {
	if b.value {
		return big.NewInt(1), nil
	}
	return big.NewInt(0), nil
}
func (b *Bool) TryBytes() ([]byte, error) {
	if b.value {
		return []byte{1}, nil
	}
	return []byte{}, nil
}
func (b *Bool) Dup() Item { return &Bool{value: b.value} }
func (b *Bool) String() string {
	return "Boolean"
}
func (b *Bool) Equals(other Item) bool {
	o, ok := other.(*Bool)
	return ok && o.value == b.value
}

// BigInteger is an arbitrary-precision (but width-bounded at use sites)
// integer value.
type BigInteger struct{ value *big.Int }

// NewBigInteger wraps n, panicking if it exceeds MaxBigIntegerSizeBits -
// matching the teacher's convention that Make-style constructors validate
// eagerly rather than deferring to first use.
func NewBigInteger(n *big.Int) *BigInteger {
	if n.BitLen() > MaxBigIntegerSizeBits {
		panic("integer overflows max size")
	}
	return &BigInteger{value: n}
}

func (z *BigInteger) Type() Type         { return IntegerT }
func (z *BigInteger) Value() interface{} { return z.value }
func (z *BigInteger) Bool() bool         { return z.value.Sign() != 0 }
func (z *BigInteger) TryInteger(maxBytes int) (*big.Int, error) {
	if z.value.BitLen() > maxBytes*8 {
		return nil, ErrTooBig
	}
	return z.value, nil
}
func (z *BigInteger) TryBytes() ([]byte, error) {
	return encodeBigInt(z.value), nil
}
func (z *BigInteger) Dup() Item { return &BigInteger{value: new(big.Int).Set(z.value)} }
func (z *BigInteger) String() string {
	return "Integer"
}
func (z *BigInteger) Equals(other Item) bool {
	o, ok := other.(*BigInteger)
	return ok && o.value.Cmp(z.value) == 0
}

// ByteArray is an immutable byte string ("ByteString" in the reference
// VM's terminology).
type ByteArray struct{ value []byte }

// NewByteArray wraps b; the slice is not copied and must not be mutated by
// the caller afterward.
func NewByteArray(b []byte) *ByteArray {
	if b == nil {
		b = []byte{}
	}
	return &ByteArray{value: b}
}

func (s *ByteArray) Type() Type         { return ByteArrayT }
func (s *ByteArray) Value() interface{} { return s.value }
func (s *ByteArray) Bool() bool {
	for _, b := range s.value {
		if b != 0 {
			return true
		}
	}
	return false
}
func (s *ByteArray) TryInteger(maxBytes int) (*big.Int, error) {
	if len(s.value) > maxBytes {
		return nil, ErrTooBig
	}
	return decodeBigInt(s.value), nil
}
func (s *ByteArray) TryBytes() ([]byte, error) { return s.value, nil }
func (s *ByteArray) Dup() Item                 { return s } // immutable: identity copy is safe
func (s *ByteArray) String() string            { return "ByteString" }
func (s *ByteArray) Equals(other Item) bool {
	o, ok := other.(*ByteArray)
	if !ok {
		return false
	}
	if len(o.value) != len(s.value) {
		return false
	}
	for i := range s.value {
		if s.value[i] != o.value[i] {
			return false
		}
	}
	return true
}

// Buffer is a mutable byte string (backs NEWBUFFER/MEMCPY).
type Buffer struct{ value []byte }

// NewBuffer wraps b (not copied).
func NewBuffer(b []byte) *Buffer {
	if b == nil {
		b = []byte{}
	}
	return &Buffer{value: b}
}

func (b *Buffer) Type() Type         { return BufferT }
func (b *Buffer) Value() interface{} { return b.value }
func (b *Buffer) Bool() bool {
	for _, v := range b.value {
		if v != 0 {
			return true
		}
	}
	return false
}
func (b *Buffer) TryInteger(maxBytes int) (*big.Int, error) {
	if len(b.value) > maxBytes {
		return nil, ErrTooBig
	}
	return decodeBigInt(b.value), nil
}
func (b *Buffer) TryBytes() ([]byte, error) { return b.value, nil }
func (b *Buffer) Dup() Item {
	cp := make([]byte, len(b.value))
	copy(cp, b.value)
	return &Buffer{value: cp}
}
func (b *Buffer) String() string { return "Buffer" }
func (b *Buffer) Equals(other Item) bool {
	return other == Item(b) // reference equality, like all mutable compounds
}

// Pointer is a code-pointer value (script + instruction offset), produced
// by PUSHA and consumed by CALLA.
type Pointer struct {
	Script []byte
	Pos    int
}

// NewPointer builds a Pointer into script at position pos.
func NewPointer(pos int, script []byte) *Pointer {
	return &Pointer{Script: script, Pos: pos}
}

func (p *Pointer) Type() Type         { return PointerT }
func (p *Pointer) Value() interface{} { return p.Pos }
func (p *Pointer) Bool() bool         { return true }
func (p *Pointer) TryInteger(int) (*big.Int, error) {
	return nil, fmt.Errorf("%w: cannot convert Pointer to integer", ErrInvalidValue)
}
func (p *Pointer) TryBytes() ([]byte, error) {
	return nil, fmt.Errorf("%w: cannot convert Pointer to bytes", ErrInvalidValue)
}
func (p *Pointer) Dup() Item      { return p }
func (p *Pointer) String() string { return "Pointer" }
func (p *Pointer) Equals(other Item) bool {
	o, ok := other.(*Pointer)
	return ok && o == p
}

// InteropInterface wraps an opaque host-side handle (e.g. an iterator).
// It intentionally fails serialization (§4.1, §8): "every StackItem
// variant except InteropInterface".
type InteropInterface struct {
	value interface{}
}

// NewInterop wraps v.
func NewInterop(v interface{}) *InteropInterface { return &InteropInterface{value: v} }

func (i *InteropInterface) Type() Type         { return InteropT }
func (i *InteropInterface) Value() interface{} { return i.value }
func (i *InteropInterface) Bool() bool         { return true }
func (i *InteropInterface) TryInteger(int) (*big.Int, error) {
	return nil, fmt.Errorf("%w: cannot convert InteropInterface to integer", ErrInvalidValue)
}
func (i *InteropInterface) TryBytes() ([]byte, error) {
	return nil, fmt.Errorf("%w: cannot convert InteropInterface to bytes", ErrInvalidValue)
}
func (i *InteropInterface) Dup() Item      { return i }
func (i *InteropInterface) String() string { return "InteropInterface" }
func (i *InteropInterface) Equals(other Item) bool {
	o, ok := other.(*InteropInterface)
	return ok && o == i
}

// encodeBigInt returns the minimal little-endian two's-complement
// representation of n (empty slice for zero).
func encodeBigInt(n *big.Int) []byte {
	if n.Sign() == 0 {
		return []byte{}
	}
	abs := new(big.Int).Abs(n)
	b := abs.Bytes() // big-endian
	// reverse to little-endian
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	if n.Sign() < 0 {
		b = twosComplementNegate(b)
		if b[len(b)-1]&0x80 == 0 {
			b = append(b, 0xff)
		}
	} else if b[len(b)-1]&0x80 != 0 {
		b = append(b, 0x00)
	}
	return b
}

func twosComplementNegate(b []byte) []byte {
	out := make([]byte, len(b))
	carry := 1
	for i := range b {
		v := int(^b[i]&0xff) + carry
		out[i] = byte(v)
		carry = v >> 8
	}
	return out
}

// decodeBigInt parses a little-endian two's-complement byte slice (the
// wire/byte-array form) into a *big.Int.
func decodeBigInt(b []byte) *big.Int {
	if len(b) == 0 {
		return big.NewInt(0)
	}
	be := make([]byte, len(b))
	for i, v := range b {
		be[len(b)-1-i] = v
	}
	neg := be[0]&0x80 != 0
	if !neg {
		return new(big.Int).SetBytes(be)
	}
	// two's complement negative: invert+add one over the BE bytes, then negate.
	inv := make([]byte, len(be))
	for i, v := range be {
		inv[i] = ^v
	}
	n := new(big.Int).SetBytes(inv)
	n.Add(n, big.NewInt(1))
	return n.Neg(n)
}
