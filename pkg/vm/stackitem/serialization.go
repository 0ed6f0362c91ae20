package stackitem

import (
	"bytes"
	"errors"
	"fmt"

	vio "github.com/noriachain/neonode/pkg/io"
)

// ErrCircularReference is returned by Serialize when an item graph
// contains a cycle reachable during serialization (§4.1: "cycles
// forbidden (detect via visited-set during serialize)").
var ErrCircularReference = errors.New("circular reference")

// ErrUnserializable is returned for InteropInterface, which has no wire
// representation by design (§8).
var ErrUnserializable = errors.New("cannot serialize InteropInterface")

// Serialize encodes item using the one-byte-type-tag recursive format used
// by System.Binary.Serialize: a type tag followed by a type-specific body.
func Serialize(item Item) ([]byte, error) {
	bb := new(bytes.Buffer)
	bw := vio.NewBinWriterFromIO(bb)
	if err := encodeItem(bw, item, make(map[Item]bool)); err != nil {
		return nil, err
	}
	if bw.Err != nil {
		return nil, bw.Err
	}
	return bb.Bytes(), nil
}

// Deserialize decodes an item previously produced by Serialize.
func Deserialize(data []byte) (Item, error) {
	r := vio.NewBinReaderFromIO(bytes.NewReader(data))
	item := decodeItem(r)
	if r.Err != nil {
		return nil, r.Err
	}
	return item, nil
}

func encodeItem(w *vio.BinWriter, item Item, visited map[Item]bool) error {
	switch it := item.(type) {
	case Null:
		w.WriteU8(byte(AnyT))
		return nil
	case *Bool:
		w.WriteU8(byte(BooleanT))
		w.WriteBool(it.value)
		return nil
	case *BigInteger:
		w.WriteU8(byte(IntegerT))
		b := encodeBigInt(it.value)
		w.WriteVarBytes(b)
		return nil
	case *ByteArray:
		w.WriteU8(byte(ByteArrayT))
		w.WriteVarBytes(it.value)
		return nil
	case *Buffer:
		w.WriteU8(byte(BufferT))
		w.WriteVarBytes(it.value)
		return nil
	case *InteropInterface:
		return fmt.Errorf("%w", ErrUnserializable)
	case *Array, *Struct:
		if visited[item] {
			return ErrCircularReference
		}
		visited[item] = true
		var items []Item
		tag := ArrayT
		if s, ok := item.(*Struct); ok {
			tag = StructT
			items = s.value
		} else {
			items = item.(*Array).value
		}
		w.WriteU8(byte(tag))
		w.WriteVarUint(uint64(len(items)))
		for _, v := range items {
			if err := encodeItem(w, v, visited); err != nil {
				return err
			}
		}
		delete(visited, item)
		return nil
	case *Map:
		if visited[item] {
			return ErrCircularReference
		}
		visited[item] = true
		w.WriteU8(byte(MapT))
		w.WriteVarUint(uint64(len(it.elems)))
		for _, e := range it.elems {
			if err := encodeItem(w, e.Key, visited); err != nil {
				return err
			}
			if err := encodeItem(w, e.Value, visited); err != nil {
				return err
			}
		}
		delete(visited, item)
		return nil
	default:
		return fmt.Errorf("%w: unknown item type", ErrUnserializable)
	}
}

func decodeItem(r *vio.BinReader) Item {
	tag := Type(r.ReadU8())
	if r.Err != nil {
		return nil
	}
	switch tag {
	case AnyT:
		return Null{}
	case BooleanT:
		return NewBool(r.ReadBool())
	case IntegerT:
		b := r.ReadVarBytes(33)
		if r.Err != nil {
			return nil
		}
		return NewBigInteger(decodeBigInt(b))
	case ByteArrayT:
		b := r.ReadVarBytes(MaxByteArraySize)
		return NewByteArray(b)
	case BufferT:
		b := r.ReadVarBytes(MaxByteArraySize)
		return NewBuffer(b)
	case ArrayT, StructT:
		n := r.ReadVarUint()
		if r.Err != nil {
			return nil
		}
		items := make([]Item, n)
		for i := range items {
			items[i] = decodeItem(r)
			if r.Err != nil {
				return nil
			}
		}
		if tag == StructT {
			return NewStruct(items)
		}
		return NewArray(items)
	case MapT:
		n := r.ReadVarUint()
		if r.Err != nil {
			return nil
		}
		m := NewMap()
		for i := uint64(0); i < n; i++ {
			k := decodeItem(r)
			if r.Err != nil {
				return nil
			}
			v := decodeItem(r)
			if r.Err != nil {
				return nil
			}
			m.Set(k, v)
		}
		return m
	default:
		r.Err = fmt.Errorf("unknown serialized type tag %d", tag)
		return nil
	}
}
