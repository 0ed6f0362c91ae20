package stackitem

import "math/big"

// Make converts a native Go value into the corresponding Item, panicking
// on nil or an unsupported type - mirroring the teacher's convention that
// this constructor is used only at trusted call sites (native-contract
// glue, tests), never on untrusted input.
func Make(v interface{}) Item {
	switch val := v.(type) {
	case Item:
		return val
	case int64:
		return NewBigInteger(big.NewInt(val))
	case int32:
		return NewBigInteger(big.NewInt(int64(val)))
	case int16:
		return NewBigInteger(big.NewInt(int64(val)))
	case int8:
		return NewBigInteger(big.NewInt(int64(val)))
	case int:
		return NewBigInteger(big.NewInt(int64(val)))
	case uint64:
		return NewBigInteger(new(big.Int).SetUint64(val))
	case uint32:
		return NewBigInteger(big.NewInt(int64(val)))
	case uint16:
		return NewBigInteger(big.NewInt(int64(val)))
	case uint8:
		return NewBigInteger(big.NewInt(int64(val)))
	case *big.Int:
		return NewBigInteger(val)
	case []byte:
		return NewByteArray(val)
	case string:
		return NewByteArray([]byte(val))
	case bool:
		return NewBool(val)
	case []Item:
		return NewArray(val)
	case []int:
		items := make([]Item, len(val))
		for i, x := range val {
			items[i] = Make(x)
		}
		return NewArray(items)
	case nil:
		panic("cannot make a stack item from nil")
	default:
		panic("unsupported stack item value type")
	}
}

// DeepCopy recursively clones item, preserving shared structure for cycles
// via seen (so A -> B -> A copies into A' -> B' -> A', not an infinite
// tree). Primitive and reference-identity types return as-is except where
// Dup() already implies a copy (Buffer, Struct fields).
func DeepCopy(item Item) Item {
	return deepCopy(item, make(map[Item]Item))
}

func deepCopy(item Item, seen map[Item]Item) Item {
	if cp, ok := seen[item]; ok {
		return cp
	}
	switch it := item.(type) {
	case Null:
		return it
	case *Bool, *BigInteger, *ByteArray:
		return item.Dup()
	case *Buffer:
		return item.Dup()
	case *Array:
		cp := NewArray(make([]Item, len(it.value)))
		seen[item] = cp
		for i, v := range it.value {
			cp.value[i] = deepCopy(v, seen)
		}
		return cp
	case *Struct:
		cp := NewStruct(make([]Item, len(it.value)))
		seen[item] = cp
		for i, v := range it.value {
			cp.value[i] = deepCopy(v, seen)
		}
		return cp
	case *Map:
		cp := NewMap()
		seen[item] = cp
		for _, e := range it.elems {
			cp.Set(deepCopy(e.Key, seen), deepCopy(e.Value, seen))
		}
		return cp
	default:
		return item
	}
}
