package stackitem

import (
	"errors"
	"fmt"
	"math/big"
)

// MaxCompoundDepth bounds recursion depth for Equals/DeepCopy/serialize
// over Struct and nested compounds, preventing stack overflow on
// adversarial scripts.
const MaxCompoundDepth = 10

// MaxStructuralCompareItems bounds how many items a structural Equals may
// visit in total (not just depth), mirroring the reference VM's
// comparison-budget protection.
const MaxStructuralCompareItems = 2048

// ErrCompareDepth is returned when a structural comparison exceeds
// MaxCompoundDepth.
var ErrCompareDepth = errors.New("compare depth limit exceeded")

// Array is a mutable, reference-compared ordered list of items.
type Array struct{ value []Item }

// NewArray wraps items (not copied).
func NewArray(items []Item) *Array {
	if items == nil {
		items = []Item{}
	}
	return &Array{value: items}
}

func (a *Array) Type() Type         { return ArrayT }
func (a *Array) Value() interface{} { return a.value }
func (a *Array) Bool() bool         { return true }
func (a *Array) TryInteger(int) (*big.Int, error) {
	return nil, fmt.Errorf("%w: cannot convert Array to integer", ErrInvalidValue)
}
func (a *Array) TryBytes() ([]byte, error) {
	return nil, fmt.Errorf("%w: cannot convert Array to bytes", ErrInvalidValue)
}
func (a *Array) Dup() Item { return a } // reference semantics
func (a *Array) String() string { return "Array" }
func (a *Array) Equals(other Item) bool {
	o, ok := other.(*Array)
	return ok && o == a
}

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.value) }

// Append adds item to the end.
func (a *Array) Append(item Item) { a.value = append(a.value, item) }

// At returns the element at index i.
func (a *Array) At(i int) Item { return a.value[i] }

// SetAt replaces the element at index i.
func (a *Array) SetAt(i int, item Item) { a.value[i] = item }

// Remove deletes the element at index i, preserving order.
func (a *Array) Remove(i int) {
	a.value = append(a.value[:i], a.value[i+1:]...)
}

// Clear empties the array in place.
func (a *Array) Clear() { a.value = a.value[:0] }

// Reverse reverses the array in place.
func (a *Array) Reverse() {
	for i, j := 0, len(a.value)-1; i < j; i, j = i+1, j-1 {
		a.value[i], a.value[j] = a.value[j], a.value[i]
	}
}

// Items exposes the backing slice; callers must not retain it beyond the
// current opcode.
func (a *Array) Items() []Item { return a.value }

// Struct is an Array variant compared by value (structural equality),
// matching Neo script semantics where `Struct == Struct` compares fields.
type Struct struct{ Array }

// NewStruct wraps items (not copied).
func NewStruct(items []Item) *Struct {
	if items == nil {
		items = []Item{}
	}
	return &Struct{Array{value: items}}
}

func (s *Struct) Type() Type { return StructT }
func (s *Struct) Dup() Item {
	cp := make([]Item, len(s.value))
	copy(cp, s.value)
	return &Struct{Array{value: cp}}
}
func (s *Struct) String() string { return "Struct" }
func (s *Struct) Equals(other Item) bool {
	o, ok := other.(*Struct)
	if !ok {
		return false
	}
	budget := MaxStructuralCompareItems
	eq, err := structEquals(s, o, MaxCompoundDepth, &budget)
	if err != nil {
		panic(err)
	}
	return eq
}

func structEquals(a, b *Struct, depth int, budget *int) (bool, error) {
	if depth <= 0 {
		return false, ErrCompareDepth
	}
	if len(a.value) != len(b.value) {
		return false, nil
	}
	for i := range a.value {
		*budget--
		if *budget <= 0 {
			return false, ErrCompareDepth
		}
		av, bv := a.value[i], b.value[i]
		as, aIsStruct := av.(*Struct)
		bs, bIsStruct := bv.(*Struct)
		if aIsStruct && bIsStruct {
			eq, err := structEquals(as, bs, depth-1, budget)
			if err != nil || !eq {
				return false, err
			}
			continue
		}
		if aIsStruct != bIsStruct {
			return false, nil
		}
		if !av.Equals(bv) {
			return false, nil
		}
	}
	return true, nil
}

// MapElement is one key/value pair of a Map, kept in insertion order so
// that Keys/Values iterate deterministically.
type MapElement struct {
	Key   Item
	Value Item
}

// Map is a mutable association from primitive-typed keys (Boolean,
// Integer, ByteString) to arbitrary items.
type Map struct {
	elems []MapElement
	index map[interface{}]int
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{index: make(map[interface{}]int)}
}

func (m *Map) Type() Type         { return MapT }
func (m *Map) Value() interface{} { return m.elems }
func (m *Map) Bool() bool         { return true }
func (m *Map) TryInteger(int) (*big.Int, error) {
	return nil, fmt.Errorf("%w: cannot convert Map to integer", ErrInvalidValue)
}
func (m *Map) TryBytes() ([]byte, error) {
	return nil, fmt.Errorf("%w: cannot convert Map to bytes", ErrInvalidValue)
}
func (m *Map) Dup() Item { return m } // reference semantics
func (m *Map) String() string { return "Map" }
func (m *Map) Equals(other Item) bool {
	o, ok := other.(*Map)
	return ok && o == m
}

// mapKey renders a primitive item into a comparable Go value usable as a
// map index key.
func mapKey(key Item) (interface{}, error) {
	switch k := key.(type) {
	case *Bool:
		return k.value, nil
	case *BigInteger:
		return k.value.String(), nil
	case *ByteArray:
		return string(k.value), nil
	default:
		return nil, fmt.Errorf("%w: invalid map key type %s", ErrInvalidValue, key.String())
	}
}

// Index returns the slice position of key, or -1 if absent.
func (m *Map) Index(key Item) int {
	mk, err := mapKey(key)
	if err != nil {
		return -1
	}
	if i, ok := m.index[mk]; ok {
		return i
	}
	return -1
}

// Get returns the value for key and whether it was present.
func (m *Map) Get(key Item) (Item, bool) {
	i := m.Index(key)
	if i < 0 {
		return nil, false
	}
	return m.elems[i].Value, true
}

// Set inserts or updates key -> value.
func (m *Map) Set(key, value Item) {
	mk, err := mapKey(key)
	if err != nil {
		panic(err)
	}
	if i, ok := m.index[mk]; ok {
		m.elems[i].Value = value
		return
	}
	m.index[mk] = len(m.elems)
	m.elems = append(m.elems, MapElement{Key: key, Value: value})
}

// Delete removes key if present.
func (m *Map) Delete(key Item) {
	i := m.Index(key)
	if i < 0 {
		return
	}
	mk, _ := mapKey(key)
	delete(m.index, mk)
	m.elems = append(m.elems[:i], m.elems[i+1:]...)
	for k, idx := range m.index {
		if idx > i {
			m.index[k] = idx - 1
		}
	}
}

// Len returns the element count.
func (m *Map) Len() int { return len(m.elems) }

// Elements returns the ordered key/value pairs; callers must not retain
// beyond the current opcode.
func (m *Map) Elements() []MapElement { return m.elems }
