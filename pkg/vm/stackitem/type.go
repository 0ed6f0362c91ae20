package stackitem

import "fmt"

// Type is the discriminant of the StackItem sum type (§4.3).
type Type byte

// Type values, matching the Neo N3 reference VM's type tags (used as the
// one-byte prefix in the recursive binary serializer).
const (
	AnyT       Type = 0x00
	PointerT   Type = 0x10
	BooleanT   Type = 0x20
	IntegerT   Type = 0x21
	ByteArrayT Type = 0x28
	BufferT    Type = 0x30
	ArrayT     Type = 0x40
	StructT    Type = 0x41
	MapT       Type = 0x48
	InteropT   Type = 0x60
)

var typeNames = map[Type]string{
	AnyT: "Any", PointerT: "Pointer", BooleanT: "Boolean", IntegerT: "Integer",
	ByteArrayT: "ByteString", BufferT: "Buffer", ArrayT: "Array",
	StructT: "Struct", MapT: "Map", InteropT: "InteropInterface",
}

// String implements fmt.Stringer.
func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", byte(t))
}

// FromString parses the display name back into a Type.
func FromString(s string) (Type, error) {
	for t, n := range typeNames {
		if n == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown stackitem type: %s", s)
}

// IsValid reports whether t is a known, non-reserved type tag.
func (t Type) IsValid() bool {
	_, ok := typeNames[t]
	return ok
}
