package vm

import (
	"math/big"

	"github.com/noriachain/neonode/pkg/vm/stackitem"
)

// Element is one slot of a Stack, wrapping the underlying Item.
type Element struct {
	value stackitem.Item
}

// Item returns the wrapped stack item.
func (e *Element) Item() stackitem.Item { return e.value }

// Bool coerces the element per NeoVM truthiness rules.
func (e *Element) Bool() bool { return e.value.Bool() }

// BigInt converts the element to an integer bounded to maxBytes.
func (e *Element) BigInt(maxBytes int) (*big.Int, error) {
	return e.value.TryInteger(maxBytes)
}

// Bytes converts the element to a byte slice.
func (e *Element) Bytes() ([]byte, error) {
	return e.value.TryBytes()
}

// BigIntOrPanic is a test/debug convenience: it converts the element to an
// integer with a generous byte budget and panics on failure.
func (e *Element) BigIntOrPanic() *big.Int {
	n, err := e.BigInt(64)
	if err != nil {
		panic(err)
	}
	return n
}

// Stack is a LIFO list of Elements used for both the evaluation stack and,
// generically, any other stack-shaped structure in the VM.
type Stack struct {
	elems []*Element
}

// NewStack returns an empty Stack.
func NewStack() *Stack {
	return &Stack{}
}

// Len returns the number of elements.
func (s *Stack) Len() int { return len(s.elems) }

// Push adds e to the top of the stack.
func (s *Stack) Push(e *Element) {
	s.elems = append(s.elems, e)
}

// PushItem wraps and pushes a stackitem.Item.
func (s *Stack) PushItem(item stackitem.Item) {
	s.Push(&Element{value: item})
}

// PushVal wraps a native Go value via stackitem.Make and pushes it.
func (s *Stack) PushVal(v interface{}) {
	s.PushItem(stackitem.Make(v))
}

// Pop removes and returns the top element, panicking on an empty stack -
// callers in the dispatch loop convert this into a StackUnderflow Fault via
// a deferred recover (see vm.go).
func (s *Stack) Pop() *Element {
	n := len(s.elems)
	if n == 0 {
		panic(errStackUnderflow)
	}
	e := s.elems[n-1]
	s.elems = s.elems[:n-1]
	return e
}

// Peek returns the element n positions from the top (0 = top) without
// removing it.
func (s *Stack) Peek(n int) *Element {
	idx := len(s.elems) - 1 - n
	if idx < 0 {
		panic(errStackUnderflow)
	}
	return s.elems[idx]
}

// RemoveAt removes and returns the element n positions from the top.
func (s *Stack) RemoveAt(n int) *Element {
	idx := len(s.elems) - 1 - n
	if idx < 0 {
		panic(errStackUnderflow)
	}
	e := s.elems[idx]
	s.elems = append(s.elems[:idx], s.elems[idx+1:]...)
	return e
}

// InsertAt inserts e so that it ends up n positions from the top.
func (s *Stack) InsertAt(e *Element, n int) {
	idx := len(s.elems) - n
	if idx < 0 || idx > len(s.elems) {
		panic(errStackUnderflow)
	}
	s.elems = append(s.elems, nil)
	copy(s.elems[idx+1:], s.elems[idx:])
	s.elems[idx] = e
}

// Clear empties the stack.
func (s *Stack) Clear() {
	s.elems = s.elems[:0]
}

// Items exposes the backing slice, bottom-to-top; callers must not retain
// it past the current opcode.
func (s *Stack) Items() []*Element { return s.elems }
